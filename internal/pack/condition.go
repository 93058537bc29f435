package pack

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentic-research/remolder/api"
	"github.com/agentic-research/remolder/internal/tree"
)

// Evaluate tests c against config. A nil condition passes.
func Evaluate(c *api.Condition, config map[string]any) (bool, error) {
	if c == nil {
		return true, nil
	}
	raw, ok := config[c.Value]
	if !ok {
		return false, fmt.Errorf("no config value named %q", c.Value)
	}
	value, err := tree.Normalize(raw)
	if err != nil {
		return false, fmt.Errorf("config value %s: %w", c.Value, err)
	}

	var result bool
	if len(c.Predicates) > 0 {
		result = true
		for _, p := range c.Predicates {
			passed, err := test(p, value)
			if err != nil {
				return false, fmt.Errorf("config value %s: %w", c.Value, err)
			}
			if p.Inverted == passed {
				result = false
				break
			}
		}
	} else {
		b, isBool := value.(bool)
		if !isBool {
			return false, fmt.Errorf("predicates required for non-boolean config value %q", c.Value)
		}
		result = b
	}
	return c.Inverted != result, nil
}

func test(p api.Predicate, value any) (bool, error) {
	want, err := tree.Normalize(p.Value)
	if err != nil {
		return false, err
	}
	switch p.Type {
	case "equals":
		return tree.Equal(value, want), nil
	case "contains":
		switch v := value.(type) {
		case string:
			s, ok := want.(string)
			if !ok {
				return false, fmt.Errorf("contains on a string needs a string, got %s", tree.KindOf(want))
			}
			return strings.Contains(v, s), nil
		case []any:
			for _, item := range v {
				if tree.Equal(item, want) {
					return true, nil
				}
			}
			return false, nil
		}
		return false, fmt.Errorf("contains needs a string or list value, got %s", tree.KindOf(value))
	case "matches":
		pattern, ok := want.(string)
		if !ok {
			return false, fmt.Errorf("matches needs a string pattern")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("matches: %w", err)
		}
		return re.MatchString(fmt.Sprint(value)), nil
	case "greater_than", "less_than":
		a, aok := number(value)
		b, bok := number(want)
		if !aok || !bok {
			return false, fmt.Errorf("%s needs numbers", p.Type)
		}
		if p.Type == "greater_than" {
			return a > b, nil
		}
		return a < b, nil
	}
	return false, fmt.Errorf("unknown predicate type %q", p.Type)
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// ParseValue reads a command-line config value: booleans and numbers are
// typed, bracketed or braced text is parsed as interchange text, and anything
// else stays a string.
func ParseValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	if t := strings.TrimSpace(s); strings.HasPrefix(t, "[") || strings.HasPrefix(t, "{") {
		if v, err := tree.ParseLenient([]byte(t)); err == nil {
			return v
		}
	}
	return s
}

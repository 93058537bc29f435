package molding

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/agentic-research/remolder/internal/tree"
)

// jsonPathRemolder edits the interchange form of its target at a JSONPath.
type jsonPathRemolder[T any] struct {
	name   string
	target target
	op     string
	raw    string
	expr   jp.Expr
	value  any
}

// JSONPath builds a remolder from params:
//
//	op:     set | delete | append | merge
//	path:   JSONPath expression, "$" for the whole target
//	value:  literal used by set, append and merge
//	target: document (default) or metadata
func JSONPath[T any](def Definition) (Remolder[T], error) {
	op, err := stringParam(def, "op", true)
	if err != nil {
		return nil, err
	}
	switch op {
	case "set", "delete", "append", "merge":
	default:
		return nil, fmt.Errorf("unknown op %q", op)
	}
	raw, err := stringParam(def, "path", true)
	if err != nil {
		return nil, err
	}
	x, err := jp.ParseString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", raw, err)
	}
	t, err := targetParam(def)
	if err != nil {
		return nil, err
	}
	value, err := valueParam(def)
	if err != nil {
		return nil, err
	}
	if op == "merge" {
		if _, ok := value.(map[string]any); !ok {
			return nil, fmt.Errorf("merge value must be a map, got %s", tree.KindOf(value))
		}
	}
	return &jsonPathRemolder[T]{
		name:   def.String(),
		target: t,
		op:     op,
		raw:    strings.TrimSpace(raw),
		expr:   x,
		value:  value,
	}, nil
}

func (r *jsonPathRemolder[T]) String() string {
	return fmt.Sprintf("%s(%s %s %s)", r.name, r.op, r.target, r.raw)
}

func (r *jsonPathRemolder[T]) Remold(alg tree.Algebra[T], document, metadata, _ T) (T, T, error) {
	subject, err := alg.ToInterchange(pick(r.target, document, metadata))
	if err != nil {
		return document, metadata, err
	}
	edited, err := r.apply(tree.Clone(subject))
	if err != nil {
		return document, metadata, err
	}
	out, err := alg.FromInterchange(edited)
	if err != nil {
		return document, metadata, err
	}
	d, m := put(r.target, document, metadata, out)
	return d, m, nil
}

func (r *jsonPathRemolder[T]) isRoot() bool { return r.raw == tree.Root }

func (r *jsonPathRemolder[T]) apply(v any) (any, error) {
	if r.op == "delete" {
		if r.isRoot() {
			return nil, nil
		}
		if v == nil {
			return nil, nil
		}
		if err := r.expr.Del(v); err != nil {
			return nil, fmt.Errorf("delete %s: %w", r.raw, err)
		}
		return v, nil
	}

	var next any
	switch r.op {
	case "set":
		next = tree.Clone(r.value)
	case "append":
		current := r.current(v)
		list, ok := current.([]any)
		if current != nil && !ok {
			return nil, fmt.Errorf("append %s: target is a %s, not a list", r.raw, tree.KindOf(current))
		}
		next = append(append([]any{}, list...), tree.Clone(r.value))
	case "merge":
		current := r.current(v)
		base, ok := current.(map[string]any)
		if current != nil && !ok {
			return nil, fmt.Errorf("merge %s: target is a %s, not a map", r.raw, tree.KindOf(current))
		}
		next = mergeInterchange(base, r.value.(map[string]any))
	}

	if r.isRoot() {
		return next, nil
	}
	if v == nil {
		v = map[string]any{}
	}
	if err := r.expr.Set(v, next); err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.op, r.raw, err)
	}
	return v, nil
}

func (r *jsonPathRemolder[T]) current(v any) any {
	if r.isRoot() {
		return v
	}
	if v == nil {
		return nil
	}
	return r.expr.First(v)
}

// mergeInterchange deep-merges patch over base. Null patch values delete keys.
func mergeInterchange(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		pm, pok := v.(map[string]any)
		bm, bok := out[k].(map[string]any)
		if pok && bok {
			out[k] = mergeInterchange(bm, pm)
			continue
		}
		out[k] = tree.Clone(v)
	}
	return out
}

package tree

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Interchange is the algebra of the pivot representation. Its values are the
// plain Go shapes produced by the JSON decoder.
var Interchange Algebra[any] = interchange{}

type interchange struct{}

func (interchange) Name() string { return "interchange" }

func (interchange) Kind(v any) Kind { return KindOf(v) }

func (interchange) Null() any { return nil }

func (interchange) EmptyMap() any { return map[string]any{} }

func (interchange) Map(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func (interchange) List(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

func (interchange) CreateMap(entries map[string]any) (any, error) {
	m := make(map[string]any, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return m, nil
}

func (interchange) CreateList(items []any) (any, error) {
	return append(make([]any, 0, len(items)), items...), nil
}

func (interchange) ToInterchange(v any) (any, error) { return v, nil }

func (interchange) FromInterchange(v any) (any, error) { return Normalize(v) }

// KindOf classifies a Go value as the interchange algebra sees it.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return Null
	case bool:
		return Bool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return Number
	case string:
		return String
	case []any:
		return List
	case map[string]any:
		return Map
	}
	return Other
}

// Normalize returns a deep copy of v restricted to the interchange shapes.
// Integer kinds become int64, float32 becomes float64, and typed slices or
// string-keyed maps become []any and map[string]any.
func Normalize(v any) (any, error) {
	return normalize(Root, v)
}

func normalize(path string, v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, int64:
		return x, nil
	case float64:
		return checkFloat(path, x)
	case float32:
		return checkFloat(path, float64(x))
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		return fromUnsigned(path, uint64(x))
	case uint64:
		return fromUnsigned(path, x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		if isInteger(x.String()) {
			return nil, &ConversionError{Target: "interchange", Path: path, Value: x.String(), Reason: "integer overflows int64"}
		}
		f, err := x.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, &ConversionError{Target: "interchange", Path: path, Value: x.String(), Reason: err.Error()}
		}
		if err := CheckExact(path, x.String(), f); err != nil {
			return nil, err
		}
		return checkFloat(path, f)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			n, err := normalize(Index(path, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			n, err := normalize(Child(path, k), item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			key, ok := k.(string)
			if !ok {
				return nil, &ConversionError{Target: "interchange", Path: path, Value: k, Reason: "map key is not a string"}
			}
			n, err := normalize(Child(path, key), item)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	}
	return normalizeReflect(path, v)
}

// normalizeReflect handles typed containers such as []string or
// []map[string]any that decoders commonly produce.
func normalizeReflect(path string, v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		out := make([]any, rv.Len())
		for i := range out {
			n, err := normalize(Index(path, i), rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			n, err := normalize(Child(path, key), iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	}
	return nil, &ConversionError{Target: "interchange", Path: path, Value: v}
}

func checkFloat(path string, f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &ConversionError{Target: "interchange", Path: path, Value: f, Reason: "not a finite number"}
	}
	return f, nil
}

// CheckExact fails unless f formats back to the same number as the decimal
// text it was parsed from. Text that big.Rat cannot read, such as YAML's
// .inf, is not checked.
func CheckExact(path, text string, f float64) error {
	if f == 0 {
		if strings.ContainsAny(mantissa(text), "123456789") {
			return &ConversionError{Target: "interchange", Path: path, Value: text, Reason: "number out of range"}
		}
		return nil
	}
	want, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil
	}
	if math.IsInf(f, 0) {
		return &ConversionError{Target: "interchange", Path: path, Value: text, Reason: "number out of range"}
	}
	got, _ := new(big.Rat).SetString(strconv.FormatFloat(f, 'g', -1, 64))
	if got == nil || want.Cmp(got) != 0 {
		return &ConversionError{Target: "interchange", Path: path, Value: text, Reason: "number exceeds float64 precision"}
	}
	return nil
}

func mantissa(text string) string {
	if i := strings.IndexAny(text, "eE"); i >= 0 {
		return text[:i]
	}
	return text
}

func isInteger(text string) bool {
	text = strings.TrimLeft(text, "+-")
	if text == "" {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func fromUnsigned(path string, u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, &ConversionError{Target: "interchange", Path: path, Value: u, Reason: "integer overflows int64"}
	}
	return int64(u), nil
}

// Clone deep-copies the containers of an interchange value. Scalars are
// shared.
func Clone(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Clone(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = Clone(item)
		}
		return out
	}
	return v
}

// Equal reports whether two interchange values have the same shape. Numbers
// compare by value, so int64(2) equals float64(2).
func Equal(a, b any) bool {
	if KindOf(a) == Number && KindOf(b) == Number {
		return numbersEqual(a, b)
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool, string:
		return a == b
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// numbersEqual compares integers exactly. An integer equals a float only
// when the float is integral and holds the same value.
func numbersEqual(a, b any) bool {
	na, err := normalize(Root, a)
	if err != nil {
		return false
	}
	nb, err := normalize(Root, b)
	if err != nil {
		return false
	}
	switch x := na.(type) {
	case int64:
		switch y := nb.(type) {
		case int64:
			return x == y
		case float64:
			return floatIsInt(y, x)
		}
	case float64:
		switch y := nb.(type) {
		case int64:
			return floatIsInt(x, y)
		case float64:
			return x == y
		}
	}
	return false
}

func floatIsInt(f float64, i int64) bool {
	if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return false
	}
	return int64(f) == i
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package format

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/agentic-research/remolder/internal/molding"
	"github.com/agentic-research/remolder/internal/tree"
)

// TOML documents use the interchange shapes plus time.Time for datetimes.
// TOML has no null, so null is accepted only as the whole value (absent
// metadata) and rejected anywhere inside a document.
func TOML() *Format[any] {
	return New[any]("toml", molding.Standard[any](), TOMLAlgebra, decodeTOML, encodeTOML, ".toml")
}

// TOMLAlgebra is the tree algebra over decoded TOML values.
var TOMLAlgebra tree.Algebra[any] = tomlAlgebra{}

type tomlAlgebra struct{}

func (tomlAlgebra) Name() string { return "toml" }

func (tomlAlgebra) Kind(v any) tree.Kind {
	if _, ok := v.(time.Time); ok {
		return tree.Other
	}
	return tree.KindOf(v)
}

func (tomlAlgebra) Null() any     { return nil }
func (tomlAlgebra) EmptyMap() any { return map[string]any{} }

func (tomlAlgebra) Map(v any) (map[string]any, bool) { return tree.Interchange.Map(v) }

func (tomlAlgebra) List(v any) ([]any, bool) { return tree.Interchange.List(v) }

func (tomlAlgebra) CreateMap(entries map[string]any) (any, error) {
	for _, k := range tree.SortedKeys(entries) {
		if entries[k] == nil {
			return nil, &tree.ConversionError{Target: "toml", Path: tree.Child(tree.Root, k), Value: nil, Reason: "toml has no null"}
		}
	}
	out := make(map[string]any, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out, nil
}

func (tomlAlgebra) CreateList(items []any) (any, error) {
	for i, v := range items {
		if v == nil {
			return nil, &tree.ConversionError{Target: "toml", Path: tree.Index(tree.Root, i), Value: nil, Reason: "toml has no null"}
		}
	}
	return append([]any{}, items...), nil
}

func (a tomlAlgebra) ToInterchange(v any) (any, error) {
	return a.toInterchange(tree.Root, v)
}

func (a tomlAlgebra) toInterchange(path string, v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return nil, &tree.ConversionError{Target: "interchange", Path: path, Value: x, Reason: "toml datetime"}
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			n, err := a.toInterchange(tree.Index(path, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			n, err := a.toInterchange(tree.Child(path, k), item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	}
	return tree.Normalize(v)
}

func (tomlAlgebra) FromInterchange(v any) (any, error) {
	n, err := tree.Normalize(v)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	if err := rejectNull(tree.Root, n); err != nil {
		return nil, err
	}
	return n, nil
}

func rejectNull(path string, v any) error {
	switch x := v.(type) {
	case nil:
		return &tree.ConversionError{Target: "toml", Path: path, Value: nil, Reason: "toml has no null"}
	case []any:
		for i, item := range x {
			if err := rejectNull(tree.Index(path, i), item); err != nil {
				return err
			}
		}
	case map[string]any:
		for _, k := range tree.SortedKeys(x) {
			if err := rejectNull(tree.Child(path, k), x[k]); err != nil {
				return err
			}
		}
	}
	return nil
}

// fromTOML turns the decoder's []map[string]any table arrays into []any.
func fromTOML(v any) any {
	switch x := v.(type) {
	case []map[string]any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = fromTOML(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = fromTOML(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = fromTOML(item)
		}
		return out
	}
	return v
}

func decodeTOML(r io.Reader) (any, error) {
	var doc map[string]any
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return fromTOML(doc), nil
}

func encodeTOML(v any) ([]byte, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("toml document must be a table, got %s", TOMLAlgebra.Kind(v))
	}
	if err := rejectNull(tree.Root, m); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("encode toml: %w", err)
	}
	return buf.Bytes(), nil
}

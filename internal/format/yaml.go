package format

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentic-research/remolder/internal/molding"
	"github.com/agentic-research/remolder/internal/tree"
)

// YAML documents are kept as *yaml.Node so that remolders working through the
// algebra leave comments and scalar styles of untouched nodes alone.
func YAML() *Format[*yaml.Node] {
	return New[*yaml.Node]("yaml", molding.Standard[*yaml.Node](), YAMLAlgebra, decodeYAML, encodeYAML, ".yaml", ".yml")
}

// YAMLAlgebra is the tree algebra over *yaml.Node. A nil node is null.
var YAMLAlgebra tree.Algebra[*yaml.Node] = yamlAlgebra{}

type yamlAlgebra struct{}

func (yamlAlgebra) Name() string { return "yaml" }

// resolve follows document wrappers and aliases to the node holding the value.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch {
		case n.Kind == yaml.DocumentNode && len(n.Content) > 0:
			n = n.Content[0]
		case n.Kind == yaml.AliasNode && n.Alias != nil:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

func (yamlAlgebra) Kind(v *yaml.Node) tree.Kind {
	n := resolve(v)
	if n == nil {
		return tree.Null
	}
	switch n.Kind {
	case yaml.MappingNode:
		return tree.Map
	case yaml.SequenceNode:
		return tree.List
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return tree.Null
		case "!!bool":
			return tree.Bool
		case "!!int", "!!float":
			return tree.Number
		case "!!str", "!!merge":
			return tree.String
		}
	case yaml.DocumentNode:
		return tree.Null
	}
	return tree.Other
}

func (yamlAlgebra) Null() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func (yamlAlgebra) EmptyMap() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func (yamlAlgebra) Map(v *yaml.Node) (map[string]*yaml.Node, bool) {
	n := resolve(v)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, false
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out[resolve(n.Content[i]).Value] = n.Content[i+1]
	}
	return out, true
}

func (yamlAlgebra) List(v *yaml.Node) ([]*yaml.Node, bool) {
	n := resolve(v)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil, false
	}
	return append([]*yaml.Node(nil), n.Content...), true
}

func (a yamlAlgebra) CreateMap(entries map[string]*yaml.Node) (*yaml.Node, error) {
	m := a.EmptyMap()
	for _, k := range tree.SortedKeys(entries) {
		v := entries[k]
		if v == nil {
			v = a.Null()
		}
		m.Content = append(m.Content, stringNode(k), v)
	}
	return m, nil
}

func (a yamlAlgebra) CreateList(items []*yaml.Node) (*yaml.Node, error) {
	s := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, v := range items {
		if v == nil {
			v = a.Null()
		}
		s.Content = append(s.Content, v)
	}
	return s, nil
}

func (a yamlAlgebra) ToInterchange(v *yaml.Node) (any, error) {
	return a.toInterchange(tree.Root, v)
}

func (a yamlAlgebra) toInterchange(path string, v *yaml.Node) (any, error) {
	n := resolve(v)
	switch a.Kind(n) {
	case tree.Null:
		return nil, nil
	case tree.Map:
		entries, _ := a.Map(n)
		out := make(map[string]any, len(entries))
		for k, item := range entries {
			x, err := a.toInterchange(tree.Child(path, k), item)
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil
	case tree.List:
		items, _ := a.List(n)
		out := make([]any, len(items))
		for i, item := range items {
			x, err := a.toInterchange(tree.Index(path, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case tree.Bool, tree.Number, tree.String:
		if n.ShortTag() == "!!merge" {
			return n.Value, nil
		}
		var x any
		if err := n.Decode(&x); err != nil {
			return nil, &tree.ConversionError{Target: "interchange", Path: path, Value: n.Value, Reason: err.Error()}
		}
		if f, ok := x.(float64); ok {
			if err := tree.CheckExact(path, n.Value, f); err != nil {
				return nil, err
			}
		}
		out, err := tree.Normalize(x)
		if err != nil {
			return nil, &tree.ConversionError{Target: "interchange", Path: path, Value: n.Value, Reason: err.Error()}
		}
		return out, nil
	}
	return nil, &tree.ConversionError{Target: "interchange", Path: path, Value: n.Value, Reason: "yaml tag " + n.ShortTag()}
}

// stringNode quotes "<<" so it does not read back as a merge key.
func stringNode(s string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	if s == "<<" {
		n.Style = yaml.DoubleQuotedStyle
	}
	return n
}

func (a yamlAlgebra) FromInterchange(v any) (*yaml.Node, error) {
	return a.fromInterchange(tree.Root, v)
}

func (a yamlAlgebra) fromInterchange(path string, v any) (*yaml.Node, error) {
	switch x := v.(type) {
	case nil:
		return a.Null(), nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(x)}, nil
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(x, 10)}, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, &tree.ConversionError{Target: "yaml", Path: path, Value: x, Reason: "not a finite number"}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatYAMLFloat(x)}, nil
	case string:
		return stringNode(x), nil
	case []any:
		items := make([]*yaml.Node, len(x))
		for i, item := range x {
			n, err := a.fromInterchange(tree.Index(path, i), item)
			if err != nil {
				return nil, err
			}
			items[i] = n
		}
		return a.CreateList(items)
	case map[string]any:
		entries := make(map[string]*yaml.Node, len(x))
		for k, item := range x {
			n, err := a.fromInterchange(tree.Child(path, k), item)
			if err != nil {
				return nil, err
			}
			entries[k] = n
		}
		return a.CreateMap(entries)
	}
	n, err := tree.Normalize(v)
	if err != nil {
		return nil, err
	}
	return a.fromInterchange(path, n)
}

// formatYAMLFloat keeps a fractional part so integral floats stay floats.
func formatYAMLFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func decodeYAML(r io.Reader) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, tree.ErrEmptyDocument
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, tree.ErrEmptyDocument
	}
	return doc.Content[0], nil
}

func encodeYAML(v *yaml.Node) ([]byte, error) {
	if v == nil {
		v = YAMLAlgebra.Null()
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

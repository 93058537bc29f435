package format

import (
	"fmt"
	"io"
	"math"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/agentic-research/remolder/internal/molding"
	"github.com/agentic-research/remolder/internal/tree"
)

// HCL documents are attribute-only bodies, such as tfvars files. Each
// attribute must be a literal expression; blocks and variable references are
// decode errors.
func HCL() *Format[cty.Value] {
	return New[cty.Value]("hcl", molding.Standard[cty.Value](), HCLAlgebra, decodeHCL, encodeHCL, ".hcl", ".tfvars")
}

// HCLAlgebra is the tree algebra over cty values.
var HCLAlgebra tree.Algebra[cty.Value] = hclAlgebra{}

type hclAlgebra struct{}

func (hclAlgebra) Name() string { return "hcl" }

func (hclAlgebra) Kind(v cty.Value) tree.Kind {
	if v.IsMarked() {
		return tree.Other
	}
	if v.IsNull() {
		return tree.Null
	}
	if !v.IsWhollyKnown() {
		return tree.Other
	}
	t := v.Type()
	switch {
	case t == cty.Bool:
		return tree.Bool
	case t == cty.Number:
		return tree.Number
	case t == cty.String:
		return tree.String
	case t.IsObjectType() || t.IsMapType():
		return tree.Map
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		return tree.List
	}
	return tree.Other
}

func (hclAlgebra) Null() cty.Value     { return cty.NullVal(cty.DynamicPseudoType) }
func (hclAlgebra) EmptyMap() cty.Value { return cty.EmptyObjectVal }

func (a hclAlgebra) Map(v cty.Value) (map[string]cty.Value, bool) {
	if a.Kind(v) != tree.Map {
		return nil, false
	}
	out := v.AsValueMap()
	if out == nil {
		out = map[string]cty.Value{}
	}
	return out, true
}

func (a hclAlgebra) List(v cty.Value) ([]cty.Value, bool) {
	if a.Kind(v) != tree.List {
		return nil, false
	}
	out := v.AsValueSlice()
	if out == nil {
		out = []cty.Value{}
	}
	return out, true
}

func (a hclAlgebra) CreateMap(entries map[string]cty.Value) (cty.Value, error) {
	attrs := make(map[string]cty.Value, len(entries))
	for k, v := range entries {
		if v.Type() == cty.NilType {
			v = a.Null()
		}
		attrs[k] = v
	}
	return cty.ObjectVal(attrs), nil
}

func (a hclAlgebra) CreateList(items []cty.Value) (cty.Value, error) {
	if len(items) == 0 {
		return cty.EmptyTupleVal, nil
	}
	vals := make([]cty.Value, len(items))
	for i, v := range items {
		if v.Type() == cty.NilType {
			v = a.Null()
		}
		vals[i] = v
	}
	return cty.TupleVal(vals), nil
}

func (a hclAlgebra) ToInterchange(v cty.Value) (any, error) {
	return a.toInterchange(tree.Root, v)
}

func (a hclAlgebra) toInterchange(path string, v cty.Value) (any, error) {
	switch a.Kind(v) {
	case tree.Null:
		return nil, nil
	case tree.Bool:
		return v.True(), nil
	case tree.String:
		return v.AsString(), nil
	case tree.Number:
		return numberToInterchange(path, v.AsBigFloat())
	case tree.Map:
		entries, _ := a.Map(v)
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
		items, _ := a.List(v)
		out := make([]any, len(items))
		for i, item := range items {
			x, err := a.toInterchange(tree.Index(path, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	}
	return nil, &tree.ConversionError{Target: "interchange", Path: path, Value: v.GoString(), Reason: "unknown or unsupported hcl value"}
}

func numberToInterchange(path string, f *big.Float) (any, error) {
	if f.IsInt() {
		if i, acc := f.Int64(); acc == big.Exact {
			return i, nil
		}
	}
	x, _ := f.Float64()
	if math.IsInf(x, 0) {
		return nil, &tree.ConversionError{Target: "interchange", Path: path, Value: f.String(), Reason: "number out of range"}
	}
	if err := tree.CheckExact(path, f.Text('g', -1), x); err != nil {
		return nil, err
	}
	return x, nil
}

func (a hclAlgebra) FromInterchange(v any) (cty.Value, error) {
	return a.fromInterchange(tree.Root, v)
}

func (a hclAlgebra) fromInterchange(path string, v any) (cty.Value, error) {
	switch x := v.(type) {
	case nil:
		return a.Null(), nil
	case bool:
		return cty.BoolVal(x), nil
	case int64:
		return cty.NumberIntVal(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return cty.NilVal, &tree.ConversionError{Target: "hcl", Path: path, Value: x, Reason: "not a finite number"}
		}
		return cty.NumberFloatVal(x), nil
	case string:
		return cty.StringVal(x), nil
	case []any:
		items := make([]cty.Value, len(x))
		for i, item := range x {
			c, err := a.fromInterchange(tree.Index(path, i), item)
			if err != nil {
				return cty.NilVal, err
			}
			items[i] = c
		}
		return a.CreateList(items)
	case map[string]any:
		entries := make(map[string]cty.Value, len(x))
		for k, item := range x {
			c, err := a.fromInterchange(tree.Child(path, k), item)
			if err != nil {
				return cty.NilVal, err
			}
			entries[k] = c
		}
		return a.CreateMap(entries)
	}
	n, err := tree.Normalize(v)
	if err != nil {
		return cty.NilVal, err
	}
	return a.fromInterchange(path, n)
}

func decodeHCL(r io.Reader) (cty.Value, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return cty.NilVal, fmt.Errorf("read: %w", err)
	}
	file, diags := hclsyntax.ParseConfig(src, "document.hcl", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("parse hcl: %w", diags)
	}
	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("parse hcl: %w", diags)
	}
	vals := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return cty.NilVal, fmt.Errorf("evaluate %s: %w", name, diags)
		}
		vals[name] = v
	}
	return cty.ObjectVal(vals), nil
}

func encodeHCL(v cty.Value) ([]byte, error) {
	attrs, ok := HCLAlgebra.Map(v)
	if !ok {
		return nil, fmt.Errorf("hcl document must be an object, got %s", HCLAlgebra.Kind(v))
	}
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	for _, name := range tree.SortedKeys(attrs) {
		if !hclsyntax.ValidIdentifier(name) {
			return nil, &tree.ConversionError{Target: "hcl", Path: tree.Child(tree.Root, name), Value: name, Reason: "attribute name is not an identifier"}
		}
		if _, err := HCLAlgebra.ToInterchange(attrs[name]); err != nil {
			return nil, err
		}
		body.SetAttributeValue(name, attrs[name])
	}
	return hclwrite.Format(f.Bytes()), nil
}

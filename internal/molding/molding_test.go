package molding

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/remolder/internal/tree"
)

func mold(t *testing.T, kind string, params map[string]any) Remolder[any] {
	t.Helper()
	r, err := Standard[any]().Mold(Definition{Name: "test", Kind: kind, Params: params})
	require.NoError(t, err)
	return r
}

func run(t *testing.T, r Remolder[any], doc, meta any) (any, any) {
	t.Helper()
	d, m, err := r.Remold(tree.Interchange, doc, meta, tree.Interchange.EmptyMap())
	require.NoError(t, err)
	return d, m
}

func TestFunc(t *testing.T) {
	r := Func[any]("upper", func(alg tree.Algebra[any], document, metadata, state any) (any, any, error) {
		assert.Equal(t, tree.Map, alg.Kind(state))
		return "replaced", metadata, nil
	})
	assert.Equal(t, "upper", r.String())
	d, m := run(t, r, map[string]any{}, map[string]any{"a": int64(1)})
	assert.Equal(t, "replaced", d)
	assert.Equal(t, map[string]any{"a": int64(1)}, m)
}

func TestPackPatterns(t *testing.T) {
	all, err := PackPatterns()
	require.NoError(t, err)
	assert.True(t, all("anything"))

	f, err := PackPatterns("mod_*", "vanilla")
	require.NoError(t, err)
	assert.True(t, f("mod_extra"))
	assert.True(t, f("vanilla"))
	assert.False(t, f("other"))

	_, err = PackPatterns("[")
	assert.Error(t, err)

	assert.True(t, Entry{}.Accepts("x"))
	assert.False(t, Entry{Packs: f}.Accepts("x"))
}

func TestKinds(t *testing.T) {
	k := Standard[any]()
	assert.Equal(t, []string{"jsonpath", "lua", "merge"}, k.Names())

	_, err := k.Mold(Definition{Kind: "nope"})
	var defErr *DefinitionError
	require.True(t, errors.As(err, &defErr))
	assert.Equal(t, "nope", defErr.Definition)

	_, err = k.Mold(Definition{Name: "named", Kind: "jsonpath", Params: map[string]any{"op": "set"}})
	require.True(t, errors.As(err, &defErr))
	assert.Equal(t, "named", defErr.Definition)
	assert.ErrorContains(t, err, `missing "path"`)
}

func TestJSONPath_Definitions(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		errMsg string
	}{
		{"unknown op", map[string]any{"op": "explode", "path": "$.a"}, "unknown op"},
		{"bad path", map[string]any{"op": "set", "path": "$.a[1"}, "invalid jsonpath"},
		{"bad target", map[string]any{"op": "set", "path": "$.a", "target": "sidecar"}, "target must be"},
		{"merge non-map", map[string]any{"op": "merge", "path": "$", "value": 3}, "merge value must be a map"},
		{"path not string", map[string]any{"op": "set", "path": 3}, "must be a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Standard[any]().Mold(Definition{Kind: "jsonpath", Params: tt.params})
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestJSONPath_Set(t *testing.T) {
	r := mold(t, "jsonpath", map[string]any{"op": "set", "path": "$.b", "value": []any{1, "x"}})
	in := map[string]any{"a": int64(1)}
	d, _ := run(t, r, in, nil)
	assert.True(t, tree.Equal(map[string]any{"a": int64(1), "b": []any{int64(1), "x"}}, d))
	assert.Equal(t, map[string]any{"a": int64(1)}, in, "input must not be mutated")
}

func TestJSONPath_SetRoot(t *testing.T) {
	r := mold(t, "jsonpath", map[string]any{"op": "set", "path": "$", "value": map[string]any{"fresh": true}})
	d, _ := run(t, r, []any{"old"}, nil)
	assert.Equal(t, map[string]any{"fresh": true}, d)
}

func TestJSONPath_Delete(t *testing.T) {
	r := mold(t, "jsonpath", map[string]any{"op": "delete", "path": "$.secret"})
	d, _ := run(t, r, map[string]any{"secret": "x", "keep": int64(1)}, nil)
	assert.Equal(t, map[string]any{"keep": int64(1)}, d)
}

func TestJSONPath_Append(t *testing.T) {
	r := mold(t, "jsonpath", map[string]any{"op": "append", "path": "$.items", "value": "b"})

	d, _ := run(t, r, map[string]any{"items": []any{"a"}}, nil)
	assert.Equal(t, map[string]any{"items": []any{"a", "b"}}, d)

	d, _ = run(t, r, map[string]any{}, nil)
	assert.Equal(t, map[string]any{"items": []any{"b"}}, d)

	_, _, err := r.Remold(tree.Interchange, map[string]any{"items": "scalar"}, nil, nil)
	assert.ErrorContains(t, err, "not a list")
}

func TestJSONPath_Merge(t *testing.T) {
	r := mold(t, "jsonpath", map[string]any{
		"op":    "merge",
		"path":  "$.cfg",
		"value": map[string]any{"b": 2, "nested": map[string]any{"y": true}, "gone": nil},
	})
	in := map[string]any{"cfg": map[string]any{"a": int64(1), "gone": "x", "nested": map[string]any{"x": false}}}
	d, _ := run(t, r, in, nil)
	want := map[string]any{"cfg": map[string]any{
		"a":      int64(1),
		"b":      int64(2),
		"nested": map[string]any{"x": false, "y": true},
	}}
	assert.True(t, tree.Equal(want, d), "got %v", d)
}

func TestJSONPath_MetadataTarget(t *testing.T) {
	set := mold(t, "jsonpath", map[string]any{"op": "set", "path": "$.tag", "value": "v", "target": "metadata"})
	d, m := run(t, set, map[string]any{"doc": true}, nil)
	assert.Equal(t, map[string]any{"doc": true}, d)
	assert.Equal(t, map[string]any{"tag": "v"}, m)

	clear := mold(t, "jsonpath", map[string]any{"op": "delete", "path": "$", "target": "metadata"})
	_, m = run(t, clear, d, m)
	assert.Nil(t, m)
}

func TestMerge(t *testing.T) {
	r := mold(t, "merge", map[string]any{"value": map[string]any{
		"added":  "x",
		"nested": map[string]any{"inner": 2},
		"drop":   nil,
	}})
	in := map[string]any{"nested": map[string]any{"keep": true}, "drop": int64(1)}
	d, _ := run(t, r, in, nil)
	want := map[string]any{"added": "x", "nested": map[string]any{"keep": true, "inner": int64(2)}}
	assert.True(t, tree.Equal(want, d), "got %v", d)

	// Metadata starts absent and becomes a map.
	meta := mold(t, "merge", map[string]any{"target": "metadata", "value": map[string]any{"a": 1}})
	_, m := run(t, meta, in, nil)
	assert.True(t, tree.Equal(map[string]any{"a": int64(1)}, m))

	_, _, err := r.Remold(tree.Interchange, []any{}, nil, nil)
	assert.ErrorContains(t, err, "not a map")

	_, err = Standard[any]().Mold(Definition{Kind: "merge", Params: map[string]any{"value": "x"}})
	assert.ErrorContains(t, err, "value must be a map")
}

func TestLua(t *testing.T) {
	r := mold(t, "lua", map[string]any{"script": `
function remold(document, metadata)
  table.insert(document.items, "c")
  document.count = #document.items
  return document, { source = "lua" }
end
`})
	d, m := run(t, r, map[string]any{"items": []any{"a", "b"}}, nil)
	assert.True(t, tree.Equal(map[string]any{"items": []any{"a", "b", "c"}, "count": int64(3)}, d), "got %v", d)
	assert.Equal(t, map[string]any{"source": "lua"}, m)
}

func TestLua_ClearsMetadata(t *testing.T) {
	r := mold(t, "lua", map[string]any{"script": `function remold(d, m) return d, nil end`})
	_, m := run(t, r, map[string]any{}, map[string]any{"a": int64(1)})
	assert.Nil(t, m)
}

func TestLua_SingleReturnKeepsMetadata(t *testing.T) {
	r := mold(t, "lua", map[string]any{"script": `function remold(d, m) d.x = 1 return d end`})
	d, m := run(t, r, map[string]any{}, map[string]any{"a": int64(1)})
	assert.Equal(t, map[string]any{"x": int64(1)}, d)
	assert.Equal(t, map[string]any{"a": int64(1)}, m)

	none := mold(t, "lua", map[string]any{"script": `function remold(d, m) end`})
	_, _, err := none.Remold(tree.Interchange, map[string]any{}, nil, nil)
	assert.ErrorContains(t, err, "returned no document")
}

func TestLua_Integers(t *testing.T) {
	r := mold(t, "lua", map[string]any{"script": `function remold(d, m) return d, m end`})
	d, _ := run(t, r, map[string]any{"n": int64(1 << 53), "neg": int64(-(1 << 53))}, nil)
	assert.Equal(t, map[string]any{"n": int64(1 << 53), "neg": int64(-(1 << 53))}, d)

	_, _, err := r.Remold(tree.Interchange, map[string]any{"ids": []any{int64(1<<53 + 1)}}, nil, nil)
	var conv *tree.ConversionError
	require.True(t, errors.As(err, &conv), "got %v", err)
	assert.Equal(t, "$.ids[0]", conv.Path)
}

func TestLua_NoFileAccess(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secret.lua")
	require.NoError(t, os.WriteFile(secret, []byte(`return "hunter2"`), 0o600))

	for _, fn := range []string{"dofile", "loadfile"} {
		t.Run(fn, func(t *testing.T) {
			r := mold(t, "lua", map[string]any{"script": `
function remold(d, m)
  d.leak = ` + fn + `("` + filepath.ToSlash(secret) + `")
  return d, m
end
`})
			doc := map[string]any{}
			got, _, err := r.Remold(tree.Interchange, doc, nil, nil)
			require.Error(t, err)
			assert.Equal(t, doc, got)
		})
	}

	// load still compiles strings.
	r := mold(t, "lua", map[string]any{"script": `function remold(d, m) d.v = load("return 7")() return d, m end`})
	d, _ := run(t, r, map[string]any{}, nil)
	assert.Equal(t, map[string]any{"v": int64(7)}, d)
}

func TestLua_Errors(t *testing.T) {
	_, err := Standard[any]().Mold(Definition{Kind: "lua", Params: map[string]any{"script": "function ("}})
	assert.ErrorContains(t, err, "load lua")

	noFn := mold(t, "lua", map[string]any{"script": `x = 1`})
	_, _, err = noFn.Remold(tree.Interchange, map[string]any{}, nil, nil)
	assert.ErrorContains(t, err, "must define function remold")

	raises := mold(t, "lua", map[string]any{"script": `function remold(d, m) error("boom") end`})
	_, _, err = raises.Remold(tree.Interchange, map[string]any{}, nil, nil)
	assert.ErrorContains(t, err, "boom")

	sandboxed := mold(t, "lua", map[string]any{"script": `function remold(d, m) return os.getenv("HOME"), m end`})
	_, _, err = sandboxed.Remold(tree.Interchange, map[string]any{}, nil, nil)
	assert.Error(t, err)
}

package molding

import (
	"fmt"
	"math"

	"github.com/Shopify/go-lua"

	"github.com/agentic-research/remolder/internal/tree"
)

const luaEntryPoint = "remold"

type luaRemolder[T any] struct {
	name   string
	script string
}

// Lua builds a remolder from params "script": Lua source defining a global
// function remold(document, metadata) that returns the new document and
// metadata. Returning only a document keeps the metadata; an explicit nil
// second value clears it. Tables keyed 1..n come back as lists, all other
// tables as maps, so an empty list round-trips as an empty map. Lua numbers
// are doubles, so integers beyond 2^53 are rejected rather than rounded.
func Lua[T any](def Definition) (Remolder[T], error) {
	script, err := stringParam(def, "script", true)
	if err != nil {
		return nil, err
	}
	l := newLuaState()
	if err := lua.LoadString(l, script); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	return &luaRemolder[T]{name: def.String(), script: script}, nil
}

func (r *luaRemolder[T]) String() string {
	return fmt.Sprintf("%s(lua)", r.name)
}

func (r *luaRemolder[T]) Remold(alg tree.Algebra[T], document, metadata, _ T) (T, T, error) {
	doc, err := alg.ToInterchange(document)
	if err != nil {
		return document, metadata, err
	}
	meta, err := alg.ToInterchange(metadata)
	if err != nil {
		return document, metadata, err
	}

	l := newLuaState()
	if err := lua.DoString(l, r.script); err != nil {
		return document, metadata, fmt.Errorf("run lua: %w", err)
	}
	l.Global(luaEntryPoint)
	if !l.IsFunction(-1) {
		l.Pop(1)
		return document, metadata, fmt.Errorf("lua script must define function %s", luaEntryPoint)
	}
	base := l.Top() - 1
	if err := pushLua(l, tree.Root, doc); err != nil {
		return document, metadata, err
	}
	if err := pushLua(l, tree.Root, meta); err != nil {
		return document, metadata, err
	}
	if err := l.ProtectedCall(2, lua.MultipleReturns, 0); err != nil {
		return document, metadata, fmt.Errorf("call %s: %w", luaEntryPoint, err)
	}
	results := l.Top() - base
	if results == 0 {
		return document, metadata, fmt.Errorf("%s returned no document", luaEntryPoint)
	}
	outDoc := luaToGo(l, base+1)
	var outMeta any
	if results > 1 {
		outMeta = luaToGo(l, base+2)
	}
	l.SetTop(base)

	d, err := alg.FromInterchange(outDoc)
	if err != nil {
		return document, metadata, err
	}
	if results == 1 {
		return d, metadata, nil
	}
	m, err := alg.FromInterchange(outMeta)
	if err != nil {
		return document, metadata, err
	}
	return d, m, nil
}

// fileLoaders are base library functions that read the host filesystem.
var fileLoaders = []string{"dofile", "loadfile"}

// newLuaState opens only the pure libraries; scripts get no io or os access
// and cannot load chunks from files.
func newLuaState() *lua.State {
	l := lua.NewState()
	for _, lib := range []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "table", Function: lua.TableOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "math", Function: lua.MathOpen},
	} {
		lua.Require(l, lib.Name, lib.Function, true)
		l.Pop(1)
	}
	for _, name := range fileLoaders {
		l.PushNil()
		l.SetGlobal(name)
	}
	return l
}

func pushLua(l *lua.State, path string, v any) error {
	switch x := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(x)
	case int64:
		if x > maxExactLuaInt || x < -maxExactLuaInt {
			return &tree.ConversionError{Target: "lua", Path: path, Value: x, Reason: "integer exceeds 2^53"}
		}
		l.PushNumber(float64(x))
	case float64:
		l.PushNumber(x)
	case string:
		l.PushString(x)
	case []any:
		l.CreateTable(len(x), 0)
		for i, item := range x {
			if err := pushLua(l, tree.Index(path, i), item); err != nil {
				l.Pop(1)
				return err
			}
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		l.CreateTable(0, len(x))
		for _, k := range tree.SortedKeys(x) {
			if err := pushLua(l, tree.Child(path, k), x[k]); err != nil {
				l.Pop(1)
				return err
			}
			l.SetField(-2, k)
		}
	default:
		return &tree.ConversionError{Target: "lua", Path: path, Value: x}
	}
	return nil
}

func luaToGo(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(l, index)
	default:
		return nil
	}
}

func tableToGo(l *lua.State, index int) any {
	index = l.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	l.PushNil()
	for l.Next(index) {
		if isArray {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := l.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		l.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.RawGetInt(index, i)
			result = append(result, luaToGo(l, -1))
			l.Pop(1)
		}
		return result
	}

	output := map[string]any{}
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			output[key] = luaToGo(l, -1)
		}
		l.Pop(1)
	}
	return output
}

// maxExactLuaInt is the largest integer a Lua number holds exactly.
const maxExactLuaInt = 1 << 53

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 && math.Abs(value) <= maxExactLuaInt {
		return int64(value)
	}
	return value
}

// Package molding defines remolders, the data-driven transformations applied
// to documents, and the handlers that build them from definitions.
//
// A Remolder[T] rewrites a document and its metadata through a
// tree.Algebra[T], so the same remolder kind works for every format. Entries
// carry remolders in type-erased form; the engine recovers the typed
// Remolder[T] for the format it is running.
package molding

import (
	"fmt"
	"path"
	"sort"

	"github.com/agentic-research/remolder/internal/tree"
)

// Transformation is the type-erased form of a Remolder[T].
type Transformation interface {
	String() string
}

// Remolder rewrites a document and its metadata. Metadata is absent when it
// is the algebra's null; returning null clears it. state is an empty map
// shared by every remolder in one chain invocation.
type Remolder[T any] interface {
	Transformation
	Remold(alg tree.Algebra[T], document, metadata, state T) (T, T, error)
}

// RemoldFunc is the signature of a function-backed remolder.
type RemoldFunc[T any] func(alg tree.Algebra[T], document, metadata, state T) (T, T, error)

type funcRemolder[T any] struct {
	name string
	fn   RemoldFunc[T]
}

// Func wraps fn as a named Remolder.
func Func[T any](name string, fn RemoldFunc[T]) Remolder[T] {
	return &funcRemolder[T]{name: name, fn: fn}
}

func (f *funcRemolder[T]) String() string { return f.name }

func (f *funcRemolder[T]) Remold(alg tree.Algebra[T], document, metadata, state T) (T, T, error) {
	return f.fn(alg, document, metadata, state)
}

// PackFilter decides whether an entry applies to resources from a pack.
type PackFilter func(pack string) bool

// AnyPack accepts every pack.
func AnyPack(string) bool { return true }

// PackPatterns accepts packs matching any of the path.Match patterns. With no
// patterns it accepts every pack.
func PackPatterns(patterns ...string) (PackFilter, error) {
	if len(patterns) == 0 {
		return AnyPack, nil
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("pack pattern %q: %w", p, err)
		}
	}
	ps := append([]string(nil), patterns...)
	return func(pack string) bool {
		for _, p := range ps {
			if ok, _ := path.Match(p, pack); ok {
				return true
			}
		}
		return false
	}, nil
}

// Entry pairs a transformation with the packs it applies to.
type Entry struct {
	Transformation Transformation
	// Packs filters on the source pack; nil accepts every pack.
	Packs PackFilter
}

// Accepts reports whether the entry applies to resources from pack.
func (e Entry) Accepts(pack string) bool {
	return e.Packs == nil || e.Packs(pack)
}

// Definition is the data-driven description of one remolder.
type Definition struct {
	// Name labels the remolder in diagnostics; Kind is used when empty.
	Name   string
	Kind   string
	Params map[string]any
}

func (d Definition) String() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Kind
}

// DefinitionError reports a definition that cannot be molded.
type DefinitionError struct {
	Definition string
	Err        error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("remolder %s: %v", e.Definition, e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// Molding builds remolders for one document representation.
type Molding[T any] interface {
	Mold(def Definition) (Remolder[T], error)
}

// Factory builds one kind of remolder.
type Factory[T any] func(def Definition) (Remolder[T], error)

// Kinds is a Molding that dispatches on Definition.Kind.
type Kinds[T any] struct {
	factories map[string]Factory[T]
}

// NewKinds returns an empty kind table.
func NewKinds[T any]() *Kinds[T] {
	return &Kinds[T]{factories: make(map[string]Factory[T])}
}

// Standard returns the built-in kinds: jsonpath, merge and lua.
func Standard[T any]() *Kinds[T] {
	return NewKinds[T]().
		With("jsonpath", JSONPath[T]).
		With("merge", Merge[T]).
		With("lua", Lua[T])
}

// With adds or replaces a kind and returns k for chaining.
func (k *Kinds[T]) With(kind string, f Factory[T]) *Kinds[T] {
	k.factories[kind] = f
	return k
}

// Names lists the known kinds.
func (k *Kinds[T]) Names() []string {
	names := make([]string, 0, len(k.factories))
	for n := range k.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Mold implements Molding.
func (k *Kinds[T]) Mold(def Definition) (Remolder[T], error) {
	f, ok := k.factories[def.Kind]
	if !ok {
		return nil, &DefinitionError{Definition: def.String(), Err: fmt.Errorf("unknown kind %q", def.Kind)}
	}
	r, err := f(def)
	if err != nil {
		return nil, &DefinitionError{Definition: def.String(), Err: err}
	}
	return r, nil
}

// Package tree defines the algebra every document format implements so that
// transformations can be written once and run against any representation.
//
// Each format picks a concrete Go type T for its tree values (any, *yaml.Node,
// cty.Value, ...) and provides an Algebra[T] over it. Values move between
// formats through the interchange representation: nil, bool, int64, float64,
// string, []any and map[string]any. There are no pairwise converters.
package tree

import (
	"fmt"
	"strconv"
)

// Kind classifies a tree value independently of its representation.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	List
	Map
	// Other is a value the format can hold but the portable subset cannot,
	// such as a TOML datetime or a YAML scalar with a custom tag.
	Other
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return "other"
	}
}

// Algebra is the set of operations the remolding pipeline needs from a
// representation. Implementations must treat values as immutable: Map and
// List return views the caller may not modify, and Create* build new values.
type Algebra[T any] interface {
	// Name identifies the representation in diagnostics.
	Name() string
	Kind(v T) Kind
	Null() T
	EmptyMap() T
	// Map returns the entries of a map value, or false for any other kind.
	Map(v T) (map[string]T, bool)
	// List returns the items of a list value, or false for any other kind.
	List(v T) ([]T, bool)
	CreateMap(entries map[string]T) (T, error)
	CreateList(items []T) (T, error)
	// ToInterchange converts v into the interchange representation.
	ToInterchange(v T) (any, error)
	// FromInterchange converts an interchange value into this representation.
	FromInterchange(v any) (T, error)
}

// Convert moves a value between two representations through the interchange
// format.
func Convert[A, B any](from Algebra[A], to Algebra[B], v A) (B, error) {
	var zero B
	mid, err := from.ToInterchange(v)
	if err != nil {
		return zero, err
	}
	out, err := to.FromInterchange(mid)
	if err != nil {
		return zero, err
	}
	return out, nil
}

// IsNull reports whether v is the null value of alg.
func IsNull[T any](alg Algebra[T], v T) bool {
	return alg.Kind(v) == Null
}

// ConversionError reports a value that a representation cannot express.
type ConversionError struct {
	// Target is the algebra that rejected the value.
	Target string
	// Path locates the value inside the document, e.g. "$.a[2]".
	Path  string
	Value any
	// Reason is optional detail about why the value was rejected.
	Reason string
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("%s cannot represent %s (%T %v)", e.Target, e.Path, e.Value, e.Value)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Root is the path of a document root.
const Root = "$"

// Child appends a map key to a path.
func Child(path, key string) string {
	if isIdent(key) {
		return path + "." + key
	}
	return path + "[" + strconv.Quote(key) + "]"
}

// Index appends a list index to a path.
func Index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

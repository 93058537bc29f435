// Package format holds the format registry and the concrete document formats.
//
// A Format[T] bundles everything the engine needs for one serialization: the
// tree algebra over its representation T, decode and encode functions, the
// handler that molds remolder definitions, and the file extensions that select
// it. Formats are registered on a Builder during startup; Freeze turns the
// builder into an immutable Registry that is safe for concurrent lookups.
package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/agentic-research/remolder/internal/molding"
	"github.com/agentic-research/remolder/internal/remold"
	"github.com/agentic-research/remolder/internal/resource"
	"github.com/agentic-research/remolder/internal/tree"
)

// DecodeFunc parses raw content into a document.
type DecodeFunc[T any] func(r io.Reader) (T, error)

// EncodeFunc serializes a document.
type EncodeFunc[T any] func(v T) ([]byte, error)

// Descriptor is the type-erased view of a registered format.
type Descriptor interface {
	Name() string
	// Extensions are lower case with a leading dot.
	Extensions() []string
	// Mold builds a transformation for this format from a definition.
	Mold(def molding.Definition) (molding.Transformation, error)
	// Remold runs the engine and logs failures; it always returns a usable
	// resource.
	Remold(logger hclog.Logger, location string, res resource.Resource, entries []molding.Entry) resource.Resource
	// TryRemold runs the engine and reports failures.
	TryRemold(location string, res resource.Resource, entries []molding.Entry) (resource.Resource, error)
}

// Format is a document format over representation T.
type Format[T any] struct {
	name       string
	molding    molding.Molding[T]
	algebra    tree.Algebra[T]
	decode     DecodeFunc[T]
	encode     EncodeFunc[T]
	extensions []string
}

var _ Descriptor = (*Format[any])(nil)

// New builds a format. Extensions are normalized to lower case with a
// leading dot.
func New[T any](name string, m molding.Molding[T], alg tree.Algebra[T], decode DecodeFunc[T], encode EncodeFunc[T], extensions ...string) *Format[T] {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		exts = append(exts, normalizeExt(e))
	}
	return &Format[T]{
		name:       name,
		molding:    m,
		algebra:    alg,
		decode:     decode,
		encode:     encode,
		extensions: exts,
	}
}

func (f *Format[T]) Name() string { return f.name }

func (f *Format[T]) Extensions() []string {
	return append([]string(nil), f.extensions...)
}

// Algebra implements remold.Codec.
func (f *Format[T]) Algebra() tree.Algebra[T] { return f.algebra }

// Decode implements remold.Codec. A panicking decoder is reported as an
// error.
func (f *Format[T]) Decode(r io.Reader) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s decoder panic: %v", f.name, p)
		}
	}()
	return f.decode(r)
}

// Encode implements remold.Codec.
func (f *Format[T]) Encode(v T) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s encoder panic: %v", f.name, p)
		}
	}()
	return f.encode(v)
}

// MoldTyped builds a typed remolder for this format.
func (f *Format[T]) MoldTyped(def molding.Definition) (molding.Remolder[T], error) {
	if f.molding == nil {
		return nil, &molding.DefinitionError{Definition: def.String(), Err: fmt.Errorf("format %s has no remolder kinds", f.name)}
	}
	return f.molding.Mold(def)
}

func (f *Format[T]) Mold(def molding.Definition) (molding.Transformation, error) {
	r, err := f.MoldTyped(def)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (f *Format[T]) Remold(logger hclog.Logger, location string, res resource.Resource, entries []molding.Entry) resource.Resource {
	return remold.Apply[T](logger, f, location, res, entries)
}

func (f *Format[T]) TryRemold(location string, res resource.Resource, entries []molding.Entry) (resource.Resource, error) {
	return remold.Try[T](f, location, res, entries)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

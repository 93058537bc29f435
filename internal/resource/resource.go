// Package resource models the opaque artifacts the remolding pipeline reads
// and produces: a byte stream, the pack that supplied it, and an optional
// metadata block.
package resource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Opener opens a fresh stream over a resource's content. Callers must close
// the returned reader.
type Opener func() (io.ReadCloser, error)

// MetadataOpener loads a resource's metadata block. It returns nil, nil when
// the resource has none.
type MetadataOpener func() (*Metadata, error)

// Resource is immutable once constructed.
type Resource struct {
	pack     string
	open     Opener
	metadata MetadataOpener
}

// Option configures a Resource at construction.
type Option func(*Resource)

// WithMetadata attaches an already parsed metadata block.
func WithMetadata(md *Metadata) Option {
	return func(r *Resource) {
		if md == nil {
			r.metadata = nil
			return
		}
		r.metadata = func() (*Metadata, error) { return md, nil }
	}
}

// WithMetadataOpener attaches a lazily loaded metadata block.
func WithMetadataOpener(fn MetadataOpener) Option {
	return func(r *Resource) { r.metadata = fn }
}

// New builds a resource supplied by pack.
func New(pack string, open Opener, opts ...Option) Resource {
	r := Resource{pack: pack, open: open}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// FromBytes builds a resource whose every Open returns a new reader over data.
func FromBytes(pack string, data []byte, opts ...Option) Resource {
	return New(pack, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, opts...)
}

// Pack is the identifier of the pack that supplied the resource.
func (r Resource) Pack() string { return r.pack }

// Open opens the content stream.
func (r Resource) Open() (io.ReadCloser, error) {
	if r.open == nil {
		return nil, errors.New("resource has no content")
	}
	return r.open()
}

// ReadAll opens, fully consumes and closes the content stream.
func (r Resource) ReadAll() ([]byte, error) {
	rc, err := r.Open()
	if err != nil {
		return nil, fmt.Errorf("open resource: %w", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read resource: %w", err)
	}
	return data, nil
}

// HasMetadata reports whether a metadata block is attached, without loading it.
func (r Resource) HasMetadata() bool { return r.metadata != nil }

// Metadata loads the attached metadata block, or returns nil when there is
// none.
func (r Resource) Metadata() (*Metadata, error) {
	if r.metadata == nil {
		return nil, nil
	}
	return r.metadata()
}

package format

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/agentic-research/remolder/internal/molding"
	"github.com/agentic-research/remolder/internal/tree"
)

// ErrFrozen is returned when registering on a builder that has been frozen.
var ErrFrozen = errors.New("format registry is frozen")

// ConflictError reports a format name or extension registered twice.
type ConflictError struct {
	Name string
	// Extension is set when the conflict is on an extension rather than
	// the name.
	Extension string
	Existing  string
}

func (e *ConflictError) Error() string {
	if e.Extension != "" {
		return fmt.Sprintf("format %s: extension %s already registered by %s", e.Name, e.Extension, e.Existing)
	}
	return fmt.Sprintf("format %s already registered", e.Name)
}

// Builder collects formats during startup. Registration is serialized.
type Builder struct {
	mu     sync.Mutex
	frozen bool
	names  map[string]Descriptor
	exts   map[string]Descriptor
	order  []Descriptor
}

// NewBuilder returns a builder with the built-in JSON format registered.
func NewBuilder() *Builder {
	b := &Builder{
		names: make(map[string]Descriptor),
		exts:  make(map[string]Descriptor),
	}
	if err := b.Register(JSON()); err != nil {
		panic(err)
	}
	return b
}

// Register adds d. It fails with a *ConflictError when the name or any
// extension is taken, in which case nothing is registered.
func (b *Builder) Register(d Descriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return ErrFrozen
	}
	if d == nil || d.Name() == "" {
		return errors.New("format has no name")
	}
	exts := d.Extensions()
	if len(exts) == 0 {
		return fmt.Errorf("format %s has no extensions", d.Name())
	}
	if existing, ok := b.names[d.Name()]; ok {
		return &ConflictError{Name: d.Name(), Existing: existing.Name()}
	}
	seen := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if ext == "" || ext == "." {
			return fmt.Errorf("format %s has an empty extension", d.Name())
		}
		if existing, ok := b.exts[ext]; ok {
			return &ConflictError{Name: d.Name(), Extension: ext, Existing: existing.Name()}
		}
		if seen[ext] {
			return &ConflictError{Name: d.Name(), Extension: ext, Existing: d.Name()}
		}
		seen[ext] = true
	}

	b.names[d.Name()] = d
	for _, ext := range exts {
		b.exts[ext] = d
	}
	b.order = append(b.order, d)
	return nil
}

// Register builds a format and adds it to b.
func Register[T any](b *Builder, name string, m molding.Molding[T], alg tree.Algebra[T], decode DecodeFunc[T], encode EncodeFunc[T], extensions ...string) (*Format[T], error) {
	f := New(name, m, alg, decode, encode, extensions...)
	if err := b.Register(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Freeze ends the construction phase. The builder rejects further
// registrations; the returned registry never changes.
func (b *Builder) Freeze() *Registry {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true

	r := &Registry{
		names: make(map[string]Descriptor, len(b.names)),
		exts:  make(map[string]Descriptor, len(b.exts)),
		order: append([]Descriptor(nil), b.order...),
	}
	for k, v := range b.names {
		r.names[k] = v
	}
	for k, v := range b.exts {
		r.exts[k] = v
	}
	return r
}

// Registry is the immutable format table. All methods are safe for
// concurrent use without locking.
type Registry struct {
	names map[string]Descriptor
	exts  map[string]Descriptor
	order []Descriptor
}

// Lookup finds the format for an extension. Case and the leading dot are
// ignored.
func (r *Registry) Lookup(ext string) (Descriptor, bool) {
	d, ok := r.exts[normalizeExt(ext)]
	return d, ok
}

// ForPath finds the format for a location by its extension.
func (r *Registry) ForPath(location string) (Descriptor, bool) {
	ext := path.Ext(location)
	if ext == "" {
		return nil, false
	}
	return r.Lookup(ext)
}

// Format finds a format by name.
func (r *Registry) Format(name string) (Descriptor, bool) {
	d, ok := r.names[name]
	return d, ok
}

// Names lists registered format names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.names))
	for n := range r.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Descriptors lists formats in registration order.
func (r *Registry) Descriptors() []Descriptor {
	return append([]Descriptor(nil), r.order...)
}

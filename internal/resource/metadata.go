package resource

import (
	"fmt"
	"io"

	"github.com/agentic-research/remolder/internal/tree"
)

// JSONSection is the metadata section that carries remolder metadata.
const JSONSection = "json"

// Metadata is a parsed metadata block: a JSON object whose top-level keys
// name independent sections.
type Metadata struct {
	sections map[string]any
}

// NewMetadata builds a block from interchange section values.
func NewMetadata(sections map[string]any) (*Metadata, error) {
	n, err := tree.Normalize(sections)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	return &Metadata{sections: n.(map[string]any)}, nil
}

// ParseMetadata reads a metadata block from interchange text.
func ParseMetadata(r io.Reader) (*Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	v, err := tree.ParseLenient(data)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	sections, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metadata: expected an object, got %s", tree.KindOf(v))
	}
	return &Metadata{sections: sections}, nil
}

// Section returns a copy of the named section.
func (m *Metadata) Section(name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.sections[name]
	if !ok {
		return nil, false
	}
	return tree.Clone(v), true
}

// Sections lists the section names in lexical order.
func (m *Metadata) Sections() []string {
	if m == nil {
		return nil
	}
	return tree.SortedKeys(m.sections)
}

// Bytes renders the block as canonical interchange text.
func (m *Metadata) Bytes() ([]byte, error) {
	return tree.MarshalCanonical(m.sections)
}

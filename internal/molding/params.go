package molding

import (
	"fmt"

	"github.com/agentic-research/remolder/internal/tree"
)

// target selects which half of the (document, metadata) pair a remolder edits.
type target int

const (
	targetDocument target = iota
	targetMetadata
)

func (t target) String() string {
	if t == targetMetadata {
		return "metadata"
	}
	return "document"
}

func targetParam(def Definition) (target, error) {
	s, err := stringParam(def, "target", false)
	if err != nil {
		return 0, err
	}
	switch s {
	case "", "document":
		return targetDocument, nil
	case "metadata":
		return targetMetadata, nil
	}
	return 0, fmt.Errorf("target must be document or metadata, got %q", s)
}

func stringParam(def Definition, key string, required bool) (string, error) {
	v, ok := def.Params[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q must be a string, got %T", key, v)
	}
	return s, nil
}

// valueParam returns the normalized "value" parameter. A missing value is
// null.
func valueParam(def Definition) (any, error) {
	v, err := tree.Normalize(def.Params["value"])
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	return v, nil
}

// pick returns the edited half for t.
func pick[T any](t target, document, metadata T) T {
	if t == targetMetadata {
		return metadata
	}
	return document
}

// put replaces the edited half for t.
func put[T any](t target, document, metadata, v T) (T, T) {
	if t == targetMetadata {
		return document, v
	}
	return v, metadata
}

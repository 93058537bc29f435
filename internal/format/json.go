package format

import (
	"fmt"
	"io"

	"github.com/agentic-research/remolder/internal/molding"
	"github.com/agentic-research/remolder/internal/tree"
)

// JSON is the built-in interchange format. It decodes leniently and encodes
// canonically, so metadata sidecars and JSON documents share one codec.
func JSON() *Format[any] {
	return New[any]("json", molding.Standard[any](), tree.Interchange, decodeJSON, tree.MarshalCanonical, ".json", ".mcmeta")
}

func decodeJSON(r io.Reader) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return tree.ParseLenient(data)
}

// Package remold is the remolding engine: it decodes a resource, folds an
// entry chain over its document and metadata, and encodes the result into a
// new resource. A failure anywhere in the chain yields the original resource.
package remold

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/agentic-research/remolder/internal/molding"
	"github.com/agentic-research/remolder/internal/resource"
	"github.com/agentic-research/remolder/internal/tree"
)

// Codec is the per-format half of the engine.
type Codec[T any] interface {
	Algebra() tree.Algebra[T]
	Decode(r io.Reader) (T, error)
	Encode(v T) ([]byte, error)
}

// state is the value threaded through the fold.
type state[T any] struct {
	document T
	metadata T
}

// Try remolds res and reports why it could not. On error the returned
// resource is res itself.
func Try[T any](codec Codec[T], location string, res resource.Resource, entries []molding.Entry) (resource.Resource, error) {
	alg := codec.Algebra()

	doc, err := decode(codec, res)
	if err != nil {
		return res, &DecodeError{Location: location, Err: err}
	}
	meta, err := inputMetadata(alg, res)
	if err != nil {
		return res, &MetadataError{Location: location, Err: err}
	}

	final, err := fold(alg, location, res.Pack(), state[T]{document: doc, metadata: meta}, entries)
	if err != nil {
		return res, err
	}

	body, err := codec.Encode(final.document)
	if err != nil {
		return res, &EncodeError{Location: location, Err: err}
	}
	if tree.IsNull(alg, final.metadata) {
		return resource.FromBytes(res.Pack(), body), nil
	}
	md, err := outputMetadata(alg, final.metadata)
	if err != nil {
		return res, &MetadataSerializationError{Location: location, Err: err}
	}
	return resource.FromBytes(res.Pack(), body, resource.WithMetadata(md)), nil
}

// Apply is Try for callers that substitute the result transparently: errors
// are logged and the original resource is returned.
func Apply[T any](logger hclog.Logger, codec Codec[T], location string, res resource.Resource, entries []molding.Entry) resource.Resource {
	out, err := Try(codec, location, res, entries)
	if err == nil {
		return out
	}
	Report(logger, location, err)
	return res
}

// Report logs a Try failure at the level its kind deserves: decode failures
// are routine pass-throughs, everything else abandoned a chain.
func Report(logger hclog.Logger, location string, err error) {
	if err == nil {
		return
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	var (
		decErr *DecodeError
		txErr  *TransformationError
	)
	switch {
	case errors.As(err, &decErr):
		logger.Debug("resource does not decode, passing through", "location", location, "error", decErr.Err)
	case errors.As(err, &txErr):
		logger.Error("error while applying remolder", "remolder", txErr.Remolder, "error", txErr.Err)
		logger.Warn("restoring and stopping remolder data changes", "location", location)
	default:
		logger.Error("remold failed, keeping original", "location", location, "error", err)
	}
}

func decode[T any](codec Codec[T], res resource.Resource) (T, error) {
	var zero T
	rc, err := res.Open()
	if err != nil {
		return zero, err
	}
	defer func() { _ = rc.Close() }()
	return codec.Decode(rc)
}

// inputMetadata returns the resource's metadata section in the format's
// representation, or the algebra's null when there is none. A metadata block
// that cannot be loaded counts as absent.
func inputMetadata[T any](alg tree.Algebra[T], res resource.Resource) (T, error) {
	md, err := res.Metadata()
	if err != nil || md == nil {
		return alg.Null(), nil
	}
	section, ok := md.Section(resource.JSONSection)
	if !ok || section == nil {
		return alg.Null(), nil
	}
	return alg.FromInterchange(section)
}

func outputMetadata[T any](alg tree.Algebra[T], v T) (*resource.Metadata, error) {
	section, err := alg.ToInterchange(v)
	if err != nil {
		return nil, err
	}
	text, err := tree.MarshalCanonical(map[string]any{resource.JSONSection: section})
	if err != nil {
		return nil, err
	}
	return resource.ParseMetadata(bytes.NewReader(text))
}

// fold applies the accepted entries in order and stops at the first failure.
func fold[T any](alg tree.Algebra[T], location, pack string, s state[T], entries []molding.Entry) (state[T], error) {
	for i, e := range entries {
		if !e.Accepts(pack) {
			continue
		}
		next, err := step(alg, s, e.Transformation)
		if err != nil {
			return s, &TransformationError{
				Location: location,
				Remolder: name(e.Transformation),
				Index:    i,
				Err:      err,
			}
		}
		s = next
	}
	return s, nil
}

func step[T any](alg tree.Algebra[T], s state[T], t molding.Transformation) (next state[T], err error) {
	r, ok := t.(molding.Remolder[T])
	if !ok {
		return s, fmt.Errorf("does not operate on %s documents", alg.Name())
	}
	defer func() {
		if p := recover(); p != nil {
			next, err = s, fmt.Errorf("panic: %v", p)
		}
	}()
	doc, meta, err := r.Remold(alg, s.document, s.metadata, alg.EmptyMap())
	if err != nil {
		return s, err
	}
	return state[T]{document: doc, metadata: meta}, nil
}

func name(t molding.Transformation) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

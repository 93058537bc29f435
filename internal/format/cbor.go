package format

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/agentic-research/remolder/internal/molding"
	"github.com/agentic-research/remolder/internal/tree"
)

var (
	cborDec cbor.DecMode
	cborEnc cbor.EncMode
)

func init() {
	var err error
	cborDec, err = cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
		IntDec:         cbor.IntDecConvertSigned,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	cborEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// CBOR is a binary format over the interchange representation. Output uses
// canonical encoding, so equal trees encode to identical bytes.
func CBOR() *Format[any] {
	return New[any]("cbor", molding.Standard[any](), namedAlgebra{Algebra: tree.Interchange, name: "cbor"}, decodeCBOR, encodeCBOR, ".cbor")
}

// namedAlgebra reuses an algebra under another name for diagnostics.
type namedAlgebra struct {
	tree.Algebra[any]
	name string
}

func (a namedAlgebra) Name() string { return a.name }

func decodeCBOR(r io.Reader) (any, error) {
	var v any
	if err := cborDec.NewDecoder(r).Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, tree.ErrEmptyDocument
		}
		return nil, fmt.Errorf("parse cbor: %w", err)
	}
	return tree.Normalize(v)
}

func encodeCBOR(v any) ([]byte, error) {
	n, err := tree.Normalize(v)
	if err != nil {
		return nil, err
	}
	out, err := cborEnc.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode cbor: %w", err)
	}
	return out, nil
}

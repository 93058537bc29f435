package tree

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/ohler55/ojg/sen"
)

// ErrEmptyDocument is returned when lenient parsing is given only whitespace.
var ErrEmptyDocument = errors.New("empty document")

var canonicalOptions = ojg.Options{Indent: 2, Sort: true}

// ParseLenient parses interchange text. It accepts strict JSON plus comments,
// unquoted keys and strings, and missing or trailing commas. Numbers that do
// not fit an int64 or float64 exactly are a ConversionError.
func ParseLenient(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}
	v, err := sen.Parse(data, ojg.NumConvNone)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return Normalize(v)
}

// MarshalCanonical writes v as strict JSON with sorted keys and two-space
// indentation, so equal trees always produce identical bytes.
func MarshalCanonical(v any) ([]byte, error) {
	n, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	opts := canonicalOptions
	out, err := oj.Marshal(n, &opts)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return out, nil
}

package remold

import "fmt"

// DecodeError reports content that does not parse as the expected format. The
// resource passes through unchanged.
type DecodeError struct {
	Location string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Location, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MetadataError reports input metadata that the format's representation
// cannot hold.
type MetadataError struct {
	Location string
	Err      error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata of %s: %v", e.Location, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// TransformationError reports the remolder that abandoned a chain.
type TransformationError struct {
	Location string
	// Remolder is the failing remolder's name.
	Remolder string
	// Index is the entry's position in the chain.
	Index int
	Err   error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("remolder %s (entry %d) on %s: %v", e.Remolder, e.Index, e.Location, e.Err)
}

func (e *TransformationError) Unwrap() error { return e.Err }

// EncodeError reports a final document the format cannot encode.
type EncodeError struct {
	Location string
	Err      error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Location, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// MetadataSerializationError reports final metadata that cannot be written as
// interchange text.
type MetadataSerializationError struct {
	Location string
	Err      error
}

func (e *MetadataSerializationError) Error() string {
	return fmt.Sprintf("serialize metadata of %s: %v", e.Location, e.Err)
}

func (e *MetadataSerializationError) Unwrap() error { return e.Err }

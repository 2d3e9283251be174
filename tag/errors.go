// Package tag implements the BACnet application-layer tagged primitive
// encoding (ANSI/ASHRAE 135 clause 20.2.1-20.2.14): tag bytes, extended
// tag/length forms, opening/closing context tags, and the thirteen
// application-value types built on top of them.
package tag

import "errors"

// Sentinel decode errors. Wrap with fmt.Errorf("...: %w", ErrX) to add
// context; callers match with errors.Is.
var (
	// ErrInvalidTag is returned when a tag byte (or its extension) does
	// not describe a value the decoder understands, or an opening tag
	// is closed by a mismatched tag number.
	ErrInvalidTag = errors.New("tag: invalid tag")

	// ErrTruncated is returned when the stream ends before a decoder's
	// declared length has been satisfied.
	ErrTruncated = errors.New("tag: truncated stream")

	// ErrLengthMismatch is returned when a length-prediction call
	// (encode to nil) disagrees with the actual encoded length, or when
	// a composite field's declared length does not match its content.
	ErrLengthMismatch = errors.New("tag: length mismatch")

	// ErrInvalidArrayIndex is returned by array-aware readers when the
	// requested index is out of range for the addressed array.
	ErrInvalidArrayIndex = errors.New("tag: invalid array index")
)

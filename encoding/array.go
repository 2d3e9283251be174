package encoding

import (
	"fmt"

	"github.com/greenridge/bacstack/tag"
)

// Array models a BACnet array property's read semantics: index 0
// requests the element count, ArrayAll requests every element
// concatenated with no container tags, and a positive index N
// requests the Nth element (1-based).
type Array struct {
	Elements []tag.Value
}

// ReadIndex implements the index dispatch rule of clause 20.2.13's
// array-element encoding. It has no "no index given" form: a caller
// with no index does not call ReadIndex and uses the values as read.
func (a Array) ReadIndex(index uint32) ([]tag.Value, error) {
	switch index {
	case 0:
		return []tag.Value{tag.Unsigned(uint32(len(a.Elements)))}, nil
	case ArrayAll:
		return a.Elements, nil
	default:
		if index < 1 || int(index) > len(a.Elements) {
			return nil, fmt.Errorf("array index %d: %w", index, tag.ErrInvalidArrayIndex)
		}
		return []tag.Value{a.Elements[index-1]}, nil
	}
}

// WriteIndex implements the write-side counterpart: index 0 is
// rejected (element count is not writable), ArrayAll replaces every
// element (caller must supply exactly len(a.Elements) values), and a
// positive index replaces one element in place.
func (a *Array) WriteIndex(index uint32, values []tag.Value) error {
	switch index {
	case 0:
		return fmt.Errorf("array element count is not writable: %w", tag.ErrInvalidArrayIndex)
	case ArrayAll:
		if len(values) != len(a.Elements) {
			return fmt.Errorf("array write: expected %d elements, got %d: %w", len(a.Elements), len(values), tag.ErrLengthMismatch)
		}
		copy(a.Elements, values)
		return nil
	default:
		if index < 1 || int(index) > len(a.Elements) {
			return fmt.Errorf("array index %d: %w", index, tag.ErrInvalidArrayIndex)
		}
		if len(values) != 1 {
			return fmt.Errorf("array element write expects exactly one value: %w", tag.ErrLengthMismatch)
		}
		a.Elements[index-1] = values[0]
		return nil
	}
}

// EncodeList concatenates the application-tagged encoding of each
// value with no surrounding cardinality, per the List encoding rule —
// the caller is responsible for communicating the total byte length
// (e.g. via an enclosing opening/closing context tag pair).
func EncodeList(buf []byte, values []tag.Value) int {
	n := 0
	for _, v := range values {
		k := tag.EncodeApplication(buf, v)
		n += k
		if buf != nil {
			buf = buf[k:]
		}
	}
	return n
}

// DecodeList decodes application-tagged values from buf until it is
// exhausted. The caller supplies a buf already trimmed to the list's
// total length (e.g. the span between a matched opening/closing pair).
func DecodeList(buf []byte) ([]tag.Value, error) {
	var out []tag.Value
	for len(buf) > 0 {
		v, n, err := tag.DecodeApplication(buf)
		if err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		out = append(out, v)
		buf = buf[n:]
	}
	return out, nil
}

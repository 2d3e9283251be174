package tag

import "fmt"

// Class distinguishes a context-tagged field (property-specific tag
// numbers within constructed data) from an application-tagged one
// (universal type tags 0..12). It is bit 3 of the tag byte.
type Class bool

const (
	Application Class = false
	Context     Class = true
)

// Form distinguishes a primitive (length-carrying) tag from a
// constructed opening/closing tag. Constructed tags use type-codes 6
// (opening) and 7 (closing) in the length-value-type field.
type Form byte

const (
	Primitive Form = 0
	Opening   Form = 6
	Closing   Form = 7
)

// extendedTagNumber is the tag-number field value (0xF) that signals a
// second byte carries the real tag number.
const extendedTagNumber = 0x0F

// extendedLength is the length field value (5) that signals the
// length follows in 1, 3, or 5 additional bytes.
const extendedLength = 5

// Sentinels for the extended-length byte: a first length byte of 254
// means a uint16 length follows; 255 means a uint32 length follows.
const (
	length16Sentinel = 254
	length32Sentinel = 255
)

// Header is one decoded tag: a tag number, its class, and either a
// length/value (primitive) or a form marker (opening/closing).
type Header struct {
	Number uint8
	Class  Class
	Form   Form
	// LengthValue holds the primitive length-or-value field. It is
	// meaningless for Opening/Closing forms, whose "value" field never
	// carries a length.
	LengthValue uint32
}

// IsOpening reports whether h is a constructed opening tag.
func (h Header) IsOpening() bool { return h.Form == Opening }

// IsClosing reports whether h is a constructed closing tag.
func (h Header) IsClosing() bool { return h.Form == Closing }

// EncodeHeader writes the tag byte(s) for h into buf (if non-nil) and
// returns the number of bytes required. Passing a nil buf predicts the
// length without writing — the null-length invariant requires this to
// equal the length of an actual encode for the same header.
func EncodeHeader(buf []byte, h Header) int {
	n := 1
	tagNumberField := uint8(h.Number)
	extended := h.Number >= extendedTagNumber
	if extended {
		tagNumberField = extendedTagNumber
		n++
	}

	var lvt uint8
	switch h.Form {
	case Opening:
		lvt = 6
	case Closing:
		lvt = 7
	default:
		lvt, n = lengthValueField(h.LengthValue, n)
	}

	first := tagNumberField << 4
	if h.Class == Context {
		first |= 0x08
	}
	first |= lvt

	if buf == nil {
		return n
	}
	i := 0
	buf[i] = first
	i++
	if extended {
		buf[i] = h.Number
		i++
	}
	if h.Form == Primitive {
		i += encodeExtendedLength(buf[i:], h.LengthValue)
	}
	return i
}

// lengthValueField returns the 3-bit length-value-type field for a
// primitive tag of the given length/value, and the total header size
// including any extended-length bytes (n is the size so far, i.e. 1 or
// 2 depending on whether the tag number was extended).
func lengthValueField(v uint32, n int) (uint8, int) {
	if v <= 4 {
		return uint8(v), n
	}
	n++ // extended-length marker byte itself
	switch {
	case v <= 253:
		n += 1
	case v <= 0xFFFF:
		n += 1 + 2
	default:
		n += 1 + 4
	}
	return extendedLength, n
}

func encodeExtendedLength(buf []byte, v uint32) int {
	if v <= 4 {
		return 0
	}
	switch {
	case v <= 253:
		buf[0] = byte(v)
		return 1
	case v <= 0xFFFF:
		buf[0] = length16Sentinel
		buf[1] = byte(v >> 8)
		buf[2] = byte(v)
		return 3
	default:
		buf[0] = length32Sentinel
		buf[1] = byte(v >> 24)
		buf[2] = byte(v >> 16)
		buf[3] = byte(v >> 8)
		buf[4] = byte(v)
		return 5
	}
}

// DecodeHeader reads one tag header from buf, returning the header and
// the number of bytes consumed.
func DecodeHeader(buf []byte) (Header, int, error) {
	if len(buf) < 1 {
		return Header{}, 0, fmt.Errorf("tag header: %w", ErrTruncated)
	}
	first := buf[0]
	h := Header{
		Number: first >> 4,
		Class:  Class(first&0x08 != 0),
	}
	i := 1
	if h.Number == extendedTagNumber {
		if len(buf) < i+1 {
			return Header{}, 0, fmt.Errorf("tag header extended number: %w", ErrTruncated)
		}
		h.Number = buf[i]
		i++
	}

	lvt := first & 0x07
	switch lvt {
	case 6:
		h.Form = Opening
		return h, i, nil
	case 7:
		h.Form = Closing
		return h, i, nil
	}

	h.Form = Primitive
	if lvt < extendedLength {
		h.LengthValue = uint32(lvt)
		return h, i, nil
	}

	if len(buf) < i+1 {
		return Header{}, 0, fmt.Errorf("tag header extended length: %w", ErrTruncated)
	}
	switch buf[i] {
	case length16Sentinel:
		if len(buf) < i+3 {
			return Header{}, 0, fmt.Errorf("tag header u16 length: %w", ErrTruncated)
		}
		h.LengthValue = uint32(buf[i+1])<<8 | uint32(buf[i+2])
		i += 3
	case length32Sentinel:
		if len(buf) < i+5 {
			return Header{}, 0, fmt.Errorf("tag header u32 length: %w", ErrTruncated)
		}
		h.LengthValue = uint32(buf[i+1])<<24 | uint32(buf[i+2])<<16 | uint32(buf[i+3])<<8 | uint32(buf[i+4])
		i += 5
	default:
		h.LengthValue = uint32(buf[i])
		i++
	}
	return h, i, nil
}

// EncodeOpening writes a context opening tag with the given tag number.
func EncodeOpening(buf []byte, number uint8) int {
	return EncodeHeader(buf, Header{Number: number, Class: Context, Form: Opening})
}

// EncodeClosing writes a context closing tag with the given tag number.
func EncodeClosing(buf []byte, number uint8) int {
	return EncodeHeader(buf, Header{Number: number, Class: Context, Form: Closing})
}

// DataLength scans buf, which must begin immediately after a matched
// opening tag of the given number, and returns the number of bytes
// spanned up to (but excluding) the matching closing tag. Nested
// opening tags with the same tag number increment a depth counter;
// matching closing tags decrement it. It is an error for the stream to
// end with nonzero depth.
func DataLength(buf []byte, number uint8) (int, error) {
	depth := 1
	i := 0
	for i < len(buf) {
		h, n, err := DecodeHeader(buf[i:])
		if err != nil {
			return 0, err
		}
		if h.Number == number {
			if h.Form == Opening {
				depth++
			} else if h.Form == Closing {
				depth--
				if depth == 0 {
					return i, nil
				}
			}
		}
		consumed := n
		if h.Form == Primitive {
			consumed += int(h.LengthValue)
		}
		if i+consumed > len(buf) {
			return 0, fmt.Errorf("tag data length: %w", ErrTruncated)
		}
		i += consumed
	}
	return 0, fmt.Errorf("tag data length: unbalanced opening/closing tags: %w", ErrTruncated)
}

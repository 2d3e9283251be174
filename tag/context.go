package tag

import "fmt"

// EncodeContext writes v wrapped in a context tag with the given tag
// number (the primitive form used throughout constructed data, e.g.
// PropertyReference's property-identifier field) and returns the
// number of bytes required. A nil buf predicts the length.
func EncodeContext(buf []byte, number uint8, v Value) int {
	plen := payloadLength(v)
	lv := uint32(plen)
	if v.Kind == KindBoolean {
		if v.Bool {
			lv = 1
		} else {
			lv = 0
		}
	}
	hdrLen := EncodeHeader(nil, Header{Number: number, Class: Context, LengthValue: lv})
	total := hdrLen + plen
	if v.Kind == KindBoolean {
		total = hdrLen
	}
	if buf == nil {
		return total
	}

	// Re-use EncodeApplication's payload writer by encoding an
	// application value into a scratch header-less region: write our
	// own header, then delegate payload writing through a temporary
	// application encode and copy the payload bytes across.
	i := EncodeHeader(buf, Header{Number: number, Class: Context, LengthValue: lv})
	if plen == 0 {
		return total
	}
	scratch := make([]byte, EncodeApplication(nil, v))
	EncodeApplication(scratch, v)
	_, scratchHdrLen, _ := DecodeHeader(scratch)
	copy(buf[i:], scratch[scratchHdrLen:])
	return total
}

// DecodeContext reads one context-tagged primitive value whose
// semantic type is kind (the wire tag carries only the context number,
// never the application kind, so the caller must supply it). Returns
// the value and bytes consumed.
func DecodeContext(buf []byte, wantNumber uint8, kind Kind) (Value, int, error) {
	h, n, err := DecodeHeader(buf)
	if err != nil {
		return Value{}, 0, fmt.Errorf("decode context value: %w", err)
	}
	if h.Class != Context || h.Form != Primitive || h.Number != wantNumber {
		return Value{}, 0, fmt.Errorf("decode context value: want tag %d, got %d: %w", wantNumber, h.Number, ErrInvalidTag)
	}
	plen := int(h.LengthValue)
	if kind == KindBoolean {
		plen = 0
	}
	if len(buf) < n+plen {
		return Value{}, 0, fmt.Errorf("decode context value payload: %w", ErrTruncated)
	}

	// Re-use DecodeApplication's payload parsing by synthesizing an
	// application-tagged header around the same payload bytes.
	scratchHdr := make([]byte, EncodeHeader(nil, Header{Number: uint8(kind), Class: Application, LengthValue: h.LengthValue}))
	EncodeHeader(scratchHdr, Header{Number: uint8(kind), Class: Application, LengthValue: h.LengthValue})
	scratch := append(scratchHdr, buf[n:n+plen]...)
	v, _, err := DecodeApplication(scratch)
	if err != nil {
		return Value{}, 0, fmt.Errorf("decode context value: %w", err)
	}
	return v, n + plen, nil
}

// PeekHeader decodes a header without consuming state, useful for
// lookahead (e.g. distinguishing a closing tag from the next field in
// composite decoding).
func PeekHeader(buf []byte) (Header, error) {
	h, _, err := DecodeHeader(buf)
	return h, err
}

package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	lengths := []uint32{0, 1, 4, 5, 253, 254, 65535, 65536, 0xFFFFFFFF}
	for tn := 0; tn <= 255; tn++ {
		for _, ctx := range []Class{Application, Context} {
			for _, lv := range lengths {
				h := Header{Number: uint8(tn), Class: ctx, LengthValue: lv}
				predicted := EncodeHeader(nil, h)
				buf := make([]byte, predicted)
				written := EncodeHeader(buf, h)
				require.Equal(t, predicted, written)

				got, n, err := DecodeHeader(buf)
				require.NoError(t, err)
				assert.Equal(t, written, n)
				assert.Equal(t, h.Number, got.Number)
				assert.Equal(t, h.Class, got.Class)
				assert.Equal(t, h.LengthValue, got.LengthValue)
			}
		}
	}
}

func TestOpeningClosingRoundTrip(t *testing.T) {
	for tn := 0; tn <= 255; tn++ {
		openBuf := make([]byte, EncodeOpening(nil, uint8(tn)))
		EncodeOpening(openBuf, uint8(tn))
		h, _, err := DecodeHeader(openBuf)
		require.NoError(t, err)
		assert.True(t, h.IsOpening())
		assert.Equal(t, uint8(tn), h.Number)

		closeBuf := make([]byte, EncodeClosing(nil, uint8(tn)))
		EncodeClosing(closeBuf, uint8(tn))
		h, _, err = DecodeHeader(closeBuf)
		require.NoError(t, err)
		assert.True(t, h.IsClosing())
		assert.Equal(t, uint8(tn), h.Number)
	}
}

func TestDataLengthMatchesNestedDepth(t *testing.T) {
	var buf []byte
	buf = append(buf, encodeByte(EncodeOpening, 3)...)
	buf = append(buf, encodeByte(EncodeOpening, 3)...) // nested, same tag number
	buf = append(buf, 0x21, 0xAA)                      // application Unsigned 170
	buf = append(buf, encodeByte(EncodeClosing, 3)...)
	innerStart := len(buf)
	buf = append(buf, 0x21, 0xCC) // application Unsigned 204
	buf = append(buf, encodeByte(EncodeClosing, 3)...)

	// DataLength starts just past the outer opening tag.
	n, err := DataLength(buf[1:], 3)
	require.NoError(t, err)
	assert.Equal(t, innerStart+1, n)
}

func TestDataLengthUnbalancedIsError(t *testing.T) {
	buf := append([]byte{}, encodeByte(EncodeOpening, 3)...)
	buf = append(buf, 0x01, 0x02)
	_, err := DataLength(buf, 3)
	require.Error(t, err)
}

func encodeByte(f func([]byte, uint8) int, n uint8) []byte {
	buf := make([]byte, f(nil, n))
	f(buf, n)
	return buf
}

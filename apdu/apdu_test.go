package apdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfirmedRequestHeaderBytes pins scenario 1 from the spec: a
// ReadProperty confirmed request for Device.Object_Identifier.
func TestConfirmedRequestHeaderBytes(t *testing.T) {
	h := Header{
		Type:          ConfirmedRequest,
		MaxSegments:   0,
		MaxAPDULength: 5,
		InvokeID:      1,
		ServiceChoice: ServiceConfirmedReadProperty,
	}
	buf := make([]byte, EncodeConfirmedRequest(nil, h))
	n := EncodeConfirmedRequest(buf, h)
	require.Equal(t, len(buf), n)
	assert.Equal(t, []byte{0x00, 0x05, 0x01, 0x0C}, buf)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, ConfirmedRequest, got.Type)
	assert.Equal(t, uint8(1), got.InvokeID)
	assert.Equal(t, ServiceConfirmedReadProperty, got.ServiceChoice)
	assert.Equal(t, 4, got.Offset)
}

// TestComplexACKHeaderBytes pins scenario 1's response header.
func TestComplexACKHeaderBytes(t *testing.T) {
	h := Header{InvokeID: 1, ServiceChoice: ServiceConfirmedReadProperty}
	buf := make([]byte, EncodeComplexACK(nil, h))
	EncodeComplexACK(buf, h)
	assert.Equal(t, []byte{0x30, 0x01, 0x0C}, buf)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, ComplexACK, got.Type)
	assert.Equal(t, 3, got.Offset)
}

func TestSegmentedHeaderRoundTrip(t *testing.T) {
	h := Header{
		Type:              ConfirmedRequest,
		Segmented:         true,
		SegmentedResponse: true,
		MaxSegments:       7,
		MaxAPDULength:     5,
		InvokeID:          42,
		SequenceNumber:    3,
		WindowSize:        4,
		ServiceChoice:     ServiceConfirmedReadPropertyMultiple,
	}
	buf := make([]byte, EncodeConfirmedRequest(nil, h))
	EncodeConfirmedRequest(buf, h)
	got, err := Decode(buf)
	require.NoError(t, err)
	assert.True(t, got.Segmented)
	assert.Equal(t, uint8(3), got.SequenceNumber)
	assert.Equal(t, uint8(4), got.WindowSize)
	assert.Equal(t, uint8(42), got.InvokeID)
}

func TestSegmentACKRoundTrip(t *testing.T) {
	h := Header{InvokeID: 7, SequenceNumber: 3, WindowSize: 4, NAK: true, ServerFlag: true}
	buf := make([]byte, EncodeSegmentACK(nil, h))
	EncodeSegmentACK(buf, h)
	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, SegmentACK, got.Type)
	assert.True(t, got.NAK)
	assert.True(t, got.ServerFlag)
	assert.Equal(t, uint8(3), got.SequenceNumber)
}

func TestRejectAndAbortRoundTrip(t *testing.T) {
	rb := make([]byte, EncodeReject(nil, 5, RejectUnrecognizedService))
	EncodeReject(rb, 5, RejectUnrecognizedService)
	got, err := Decode(rb)
	require.NoError(t, err)
	assert.Equal(t, Reject, got.Type)
	assert.Equal(t, RejectUnrecognizedService, got.RejectReason)

	ab := make([]byte, EncodeAbort(nil, 5, AbortSegmentationNotSupported, true))
	EncodeAbort(ab, 5, AbortSegmentationNotSupported, true)
	got, err = Decode(ab)
	require.NoError(t, err)
	assert.Equal(t, Abort, got.Type)
	assert.Equal(t, AbortSegmentationNotSupported, got.AbortReason)
	assert.True(t, got.AbortServer)
}

func TestSegmentsAndLengthOctet(t *testing.T) {
	b := EncodeSegmentsAndLength(4, 480)
	segs, apduLen := DecodeSegmentsAndLength(b)
	assert.Equal(t, 4, segs)
	assert.Equal(t, 480, apduLen)
}

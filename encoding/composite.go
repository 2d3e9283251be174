// Package encoding builds the BACnet composite (constructed) types on
// top of package tag's primitive codec: dates, property references,
// read-access specifications, schedules, and the array/list encoding
// rules of ANSI/ASHRAE 135 clause 20.2.
package encoding

import (
	"fmt"

	"github.com/greenridge/bacstack/tag"
)

// DateTime pairs a BACnetDate and BACnetTime, context tags 0 and 1
// within whatever outer context wraps it (callers supply the wrapping
// opening/closing tag number).
type DateTime struct {
	Date tag.Date
	Time tag.Time
}

// EncodeDateTime writes the two context-tagged fields of dt (tag
// numbers 0 and 1) and returns the bytes written.
func EncodeDateTime(buf []byte, dt DateTime) int {
	n := tag.EncodeContext(buf, 0, tag.DateValue(dt.Date))
	if buf != nil {
		buf = buf[n:]
	}
	n += tag.EncodeContext(buf, 1, tag.TimeValue(dt.Time))
	return n
}

// DecodeDateTime reads a DateTime at context tags 0/1.
func DecodeDateTime(buf []byte) (DateTime, int, error) {
	dv, n, err := tag.DecodeContext(buf, 0, tag.KindDate)
	if err != nil {
		return DateTime{}, 0, fmt.Errorf("decode datetime date: %w", err)
	}
	tv, n2, err := tag.DecodeContext(buf[n:], 1, tag.KindTime)
	if err != nil {
		return DateTime{}, 0, fmt.Errorf("decode datetime time: %w", err)
	}
	return DateTime{Date: dv.DateVal, Time: tv.TimeVal}, n + n2, nil
}

// PropertyReference identifies one property, optionally a specific
// array index, as used inside ReadAccessSpecification and
// WriteAccessSpecification. Context tag numbers are assigned by the
// caller's containing structure (0=PropertyIdentifier, 1=PropertyArrayIndex
// is the convention used throughout clause 21).
type PropertyReference struct {
	PropertyID uint32
	// HasIndex distinguishes "index 0 requested" from "no index
	// requested" (the entire array/non-array value).
	HasIndex bool
	Index    uint32
}

// EncodePropertyReference writes PropertyID at context tag 0 and, if
// present, ArrayIndex at context tag 1.
func EncodePropertyReference(buf []byte, r PropertyReference) int {
	n := tag.EncodeContext(buf, 0, tag.Enumerated(r.PropertyID))
	if !r.HasIndex {
		return n
	}
	if buf != nil {
		buf = buf[n:]
	}
	n += tag.EncodeContext(buf, 1, tag.Unsigned(r.Index))
	return n
}

// DecodePropertyReference reads a PropertyReference, tolerating an
// absent (optional) array-index field.
func DecodePropertyReference(buf []byte) (PropertyReference, int, error) {
	v, n, err := tag.DecodeContext(buf, 0, tag.KindEnumerated)
	if err != nil {
		return PropertyReference{}, 0, fmt.Errorf("decode property reference id: %w", err)
	}
	r := PropertyReference{PropertyID: v.Uint}
	if n >= len(buf) {
		return r, n, nil
	}
	h, err := tag.PeekHeader(buf[n:])
	if err != nil || h.Class != tag.Context || h.Number != 1 {
		return r, n, nil
	}
	idx, n2, err := tag.DecodeContext(buf[n:], 1, tag.KindUnsigned)
	if err != nil {
		return r, n, nil
	}
	r.HasIndex = true
	r.Index = idx.Uint
	return r, n + n2, nil
}

// PropertyValue is one decoded (property, value(s)) pair as produced
// by ReadPropertyMultiple's per-object result list. Values has more
// than one entry only for an array read with ArrayIndex == ARRAY_ALL.
type PropertyValue struct {
	Reference PropertyReference
	Values    []tag.Value
}

// ReadAccessSpecification names one object and the properties to read
// from it (context tag 0 = ObjectIdentifier, tag 1 = list of
// PropertyReference wrapped in opening/closing tag 1).
type ReadAccessSpecification struct {
	Object     tag.ObjectID
	References []PropertyReference
}

// EncodeReadAccessSpecification writes spec's wire form.
func EncodeReadAccessSpecification(buf []byte, spec ReadAccessSpecification) int {
	n := tag.EncodeContext(buf, 0, tag.ObjectIdentifier(spec.Object))
	adv := func(k int) {
		n += k
		if buf != nil {
			buf = buf[k:]
		}
	}
	adv(tag.EncodeOpening(buf, 1))
	for _, r := range spec.References {
		adv(EncodePropertyReference(buf, r))
	}
	adv(tag.EncodeClosing(buf, 1))
	return n
}

// DecodeReadAccessSpecification reads one ReadAccessSpecification.
func DecodeReadAccessSpecification(buf []byte) (ReadAccessSpecification, int, error) {
	ov, n, err := tag.DecodeContext(buf, 0, tag.KindObjectIdentifier)
	if err != nil {
		return ReadAccessSpecification{}, 0, fmt.Errorf("decode RAS object: %w", err)
	}
	h, hn, err := tag.DecodeHeader(buf[n:])
	if err != nil || !h.IsOpening() || h.Number != 1 {
		return ReadAccessSpecification{}, 0, fmt.Errorf("decode RAS: expected opening tag 1: %w", tag.ErrInvalidTag)
	}
	n += hn
	spec := ReadAccessSpecification{Object: ov.Object}
	for {
		if n >= len(buf) {
			return ReadAccessSpecification{}, 0, fmt.Errorf("decode RAS: %w", tag.ErrTruncated)
		}
		ph, err := tag.PeekHeader(buf[n:])
		if err != nil {
			return ReadAccessSpecification{}, 0, err
		}
		if ph.IsClosing() && ph.Number == 1 {
			_, cn, _ := tag.DecodeHeader(buf[n:])
			n += cn
			break
		}
		r, rn, err := DecodePropertyReference(buf[n:])
		if err != nil {
			return ReadAccessSpecification{}, 0, err
		}
		spec.References = append(spec.References, r)
		n += rn
	}
	return spec, n, nil
}

// ArrayAll is the sentinel array index meaning "all elements,
// concatenated with no container tags".
const ArrayAll = 0xFFFFFFFF

// TimeValue pairs a time-of-day with a value, the element type of a
// DailySchedule within a WeeklySchedule. A Null value (Kind ==
// tag.KindNull) means no scheduled change at that time.
type TimeValue struct {
	Time  tag.Time
	Value tag.Value
}

// DailySchedule is one weekday's ordered list of TimeValue entries.
type DailySchedule []TimeValue

// WeeklySchedule holds seven DailySchedules indexed Monday(0)..Sunday(6).
type WeeklySchedule [7]DailySchedule

// EncodeDailySchedule writes entries wrapped in the clause-12 list
// form: opening tag 0, repeated {Time, Value} application-tagged
// pairs, closing tag 0.
func EncodeDailySchedule(buf []byte, d DailySchedule) int {
	n := tag.EncodeOpening(buf, 0)
	if buf != nil {
		buf = buf[n:]
	}
	adv := func(k int) {
		n += k
		if buf != nil {
			buf = buf[k:]
		}
	}
	for _, tv := range d {
		adv(tag.EncodeApplication(buf, tag.TimeValue(tv.Time)))
		adv(tag.EncodeApplication(buf, tv.Value))
	}
	adv(tag.EncodeClosing(buf, 0))
	return n
}

// DecodeDailySchedule reads one weekday's schedule list.
func DecodeDailySchedule(buf []byte) (DailySchedule, int, error) {
	h, n, err := tag.DecodeHeader(buf)
	if err != nil || !h.IsOpening() {
		return nil, 0, fmt.Errorf("decode daily schedule: expected opening tag: %w", tag.ErrInvalidTag)
	}
	var sched DailySchedule
	for {
		if n >= len(buf) {
			return nil, 0, fmt.Errorf("decode daily schedule: %w", tag.ErrTruncated)
		}
		ph, err := tag.PeekHeader(buf[n:])
		if err != nil {
			return nil, 0, err
		}
		if ph.IsClosing() {
			_, cn, _ := tag.DecodeHeader(buf[n:])
			n += cn
			break
		}
		tv, tn, err := tag.DecodeApplication(buf[n:])
		if err != nil {
			return nil, 0, fmt.Errorf("decode daily schedule time: %w", err)
		}
		n += tn
		vv, vn, err := tag.DecodeApplication(buf[n:])
		if err != nil {
			return nil, 0, fmt.Errorf("decode daily schedule value: %w", err)
		}
		n += vn
		sched = append(sched, TimeValue{Time: tv.TimeVal, Value: vv})
	}
	return sched, n, nil
}

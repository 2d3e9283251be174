package objects

import (
	"fmt"

	"github.com/greenridge/bacstack/objects/loadcontrol"
	"github.com/greenridge/bacstack/tag"
)

// LoadControl wraps a loadcontrol.Control shed state machine as a
// Load_Control object, writing its accepted shed target into a
// controlled AnalogOutput at loadcontrol.WritePriority and
// re-evaluating itself whenever that output's priority array changes
// out of band — another writer taking or releasing a higher priority
// than the shed write, which can make or break AbleToMeetShed.
type LoadControl struct {
	Common
	Engine     *loadcontrol.Control
	Controlled *AnalogOutput
	Flags      StatusFlags

	pendingLevel      loadcontrol.ShedLevel
	pendingDurationMs int64

	clock    func() int64
	applying bool
}

// NewLoadControl builds a Load_Control object shedding controlled by
// writing loadcontrol.WritePriority, scaled against fullDutyBaseline
// (and, for BACnetShedLevel.Level requests, levelValues).
func NewLoadControl(id tag.ObjectID, name string, controlled *AnalogOutput, fullDutyBaseline float32, levelValues []float32) *LoadControl {
	lc := &LoadControl{
		Common:     Common{ID: id, Type: TypeLoadControl, Name: name},
		Controlled: controlled,
		clock:      func() int64 { return 0 },
	}
	lc.Engine = &loadcontrol.Control{
		FullDutyBaseline: fullDutyBaseline,
		LevelValues:      levelValues,
		WriteAnalogOutput: func(value float32, priority uint8) {
			lc.applying = true
			controlled.Priorities.Write(int(priority), tag.Real(value))
			lc.applying = false
		},
	}
	controlled.Priorities.OnChange = func(tag.Value, int) {
		if lc.applying {
			return
		}
		lc.Engine.Tick(lc.clock())
	}
	return lc
}

// SetClock installs the wall-clock-milliseconds source the re-evaluation
// triggered by Controlled's priority array uses. Until it is called
// that clock reads 0; device.Device does not call it (the serve
// example passes Device.ClockMs itself).
func (lc *LoadControl) SetClock(clock func() int64) { lc.clock = clock }

func (lc *LoadControl) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	if v, ok, err := lc.readCommon(propertyID); ok || err != nil {
		return v, err
	}
	switch propertyID {
	case PropPresentValue:
		return []tag.Value{tag.Enumerated(lc.Engine.PresentValue())}, nil
	case PropStatusFlags:
		return []tag.Value{lc.Flags.toValue()}, nil
	case PropRequestedShedLevel:
		return shedLevelToValues(lc.Engine.RequestedShedLevel), nil
	case PropExpectedShedLevel:
		return shedLevelToValues(lc.Engine.ExpectedShedLevel), nil
	case PropActualShedLevel:
		return shedLevelToValues(lc.Engine.ActualShedLevel), nil
	case PropStartTime:
		return []tag.Value{tag.Unsigned(uint32(lc.Engine.StartTimeMs))}, nil
	case PropShedDuration:
		return []tag.Value{tag.Unsigned(uint32(lc.Engine.DurationMs))}, nil
	case PropFullDutyBaseline:
		return []tag.Value{tag.Real(lc.Engine.FullDutyBaseline)}, nil
	default:
		return nil, fmt.Errorf("LoadControl %v: %w", propertyID, ErrUnknownProperty)
	}
}

// WriteProperty accepts Requested_Shed_Level and Shed_Duration as
// staged fields; writing Start_Time is the trigger that hands the
// staged request to Engine.RequestShed, matching the order a client
// issues clause 12.23's three writes in.
func (lc *LoadControl) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	switch propertyID {
	case PropRequestedShedLevel:
		lvl, err := shedLevelFromValues(values)
		if err != nil {
			return err
		}
		lc.pendingLevel = lvl
		return nil
	case PropShedDuration:
		if values[0].Kind != tag.KindUnsigned {
			return ErrInvalidDataType
		}
		lc.pendingDurationMs = int64(values[0].Uint)
		return nil
	case PropStartTime:
		if values[0].Kind != tag.KindUnsigned {
			return ErrInvalidDataType
		}
		lc.Engine.RequestShed(lc.pendingLevel, int64(values[0].Uint), lc.pendingDurationMs)
		return nil
	default:
		return fmt.Errorf("LoadControl %v: %w", propertyID, ErrWriteAccessDenied)
	}
}

// shedLevelToValues flattens a ShedLevel tagged union into [kind,
// scalar], the same flattening StructuredView/BitstringValue use for
// composite properties the flat ReadProperty model can't nest.
func shedLevelToValues(l loadcontrol.ShedLevel) []tag.Value {
	switch l.Kind {
	case loadcontrol.ShedPercent:
		return []tag.Value{tag.Enumerated(uint32(l.Kind)), tag.Unsigned(l.Percent)}
	case loadcontrol.ShedLevelKindLevel:
		return []tag.Value{tag.Enumerated(uint32(l.Kind)), tag.Unsigned(l.Level)}
	default:
		return []tag.Value{tag.Enumerated(uint32(l.Kind)), tag.Real(l.Amount)}
	}
}

func shedLevelFromValues(values []tag.Value) (loadcontrol.ShedLevel, error) {
	if len(values) != 2 || values[0].Kind != tag.KindEnumerated {
		return loadcontrol.ShedLevel{}, ErrInvalidDataType
	}
	kind := loadcontrol.ShedLevelKind(values[0].Uint)
	switch kind {
	case loadcontrol.ShedPercent:
		if values[1].Kind != tag.KindUnsigned {
			return loadcontrol.ShedLevel{}, ErrInvalidDataType
		}
		return loadcontrol.ShedLevel{Kind: kind, Percent: values[1].Uint}, nil
	case loadcontrol.ShedLevelKindLevel:
		if values[1].Kind != tag.KindUnsigned {
			return loadcontrol.ShedLevel{}, ErrInvalidDataType
		}
		return loadcontrol.ShedLevel{Kind: kind, Level: values[1].Uint}, nil
	case loadcontrol.ShedAmount:
		if values[1].Kind != tag.KindReal {
			return loadcontrol.ShedLevel{}, ErrInvalidDataType
		}
		return loadcontrol.ShedLevel{Kind: kind, Amount: values[1].Real}, nil
	default:
		return loadcontrol.ShedLevel{}, ErrInvalidDataType
	}
}

package objects

import (
	"fmt"

	"github.com/greenridge/bacstack/objects/schedule"
	"github.com/greenridge/bacstack/tag"
)

// Schedule wraps a schedule.Schedule weekly-lookup engine as a
// Schedule object. Present_Value is cached rather than evaluated on
// every read, mirroring original_source's Schedule_Recalculate_PV
// running once per scan cycle rather than on demand.
type Schedule struct {
	Common
	Engine  *schedule.Schedule
	present tag.Value

	// ListOfObjectPropertyRefs names the objects this schedule drives
	// (clause 12.24's List_Of_Object_Property_References), flattened to
	// bare object identifiers per StructuredView's convention — this
	// module does not itself write those objects on a Present_Value
	// change; a caller wanting that wires it from outside.
	ListOfObjectPropertyRefs []tag.ObjectID
}

// NewSchedule builds a Schedule object around engine, seeding
// Present_Value with the engine's default until the first Recalculate.
func NewSchedule(id tag.ObjectID, name string, engine *schedule.Schedule) *Schedule {
	return &Schedule{
		Common:  Common{ID: id, Type: TypeSchedule, Name: name},
		Engine:  engine,
		present: engine.Default,
	}
}

// Recalculate re-evaluates Present_Value at (weekday, now, today); the
// device's Tick calls this once per scan for every registered schedule.
func (s *Schedule) Recalculate(weekday schedule.Weekday, now tag.Time, today tag.Date) {
	s.present = s.Engine.PresentValue(weekday, now, today)
}

func (s *Schedule) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	if v, ok, err := s.readCommon(propertyID); ok || err != nil {
		return v, err
	}
	switch propertyID {
	case PropPresentValue:
		return []tag.Value{s.present}, nil
	case PropScheduleDefault:
		return []tag.Value{s.Engine.Default}, nil
	case PropEffectivePeriod:
		return []tag.Value{tag.DateValue(s.Engine.EffectiveStart), tag.DateValue(s.Engine.EffectiveEnd)}, nil
	case PropWeeklySchedule:
		return s.weeklyScheduleValues(), nil
	case PropListOfObjectPropertyRefs:
		out := make([]tag.Value, len(s.ListOfObjectPropertyRefs))
		for i, id := range s.ListOfObjectPropertyRefs {
			out[i] = tag.ObjectIdentifier(id)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("Schedule %v: %w", propertyID, ErrUnknownProperty)
	}
}

// weeklyScheduleValues flattens the seven-day WeeklySchedule into a
// plain sequence: an Enumerated(weekday 1..7) marker ahead of each
// day's Time/Value pairs, since the flat ReadProperty model has no
// nested opening/closing tags to delimit each day's list.
func (s *Schedule) weeklyScheduleValues() []tag.Value {
	var out []tag.Value
	for day := 0; day < 7; day++ {
		out = append(out, tag.Enumerated(uint32(day+1)))
		for _, tv := range s.Engine.Weekly[day] {
			out = append(out, tag.TimeValue(tv.Time), tv.Value)
		}
	}
	return out
}

func (s *Schedule) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	switch propertyID {
	case PropScheduleDefault:
		if len(values) != 1 {
			return ErrInvalidDataType
		}
		s.Engine.Default = values[0]
		return nil
	case PropEffectivePeriod:
		if len(values) != 2 || values[0].Kind != tag.KindDate || values[1].Kind != tag.KindDate {
			return ErrInvalidDataType
		}
		s.Engine.EffectiveStart = values[0].DateVal
		s.Engine.EffectiveEnd = values[1].DateVal
		return nil
	default:
		return fmt.Errorf("Schedule %v: %w", propertyID, ErrWriteAccessDenied)
	}
}

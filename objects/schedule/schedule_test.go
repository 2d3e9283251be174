package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/greenridge/bacstack/encoding"
	"github.com/greenridge/bacstack/tag"
)

// TestScheduleEvaluationScenario pins the spec's schedule scenario:
// a Monday weekly schedule with entries at 08:00 (21.0) and 18:00
// (16.0); evaluated at 12:00 it yields the 08:00 entry, and outside
// the effective period it falls back to the default.
func TestScheduleEvaluationScenario(t *testing.T) {
	s := &Schedule{
		Default:        tag.Real(10.0),
		EffectiveStart: tag.Date{Year: 2026, Month: 1, Day: 1},
		EffectiveEnd:   tag.Date{Year: 2026, Month: 12, Day: 31},
	}
	s.Weekly[0] = encoding.DailySchedule{ // Monday
		{Time: tag.Time{Hour: 8, Minute: 0, Second: 0, Hundredths: 0}, Value: tag.Real(21.0)},
		{Time: tag.Time{Hour: 18, Minute: 0, Second: 0, Hundredths: 0}, Value: tag.Real(16.0)},
	}

	noon := tag.Time{Hour: 12, Minute: 0, Second: 0, Hundredths: 0}
	today := tag.Date{Year: 2026, Month: 7, Day: 30}
	v := s.PresentValue(1, noon, today)
	assert.Equal(t, float32(21.0), v.Real)

	evening := tag.Time{Hour: 19, Minute: 0, Second: 0, Hundredths: 0}
	v = s.PresentValue(1, evening, today)
	assert.Equal(t, float32(16.0), v.Real)

	earlyMorning := tag.Time{Hour: 7, Minute: 0, Second: 0, Hundredths: 0}
	v = s.PresentValue(1, earlyMorning, today)
	assert.Equal(t, float32(10.0), v.Real) // falls back to default
}

func TestScheduleOutsideEffectivePeriodUsesDefault(t *testing.T) {
	s := &Schedule{
		Default:        tag.Real(99),
		EffectiveStart: tag.Date{Year: 2026, Month: 1, Day: 1},
		EffectiveEnd:   tag.Date{Year: 2026, Month: 6, Day: 30},
	}
	s.Weekly[0] = encoding.DailySchedule{
		{Time: tag.Time{Hour: 8}, Value: tag.Real(21.0)},
	}
	v := s.PresentValue(1, tag.Time{Hour: 12}, tag.Date{Year: 2026, Month: 7, Day: 30})
	assert.Equal(t, float32(99), v.Real)
}

func TestScheduleWildcardEffectivePeriodAlwaysInEffect(t *testing.T) {
	s := &Schedule{
		Default:        tag.Real(1),
		EffectiveStart: tag.Date{Year: 1900 + int(tag.Wildcard), Month: tag.Wildcard, Day: tag.Wildcard},
		EffectiveEnd:   tag.Date{Year: 1900 + int(tag.Wildcard), Month: tag.Wildcard, Day: tag.Wildcard},
	}
	assert.True(t, s.InEffectivePeriod(tag.Date{Year: 2099, Month: 1, Day: 1}))
}

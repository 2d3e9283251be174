// Package schedule implements the Schedule object's weekly-schedule
// evaluator: weekday+time lookup with Schedule_Default fallback and
// Effective_Period gating, grounded in original_source's
// demo/object/schedule.c (Schedule_Recalculate_PV,
// Schedule_In_Effective_Period).
package schedule

import (
	"github.com/greenridge/bacstack/encoding"
	"github.com/greenridge/bacstack/tag"
)

// Weekday is 1 (Monday) through 7 (Sunday), clause 21's BACnetDayOfWeek.
type Weekday uint8

// Schedule holds one Schedule object's evaluation inputs.
type Schedule struct {
	Weekly          encoding.WeeklySchedule // indexed [weekday-1]
	Default         tag.Value
	EffectiveStart  tag.Date
	EffectiveEnd    tag.Date
}

// timeGE reports whether a >= b, honoring clause 20.2.13's wildcard
// comparison rule (a Wildcard field matches anything).
func timeGE(a, b tag.Time) bool {
	cmp := func(x, y uint8) int {
		if x == tag.Wildcard || y == tag.Wildcard {
			return 0
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	for _, pair := range [][2]uint8{{a.Hour, b.Hour}, {a.Minute, b.Minute}, {a.Second, b.Second}, {a.Hundredths, b.Hundredths}} {
		if c := cmp(pair[0], pair[1]); c != 0 {
			return c > 0
		}
	}
	return true
}

// wildcardYear is the decoded BACnetDate year that results from the
// wire's wildcard year byte 0xFF (Year = 1900 + 0xFF), clause
// 20.2.13's "any year" convention.
const wildcardYear = 1900 + int(tag.Wildcard)

func dateLE(a, b tag.Date) bool {
	cmp := func(x, y uint8) int {
		if x == tag.Wildcard || y == tag.Wildcard {
			return 0
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	}
	if a.Year != wildcardYear && b.Year != wildcardYear {
		if a.Year < b.Year {
			return true
		}
		if a.Year > b.Year {
			return false
		}
	}
	for _, pair := range [][2]uint8{{a.Month, b.Month}, {a.Day, b.Day}} {
		if c := cmp(pair[0], pair[1]); c != 0 {
			return c < 0
		}
	}
	return true
}

// InEffectivePeriod reports whether date falls within
// [EffectiveStart, EffectiveEnd], treating wildcard fields as always
// matching (an all-wildcard period is always in effect).
func (s *Schedule) InEffectivePeriod(date tag.Date) bool {
	return dateLE(s.EffectiveStart, date) && dateLE(date, s.EffectiveEnd)
}

// PresentValue evaluates the schedule at (weekday, now, today),
// returning the latest Weekly_Schedule entry at or before now with a
// non-Null value, or Default if none applies or today falls outside
// the effective period.
func (s *Schedule) PresentValue(weekday Weekday, now tag.Time, today tag.Date) tag.Value {
	if !s.InEffectivePeriod(today) {
		return s.Default
	}
	if weekday < 1 || weekday > 7 {
		return s.Default
	}
	day := s.Weekly[weekday-1]
	var best *tag.Value
	var bestTime tag.Time
	for _, tv := range day {
		if tv.Value.Kind == tag.KindNull {
			continue
		}
		if !timeGE(now, tv.Time) {
			continue
		}
		if best == nil || timeGE(tv.Time, bestTime) {
			v := tv.Value
			best = &v
			bestTime = tv.Time
		}
	}
	if best == nil {
		return s.Default
	}
	return *best
}

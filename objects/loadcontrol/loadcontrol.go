// Package loadcontrol implements the Load_Control object's shed state
// machine, grounded in original_source's demo/object/lc.c
// (Load_Control_State_Machine): Inactive/RequestPending/Compliant/
// NonCompliant transitions driven by a written shed request, a start
// time, and a duration, translating an accepted request into an
// AnalogOutput priority-4 write.
package loadcontrol

// State is the Load_Control shed state-machine state.
type State uint8

const (
	Inactive State = iota
	RequestPending
	Compliant
	NonCompliant
)

// ShedLevelKind discriminates the tagged-union shed request.
type ShedLevelKind uint8

const (
	ShedPercent ShedLevelKind = iota
	ShedLevelKindLevel
	ShedAmount
)

// ShedLevel is the tagged-union {Percent, Level, Amount} shed request
// clause 12.23's BACnetShedLevel uses.
type ShedLevel struct {
	Kind    ShedLevelKind
	Percent uint32
	Level   uint32
	Amount  float32
}

// IsDefault reports whether level equals the type-specific "default"
// sentinel that cancels a pending shed (percent 100, amount 0, level 0).
func (l ShedLevel) IsDefault() bool {
	switch l.Kind {
	case ShedPercent:
		return l.Percent == 100
	case ShedAmount:
		return l.Amount == 0
	default:
		return l.Level == 0
	}
}

// Value translates a shed request into a fractional target (0..1) of
// FullDutyBaseline, the value written to the controlled AnalogOutput.
func (l ShedLevel) Value(fullDutyBaseline float32, levelValues []float32) float32 {
	switch l.Kind {
	case ShedPercent:
		return float32(l.Percent) / 100.0
	case ShedAmount:
		if fullDutyBaseline == 0 {
			return 0
		}
		return (fullDutyBaseline - l.Amount) / fullDutyBaseline
	default:
		idx := int(l.Level)
		if idx < 0 || idx >= len(levelValues) {
			if len(levelValues) > 0 {
				idx = len(levelValues) - 1
			} else {
				return 0
			}
		}
		return levelValues[idx]
	}
}

// WritePriority is the fixed priority (clause 12.23) at which an
// accepted shed request writes the controlled AnalogOutput.
const WritePriority = 4

// Control is one Load_Control object's shed state-machine state.
type Control struct {
	State              State
	RequestedShedLevel ShedLevel
	ExpectedShedLevel  ShedLevel
	ActualShedLevel    ShedLevel
	FullDutyBaseline   float32
	LevelValues        []float32

	StartTimeMs  int64
	DurationMs   int64
	HasStartTime bool

	// AbleToMeetShed reports whether the host believes the controlled
	// equipment can honor RequestedShedLevel; a nil func means always able.
	AbleToMeetShed func() bool

	// WriteAnalogOutput is invoked with the translated target value
	// when the state machine enters Compliant, at WritePriority.
	WriteAnalogOutput func(value float32, priority uint8)
}

// RequestShed begins a new shed request, transitioning to RequestPending.
func (c *Control) RequestShed(level ShedLevel, startTimeMs int64, durationMs int64) {
	c.RequestedShedLevel = level
	c.StartTimeMs = startTimeMs
	c.DurationMs = durationMs
	c.HasStartTime = true
	c.State = RequestPending
}

// Tick advances the state machine at nowMs (milliseconds since an
// arbitrary epoch shared with StartTimeMs). Compliant and NonCompliant
// are re-evaluated on every tick, not just entered once: the end time
// can pass, or AbleToMeetShed can flip, while the request is in force.
func (c *Control) Tick(nowMs int64) {
	switch c.State {
	case RequestPending:
		c.tickPending(nowMs)
	case Compliant, NonCompliant:
		c.tickActive(nowMs)
	}
}

func (c *Control) tickPending(nowMs int64) {
	if c.RequestedShedLevel.IsDefault() {
		c.State = Inactive
		return
	}
	endMs := c.StartTimeMs + c.DurationMs
	if nowMs > endMs {
		c.State = Inactive
		return
	}
	if nowMs < c.StartTimeMs {
		c.ExpectedShedLevel = c.RequestedShedLevel
		c.ActualShedLevel = ShedLevel{Kind: c.RequestedShedLevel.Kind}
		return
	}
	c.evaluateControl()
}

// tickActive re-evaluates an already-accepted shed request: expiry
// takes priority over a control-state flip.
func (c *Control) tickActive(nowMs int64) {
	endMs := c.StartTimeMs + c.DurationMs
	if nowMs > endMs {
		c.State = Inactive
		return
	}
	c.evaluateControl()
}

// evaluateControl applies AbleToMeetShed and sets Compliant or
// NonCompliant, firing WriteAnalogOutput only on the transition into
// Compliant from a different state.
func (c *Control) evaluateControl() {
	able := true
	if c.AbleToMeetShed != nil {
		able = c.AbleToMeetShed()
	}
	if able {
		wasCompliant := c.State == Compliant
		c.ExpectedShedLevel = c.RequestedShedLevel
		c.ActualShedLevel = c.RequestedShedLevel
		if !wasCompliant && c.WriteAnalogOutput != nil {
			target := c.RequestedShedLevel.Value(c.FullDutyBaseline, c.LevelValues)
			c.WriteAnalogOutput(target, WritePriority)
		}
		c.State = Compliant
	} else {
		c.ExpectedShedLevel = ShedLevel{Kind: c.RequestedShedLevel.Kind}
		c.ActualShedLevel = ShedLevel{Kind: c.RequestedShedLevel.Kind}
		c.State = NonCompliant
	}
}

// PresentValue returns the BACnetShedState enumeration value for the
// object's Present_Value property.
func (c *Control) PresentValue() uint32 {
	return uint32(c.State)
}

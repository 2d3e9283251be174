// Package lighting implements the lighting-output brightness control
// law: fade/ramp/step/blink-warn quantitative rules and the state
// machine driving Lighting_Output's In_Progress property, grounded in
// original_source's lighting_command.c.
package lighting

// Operation is the lighting command issued to a dimmer, clause 12.56's
// BACnetLightingOperation enumeration (the subset this module carries).
type Operation uint8

const (
	OpNone Operation = iota
	OpFadeTo
	OpRampTo
	OpStepUp
	OpStepDown
	OpStepOn
	OpStepOff
	OpWarn
	OpWarnOff
	OpWarnRelinquish
	OpStop
	OpRestoreOn
	OpDefaultOn
	OpToggleRestore
	OpToggleDefault
)

// InProgress is the Lighting_Output In_Progress enumeration.
type InProgress uint8

const (
	Idle InProgress = iota
	FadeActive
	RampActive
	NotControlled
	Other
)

// Blink holds one blink-warn cycle's configuration and progress.
type Blink struct {
	OnValue       float32
	OffValue      float32
	EndValue      float32
	TargetInterval uint16
	Interval      uint16
	Duration      uint32
	Count         uint16
	State         bool // true while the ON half of the cycle is showing
}

// Command is the lighting-output control-law state, one instance per
// Lighting_Output object.
type Command struct {
	TrackingValue float32
	Operation     Operation
	TargetLevel   float32
	RampRate      float32
	StepIncrement float32
	FadeTime      uint32
	InProgress    InProgress

	MinActualValue float32
	MaxActualValue float32
	HighTrimValue  float32
	LowTrimValue   float32

	Overridden bool
	LastOnValue float32

	Blink Blink

	// OnTrackingValueChange, if set, fires synchronously whenever
	// TrackingValue changes. Lighting_Output objects leave it nil; their
	// priority array's OnChange drives FadeTo instead.
	OnTrackingValueChange func(old, new float32)

	// RelinquishValue reports the priority array's next-highest active
	// value once the override priority relinquishes (clause 12.56's
	// Warn_Relinquish target). Nil falls back to Blink.EndValue.
	RelinquishValue func() float32
}

// clampOperating clamps value into [LowTrimValue, HighTrimValue],
// jumping to 0 below the 1% normalized-range floor — the "Operating
// Range" rule original_source calls operating_range_clamp.
func (c *Command) clampOperating(value float32) float32 {
	if value < 1.0 {
		return 0
	}
	high := c.HighTrimValue
	if high == 0 {
		high = 100
	}
	if value > high {
		value = high
	}
	if value < c.LowTrimValue {
		value = c.LowTrimValue
	}
	return value
}

// clampNormalizedOnRange clamps into [Min,Max] but never re-floors
// a nonzero value below 1 (the "on range" used while fading/ramping).
func (c *Command) clampNormalizedOnRange(value float32) float32 {
	if value < 1.0 {
		return 0
	}
	max := c.MaxActualValue
	if max == 0 {
		max = 100
	}
	if value > max {
		value = max
	}
	if value < c.MinActualValue {
		value = c.MinActualValue
	}
	return value
}

func clampRampRate(rate float32) float32 {
	if rate < 0.1 {
		return 0.1
	}
	if rate > 100 {
		return 100
	}
	return rate
}

func clampStepIncrement(step float32) float32 {
	if step < 0.1 {
		return 0.1
	}
	if step > 100 {
		return 100
	}
	return step
}

func stepUpTarget(tracking, step float32) float32 {
	return tracking + clampStepIncrement(step)
}

func stepDownTarget(tracking, step float32) float32 {
	s := clampStepIncrement(step)
	if tracking >= s {
		return tracking - s
	}
	return 0
}

func (c *Command) setTracking(v float32) {
	old := c.TrackingValue
	c.TrackingValue = v
	if c.OnTrackingValueChange != nil && old != v {
		c.OnTrackingValueChange(old, v)
	}
}

// FadeTo commands a fade to value over fadeTimeMs milliseconds.
func (c *Command) FadeTo(value float32, fadeTimeMs uint32) {
	c.cancelBlink()
	c.FadeTime = fadeTimeMs
	c.Operation = OpFadeTo
	c.TargetLevel = value
	if value >= 1.0 {
		c.LastOnValue = value
	}
}

// RampTo commands a ramp to value at rampRate percent per second.
func (c *Command) RampTo(value float32, rampRate float32) {
	c.cancelBlink()
	c.RampRate = clampRampRate(rampRate)
	c.Operation = OpRampTo
	c.TargetLevel = value
	if value >= 1.0 {
		c.LastOnValue = value
	}
}

// Step commands a step operation (Up/Down/On/Off); Up/Down are
// ignored when TrackingValue is already exactly 0.
func (c *Command) Step(op Operation, stepIncrement float32) {
	c.cancelBlink()
	if (op == OpStepUp || op == OpStepDown) && c.TrackingValue == 0 {
		return
	}
	c.Operation = op
	c.FadeTime = 0
	c.StepIncrement = stepIncrement
}

// BlinkWarn starts a blink-warn cycle.
func (c *Command) BlinkWarn(op Operation, b Blink) {
	c.cancelBlink()
	c.Operation = op
	c.Blink = b
	c.Blink.Interval = b.TargetInterval
	c.Blink.State = false
	c.InProgress = Other
}

// Stop halts whatever operation is in progress.
func (c *Command) Stop() {
	c.cancelBlink()
	c.Operation = OpStop
	if c.TrackingValue >= 1.0 {
		c.LastOnValue = c.TrackingValue
	}
}

// None cancels any commanded operation without changing TrackingValue.
func (c *Command) None() {
	c.cancelBlink()
	c.Operation = OpNone
}

// RestoreOn fades to the last value that was >= 1%.
func (c *Command) RestoreOn(fadeTimeMs uint32) {
	c.cancelBlink()
	c.FadeTime = fadeTimeMs
	c.Operation = OpRestoreOn
	c.TargetLevel = c.LastOnValue
}

func (c *Command) cancelBlink() {
	if c.Operation == OpWarnOff || c.Operation == OpWarnRelinquish {
		c.InProgress = Idle
	}
}

// Override forces TrackingValue externally (e.g. a physical override
// switch), which cancels any in-progress lighting operation.
func (c *Command) Override(value float32) {
	c.Overridden = true
	c.setTracking(value)
}

// ReleaseOverride clears the override flag so Tick resumes driving
// TrackingValue from Operation.
func (c *Command) ReleaseOverride() {
	c.Overridden = false
}

// Tick advances the control law by elapsed milliseconds, the
// generalization of original_source's lighting_command_timer.
func (c *Command) Tick(elapsedMs uint16) {
	if c.Overridden {
		c.Operation = OpNone
	}
	switch c.Operation {
	case OpNone:
		c.InProgress = Idle
	case OpFadeTo:
		c.fadeTick(elapsedMs)
	case OpRampTo:
		c.rampTick(elapsedMs)
	case OpStepUp:
		c.stepTick(stepUpTarget, c.clampNormalizedOnRange)
	case OpStepDown:
		c.stepTick(stepDownTarget, c.clampNormalizedOnRange)
	case OpStepOn:
		c.stepTick(stepUpTarget, c.clampOperating)
	case OpStepOff:
		c.stepTick(stepDownTarget, c.clampOperating)
	case OpWarn, OpWarnOff, OpWarnRelinquish:
		c.blinkTick(elapsedMs)
	case OpStop:
		c.InProgress = Idle
	case OpRestoreOn, OpDefaultOn:
		c.fadeTick(elapsedMs)
	}
}

func (c *Command) fadeTick(elapsedMs uint16) {
	target := c.clampNormalizedOnRange(c.TargetLevel)
	if uint32(elapsedMs) >= c.FadeTime || c.TrackingValue == target {
		if c.TargetLevel < 1.0 {
			c.setTracking(0)
		} else {
			c.setTracking(target)
		}
		c.InProgress = Idle
		c.Operation = OpStop
		c.FadeTime = 0
		return
	}
	c.InProgress = FadeActive
	old := c.TrackingValue
	frac := float32(elapsedMs) / float32(c.FadeTime)
	next := old + (target-old)*frac
	c.setTracking(next)
	c.FadeTime -= uint32(elapsedMs)
}

func (c *Command) rampTick(elapsedMs uint16) {
	target := c.clampNormalizedOnRange(c.TargetLevel)
	if c.TrackingValue == target {
		if c.TargetLevel < 1.0 {
			c.setTracking(0)
		} else {
			c.setTracking(target)
		}
		c.InProgress = Idle
		c.Operation = OpStop
		return
	}
	rampRate := clampRampRate(c.RampRate)
	var steps float32
	if elapsedMs <= 1000 {
		steps = (float32(elapsedMs) / 1000.0) * rampRate
	} else {
		steps = (float32(elapsedMs) * rampRate) / 1000.0
	}
	old := c.TrackingValue
	var next float32
	if old < target {
		next = old + steps
		if next > target {
			next = target
			c.Operation = OpStop
		}
	} else {
		if old > steps {
			next = old - steps
		} else {
			next = target
		}
		if next < target {
			next = target
			c.Operation = OpStop
		}
	}
	next = c.clampNormalizedOnRange(next)
	c.InProgress = RampActive
	c.setTracking(next)
}

func (c *Command) stepTick(targetFn func(tracking, step float32) float32, clampFn func(float32) float32) {
	old := c.TrackingValue
	target := targetFn(old, c.StepIncrement)
	c.InProgress = Idle
	c.Operation = OpStop
	c.setTracking(clampFn(target))
}

func (c *Command) blinkTick(elapsedMs uint16) {
	if c.Blink.Interval > uint16(elapsedMs) {
		c.Blink.Interval -= uint16(elapsedMs)
		return
	}
	c.Blink.Interval = c.Blink.TargetInterval
	c.Blink.State = !c.Blink.State
	if c.Blink.State {
		c.setTracking(c.Blink.OnValue)
	} else {
		c.setTracking(c.Blink.OffValue)
		if c.Blink.Count > 0 {
			c.Blink.Count--
			if c.Blink.Count == 0 {
				c.finishBlink()
			}
		}
	}
}

// finishBlink settles TrackingValue at the end of a blink-warn cycle:
// Warn_Off ends at the configured end value, Warn_Relinquish ends at
// whatever the priority array resolves to once the warning priority
// is gone (falling back to the end value if nothing reports that).
func (c *Command) finishBlink() {
	switch c.Operation {
	case OpWarnOff:
		c.setTracking(c.Blink.EndValue)
	case OpWarnRelinquish:
		if c.RelinquishValue != nil {
			c.setTracking(c.RelinquishValue())
		} else {
			c.setTracking(c.Blink.EndValue)
		}
	}
	c.Operation = OpNone
	c.InProgress = Idle
}

// ClampValue clamps an arbitrary write target the way
// original_source's lighting_command_clamp_value does: the Operating
// Range rule.
func (c *Command) ClampValue(value float32) float32 {
	return c.clampOperating(value)
}

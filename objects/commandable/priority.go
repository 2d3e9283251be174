// Package commandable implements the 16-slot priority-array subsystem
// shared by every commandable object type (AnalogOutput, BinaryOutput,
// BinaryValue, LightingOutput): clause 19.2's priority array, slot 6
// reserved for the minimum on/off mechanism this module does not
// implement, Null writes that relinquish a slot, and the
// highest-priority-wins PresentValue recompute rule.
package commandable

import (
	"errors"
	"fmt"

	"github.com/greenridge/bacstack/tag"
)

// NumPriorities is the fixed priority-array length (clause 19.2.1).
const NumPriorities = 16

// ReservedSlot is priority 6 (1-based), reserved by the standard for
// the minimum on/off mechanism; writes to it are denied.
const ReservedSlot = 6

// ErrReservedPriority is returned for a write targeting ReservedSlot.
var ErrReservedPriority = errors.New("commandable: priority 6 is reserved")

// ErrPriorityOutOfRange is returned for a priority outside 1..16.
var ErrPriorityOutOfRange = errors.New("commandable: priority out of range 1..16")

// Array is a 16-slot commandable priority array plus its relinquish
// default. slots[i] is nil when unoccupied (relinquished).
type Array struct {
	slots             [NumPriorities]*tag.Value
	RelinquishDefault tag.Value
	// OnChange, if set, is invoked synchronously after a successful
	// Write or Relinquish with the new PresentValue and the priority
	// that produced it (0 means the relinquish default took effect) —
	// the actuation-law enqueue hook the lighting/shed state machines
	// register against.
	OnChange func(value tag.Value, activePriority int)
}

// NewArray builds an array whose PresentValue starts at def.
func NewArray(def tag.Value) *Array {
	return &Array{RelinquishDefault: def}
}

// Write commands priority (1..16; a write to ReservedSlot is denied)
// to value. A value.Kind == tag.KindNull relinquishes
// the slot instead of occupying it.
func (a *Array) Write(priority int, value tag.Value) error {
	if priority < 1 || priority > NumPriorities {
		return fmt.Errorf("write priority %d: %w", priority, ErrPriorityOutOfRange)
	}
	if priority == ReservedSlot {
		return fmt.Errorf("write priority %d: %w", priority, ErrReservedPriority)
	}
	idx := priority - 1
	if value.Kind == tag.KindNull {
		a.slots[idx] = nil
	} else {
		v := value
		a.slots[idx] = &v
	}
	a.recompute()
	return nil
}

// Relinquish clears priority, equivalent to Write(priority, tag.Null()).
func (a *Array) Relinquish(priority int) error {
	return a.Write(priority, tag.Null())
}

// Present returns the current PresentValue: the value at the
// lowest-numbered (highest-priority) occupied slot, or
// RelinquishDefault if every slot is empty. The second return is the
// active priority, or 0 if the default is in effect.
func (a *Array) Present() (tag.Value, int) {
	for i, slot := range a.slots {
		if slot != nil {
			return *slot, i + 1
		}
	}
	return a.RelinquishDefault, 0
}

// Slots returns the 16-element array of application values, Null for
// unoccupied slots, as required for a PriorityArray property read.
func (a *Array) Slots() [NumPriorities]tag.Value {
	var out [NumPriorities]tag.Value
	for i, slot := range a.slots {
		if slot == nil {
			out[i] = tag.Null()
		} else {
			out[i] = *slot
		}
	}
	return out
}

func (a *Array) recompute() {
	if a.OnChange == nil {
		return
	}
	v, p := a.Present()
	a.OnChange(v, p)
}

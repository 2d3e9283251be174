package objects

import (
	"fmt"

	"github.com/greenridge/bacstack/objects/commandable"
	"github.com/greenridge/bacstack/tag"
)

// Common holds the scalar properties every object type carries
// (ObjectIdentifier, ObjectName, ObjectType, Description), factored
// out so each concrete type embeds it instead of repeating the
// boilerplate clause 12.1 requires of everything.
type Common struct {
	ID          tag.ObjectID
	Type        Type
	Name        string
	Description string
}

func (c Common) Identifier() tag.ObjectID { return c.ID }
func (c Common) ObjectType() Type         { return c.Type }

func (c Common) readCommon(propertyID uint32) ([]tag.Value, bool, error) {
	switch propertyID {
	case PropObjectIdentifier:
		return []tag.Value{tag.ObjectIdentifier(c.ID)}, true, nil
	case PropObjectName:
		return []tag.Value{tag.CharacterString(c.Name)}, true, nil
	case PropObjectType:
		return []tag.Value{tag.Enumerated(uint32(c.Type))}, true, nil
	case PropDescription:
		return []tag.Value{tag.CharacterString(c.Description)}, true, nil
	default:
		return nil, false, nil
	}
}

// AnalogInput is a read-only analog point with a status-flags and
// out-of-service pair and an optional COV increment.
type AnalogInput struct {
	Common
	PresentValue float32
	Units        uint32
	OutOfService bool
	Reliability  uint32
	Flags        StatusFlags
	COVIncrement float32
}

// StatusFlags is the four-bit status-flags bitstring (clause 12.1,
// In_Alarm/Fault/Overridden/Out_Of_Service).
type StatusFlags struct {
	InAlarm, Fault, Overridden, OutOfService bool
}

func (s StatusFlags) toValue() tag.Value {
	return tag.BitStringValue(tag.NewBitString(s.InAlarm, s.Fault, s.Overridden, s.OutOfService))
}

func (ai *AnalogInput) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	if v, ok, err := ai.readCommon(propertyID); ok || err != nil {
		return v, err
	}
	switch propertyID {
	case PropPresentValue:
		return []tag.Value{tag.Real(ai.PresentValue)}, nil
	case PropStatusFlags:
		return []tag.Value{ai.Flags.toValue()}, nil
	case PropOutOfService:
		return []tag.Value{tag.Bool(ai.OutOfService)}, nil
	case PropUnits:
		return []tag.Value{tag.Enumerated(ai.Units)}, nil
	case PropReliability:
		return []tag.Value{tag.Enumerated(ai.Reliability)}, nil
	case PropCOVIncrement:
		return []tag.Value{tag.Real(ai.COVIncrement)}, nil
	default:
		return nil, fmt.Errorf("AnalogInput %v: %w", propertyID, ErrUnknownProperty)
	}
}

func (ai *AnalogInput) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	switch propertyID {
	case PropOutOfService:
		if values[0].Kind != tag.KindBoolean {
			return ErrInvalidDataType
		}
		ai.OutOfService = values[0].Bool
		return nil
	case PropPresentValue:
		if !ai.OutOfService {
			return ErrWriteAccessDenied
		}
		if values[0].Kind != tag.KindReal {
			return ErrInvalidDataType
		}
		ai.PresentValue = values[0].Real
		return nil
	default:
		return fmt.Errorf("AnalogInput %v: %w", propertyID, ErrWriteAccessDenied)
	}
}

// AnalogOutput is a commandable analog point backed by a
// commandable.Array priority array.
type AnalogOutput struct {
	Common
	Priorities   *commandable.Array
	Units        uint32
	OutOfService bool
	Reliability  uint32
	Flags        StatusFlags
}

// NewAnalogOutput builds an AnalogOutput with the given relinquish default.
func NewAnalogOutput(id tag.ObjectID, name string, relinquishDefault float32) *AnalogOutput {
	return &AnalogOutput{
		Common:     Common{ID: id, Type: TypeAnalogOutput, Name: name},
		Priorities: commandable.NewArray(tag.Real(relinquishDefault)),
	}
}

func (ao *AnalogOutput) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	if v, ok, err := ao.readCommon(propertyID); ok || err != nil {
		return v, err
	}
	switch propertyID {
	case PropPresentValue:
		v, _ := ao.Priorities.Present()
		return []tag.Value{v}, nil
	case PropPriorityArray:
		slots := ao.Priorities.Slots()
		return slots[:], nil
	case PropRelinquishDefault:
		return []tag.Value{ao.Priorities.RelinquishDefault}, nil
	case PropStatusFlags:
		return []tag.Value{ao.Flags.toValue()}, nil
	case PropOutOfService:
		return []tag.Value{tag.Bool(ao.OutOfService)}, nil
	case PropUnits:
		return []tag.Value{tag.Enumerated(ao.Units)}, nil
	default:
		return nil, fmt.Errorf("AnalogOutput %v: %w", propertyID, ErrUnknownProperty)
	}
}

func (ao *AnalogOutput) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	switch propertyID {
	case PropPresentValue:
		if priority == 0 {
			priority = 16
		}
		if values[0].Kind != tag.KindReal && values[0].Kind != tag.KindNull {
			return ErrInvalidDataType
		}
		return ao.Priorities.Write(int(priority), values[0])
	case PropOutOfService:
		if values[0].Kind != tag.KindBoolean {
			return ErrInvalidDataType
		}
		ao.OutOfService = values[0].Bool
		return nil
	default:
		return fmt.Errorf("AnalogOutput %v: %w", propertyID, ErrWriteAccessDenied)
	}
}

// AnalogValue is a commandable-or-plain analog value object; this
// module models it as always commandable (a superset, matching the
// teacher's uniform treatment of value objects as read/write points).
type AnalogValue struct {
	Common
	Priorities *commandable.Array
	Units      uint32
	Flags      StatusFlags
}

func NewAnalogValue(id tag.ObjectID, name string, relinquishDefault float32) *AnalogValue {
	return &AnalogValue{
		Common:     Common{ID: id, Type: TypeAnalogValue, Name: name},
		Priorities: commandable.NewArray(tag.Real(relinquishDefault)),
	}
}

func (av *AnalogValue) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	if v, ok, err := av.readCommon(propertyID); ok || err != nil {
		return v, err
	}
	switch propertyID {
	case PropPresentValue:
		v, _ := av.Priorities.Present()
		return []tag.Value{v}, nil
	case PropPriorityArray:
		slots := av.Priorities.Slots()
		return slots[:], nil
	case PropRelinquishDefault:
		return []tag.Value{av.Priorities.RelinquishDefault}, nil
	case PropStatusFlags:
		return []tag.Value{av.Flags.toValue()}, nil
	case PropUnits:
		return []tag.Value{tag.Enumerated(av.Units)}, nil
	default:
		return nil, fmt.Errorf("AnalogValue %v: %w", propertyID, ErrUnknownProperty)
	}
}

func (av *AnalogValue) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	if propertyID != PropPresentValue {
		return fmt.Errorf("AnalogValue %v: %w", propertyID, ErrWriteAccessDenied)
	}
	if priority == 0 {
		priority = 16
	}
	if values[0].Kind != tag.KindReal && values[0].Kind != tag.KindNull {
		return ErrInvalidDataType
	}
	return av.Priorities.Write(int(priority), values[0])
}

package objects

import (
	"fmt"

	"github.com/greenridge/bacstack/objects/commandable"
	"github.com/greenridge/bacstack/tag"
)

// BinaryInput is a read-only two-state point.
type BinaryInput struct {
	Common
	PresentValue bool
	OutOfService bool
	Flags        StatusFlags
	ActiveText   string
	InactiveText string
}

func (bi *BinaryInput) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	if v, ok, err := bi.readCommon(propertyID); ok || err != nil {
		return v, err
	}
	switch propertyID {
	case PropPresentValue:
		return []tag.Value{tag.Enumerated(boolToEnum(bi.PresentValue))}, nil
	case PropStatusFlags:
		return []tag.Value{bi.Flags.toValue()}, nil
	case PropOutOfService:
		return []tag.Value{tag.Bool(bi.OutOfService)}, nil
	case PropActiveText:
		return []tag.Value{tag.CharacterString(bi.ActiveText)}, nil
	case PropInactiveText:
		return []tag.Value{tag.CharacterString(bi.InactiveText)}, nil
	default:
		return nil, fmt.Errorf("BinaryInput %v: %w", propertyID, ErrUnknownProperty)
	}
}

func (bi *BinaryInput) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	if propertyID != PropOutOfService {
		return fmt.Errorf("BinaryInput %v: %w", propertyID, ErrWriteAccessDenied)
	}
	if values[0].Kind != tag.KindBoolean {
		return ErrInvalidDataType
	}
	bi.OutOfService = values[0].Bool
	return nil
}

func boolToEnum(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// BinaryOutput is a commandable two-state point.
type BinaryOutput struct {
	Common
	Priorities   *commandable.Array
	OutOfService bool
	Flags        StatusFlags
	ActiveText   string
	InactiveText string
}

func NewBinaryOutput(id tag.ObjectID, name string, relinquishDefault bool) *BinaryOutput {
	return &BinaryOutput{
		Common:     Common{ID: id, Type: TypeBinaryOutput, Name: name},
		Priorities: commandable.NewArray(tag.Enumerated(boolToEnum(relinquishDefault))),
	}
}

func (bo *BinaryOutput) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	if v, ok, err := bo.readCommon(propertyID); ok || err != nil {
		return v, err
	}
	switch propertyID {
	case PropPresentValue:
		v, _ := bo.Priorities.Present()
		return []tag.Value{v}, nil
	case PropPriorityArray:
		slots := bo.Priorities.Slots()
		return slots[:], nil
	case PropRelinquishDefault:
		return []tag.Value{bo.Priorities.RelinquishDefault}, nil
	case PropStatusFlags:
		return []tag.Value{bo.Flags.toValue()}, nil
	case PropOutOfService:
		return []tag.Value{tag.Bool(bo.OutOfService)}, nil
	default:
		return nil, fmt.Errorf("BinaryOutput %v: %w", propertyID, ErrUnknownProperty)
	}
}

func (bo *BinaryOutput) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	switch propertyID {
	case PropPresentValue:
		if priority == 0 {
			priority = 16
		}
		if values[0].Kind != tag.KindEnumerated && values[0].Kind != tag.KindNull {
			return ErrInvalidDataType
		}
		return bo.Priorities.Write(int(priority), values[0])
	case PropOutOfService:
		if values[0].Kind != tag.KindBoolean {
			return ErrInvalidDataType
		}
		bo.OutOfService = values[0].Bool
		return nil
	default:
		return fmt.Errorf("BinaryOutput %v: %w", propertyID, ErrWriteAccessDenied)
	}
}

// BinaryValue is a commandable two-state value object.
type BinaryValue struct {
	Common
	Priorities *commandable.Array
	Flags      StatusFlags
}

func NewBinaryValue(id tag.ObjectID, name string, relinquishDefault bool) *BinaryValue {
	return &BinaryValue{
		Common:     Common{ID: id, Type: TypeBinaryValue, Name: name},
		Priorities: commandable.NewArray(tag.Enumerated(boolToEnum(relinquishDefault))),
	}
}

func (bv *BinaryValue) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	if v, ok, err := bv.readCommon(propertyID); ok || err != nil {
		return v, err
	}
	switch propertyID {
	case PropPresentValue:
		v, _ := bv.Priorities.Present()
		return []tag.Value{v}, nil
	case PropPriorityArray:
		slots := bv.Priorities.Slots()
		return slots[:], nil
	case PropRelinquishDefault:
		return []tag.Value{bv.Priorities.RelinquishDefault}, nil
	case PropStatusFlags:
		return []tag.Value{bv.Flags.toValue()}, nil
	default:
		return nil, fmt.Errorf("BinaryValue %v: %w", propertyID, ErrUnknownProperty)
	}
}

func (bv *BinaryValue) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	if propertyID != PropPresentValue {
		return fmt.Errorf("BinaryValue %v: %w", propertyID, ErrWriteAccessDenied)
	}
	if priority == 0 {
		priority = 16
	}
	if values[0].Kind != tag.KindEnumerated && values[0].Kind != tag.KindNull {
		return ErrInvalidDataType
	}
	return bv.Priorities.Write(int(priority), values[0])
}

package objects

import (
	"fmt"

	"github.com/greenridge/bacstack/encoding"
	"github.com/greenridge/bacstack/tag"
)

// StructuredView groups related objects under Subordinate_List, kept
// as plain values rather than object pointers: SubordinateList holds
// encoding.PropertyReference records and SubordinateIDs the
// subordinate object identifiers that reads of the list return, per
// original_source's structured_view.c.
type StructuredView struct {
	Common
	SubordinateList []encoding.PropertyReference
	SubordinateIDs  []tag.ObjectID
}

func (sv *StructuredView) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	if v, ok, err := sv.readCommon(propertyID); ok || err != nil {
		return v, err
	}
	switch propertyID {
	case PropListOfObjectPropertyRefs:
		out := make([]tag.Value, len(sv.SubordinateIDs))
		for i, id := range sv.SubordinateIDs {
			out[i] = tag.ObjectIdentifier(id)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("StructuredView %v: %w", propertyID, ErrUnknownProperty)
	}
}

func (sv *StructuredView) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	return fmt.Errorf("StructuredView %v: %w", propertyID, ErrWriteAccessDenied)
}

// BitstringValue is a read/writable named bit-string object carrying
// Bit_Text (one name per bit) alongside the raw value, per
// original_source's bitstring_value.c.
type BitstringValue struct {
	Common
	PresentValue tag.BitString
	BitText      []string
	OutOfService bool
	Flags        StatusFlags
}

func (b *BitstringValue) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	if v, ok, err := b.readCommon(propertyID); ok || err != nil {
		return v, err
	}
	switch propertyID {
	case PropPresentValue:
		return []tag.Value{tag.BitStringValue(b.PresentValue)}, nil
	case PropStatusFlags:
		return []tag.Value{b.Flags.toValue()}, nil
	case PropOutOfService:
		return []tag.Value{tag.Bool(b.OutOfService)}, nil
	case PropBitText:
		out := make([]tag.Value, len(b.BitText))
		for i, s := range b.BitText {
			out[i] = tag.CharacterString(s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("BitstringValue %v: %w", propertyID, ErrUnknownProperty)
	}
}

func (b *BitstringValue) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	switch propertyID {
	case PropPresentValue:
		if values[0].Kind != tag.KindBitString {
			return ErrInvalidDataType
		}
		b.PresentValue = values[0].Bits
		return nil
	case PropOutOfService:
		if values[0].Kind != tag.KindBoolean {
			return ErrInvalidDataType
		}
		b.OutOfService = values[0].Bool
		return nil
	default:
		return fmt.Errorf("BitstringValue %v: %w", propertyID, ErrWriteAccessDenied)
	}
}

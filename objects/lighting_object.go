package objects

import (
	"fmt"

	"github.com/greenridge/bacstack/objects/commandable"
	"github.com/greenridge/bacstack/objects/lighting"
	"github.com/greenridge/bacstack/tag"
)

// DefaultLightingFadeMs is the fade time a bare Present_Value write
// commands, absent a dedicated Lighting_Command service call (clause
// 12.56 leaves this to the vendor; original_source's
// lighting_output.c uses a one-second default).
const DefaultLightingFadeMs = 1000

// LightingOutput wraps a lighting.Command control law as a
// Lighting_Output object. Present_Value reports the control law's
// tracking value (the slowly-converging lamp level), distinct from
// the priority array's instantaneous commanded target; a write to the
// array feeds the control law a Fade_To command.
type LightingOutput struct {
	Common
	Engine       *lighting.Command
	Priorities   *commandable.Array
	OutOfService bool
	Flags        StatusFlags
}

// NewLightingOutput builds a Lighting_Output object whose priority
// array drives Engine.FadeTo on every change.
func NewLightingOutput(id tag.ObjectID, name string, relinquishDefault float32) *LightingOutput {
	lo := &LightingOutput{
		Common:     Common{ID: id, Type: TypeLightingOutput, Name: name},
		Engine:     &lighting.Command{},
		Priorities: commandable.NewArray(tag.Real(relinquishDefault)),
	}
	lo.Engine.RelinquishValue = func() float32 {
		v, _ := lo.Priorities.Present()
		if v.Kind == tag.KindReal {
			return v.Real
		}
		return 0
	}
	lo.Priorities.OnChange = func(v tag.Value, _ int) {
		if v.Kind == tag.KindReal {
			lo.Engine.FadeTo(v.Real, DefaultLightingFadeMs)
		}
	}
	return lo
}

func (lo *LightingOutput) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	if v, ok, err := lo.readCommon(propertyID); ok || err != nil {
		return v, err
	}
	switch propertyID {
	case PropPresentValue:
		return []tag.Value{tag.Real(lo.Engine.TrackingValue)}, nil
	case PropPriorityArray:
		slots := lo.Priorities.Slots()
		return slots[:], nil
	case PropRelinquishDefault:
		return []tag.Value{lo.Priorities.RelinquishDefault}, nil
	case PropStatusFlags:
		return []tag.Value{lo.Flags.toValue()}, nil
	case PropOutOfService:
		return []tag.Value{tag.Bool(lo.OutOfService)}, nil
	default:
		return nil, fmt.Errorf("LightingOutput %v: %w", propertyID, ErrUnknownProperty)
	}
}

func (lo *LightingOutput) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	switch propertyID {
	case PropPresentValue:
		if priority == 0 {
			priority = 16
		}
		if values[0].Kind != tag.KindReal && values[0].Kind != tag.KindNull {
			return ErrInvalidDataType
		}
		return lo.Priorities.Write(int(priority), values[0])
	case PropOutOfService:
		if values[0].Kind != tag.KindBoolean {
			return ErrInvalidDataType
		}
		lo.OutOfService = values[0].Bool
		return nil
	default:
		return fmt.Errorf("LightingOutput %v: %w", propertyID, ErrWriteAccessDenied)
	}
}

package objects

import (
	"errors"
	"fmt"

	"github.com/greenridge/bacstack/encoding"
	"github.com/greenridge/bacstack/tag"
)

// ErrSegmentationRequired is returned by Engine.ReadProperty when an
// ARRAY_ALL read would produce more elements than maxUnsegmented
// allows and the caller has not negotiated segmentation — the
// property engine itself never truncates silently.
var ErrSegmentationRequired = errors.New("objects: result requires segmentation")

// Engine is the property engine: ReadProperty/WriteProperty
// entrypoints that validate against a type's property table, apply
// the array-index rules from package encoding, and surface the exact
// error taxonomy clause 18.1/15.5/15.9 specify.
type Engine struct {
	Registry *Registry
}

// NewEngine builds an Engine bound to registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{Registry: registry}
}

// ReadProperty reads one property (or one array element, or the
// entire array) from the object named by id. maxUnsegmented bounds
// how many elements an ARRAY_ALL read may return before
// ErrSegmentationRequired; pass 0 to disable the check.
func (e *Engine) ReadProperty(id tag.ObjectID, propertyID uint32, arrayIndex uint32, hasIndex bool, maxUnsegmented int) ([]tag.Value, error) {
	obj, err := e.Registry.Lookup(id)
	if err != nil {
		return nil, err
	}
	if err := CheckKnown(obj.ObjectType(), propertyID); err != nil {
		return nil, err
	}
	values, err := obj.ReadProperty(propertyID, arrayIndex, hasIndex)
	if err != nil {
		return nil, err
	}
	if !hasIndex {
		return values, nil
	}
	arr := encoding.Array{Elements: values}
	result, err := arr.ReadIndex(arrayIndex)
	if err != nil {
		return nil, err
	}
	if maxUnsegmented > 0 && arrayIndex == encoding.ArrayAll && len(result) > maxUnsegmented {
		return nil, fmt.Errorf("read %v.%d: %w", id, propertyID, ErrSegmentationRequired)
	}
	return result, nil
}

// WriteProperty writes values to one property (or array element) of
// the object named by id at the given priority (0 for non-commandable
// properties).
func (e *Engine) WriteProperty(id tag.ObjectID, propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	obj, err := e.Registry.Lookup(id)
	if err != nil {
		return err
	}
	if err := CheckKnown(obj.ObjectType(), propertyID); err != nil {
		return err
	}
	if propertyID == PropObjectIdentifier || propertyID == PropObjectType {
		return ErrWriteAccessDenied
	}
	return obj.WriteProperty(propertyID, arrayIndex, hasIndex, values, priority)
}

// Package objects implements the Object Registry and Property Engine:
// the map of live objects keyed by identifier and the per-type
// Required/Optional property tables that back ReadProperty and
// WriteProperty.
package objects

import (
	"errors"
	"fmt"

	"github.com/greenridge/bacstack/tag"
)

// ErrResourceLimit is returned when the registry is at capacity.
var ErrResourceLimit = errors.New("objects: resource limit reached")

// ErrUnknownObject is returned for a lookup against an identifier the
// registry has no instance for.
var ErrUnknownObject = errors.New("objects: unknown object")

// ErrDuplicateObject is returned when inserting an identifier already present.
var ErrDuplicateObject = errors.New("objects: duplicate object identifier")

// Type is the BACnet object-type enumeration (clause 12.1), the
// subset this module carries.
type Type uint16

const (
	TypeAnalogInput Type = iota
	TypeAnalogOutput
	TypeAnalogValue
	TypeBinaryInput
	TypeBinaryOutput
	TypeBinaryValue
	TypeDevice         = Type(8)
	TypeLightingOutput = Type(54)
	TypeSchedule       = Type(17)
	TypeStructuredView = Type(29)
	TypeBitstringValue = Type(39)
	TypeLoadControl    = Type(28)
)

// Object is implemented by every concrete object type housed in a
// Registry. ReadProperty/WriteProperty dispatch to it through the
// property engine's per-type tables.
type Object interface {
	Identifier() tag.ObjectID
	ObjectType() Type
	// ReadProperty returns the raw application-tagged value(s) for
	// propertyID; more than one Value only for an ARRAY_ALL read.
	ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error)
	// WriteProperty applies values (len 1 except for ARRAY_ALL writes)
	// at the given priority (0 means "not applicable", commandable
	// objects require 1..16).
	WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error
}

// Registry holds the live object population for one device. Iteration
// order is insertion order with the Device object always first,
// matching the EPICS-style dump order original_source's apps/epics
// produces.
type Registry struct {
	order []tag.ObjectID
	byID  map[tag.ObjectID]Object
	limit int
}

// NewRegistry builds an empty registry. limit <= 0 means unbounded.
func NewRegistry(limit int) *Registry {
	return &Registry{byID: make(map[tag.ObjectID]Object), limit: limit}
}

// Add inserts obj, keeping the Device object (if any) at index 0.
func (r *Registry) Add(obj Object) error {
	id := obj.Identifier()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("add %v: %w", id, ErrDuplicateObject)
	}
	if r.limit > 0 && len(r.order) >= r.limit {
		return ErrResourceLimit
	}
	r.byID[id] = obj
	if obj.ObjectType() == TypeDevice && len(r.order) > 0 {
		r.order = append([]tag.ObjectID{id}, r.order...)
	} else {
		r.order = append(r.order, id)
	}
	return nil
}

// Remove deletes id without renumbering the remaining instances.
func (r *Registry) Remove(id tag.ObjectID) {
	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the object with id, or ErrUnknownObject.
func (r *Registry) Lookup(id tag.ObjectID) (Object, error) {
	obj, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("lookup %v: %w", id, ErrUnknownObject)
	}
	return obj, nil
}

// All returns every object in insertion order (Device first).
func (r *Registry) All() []Object {
	out := make([]Object, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len reports the current object count.
func (r *Registry) Len() int { return len(r.order) }

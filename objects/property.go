package objects

import (
	"errors"
	"fmt"
)

// Property IDs referenced by the property engine and object types in
// this module (clause 21's "property identifier" enumeration, the
// subset actually read or written here).
const (
	PropObjectIdentifier          uint32 = 75
	PropObjectName                uint32 = 77
	PropObjectType                uint32 = 79
	PropDescription               uint32 = 28
	PropPresentValue              uint32 = 85
	PropStatusFlags               uint32 = 111
	PropOutOfService              uint32 = 81
	PropUnits                     uint32 = 117
	PropReliability               uint32 = 103
	PropPriorityArray             uint32 = 87
	PropRelinquishDefault         uint32 = 104
	PropCOVIncrement              uint32 = 22
	PropObjectList                uint32 = 76
	PropSystemStatus              uint32 = 112
	PropVendorName                uint32 = 121
	PropVendorIdentifier          uint32 = 120
	PropModelName                 uint32 = 70
	PropFirmwareRevision          uint32 = 44
	PropApplicationSoftwareVersion uint32 = 12
	PropProtocolVersion           uint32 = 98
	PropProtocolRevision          uint32 = 139
	PropProtocolServicesSupported uint32 = 97
	PropProtocolObjectTypesSupported uint32 = 96
	PropMaxAPDULengthAccepted     uint32 = 62
	PropSegmentationSupported     uint32 = 107
	PropAPDUTimeout               uint32 = 11
	PropNumberOfAPDURetries       uint32 = 73
	PropDeviceAddressBinding      uint32 = 30
	PropDatabaseRevision          uint32 = 155
	PropActiveText               uint32 = 4
	PropInactiveText             uint32 = 46
	PropWeeklySchedule            uint32 = 123
	PropScheduleDefault           uint32 = 174
	PropEffectivePeriod           uint32 = 32
	PropListOfObjectPropertyRefs  uint32 = 54
	PropBitText                  uint32 = 343
	PropRequestedShedLevel        uint32 = 218
	PropStartTime                 uint32 = 142
	PropShedDuration              uint32 = 219
	PropExpectedShedLevel         uint32 = 214
	PropActualShedLevel           uint32 = 212
	PropFullDutyBaseline          uint32 = 215
)

// Error taxonomy for the property engine (clause 18.1 "Error" classes
// and the specific codes this module's objects can raise).
var (
	ErrUnknownProperty  = errors.New("objects: unknown property")
	ErrInvalidArrayIndex = errors.New("objects: invalid array index")
	ErrInvalidDataType  = errors.New("objects: invalid data type")
	ErrWriteAccessDenied = errors.New("objects: write access denied")
	ErrValueOutOfRange  = errors.New("objects: value out of range")
)

// PropertyTable names which property IDs are Required, Optional, and
// (when a type defines them) Proprietary for one object type.
type PropertyTable struct {
	Required     []uint32
	Optional     []uint32
	Proprietary  []uint32
}

// commonRequired lists the properties ANSI/ASHRAE 135 clause 12.1
// requires of every object type.
var commonRequired = []uint32{
	PropObjectIdentifier,
	PropObjectName,
	PropObjectType,
}

// Tables holds the Required/Optional property lists per Type, derived
// from the teacher's PropertyNames table and clause 12's per-type
// tables, extended with the supplemented object types named in
// original_source.
var Tables = map[Type]PropertyTable{
	TypeAnalogInput: {
		Required: append(append([]uint32{}, commonRequired...), PropPresentValue, PropStatusFlags, PropOutOfService, PropUnits),
		Optional: []uint32{PropDescription, PropReliability, PropCOVIncrement},
	},
	TypeAnalogOutput: {
		Required: append(append([]uint32{}, commonRequired...), PropPresentValue, PropStatusFlags, PropOutOfService, PropUnits, PropPriorityArray, PropRelinquishDefault),
		Optional: []uint32{PropDescription, PropReliability, PropCOVIncrement},
	},
	TypeAnalogValue: {
		Required: append(append([]uint32{}, commonRequired...), PropPresentValue, PropStatusFlags, PropUnits),
		Optional: []uint32{PropDescription, PropOutOfService, PropPriorityArray, PropRelinquishDefault, PropCOVIncrement},
	},
	TypeBinaryInput: {
		Required: append(append([]uint32{}, commonRequired...), PropPresentValue, PropStatusFlags, PropOutOfService),
		Optional: []uint32{PropDescription, PropActiveText, PropInactiveText},
	},
	TypeBinaryOutput: {
		Required: append(append([]uint32{}, commonRequired...), PropPresentValue, PropStatusFlags, PropOutOfService, PropPriorityArray, PropRelinquishDefault),
		Optional: []uint32{PropDescription, PropActiveText, PropInactiveText},
	},
	TypeBinaryValue: {
		Required: append(append([]uint32{}, commonRequired...), PropPresentValue, PropStatusFlags),
		Optional: []uint32{PropDescription, PropOutOfService, PropPriorityArray, PropRelinquishDefault},
	},
	TypeDevice: {
		Required: append(append([]uint32{}, commonRequired...),
			PropSystemStatus, PropVendorName, PropVendorIdentifier, PropModelName,
			PropFirmwareRevision, PropApplicationSoftwareVersion, PropProtocolVersion,
			PropProtocolRevision, PropProtocolServicesSupported, PropProtocolObjectTypesSupported,
			PropObjectList, PropMaxAPDULengthAccepted, PropSegmentationSupported,
			PropAPDUTimeout, PropNumberOfAPDURetries, PropDatabaseRevision),
		Optional: []uint32{PropDescription, PropDeviceAddressBinding},
	},
	TypeLightingOutput: {
		Required: append(append([]uint32{}, commonRequired...), PropPresentValue, PropStatusFlags, PropOutOfService),
		Optional: []uint32{PropDescription, PropPriorityArray, PropRelinquishDefault, PropCOVIncrement},
	},
	TypeSchedule: {
		Required: append(append([]uint32{}, commonRequired...), PropWeeklySchedule, PropScheduleDefault, PropEffectivePeriod, PropListOfObjectPropertyRefs, PropPresentValue),
		Optional: []uint32{PropDescription},
	},
	TypeStructuredView: {
		Required: append(append([]uint32{}, commonRequired...)),
		Optional: []uint32{PropDescription},
	},
	TypeBitstringValue: {
		Required: append(append([]uint32{}, commonRequired...), PropPresentValue, PropStatusFlags),
		Optional: []uint32{PropDescription, PropBitText, PropOutOfService},
	},
	TypeLoadControl: {
		Required: append(append([]uint32{}, commonRequired...), PropPresentValue, PropStatusFlags,
			PropRequestedShedLevel, PropStartTime, PropShedDuration, PropExpectedShedLevel, PropActualShedLevel),
		Optional: []uint32{PropDescription, PropFullDutyBaseline},
	},
}

// IsRequired reports whether propertyID is in t's Required list.
func (t PropertyTable) IsRequired(propertyID uint32) bool {
	for _, p := range t.Required {
		if p == propertyID {
			return true
		}
	}
	return false
}

// IsKnown reports whether propertyID appears in any of t's three lists.
func (t PropertyTable) IsKnown(propertyID uint32) bool {
	for _, list := range [][]uint32{t.Required, t.Optional, t.Proprietary} {
		for _, p := range list {
			if p == propertyID {
				return true
			}
		}
	}
	return false
}

// CheckKnown returns ErrUnknownProperty wrapped with context when
// propertyID is not in objType's table.
func CheckKnown(objType Type, propertyID uint32) error {
	table, ok := Tables[objType]
	if !ok || !table.IsKnown(propertyID) {
		return fmt.Errorf("property %d on type %d: %w", propertyID, objType, ErrUnknownProperty)
	}
	return nil
}

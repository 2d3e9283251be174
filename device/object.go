package device

import (
	"fmt"

	"github.com/greenridge/bacstack/objects"
	"github.com/greenridge/bacstack/tag"
)

// Object is the Device object itself: the one instance every Registry
// carries first, advertising the identity and protocol-capability
// properties clause 12.11 requires, grounded in the teacher's
// DeviceInfo/BACnetClient fields and original_source's device.c.
type Object struct {
	objects.Common

	VendorName               string
	VendorIdentifier         uint32
	ModelName                string
	FirmwareRevision         string
	ApplicationSoftwareVersion string
	SystemStatus             uint32 // clause 12.11.20, BACnetDeviceStatus

	ProtocolVersion  uint32
	ProtocolRevision uint32

	MaxAPDULengthAccepted uint32
	SegmentationSupported uint32 // BACnetSegmentation enumeration
	APDUTimeoutMs         uint32
	NumberOfAPDURetries   uint32

	DatabaseRevision uint32

	// servicesSupported/objectTypesSupported are recomputed by Sync
	// from the owning Device's dispatcher and registry.
	servicesSupported    tag.BitString
	objectTypesSupported tag.BitString

	// registry backs Object_List; Object itself never owns it.
	registry *objects.Registry
}

// NewObject builds a Device object bound to registry for Object_List
// and Database_Revision bookkeeping.
func NewObject(id tag.ObjectID, name string, registry *objects.Registry) *Object {
	return &Object{
		Common:   objects.Common{ID: id, Type: objects.TypeDevice, Name: name},
		registry: registry,
	}
}

// Sync recomputes the bitstring properties that depend on live
// dispatcher/registry state; called once at startup after every
// handler is registered and object added.
func (o *Object) Sync(servicesSupported, objectTypesSupported tag.BitString) {
	o.servicesSupported = servicesSupported
	o.objectTypesSupported = objectTypesSupported
}

func (o *Object) ReadProperty(propertyID uint32, arrayIndex uint32, hasIndex bool) ([]tag.Value, error) {
	switch propertyID {
	case objects.PropObjectIdentifier:
		return []tag.Value{tag.ObjectIdentifier(o.ID)}, nil
	case objects.PropObjectName:
		return []tag.Value{tag.CharacterString(o.Name)}, nil
	case objects.PropObjectType:
		return []tag.Value{tag.Enumerated(uint32(o.Type))}, nil
	case objects.PropDescription:
		return []tag.Value{tag.CharacterString(o.Description)}, nil
	case objects.PropSystemStatus:
		return []tag.Value{tag.Enumerated(o.SystemStatus)}, nil
	case objects.PropVendorName:
		return []tag.Value{tag.CharacterString(o.VendorName)}, nil
	case objects.PropVendorIdentifier:
		return []tag.Value{tag.Unsigned(o.VendorIdentifier)}, nil
	case objects.PropModelName:
		return []tag.Value{tag.CharacterString(o.ModelName)}, nil
	case objects.PropFirmwareRevision:
		return []tag.Value{tag.CharacterString(o.FirmwareRevision)}, nil
	case objects.PropApplicationSoftwareVersion:
		return []tag.Value{tag.CharacterString(o.ApplicationSoftwareVersion)}, nil
	case objects.PropProtocolVersion:
		return []tag.Value{tag.Unsigned(o.ProtocolVersion)}, nil
	case objects.PropProtocolRevision:
		return []tag.Value{tag.Unsigned(o.ProtocolRevision)}, nil
	case objects.PropProtocolServicesSupported:
		return []tag.Value{tag.BitStringValue(o.servicesSupported)}, nil
	case objects.PropProtocolObjectTypesSupported:
		return []tag.Value{tag.BitStringValue(o.objectTypesSupported)}, nil
	case objects.PropMaxAPDULengthAccepted:
		return []tag.Value{tag.Unsigned(o.MaxAPDULengthAccepted)}, nil
	case objects.PropSegmentationSupported:
		return []tag.Value{tag.Enumerated(o.SegmentationSupported)}, nil
	case objects.PropAPDUTimeout:
		return []tag.Value{tag.Unsigned(o.APDUTimeoutMs)}, nil
	case objects.PropNumberOfAPDURetries:
		return []tag.Value{tag.Unsigned(o.NumberOfAPDURetries)}, nil
	case objects.PropDatabaseRevision:
		return []tag.Value{tag.Unsigned(o.DatabaseRevision)}, nil
	case objects.PropObjectList:
		return o.objectList(), nil
	default:
		return nil, fmt.Errorf("Device %v: %w", propertyID, objects.ErrUnknownProperty)
	}
}

func (o *Object) objectList() []tag.Value {
	all := o.registry.All()
	out := make([]tag.Value, 0, len(all))
	for _, obj := range all {
		out = append(out, tag.ObjectIdentifier(obj.Identifier()))
	}
	return out
}

func (o *Object) WriteProperty(propertyID uint32, arrayIndex uint32, hasIndex bool, values []tag.Value, priority uint8) error {
	switch propertyID {
	case objects.PropObjectName:
		if values[0].Kind != tag.KindCharacterString {
			return objects.ErrInvalidDataType
		}
		o.Name = values[0].Str
		return nil
	case objects.PropAPDUTimeout:
		if values[0].Kind != tag.KindUnsigned {
			return objects.ErrInvalidDataType
		}
		o.APDUTimeoutMs = values[0].Uint
		return nil
	case objects.PropNumberOfAPDURetries:
		if values[0].Kind != tag.KindUnsigned {
			return objects.ErrInvalidDataType
		}
		o.NumberOfAPDURetries = values[0].Uint
		return nil
	default:
		return fmt.Errorf("Device %v: %w", propertyID, objects.ErrWriteAccessDenied)
	}
}

// Package config loads a node's device/transport parameters via Viper
// (file plus environment overrides), the way edgeo-scada-bacnet's
// driver loads its BACnet connection settings, then hands back the
// plain struct every other package takes by value — Viper itself never
// leaks past this package.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SegmentationSupport mirrors the clause-12 Segmentation_Supported
// enumeration.
type SegmentationSupport uint8

const (
	SegmentationBoth SegmentationSupport = iota
	SegmentationTransmit
	SegmentationReceive
	SegmentationNone
)

func parseSegmentation(s string) (SegmentationSupport, error) {
	switch strings.ToLower(s) {
	case "both", "":
		return SegmentationBoth, nil
	case "transmit":
		return SegmentationTransmit, nil
	case "receive":
		return SegmentationReceive, nil
	case "none":
		return SegmentationNone, nil
	default:
		return 0, fmt.Errorf("config: unknown segmentation_supported %q", s)
	}
}

// Config is the process-wide device/transport configuration (clause
// 6's configuration struct), passed by value/pointer through the
// public API rather than hidden behind package globals.
type Config struct {
	DeviceInstance uint32
	DeviceName     string
	VendorID       uint16
	VendorName     string
	ModelName      string

	APDUTimeout            time.Duration
	APDURetries            int
	MaxAPDULength          uint32
	SegmentationSupported  SegmentationSupport
	MaxSegments            uint8
	ProtocolRevision       uint8

	AddressCacheSize int
}

func defaults(v *viper.Viper) {
	v.SetDefault("device_instance", 1)
	v.SetDefault("device_name", "bacstack-device")
	v.SetDefault("vendor_id", 0)
	v.SetDefault("vendor_name", "")
	v.SetDefault("model_name", "")
	v.SetDefault("apdu_timeout_ms", 3000)
	v.SetDefault("apdu_retries", 3)
	v.SetDefault("max_apdu_length", 1476)
	v.SetDefault("segmentation_supported", "both")
	v.SetDefault("max_segments", 16)
	v.SetDefault("protocol_revision", 22)
	v.SetDefault("address_cache_size", 256)
}

// Load reads configuration from path (if non-empty) merged with
// BACSTACK_-prefixed environment variables, falling back to sane
// defaults for anything neither supplies.
func Load(path string) (Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("bacstack")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	seg, err := parseSegmentation(v.GetString("segmentation_supported"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DeviceInstance:        v.GetUint32("device_instance"),
		DeviceName:            v.GetString("device_name"),
		VendorID:              uint16(v.GetUint32("vendor_id")),
		VendorName:            v.GetString("vendor_name"),
		ModelName:             v.GetString("model_name"),
		APDUTimeout:           time.Duration(v.GetInt("apdu_timeout_ms")) * time.Millisecond,
		APDURetries:           v.GetInt("apdu_retries"),
		MaxAPDULength:         v.GetUint32("max_apdu_length"),
		SegmentationSupported: seg,
		MaxSegments:           uint8(v.GetUint32("max_segments")),
		ProtocolRevision:      uint8(v.GetUint32("protocol_revision")),
		AddressCacheSize:      v.GetInt("address_cache_size"),
	}
	if cfg.DeviceInstance > 0x3FFFFE {
		return Config{}, fmt.Errorf("config: device_instance %d exceeds the 22-bit instance range", cfg.DeviceInstance)
	}
	return cfg, nil
}

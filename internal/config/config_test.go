package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cfg.DeviceInstance)
	assert.Equal(t, 3*time.Second, cfg.APDUTimeout)
	assert.Equal(t, SegmentationBoth, cfg.SegmentationSupported)
	assert.Equal(t, uint8(22), cfg.ProtocolRevision)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bacstack.yaml")
	contents := []byte(`
device_instance: 4200
device_name: rooftop-ahu-1
vendor_id: 260
apdu_timeout_ms: 6000
apdu_retries: 5
segmentation_supported: transmit
max_segments: 4
protocol_revision: 14
`)
	require.NoError(t, os.WriteFile(path, contents, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(4200), cfg.DeviceInstance)
	assert.Equal(t, "rooftop-ahu-1", cfg.DeviceName)
	assert.Equal(t, uint16(260), cfg.VendorID)
	assert.Equal(t, 6*time.Second, cfg.APDUTimeout)
	assert.Equal(t, 5, cfg.APDURetries)
	assert.Equal(t, SegmentationTransmit, cfg.SegmentationSupported)
	assert.Equal(t, uint8(4), cfg.MaxSegments)
	assert.Equal(t, uint8(14), cfg.ProtocolRevision)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bacstack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device_name: from-file\n"), 0o600))

	t.Setenv("BACSTACK_DEVICE_NAME", "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DeviceName)
}

func TestLoadRejectsOutOfRangeInstance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bacstack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device_instance: 5000000\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownSegmentation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bacstack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("segmentation_supported: sideways\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

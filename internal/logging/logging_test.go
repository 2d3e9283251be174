package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWritesJSONFields(t *testing.T) {
	var buf bytes.Buffer
	lg := New(Options{Level: "debug", JSON: true, Output: &buf, DeviceTag: "dev-1"})

	lg.Event("invoke id allocated", Fields{"invoke_id": 12, "peer": "10.0.0.5:47808"})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "invoke id allocated", record["msg"])
	assert.Equal(t, "dev-1", record["device"])
	assert.Equal(t, "10.0.0.5:47808", record["peer"])
}

func TestEventErrAttachesErrorField(t *testing.T) {
	var buf bytes.Buffer
	lg := New(Options{Level: "debug", JSON: true, Output: &buf})

	lg.EventErr("retry exhausted", assert.AnError, Fields{"invoke_id": 7})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, assert.AnError.Error(), record["error"])
	assert.Equal(t, "warning", record["level"])
}

func TestNopDiscardsOutput(t *testing.T) {
	lg := Nop()
	assert.NotPanics(t, func() {
		lg.Event("ignored", Fields{"x": 1})
	})
}

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/relay-rig/internal/config"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	require.NoError(t, Setup(l, config.LoggingConfig{Level: "debug", Format: "json"}, &buf))
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.WithField("component", "relay").Debug("bank written")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "relay", entry["component"])
	assert.Equal(t, "bank written", entry["msg"])
}

func TestSetupTextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	require.NoError(t, Setup(l, config.LoggingConfig{Level: "warn", Format: "text"}, &buf))

	l.Info("hidden")
	assert.Empty(t, buf.String())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupRejectsBadValues(t *testing.T) {
	l := logrus.New()
	assert.Error(t, Setup(l, config.LoggingConfig{Level: "loud", Format: "text"}, &bytes.Buffer{}))
	assert.Error(t, Setup(l, config.LoggingConfig{Level: "info", Format: "xml"}, &bytes.Buffer{}))
}

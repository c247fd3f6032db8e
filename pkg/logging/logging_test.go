package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	buf := &bytes.Buffer{}

	logger, closer, err := New(buf, Options{Level: "warn"})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, log.WarnLevel, logger.GetLevel())
}

func TestDefaultLevel(t *testing.T) {
	logger, _, err := New(&bytes.Buffer{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, log.InfoLevel, logger.GetLevel())
}

func TestInvalidLevel(t *testing.T) {
	_, _, err := New(&bytes.Buffer{}, Options{Level: "loud"})
	assert.ErrorContains(t, err, "loud")
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responder.log")
	buf := &bytes.Buffer{}

	logger, closer, err := New(buf, Options{Level: "debug", File: path})
	require.NoError(t, err)

	logger.With("port", "/dev/ttyACM0").Debug("Radio configured")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(content), "Radio configured")
	assert.Contains(t, string(content), "/dev/ttyACM0")
	assert.Contains(t, buf.String(), "Radio configured")
}

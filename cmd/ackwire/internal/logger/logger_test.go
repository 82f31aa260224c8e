package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupText(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Output: &buf})

	Debug("hidden")
	Info("listener started", "port", 8087)

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "listener started")
	require.Contains(t, out, "port=8087")
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Debug: true, Format: "JSON", Output: &buf})

	With("remote_addr", "127.0.0.1:5000").Debug("message received", "bytes", 5)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "DEBUG", entry["level"])
	require.Equal(t, "message received", entry["msg"])
	require.Equal(t, "127.0.0.1:5000", entry["remote_addr"])
	require.EqualValues(t, 5, entry["bytes"])
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	Warn("accept failed", "error", "boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "level=WARN")
	require.Contains(t, lines[0], "error=boom")
}

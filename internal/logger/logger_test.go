package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
// Returns the buffer and a cleanup function to restore original output.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	mu.Unlock()

	InitWithWriter(buf, "", "", false)

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
	}

	return buf, cleanup
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")
		defer SetLevel("INFO")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		output := buf.String()
		assert.Contains(t, output, "debug message")
		assert.Contains(t, output, "info message")
		assert.Contains(t, output, "warn message")
		assert.Contains(t, output, "error message")
	})

	t.Run("InfoLevelFiltersDebug", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")

		Debug("debug message")
		Info("info message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.Contains(t, output, "info message")
	})

	t.Run("InvalidLevelIsIgnored", func(t *testing.T) {
		SetLevel("INFO")
		SetLevel("NOISY")
		assert.False(t, DebugEnabled())
	})
}

func TestDebugEnabled(t *testing.T) {
	SetLevel("DEBUG")
	assert.True(t, DebugEnabled())

	SetLevel("INFO")
	assert.False(t, DebugEnabled())
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	defer SetFormat("text")

	Info("structured message", Action("authenticate"), PID(1234))

	line := strings.TrimSpace(buf.String())
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	assert.Equal(t, "structured message", record["msg"])
	assert.Equal(t, "authenticate", record[KeyAction])
	assert.Equal(t, float64(1234), record[KeyPID])
}

func TestFieldConstructors(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	Info("helper exited",
		Action("authenticate"),
		Method("Prompt"),
		PID(42),
		UID(1000),
		ExitCode(7),
		Signal(9),
		Address("unix:path=%2Ftmp%2Fs,guid=g"),
		Status(4),
	)

	output := buf.String()
	for _, key := range []string{
		KeyAction, KeyMethod, KeyPID, KeyUID,
		KeyExitCode, KeySignal, KeyAddress, KeyStatus,
	} {
		assert.Contains(t, output, key)
	}
}

func TestErrFieldWithNilError(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	Info("no error here", Err(nil))
	assert.Contains(t, buf.String(), "no error here")
}

func TestInitOutputOnlySwitchesSink(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	// Init with nothing but an output path must rebuild the handler:
	// records go to the file, not to the writer the handler was built on.
	path := t.TempDir() + "/action.log"
	require.NoError(t, Init(Config{Output: path}))

	Info("message lands in file")

	require.NoError(t, Init(Config{Output: "stderr"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "message lands in file")
	assert.NotContains(t, buf.String(), "message lands in file")
}

func TestFileOutputAppends(t *testing.T) {
	path := t.TempDir() + "/bridge.log"

	require.NoError(t, Init(Config{Output: path}))
	Info("first action")

	require.NoError(t, Init(Config{Output: path}))
	Info("second action")

	// Restore the default sink before reading the file.
	require.NoError(t, Init(Config{Output: "stderr"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first action")
	assert.Contains(t, string(data), "second action")
}

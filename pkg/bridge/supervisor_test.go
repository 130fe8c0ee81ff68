package bridge

import (
	"os"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelperEnvLiteralEntries(t *testing.T) {
	opts := &Options{Env: []string{"MODE=simple", "EMPTY="}}

	env := helperEnv(opts, "unix:path=%2Ftmp%2Fs,guid=g")
	assert.Contains(t, env, "MODE=simple")
	assert.Contains(t, env, "EMPTY=")
	assert.Contains(t, env, serverAddressEnv+"=unix:path=%2Ftmp%2Fs,guid=g")
}

func TestHelperEnvForwardsOwnValue(t *testing.T) {
	t.Setenv("BRIDGE_TEST_FORWARD", "forwarded")

	env := helperEnv(&Options{Env: []string{"BRIDGE_TEST_FORWARD"}}, "addr")
	assert.Contains(t, env, "BRIDGE_TEST_FORWARD=forwarded")
}

func TestHelperEnvSkipsUnsetForward(t *testing.T) {
	os.Unsetenv("BRIDGE_TEST_NEVER_SET")

	env := helperEnv(&Options{Env: []string{"BRIDGE_TEST_NEVER_SET"}}, "addr")
	for _, entry := range env {
		assert.NotContains(t, entry, "BRIDGE_TEST_NEVER_SET")
	}
}

func TestHelperEnvNoTERMWithoutTTY(t *testing.T) {
	// Test processes run without a controlling terminal on stdin.
	t.Setenv("TERM", "xterm-256color")

	env := helperEnv(&Options{}, "addr")
	assert.NotContains(t, env, "TERM=xterm-256color")
}

func TestHelperEnvForwardsTERMOnTTY(t *testing.T) {
	ptm, pts, err := pty.Open()
	require.NoError(t, err)
	defer ptm.Close()
	defer pts.Close()

	oldStdin := os.Stdin
	os.Stdin = pts
	defer func() { os.Stdin = oldStdin }()

	t.Setenv("TERM", "xterm-256color")

	env := helperEnv(&Options{}, "addr")
	assert.Contains(t, env, "TERM=xterm-256color")
}

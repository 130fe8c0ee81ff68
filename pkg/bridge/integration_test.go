package bridge

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/pambridge/internal/protocol/bridgerpc"
	"github.com/marmos91/pambridge/pkg/helper"
	"github.com/marmos91/pambridge/pkg/pam"
	"github.com/marmos91/pambridge/pkg/pam/pamtest"
)

// helperBin is the real pambridge-helper binary, built once per test run.
var helperBin string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "pambridge-it-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	helperBin = filepath.Join(dir, "pambridge-helper")
	build := exec.Command("go", "build", "-o", helperBin,
		"github.com/marmos91/pambridge/cmd/pambridge-helper")
	if out, err := build.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "build helper: %v\n%s", err, out)
		os.RemoveAll(dir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func runHelper(t *testing.T, h pam.Handle, steps ...string) pam.Status {
	t.Helper()

	state := newTestState(t)
	var mod Module
	return mod.Authenticate(state, h, 0, append([]string{helperBin}, steps...))
}

func TestHelperExitStatus(t *testing.T) {
	h := pamtest.NewFakeHandle()
	assert.Equal(t, pam.AuthErr, runHelper(t, h, "exit=7"))
}

func TestHelperSetsEnvironment(t *testing.T) {
	h := pamtest.NewFakeHandle()

	status := runHelper(t, h, "set-env=FROM_HELPER=yes", "exit=0")
	require.Equal(t, pam.Success, status)

	entries, err := h.GetEnvList()
	require.NoError(t, err)
	assert.Contains(t, entries, "FROM_HELPER=yes")
}

func TestHelperUnsetsEnvironment(t *testing.T) {
	h := pamtest.NewFakeHandle()
	require.NoError(t, h.PutEnv("PRESET=1"))

	status := runHelper(t, h, "unset-env=PRESET", "exit=0")
	require.Equal(t, pam.Success, status)

	assert.Empty(t, h.GetEnv("PRESET"))
}

func TestHelperDrivesConversation(t *testing.T) {
	h := pamtest.NewFakeHandle()
	h.PromptResponses = []string{"hunter2"}

	status := runHelper(t, h, "prompt=1:Password: ", "exit=0")
	require.Equal(t, pam.Success, status)

	prompts := h.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, pam.PromptEchoOff, prompts[0].Style)
	assert.Equal(t, "Password: ", prompts[0].Msg)
}

func TestHelperItemsRoundTrip(t *testing.T) {
	h := pamtest.NewFakeHandle()

	status := runHelper(t, h, "set-item=2=alice", "get-item=2", "exit=0")
	require.Equal(t, pam.Success, status)

	user, err := h.GetItem(pam.User)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
}

func TestHelperDataIsNamespaced(t *testing.T) {
	h := pamtest.NewFakeHandle()

	status := runHelper(t, h, "set-data=token=abc", "exit=0")
	require.Equal(t, pam.Success, status)

	// The helper's key lands under the bridge's data namespace.
	assert.Equal(t, []string{bridgerpc.DataKey("token")}, h.DataKeys())

	data, err := h.GetData(bridgerpc.DataKey("token"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestHelperSignalDeathDuringAction(t *testing.T) {
	h := pamtest.NewFakeHandle()

	// SIGKILL: 9. The helper raises it against itself mid-action.
	status := runHelper(t, h, "set-env=BEFORE=1", "signal-self=9")
	assert.Equal(t, pam.SystemErr, status)

	// Work done before the signal is not rolled back.
	assert.Equal(t, "1", h.GetEnv("BEFORE"))
}

func TestForeignProcessConnectionRefused(t *testing.T) {
	srv, err := bridgerpc.NewServer()
	require.NoError(t, err)
	defer srv.Close()

	h := pamtest.NewFakeHandle()
	notified := make(chan string, 1)
	sess, err := srv.Arm(h, "authenticate", func(msg string) {
		select {
		case notified <- msg:
		default:
		}
	})
	require.NoError(t, err)
	defer sess.Close()

	// A PID that matches neither the dialing helper nor this process.
	sess.SetExpectedPID(1)

	cmd := exec.Command(helperBin, "-flags", "0", "authenticate", "set-env=X=1")
	cmd.Env = []string{helper.ServerAddressEnv + "=" + srv.Address()}
	runErr := cmd.Run()

	var exitErr *exec.ExitError
	require.ErrorAs(t, runErr, &exitErr)
	assert.Equal(t, 255, exitErr.ExitCode())

	// The refused peer never reached the dispatcher.
	assert.Empty(t, h.GetEnv("X"))

	select {
	case msg := <-notified:
		assert.Contains(t, msg, "untrusted")
	case <-time.After(2 * time.Second):
		t.Fatal("rejection was not reported through the notifier")
	}
}

func TestHelperUnknownStepFails(t *testing.T) {
	h := pamtest.NewFakeHandle()

	// The scenario helper exits 255 on errors of its own, which is out of
	// the PAM range.
	status := runHelper(t, h, "explode")
	assert.Equal(t, pam.SystemErr, status)
}

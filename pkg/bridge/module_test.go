package bridge

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/pambridge/pkg/pam"
	"github.com/marmos91/pambridge/pkg/pam/pamtest"
)

// writeScript drops an executable shell script into a fresh directory and
// returns its path. Scripts stand in for helpers that never speak RPC.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "helper.sh")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func newTestState(t *testing.T) *ModuleState {
	t.Helper()

	state := NewModuleState()
	t.Cleanup(state.Release)
	return state
}

func TestUnsupportedActionsAreIgnored(t *testing.T) {
	state := newTestState(t)
	h := pamtest.NewFakeHandle()
	var mod Module

	args := []string{"/bin/true"}
	assert.Equal(t, pam.Ignore, mod.OpenSession(state, h, 0, args))
	assert.Equal(t, pam.Ignore, mod.CloseSession(state, h, 0, args))
	assert.Equal(t, pam.Ignore, mod.SetCred(state, h, 0, args))

	// No helper runs, so the user sees nothing.
	assert.Empty(t, h.Prompts())
}

func TestBadConfigurationNotifiesUser(t *testing.T) {
	state := newTestState(t)
	h := pamtest.NewFakeHandle()
	var mod Module

	status := mod.Authenticate(state, h, 0, []string{"exec-bogus", "/bin/true"})
	assert.Equal(t, pam.SystemErr, status)

	prompts := h.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, pam.ErrorMsg, prompts[0].Style)
	assert.Contains(t, prompts[0].Msg, "invalid module configuration")
}

func TestSilentFlagSuppressesNotification(t *testing.T) {
	state := newTestState(t)
	h := pamtest.NewFakeHandle()
	var mod Module

	status := mod.Authenticate(state, h, pam.Silent, []string{"exec-bogus", "/bin/true"})
	assert.Equal(t, pam.SystemErr, status)
	assert.Empty(t, h.Prompts())
}

func TestMissingExecutable(t *testing.T) {
	state := newTestState(t)
	h := pamtest.NewFakeHandle()
	var mod Module

	status := mod.Authenticate(state, h, 0,
		[]string{filepath.Join(t.TempDir(), "nope")})
	assert.Equal(t, pam.ModuleUnknown, status)

	prompts := h.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, pam.ErrorMsg, prompts[0].Style)
}

func TestNonExecutableFile(t *testing.T) {
	state := newTestState(t)
	h := pamtest.NewFakeHandle()
	var mod Module

	path := filepath.Join(t.TempDir(), "helper.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0644))

	status := mod.Authenticate(state, h, 0, []string{path})
	assert.Equal(t, pam.ModuleUnknown, status)
}

func TestExitCodeIsReportedVerbatim(t *testing.T) {
	state := newTestState(t)
	var mod Module

	tests := []struct {
		code string
		want pam.Status
	}{
		{"0", pam.Success},
		{"7", pam.AuthErr},
		{"25", pam.Ignore},
		{"31", pam.Incomplete},
	}

	for _, tt := range tests {
		t.Run("exit "+tt.code, func(t *testing.T) {
			script := writeScript(t, "exit "+tt.code)
			status := mod.Authenticate(state, pamtest.NewFakeHandle(), 0, []string{script})
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestOutOfRangeExitCodeIsSystemErr(t *testing.T) {
	state := newTestState(t)
	var mod Module

	for _, code := range []string{"32", "77", "255"} {
		t.Run("exit "+code, func(t *testing.T) {
			script := writeScript(t, "exit "+code)
			status := mod.Authenticate(state, pamtest.NewFakeHandle(), 0, []string{script})
			assert.Equal(t, pam.SystemErr, status)
		})
	}
}

func TestSignalDeathIsSystemErr(t *testing.T) {
	state := newTestState(t)
	var mod Module

	script := writeScript(t, "kill -9 $$")
	status := mod.Authenticate(state, pamtest.NewFakeHandle(), 0, []string{script})
	assert.Equal(t, pam.SystemErr, status)
}

func TestHelperReceivesSpawnContract(t *testing.T) {
	state := newTestState(t)
	var mod Module

	out := filepath.Join(t.TempDir(), "env.txt")
	script := writeScript(t, `env > "$OUT"; echo "$@" >> "$OUT"`)

	status := mod.AcctMgmt(state, pamtest.NewFakeHandle(), pam.Silent, []string{
		"exec-env=OUT=" + out,
		"exec-env=MODE=simple",
		script,
		"--extra",
	})
	require.Equal(t, pam.Success, status)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "MODE=simple")
	assert.Contains(t, content, serverAddressEnv+"=unix:path=")
	// argv: -flags <int> <action> <extra...>
	assert.Contains(t, content, "-flags "+
		"32768 acct_mgmt --extra")
}

func TestServerIsReusedAcrossActions(t *testing.T) {
	state := newTestState(t)
	var mod Module

	readAddress := func() string {
		out := filepath.Join(t.TempDir(), "addr.txt")
		script := writeScript(t, `echo "$PAMBRIDGE_SERVER_ADDRESS" > "$OUT"`)
		status := mod.Authenticate(state, pamtest.NewFakeHandle(), 0, []string{
			"exec-env=OUT=" + out, script,
		})
		require.Equal(t, pam.Success, status)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		return strings.TrimSpace(string(data))
	}

	first := readAddress()
	second := readAddress()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestExecLogOptionWritesFile(t *testing.T) {
	state := newTestState(t)
	var mod Module

	logPath := filepath.Join(t.TempDir(), "bridge.log")
	script := writeScript(t, "exit 0")

	status := mod.Authenticate(state, pamtest.NewFakeHandle(), pam.Silent, []string{
		"exec-log=" + logPath,
		"exec-debug",
		script,
	})
	require.Equal(t, pam.Success, status)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "action finished")
	// Debug-level records prove exec-debug took effect for the action.
	assert.Contains(t, content, "helper exited")
}

func TestConcurrentActionsAreSerialized(t *testing.T) {
	out := filepath.Join(t.TempDir(), "trace.txt")
	script := writeScript(t, `echo start >> "$OUT"
sleep 1
echo end >> "$OUT"`)

	// Two actions on two independent module states: the one-helper-at-a-
	// time lock spans all states in the process.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			state := NewModuleState()
			defer state.Release()

			var mod Module
			status := mod.Authenticate(state, pamtest.NewFakeHandle(), pam.Silent,
				[]string{"exec-env=OUT=" + out, script})
			assert.Equal(t, pam.Success, status)
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "start\nend\nstart\nend\n", string(data))
}

func TestReleaseIsIdempotent(t *testing.T) {
	state := NewModuleState()

	_, err := state.ensureServer()
	require.NoError(t, err)

	state.Release()
	state.Release()

	_, err = state.ensureServer()
	assert.Error(t, err)
}

func TestActionsAfterReleaseFail(t *testing.T) {
	state := NewModuleState()
	state.Release()

	var mod Module
	script := writeScript(t, "exit 0")
	status := mod.Authenticate(state, pamtest.NewFakeHandle(), pam.Silent, []string{script})
	assert.Equal(t, pam.SystemErr, status)
}

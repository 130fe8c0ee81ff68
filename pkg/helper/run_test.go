package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/pambridge/pkg/pam"
)

func TestRunRequiresAction(t *testing.T) {
	code := run([]string{"helper", "-flags", "0"}, nil)
	assert.Equal(t, failureExitCode, code)
}

func TestRunRejectsUnknownAction(t *testing.T) {
	code := run([]string{"helper", "-flags", "0", "reboot"}, nil)
	assert.Equal(t, failureExitCode, code)
}

func TestRunRequiresServerAddress(t *testing.T) {
	t.Setenv(ServerAddressEnv, "")

	code := run([]string{"helper", "-flags", "0", "authenticate"}, nil)
	assert.Equal(t, failureExitCode, code)
}

func TestRunFailsWhenServerIsGone(t *testing.T) {
	t.Setenv(ServerAddressEnv, "unix:path=%2Fnonexistent%2Fbridge.sock,guid=g")

	called := false
	code := run([]string{"helper", "-flags", "0", "authenticate"},
		func(tx *Transaction, action pam.Action, flags pam.Flags, args []string) error {
			called = true
			return nil
		})
	assert.Equal(t, failureExitCode, code)
	assert.False(t, called)
}

func TestRunRejectsBadFlags(t *testing.T) {
	code := run([]string{"helper", "-flags", "many", "authenticate"}, nil)
	assert.Equal(t, failureExitCode, code)
}

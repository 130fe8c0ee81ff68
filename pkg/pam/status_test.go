package pam

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "authentication failure", AuthErr.String())
	assert.Equal(t, "unknown status 99", Status(99).String())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, Success.Valid())
	assert.True(t, Incomplete.Valid())
	assert.False(t, ReturnValues.Valid())
	assert.False(t, Status(-1).Valid())
	assert.False(t, Status(255).Valid())
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, Success, ToStatus(nil))
	assert.Equal(t, AuthErr, ToStatus(AuthErr))
	assert.Equal(t, BadItem, ToStatus(fmt.Errorf("wrapped: %w", BadItem)))
	assert.Equal(t, SystemErr, ToStatus(fmt.Errorf("plain failure")))
}

func TestParseActionRoundTrip(t *testing.T) {
	for _, action := range []Action{
		ActionAuthenticate, ActionAcctMgmt, ActionChAuthTok,
		ActionOpenSession, ActionCloseSession, ActionSetCred,
	} {
		parsed, err := ParseAction(action.String())
		assert.NoError(t, err)
		assert.Equal(t, action, parsed)
	}

	_, err := ParseAction("reboot")
	assert.Error(t, err)
}

package pam

import (
	"errors"
	"fmt"
)

// Status is a PAM return value. The numeric values follow the PAM ABI so a
// helper's exit code can be used verbatim as the action status.
type Status int

// PAM return values, in ABI order.
const (
	Success             Status = 0
	OpenErr             Status = 1
	SymbolErr           Status = 2
	ServiceErr          Status = 3
	SystemErr           Status = 4
	BufErr              Status = 5
	PermDenied          Status = 6
	AuthErr             Status = 7
	CredInsufficient    Status = 8
	AuthinfoUnavail     Status = 9
	UserUnknown         Status = 10
	MaxTries            Status = 11
	NewAuthTokReqd      Status = 12
	AcctExpired         Status = 13
	SessionErr          Status = 14
	CredUnavail         Status = 15
	CredExpired         Status = 16
	CredErr             Status = 17
	NoModuleData        Status = 18
	ConvErr             Status = 19
	AuthtokErr          Status = 20
	AuthtokRecoveryErr  Status = 21
	AuthtokLockBusy     Status = 22
	AuthtokDisableAging Status = 23
	TryAgain            Status = 24
	Ignore              Status = 25
	Abort               Status = 26
	AuthtokExpired      Status = 27
	ModuleUnknown       Status = 28
	BadItem             Status = 29
	ConvAgain           Status = 30
	Incomplete          Status = 31

	// ReturnValues is the number of defined PAM return values. Helper exit
	// codes at or above this bound cannot be PAM statuses.
	ReturnValues Status = 32
)

var statusNames = map[Status]string{
	Success:             "success",
	OpenErr:             "failed to load module",
	SymbolErr:           "symbol not found",
	ServiceErr:          "error in service module",
	SystemErr:           "system error",
	BufErr:              "memory buffer error",
	PermDenied:          "permission denied",
	AuthErr:             "authentication failure",
	CredInsufficient:    "insufficient credentials",
	AuthinfoUnavail:     "authentication information unavailable",
	UserUnknown:         "user not known",
	MaxTries:            "maximum number of retries exceeded",
	NewAuthTokReqd:      "new authentication token required",
	AcctExpired:         "account expired",
	SessionErr:          "session failure",
	CredUnavail:         "credentials unavailable",
	CredExpired:         "credentials expired",
	CredErr:             "failure setting credentials",
	NoModuleData:        "no module specific data",
	ConvErr:             "conversation error",
	AuthtokErr:          "authentication token manipulation error",
	AuthtokRecoveryErr:  "authentication information cannot be recovered",
	AuthtokLockBusy:     "authentication token lock busy",
	AuthtokDisableAging: "authentication token aging disabled",
	TryAgain:            "failed preliminary check",
	Ignore:              "ignore module",
	Abort:               "critical error",
	AuthtokExpired:      "authentication token expired",
	ModuleUnknown:       "module is unknown",
	BadItem:             "bad item",
	ConvAgain:           "conversation is waiting for an event",
	Incomplete:          "application needs to call libpam again",
}

// String returns the textual description of the status, in the spirit of
// pam_strerror.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown status %d", int(s))
}

// Error makes Status usable as an error value. Success should never be
// returned as an error; use nil instead.
func (s Status) Error() string {
	return s.String()
}

// Valid reports whether s is within the defined PAM return value range.
func (s Status) Valid() bool {
	return s >= Success && s < ReturnValues
}

// ToStatus converts an error returned by a Handle method into a Status.
// A nil error is Success, a Status error is returned as-is and anything
// else collapses to SystemErr.
func ToStatus(err error) Status {
	if err == nil {
		return Success
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return SystemErr
}

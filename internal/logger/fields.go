package logger

import "log/slog"

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so one action's records can be correlated.
const (
	KeyAction   = "action"    // PAM action word: authenticate, acct_mgmt, ...
	KeyMethod   = "method"    // RPC method name: SetItem, Prompt, ...
	KeyPID      = "pid"       // Helper (or peer) process ID
	KeyUID      = "uid"       // Peer user ID
	KeyExitCode = "exit_code" // Helper exit code
	KeySignal   = "signal"    // Signal that terminated the helper
	KeyAddress  = "address"   // Server connect address
	KeyStatus   = "status"    // PAM status code
	KeyError    = "error"     // Error message
)

// Action returns a slog.Attr for the PAM action word.
func Action(name string) slog.Attr {
	return slog.String(KeyAction, name)
}

// Method returns a slog.Attr for an RPC method name.
func Method(name string) slog.Attr {
	return slog.String(KeyMethod, name)
}

// PID returns a slog.Attr for a process ID.
func PID(pid int) slog.Attr {
	return slog.Int(KeyPID, pid)
}

// UID returns a slog.Attr for a user ID.
func UID(uid uint32) slog.Attr {
	return slog.Any(KeyUID, uid)
}

// ExitCode returns a slog.Attr for a helper exit code.
func ExitCode(code int) slog.Attr {
	return slog.Int(KeyExitCode, code)
}

// Signal returns a slog.Attr for a terminating signal number.
func Signal(sig int) slog.Attr {
	return slog.Int(KeySignal, sig)
}

// Address returns a slog.Attr for the server connect address.
func Address(addr string) slog.Attr {
	return slog.String(KeyAddress, addr)
}

// Status returns a slog.Attr for a PAM status code.
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

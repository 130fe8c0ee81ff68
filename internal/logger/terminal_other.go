//go:build !linux

package logger

// isTerminal is a conservative fallback for platforms without Linux-PAM;
// color output stays disabled there.
func isTerminal(fd uintptr) bool {
	return false
}

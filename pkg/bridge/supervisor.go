package bridge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/marmos91/pambridge/internal/logger"
	"github.com/marmos91/pambridge/pkg/pam"
)

// serverAddressEnv is the environment variable carrying the connect
// address to the helper.
const serverAddressEnv = "PAMBRIDGE_SERVER_ADDRESS"

// supervisor owns one spawned helper process: it reaps the child in the
// background and maps its termination to a PAM status.
type supervisor struct {
	cmd    *exec.Cmd
	action string
	exitCh chan error
}

// spawnHelper starts the helper for one action.
//
// The helper gets a minimal environment, not the bridge's own: the connect
// address, the exec-env entries from the configuration and, when stdin is
// a terminal, the current TERM. Stdio is inherited only in that
// interactive case so a helper run under sshd cannot scribble on the
// daemon's descriptors.
func spawnHelper(opts *Options, action string, flags pam.Flags, address string) (*supervisor, error) {
	argv := make([]string, 0, 3+len(opts.Args))
	argv = append(argv, "-flags", strconv.Itoa(int(flags)), action)
	argv = append(argv, opts.Args...)

	cmd := exec.Command(opts.Executable, argv...)
	cmd.Env = helperEnv(opts, address)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.Executable, err)
	}

	sup := &supervisor{
		cmd:    cmd,
		action: action,
		exitCh: make(chan error, 1),
	}
	go func() {
		sup.exitCh <- cmd.Wait()
	}()

	logger.Debug("helper started",
		logger.Action(action), logger.PID(cmd.Process.Pid), logger.Address(address))
	return sup, nil
}

// pid returns the helper's process ID.
func (s *supervisor) pid() int {
	return s.cmd.Process.Pid
}

// wait blocks until the helper exits or the context is cancelled. On
// cancellation the helper is killed and the action fails.
func (s *supervisor) wait(ctx context.Context) pam.Status {
	select {
	case err := <-s.exitCh:
		return s.mapExit(err)
	case <-ctx.Done():
		logger.Warn("action cancelled, killing helper",
			logger.Action(s.action), logger.PID(s.pid()))
		s.cmd.Process.Kill()
		<-s.exitCh
		return pam.SystemErr
	}
}

// mapExit turns a Wait result into the action's PAM status. Exit codes in
// the PAM range come back verbatim; everything else (signals, wait
// failures, out-of-range codes) collapses to SystemErr with the detail
// logged.
func (s *supervisor) mapExit(waitErr error) pam.Status {
	if waitErr == nil {
		logger.Debug("helper exited",
			logger.Action(s.action), logger.PID(s.pid()), logger.ExitCode(0))
		return pam.Success
	}

	exitErr, ok := waitErr.(*exec.ExitError)
	if !ok {
		logger.Error("helper wait failed",
			logger.Action(s.action), logger.PID(s.pid()), logger.Err(waitErr))
		return pam.SystemErr
	}

	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if ok && ws.Signaled() {
		logger.Error("helper killed by signal",
			logger.Action(s.action), logger.PID(s.pid()), logger.Signal(int(ws.Signal())))
		return pam.SystemErr
	}

	code := exitErr.ExitCode()
	if code >= 0 && code < int(pam.ReturnValues) {
		logger.Debug("helper exited",
			logger.Action(s.action), logger.PID(s.pid()), logger.ExitCode(code))
		return pam.Status(code)
	}

	logger.Error("helper exit code out of range",
		logger.Action(s.action), logger.PID(s.pid()), logger.ExitCode(code))
	return pam.SystemErr
}

// helperEnv assembles the child environment.
func helperEnv(opts *Options, address string) []string {
	env := make([]string, 0, len(opts.Env)+2)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		if v, ok := os.LookupEnv("TERM"); ok {
			env = append(env, "TERM="+v)
		}
	}

	for _, entry := range opts.Env {
		if strings.Contains(entry, "=") {
			env = append(env, entry)
			continue
		}
		// Bare NAME forwards our own value, skipped when unset.
		if v, ok := os.LookupEnv(entry); ok {
			env = append(env, entry+"="+v)
		}
	}

	env = append(env, serverAddressEnv+"="+address)
	return env
}

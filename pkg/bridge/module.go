// Package bridge implements the PAM-side half of the exec bridge: it
// spawns the configured helper executable for each action and lets it
// drive the PAM transaction over the private RPC channel.
package bridge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/marmos91/pambridge/internal/logger"
	"github.com/marmos91/pambridge/pkg/pam"
)

// execMu serializes helper execution across every module state in the
// process. PAM stacks are sequential per handle, but one process can hold
// several handles; only one helper may run at a time.
var execMu sync.Mutex

// Module exposes the six PAM entry points.
type Module struct{}

// Authenticate runs the helper for the authenticate action.
func (m Module) Authenticate(state *ModuleState, h pam.Handle, flags pam.Flags, args []string) pam.Status {
	return m.run(state, h, pam.ActionAuthenticate, flags, args)
}

// AcctMgmt runs the helper for the account management action.
func (m Module) AcctMgmt(state *ModuleState, h pam.Handle, flags pam.Flags, args []string) pam.Status {
	return m.run(state, h, pam.ActionAcctMgmt, flags, args)
}

// ChangeAuthTok runs the helper for the password change action.
func (m Module) ChangeAuthTok(state *ModuleState, h pam.Handle, flags pam.Flags, args []string) pam.Status {
	return m.run(state, h, pam.ActionChAuthTok, flags, args)
}

// OpenSession is not supported by the helper contract.
func (m Module) OpenSession(state *ModuleState, h pam.Handle, flags pam.Flags, args []string) pam.Status {
	return m.ignore(pam.ActionOpenSession)
}

// CloseSession is not supported by the helper contract.
func (m Module) CloseSession(state *ModuleState, h pam.Handle, flags pam.Flags, args []string) pam.Status {
	return m.ignore(pam.ActionCloseSession)
}

// SetCred is not supported by the helper contract.
func (m Module) SetCred(state *ModuleState, h pam.Handle, flags pam.Flags, args []string) pam.Status {
	return m.ignore(pam.ActionSetCred)
}

func (m Module) ignore(action pam.Action) pam.Status {
	logger.Debug("action not supported, ignoring", logger.Action(action.String()))
	return pam.Ignore
}

// run drives one action end to end: options, server, spawn, wait,
// teardown. Every exit path disarms the server and restores logging.
func (m Module) run(state *ModuleState, h pam.Handle, action pam.Action, flags pam.Flags, args []string) pam.Status {
	opts, err := parseOptions(args)
	if err != nil {
		logger.Error("bad module configuration", logger.Action(action.String()), logger.Err(err))
		notify(h, flags, fmt.Sprintf("invalid module configuration: %v", err))
		return pam.SystemErr
	}

	restoreLog := configureLogging(opts)
	defer restoreLog()

	if err := checkExecutable(opts.Executable); err != nil {
		logger.Error("helper not usable", logger.Action(action.String()), logger.Err(err))
		notify(h, flags, fmt.Sprintf("cannot run %s: %v", opts.Executable, err))
		return pam.ModuleUnknown
	}

	server, err := state.ensureServer()
	if err != nil {
		logger.Error("cannot create RPC server", logger.Action(action.String()), logger.Err(err))
		notify(h, flags, "cannot set up helper communication")
		return pam.SystemErr
	}

	execMu.Lock()
	defer execMu.Unlock()

	sess, err := server.Arm(h, action.String(), func(msg string) {
		notify(h, flags, msg)
	})
	if err != nil {
		logger.Error("cannot arm action", logger.Action(action.String()), logger.Err(err))
		return pam.SystemErr
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(state.Context())
	defer cancel()

	sup, err := spawnHelper(opts, action.String(), flags, server.Address())
	if err != nil {
		logger.Error("cannot start helper", logger.Action(action.String()), logger.Err(err))
		notify(h, flags, fmt.Sprintf("cannot start %s", opts.Executable))
		return pam.SystemErr
	}
	sess.SetExpectedPID(sup.pid())

	status := sup.wait(ctx)
	logger.Info("action finished",
		logger.Action(action.String()), logger.Status(int(status)))
	return status
}

// configureLogging applies per-action log options and returns the restore
// function for teardown. Options are per configuration line, so the next
// action must not inherit them.
func configureLogging(opts *Options) func() {
	if !opts.Debug && opts.LogFile == "" {
		return func() {}
	}

	if opts.Debug {
		logger.SetLevel("DEBUG")
	}
	if opts.LogFile != "" {
		if err := logger.Init(logger.Config{Output: opts.LogFile}); err != nil {
			logger.Warn("cannot open log file", logger.Err(err))
		}
	}

	return func() {
		if opts.Debug {
			logger.SetLevel("INFO")
		}
		if opts.LogFile != "" {
			logger.Init(logger.Config{Output: "stderr"})
		}
	}
}

// checkExecutable verifies the helper path points at an executable
// regular file.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if info.Mode().Perm()&0111 == 0 {
		return fs.ErrPermission
	}
	return nil
}

// notify shows an error message to the user through the conversation,
// unless the application asked for silence. Conversation failures here are
// ignored: the action is already failing.
func notify(h pam.Handle, flags pam.Flags, msg string) {
	if flags&pam.Silent != 0 {
		return
	}
	h.Prompt(pam.ErrorMsg, msg)
}

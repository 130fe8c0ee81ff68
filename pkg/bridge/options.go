package bridge

import (
	"fmt"
	"strings"
)

// Options is the parsed module argument list.
//
// The PAM configuration line looks like
//
//	auth [...] pam_bridge.so [exec-options...] /path/to/helper [helper args...]
//
// Everything starting with "exec-" before the executable path configures
// the bridge itself; the executable and anything after it belong to the
// helper.
type Options struct {
	// Debug enables debug-level logging for the action.
	Debug bool

	// LogFile, when set, receives the action's log output (appended).
	LogFile string

	// Env lists exec-env entries in configuration order. A bare NAME
	// forwards the bridge's own value of NAME; NAME=value passes the
	// literal pair through.
	Env []string

	// Executable is the helper path.
	Executable string

	// Args are the extra arguments handed to the helper after the action
	// word.
	Args []string
}

// parseOptions splits the module argument list into bridge options and the
// helper invocation. Unknown exec-* arguments are configuration errors.
func parseOptions(args []string) (*Options, error) {
	opts := &Options{}

	for i, arg := range args {
		if !strings.HasPrefix(arg, "exec-") {
			opts.Executable = arg
			opts.Args = append(opts.Args, args[i+1:]...)
			break
		}

		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "exec-debug":
			if hasValue {
				return nil, fmt.Errorf("invalid option %q: expected bare exec-debug", arg)
			}
			opts.Debug = true
		case "exec-log":
			if !hasValue || value == "" {
				return nil, fmt.Errorf("invalid option %q: expected exec-log=<path>", arg)
			}
			opts.LogFile = value
		case "exec-env":
			if !hasValue || value == "" {
				return nil, fmt.Errorf("invalid option %q: expected exec-env=NAME or exec-env=NAME=value", arg)
			}
			opts.Env = append(opts.Env, value)
		default:
			return nil, fmt.Errorf("unknown option %q", name)
		}
	}

	if opts.Executable == "" {
		return nil, fmt.Errorf("no executable path in module arguments")
	}
	return opts, nil
}

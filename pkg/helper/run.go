package helper

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/marmos91/pambridge/pkg/pam"
)

// ServerAddressEnv is the environment variable the bridge uses to hand the
// connect address to the helper.
const ServerAddressEnv = "PAMBRIDGE_SERVER_ADDRESS"

// Handler is a helper's entry point: it receives the live transaction, the
// action being performed, the PAM flags the application passed and the
// extra arguments from the module configuration line.
//
// The returned error decides the action's PAM status: nil is Success, a
// pam.Status is reported verbatim, anything else is a hard failure.
type Handler func(tx *Transaction, action pam.Action, flags pam.Flags, args []string) error

// failureExitCode is the exit code for errors that carry no PAM status.
// It sits outside the PAM range, so the bridge reports SystemErr.
const failureExitCode = 255

// Run implements the spawn contract: it parses the bridge's command line,
// connects to the server and hands control to the handler. The return
// value is the process exit code, so a helper main is just
//
//	os.Exit(helper.Run(myHandler))
func Run(handler Handler) int {
	return run(os.Args, handler)
}

func run(argv []string, handler Handler) int {
	fs := flag.NewFlagSet(argv[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	flagsArg := fs.Int("flags", 0, "PAM flags the application passed to the action")
	if err := fs.Parse(argv[1:]); err != nil {
		return failureExitCode
	}

	args := fs.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "missing action argument")
		return failureExitCode
	}

	action, err := pam.ParseAction(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return failureExitCode
	}

	address := os.Getenv(ServerAddressEnv)
	if address == "" {
		fmt.Fprintf(os.Stderr, "%s is not set\n", ServerAddressEnv)
		return failureExitCode
	}

	tx, cleanup, err := Connect(context.Background(), address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot connect to bridge: %v\n", err)
		return failureExitCode
	}
	defer cleanup()

	if err := handler(tx, action, pam.Flags(*flagsArg), args[1:]); err != nil {
		var status pam.Status
		if errors.As(err, &status) {
			return int(status)
		}
		fmt.Fprintln(os.Stderr, err)
		return failureExitCode
	}
	return int(pam.Success)
}

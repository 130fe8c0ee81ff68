package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/pambridge/pkg/bridge"
	"github.com/marmos91/pambridge/pkg/pam"
)

var (
	execAction string
	execFlags  int
)

var execCmd = &cobra.Command{
	Use:   "exec [exec-options...] <helper> [helper args...]",
	Short: "Run a helper against a console transaction",
	Long: `Run a helper executable the way the PAM module would, but with the
conversation wired to this terminal instead of a PAM application.

The arguments are exactly what would follow the module name on a PAM
configuration line, for example:

  pambridge exec exec-debug /usr/libexec/my-helper --mode simple

Prompts issued by the helper are answered interactively; the final PAM
status is printed and becomes the exit code.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := pam.ParseAction(execAction)
		if err != nil {
			return err
		}

		state := bridge.NewModuleState()
		defer state.Release()

		h := newConsoleHandle()
		var mod bridge.Module

		var status pam.Status
		switch action {
		case pam.ActionAuthenticate:
			status = mod.Authenticate(state, h, pam.Flags(execFlags), args)
		case pam.ActionAcctMgmt:
			status = mod.AcctMgmt(state, h, pam.Flags(execFlags), args)
		case pam.ActionChAuthTok:
			status = mod.ChangeAuthTok(state, h, pam.Flags(execFlags), args)
		case pam.ActionOpenSession:
			status = mod.OpenSession(state, h, pam.Flags(execFlags), args)
		case pam.ActionCloseSession:
			status = mod.CloseSession(state, h, pam.Flags(execFlags), args)
		case pam.ActionSetCred:
			status = mod.SetCred(state, h, pam.Flags(execFlags), args)
		}

		fmt.Printf("%s: %s (%d)\n", action, status, int(status))
		if status != pam.Success && status != pam.Ignore {
			return status
		}
		return nil
	},
}

func init() {
	execCmd.Flags().StringVar(&execAction, "action", "authenticate",
		"PAM action to perform (authenticate, acct_mgmt, chauthtok, ...)")
	execCmd.Flags().IntVar(&execFlags, "flags", 0,
		"PAM flags to pass to the helper")

	// Everything after the first positional belongs to the helper.
	execCmd.Flags().SetInterspersed(false)
}

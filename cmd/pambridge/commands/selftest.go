package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/pambridge/pkg/bridge"
)

var selftestTimeout time.Duration

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Smoke-test the RPC channel on this machine",
	Long: `Stand up a bridge server, connect to it from this same process and
exercise every RPC method end to end.

This verifies socket setup, peer-credential checks and the wire protocol
without touching the PAM stack. Run it after installing the module.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), selftestTimeout)
		defer cancel()

		if err := bridge.SelfTest(ctx); err != nil {
			return fmt.Errorf("self-test failed: %w", err)
		}
		fmt.Println("self-test passed")
		return nil
	},
}

func init() {
	selftestCmd.Flags().DurationVar(&selftestTimeout, "timeout", 10*time.Second,
		"Abort the self-test after this long")
}

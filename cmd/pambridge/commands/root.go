// Package commands implements the CLI commands for the pambridge tool.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/pambridge/internal/logger"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pambridge",
	Short: "Diagnostics for the PAM exec bridge",
	Long: `pambridge is the companion tool of the PAM exec bridge module.

It can smoke-test the RPC channel on the local machine and run a helper
executable against an interactive console transaction, outside a real
PAM stack.

Use "pambridge [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(logger.Config{
			Level:  logLevel,
			Format: logFormat,
		})
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO",
		"Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"Log format (text, json)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(selftestCmd)
	rootCmd.AddCommand(execCmd)
}

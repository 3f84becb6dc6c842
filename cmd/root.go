package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
)

// rootCmd is the entry point when celixdm is invoked without a
// subcommand.
var rootCmd = &cobra.Command{
	Use:   "celixdm",
	Short: "A dependency-manager component engine",
	Long: `celixdm runs a small OSGi/Celix-style dependency manager: components
declare required and optional service dependencies, and the engine drives
each one through its lifecycle (inactive, waiting for required, instantiated,
tracking optional) as those dependencies come and go.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main at
// build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the CLI entry point called from main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "celixdm version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newDemoCmd())
}

// Package commands implements sane-netctl's cobra command tree: operator
// tooling for saned's credentials file, access-control rules, and
// configuration, run against the files saned itself reads rather than
// through a remote API.
package commands

import (
	"os"

	accesscmd "github.com/saneproj/sane-net/cmd/sane-netctl/commands/access"
	configcmd "github.com/saneproj/sane-net/cmd/sane-netctl/commands/config"
	credscmd "github.com/saneproj/sane-net/cmd/sane-netctl/commands/creds"
	"github.com/saneproj/sane-net/cmd/sane-netctl/internal/cmdutil"
	"github.com/spf13/cobra"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sane-netctl",
	Short: "sane-net operator CLI",
	Long: `sane-netctl manages a saned installation's credentials file, access
rules, and configuration.

Use "sane-netctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.ConfigPath, _ = cmd.Flags().GetString("config")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to saned's configuration file (default: XDG config location)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(credscmd.Cmd)
	rootCmd.AddCommand(accesscmd.Cmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("sane-netctl %s (commit %s, built %s)\n", Version, Commit, Date)
		return nil
	},
}

// Exit prints an error to stderr and exits with status 1.
func Exit(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}

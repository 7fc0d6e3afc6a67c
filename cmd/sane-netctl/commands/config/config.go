// Package config implements sane-netctl's configuration inspection
// commands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for configuration inspection.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect saned's configuration",
	Long: `Display or validate the saned configuration file.

Examples:
  # Show the effective configuration
  sane-netctl config show

  # Validate a configuration file
  sane-netctl config validate --config /etc/saned/config.yaml`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
}

// Package access implements sane-netctl's access-control inspection
// commands: listing saned.conf's host rules and checking whether a given
// peer address would be admitted (spec §4.6).
package access

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for access-control inspection.
var Cmd = &cobra.Command{
	Use:   "access",
	Short: "Inspect saned's access-control rules",
	Long: `Inspect the host/subnet rules saned's supervisor checks before
admitting a control connection (spec §4.6).

Examples:
  # List configured rules
  sane-netctl access list

  # Check whether a peer would be admitted
  sane-netctl access check 192.168.1.42`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(checkCmd)
}

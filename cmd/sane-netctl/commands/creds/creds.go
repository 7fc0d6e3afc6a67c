// Package creds implements sane-netctl's credentials-file management
// commands (spec C3's backend.users format).
package creds

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for credentials-file management.
var Cmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage saned's credentials file",
	Long: `Manage the "user:password:resource" credentials file saned's
AUTHORIZE handling consults (spec C3).

Examples:
  # List every entry
  sane-netctl creds list --file /etc/saned/backend.users

  # Add or update a user's password for a resource
  sane-netctl creds add --file /etc/saned/backend.users --resource flatbed --username alice

  # Remove an entry
  sane-netctl creds remove --file /etc/saned/backend.users --resource flatbed --username alice`,
}

func init() {
	Cmd.PersistentFlags().StringP("file", "f", "", "path to the credentials file")
	_ = Cmd.MarkPersistentFlagRequired("file")
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(testCmd)
}

package creds

import (
	"fmt"

	"github.com/saneproj/sane-net/cmd/sane-netctl/internal/cmdutil"
	credfile "github.com/saneproj/sane-net/internal/auth"
	"github.com/spf13/cobra"
)

var (
	removeResource string
	removeUsername string
	removeForce    bool
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a credentials file entry",
	RunE:  runRemove,
}

func init() {
	removeCmd.Flags().StringVar(&removeResource, "resource", "", "resource the credential authorizes (required)")
	removeCmd.Flags().StringVar(&removeUsername, "username", "", "username (required)")
	removeCmd.Flags().BoolVarP(&removeForce, "force", "y", false, "skip confirmation")
	_ = removeCmd.MarkFlagRequired("resource")
	_ = removeCmd.MarkFlagRequired("username")
}

func runRemove(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	label := fmt.Sprintf("Remove credential for %q on resource %q?", removeUsername, removeResource)
	return cmdutil.RunWithConfirmation(label, removeForce, func() error {
		if err := credfile.RemoveEntry(file, removeResource, removeUsername); err != nil {
			return fmt.Errorf("failed to remove credential: %w", err)
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Removed credential for %q on resource %q", removeUsername, removeResource))
		return nil
	})
}

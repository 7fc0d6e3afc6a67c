package creds

import (
	"fmt"

	"github.com/saneproj/sane-net/cmd/sane-netctl/internal/cmdutil"
	credfile "github.com/saneproj/sane-net/internal/auth"
	"github.com/saneproj/sane-net/internal/cli/prompt"
	"github.com/spf13/cobra"
)

var (
	addResource string
	addUsername string
	addPassword string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a credentials file entry",
	Long: `Add a user/resource entry, prompting for a password if --password
isn't given. An existing entry for the same username and resource is
overwritten.`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addResource, "resource", "", "resource the credential authorizes (required)")
	addCmd.Flags().StringVar(&addUsername, "username", "", "username (required)")
	addCmd.Flags().StringVar(&addPassword, "password", "", "password (prompts if not provided)")
	_ = addCmd.MarkFlagRequired("resource")
	_ = addCmd.MarkFlagRequired("username")
}

func runAdd(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")

	password := addPassword
	if password == "" {
		var err error
		password, err = prompt.PasswordWithConfirmation("Password", "Confirm password", 1)
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	if err := credfile.AddEntry(file, addResource, addUsername, password); err != nil {
		return fmt.Errorf("failed to add credential: %w", err)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Added credential for %q on resource %q", addUsername, addResource))
	return nil
}

package creds

import (
	"os"

	"github.com/saneproj/sane-net/cmd/sane-netctl/internal/cmdutil"
	credfile "github.com/saneproj/sane-net/internal/auth"
	"github.com/saneproj/sane-net/pkg/auth"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List credentials file entries",
	RunE:  runList,
}

// credentialRows adapts credfile.ListEntries's output to
// output.TableRenderer.
type credentialRows []auth.Credential

func (r credentialRows) Headers() []string { return []string{"RESOURCE", "USERNAME", "PASSWORD"} }

func (r credentialRows) Rows() [][]string {
	rows := make([][]string, len(r))
	for i, c := range r {
		rows[i] = []string{c.Resource, c.Username, c.Password}
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	entries, err := credfile.ListEntries(file)
	if err != nil {
		return err
	}
	return cmdutil.PrintResult(os.Stdout, credentialRows(entries), len(entries) == 0, "No credential entries.")
}

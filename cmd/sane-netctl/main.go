// Command sane-netctl is the operator CLI for a saned installation:
// credentials file management, access-control inspection, and
// configuration display/validation.
package main

import (
	"fmt"
	"os"

	"github.com/saneproj/sane-net/cmd/sane-netctl/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

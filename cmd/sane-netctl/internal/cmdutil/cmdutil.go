// Package cmdutil provides shared helpers for sane-netctl's subcommands:
// the global flag values cobra's PersistentPreRun populates and the
// output-format plumbing every command uses to print its result.
package cmdutil

import (
	"fmt"
	"io"
	"os"

	"github.com/saneproj/sane-net/internal/cli/output"
	"github.com/saneproj/sane-net/internal/cli/prompt"
	"github.com/saneproj/sane-net/pkg/config"
)

// Flags holds the values of sane-netctl's persistent flags, set once by
// root.go's PersistentPreRun and read by every subcommand.
var Flags = &GlobalFlags{}

// GlobalFlags are the flag values shared across all subcommands.
type GlobalFlags struct {
	ConfigPath string
	Output     string
	NoColor    bool
}

// LoadConfig loads saned's configuration using the --config flag, falling
// back to the default search path.
func LoadConfig() (*config.Config, error) {
	return config.MustLoad(Flags.ConfigPath)
}

// OutputFormat parses the --output flag into an output.Format.
func OutputFormat() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// PrintResult prints data in the configured format. isEmpty/emptyMsg let a
// list command print a friendlier line than an empty table when there's
// nothing to show.
func PrintResult(w io.Writer, data any, isEmpty bool, emptyMsg string) error {
	format, err := OutputFormat()
	if err != nil {
		return err
	}
	if isEmpty && format == output.FormatTable {
		fmt.Fprintln(w, emptyMsg)
		return nil
	}
	return output.Print(w, format, data)
}

// PrintSuccess prints a success message, only in table format (JSON/YAML
// output is meant to be consumed by scripts, not narrated).
func PrintSuccess(msg string) {
	format, err := OutputFormat()
	if err != nil || format != output.FormatTable {
		return
	}
	output.NewPrinter(os.Stdout, !Flags.NoColor).Success(msg)
}

// RunWithConfirmation prompts for confirmation (unless force is set) and
// then runs fn, returning its error. A declined or aborted prompt prints
// "Aborted." and returns nil without running fn.
func RunWithConfirmation(label string, force bool, fn func() error) error {
	confirmed, err := prompt.ConfirmWithForce(label, force)
	if err != nil {
		if prompt.IsAborted(err) {
			fmt.Println("Aborted.")
			return nil
		}
		return err
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}
	return fn()
}

// HandleAbort converts a prompt abort into a nil error (the user declined,
// that's not a failure), passing any other error through.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("Aborted.")
		return nil
	}
	return err
}

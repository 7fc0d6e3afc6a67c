package access

import (
	"fmt"
	"net"

	"github.com/saneproj/sane-net/cmd/sane-netctl/internal/cmdutil"
	"github.com/saneproj/sane-net/internal/saned"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <ip>",
	Short: "Check whether a peer address would be admitted",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ip := net.ParseIP(args[0])
	if ip == nil {
		return fmt.Errorf("not a valid IP address: %q", args[0])
	}

	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	ac, err := saned.NewAccessControl(&cfg.AccessControl)
	if err != nil {
		return err
	}

	if ac.Allow(ip) {
		cmdutil.PrintSuccess(fmt.Sprintf("%s would be admitted", ip))
		return nil
	}
	return fmt.Errorf("%s would be denied (ACCESS_DENIED)", ip)
}

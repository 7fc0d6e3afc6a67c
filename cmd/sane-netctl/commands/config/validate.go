package config

import (
	"fmt"

	"github.com/saneproj/sane-net/cmd/sane-netctl/internal/cmdutil"
	"github.com/saneproj/sane-net/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate saned's configuration file: required fields,
struct-tag constraints (pkg/config.Validate), and a few operational
sanity checks this command adds on top.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	displayPath := cmdutil.Flags.ConfigPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Server.Standalone && cfg.Server.PidFile == "" {
		warnings = append(warnings, "standalone mode with no pid_file configured")
	}
	if cfg.Auth.CredentialsFile == "" {
		warnings = append(warnings, "no credentials_file configured: every resource is unauthenticated")
	}
	if len(cfg.AccessControl.AllowedHosts) == 0 && cfg.AccessControl.HostsEquivFile == "" {
		warnings = append(warnings, "no access-control rules configured: only loopback and local addresses will be admitted")
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")
	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Listen address:    %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  Standalone:        %v\n", cfg.Server.Standalone)
	fmt.Printf("  Backends:          %v\n", cfg.Server.Backends)
	fmt.Printf("  Log level:         %s\n", cfg.Logging.Level)
	return nil
}

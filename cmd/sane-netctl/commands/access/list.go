package access

import (
	"bufio"
	"os"
	"strings"

	"github.com/saneproj/sane-net/cmd/sane-netctl/internal/cmdutil"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured access-control rules",
	RunE:  runList,
}

type ruleRows [][2]string

func (r ruleRows) Headers() []string { return []string{"SOURCE", "PATTERN"} }
func (r ruleRows) Rows() [][]string {
	rows := make([][]string, len(r))
	for i, row := range r {
		rows[i] = []string{row[0], row[1]}
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	var rows ruleRows
	for _, h := range cfg.AccessControl.AllowedHosts {
		rows = append(rows, [2]string{"config", h})
	}
	if cfg.AccessControl.HostsEquivFile != "" {
		extra, err := readHostPatterns(cfg.AccessControl.HostsEquivFile)
		if err != nil {
			return err
		}
		for _, h := range extra {
			rows = append(rows, [2]string{cfg.AccessControl.HostsEquivFile, h})
		}
	}

	return cmdutil.PrintResult(os.Stdout, rows, len(rows) == 0, "No access rules configured: only loopback and local addresses are admitted.")
}

// readHostPatterns lists the host-pattern lines of a hosts.equiv-style
// file, the same non-comment, non-"option = value" lines
// internal/saned.loadHostsFile parses into rules.
func readHostPatterns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.Contains(line, "=") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}

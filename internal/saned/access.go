package saned

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/saneproj/sane-net/pkg/config"
)

// AccessControl decides whether a peer address may open a connection
// (spec §4.6 "Access control"): loopback and the server's own addresses
// are always granted, everything else is checked against a rule list
// drawn from configuration plus an optional hosts.equiv-style file.
type AccessControl struct {
	rules []hostRule
}

// hostRule is one line of saned.conf or hosts.equiv: "+" (allow all), a
// literal IP or hostname, or a CIDR network. Exactly one of its fields is
// meaningful, selected by which constructor built it.
type hostRule struct {
	allowAll bool
	ip       net.IP
	hostname string
	network  *net.IPNet
}

// NewAccessControl builds the rule list from cfg. An empty AllowedHosts
// list with no HostsEquivFile means no remote host is granted access;
// only loopback and the server's own addresses are allowed until an
// explicit rule (or "+" for allow-all) is configured.
func NewAccessControl(cfg *config.AccessControlConfig) (*AccessControl, error) {
	ac := &AccessControl{}
	for _, h := range cfg.AllowedHosts {
		r, err := parseHostRule(h)
		if err != nil {
			return nil, fmt.Errorf("access control rule %q: %w", h, err)
		}
		ac.rules = append(ac.rules, r)
	}
	if cfg.HostsEquivFile != "" {
		extra, err := loadHostsFile(cfg.HostsEquivFile)
		if err != nil {
			return nil, err
		}
		ac.rules = append(ac.rules, extra...)
	}
	return ac, nil
}

// Allow reports whether remote may connect.
func (ac *AccessControl) Allow(remote net.IP) bool {
	if remote == nil {
		return false
	}
	if remote.IsLoopback() {
		return true
	}
	if isLocalAddress(remote) {
		return true
	}
	for _, r := range ac.rules {
		if r.matches(remote) {
			return true
		}
	}
	return false
}

// isLocalAddress reports whether remote is one of this host's own
// addresses, granted unconditionally (spec §4.6).
func isLocalAddress(remote net.IP) bool {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return false
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if ok && ipNet.IP.Equal(remote) {
			return true
		}
	}
	return false
}

func (r hostRule) matches(remote net.IP) bool {
	switch {
	case r.allowAll:
		return true
	case r.network != nil:
		if r.network.Contains(remote) {
			return true
		}
		if v4 := remote.To4(); v4 != nil && r.network.Contains(v4) {
			return true
		}
		return false
	case r.ip != nil:
		if r.ip.Equal(remote) {
			return true
		}
		if v4 := remote.To4(); v4 != nil && r.ip.Equal(v4) {
			return true
		}
		return false
	case r.hostname != "":
		addrs, err := net.LookupHost(r.hostname)
		if err != nil {
			return false
		}
		for _, a := range addrs {
			if ip := net.ParseIP(a); ip != nil && ip.Equal(remote) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// parseHostRule parses one saned.conf/hosts.equiv host-pattern line (spec
// §4.6): "+", a literal IP/hostname, "<base>/<cidr>", or a bracketed IPv6
// literal with either form.
func parseHostRule(s string) (hostRule, error) {
	s = strings.TrimSpace(s)
	if s == "+" {
		return hostRule{allowAll: true}, nil
	}
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return hostRule{}, fmt.Errorf("unterminated bracketed IPv6 literal")
		}
		ipPart := s[1:end]
		rest := s[end+1:]
		if strings.HasPrefix(rest, "/") {
			_, network, err := net.ParseCIDR(ipPart + rest)
			if err != nil {
				return hostRule{}, err
			}
			return hostRule{network: network}, nil
		}
		ip := net.ParseIP(ipPart)
		if ip == nil {
			return hostRule{}, fmt.Errorf("invalid IPv6 literal %q", ipPart)
		}
		return hostRule{ip: ip}, nil
	}
	if strings.Contains(s, "/") {
		_, network, err := net.ParseCIDR(s)
		if err != nil {
			return hostRule{}, err
		}
		return hostRule{network: network}, nil
	}
	if ip := net.ParseIP(s); ip != nil {
		return hostRule{ip: ip}, nil
	}
	return hostRule{hostname: s}, nil
}

// loadHostsFile parses a hosts.equiv-style file: one host pattern per
// line, blank lines and "#"-comments ignored, saned.conf "option = value"
// directive lines ignored too since this loader only ever sees the host
// patterns saned.conf and hosts.equiv share (spec §4.6, §6.5).
func loadHostsFile(path string) ([]hostRule, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	var rules []hostRule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.Contains(line, "=") {
			continue
		}
		r, err := parseHostRule(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rules = append(rules, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rules, nil
}

package saned

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/saneproj/sane-net/pkg/config"
)

func TestAccessControlLoopbackAlwaysAllowed(t *testing.T) {
	ac, err := NewAccessControl(&config.AccessControlConfig{AllowedHosts: []string{"10.0.0.0/8"}})
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	if !ac.Allow(net.ParseIP("127.0.0.1")) {
		t.Error("loopback v4 should always be allowed")
	}
	if !ac.Allow(net.ParseIP("::1")) {
		t.Error("loopback v6 should always be allowed")
	}
}

func TestAccessControlEmptyRulesDenyRemote(t *testing.T) {
	ac, err := NewAccessControl(&config.AccessControlConfig{})
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	if ac.Allow(net.ParseIP("203.0.113.7")) {
		t.Error("an empty rule list should deny a non-local remote peer")
	}
	if !ac.Allow(net.ParseIP("127.0.0.1")) {
		t.Error("loopback should still be allowed with an empty rule list")
	}
}

func TestAccessControlPlusAllowsAll(t *testing.T) {
	ac, err := NewAccessControl(&config.AccessControlConfig{AllowedHosts: []string{"+"}})
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	if !ac.Allow(net.ParseIP("203.0.113.7")) {
		t.Error("'+' rule should allow everyone")
	}
}

func TestAccessControlLiteralIP(t *testing.T) {
	ac, err := NewAccessControl(&config.AccessControlConfig{AllowedHosts: []string{"192.0.2.5"}})
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	if !ac.Allow(net.ParseIP("192.0.2.5")) {
		t.Error("listed IP should be allowed")
	}
	if ac.Allow(net.ParseIP("192.0.2.6")) {
		t.Error("unlisted IP should be denied")
	}
}

func TestAccessControlCIDR(t *testing.T) {
	ac, err := NewAccessControl(&config.AccessControlConfig{AllowedHosts: []string{"192.0.2.0/24"}})
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	if !ac.Allow(net.ParseIP("192.0.2.200")) {
		t.Error("address inside the CIDR block should be allowed")
	}
	if ac.Allow(net.ParseIP("192.0.3.1")) {
		t.Error("address outside the CIDR block should be denied")
	}
}

func TestAccessControlBracketedIPv6(t *testing.T) {
	ac, err := NewAccessControl(&config.AccessControlConfig{AllowedHosts: []string{"[2001:db8::1]"}})
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	if !ac.Allow(net.ParseIP("2001:db8::1")) {
		t.Error("listed IPv6 literal should be allowed")
	}
	if ac.Allow(net.ParseIP("2001:db8::2")) {
		t.Error("unlisted IPv6 address should be denied")
	}
}

func TestAccessControlBracketedIPv6CIDR(t *testing.T) {
	ac, err := NewAccessControl(&config.AccessControlConfig{AllowedHosts: []string{"[2001:db8::]/32"}})
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	if !ac.Allow(net.ParseIP("2001:db8:1234::9")) {
		t.Error("address inside the IPv6 CIDR block should be allowed")
	}
	if ac.Allow(net.ParseIP("2001:db9::1")) {
		t.Error("address outside the IPv6 CIDR block should be denied")
	}
}

func TestAccessControlHostsEquivFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.equiv")
	body := "# comment\n\n192.0.2.9\n198.51.100.0/24\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write hosts file: %v", err)
	}

	ac, err := NewAccessControl(&config.AccessControlConfig{HostsEquivFile: path})
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	if !ac.Allow(net.ParseIP("192.0.2.9")) {
		t.Error("IP from hosts.equiv file should be allowed")
	}
	if !ac.Allow(net.ParseIP("198.51.100.42")) {
		t.Error("CIDR from hosts.equiv file should be allowed")
	}
	if ac.Allow(net.ParseIP("203.0.113.1")) {
		t.Error("address absent from the hosts.equiv file should be denied")
	}
}

func TestAccessControlMissingHostsEquivFileIsNotAnError(t *testing.T) {
	ac, err := NewAccessControl(&config.AccessControlConfig{
		AllowedHosts:   []string{"192.0.2.1"},
		HostsEquivFile: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	if !ac.Allow(net.ParseIP("192.0.2.1")) {
		t.Error("rule from AllowedHosts should still apply")
	}
}

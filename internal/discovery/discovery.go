// Package discovery publishes and browses for saned instances over mDNS
// (spec §4.6's optional Avahi/Bonjour advertisement, and the net backend's
// "background watcher" of §4.4), using hand-built DNS messages the way
// ShareHound's internal/utils resolver builds and exchanges them, rather
// than pulling in a dedicated zeroconf/mdns library the retrieval pack
// never uses.
package discovery

import (
	"fmt"
	"net"

	"github.com/miekg/dns"
)

const (
	// mdnsGroup is the standard mDNS multicast group and port (RFC 6762).
	mdnsGroup = "224.0.0.251:5353"

	// serviceType is the DNS-SD service type saned advertises under,
	// matching sane-backends' own Avahi service name.
	serviceType = "_sane-port._tcp.local."
)

func instanceName(serviceName string) string {
	return fmt.Sprintf("%s.%s", serviceName, serviceType)
}

func multicastAddr() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp4", mdnsGroup)
}

// Record is one resolved advertisement: a host (or literal address) and
// the TCP port saned is listening on there.
type Record struct {
	Host string
	Port int
}

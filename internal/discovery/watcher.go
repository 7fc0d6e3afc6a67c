package discovery

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Browse sends one mDNS PTR query for the saned service type and collects
// the SRV records from whatever answers arrive within timeout. This is the
// net backend's "background watcher" of spec §4.4: a one-shot poll rather
// than a persistent subscription, since the client only needs a fresh
// host list on each get_devices/open call, not a continuously updated one.
func Browse(ctx context.Context, timeout time.Duration) ([]Record, error) {
	group, err := multicastAddr()
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := new(dns.Msg)
	query.SetQuestion(serviceType, dns.TypePTR)
	packed, err := query.Pack()
	if err != nil {
		return nil, err
	}
	if _, err := conn.WriteToUDP(packed, group); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetReadDeadline(deadline)

	var (
		records []Record
		ports   = map[string]int{}
		hosts   = map[string]string{} // SRV target -> target (dedup)
	)

	buf := make([]byte, 8192)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			break // timeout or context cancellation via deadline
		}
		reply := new(dns.Msg)
		if err := reply.Unpack(buf[:n]); err != nil {
			continue
		}
		for _, rr := range reply.Answer {
			if srv, ok := rr.(*dns.SRV); ok {
				hosts[srv.Target] = srv.Target
				ports[srv.Target] = int(srv.Port)
			}
		}
	}

	for host, port := range ports {
		records = append(records, Record{Host: hosts[host], Port: port})
	}
	return records, nil
}

package discovery

import (
	"context"
	"net"
	"os"

	"github.com/miekg/dns"

	"github.com/saneproj/sane-net/internal/logger"
)

// Publisher answers mDNS PTR queries for one saned instance with a PTR,
// SRV and TXT record set (no A record is published),
// the Go-idiomatic rendition of the Avahi service publication spec §4.6
// describes as optional.
type Publisher struct {
	ServiceName string
	Port        int
	Hostname    string // advertised target host; defaults to os.Hostname() if empty
}

// Run listens on the mDNS multicast group and answers queries for
// ServiceName until ctx is cancelled. It never returns a non-nil error
// except for setup failures (join/bind), mirroring a best-effort
// background advertiser: a malformed incoming packet is skipped, not
// fatal.
func (p *Publisher) Run(ctx context.Context) error {
	group, err := multicastAddr()
	if err != nil {
		return err
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	hostname := p.Hostname
	if hostname == "" {
		if h, err := os.Hostname(); err == nil {
			hostname = h
		} else {
			hostname = instanceName(p.ServiceName)
		}
	}

	buf := make([]byte, 8192)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logger.Warn("discovery: read failed", logger.Err(err))
				continue
			}
		}

		msg := new(dns.Msg)
		if err := msg.Unpack(buf[:n]); err != nil {
			continue
		}
		if !p.matches(msg) {
			continue
		}
		reply := p.buildReply(msg, hostname)
		packed, err := reply.Pack()
		if err != nil {
			continue
		}
		if _, err := conn.WriteToUDP(packed, addr); err != nil {
			logger.Warn("discovery: reply failed", logger.Err(err))
		}
	}
}

func (p *Publisher) matches(msg *dns.Msg) bool {
	for _, q := range msg.Question {
		if q.Qtype == dns.TypePTR && q.Name == serviceType {
			return true
		}
	}
	return false
}

func (p *Publisher) buildReply(query *dns.Msg, hostname string) *dns.Msg {
	reply := new(dns.Msg)
	reply.SetReply(query)
	reply.Authoritative = true

	inst := instanceName(p.ServiceName)

	ptr := &dns.PTR{
		Hdr: dns.RR_Header{Name: serviceType, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 120},
		Ptr: inst,
	}
	srv := &dns.SRV{
		Hdr:      dns.RR_Header{Name: inst, Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 120},
		Priority: 0,
		Weight:   0,
		Port:     uint16(p.Port),
		Target:   dns.Fqdn(hostname),
	}
	txt := &dns.TXT{
		Hdr: dns.RR_Header{Name: inst, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 120},
		Txt: []string{"txtvers=1"},
	}

	reply.Answer = append(reply.Answer, ptr, srv, txt)
	return reply
}

// Publish starts a Publisher in a background goroutine and returns it
// immediately; callers that need to observe a bind failure should call
// (&Publisher{...}).Run directly instead.
func Publish(ctx context.Context, serviceName string, port int) *Publisher {
	p := &Publisher{ServiceName: serviceName, Port: port}
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("discovery: publisher stopped", logger.Err(err))
		}
	}()
	return p
}

package discovery

import (
	"testing"

	"github.com/miekg/dns"
)

func TestInstanceName(t *testing.T) {
	got := instanceName("saned-office")
	want := "saned-office._sane-port._tcp.local."
	if got != want {
		t.Fatalf("instanceName = %q, want %q", got, want)
	}
}

func TestPublisherMatchesPTRQuery(t *testing.T) {
	p := &Publisher{ServiceName: "saned-office", Port: 6566}

	q := new(dns.Msg)
	q.SetQuestion(serviceType, dns.TypePTR)
	if !p.matches(q) {
		t.Fatal("expected publisher to match a PTR query for its service type")
	}

	other := new(dns.Msg)
	other.SetQuestion("_http._tcp.local.", dns.TypePTR)
	if p.matches(other) {
		t.Fatal("expected publisher not to match an unrelated service type")
	}
}

func TestPublisherBuildReplyShape(t *testing.T) {
	p := &Publisher{ServiceName: "saned-office", Port: 6566}

	q := new(dns.Msg)
	q.SetQuestion(serviceType, dns.TypePTR)

	reply := p.buildReply(q, "scanhost.local.")
	if len(reply.Answer) != 3 {
		t.Fatalf("reply.Answer has %d records, want 3 (PTR, SRV, TXT)", len(reply.Answer))
	}

	var sawPTR, sawSRV, sawTXT bool
	for _, rr := range reply.Answer {
		switch v := rr.(type) {
		case *dns.PTR:
			sawPTR = true
			if v.Ptr != instanceName("saned-office") {
				t.Fatalf("PTR target = %q, want %q", v.Ptr, instanceName("saned-office"))
			}
		case *dns.SRV:
			sawSRV = true
			if v.Port != 6566 {
				t.Fatalf("SRV port = %d, want 6566", v.Port)
			}
		case *dns.TXT:
			sawTXT = true
		}
	}
	if !sawPTR || !sawSRV || !sawTXT {
		t.Fatalf("missing expected record types: PTR=%v SRV=%v TXT=%v", sawPTR, sawSRV, sawTXT)
	}
}

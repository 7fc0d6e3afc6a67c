package netbackend

import (
	"net"
	"os"
	"testing"

	"github.com/saneproj/sane-net/internal/proto"
	"github.com/saneproj/sane-net/internal/sanerr"
)

func TestNormalizeHost(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"scanner1":           "scanner1:6566",
		"scanner1:1234":      "scanner1:1234",
		"[::1]":              "[::1]:6566",
		"[::1]:1234":         "[::1]:1234",
		"fe80::1%eth0":       "[fe80::1%eth0]:6566",
	}
	for in, want := range cases {
		if got := normalizeHost(in); got != want {
			t.Errorf("normalizeHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitHostName(t *testing.T) {
	host, device := splitHostName("scanner1:6566|plustek")
	if host != "scanner1:6566" || device != "plustek" {
		t.Fatalf("got host=%q device=%q", host, device)
	}
	host, device = splitHostName("plustek")
	if host != "" || device != "plustek" {
		t.Fatalf("got host=%q device=%q", host, device)
	}
}

func TestResolveHostsEnvTakesPrecedence(t *testing.T) {
	t.Setenv("SANE_NET_HOSTS", "alpha:[::1]")
	c := New(nil)
	c.hosts = []string{"beta", "gamma"}

	hosts, err := c.resolveHosts()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha:6566", "[::1]:6566", "beta:6566", "gamma:6566"}
	if len(hosts) != len(want) {
		t.Fatalf("hosts = %v, want %v", hosts, want)
	}
	for i := range want {
		if hosts[i] != want[i] {
			t.Fatalf("hosts[%d] = %q, want %q", i, hosts[i], want[i])
		}
	}
}

func TestResolveHostsNoneConfigured(t *testing.T) {
	os.Unsetenv("SANE_NET_HOSTS")
	c := New(nil)
	if _, err := c.resolveHosts(); err == nil {
		t.Fatal("expected error when no hosts are configured")
	}
}

func TestDataConnReadRecordsThenTerminator(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		_ = proto.WriteRecord(server, []byte{1, 2, 3})
		_ = proto.WriteRecord(server, []byte{4, 5})
		_ = proto.WriteTerminator(server, byte(sanerr.Good))
	}()

	dc := &dataConn{conn: client}
	buf := make([]byte, 10)
	total := 0
	for {
		n, err := dc.Read(buf[total:])
		total += n
		if err != nil {
			if status, ok := err.(sanerr.Status); ok && status == sanerr.Good {
				break
			}
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Fatal("read returned 0 bytes with nil error")
		}
	}
	want := []byte{1, 2, 3, 4, 5}
	if total != len(want) {
		t.Fatalf("read %d bytes, want %d", total, len(want))
	}
	for i, b := range want {
		if buf[i] != b {
			t.Fatalf("byte %d = %d, want %d", i, buf[i], b)
		}
	}
}

func TestDataConnSwap16AcrossReadBoundary(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		_ = proto.WriteRecord(server, []byte{0x01, 0x02, 0x03})
		_ = proto.WriteRecord(server, []byte{0x04})
		_ = proto.WriteTerminator(server, byte(sanerr.Good))
	}()

	dc := &dataConn{conn: client, swap16: true}

	buf := make([]byte, 3)
	n, err := dc.Read(buf)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if n != 2 {
		t.Fatalf("first read returned %d bytes, want 2 (odd trailing byte held back)", n)
	}
	if buf[0] != 0x02 || buf[1] != 0x01 {
		t.Fatalf("first read = %v, want [0x02 0x01]", buf[:n])
	}

	buf2 := make([]byte, 4)
	total := 0
	for total < 2 {
		n, err := dc.Read(buf2[total:])
		total += n
		if err != nil {
			if status, ok := err.(sanerr.Status); ok && status == sanerr.Good {
				break
			}
			t.Fatalf("second read: %v", err)
		}
	}
	if total != 2 || buf2[0] != 0x04 || buf2[1] != 0x03 {
		t.Fatalf("second read = %v (n=%d), want [0x04 0x03]", buf2[:total], total)
	}
}

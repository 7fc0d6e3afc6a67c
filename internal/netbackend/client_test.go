package netbackend

import (
	"context"
	"net"
	"testing"

	"github.com/saneproj/sane-net/internal/proto"
	"github.com/saneproj/sane-net/internal/sanerr"
	"github.com/saneproj/sane-net/internal/wire"
)

// fakeSaned is a minimal in-process stand-in for a remote saned, just
// enough of the dispatch loop (spec §4.5) to drive the net backend client
// through INIT, an AUTHORIZE challenge on OPEN, GET_OPTION_DESCRIPTORS and
// CLOSE.
func fakeSaned(t *testing.T, conn net.Conn) {
	t.Helper()
	wr := wire.New(conn, conn, byteOrder)
	defer conn.Close()

	for {
		proc, err := proto.ReadProcedure(wr)
		if err != nil {
			return
		}
		switch proc {
		case proto.ProcInit:
			req := &proto.InitRequest{}
			if err := proto.ReadRequest(wr, req); err != nil {
				return
			}
			reply := &proto.InitReply{Status: int32(sanerr.Good), VersionCode: proto.VersionCode(1, 0, 3)}
			if err := proto.WriteReply(wr, reply); err != nil {
				return
			}

		case proto.ProcOpen:
			req := &proto.OpenRequest{}
			if err := proto.ReadRequest(wr, req); err != nil {
				return
			}
			reply := &proto.OpenReply{
				Status:              int32(sanerr.Good),
				Handle:              42,
				ResourceToAuthorize: wire.NullableString{Value: "test0", IsNull: false},
			}
			if err := proto.WriteReply(wr, reply); err != nil {
				return
			}

			authReq := &proto.AuthorizeRequest{}
			authProc, err := proto.ReadProcedure(wr)
			if err != nil || authProc != proto.ProcAuthorize {
				return
			}
			if err := proto.ReadRequest(wr, authReq); err != nil {
				return
			}
			if authReq.Username != "alice" || authReq.Password != "secret" {
				t.Errorf("fakeSaned: got username=%q password=%q, want alice/secret", authReq.Username, authReq.Password)
			}
			if err := proto.WriteReply(wr, &proto.Ack{Value: 1}); err != nil {
				return
			}

			finalReply := &proto.OpenReply{Status: int32(sanerr.Good), Handle: 42}
			if err := proto.WriteReply(wr, finalReply); err != nil {
				return
			}

		case proto.ProcGetOptionDescriptors:
			req := &proto.GetOptionDescriptorsRequest{}
			if err := proto.ReadRequest(wr, req); err != nil {
				return
			}
			reply := &proto.GetOptionDescriptorsReply{
				Descriptors: []*wire.OptionDescriptor{
					{Title: "Number of options", Type: wire.TypeInt},
					{Name: wire.NullableString{Value: "resolution"}, Title: "Resolution", Type: wire.TypeInt, Unit: wire.UnitDPI},
				},
			}
			if err := proto.WriteReply(wr, reply); err != nil {
				return
			}

		case proto.ProcClose:
			req := &proto.CloseRequest{}
			if err := proto.ReadRequest(wr, req); err != nil {
				return
			}
			if err := proto.WriteReply(wr, &proto.Ack{Value: 1}); err != nil {
				return
			}
			return

		default:
			return
		}
	}
}

func newTestClientConn(t *testing.T) *Client {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	t.Cleanup(func() { serverSide.Close(); clientSide.Close() })
	go fakeSaned(t, serverSide)

	c := New(nil)
	hc := &hostConn{host: "fake", conn: clientSide, wr: wire.New(clientSide, clientSide, byteOrder)}
	c.conns["fake:6566"] = hc
	c.hosts = []string{"fake:6566"}
	return c
}

func TestClientOpenWithAuthorizeRelay(t *testing.T) {
	c := newTestClientConn(t)
	c.auth = func(resource string) (string, string) {
		if resource != "test0" {
			t.Errorf("auth callback got resource %q, want test0", resource)
		}
		return "alice", "secret"
	}

	h, err := c.Open(context.Background(), "fake:6566|test0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	descs, err := c.loadOptions(c.sessions[h])
	if err != nil {
		t.Fatalf("loadOptions: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(descs))
	}
	if got := c.GetOptionDescriptor(h, 1); got == nil || got.Name.Value != "resolution" {
		t.Fatalf("GetOptionDescriptor(1) = %+v", got)
	}
	if got := c.GetOptionDescriptor(h, 99); got != nil {
		t.Fatalf("GetOptionDescriptor(99) = %+v, want nil", got)
	}

	c.Close(h)
	if _, err := c.get(h); err == nil {
		t.Fatal("expected handle to be gone after Close")
	}
}

func TestClientOpenDeniedWithoutAuthCallback(t *testing.T) {
	c := newTestClientConn(t)
	if _, err := c.Open(context.Background(), "fake:6566|test0"); err != sanerr.AccessDenied {
		t.Fatalf("Open without auth callback = %v, want AccessDenied", err)
	}
}

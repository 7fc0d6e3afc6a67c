// Package netbackend implements the net backend client (C4): it satisfies
// the backend.Backend interface (C2) by translating every call into one
// RPC over a TCP control connection to a remote saned, plus a separate
// data connection for the lifetime of each scan (spec §4.4).
package netbackend

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/saneproj/sane-net/internal/proto"
	"github.com/saneproj/sane-net/internal/sanerr"
	"github.com/saneproj/sane-net/internal/wire"
)

// byteOrder is the control channel's wire byte order: always big-endian
// (spec §6.2). Only the data channel's 16-bit pixel swapping depends on
// the server's negotiated byte order.
var byteOrder = binary.BigEndian

// ourProtocolBuild is the protocol revision this client claims to speak
// in INIT. Per spec §4.4, 2 and 3 are wire-compatible; 3 is the current
// revision.
const ourProtocolBuild = 3

// hostConn is one control connection to a remote saned instance.
type hostConn struct {
	host    string
	conn    net.Conn
	wr      *wire.Wire
	version int32
}

// dial establishes a control connection to host (host:port) and performs
// the INIT handshake (spec §4.4 "Connection establishment").
func dial(ctx context.Context, host string, timeout time.Duration, username string) (*hostConn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, fmt.Errorf("netbackend: dial %s: %w", host, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	wr := wire.New(conn, conn, byteOrder)
	req := &proto.InitRequest{VersionCode: proto.VersionCode(1, 0, ourProtocolBuild), Username: username}
	reply := &proto.InitReply{}
	if err := proto.Call(wr, proto.ProcInit, req, reply); err != nil {
		conn.Close()
		return nil, fmt.Errorf("netbackend: INIT %s: %w", host, err)
	}
	if status := sanerr.Status(reply.Status); !status.Ok() {
		conn.Close()
		return nil, status
	}

	major, _, build := proto.SplitVersionCode(reply.VersionCode)
	if major != 1 || (build != 2 && build != 3) {
		conn.Close()
		return nil, fmt.Errorf("netbackend: %s speaks unsupported protocol major=%d build=%d", host, major, build)
	}

	return &hostConn{host: host, conn: conn, wr: wr, version: reply.VersionCode}, nil
}

func (hc *hostConn) close() {
	_ = hc.conn.Close()
}

// peerIP returns the control connection's remote address, used to build
// the data channel address (spec §4.4 step 1 of "START and the data
// channel": "Determine the server's peer address from the control
// socket").
func (hc *hostConn) peerIP() net.IP {
	addr, ok := hc.conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return nil
	}
	return addr.IP
}

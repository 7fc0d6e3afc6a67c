package saned

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/saneproj/sane-net/internal/logger"
	"github.com/saneproj/sane-net/internal/proto"
	"github.com/saneproj/sane-net/internal/sanerr"
	"github.com/saneproj/sane-net/pkg/bufpool"
)

// byteOrder is the control channel's wire byte order: always big-endian
// (spec §6.2).
var byteOrder = binary.BigEndian

// ourProtocolBuild is the protocol revision this saned claims to speak in
// INIT_REPLY (spec §4.4: 2 and 3 are wire-compatible; 3 is current).
const ourProtocolBuild = 3

// startScan opens the data-channel listener, starts acquisition on the
// driver, reports the outcome in START_REPLY, accepts exactly one
// connection from the same peer as the control socket, and spawns the
// pump goroutine (spec §4.5 "START and the data connection").
//
// The reference sequence sends START_REPLY before calling sane_start, so
// a driver failure has no way to reach the client except through the data
// channel itself. This implementation calls driver.Start first so
// START_REPLY's status always reflects whether the scan actually began.
func (s *session) startScan(ctx context.Context, localHandle int32, h *openHandle) (sanerr.Status, error) {
	ln, err := s.listenDataPort()
	if err != nil {
		logger.WarnCtx(ctx, "data port bind failed", logger.Err(err))
		return sanerr.IOError, proto.WriteReply(s.wr, &proto.StartReply{Status: int32(sanerr.IOError)})
	}

	if err := h.driver.Start(ctx, h.handle); err != nil {
		ln.Close()
		logger.WarnCtx(ctx, "driver Start failed", logger.HandleID(localHandle), logger.Err(err))
		status := statusOf(err)
		return status, proto.WriteReply(s.wr, &proto.StartReply{Status: int32(status)})
	}

	port := ln.Addr().(*net.TCPAddr).Port
	reply := &proto.StartReply{Status: int32(sanerr.Good), Port: int32(port), ByteOrder: nativeByteOrderMarker()}
	if err := proto.WriteReply(s.wr, reply); err != nil {
		ln.Close()
		h.driver.Cancel(h.handle)
		return sanerr.Good, err
	}

	controlPeer := remoteIP(s.conn)
	dataConn, err := acceptFromPeer(ln, controlPeer)
	ln.Close()
	if err != nil {
		logger.WarnCtx(ctx, "data channel accept failed", logger.Err(err))
		h.driver.Cancel(h.handle)
		return sanerr.Good, nil
	}

	h.pumpDone = make(chan struct{})
	logger.InfoCtx(ctx, "START", logger.HandleID(localHandle), logger.DataPort(port))
	go s.pump(ctx, h, dataConn)
	return sanerr.Good, nil
}

// listenDataPort binds a TCP listener in the configured data port range,
// or lets the OS pick one if unset (spec §4.5 step 2).
func (s *session) listenDataPort() (net.Listener, error) {
	lo, hi := s.srv.cfg.DataPortMin, s.srv.cfg.DataPortMax
	if lo == 0 || hi == 0 {
		return net.Listen("tcp", ":0")
	}
	for port := lo; port <= hi; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, nil
		}
	}
	return nil, fmt.Errorf("saned: no free port in range [%d, %d]", lo, hi)
}

// acceptFromPeer accepts one connection on ln and verifies its remote
// address matches controlPeer, closing and rejecting anything else
// (spec §4.5 step 5: "prevents data-port hijacking").
func acceptFromPeer(ln net.Listener, controlPeer net.IP) (net.Conn, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	peer := remoteIP(conn)
	if controlPeer == nil || peer == nil || !peer.Equal(controlPeer) {
		conn.Close()
		return nil, fmt.Errorf("saned: data connection from %s does not match control peer %s", peer, controlPeer)
	}
	return conn, nil
}

// nativeByteOrderMarker reports this process's byte order as the wire
// constant START_REPLY.byte_order expects.
func nativeByteOrderMarker() int32 {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 1)
	if buf[0] == 1 {
		return proto.LittleEndianMarker
	}
	return 0
}

// pump relays acquired scan bytes from the driver to dataConn as framed
// records until the driver reports a terminal status, then writes the
// terminator and closes the connection (spec §4.5 "Pump loop").
//
// The reference implementation multiplexes this with the control
// connection via select() so CANCEL can interrupt a blocking driver read;
// this implementation instead runs the pump in its own goroutine while
// the session's main loop keeps reading control RPCs (including CANCEL)
// concurrently, calling driver.Cancel directly. The next driver.Read then
// observes the cancellation and returns sanerr.Cancelled, which this loop
// turns into the CANCELLED terminator — goroutines standing in for the
// reference's single-threaded event loop, per the concurrency model
// decision recorded for this module.
func (s *session) pump(ctx context.Context, h *openHandle, dataConn net.Conn) {
	defer close(h.pumpDone)
	defer dataConn.Close()

	bufSize := s.srv.pumpBufferSize
	buf := bufpool.Get(bufSize)
	defer bufpool.Put(buf)

	var total int64
	for {
		n, err := h.driver.Read(h.handle, buf)
		if n > 0 {
			if werr := proto.WriteRecord(dataConn, buf[:n]); werr != nil {
				logger.WarnCtx(ctx, "data channel write failed", logger.Err(werr))
				return
			}
			total += int64(n)
			s.srv.metrics.RecordScanBytes(h.driverName, int64(n))
		}
		if err != nil {
			status := sanerr.EOF
			if st, ok := err.(sanerr.Status); ok {
				status = st
			}
			if werr := proto.WriteTerminator(dataConn, byte(status)); werr != nil {
				logger.WarnCtx(ctx, "data channel terminator write failed", logger.Err(werr))
			}
			logger.InfoCtx(ctx, "scan finished", logger.Status(status.String()), logger.BytesMoved(total))
			return
		}
	}
}

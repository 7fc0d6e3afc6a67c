package netbackend

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/saneproj/sane-net/internal/proto"
	"github.com/saneproj/sane-net/internal/sanerr"
)

// dataConn is the per-scan data channel (spec §4.4 "START and the data
// channel"): a fresh TCP connection to the port START returned, framed by
// internal/proto's big-endian length-prefixed records and ended by a
// 1-byte status terminator.
//
// swap16 mirrors the net backend's documented byte-swap rule: when the
// server's negotiated byte order differs from this host's, 16-bit samples
// arrive byte-swapped and must be corrected before reaching the frontend.
// Record boundaries (and caller buffers) need not align to 2-byte
// boundaries, so the swap keeps two single-byte slots across Read calls:
// hangOver, a raw byte read from the wire that has not yet been paired
// for swapping, and leftOver, an already-swapped byte that didn't fit the
// caller's buffer on a prior call.
type dataConn struct {
	conn   net.Conn
	swap16 bool

	remaining uint32 // bytes left in the record currently being read
	eof       bool
	eofStatus sanerr.Status

	hangOver    byte
	hasHangOver bool
	leftOver    byte
	hasLeftOver bool
}

// dialDataChannel opens the data connection to peer:port.
func dialDataChannel(peer net.IP, port int, serverLittleEndian bool) (*dataConn, error) {
	if peer == nil {
		return nil, fmt.Errorf("netbackend: cannot determine data channel peer address")
	}
	addr := net.JoinHostPort(peer.String(), fmt.Sprintf("%d", port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netbackend: dial data channel %s: %w", addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &dataConn{conn: conn, swap16: serverLittleEndian != hostLittleEndian()}, nil
}

// hostLittleEndian reports this process's native byte order.
func hostLittleEndian() bool {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 1)
	return buf[0] == 1
}

func terminatorStatus(b byte) sanerr.Status { return sanerr.Status(b) }

func (dc *dataConn) Close() { _ = dc.conn.Close() }

// Read fills buf with acquired scan bytes, consuming data-channel records
// as needed and applying the 16-bit swap correction.
//
// A byte-swap pair can straddle a record boundary or outrun the caller's
// buffer in either direction, so the fill below is split into three
// pieces: deliver any leftOver from a prior call first, read and pair
// fresh bytes (prepending a carried hangOver), then swap complete pairs
// in place. If that leaves nothing to deliver (the only byte available
// became a hangOver), one more raw byte is read to complete the pair so a
// caller requesting as little as 1 byte still makes progress instead of
// spinning.
func (dc *dataConn) Read(buf []byte) (int, error) {
	if dc.eof {
		return 0, dc.eofStatus
	}
	if len(buf) == 0 {
		return 0, nil
	}

	n := 0
	if dc.swap16 && dc.hasLeftOver {
		buf[n] = dc.leftOver
		dc.hasLeftOver = false
		n++
	}
	rawStart := n
	if dc.swap16 && dc.hasHangOver && n < len(buf) {
		buf[n] = dc.hangOver
		dc.hasHangOver = false
		n++
	}

	for n < len(buf) {
		if dc.remaining == 0 {
			hdr, err := proto.ReadRecordHeader(dc.conn)
			if err != nil {
				return n, sanerr.IOError
			}
			if hdr.IsTerminator() {
				status, err := proto.ReadTerminatorStatus(dc.conn)
				if err != nil {
					return n, sanerr.IOError
				}
				dc.eof = true
				dc.eofStatus = terminatorStatus(status)
				break
			}
			dc.remaining = hdr.Length
			if dc.remaining == 0 {
				continue
			}
		}

		want := len(buf) - n
		if uint32(want) > dc.remaining {
			want = int(dc.remaining)
		}
		got, err := io.ReadFull(dc.conn, buf[n:n+want])
		n += got
		dc.remaining -= uint32(got)
		if err != nil {
			return n, sanerr.IOError
		}
	}

	if dc.swap16 {
		rawLen := n - rawStart
		if rawLen%2 == 1 && !dc.eof {
			n--
			dc.hangOver = buf[n]
			dc.hasHangOver = true
			rawLen--
		}
		for i := rawStart; i+1 < rawStart+rawLen; i += 2 {
			buf[i], buf[i+1] = buf[i+1], buf[i]
		}

		if n == 0 && !dc.eof {
			held := dc.hangOver
			dc.hasHangOver = false
			extra, ok, err := dc.readByte()
			if err != nil {
				dc.hangOver = held
				dc.hasHangOver = true
				return 0, err
			}
			switch {
			case !ok:
				// Stream ended on an unpaired trailing byte: no partner
				// will ever arrive, so deliver it unswapped.
				buf[0] = held
				n = 1
			case len(buf) >= 2:
				buf[0], buf[1] = extra, held
				n = 2
			default:
				buf[0] = extra
				dc.leftOver = held
				dc.hasLeftOver = true
				n = 1
			}
		}
	}

	if n == 0 && dc.eof {
		return 0, dc.eofStatus
	}
	return n, nil
}

// readByte returns the next raw (pre-swap) data byte from the stream. ok
// is false once the terminator has been consumed, in which case dc.eof
// and dc.eofStatus are already set.
func (dc *dataConn) readByte() (b byte, ok bool, err error) {
	for dc.remaining == 0 {
		hdr, err := proto.ReadRecordHeader(dc.conn)
		if err != nil {
			return 0, false, sanerr.IOError
		}
		if hdr.IsTerminator() {
			status, err := proto.ReadTerminatorStatus(dc.conn)
			if err != nil {
				return 0, false, sanerr.IOError
			}
			dc.eof = true
			dc.eofStatus = terminatorStatus(status)
			return 0, false, nil
		}
		dc.remaining = hdr.Length
	}
	var one [1]byte
	if _, err := io.ReadFull(dc.conn, one[:]); err != nil {
		return 0, false, sanerr.IOError
	}
	dc.remaining--
	return one[0], true, nil
}

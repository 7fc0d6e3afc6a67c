package proto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Data-channel record framing (spec §4.4 "Data framing", §6.4). Record
// length is always big-endian on the wire regardless of the negotiated
// session byte order (that negotiation only governs 16-bit pixel swapping).
const (
	TerminatorLength uint32 = 0xFFFFFFFF
)

// RecordHeader is the 4-byte length prefix preceding each data record.
type RecordHeader struct {
	Length uint32
}

// IsTerminator reports whether this header introduces the 1-byte status
// terminator rather than a data payload.
func (h RecordHeader) IsTerminator() bool { return h.Length == TerminatorLength }

// WriteRecord writes one non-terminal data record: length header + payload.
func WriteRecord(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write record payload: %w", err)
	}
	return nil
}

// WriteTerminator writes the terminal record: length=0xFFFFFFFF followed by
// one status byte, ending the data stream (spec §4.4, §6.4).
func WriteTerminator(w io.Writer, status byte) error {
	var hdr [5]byte
	binary.BigEndian.PutUint32(hdr[0:4], TerminatorLength)
	hdr[4] = status
	_, err := w.Write(hdr[:])
	if err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}
	return nil
}

// ReadRecordHeader reads the 4-byte length prefix of the next record.
func ReadRecordHeader(r io.Reader) (RecordHeader, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return RecordHeader{}, err
	}
	return RecordHeader{Length: binary.BigEndian.Uint32(buf[:])}, nil
}

// ReadTerminatorStatus reads the 1-byte status following a terminator
// header.
func ReadTerminatorStatus(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

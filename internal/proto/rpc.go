package proto

import "github.com/saneproj/sane-net/internal/wire"

// Message is implemented by every request/reply struct this package
// defines (spec §6.3's RPC table payloads).
type Message interface {
	Codec(wr *wire.Wire) error
}

// Call performs one client-side RPC (spec §4.4): encode the procedure
// number, encode req, flush, then decode reply from the same connection.
// wr's direction is left in DirDecode on return.
func Call(wr *wire.Wire, proc int32, req, reply Message) error {
	wr.SetDir(wire.DirEncode)
	if err := wr.Word(&proc); err != nil {
		return err
	}
	if err := req.Codec(wr); err != nil {
		return err
	}
	if err := wr.Flush(); err != nil {
		return err
	}

	wr.SetDir(wire.DirDecode)
	return wr.DecodeMessage(func() error { return reply.Codec(wr) })
}

// ReadProcedure decodes the next procedure number off wr, the server-side
// counterpart of Call's first step (spec §4.5 dispatch loop).
func ReadProcedure(wr *wire.Wire) (int32, error) {
	wr.SetDir(wire.DirDecode)
	var proc int32
	err := wr.DecodeMessage(func() error { return wr.Word(&proc) })
	return proc, err
}

// ReadRequest decodes req as the body following a procedure number already
// read by ReadProcedure (server side).
func ReadRequest(wr *wire.Wire, req Message) error {
	return wr.DecodeMessage(func() error { return req.Codec(wr) })
}

// WriteReply encodes and flushes reply (server side).
func WriteReply(wr *wire.Wire, reply Message) error {
	wr.SetDir(wire.DirEncode)
	if err := reply.Codec(wr); err != nil {
		return err
	}
	return wr.Flush()
}

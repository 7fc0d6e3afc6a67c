package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across saned, the net backend
// client, and sane-netctl. Use these keys consistently so log aggregation
// and querying stay uniform across the codebase.
const (
	// Tracing
	KeyTraceID = "trace_id" // correlation ID for distributed tracing
	KeySpanID  = "span_id"  // span ID for a single RPC within a connection

	// Connection & session
	KeyConnID    = "conn_id"    // per-connection correlation ID (spec §6.1)
	KeyPeerAddr  = "peer_addr"  // remote address of the control connection
	KeyLocalAddr = "local_addr" // local listen address accepted on

	// RPC
	KeyProcedure   = "procedure"    // RPC procedure name: INIT, OPEN, START, ...
	KeyVersion     = "version"      // negotiated protocol version code
	KeyDurationMs  = "duration_ms"  // RPC handling duration in milliseconds
	KeyStatus      = "status"       // SANE_Status returned
	KeyError       = "error"        // error message

	// Device / handle
	KeyDevice     = "device"      // device name, e.g. "net:host:scanner0"
	KeyBackend    = "backend"     // backend driver name
	KeyHandle     = "handle"      // SANE_Handle value for this session
	KeyOption     = "option"      // option index being read/controlled
	KeyOptionName = "option_name" // option descriptor name

	// Auth
	KeyResource = "resource" // resource string being authorized
	KeyUsername = "username" // username presented to AUTHORIZE

	// Data channel
	KeyDataPort    = "data_port"    // port bound for the data channel
	KeyBytesMoved  = "bytes_moved"  // bytes relayed by the pump loop
	KeyByteOrder   = "byte_order"   // negotiated session byte order

	// Discovery
	KeyServiceName = "service_name" // mDNS service instance name
)

// TraceID returns a slog.Attr for a distributed-tracing correlation ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for a span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// ConnID returns a slog.Attr for the connection correlation ID.
func ConnID(id string) slog.Attr { return slog.String(KeyConnID, id) }

// PeerAddr returns a slog.Attr for the remote peer address.
func PeerAddr(addr string) slog.Attr { return slog.String(KeyPeerAddr, addr) }

// LocalAddr returns a slog.Attr for the local listen address.
func LocalAddr(addr string) slog.Attr { return slog.String(KeyLocalAddr, addr) }

// Procedure returns a slog.Attr for the RPC procedure name.
func Procedure(name string) slog.Attr { return slog.String(KeyProcedure, name) }

// Version returns a slog.Attr for a negotiated protocol version code.
func Version(v int32) slog.Attr { return slog.Int64(KeyVersion, int64(v)) }

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms int64) slog.Attr { return slog.Int64(KeyDurationMs, ms) }

// Status returns a slog.Attr for a SANE status code.
func Status(s string) slog.Attr { return slog.String(KeyStatus, s) }

// Device returns a slog.Attr for a device name.
func Device(name string) slog.Attr { return slog.String(KeyDevice, name) }

// Backend returns a slog.Attr for a backend driver name.
func Backend(name string) slog.Attr { return slog.String(KeyBackend, name) }

// Handle returns a slog.Attr for an opaque handle cookie, hex-formatted.
func Handle(h []byte) slog.Attr { return slog.String(KeyHandle, fmt.Sprintf("%x", h)) }

// HandleID returns a slog.Attr for a SANE_Handle integer value.
func HandleID(h int32) slog.Attr { return slog.Int64(KeyHandle, int64(h)) }

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Option returns a slog.Attr for an option index.
func Option(idx int32) slog.Attr { return slog.Int64(KeyOption, int64(idx)) }

// OptionName returns a slog.Attr for an option descriptor name.
func OptionName(name string) slog.Attr { return slog.String(KeyOptionName, name) }

// Resource returns a slog.Attr for an authorization resource string.
func Resource(r string) slog.Attr { return slog.String(KeyResource, r) }

// Username returns a slog.Attr for a username presented to AUTHORIZE.
func Username(u string) slog.Attr { return slog.String(KeyUsername, u) }

// DataPort returns a slog.Attr for a data-channel port number.
func DataPort(port int) slog.Attr { return slog.Int(KeyDataPort, port) }

// BytesMoved returns a slog.Attr for bytes relayed by the pump loop.
func BytesMoved(n int64) slog.Attr { return slog.Int64(KeyBytesMoved, n) }

// ByteOrder returns a slog.Attr describing the negotiated session byte order.
func ByteOrder(order string) slog.Attr { return slog.String(KeyByteOrder, order) }

// ServiceName returns a slog.Attr for an mDNS service instance name.
func ServiceName(name string) slog.Attr { return slog.String(KeyServiceName, name) }

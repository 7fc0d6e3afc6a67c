// Package backend defines the driver interface every scan backend
// implements (spec §4.2) and the per-handle state machine shared by all
// of them. A Backend is process-wide: Init is called once before any
// device is opened, and Exit tears the whole driver down.
package backend

import (
	"context"

	"github.com/saneproj/sane-net/internal/wire"
)

// Handle identifies one open device within a Backend. The net backend
// client (C4) and saned (C5) both treat it as an opaque small integer,
// matching the wire encoding of OpenReply.Handle.
type Handle int32

// AuthCallback is supplied by the frontend (saned, in this module's case)
// so a driver can request credentials for a resource it wants to guard,
// mirroring sanei_auth.h's callback-based challenge delivery.
type AuthCallback func(resource string) (username, password string)

// Backend is the driver interface every scanner backend implements
// (spec §4.2). Every method that can fail returns a sanerr.Status as its
// error value; callers type-assert or simply propagate it, since Status
// implements the error interface.
type Backend interface {
	// Init performs process-wide startup and returns the driver's
	// protocol version code. Must be called before any other method.
	// Idempotent across Exit/Init cycles.
	Init(ctx context.Context, auth AuthCallback) (versionCode int32, err error)

	// Exit tears the driver down, implicitly closing any open device.
	Exit()

	// GetDevices returns the list of devices this driver can see.
	// localOnly restricts the search to devices not reachable over a
	// network transport. The returned slice is owned by the caller.
	GetDevices(ctx context.Context, localOnly bool) ([]*wire.Device, error)

	// Open opens a device by name; an empty name means "the first
	// available device". Fails with sanerr.Inval (unknown name),
	// sanerr.DeviceBusy, sanerr.AccessDenied (auth callback refused),
	// or sanerr.NoMem.
	Open(ctx context.Context, name string) (Handle, error)

	// Close releases h, cancelling any active scan first.
	Close(h Handle)

	// GetOptionDescriptor returns descriptor i for h. Option 0 is
	// reserved and describes the option count. Returns nil for an
	// out-of-range index.
	GetOptionDescriptor(h Handle, i int32) *wire.OptionDescriptor

	// ControlOption reads, writes, or auto-sets option i. value is nil
	// for ActionGet. The returned info bitset combines wire.InfoInexact,
	// wire.InfoReloadOptions and wire.InfoReloadParams. Forbidden while
	// the handle is scanning.
	ControlOption(ctx context.Context, h Handle, i int32, action wire.Action, value *wire.OptionValue) (info int32, result wire.OptionValue, err error)

	// GetParameters predicts (before Start) or reports (after Start)
	// the shape of the scan's image data.
	GetParameters(h Handle) (wire.Parameters, error)

	// Start begins acquisition. On success h moves to the scanning
	// state.
	Start(ctx context.Context, h Handle) error

	// Read pulls acquired bytes into buf, returning the number of
	// bytes written. Returns sanerr.EOF at the end of the current
	// frame, sanerr.Cancelled if Cancel was called, or sanerr.IOError.
	// May return fewer bytes than len(buf).
	Read(h Handle, buf []byte) (n int, err error)

	// Cancel requests termination of the current scan on h. The
	// transition back to idle is asynchronous; a subsequent Read
	// returns sanerr.Cancelled.
	Cancel(h Handle)

	// SetIOMode toggles non-blocking reads. Drivers that cannot
	// support this return sanerr.Unsupported.
	SetIOMode(h Handle, nonBlocking bool) error

	// GetSelectFD returns a file descriptor selectable for readability
	// when scan data is available. Drivers without a native fd return
	// sanerr.Unsupported.
	GetSelectFD(h Handle) (fd int, err error)
}

package saned

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/saneproj/sane-net/internal/backend"
	"github.com/saneproj/sane-net/internal/logger"
	"github.com/saneproj/sane-net/internal/proto"
	"github.com/saneproj/sane-net/internal/sanerr"
	"github.com/saneproj/sane-net/internal/wire"
)

// errProtocol marks a malformed or out-of-sequence RPC that ends the
// connection, as opposed to a sanerr.Status that rides inside a reply.
var errProtocol = errors.New("saned: protocol error")

// openHandle is one OPEN'd device: the driver that owns it, the driver's
// own backend.Handle, and the device name it was opened under (the
// "resource" string AUTHORIZE and the credentials file key on).
type openHandle struct {
	driverName string
	driver     backend.Backend
	handle     backend.Handle
	resource   string
	pumpDone   chan struct{}
}

// session is the per-connection request loop (spec §4.5). One session
// handles exactly one control connection; everything it touches (driver
// instances, the handle table) is private to it, the Go goroutine
// standing in for the reference implementation's per-connection process.
type session struct {
	srv  *Server
	conn net.Conn
	wr   *wire.Wire

	initialized bool
	watchdog    *time.Timer

	drivers     map[string]backend.Backend
	deviceOwner map[string]string // device name -> driver name
	handles     map[int32]*openHandle
	nextHandle  int32
}

func newSession(srv *Server, conn net.Conn) *session {
	return &session{
		srv:         srv,
		conn:        conn,
		wr:          wire.New(conn, conn, byteOrder),
		drivers:     make(map[string]backend.Backend),
		deviceOwner: make(map[string]string),
		handles:     make(map[int32]*openHandle),
	}
}

// run is the request loop: read a procedure, dispatch it, repeat until the
// connection closes, EXIT is received, or the watchdog fires.
func (s *session) run(ctx context.Context) {
	s.watchdog = time.AfterFunc(s.srv.idleTimeout, func() {
		logger.WarnCtx(ctx, "connection idle, closing", logger.PeerAddr(peerString(s.conn)))
		s.conn.Close()
	})
	defer s.watchdog.Stop()

	for {
		proc, err := proto.ReadProcedure(s.wr)
		if err != nil {
			return
		}
		s.watchdog.Reset(s.srv.idleTimeout)

		start := time.Now()
		status, fatal := s.dispatch(ctx, proc)
		s.srv.metrics.RecordRPC(proto.ProcedureName(uint32(proc)), status, time.Since(start))
		if fatal != nil {
			logger.DebugCtx(ctx, "ending connection", logger.Err(fatal))
			return
		}
		if proc == proto.ProcExit {
			return
		}
	}
}

// dispatch decodes and handles one RPC. The returned Status is purely for
// metrics (what the reply carried, or Good for one-way procedures); a
// non-nil error means the connection cannot continue.
func (s *session) dispatch(ctx context.Context, proc int32) (sanerr.Status, error) {
	if !s.initialized {
		if proc != proto.ProcInit {
			return sanerr.Inval, fmt.Errorf("%w: first RPC was %s, not INIT", errProtocol, proto.ProcedureName(uint32(proc)))
		}
		return s.handleInit(ctx)
	}

	switch proc {
	case proto.ProcGetDevices:
		return s.handleGetDevices(ctx)
	case proto.ProcOpen:
		return s.handleOpen(ctx)
	case proto.ProcClose:
		return s.handleClose(ctx)
	case proto.ProcGetOptionDescriptors:
		return s.handleGetOptionDescriptors(ctx)
	case proto.ProcControlOption:
		return s.handleControlOption(ctx)
	case proto.ProcGetParameters:
		return s.handleGetParameters(ctx)
	case proto.ProcStart:
		return s.handleStart(ctx)
	case proto.ProcCancel:
		return s.handleCancel(ctx)
	case proto.ProcExit:
		return s.handleExit(ctx)
	default:
		return sanerr.Inval, fmt.Errorf("%w: unexpected procedure %s", errProtocol, proto.ProcedureName(uint32(proc)))
	}
}

func (s *session) handleInit(ctx context.Context) (sanerr.Status, error) {
	req := &proto.InitRequest{}
	if err := proto.ReadRequest(s.wr, req); err != nil {
		return sanerr.IOError, err
	}

	if !s.srv.access.Allow(remoteIP(s.conn)) {
		logger.WarnCtx(ctx, "access denied", logger.PeerAddr(peerString(s.conn)))
		s.srv.metrics.RecordAuthDenied()
		reply := &proto.InitReply{Status: int32(sanerr.AccessDenied)}
		if err := proto.WriteReply(s.wr, reply); err != nil {
			return sanerr.AccessDenied, err
		}
		return sanerr.AccessDenied, fmt.Errorf("%w: access denied", errProtocol)
	}

	s.initialized = true
	reply := &proto.InitReply{Status: int32(sanerr.Good), VersionCode: proto.VersionCode(1, 0, ourProtocolBuild)}
	lc := logger.FromContext(ctx)
	if lc != nil {
		lc.WithAuth(req.Username, "")
	}
	logger.InfoCtx(ctx, "INIT", logger.Username(req.Username), logger.Version(reply.VersionCode))
	return sanerr.Good, proto.WriteReply(s.wr, reply)
}

// driverFor returns (lazily Init'ing) the backend instance this session
// uses for name.
func (s *session) driverFor(ctx context.Context, name string) (backend.Backend, error) {
	if d, ok := s.drivers[name]; ok {
		return d, nil
	}
	d, err := backend.New(name)
	if err != nil {
		return nil, err
	}
	// No backend in this tree drives its own AUTHORIZE relay: resource
	// authorization for OPEN/CONTROL_OPTION/START is decided up front by
	// this session (see authorize below), before the driver call ever
	// happens. This callback exists only so Init's signature is
	// satisfiable by a hypothetical driver that does want to call back
	// reentrantly; it has nothing to relay since it isn't told which
	// connection is asking.
	noopAuth := func(string) (string, string) { return "", "" }
	if _, err := d.Init(ctx, noopAuth); err != nil {
		return nil, err
	}
	s.drivers[name] = d
	return d, nil
}

func (s *session) handleGetDevices(ctx context.Context) (sanerr.Status, error) {
	req := &proto.GetDevicesRequest{}
	if err := proto.ReadRequest(s.wr, req); err != nil {
		return sanerr.IOError, err
	}

	var all []*wire.Device
	for _, name := range s.srv.cfg.Backends {
		d, err := s.driverFor(ctx, name)
		if err != nil {
			logger.WarnCtx(ctx, "backend unavailable", logger.Backend(name), logger.Err(err))
			continue
		}
		devices, err := d.GetDevices(ctx, false)
		if err != nil {
			logger.WarnCtx(ctx, "GetDevices failed", logger.Backend(name), logger.Err(err))
			continue
		}
		for _, dev := range devices {
			s.deviceOwner[dev.Name] = name
			all = append(all, dev)
		}
	}

	reply := &proto.GetDevicesReply{Status: int32(sanerr.Good), Devices: all}
	return sanerr.Good, proto.WriteReply(s.wr, reply)
}

// resolveDevice maps a (possibly empty) requested device name to the
// driver that owns it, ensuring the device catalog has been built at
// least once.
func (s *session) resolveDevice(ctx context.Context, name string) (driverName, device string, err error) {
	if len(s.deviceOwner) == 0 {
		for _, bn := range s.srv.cfg.Backends {
			d, err := s.driverFor(ctx, bn)
			if err != nil {
				continue
			}
			devices, err := d.GetDevices(ctx, false)
			if err != nil {
				continue
			}
			for _, dev := range devices {
				s.deviceOwner[dev.Name] = bn
			}
		}
	}

	if name == "" {
		for _, bn := range s.srv.cfg.Backends {
			for devName, owner := range s.deviceOwner {
				if owner == bn {
					return bn, devName, nil
				}
			}
		}
		return "", "", sanerr.Inval
	}
	if owner, ok := s.deviceOwner[name]; ok {
		return owner, name, nil
	}
	return "", "", sanerr.Inval
}

func (s *session) handleOpen(ctx context.Context) (sanerr.Status, error) {
	req := &proto.OpenRequest{}
	if err := proto.ReadRequest(s.wr, req); err != nil {
		return sanerr.IOError, err
	}

	driverName, device, err := s.resolveDevice(ctx, req.Name)
	if err != nil {
		status := statusOf(err)
		return status, proto.WriteReply(s.wr, &proto.OpenReply{Status: int32(status)})
	}

	buildPartial := func(challenge string) proto.Message {
		return &proto.OpenReply{Status: int32(sanerr.Good), ResourceToAuthorize: wire.NullableString{Value: challenge}}
	}
	if status, authErr := s.authorize(ctx, device, buildPartial); authErr != nil {
		return status, authErr
	} else if !status.Ok() {
		return status, proto.WriteReply(s.wr, &proto.OpenReply{Status: int32(status)})
	}

	d, err := s.driverFor(ctx, driverName)
	if err != nil {
		return sanerr.IOError, proto.WriteReply(s.wr, &proto.OpenReply{Status: int32(sanerr.IOError)})
	}
	h, err := d.Open(ctx, device)
	if err != nil {
		status := statusOf(err)
		return status, proto.WriteReply(s.wr, &proto.OpenReply{Status: int32(status)})
	}

	local := s.nextHandle
	s.nextHandle++
	s.handles[local] = &openHandle{driverName: driverName, driver: d, handle: h, resource: device}

	logger.InfoCtx(ctx, "OPEN", logger.Device(device), logger.HandleID(local), logger.Backend(driverName))
	return sanerr.Good, proto.WriteReply(s.wr, &proto.OpenReply{Status: int32(sanerr.Good), Handle: local})
}

func (s *session) handleClose(ctx context.Context) (sanerr.Status, error) {
	req := &proto.CloseRequest{}
	if err := proto.ReadRequest(s.wr, req); err != nil {
		return sanerr.IOError, err
	}
	if h, ok := s.handles[req.Handle]; ok {
		h.driver.Close(h.handle)
		delete(s.handles, req.Handle)
		logger.InfoCtx(ctx, "CLOSE", logger.HandleID(req.Handle))
	}
	return sanerr.Good, proto.WriteReply(s.wr, &proto.Ack{Value: 1})
}

func (s *session) handleGetOptionDescriptors(ctx context.Context) (sanerr.Status, error) {
	req := &proto.GetOptionDescriptorsRequest{}
	if err := proto.ReadRequest(s.wr, req); err != nil {
		return sanerr.IOError, err
	}
	h, ok := s.handles[req.Handle]
	if !ok {
		return sanerr.Inval, proto.WriteReply(s.wr, &proto.GetOptionDescriptorsReply{})
	}

	var descs []*wire.OptionDescriptor
	for i := int32(0); ; i++ {
		d := h.driver.GetOptionDescriptor(h.handle, i)
		if d == nil {
			break
		}
		descs = append(descs, d)
	}
	return sanerr.Good, proto.WriteReply(s.wr, &proto.GetOptionDescriptorsReply{Descriptors: descs})
}

func (s *session) handleControlOption(ctx context.Context) (sanerr.Status, error) {
	req := &proto.ControlOptionRequest{}
	if err := proto.ReadRequest(s.wr, req); err != nil {
		return sanerr.IOError, err
	}
	h, ok := s.handles[req.Handle]
	if !ok {
		return sanerr.Inval, proto.WriteReply(s.wr, &proto.ControlOptionReply{Status: int32(sanerr.Inval)})
	}

	if req.Action != wire.ActionGet {
		buildPartial := func(challenge string) proto.Message {
			return &proto.ControlOptionReply{Status: int32(sanerr.Good), ResourceToAuthorize: wire.NullableString{Value: challenge}}
		}
		if status, authErr := s.authorize(ctx, h.resource, buildPartial); authErr != nil {
			return status, authErr
		} else if !status.Ok() {
			return status, proto.WriteReply(s.wr, &proto.ControlOptionReply{Status: int32(status)})
		}
	}

	var value *wire.OptionValue
	if req.Action != wire.ActionGet {
		value = &req.Value
	}
	info, result, err := h.driver.ControlOption(ctx, h.handle, req.Option, req.Action, value)
	if err != nil {
		status := statusOf(err)
		return status, proto.WriteReply(s.wr, &proto.ControlOptionReply{Status: int32(status)})
	}
	return sanerr.Good, proto.WriteReply(s.wr, &proto.ControlOptionReply{Status: int32(sanerr.Good), Info: info, Value: result})
}

func (s *session) handleGetParameters(ctx context.Context) (sanerr.Status, error) {
	req := &proto.GetParametersRequest{}
	if err := proto.ReadRequest(s.wr, req); err != nil {
		return sanerr.IOError, err
	}
	h, ok := s.handles[req.Handle]
	if !ok {
		return sanerr.Inval, proto.WriteReply(s.wr, &proto.GetParametersReply{Status: int32(sanerr.Inval)})
	}
	params, err := h.driver.GetParameters(h.handle)
	if err != nil {
		status := statusOf(err)
		return status, proto.WriteReply(s.wr, &proto.GetParametersReply{Status: int32(status)})
	}
	return sanerr.Good, proto.WriteReply(s.wr, &proto.GetParametersReply{Status: int32(sanerr.Good), Params: params})
}

func (s *session) handleStart(ctx context.Context) (sanerr.Status, error) {
	req := &proto.StartRequest{}
	if err := proto.ReadRequest(s.wr, req); err != nil {
		return sanerr.IOError, err
	}
	h, ok := s.handles[req.Handle]
	if !ok {
		return sanerr.Inval, proto.WriteReply(s.wr, &proto.StartReply{Status: int32(sanerr.Inval)})
	}

	buildPartial := func(challenge string) proto.Message {
		return &proto.StartReply{Status: int32(sanerr.Good), ResourceToAuthorize: wire.NullableString{Value: challenge}}
	}
	if status, authErr := s.authorize(ctx, h.resource, buildPartial); authErr != nil {
		return status, authErr
	} else if !status.Ok() {
		return status, proto.WriteReply(s.wr, &proto.StartReply{Status: int32(status)})
	}

	return s.startScan(ctx, req.Handle, h)
}

func (s *session) handleCancel(ctx context.Context) (sanerr.Status, error) {
	req := &proto.CancelRequest{}
	if err := proto.ReadRequest(s.wr, req); err != nil {
		return sanerr.IOError, err
	}
	if h, ok := s.handles[req.Handle]; ok {
		h.driver.Cancel(h.handle)
		logger.InfoCtx(ctx, "CANCEL", logger.HandleID(req.Handle))
	}
	return sanerr.Good, proto.WriteReply(s.wr, &proto.Ack{Value: 1})
}

func (s *session) handleExit(ctx context.Context) (sanerr.Status, error) {
	req := &proto.ExitRequest{}
	if err := proto.ReadRequest(s.wr, req); err != nil {
		return sanerr.IOError, err
	}
	logger.InfoCtx(ctx, "EXIT")
	return sanerr.Good, nil
}

// close tears down every driver instance this session created (spec §4.2
// "Exit tears the driver down, implicitly closing any open device").
func (s *session) close() {
	for _, d := range s.drivers {
		d.Exit()
	}
	s.conn.Close()
}

func statusOf(err error) sanerr.Status {
	if status, ok := err.(sanerr.Status); ok {
		return status
	}
	return sanerr.IOError
}

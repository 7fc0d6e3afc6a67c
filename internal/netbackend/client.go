package netbackend

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/saneproj/sane-net/internal/backend"
	"github.com/saneproj/sane-net/internal/proto"
	"github.com/saneproj/sane-net/internal/sanerr"
	"github.com/saneproj/sane-net/internal/wire"
	"github.com/saneproj/sane-net/pkg/config"
)

func init() {
	backend.Register("net", func() backend.Backend { return New(nil) })
}

// defaultPort is the net backend's fallback TCP port when a configured host
// carries none, matching the well-known sane-port service (spec §6.1).
const defaultPort = "6566"

// session tracks one open device: the control connection it was opened
// on, the server's own handle for it, a cached option descriptor list, and
// the data connection once Start succeeds.
type session struct {
	hc     *hostConn
	remote int32

	mu          sync.Mutex
	descriptors []*wire.OptionDescriptor
	data        *dataConn
}

func (s *session) invalidateOptions() {
	s.mu.Lock()
	s.descriptors = nil
	s.mu.Unlock()
}

// Client is the net backend driver (C4): it implements backend.Backend by
// relaying every call as one RPC to a remote saned, lazily dialing each
// configured host the first time it's needed.
type Client struct {
	mu             sync.Mutex
	hosts          []string
	connectTimeout time.Duration
	rpcTimeout     time.Duration
	username       string
	auth           backend.AuthCallback

	conns    map[string]*hostConn
	sessions map[backend.Handle]*session
	next     backend.Handle
}

// New builds a Client from cfg. A nil cfg yields an empty host list; hosts
// are then taken entirely from SANE_NET_HOSTS at GetDevices/Open time, the
// same degraded-but-usable mode sane_init without a net.conf falls back to.
func New(cfg *config.NetBackendConfig) *Client {
	c := &Client{
		connectTimeout: 5 * time.Second,
		rpcTimeout:     30 * time.Second,
		conns:          make(map[string]*hostConn),
		sessions:       make(map[backend.Handle]*session),
	}
	if cfg != nil {
		c.hosts = cfg.Hosts
		if cfg.ConnectTimeout > 0 {
			c.connectTimeout = cfg.ConnectTimeout
		}
		if cfg.RPCTimeout > 0 {
			c.rpcTimeout = cfg.RPCTimeout
		}
	}
	return c
}

func (c *Client) Init(ctx context.Context, auth backend.AuthCallback) (int32, error) {
	c.mu.Lock()
	c.auth = auth
	if u, err := os.Hostname(); err == nil {
		c.username = u
	}
	c.mu.Unlock()
	return proto.VersionCode(1, 0, ourProtocolBuild), nil
}

func (c *Client) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, hc := range c.conns {
		hc.close()
	}
	c.conns = make(map[string]*hostConn)
	c.sessions = make(map[backend.Handle]*session)
}

// resolveHosts builds the ordered, deduplicated host list: SANE_NET_HOSTS
// entries first, then the configured host list, each normalized to carry
// an explicit port (spec §6.7, and the parsing order this module's
// specification adds on top of it).
func (c *Client) resolveHosts() ([]string, error) {
	var ordered []string
	seen := make(map[string]bool)
	add := func(h string) {
		h = normalizeHost(strings.TrimSpace(h))
		if h == "" || seen[h] {
			return
		}
		seen[h] = true
		ordered = append(ordered, h)
	}

	if env := os.Getenv("SANE_NET_HOSTS"); env != "" {
		for _, h := range splitHostList(env) {
			add(h)
		}
	}

	c.mu.Lock()
	hosts := append([]string(nil), c.hosts...)
	c.mu.Unlock()
	for _, h := range hosts {
		add(h)
	}

	if len(ordered) == 0 {
		return nil, fmt.Errorf("netbackend: no hosts configured (set net_backend.hosts or SANE_NET_HOSTS)")
	}
	return ordered, nil
}

// splitHostList splits SANE_NET_HOSTS on ':', treating a bracketed IPv6
// literal as opaque so its own colons aren't mistaken for separators
// (spec §6.7: "colon-separated host list, IPv6 bracketed").
func splitHostList(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// normalizeHost appends the default port to a bare hostname or IPv4
// address, and to a bracketed IPv6 literal that carries no port suffix.
func normalizeHost(h string) string {
	if h == "" {
		return ""
	}
	if strings.HasPrefix(h, "[") {
		if strings.Contains(h, "]:") {
			return h
		}
		return h + ":" + defaultPort
	}
	if strings.Count(h, ":") >= 2 {
		// Bare (unbracketed) IPv6 literal; bracket it so net.Dial accepts it.
		return "[" + h + "]:" + defaultPort
	}
	if strings.Contains(h, ":") {
		return h
	}
	return h + ":" + defaultPort
}

func (c *Client) connect(ctx context.Context, host string) (*hostConn, error) {
	c.mu.Lock()
	if hc, ok := c.conns[host]; ok {
		c.mu.Unlock()
		return hc, nil
	}
	timeout, username := c.connectTimeout, c.username
	c.mu.Unlock()

	hc, err := dial(ctx, host, timeout, username)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.conns[host] = hc
	c.mu.Unlock()
	return hc, nil
}

// hostDeviceSep separates the host:port prefix GetDevices adds to a device
// name from the device name itself. A plain ':' won't do since the host
// part already contains one (host:port, or a bracketed IPv6 literal); '|'
// never appears in either a host:port pair or a SANE device name.
const hostDeviceSep = "|"

// splitHostName separates the "host:port|device" addressing scheme
// GetDevices produces from a bare device name (no host qualifier, resolved
// against the first configured host).
func splitHostName(name string) (host, device string) {
	idx := strings.IndexByte(name, hostDeviceSep[0])
	if idx < 0 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}

func (c *Client) get(h backend.Handle) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[h]
	if !ok {
		return nil, sanerr.Inval
	}
	return s, nil
}

// relayAuth performs one AUTHORIZE round trip (spec §4.4's authorization
// relay): resource_to_authorize came back non-null on a reply, so the
// frontend's callback is asked for credentials, sent, and acknowledged.
// The caller is responsible for re-decoding the original reply afterward;
// the server resends it once AUTHORIZE is acknowledged.
func (c *Client) relayAuth(hc *hostConn, resource string) error {
	c.mu.Lock()
	auth := c.auth
	c.mu.Unlock()
	if auth == nil {
		return sanerr.AccessDenied
	}
	username, password := auth(resource)
	req := &proto.AuthorizeRequest{Resource: resource, Username: username, Password: password}
	ack := &proto.Ack{}
	return proto.Call(hc.wr, proto.ProcAuthorize, req, ack)
}

func (c *Client) GetDevices(ctx context.Context, localOnly bool) ([]*wire.Device, error) {
	if localOnly {
		return nil, nil
	}
	hosts, err := c.resolveHosts()
	if err != nil {
		return nil, err
	}

	var all []*wire.Device
	for _, host := range hosts {
		hc, err := c.connect(ctx, host)
		if err != nil {
			continue
		}
		req := &proto.GetDevicesRequest{}
		reply := &proto.GetDevicesReply{}
		if err := proto.Call(hc.wr, proto.ProcGetDevices, req, reply); err != nil {
			continue
		}
		if status := sanerr.Status(reply.Status); !status.Ok() {
			continue
		}
		for _, d := range reply.Devices {
			all = append(all, &wire.Device{
				Name:   host + hostDeviceSep + d.Name,
				Vendor: d.Vendor,
				Model:  d.Model,
				Type:   d.Type,
			})
		}
	}
	return all, nil
}

func (c *Client) Open(ctx context.Context, name string) (backend.Handle, error) {
	host, device := splitHostName(name)
	if host == "" {
		hosts, err := c.resolveHosts()
		if err != nil {
			return 0, err
		}
		host = hosts[0]
	}
	hc, err := c.connect(ctx, host)
	if err != nil {
		return 0, err
	}

	req := &proto.OpenRequest{Name: device}
	reply := &proto.OpenReply{}
	if err := proto.Call(hc.wr, proto.ProcOpen, req, reply); err != nil {
		return 0, err
	}
	for !reply.ResourceToAuthorize.IsNull {
		if err := c.relayAuth(hc, reply.ResourceToAuthorize.Value); err != nil {
			return 0, err
		}
		if err := hc.wr.DecodeMessage(func() error { return reply.Codec(hc.wr) }); err != nil {
			return 0, err
		}
	}
	if status := sanerr.Status(reply.Status); !status.Ok() {
		return 0, status
	}

	c.mu.Lock()
	h := c.next
	c.next++
	c.sessions[h] = &session{hc: hc, remote: reply.Handle}
	c.mu.Unlock()
	return h, nil
}

func (c *Client) Close(h backend.Handle) {
	s, err := c.get(h)
	if err != nil {
		return
	}
	req := &proto.CloseRequest{Handle: s.remote}
	ack := &proto.Ack{}
	_ = proto.Call(s.hc.wr, proto.ProcClose, req, ack)

	s.mu.Lock()
	if s.data != nil {
		s.data.Close()
		s.data = nil
	}
	s.mu.Unlock()

	c.mu.Lock()
	delete(c.sessions, h)
	c.mu.Unlock()
}

func (c *Client) loadOptions(s *session) ([]*wire.OptionDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.descriptors != nil {
		return s.descriptors, nil
	}
	req := &proto.GetOptionDescriptorsRequest{Handle: s.remote}
	reply := &proto.GetOptionDescriptorsReply{}
	if err := proto.Call(s.hc.wr, proto.ProcGetOptionDescriptors, req, reply); err != nil {
		return nil, err
	}
	s.descriptors = reply.Descriptors
	return s.descriptors, nil
}

func (c *Client) GetOptionDescriptor(h backend.Handle, i int32) *wire.OptionDescriptor {
	s, err := c.get(h)
	if err != nil {
		return nil
	}
	descs, err := c.loadOptions(s)
	if err != nil || i < 0 || int(i) >= len(descs) {
		return nil
	}
	return descs[i]
}

func (c *Client) ControlOption(ctx context.Context, h backend.Handle, i int32, action wire.Action, value *wire.OptionValue) (int32, wire.OptionValue, error) {
	s, err := c.get(h)
	if err != nil {
		return 0, wire.OptionValue{}, err
	}

	req := &proto.ControlOptionRequest{Handle: s.remote, Option: i, Action: action}
	if value != nil {
		req.Value = *value
	}
	reply := &proto.ControlOptionReply{}
	if err := proto.Call(s.hc.wr, proto.ProcControlOption, req, reply); err != nil {
		return 0, wire.OptionValue{}, err
	}
	for !reply.ResourceToAuthorize.IsNull {
		if err := c.relayAuth(s.hc, reply.ResourceToAuthorize.Value); err != nil {
			return 0, wire.OptionValue{}, err
		}
		if err := s.hc.wr.DecodeMessage(func() error { return reply.Codec(s.hc.wr) }); err != nil {
			return 0, wire.OptionValue{}, err
		}
	}
	if status := sanerr.Status(reply.Status); !status.Ok() {
		return reply.Info, wire.OptionValue{}, status
	}
	if reply.Info&wire.InfoReloadOptions != 0 {
		s.invalidateOptions()
	}
	return reply.Info, reply.Value, nil
}

func (c *Client) GetParameters(h backend.Handle) (wire.Parameters, error) {
	s, err := c.get(h)
	if err != nil {
		return wire.Parameters{}, err
	}
	req := &proto.GetParametersRequest{Handle: s.remote}
	reply := &proto.GetParametersReply{}
	if err := proto.Call(s.hc.wr, proto.ProcGetParameters, req, reply); err != nil {
		return wire.Parameters{}, err
	}
	if status := sanerr.Status(reply.Status); !status.Ok() {
		return wire.Parameters{}, status
	}
	return reply.Params, nil
}

func (c *Client) Start(ctx context.Context, h backend.Handle) error {
	s, err := c.get(h)
	if err != nil {
		return err
	}

	req := &proto.StartRequest{Handle: s.remote}
	reply := &proto.StartReply{}
	if err := proto.Call(s.hc.wr, proto.ProcStart, req, reply); err != nil {
		return err
	}
	for !reply.ResourceToAuthorize.IsNull {
		if err := c.relayAuth(s.hc, reply.ResourceToAuthorize.Value); err != nil {
			return err
		}
		if err := s.hc.wr.DecodeMessage(func() error { return reply.Codec(s.hc.wr) }); err != nil {
			return err
		}
	}
	if status := sanerr.Status(reply.Status); !status.Ok() {
		return status
	}

	dc, err := dialDataChannel(s.hc.peerIP(), int(reply.Port), reply.IsServerLittleEndian())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = dc
	s.mu.Unlock()
	return nil
}

func (c *Client) Read(h backend.Handle, buf []byte) (int, error) {
	s, err := c.get(h)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	dc := s.data
	s.mu.Unlock()
	if dc == nil {
		return 0, sanerr.IOError
	}
	return dc.Read(buf)
}

func (c *Client) Cancel(h backend.Handle) {
	s, err := c.get(h)
	if err != nil {
		return
	}
	req := &proto.CancelRequest{Handle: s.remote}
	ack := &proto.Ack{}
	_ = proto.Call(s.hc.wr, proto.ProcCancel, req, ack)

	s.mu.Lock()
	if s.data != nil {
		s.data.Close()
		s.data = nil
	}
	s.mu.Unlock()
}

// SetIOMode is unsupported: the net backend's data channel semantics (a
// record-framed TCP stream terminated by a status byte) don't map onto a
// driver-level non-blocking toggle the way a local device's fd does.
func (c *Client) SetIOMode(h backend.Handle, nonBlocking bool) error {
	if _, err := c.get(h); err != nil {
		return err
	}
	return sanerr.Unsupported
}

// GetSelectFD is unsupported: Go's net.Conn doesn't expose a raw,
// select-safe descriptor portably across platforms.
func (c *Client) GetSelectFD(h backend.Handle) (int, error) {
	if _, err := c.get(h); err != nil {
		return 0, err
	}
	return 0, sanerr.Unsupported
}

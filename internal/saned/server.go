// Package saned implements the saned server core (spec C5): the
// per-connection request loop that decodes SANE net RPCs, dispatches them
// to a local backend.Backend driver, and relays the AUTHORIZE challenge for
// resources that require it. internal/supervisor (C6) owns the listening
// sockets and hands each accepted connection to Server.Serve.
package saned

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/saneproj/sane-net/internal/auth"
	"github.com/saneproj/sane-net/internal/backend"
	"github.com/saneproj/sane-net/internal/logger"
	"github.com/saneproj/sane-net/internal/metrics"
	"github.com/saneproj/sane-net/pkg/config"
)

// defaultIdleTimeout matches the reference watchdog: a connection that
// issues no request for one hour is abandoned (spec §4.5, §5).
const defaultIdleTimeout = 3600 * time.Second

// defaultPumpBufferSize sizes the scan-data relay buffer when the
// configuration leaves it unset (spec §4.5 "~8 KiB ring buffer").
const defaultPumpBufferSize = 8192

// Server holds the state shared by every connection this saned instance
// accepts: which backend drivers it exposes, the resource authorizer, the
// host access-control list, and optional metrics.
type Server struct {
	cfg     *config.SanedConfig
	authz   *auth.Authorizer
	access  *AccessControl
	metrics *metrics.Metrics

	idleTimeout    time.Duration
	pumpBufferSize int
}

// NewServer builds a Server from cfg. It loads the credentials file named
// by cfg.Auth.CredentialsFile and the access-control rules named by
// cfg.AccessControl, failing if either is malformed.
func NewServer(cfg *config.Config, m *metrics.Metrics) (*Server, error) {
	authz, err := auth.NewAuthorizer(cfg.Auth.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("saned: loading credentials file: %w", err)
	}
	access, err := NewAccessControl(&cfg.AccessControl)
	if err != nil {
		return nil, fmt.Errorf("saned: loading access control: %w", err)
	}

	idleTimeout := cfg.Server.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	pumpBufferSize := int(cfg.Server.PumpBufferSize)
	if pumpBufferSize <= 0 {
		pumpBufferSize = defaultPumpBufferSize
	}

	for _, name := range cfg.Server.Backends {
		if _, err := backend.New(name); err != nil {
			return nil, fmt.Errorf("saned: configured backend %q: %w", name, err)
		}
	}

	return &Server{
		cfg:            &cfg.Server,
		authz:          authz,
		access:         access,
		metrics:        m,
		idleTimeout:    idleTimeout,
		pumpBufferSize: pumpBufferSize,
	}, nil
}

// Serve drives one accepted connection to completion: it never returns
// until the connection closes, is rejected by access control, or its
// watchdog fires. Callers (the standalone accept loop, or an inetd-style
// single-shot invocation) run this in its own goroutine per connection.
func (s *Server) Serve(ctx context.Context, conn net.Conn) {
	s.metrics.ConnectionAccepted()
	defer s.metrics.ConnectionClosed()

	sess := newSession(s, conn)
	defer sess.close()

	lc := logger.NewLogContext(peerString(conn))
	ctx = logger.WithContext(ctx, lc)
	logger.InfoCtx(ctx, "connection accepted", logger.PeerAddr(peerString(conn)))

	sess.run(ctx)

	logger.InfoCtx(ctx, "connection closed", logger.PeerAddr(peerString(conn)))
}

func peerString(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}

func remoteIP(conn net.Conn) net.IP {
	tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return nil
	}
	return tcpAddr.IP
}

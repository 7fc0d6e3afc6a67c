package supervisor

import (
	"fmt"
	"net"
	"os"
)

// fileConn wraps fd (already holding a connected TCP socket, as inetd or
// systemd socket activation hands a saned worker) as a net.Conn, so the
// RemoteAddr it reports is a genuine *net.TCPAddr and internal/saned's
// access-control checks behave exactly as they do for a listener-accepted
// connection (spec §4.6 "inetd": "stdin already holds the client socket,
// or systemd passes fd 3").
func fileConn(fd int) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), "saned-client")
	if f == nil {
		return nil, fmt.Errorf("fd %d is not valid", fd)
	}
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("wrapping fd %d as a connection: %w", fd, err)
	}
	return conn, nil
}

package supervisor

import (
	"context"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/saneproj/sane-net/internal/backend/testbackend"
	"github.com/saneproj/sane-net/internal/proto"
	"github.com/saneproj/sane-net/internal/saned"
	"github.com/saneproj/sane-net/internal/sanerr"
	"github.com/saneproj/sane-net/internal/wire"
	"github.com/saneproj/sane-net/pkg/config"
)

func testConfig(t *testing.T, listenAddr, pidFile string) *config.Config {
	t.Helper()
	return &config.Config{
		ShutdownTimeout: time.Second,
		Server: config.SanedConfig{
			ListenAddr: listenAddr,
			Backends:   []string{"test"},
			PidFile:    pidFile,
		},
	}
}

func TestSupervisorServeAcceptsAndShutsDownGracefully(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:0", "")
	sanedSrv, err := saned.NewServer(cfg, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	sv := New(cfg, sanedSrv)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	cfg.Server.ListenAddr = addr

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- sv.Serve(ctx) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	initOverSupervisorConn(t, conn)
	conn.Close()

	cancel()
	select {
	case err := <-serveDone:
		if err != nil {
			t.Fatalf("Serve returned error after graceful shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

func initOverSupervisorConn(t *testing.T, conn net.Conn) {
	t.Helper()
	wr := wire.New(conn, conn, binary.BigEndian)
	req := &proto.InitRequest{VersionCode: proto.VersionCode(1, 0, 3), Username: "alice"}
	reply := &proto.InitReply{}
	if err := proto.Call(wr, proto.ProcInit, req, reply); err != nil {
		t.Fatalf("INIT: %v", err)
	}
	if status := sanerr.Status(reply.Status); status != sanerr.Good {
		t.Fatalf("INIT status = %v, want Good", status)
	}
}

func TestSupervisorServeInetdWrapsRealSocket(t *testing.T) {
	cfg := testConfig(t, "", "")
	sanedSrv, err := saned.NewServer(cfg, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	serverSide := <-accepted
	tcpConn, ok := serverSide.(*net.TCPConn)
	if !ok {
		t.Fatal("accepted connection is not a *net.TCPConn")
	}
	file, err := tcpConn.File()
	if err != nil {
		t.Fatalf("extracting fd: %v", err)
	}
	defer file.Close()
	tcpConn.Close()

	done := make(chan error, 1)
	go func() { done <- ServeInetd(context.Background(), sanedSrv, int(file.Fd())) }()

	initOverSupervisorConn(t, client)
	client.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ServeInetd: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeInetd did not return")
	}
}

func TestPIDFileWrittenAndRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saned.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("pid file not created: %v", err)
	}
	removePIDFile(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("pid file still present after removePIDFile: %v", err)
	}
}

func TestPIDFileBlankPathIsNoOp(t *testing.T) {
	if err := writePIDFile(""); err != nil {
		t.Fatalf("writePIDFile(\"\") = %v, want nil", err)
	}
	removePIDFile("")
}

func TestDropPrivilegesNoOpWithoutUser(t *testing.T) {
	if err := dropPrivileges("", ""); err != nil {
		t.Fatalf("dropPrivileges(\"\", \"\") = %v, want nil", err)
	}
}

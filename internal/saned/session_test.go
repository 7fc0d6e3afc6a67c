package saned

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	_ "github.com/saneproj/sane-net/internal/backend/testbackend"
	"github.com/saneproj/sane-net/internal/proto"
	"github.com/saneproj/sane-net/internal/sanerr"
	"github.com/saneproj/sane-net/internal/wire"
	"github.com/saneproj/sane-net/pkg/config"
)

// authResponse computes the "$MD5$" digest response form saned's
// authorizer expects (spec §4.3, internal/auth/md5.go):
// "$MD5$" + hex(md5(salt(challenge) + password)), where salt is
// everything after the challenge's "$MD5$" marker.
func authResponse(challenge, password string) string {
	const prefix = "$MD5$"
	salt := challenge
	for i := 0; i+len(prefix) <= len(challenge); i++ {
		if challenge[i:i+len(prefix)] == prefix {
			salt = challenge[i+len(prefix):]
			break
		}
	}
	sum := md5.Sum([]byte(salt + password))
	return prefix + hex.EncodeToString(sum[:])
}

func testServer(t *testing.T, credentialsBody string) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.SanedConfig{
			ListenAddr: ":6566",
			Backends:   []string{"test"},
		},
	}
	if credentialsBody != "" {
		dir := t.TempDir()
		path := filepath.Join(dir, "backend.users")
		if err := os.WriteFile(path, []byte(credentialsBody), 0600); err != nil {
			t.Fatalf("write credentials file: %v", err)
		}
		cfg.Auth.CredentialsFile = path
	}
	srv, err := NewServer(cfg, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

// dialServer runs srv.Serve against one accepted TCP loopback connection
// and returns the client side, dialed over 127.0.0.1 so access control's
// "loopback always allowed" rule applies.
func dialServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
		srv.Serve(context.Background(), conn)
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	<-accepted
	return client
}

func mustInit(t *testing.T, wr *wire.Wire, username string) *proto.InitReply {
	t.Helper()
	req := &proto.InitRequest{VersionCode: proto.VersionCode(1, 0, 3), Username: username}
	reply := &proto.InitReply{}
	if err := proto.Call(wr, proto.ProcInit, req, reply); err != nil {
		t.Fatalf("INIT: %v", err)
	}
	return reply
}

func TestSessionInitSucceeds(t *testing.T) {
	srv := testServer(t, "")
	conn := dialServer(t, srv)
	wr := wire.New(conn, conn, byteOrder)

	reply := mustInit(t, wr, "alice")
	if status := sanerr.Status(reply.Status); status != sanerr.Good {
		t.Fatalf("INIT status = %v, want Good", status)
	}
	major, _, _ := proto.SplitVersionCode(reply.VersionCode)
	if major != 1 {
		t.Fatalf("INIT reply version major = %d, want 1", major)
	}
}

func TestSessionInitDeniedForNonTCPPeer(t *testing.T) {
	srv := testServer(t, "")
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	go srv.Serve(context.Background(), serverConn)

	wr := wire.New(clientConn, clientConn, byteOrder)
	reply := mustInit(t, wr, "alice")
	if status := sanerr.Status(reply.Status); status != sanerr.AccessDenied {
		t.Fatalf("INIT status = %v, want AccessDenied", status)
	}
}

func TestSessionGetDevicesAndOpenClose(t *testing.T) {
	srv := testServer(t, "")
	conn := dialServer(t, srv)
	wr := wire.New(conn, conn, byteOrder)
	mustInit(t, wr, "alice")

	devReply := &proto.GetDevicesReply{}
	if err := proto.Call(wr, proto.ProcGetDevices, &proto.GetDevicesRequest{}, devReply); err != nil {
		t.Fatalf("GET_DEVICES: %v", err)
	}
	if len(devReply.Devices) != 1 || devReply.Devices[0].Name != "test0" {
		t.Fatalf("GET_DEVICES devices = %+v, want one device named test0", devReply.Devices)
	}

	openReply := &proto.OpenReply{}
	if err := proto.Call(wr, proto.ProcOpen, &proto.OpenRequest{Name: "test0"}, openReply); err != nil {
		t.Fatalf("OPEN: %v", err)
	}
	if status := sanerr.Status(openReply.Status); status != sanerr.Good {
		t.Fatalf("OPEN status = %v, want Good", status)
	}

	descReply := &proto.GetOptionDescriptorsReply{}
	if err := proto.Call(wr, proto.ProcGetOptionDescriptors, &proto.GetOptionDescriptorsRequest{Handle: openReply.Handle}, descReply); err != nil {
		t.Fatalf("GET_OPTION_DESCRIPTORS: %v", err)
	}
	if len(descReply.Descriptors) < 2 {
		t.Fatalf("GET_OPTION_DESCRIPTORS returned %d descriptors, want at least 2", len(descReply.Descriptors))
	}

	ctrlReply := &proto.ControlOptionReply{}
	ctrlReq := &proto.ControlOptionRequest{Handle: openReply.Handle, Option: 1, Action: wire.ActionGet}
	if err := proto.Call(wr, proto.ProcControlOption, ctrlReq, ctrlReply); err != nil {
		t.Fatalf("CONTROL_OPTION: %v", err)
	}
	if status := sanerr.Status(ctrlReply.Status); status != sanerr.Good {
		t.Fatalf("CONTROL_OPTION status = %v, want Good", status)
	}
	if ctrlReply.Value.Word != 150 {
		t.Fatalf("CONTROL_OPTION resolution = %d, want 150 (driver default)", ctrlReply.Value.Word)
	}

	paramsReply := &proto.GetParametersReply{}
	if err := proto.Call(wr, proto.ProcGetParameters, &proto.GetParametersRequest{Handle: openReply.Handle}, paramsReply); err != nil {
		t.Fatalf("GET_PARAMETERS: %v", err)
	}
	if status := sanerr.Status(paramsReply.Status); status != sanerr.Good {
		t.Fatalf("GET_PARAMETERS status = %v, want Good", status)
	}

	ack := &proto.Ack{}
	if err := proto.Call(wr, proto.ProcClose, &proto.CloseRequest{Handle: openReply.Handle}, ack); err != nil {
		t.Fatalf("CLOSE: %v", err)
	}
}

func TestSessionOpenRequiresAuthorization(t *testing.T) {
	body := "alice:secret:test0\n"
	srv := testServer(t, body)
	conn := dialServer(t, srv)
	wr := wire.New(conn, conn, byteOrder)
	mustInit(t, wr, "alice")

	openReply := &proto.OpenReply{}
	if err := proto.Call(wr, proto.ProcOpen, &proto.OpenRequest{Name: "test0"}, openReply); err != nil {
		t.Fatalf("OPEN: %v", err)
	}
	if openReply.ResourceToAuthorize.IsNull {
		t.Fatal("expected a non-null resource_to_authorize challenge")
	}

	authReq := &proto.AuthorizeRequest{
		Resource: openReply.ResourceToAuthorize.Value,
		Username: "alice",
		Password: authResponse(openReply.ResourceToAuthorize.Value, "secret"),
	}
	ack := &proto.Ack{}
	if err := proto.Call(wr, proto.ProcAuthorize, authReq, ack); err != nil {
		t.Fatalf("AUTHORIZE: %v", err)
	}

	if err := wr.DecodeMessage(func() error { return openReply.Codec(wr) }); err != nil {
		t.Fatalf("decoding final OPEN reply: %v", err)
	}
	if status := sanerr.Status(openReply.Status); status != sanerr.Good {
		t.Fatalf("final OPEN status = %v, want Good", status)
	}
	if !openReply.ResourceToAuthorize.IsNull {
		t.Fatal("final OPEN reply should carry a null resource_to_authorize")
	}
}

func TestSessionOpenWithWrongPasswordIsDenied(t *testing.T) {
	body := "alice:secret:test0\n"
	srv := testServer(t, body)
	conn := dialServer(t, srv)
	wr := wire.New(conn, conn, byteOrder)
	mustInit(t, wr, "alice")

	openReply := &proto.OpenReply{}
	if err := proto.Call(wr, proto.ProcOpen, &proto.OpenRequest{Name: "test0"}, openReply); err != nil {
		t.Fatalf("OPEN: %v", err)
	}

	authReq := &proto.AuthorizeRequest{
		Resource: openReply.ResourceToAuthorize.Value,
		Username: "alice",
		Password: authResponse(openReply.ResourceToAuthorize.Value, "wrong"),
	}
	ack := &proto.Ack{}
	if err := proto.Call(wr, proto.ProcAuthorize, authReq, ack); err != nil {
		t.Fatalf("AUTHORIZE: %v", err)
	}
	if err := wr.DecodeMessage(func() error { return openReply.Codec(wr) }); err != nil {
		t.Fatalf("decoding final OPEN reply: %v", err)
	}
	if status := sanerr.Status(openReply.Status); status != sanerr.AccessDenied {
		t.Fatalf("final OPEN status = %v, want AccessDenied", status)
	}
}

func TestSessionStartAndReadScanData(t *testing.T) {
	srv := testServer(t, "")
	conn := dialServer(t, srv)
	wr := wire.New(conn, conn, byteOrder)
	mustInit(t, wr, "alice")

	openReply := &proto.OpenReply{}
	if err := proto.Call(wr, proto.ProcOpen, &proto.OpenRequest{Name: "test0"}, openReply); err != nil {
		t.Fatalf("OPEN: %v", err)
	}

	startReply := &proto.StartReply{}
	if err := proto.Call(wr, proto.ProcStart, &proto.StartRequest{Handle: openReply.Handle}, startReply); err != nil {
		t.Fatalf("START: %v", err)
	}
	if status := sanerr.Status(startReply.Status); status != sanerr.Good {
		t.Fatalf("START status = %v, want Good", status)
	}
	if startReply.Port == 0 {
		t.Fatal("START reply carried port 0")
	}

	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("split control local addr: %v", err)
	}
	dataConn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(int(startReply.Port))), 2*time.Second)
	if err != nil {
		t.Fatalf("dial data channel: %v", err)
	}
	defer dataConn.Close()

	var total int
	buf := make([]byte, 4096)
	for {
		hdr, err := proto.ReadRecordHeader(dataConn)
		if err != nil {
			t.Fatalf("ReadRecordHeader: %v", err)
		}
		if hdr.IsTerminator() {
			status, err := proto.ReadTerminatorStatus(dataConn)
			if err != nil {
				t.Fatalf("ReadTerminatorStatus: %v", err)
			}
			if sanerr.Status(status) != sanerr.EOF {
				t.Fatalf("terminator status = %v, want EOF", sanerr.Status(status))
			}
			break
		}
		remaining := int(hdr.Length)
		for remaining > 0 {
			chunk := remaining
			if chunk > len(buf) {
				chunk = len(buf)
			}
			n, err := dataConn.Read(buf[:chunk])
			if err != nil {
				t.Fatalf("reading record payload: %v", err)
			}
			remaining -= n
			total += n
		}
	}
	if total == 0 {
		t.Fatal("expected at least one byte of scan data")
	}
}


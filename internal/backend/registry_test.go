package backend

import (
	"context"
	"testing"

	"github.com/saneproj/sane-net/internal/wire"
)

type stubBackend struct{}

func (stubBackend) Init(context.Context, AuthCallback) (int32, error) { return 1, nil }
func (stubBackend) Exit()                                             {}
func (stubBackend) GetDevices(context.Context, bool) ([]*wire.Device, error) {
	return nil, nil
}
func (stubBackend) Open(context.Context, string) (Handle, error) { return 0, nil }
func (stubBackend) Close(Handle)                                 {}
func (stubBackend) GetOptionDescriptor(Handle, int32) *wire.OptionDescriptor {
	return nil
}
func (stubBackend) ControlOption(context.Context, Handle, int32, wire.Action, *wire.OptionValue) (int32, wire.OptionValue, error) {
	return 0, wire.OptionValue{}, nil
}
func (stubBackend) GetParameters(Handle) (wire.Parameters, error)  { return wire.Parameters{}, nil }
func (stubBackend) Start(context.Context, Handle) error            { return nil }
func (stubBackend) Read(Handle, []byte) (int, error)               { return 0, nil }
func (stubBackend) Cancel(Handle)                                  {}
func (stubBackend) SetIOMode(Handle, bool) error                   { return nil }
func (stubBackend) GetSelectFD(Handle) (int, error)                { return 0, nil }

func TestRegisterAndNew(t *testing.T) {
	name := "stub-for-registry-test"
	Register(name, func() Backend { return stubBackend{} })

	b, err := New(name)
	if err != nil {
		t.Fatalf("New(%q) returned error: %v", name, err)
	}
	if _, ok := b.(stubBackend); !ok {
		t.Fatalf("New(%q) returned %T, want stubBackend", name, b)
	}
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New("no-such-driver"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	name := "dup-for-registry-test"
	Register(name, func() Backend { return stubBackend{} })

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate Register")
		}
	}()
	Register(name, func() Backend { return stubBackend{} })
}

func TestDriversIncludesRegistered(t *testing.T) {
	name := "listed-for-registry-test"
	Register(name, func() Backend { return stubBackend{} })

	found := false
	for _, d := range Drivers() {
		if d == name {
			found = true
		}
	}
	if !found {
		t.Fatalf("Drivers() = %v, want to include %q", Drivers(), name)
	}
}

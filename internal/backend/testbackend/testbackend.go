// Package testbackend implements a synthetic loopback scanner driver
// (spec §4.2, §4.3), grounded in the real sane-backends "test" backend:
// no hardware, a generated gray ramp image, and a small option set
// (resolution, pattern) useful for exercising the rest of the stack
// without a scanner attached.
package testbackend

import (
	"context"
	"sync"

	"github.com/saneproj/sane-net/internal/backend"
	"github.com/saneproj/sane-net/internal/sanerr"
	"github.com/saneproj/sane-net/internal/wire"
)

func init() {
	backend.Register("test", func() backend.Backend { return New() })
}

const (
	optCount = iota
	optResolution
	optPattern
	numOptions
)

const deviceName = "test0"

var patterns = []string{"solid-black", "solid-white", "gray-ramp", "color-bars"}

// Driver is the process-wide testbackend state: one virtual device, a
// set of open handles. Safe for concurrent use.
type Driver struct {
	mu      sync.Mutex
	handles map[backend.Handle]*openDevice
	next    backend.Handle
	auth    backend.AuthCallback
}

// New constructs an un-Init'd testbackend Driver.
func New() *Driver {
	return &Driver{handles: make(map[backend.Handle]*openDevice)}
}

type openDevice struct {
	backend.HandleState

	resolution int32  // DPI, option 1
	pattern    string // option 2

	pos int // read cursor into the current frame's synthetic bytes
}

func (d *Driver) Init(_ context.Context, auth backend.AuthCallback) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.auth = auth
	return 1<<24 | 0<<16 | 0, nil // major=1, minor=0, build=0 packed like SANE_VERSION_CODE
}

func (d *Driver) Exit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handles = make(map[backend.Handle]*openDevice)
}

func (d *Driver) GetDevices(_ context.Context, _ bool) ([]*wire.Device, error) {
	return []*wire.Device{{
		Name:   deviceName,
		Vendor: "SaneNet",
		Model:  "Virtual Test Scanner",
		Type:   "virtual",
	}}, nil
}

func (d *Driver) Open(_ context.Context, name string) (backend.Handle, error) {
	if name != "" && name != deviceName {
		return 0, sanerr.Inval
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.next
	d.next++
	d.handles[h] = &openDevice{resolution: 150, pattern: "gray-ramp"}
	return h, nil
}

func (d *Driver) Close(h backend.Handle) {
	d.mu.Lock()
	dev, ok := d.handles[h]
	delete(d.handles, h)
	d.mu.Unlock()
	if ok {
		dev.Cancel()
	}
}

func (d *Driver) get(h backend.Handle) (*openDevice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.handles[h]
	if !ok {
		return nil, sanerr.Inval
	}
	return dev, nil
}

func (d *Driver) GetOptionDescriptor(h backend.Handle, i int32) *wire.OptionDescriptor {
	if _, err := d.get(h); err != nil {
		return nil
	}
	switch i {
	case optCount:
		return &wire.OptionDescriptor{
			Title: "Number of options",
			Type:  wire.TypeInt,
			Size:  4,
			Cap:   wire.CapSoftDetect,
		}
	case optResolution:
		return &wire.OptionDescriptor{
			Name:       wire.NullableString{Value: "resolution"},
			Title:      "Scan resolution",
			Description: "Resolution in dots per inch",
			Type:       wire.TypeInt,
			Unit:       wire.UnitDPI,
			Size:       4,
			Cap:        wire.CapSoftSelect | wire.CapSoftDetect,
			Constraint: wire.Constraint{Type: wire.ConstraintRange, Range: &wire.Range{Min: 50, Max: 1200, Quant: 1}},
		}
	case optPattern:
		return &wire.OptionDescriptor{
			Name:        wire.NullableString{Value: "test-picture"},
			Title:       "Test picture",
			Description: "Synthetic image pattern to generate",
			Type:        wire.TypeString,
			Unit:        wire.UnitNone,
			Size:        32,
			Cap:         wire.CapSoftSelect | wire.CapSoftDetect,
			Constraint:  wire.Constraint{Type: wire.ConstraintStringList, StringList: patterns},
		}
	default:
		return nil
	}
}

func (d *Driver) ControlOption(_ context.Context, h backend.Handle, i int32, action wire.Action, value *wire.OptionValue) (int32, wire.OptionValue, error) {
	dev, err := d.get(h)
	if err != nil {
		return 0, wire.OptionValue{}, err
	}

	switch i {
	case optCount:
		if action != wire.ActionGet {
			return 0, wire.OptionValue{}, sanerr.Inval
		}
		return 0, wire.OptionValue{Type: wire.TypeInt, Word: numOptions}, nil

	case optResolution:
		switch action {
		case wire.ActionGet:
			return 0, wire.OptionValue{Type: wire.TypeInt, Word: dev.resolution}, nil
		case wire.ActionSet:
			if err := dev.RequireIdle(); err != nil {
				return 0, wire.OptionValue{}, err
			}
			if value == nil {
				return 0, wire.OptionValue{}, sanerr.Inval
			}
			dev.resolution = clamp(value.Word, 50, 1200)
			info := int32(wire.InfoReloadParams)
			if value.Word != dev.resolution {
				info |= wire.InfoInexact
			}
			return info, wire.OptionValue{Type: wire.TypeInt, Word: dev.resolution}, nil
		case wire.ActionSetAuto:
			if err := dev.RequireIdle(); err != nil {
				return 0, wire.OptionValue{}, err
			}
			dev.resolution = 150
			return wire.InfoReloadParams, wire.OptionValue{Type: wire.TypeInt, Word: dev.resolution}, nil
		}

	case optPattern:
		switch action {
		case wire.ActionGet:
			return 0, wire.OptionValue{Type: wire.TypeString, Str: dev.pattern}, nil
		case wire.ActionSet:
			if err := dev.RequireIdle(); err != nil {
				return 0, wire.OptionValue{}, err
			}
			if value == nil || !validPattern(value.Str) {
				return 0, wire.OptionValue{}, sanerr.Inval
			}
			dev.pattern = value.Str
			return wire.InfoReloadParams, wire.OptionValue{Type: wire.TypeString, Str: dev.pattern}, nil
		case wire.ActionSetAuto:
			if err := dev.RequireIdle(); err != nil {
				return 0, wire.OptionValue{}, err
			}
			dev.pattern = "gray-ramp"
			return wire.InfoReloadParams, wire.OptionValue{Type: wire.TypeString, Str: dev.pattern}, nil
		}
	}
	return 0, wire.OptionValue{}, sanerr.Inval
}

func (d *Driver) GetParameters(h backend.Handle) (wire.Parameters, error) {
	dev, err := d.get(h)
	if err != nil {
		return wire.Parameters{}, err
	}
	pixelsPerLine := dev.resolution * 8
	lines := dev.resolution * 11 // 8x11in page
	return wire.Parameters{
		Format:        wire.FrameGray,
		LastFrame:     true,
		BytesPerLine:  pixelsPerLine,
		PixelsPerLine: pixelsPerLine,
		Lines:         lines,
		Depth:         8,
	}, nil
}

func (d *Driver) Start(_ context.Context, h backend.Handle) error {
	dev, err := d.get(h)
	if err != nil {
		return err
	}
	if err := dev.Start(); err != nil {
		return err
	}
	dev.pos = 0
	return nil
}

func (d *Driver) Read(h backend.Handle, buf []byte) (int, error) {
	dev, err := d.get(h)
	if err != nil {
		return 0, err
	}
	if dev.IsCancelling() {
		dev.Finish()
		return 0, sanerr.Cancelled
	}

	params, err := d.GetParameters(h)
	if err != nil {
		return 0, err
	}
	total := int(params.BytesPerLine) * int(params.Lines)
	if dev.pos >= total {
		dev.Finish()
		return 0, sanerr.EOF
	}

	n := len(buf)
	if remaining := total - dev.pos; n > remaining {
		n = remaining
	}
	for i := 0; i < n; i++ {
		buf[i] = syntheticByte(dev.pattern, dev.pos+i, int(params.BytesPerLine))
	}
	dev.pos += n
	return n, nil
}

func (d *Driver) Cancel(h backend.Handle) {
	if dev, err := d.get(h); err == nil {
		dev.Cancel()
	}
}

func (d *Driver) SetIOMode(h backend.Handle, _ bool) error {
	if _, err := d.get(h); err != nil {
		return err
	}
	return sanerr.Unsupported
}

func (d *Driver) GetSelectFD(h backend.Handle) (int, error) {
	if _, err := d.get(h); err != nil {
		return 0, err
	}
	return 0, sanerr.Unsupported
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func validPattern(s string) bool {
	for _, p := range patterns {
		if p == s {
			return true
		}
	}
	return false
}

// syntheticByte generates deterministic pixel data for pos (a byte offset
// into the image) without allocating a full frame buffer.
func syntheticByte(pattern string, pos, bytesPerLine int) byte {
	switch pattern {
	case "solid-black":
		return 0x00
	case "solid-white":
		return 0xFF
	case "color-bars":
		return byte((pos / 8) % 256)
	default: // gray-ramp
		if bytesPerLine == 0 {
			return 0
		}
		col := pos % bytesPerLine
		return byte((col * 255) / bytesPerLine)
	}
}

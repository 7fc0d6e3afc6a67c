package backend

import (
	"sync"

	"github.com/saneproj/sane-net/internal/sanerr"
)

// scanState is the per-handle driver-side state machine (spec §4.2):
//
//	closed --open--> idle --start--> scanning --read* (EOF|CANCELLED)--> idle
//
// close is valid from idle or scanning (it cancels first); control_option
// with ActionSet/ActionSetAuto is forbidden while scanning.
type scanState int32

const (
	stateIdle scanState = iota
	stateScanning
	stateCancelling
)

// HandleState tracks one open handle's scan state so drivers don't each
// reimplement the same mutex-guarded transitions. Embed it in a driver's
// per-handle record.
type HandleState struct {
	mu    sync.Mutex
	state scanState
}

// Start transitions idle -> scanning. Returns sanerr.DeviceBusy if the
// handle is already scanning.
func (s *HandleState) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateIdle {
		return sanerr.DeviceBusy
	}
	s.state = stateScanning
	return nil
}

// Cancel marks the handle for cancellation. It is a no-op if the handle
// is already idle.
func (s *HandleState) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateScanning {
		s.state = stateCancelling
	}
}

// Finish transitions scanning (or cancelling) back to idle, called once
// the driver has delivered EOF or CANCELLED from Read.
func (s *HandleState) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateIdle
}

// IsCancelling reports whether Cancel was called since the last Start.
func (s *HandleState) IsCancelling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateCancelling
}

// IsScanning reports whether the handle is mid-scan, for rejecting
// control_option(set) calls per spec §4.2.
func (s *HandleState) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateScanning || s.state == stateCancelling
}

// RequireIdle returns sanerr.Inval if the handle is not idle, for guarding
// control_option writes while a scan is active.
func (s *HandleState) RequireIdle() error {
	if s.IsScanning() {
		return sanerr.Inval
	}
	return nil
}

package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a fresh, un-Init'd Backend instance. Drivers register
// a Factory under their configuration name (e.g. "test", "net") the same
// way the net backend's dispatch mirrors a protocol name to an Adapter.
type Factory func() Backend

var (
	mu      sync.RWMutex
	drivers = map[string]Factory{}
)

// Register adds a driver factory under name. Called from a driver
// package's init(), or explicitly by a CLI wiring up the drivers it
// wants. Panics on duplicate registration, matching the standard
// library's database/sql.Register behavior for programmer errors.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := drivers[name]; exists {
		panic(fmt.Sprintf("backend: Register called twice for driver %q", name))
	}
	drivers[name] = f
}

// New constructs a fresh Backend for name. The returned Backend has not
// been Init'd yet; the caller must call Init before any other method.
func New(name string) (Backend, error) {
	mu.RLock()
	f, ok := drivers[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("backend: unknown driver %q", name)
	}
	return f(), nil
}

// Drivers returns the sorted list of registered driver names, for
// configuration validation and CLI listing.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package device

import (
	"fmt"
	"sort"
	"sync"
)

// Driver describes one renderer backend. PrepareWindowAttributes returns
// the window flags the backend needs (e.g. sdl.WINDOW_VULKAN) and loads
// any native libraries; CreateDevice builds the device itself.
type Driver struct {
	Name                    string
	PrepareWindowAttributes func() (windowFlags uint32, err error)
	CreateDevice            func(params PresentationParameters, debug bool) (Device, error)
}

var (
	driverMu sync.Mutex
	drivers  = map[string]Driver{}
)

// Register makes a driver available by name. Backends call this from
// an init function.
func Register(d Driver) {
	driverMu.Lock()
	defer driverMu.Unlock()
	drivers[d.Name] = d
}

// Lookup returns the registered driver with the given name.
func Lookup(name string) (Driver, error) {
	driverMu.Lock()
	defer driverMu.Unlock()
	if d, ok := drivers[name]; ok {
		return d, nil
	}
	return Driver{}, fmt.Errorf("device: no driver registered with name %q", name)
}

// Drivers lists the names of all registered drivers.
func Drivers() []string {
	driverMu.Lock()
	defer driverMu.Unlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package subsystem defines the contract every spawnable hardware/UI unit
// must satisfy, and the registry both sides of the process boundary use to
// resolve one.
//
// A subsystem is run in its own OS process. Its single entry point receives
// a proxy to the shared event service, a logger, the shared shutdown flags,
// and its spawn-time arguments; it is expected to run its own blocking loop
// until the flags tell it to stop.
package subsystem

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sketchbooth/sketchbooth/internal/coord"
	"github.com/sketchbooth/sketchbooth/internal/eventsvc"
)

// Subsystem is the sole extension point for new hardware or UI units.
type Subsystem interface {
	// Name identifies the subsystem; it doubles as the child-process
	// dispatch key, so it must be unique and stable.
	Name() string

	// HookUp runs the subsystem's loop. It returns only once the shared
	// exit/halt flags are observed or on unrecoverable error. There is no
	// other return-value contract.
	HookUp(ctx context.Context, svc eventsvc.Invoker, logger *slog.Logger,
		flags coord.Flags, args []string) error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Subsystem)
)

// Register adds a subsystem to the process-wide registry. Registering two
// subsystems under one name is a programming error.
func Register(sub Subsystem) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := sub.Name()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("subsystem: duplicate registration of %q", name))
	}
	registry[name] = sub
}

// Lookup resolves a registered subsystem by name.
func Lookup(name string) (Subsystem, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	sub, ok := registry[name]
	return sub, ok
}

// Names returns the registered subsystem names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resetForTest clears the registry between tests.
func resetForTest() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Subsystem)
}

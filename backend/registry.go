// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/ggatlas/gpucore"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for Default (first available wins).
	priority = []string{Native, Software}
)

// Register registers a device factory under name, replacing any previous
// factory with the same name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

// Unregister removes a factory. This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open creates a device from the named backend.
func Open(name string) (gpucore.Device, error) {
	registryMu.RLock()
	f, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	return f()
}

// Default opens the highest-priority backend that succeeds.
func Default() (gpucore.Device, error) {
	var lastErr error = ErrBackendNotAvailable
	for _, name := range priority {
		dev, err := Open(name)
		if err == nil {
			return dev, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

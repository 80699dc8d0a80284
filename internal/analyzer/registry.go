package analyzer

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Detector for the given luminance threshold.
type Factory func(threshold uint8) (Detector, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{
		"threshold": func(threshold uint8) (Detector, error) {
			return NewThresholdDetector(threshold), nil
		},
	}
)

// Register makes a detector backend available to NewDetector. Backends that
// need cgo register themselves from build-tagged files.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// NewDetector creates a detector based on the specified backend
func NewDetector(backend string, threshold uint8) (Detector, error) {
	if backend == "" {
		backend = "threshold"
	}
	mu.RLock()
	f, ok := factories[backend]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown detector backend %q (available: %v)", backend, Backends())
	}
	return f(threshold)
}

// Backends lists registered backend names.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

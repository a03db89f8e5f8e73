package gpx

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Parser)
	registryMu sync.RWMutex
)

func init() {
	Register(NewGPX10Parser())
	Register(NewGPX11Parser())
	Register(NewLOCParser())
}

// Register adds a parser to the registry.
// Panics if a parser for the same format is already registered.
func Register(p Parser) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[p.Format()]; exists {
		panic(fmt.Sprintf("parser already registered: %s", p.Format()))
	}
	registry[p.Format()] = p
}

// Get returns the parser for a format.
// Returns false if not found.
func Get(format string) (Parser, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := registry[format]
	return p, ok
}

// MustGet returns the parser for a format and panics if it is missing.
func MustGet(format string) Parser {
	p, ok := Get(format)
	if !ok {
		panic(fmt.Sprintf("no parser registered for %s", format))
	}
	return p
}

// Formats returns all registered format names, sorted.
func Formats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	formats := make([]string, 0, len(registry))
	for f := range registry {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// Package output renders comparison results in the formats offered by the
// CLI and the export endpoint (pretty, plain, json, yaml, csv).
//
// Formatters are looked up by name from a registry:
//
//	formatter, err := output.Get("csv")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
)

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes r to the buffer.
	Format(w *bytes.Buffer, r *diff.Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry, replacing any
// formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// exports maps downloadable formats to their media types.
var exports = map[string]string{
	"json": "application/json",
	"yaml": "application/yaml",
	"csv":  "text/csv",
}

// ExportFormats returns the formats offered as downloads, sorted.
func ExportFormats() []string {
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContentType returns the media type of an export format.
func ContentType(format string) (string, bool) {
	ct, ok := exports[format]
	return ct, ok
}

// ExportFilename is the attachment name for a comparison download.
func ExportFilename(r *diff.Result, format string) string {
	return fmt.Sprintf("comparison_%s_%s.%s", r.Project1, r.Project2, format)
}

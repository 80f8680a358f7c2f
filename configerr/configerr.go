// Package configerr collects configuration problems found at runtime so
// they can be listed later, for example by the config-errors command.
package configerr

import "sync"

// Error is one reported configuration problem.
type Error struct {
	Name    string `json:"name" yaml:"name"`
	Message string `json:"message" yaml:"message"`
}

// Registry is an append-only list of configuration errors. The zero
// value is empty and ready to use.
type Registry struct {
	mu     sync.Mutex
	errors []Error
}

// Report appends an error.
func (r *Registry) Report(name, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, Error{Name: name, Message: message})
}

// List returns a copy of all reported errors in report order.
func (r *Registry) List() []Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Error, len(r.errors))
	copy(out, r.errors)
	return out
}

// Reset removes all errors.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = nil
}

// Default is the process-wide registry.
var Default = &Registry{}

// Report appends an error to Default.
func Report(name, message string) {
	Default.Report(name, message)
}

// List returns the errors in Default.
func List() []Error {
	return Default.List()
}

// Package testutil provides testing utilities for phone plugins: a
// recording plugin helper and a fake gpio-switch tree.
package testutil

import (
	"sync"

	"phoned/pkg/event"
)

// Helper is a plugin.Helper that records everything a plugin reports.
// It is safe for use from the goroutines a plugin starts.
type Helper struct {
	mu        sync.Mutex
	config    map[string]string
	errors    []error
	triggered []*event.Event
}

// NewHelper creates a Helper answering Config from the given options.
func NewHelper(config map[string]string) *Helper {
	if config == nil {
		config = make(map[string]string)
	}
	return &Helper{config: config}
}

// Config implements plugin.Helper
func (h *Helper) Config(key string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.config[key]
}

// Error implements plugin.Helper
func (h *Helper) Error(err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, err)
	return err
}

// Trigger implements plugin.Helper
func (h *Helper) Trigger(ev *event.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.triggered = append(h.triggered, ev)
}

// Errors returns the errors reported so far.
func (h *Helper) Errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]error, len(h.errors))
	copy(out, h.errors)
	return out
}

// Triggered returns the events queued so far.
func (h *Helper) Triggered() []*event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*event.Event, len(h.triggered))
	copy(out, h.triggered)
	return out
}

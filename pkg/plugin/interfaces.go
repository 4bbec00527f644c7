// Package plugin provides the plugin interfaces and registry for the phone
// host. Plugins register themselves with the global registry from init()
// functions, so the set of available plugins is selected at compile time
// by importing plugin packages.
//
// The host owns every plugin instance: it creates it through the
// registered Factory (the plugin's init entry point), delivers events or
// requests one at a time, and calls Destroy exactly once on unload.
package plugin

import (
	"context"

	"phoned/pkg/event"
	"phoned/pkg/modem"
)

// Kind distinguishes the two plugin families the host knows about.
type Kind int

const (
	// KindPhone plugins receive host events.
	KindPhone Kind = iota
	// KindModem plugins are started and stopped and receive modem requests.
	KindModem
)

func (k Kind) String() string {
	if k == KindModem {
		return "modem"
	}
	return "phone"
}

// Plugin is the part of the interface shared by every plugin.
type Plugin interface {
	// Name returns the unique identifier for this plugin.
	Name() string

	// Destroy releases the instance. The host calls it exactly once, after
	// the last event or request, and never uses the instance again.
	Destroy()
}

// PhonePlugin is implemented by plugins that react to host events.
type PhonePlugin interface {
	Plugin

	// Event handles a single event. Events the plugin does not care about
	// must be ignored and reported as success. The event must not be
	// retained after the call returns.
	Event(ctx context.Context, ev *event.Event) error
}

// ModemPlugin is implemented by modem backends.
type ModemPlugin interface {
	Plugin

	// Start brings the modem backend up.
	Start() error

	// Stop shuts the modem backend down. Stop on a stopped backend is a no-op.
	Stop() error

	// Request handles a single modem request. Unsupported requests must be
	// ignored and reported as success.
	Request(ctx context.Context, req *modem.Request) error
}

// Configurable is an optional interface for plugins that expose a settings
// action to the user.
type Configurable interface {
	Settings() error
}

// StatusProvider is an optional interface for plugins that expose their
// current state for observability.
type StatusProvider interface {
	Status() map[string]interface{}
}

// Helper is the host-provided callback table handed to each plugin. A
// Helper is scoped to one plugin instance.
type Helper interface {
	// Config returns the plugin's configuration value for key, or "" when
	// the option is unset.
	Config(key string) string

	// Error reports err to the host and returns it unchanged so plugins can
	// write `return helper.Error(err)`.
	Error(err error) error

	// Trigger queues an event for delivery by the host. It never delivers
	// synchronously.
	Trigger(ev *event.Event)
}

// Factory creates a new plugin instance. Returning an error means no
// instance was created and nothing has to be destroyed.
type Factory func(ctx *Context) (Plugin, error)

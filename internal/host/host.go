// Package host loads plugins from a registry and drives them. Every call
// into a plugin instance is made with the host lock held, so a plugin
// never sees two calls at once. Instances are created in registry order
// and destroyed in reverse order, each exactly once.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"phoned/internal/clock"
	"phoned/pkg/event"
	"phoned/pkg/modem"
	"phoned/pkg/plugin"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrNotLoaded is returned when plugins are used before Load or after Unload.
	ErrNotLoaded = errors.New("plugins are not loaded")

	// ErrUnknownPlugin is returned for plugin names that are not loaded or registered.
	ErrUnknownPlugin = errors.New("unknown plugin")
)

const (
	defaultErrorHistory = 100
	triggerQueueSize    = 64
)

// Config holds the host settings.
type Config struct {
	// Options holds each plugin's configuration, keyed by plugin name.
	Options map[string]map[string]string

	// ConfigDir is handed to plugins for resolving relative paths.
	ConfigDir string

	// ErrorHistory bounds how many reported errors are remembered.
	ErrorHistory int
}

// ReportedError is an error a plugin reported through its helper.
type ReportedError struct {
	Plugin  string    `json:"plugin"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// PluginStatus describes a loaded plugin.
type PluginStatus struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Icon        string                 `json:"icon"`
	Kind        string                 `json:"kind"`
	Options     []plugin.ConfigOption  `json:"options,omitempty"`
	Status      map[string]interface{} `json:"status,omitempty"`
}

type instance struct {
	info   plugin.PluginInfo
	plugin plugin.Plugin
}

// Host owns the loaded plugin instances.
type Host struct {
	registry *plugin.Registry
	config   Config
	logger   *zap.Logger
	clock    clock.Clock
	fs       afero.Fs

	// mu serializes every call into plugin instances
	mu        sync.Mutex
	instances []*instance
	loaded    bool

	errMu  sync.Mutex
	errors []ReportedError

	// trigMu guards triggers; plugins trigger while the host lock is held
	trigMu   sync.RWMutex
	triggers chan *event.Event
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a host drawing plugins from registry.
func New(registry *plugin.Registry, config Config, logger *zap.Logger, clk clock.Clock, fs afero.Fs) *Host {
	if config.ErrorHistory <= 0 {
		config.ErrorHistory = defaultErrorHistory
	}
	if config.Options == nil {
		config.Options = make(map[string]map[string]string)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Host{
		registry: registry,
		config:   config,
		logger:   logger.Named("host"),
		clock:    clk,
		fs:       fs,
	}
}

// Load creates the named plugins, or every registered plugin when names is
// empty, in registry order. Modem plugins are started after creation. If
// any plugin fails, the ones already created are destroyed and nothing
// stays loaded.
func (h *Host) Load(names ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.loaded {
		return fmt.Errorf("plugins are already loaded")
	}

	infos, err := h.selectPlugins(names)
	if err != nil {
		return err
	}

	created := make([]*instance, 0, len(infos))
	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			created[i].plugin.Destroy()
		}
	}

	for _, info := range infos {
		helper := &pluginHelper{
			host:    h,
			name:    info.Name,
			options: copyOptions(h.config.Options[info.Name]),
		}
		ctx := plugin.NewContext(helper, h.logger.Named(info.Name), h.clock, h.fs, h.config.ConfigDir)

		p, err := h.registry.Create(info.Name, ctx)
		if err != nil {
			rollback()
			return err
		}
		created = append(created, &instance{info: info, plugin: p})

		if m, ok := p.(plugin.ModemPlugin); ok {
			if err := m.Start(); err != nil {
				rollback()
				return fmt.Errorf("failed to start modem plugin %s: %w", info.Name, err)
			}
		}

		h.logger.Info("Plugin loaded",
			zap.String("plugin", info.Name),
			zap.Stringer("kind", info.Kind))
	}

	h.instances = created
	h.loaded = true

	triggers := make(chan *event.Event, triggerQueueSize)
	h.stop = make(chan struct{})
	h.trigMu.Lock()
	h.triggers = triggers
	h.trigMu.Unlock()

	h.wg.Add(1)
	go h.runTriggers(triggers, h.stop)

	return nil
}

func (h *Host) selectPlugins(names []string) ([]plugin.PluginInfo, error) {
	all := h.registry.List()
	if len(names) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if h.registry.Get(name) == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
		}
		wanted[name] = true
	}

	selected := make([]plugin.PluginInfo, 0, len(names))
	for _, info := range all {
		if wanted[info.Name] {
			selected = append(selected, info)
		}
	}
	return selected, nil
}

func copyOptions(options map[string]string) map[string]string {
	out := make(map[string]string, len(options))
	for k, v := range options {
		out[k] = v
	}
	return out
}

// Dispatch delivers ev to every phone plugin in load order. A plugin
// failing does not keep the event from the others; all failures are
// returned together.
func (h *Host) Dispatch(ctx context.Context, ev *event.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.loaded {
		return ErrNotLoaded
	}

	h.logger.Debug("Dispatching event", zap.Stringer("type", ev.Type))

	var errs error
	for _, inst := range h.instances {
		p, ok := inst.plugin.(plugin.PhonePlugin)
		if !ok {
			continue
		}
		if err := p.Event(ctx, ev); err != nil {
			h.logger.Warn("Plugin failed to handle event",
				zap.String("plugin", inst.info.Name),
				zap.Stringer("type", ev.Type),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", inst.info.Name, err))
		}
	}
	return errs
}

// Request delivers req to every modem plugin in load order.
func (h *Host) Request(ctx context.Context, req *modem.Request) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.loaded {
		return ErrNotLoaded
	}

	h.logger.Debug("Dispatching modem request", zap.Stringer("request", req.Type))

	var errs error
	for _, inst := range h.instances {
		m, ok := inst.plugin.(plugin.ModemPlugin)
		if !ok {
			continue
		}
		if err := m.Request(ctx, req); err != nil {
			h.logger.Warn("Modem plugin failed to handle request",
				zap.String("plugin", inst.info.Name),
				zap.Stringer("request", req.Type),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", inst.info.Name, err))
		}
	}
	return errs
}

// Settings runs the settings action of the named plugin. Plugins without
// one succeed without doing anything.
func (h *Host) Settings(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.loaded {
		return ErrNotLoaded
	}

	inst := h.findLocked(name)
	if inst == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}

	if c, ok := inst.plugin.(plugin.Configurable); ok {
		return c.Settings()
	}
	return nil
}

// Plugin returns the loaded instance with the given name. Callers must
// only use parts of the instance that are safe for concurrent use.
func (h *Host) Plugin(name string) (plugin.Plugin, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	inst := h.findLocked(name)
	if inst == nil {
		return nil, false
	}
	return inst.plugin, true
}

func (h *Host) findLocked(name string) *instance {
	for _, inst := range h.instances {
		if inst.info.Name == name {
			return inst
		}
	}
	return nil
}

// Plugins describes the loaded plugins in load order.
func (h *Host) Plugins() []PluginStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]PluginStatus, 0, len(h.instances))
	for _, inst := range h.instances {
		ps := PluginStatus{
			Name:        inst.info.Name,
			Description: inst.info.Description,
			Icon:        inst.info.Icon,
			Kind:        inst.info.Kind.String(),
			Options:     inst.info.Options,
		}
		if sp, ok := inst.plugin.(plugin.StatusProvider); ok {
			ps.Status = sp.Status()
		}
		out = append(out, ps)
	}
	return out
}

// Errors returns the errors plugins reported, oldest first.
func (h *Host) Errors() []ReportedError {
	h.errMu.Lock()
	defer h.errMu.Unlock()

	out := make([]ReportedError, len(h.errors))
	copy(out, h.errors)
	return out
}

// Loaded reports whether plugins are loaded.
func (h *Host) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// Unload destroys every instance in reverse load order. Calling it again,
// or before Load, does nothing.
func (h *Host) Unload() {
	h.mu.Lock()
	if !h.loaded || h.stop == nil {
		h.mu.Unlock()
		return
	}
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()

	h.trigMu.Lock()
	h.triggers = nil
	h.trigMu.Unlock()

	// The trigger loop takes the host lock to dispatch, so stop it first
	close(stop)
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.instances) - 1; i >= 0; i-- {
		inst := h.instances[i]
		inst.plugin.Destroy()
		h.logger.Info("Plugin unloaded", zap.String("plugin", inst.info.Name))
	}
	h.instances = nil
	h.loaded = false
}

func (h *Host) runTriggers(triggers <-chan *event.Event, stop <-chan struct{}) {
	defer h.wg.Done()

	for {
		select {
		case <-stop:
			return
		case ev := <-triggers:
			if err := h.Dispatch(context.Background(), ev); err != nil && !errors.Is(err, ErrNotLoaded) {
				h.logger.Warn("Triggered event failed", zap.Stringer("type", ev.Type), zap.Error(err))
			}
		}
	}
}

func (h *Host) reportError(name string, err error) {
	h.errMu.Lock()
	h.errors = append(h.errors, ReportedError{
		Plugin:  name,
		Message: err.Error(),
		Time:    h.clock.Now(),
	})
	if over := len(h.errors) - h.config.ErrorHistory; over > 0 {
		h.errors = append([]ReportedError(nil), h.errors[over:]...)
	}
	h.errMu.Unlock()

	h.logger.Error("Plugin reported an error", zap.String("plugin", name), zap.Error(err))
}

func (h *Host) trigger(name string, ev *event.Event) {
	h.trigMu.RLock()
	defer h.trigMu.RUnlock()

	if h.triggers == nil {
		return
	}

	select {
	case h.triggers <- ev:
	default:
		h.logger.Warn("Trigger queue full, dropping event",
			zap.String("plugin", name),
			zap.Stringer("type", ev.Type))
	}
}

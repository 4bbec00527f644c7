package plugin

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Priority constants for plugin registration.
// Higher priority values override lower priority plugins with the same name.
const (
	// PriorityDefault is the default priority for plugins.
	PriorityDefault = 0

	// PriorityOverride lets a downstream build replace a bundled plugin
	// with its own implementation under the same name.
	PriorityOverride = 100
)

// DefaultOrder is the load order assigned when PluginInfo.Order is zero.
const DefaultOrder = 50

// OptionType describes how a configuration option should be presented.
type OptionType string

const (
	OptionString  OptionType = "string"
	OptionBoolean OptionType = "boolean"
	OptionPath    OptionType = "path"
)

// ConfigOption is one entry of a plugin's static configuration table.
type ConfigOption struct {
	Name  string     `json:"name"`
	Title string     `json:"title"`
	Type  OptionType `json:"type"`
}

// PluginInfo contains metadata about a registered plugin.
type PluginInfo struct {
	// Name is the unique identifier for the plugin.
	// Plugins with the same name will override based on priority.
	Name string

	// Description is a human-readable description of the plugin.
	Description string

	// Icon is the icon name a user interface shows for the plugin.
	Icon string

	// Kind says which interface instances created by Factory implement.
	Kind Kind

	// Options lists the configuration keys the plugin reads through
	// Helper.Config.
	Options []ConfigOption

	// Priority determines which plugin wins when multiple plugins
	// register with the same name. Higher priority wins.
	Priority int

	// Factory creates new instances of the plugin.
	Factory Factory

	// Order specifies the load order. Lower values load first and are
	// destroyed last.
	Order int
}

// Registry manages plugin registration and instantiation.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]PluginInfo
	order   []string
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]PluginInfo),
		order:   make([]string, 0),
	}
}

// Register adds a plugin to the registry.
// If a plugin with the same name already exists, the one with higher
// priority wins. If priorities are equal, the later registration wins.
func (r *Registry) Register(info PluginInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}

	if info.Factory == nil {
		return fmt.Errorf("plugin %s: factory cannot be nil", info.Name)
	}

	if info.Order == 0 {
		info.Order = DefaultOrder
	}

	logger := zap.L().Named("registry")

	existing, exists := r.plugins[info.Name]
	if exists {
		if info.Priority < existing.Priority {
			logger.Debug("Plugin registration skipped",
				zap.String("plugin", info.Name),
				zap.Int("priority", info.Priority),
				zap.Int("existing_priority", existing.Priority))
			return nil
		}

		logger.Debug("Plugin being overridden",
			zap.String("plugin", info.Name),
			zap.Int("old_priority", existing.Priority),
			zap.Int("new_priority", info.Priority))
	}

	r.plugins[info.Name] = info

	if !exists {
		r.order = append(r.order, info.Name)
	}

	logger.Debug("Plugin registered",
		zap.String("plugin", info.Name),
		zap.Stringer("kind", info.Kind),
		zap.Int("priority", info.Priority),
		zap.Int("order", info.Order))

	return nil
}

// Get returns the plugin info for a given name, or nil if not found.
func (r *Registry) Get(name string) *PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.plugins[name]
	if !ok {
		return nil
	}
	return &info
}

// List returns all registered plugins sorted by their load order.
func (r *Registry) List() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]PluginInfo, 0, len(r.plugins))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}

	// Sort by order (lower first), then by name for stability
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// Create instantiates the named plugin and checks that the instance
// implements the interface its Kind promises. On a kind mismatch the
// instance is destroyed before the error is returned.
func (r *Registry) Create(name string, ctx *Context) (Plugin, error) {
	info := r.Get(name)
	if info == nil {
		return nil, fmt.Errorf("plugin %s is not registered", name)
	}

	p, err := info.Factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin %s: %w", name, err)
	}
	if p == nil {
		return nil, fmt.Errorf("failed to create plugin %s: factory returned no instance", name)
	}

	var ok bool
	switch info.Kind {
	case KindModem:
		_, ok = p.(ModemPlugin)
	default:
		_, ok = p.(PhonePlugin)
	}
	if !ok {
		p.Destroy()
		return nil, fmt.Errorf("plugin %s does not implement the %s plugin interface", name, info.Kind)
	}

	return p, nil
}

// Names returns the names of all registered plugins in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// Clear removes all registered plugins. Useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = make(map[string]PluginInfo)
	r.order = make([]string, 0)
}

// Global registry instance
var globalRegistry = NewRegistry()

// Global returns the registry plugin packages register into.
func Global() *Registry {
	return globalRegistry
}

// Register adds a plugin to the global registry.
// This is typically called from init() functions in plugin packages.
func Register(info PluginInfo) error {
	return globalRegistry.Register(info)
}

// Get returns plugin info from the global registry.
func Get(name string) *PluginInfo {
	return globalRegistry.Get(name)
}

// List returns all plugins from the global registry.
func List() []PluginInfo {
	return globalRegistry.List()
}

// Names returns all plugin names from the global registry.
func Names() []string {
	return globalRegistry.Names()
}

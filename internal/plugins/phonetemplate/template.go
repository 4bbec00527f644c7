// Package phonetemplate is the starting point for new phone plugins. It
// implements the phone plugin interface and ignores every event.
package phonetemplate

import (
	"context"

	"phoned/pkg/event"
	"phoned/pkg/plugin"

	"go.uber.org/zap"
)

// Name is the registry name of the template.
const Name = "phone-template"

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        Name,
		Description: "Phone plugin template",
		Icon:        "gnome-settings",
		Kind:        plugin.KindPhone,
		Priority:    plugin.PriorityDefault,
		Factory:     createPlugin,
	})
}

func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	return New(ctx.Helper, ctx.Logger), nil
}

// Template is an inert phone plugin.
type Template struct {
	helper plugin.Helper
	logger *zap.Logger
}

// New creates a zeroed template instance.
func New(helper plugin.Helper, logger *zap.Logger) *Template {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Template{helper: helper, logger: logger}
}

// Name implements plugin.Plugin
func (t *Template) Name() string {
	return Name
}

// Event implements plugin.PhonePlugin
func (t *Template) Event(ctx context.Context, ev *event.Event) error {
	// TODO: handle event.Notification once a concrete plugin is derived from this template
	t.logger.Debug("Ignoring event", zap.Stringer("type", ev.Type))
	return nil
}

// Destroy implements plugin.Plugin
func (t *Template) Destroy() {
	t.helper = nil
}

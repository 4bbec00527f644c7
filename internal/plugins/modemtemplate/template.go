// Package modemtemplate is the starting point for new modem backends. It
// implements the modem plugin interface and does nothing: every request
// is acknowledged with success.
package modemtemplate

import (
	"context"

	"phoned/pkg/modem"
	"phoned/pkg/plugin"

	"go.uber.org/zap"
)

// Name is the registry name of the template.
const Name = "modem-template"

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        Name,
		Description: "Modem plugin template",
		Icon:        "phone",
		Kind:        plugin.KindModem,
		Priority:    plugin.PriorityDefault,
		Order:       10,
		Factory:     createPlugin,
	})
}

func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	return New(ctx.Helper, ctx.Logger), nil
}

// Template is an inert modem backend.
type Template struct {
	helper  plugin.Helper
	logger  *zap.Logger
	started bool
}

// New creates a zeroed template instance.
func New(helper plugin.Helper, logger *zap.Logger) *Template {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Template{
		helper: helper,
		logger: logger,
	}
}

// Name implements plugin.Plugin
func (t *Template) Name() string {
	return Name
}

// Start implements plugin.ModemPlugin
func (t *Template) Start() error {
	// TODO: open the modem device once a real backend is derived from this template
	t.started = true
	t.logger.Debug("Modem template started")
	return nil
}

// Stop implements plugin.ModemPlugin
func (t *Template) Stop() error {
	if !t.started {
		return nil
	}
	t.started = false
	t.logger.Debug("Modem template stopped")
	return nil
}

// Request implements plugin.ModemPlugin. Every request is a no-op.
func (t *Template) Request(ctx context.Context, req *modem.Request) error {
	switch req.Type {
	case modem.Authenticate, modem.Call, modem.CallAnswer, modem.CallHangup,
		modem.MessageSend, modem.ContactList, modem.SignalLevel:
		t.logger.Debug("Ignoring modem request", zap.Stringer("request", req.Type))
	}
	return nil
}

// Destroy implements plugin.Plugin. A started template is stopped first.
func (t *Template) Destroy() {
	_ = t.Stop()
	t.helper = nil
}

// Started reports whether Start has been called without a matching Stop.
func (t *Template) Started() bool {
	return t.started
}

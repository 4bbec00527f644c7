// Package console keeps a log of the notifications the host delivers.
// Every notification becomes a timestamped row with a severity icon; rows
// are only ever appended. The log is presented through a Window whose
// only user-facing action is to be brought to the front.
package console

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"phoned/internal/clock"
	"phoned/pkg/event"
	"phoned/pkg/plugin"

	"go.uber.org/zap"
)

// Name is the registry name of the plugin.
const Name = "console"

// OptionDatabase is the configuration key of the optional SQLite file.
const OptionDatabase = "database"

const storeTimeout = 5 * time.Second

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        Name,
		Description: "Event console",
		Icon:        "utilities-terminal",
		Kind:        plugin.KindPhone,
		Options: []plugin.ConfigOption{
			{Name: OptionDatabase, Title: "History database", Type: plugin.OptionPath},
		},
		Priority: plugin.PriorityDefault,
		Order:    20,
		Factory:  createPlugin,
	})
}

func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	clk := ctx.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}

	var store Store
	if path := ctx.Helper.Config(OptionDatabase); path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(ctx.ConfigDir, path)
		}
		db, err := OpenDB(path)
		if err != nil {
			return nil, err
		}
		store = NewSQLiteStore(db)
	}

	p := New(clk, store, ctx.Helper, ctx.Logger)
	if err := p.loadHistory(); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

// Plugin is the event console.
type Plugin struct {
	clock  clock.Clock
	store  Store
	helper plugin.Helper
	logger *zap.Logger

	log    *Log
	window *Window
}

// New creates a console. store may be nil for a memory-only console.
func New(clk clock.Clock, store Store, helper plugin.Helper, logger *zap.Logger) *Plugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plugin{
		clock:  clk,
		store:  store,
		helper: helper,
		logger: logger,
		log:    NewLog(),
		window: NewWindow(),
	}
}

func (p *Plugin) loadHistory() error {
	if p.store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	rows, err := p.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load console history: %w", err)
	}
	p.log.restore(rows)

	p.logger.Info("Console history loaded", zap.Int("rows", len(rows)))
	return nil
}

// Name implements plugin.Plugin
func (p *Plugin) Name() string {
	return Name
}

// Event implements plugin.PhonePlugin. Only notifications are handled.
func (p *Plugin) Event(ctx context.Context, ev *event.Event) error {
	if ev.Type != event.Notification || ev.Notification == nil {
		return nil
	}

	row := NewRow(ev.Notification, p.clock.Now())
	p.log.Append(row)

	p.logger.Debug("Notification logged",
		zap.String("id", row.ID),
		zap.Stringer("severity", row.Severity),
		zap.String("title", row.Title))

	if p.store != nil {
		storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		if err := p.store.Append(storeCtx, row); err != nil {
			p.logger.Error("Failed to persist console row", zap.Error(err))
			if p.helper != nil {
				p.helper.Error(err)
			}
		}
	}
	return nil
}

// Settings implements plugin.Configurable by raising the console window.
func (p *Plugin) Settings() error {
	p.window.Present()
	return nil
}

// Log returns the row log.
func (p *Plugin) Log() *Log {
	return p.log
}

// Window returns the presentation state.
func (p *Plugin) Window() *Window {
	return p.window
}

// Status implements plugin.StatusProvider
func (p *Plugin) Status() map[string]interface{} {
	return map[string]interface{}{
		"rows":      p.log.Len(),
		"visible":   p.window.Visible(),
		"persisted": p.store != nil,
	}
}

// Destroy implements plugin.Plugin
func (p *Plugin) Destroy() {
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.logger.Warn("Failed to close console store", zap.Error(err))
		}
		p.store = nil
	}
	p.helper = nil
}

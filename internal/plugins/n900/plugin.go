// Package n900 powers the cellular modem of the Nokia N900 on and off by
// driving its GPIO switches through sysfs. The modem is powered on when
// the host goes online and powered off when it goes offline.
package n900

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"phoned/internal/clock"
	"phoned/pkg/event"
	"phoned/pkg/plugin"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Name is the registry name of the plugin.
const Name = "n900"

// Configuration keys read through the host helper.
const (
	OptionSysfsRoot = "sysfs_root"
	OptionStepsFile = "steps_file"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        Name,
		Description: "Nokia N900 modem power sequencing",
		Icon:        "phone",
		Kind:        plugin.KindPhone,
		Options: []plugin.ConfigOption{
			{Name: OptionSysfsRoot, Title: "GPIO switch directory", Type: plugin.OptionPath},
			{Name: OptionStepsFile, Title: "Power sequence override", Type: plugin.OptionPath},
		},
		Priority: plugin.PriorityDefault,
		Order:    60,
		Factory:  createPlugin,
	})
}

func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	fs := ctx.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	clk := ctx.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}

	steps := DefaultSteps()
	if file := ctx.Helper.Config(OptionStepsFile); file != "" {
		if !filepath.IsAbs(file) {
			file = filepath.Join(ctx.ConfigDir, file)
		}
		loaded, err := LoadSteps(fs, file)
		if err != nil {
			return nil, err
		}
		steps = loaded
	}

	seq := NewSequencer(fs, ctx.Helper.Config(OptionSysfsRoot), steps, clk, ctx.Logger)
	return New(seq, ctx.Helper, ctx.Logger), nil
}

// PowerState is the last state the plugin brought the modem to.
type PowerState string

const (
	PowerUnknown PowerState = "unknown"
	PowerOn      PowerState = "on"
	PowerOff     PowerState = "off"
)

// Plugin runs power sequences in response to online and offline events.
// Sequences run in their own goroutine so that delays never stall the
// host; a new request cancels the pending one first.
type Plugin struct {
	seq    *Sequencer
	helper plugin.Helper
	logger *zap.Logger

	// runMu guards cancel and done
	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statusMu sync.RWMutex
	power    PowerState
	running  bool
	lastErr  error
}

// New creates the plugin around a sequencer.
func New(seq *Sequencer, helper plugin.Helper, logger *zap.Logger) *Plugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plugin{
		seq:    seq,
		helper: helper,
		logger: logger,
		power:  PowerUnknown,
	}
}

// Name implements plugin.Plugin
func (p *Plugin) Name() string {
	return Name
}

// Event implements plugin.PhonePlugin
func (p *Plugin) Event(ctx context.Context, ev *event.Event) error {
	switch ev.Type {
	case event.Online:
		p.start(true)
	case event.Offline:
		p.start(false)
	}
	return nil
}

// start cancels whatever sequence is pending, waits for it to return and
// launches the sequence for the requested state.
func (p *Plugin) start(on bool) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	p.statusMu.Lock()
	p.running = true
	p.statusMu.Unlock()

	go p.run(ctx, on, done)
}

func (p *Plugin) run(ctx context.Context, on bool, done chan struct{}) {
	defer close(done)

	err := p.seq.Apply(ctx, on)

	p.statusMu.Lock()
	p.running = false
	switch {
	case err == nil:
		p.lastErr = nil
		if on {
			p.power = PowerOn
		} else {
			p.power = PowerOff
		}
	case errors.Is(err, context.Canceled):
		// superseded; the next sequence decides the state
		p.power = PowerUnknown
	default:
		p.lastErr = err
		p.power = PowerUnknown
	}
	p.statusMu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Power sequence failed", zap.Bool("power_on", on), zap.Error(err))
		if p.helper != nil {
			p.helper.Error(fmt.Errorf("modem power sequence: %w", err))
			p.helper.Trigger(event.NewNotification(event.KindError, failureTitle(on), err.Error()))
		}
	}
}

func failureTitle(on bool) string {
	if on {
		return "Modem power on failed"
	}
	return "Modem power off failed"
}

func (p *Plugin) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

// Wait blocks until the current sequence, if any, has returned.
func (p *Plugin) Wait() {
	p.runMu.Lock()
	done := p.done
	p.runMu.Unlock()

	if done != nil {
		<-done
	}
}

// Power returns the state the last completed sequence left the modem in.
func (p *Plugin) Power() PowerState {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.power
}

// LastError returns the failure of the last completed sequence, if any.
func (p *Plugin) LastError() error {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.lastErr
}

// Status implements plugin.StatusProvider
func (p *Plugin) Status() map[string]interface{} {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()

	status := map[string]interface{}{
		"power":   string(p.power),
		"running": p.running,
	}
	if p.lastErr != nil {
		status["last_error"] = p.lastErr.Error()
	}
	return status
}

// Destroy implements plugin.Plugin. A pending sequence is cancelled.
func (p *Plugin) Destroy() {
	p.runMu.Lock()
	p.stopLocked()
	p.runMu.Unlock()
	p.helper = nil
}

// Package testenv runs the real host and plugins against an in-memory
// GPIO tree and a mock clock, for scenario tests of the whole daemon.
package testenv

import (
	"context"
	"fmt"
	"time"

	"phoned/internal/clock"
	"phoned/internal/host"
	"phoned/internal/plugins/console"
	"phoned/internal/plugins/n900"
	"phoned/pkg/event"
	"phoned/pkg/plugin"
	"phoned/pkg/testutil"

	// Templates register themselves next to console and n900
	_ "phoned/internal/plugins/modemtemplate"
	_ "phoned/internal/plugins/phonetemplate"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// EnvStart is the mock clock's starting time.
var EnvStart = time.Date(2024, 3, 9, 21, 30, 0, 0, time.Local)

// TestEnv provides a complete host for scenario tests.
type TestEnv struct {
	Host   *host.Host
	Clock  *clock.MockClock
	Fs     afero.Fs
	Writes *testutil.RecordingFs
	Logger *zap.Logger
	Logs   *observer.ObservedLogs

	// SysfsRoot is where the GPIO switch tree lives
	SysfsRoot string
}

// NewTestEnv creates a host over the global registry. The N900 GPIO
// switches exist under n900.DefaultRoot; options are passed to plugins
// as their configuration.
//
// Example usage:
//
//	env, err := testenv.NewTestEnv(nil)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer env.Cleanup()
//
//	err = env.Host.Load("console", "n900")
func NewTestEnv(options map[string]map[string]string) (*TestEnv, error) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	mem := afero.NewMemMapFs()
	var names []string
	for _, step := range n900.DefaultSteps() {
		names = append(names, step.Name)
	}
	if err := testutil.NewGPIOTree(mem, n900.DefaultRoot, names...); err != nil {
		return nil, fmt.Errorf("failed to create GPIO tree: %w", err)
	}

	rec := testutil.NewRecordingFs(mem)
	clk := clock.NewMockClock(EnvStart)
	h := host.New(plugin.Global(), host.Config{Options: options, ConfigDir: "/etc/phoned"}, logger, clk, rec)

	return &TestEnv{
		Host:      h,
		Clock:     clk,
		Fs:        mem,
		Writes:    rec,
		Logger:    logger,
		Logs:      logs,
		SysfsRoot: n900.DefaultRoot,
	}, nil
}

// Dispatch delivers an event of type t.
func (e *TestEnv) Dispatch(t event.Type) error {
	return e.Host.Dispatch(context.Background(), event.New(t))
}

// Notify delivers a notification.
func (e *TestEnv) Notify(kind event.NotificationKind, title, message string) error {
	return e.Host.Dispatch(context.Background(), event.NewNotification(kind, title, message))
}

// Console returns the loaded console plugin, or nil.
func (e *TestEnv) Console() *console.Plugin {
	p, ok := e.Host.Plugin(console.Name)
	if !ok {
		return nil
	}
	c, _ := p.(*console.Plugin)
	return c
}

// N900 returns the loaded n900 plugin, or nil.
func (e *TestEnv) N900() *n900.Plugin {
	p, ok := e.Host.Plugin(n900.Name)
	if !ok {
		return nil
	}
	m, _ := p.(*n900.Plugin)
	return m
}

// SettlePower advances the mock clock through the power sequence delays
// until the n900 plugin is idle, or fails after timeout of real time.
func (e *TestEnv) SettlePower(timeout time.Duration) error {
	p := e.N900()
	if p == nil {
		return fmt.Errorf("%s plugin is not loaded", n900.Name)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if running, _ := p.Status()["running"].(bool); !running {
			p.Wait()
			return nil
		}
		if e.Clock.Pending() > 0 {
			e.Clock.Advance(time.Second)
			continue
		}
		time.Sleep(time.Millisecond)
	}
	return fmt.Errorf("power sequence still running after %s", timeout)
}

// GPIOStates returns the content of every N900 switch state file.
func (e *TestEnv) GPIOStates() (map[string]string, error) {
	states := make(map[string]string)
	for _, step := range n900.DefaultSteps() {
		got, err := testutil.ReadState(e.Fs, e.SysfsRoot, step.Name)
		if err != nil {
			return nil, err
		}
		states[step.Name] = got
	}
	return states, nil
}

// Cleanup unloads every plugin.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	e.Host.Unload()
}

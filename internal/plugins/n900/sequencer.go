package n900

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"sync"
	"time"

	"phoned/internal/clock"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DefaultRoot is where the kernel exposes the N900 GPIO switches.
const DefaultRoot = "/sys/devices/platform/gpio-switch"

// Payloads accepted by a gpio-switch state file.
const (
	PayloadActive   = "active"
	PayloadInactive = "inactive"
)

// StepError reports the step whose state file could not be written.
type StepError struct {
	Step Step
	Path string
	Err  error
}

func (e *StepError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Sequencer applies a power sequence to the gpio-switch sysfs tree.
// Apply calls are serialized; a sequence is never interleaved with another.
type Sequencer struct {
	fs     afero.Fs
	root   string
	steps  []Step
	clock  clock.Clock
	logger *zap.Logger

	mu sync.Mutex
}

// NewSequencer creates a sequencer writing below root.
func NewSequencer(fs afero.Fs, root string, steps []Step, clk clock.Clock, logger *zap.Logger) *Sequencer {
	if root == "" {
		root = DefaultRoot
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{
		fs:     fs,
		root:   root,
		steps:  steps,
		clock:  clk,
		logger: logger,
	}
}

// StatePath returns the state file of the named switch.
func (s *Sequencer) StatePath(name string) string {
	return path.Join(s.root, name, "state")
}

// Steps returns a copy of the sequence.
func (s *Sequencer) Steps() []Step {
	steps := make([]Step, len(s.steps))
	copy(steps, s.steps)
	return steps
}

// Apply powers the modem on or off. Steps run strictly in table order and
// the first failure aborts the sequence with a *StepError; steps already
// applied are left as they are. Cancelling ctx interrupts a pending delay
// and returns ctx.Err().
func (s *Sequencer) Apply(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := PayloadInactive
	if on {
		payload = PayloadActive
	}

	s.logger.Info("Applying power sequence",
		zap.Bool("power_on", on),
		zap.Int("steps", len(s.steps)))

	for _, step := range s.steps {
		if !step.Applies(on) {
			continue
		}

		if step.Delay > 0 {
			s.logger.Debug("Waiting before switch",
				zap.String("switch", step.Name),
				zap.Duration("delay", step.Delay))
			if err := s.sleep(ctx, step.Delay); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		statePath := s.StatePath(step.Name)
		if err := s.write(statePath, payload); err != nil {
			return &StepError{Step: step, Path: statePath, Err: err}
		}

		s.logger.Debug("Switch written",
			zap.String("path", statePath),
			zap.String("payload", payload))
	}

	s.logger.Info("Power sequence complete", zap.Bool("power_on", on))
	return nil
}

// sleep waits for d on the sequencer clock. The timer is stopped when ctx
// ends first.
func (s *Sequencer) sleep(ctx context.Context, d time.Duration) error {
	wake := make(chan struct{})
	timer := s.clock.AfterFunc(d, func() { close(wake) })

	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
}

// write stores payload in an existing state file. The error returned is
// the bare OS error; the caller attaches the path.
func (s *Sequencer) write(statePath, payload string) error {
	f, err := s.fs.OpenFile(statePath, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return unwrapPathError(err)
	}

	if _, err := f.WriteString(payload); err != nil {
		f.Close()
		return unwrapPathError(err)
	}

	return unwrapPathError(f.Close())
}

func unwrapPathError(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

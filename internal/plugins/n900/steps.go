package n900

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Step is one GPIO switch of the power sequence. A switch is only touched
// in the directions it applies to; Delay is waited before the switch is
// written, in either direction.
type Step struct {
	Name       string        `yaml:"name"`
	OnPowerOn  bool          `yaml:"power_on"`
	OnPowerOff bool          `yaml:"power_off"`
	Delay      time.Duration `yaml:"delay"`
}

// Applies reports whether the step takes part in powering on (on=true) or
// powering off (on=false).
func (s Step) Applies(on bool) bool {
	if on {
		return s.OnPowerOn
	}
	return s.OnPowerOff
}

// defaultSteps is the cellular modem power sequence of the Nokia N900.
// Never modify it; DefaultSteps hands out copies.
var defaultSteps = []Step{
	{Name: "cmt_apeslpx", OnPowerOn: true, OnPowerOff: true},
	{Name: "cmt_rst_rq", OnPowerOn: true, OnPowerOff: true},
	{Name: "cmt_en", OnPowerOn: true, OnPowerOff: true},
	{Name: "cmt_bsi", OnPowerOn: true, OnPowerOff: false},
	{Name: "cmt_rst", OnPowerOn: true, OnPowerOff: true, Delay: time.Second},
}

// DefaultSteps returns a copy of the N900 power sequence.
func DefaultSteps() []Step {
	steps := make([]Step, len(defaultSteps))
	copy(steps, defaultSteps)
	return steps
}

// StepsConfig is the layout of a steps override file.
type StepsConfig struct {
	Steps []Step `yaml:"steps"`
}

// LoadSteps reads a power sequence from a YAML file, for handsets whose
// GPIO switches differ from the N900's.
func LoadSteps(fs afero.Fs, path string) ([]Step, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read steps file: %w", err)
	}

	var config StepsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse steps file: %w", err)
	}

	if err := ValidateSteps(config.Steps); err != nil {
		return nil, fmt.Errorf("invalid steps file %s: %w", path, err)
	}

	return config.Steps, nil
}

// ValidateSteps checks that a sequence only names plain switch directories.
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("no steps defined")
	}
	for i, step := range steps {
		switch {
		case step.Name == "":
			return fmt.Errorf("step %d: name cannot be empty", i)
		case strings.ContainsAny(step.Name, `/\`) || step.Name == "." || step.Name == "..":
			return fmt.Errorf("step %d: invalid switch name %q", i, step.Name)
		case step.Delay < 0:
			return fmt.Errorf("step %d: negative delay", i)
		}
	}
	return nil
}

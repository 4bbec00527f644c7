package plugin

import (
	"phoned/internal/clock"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Context provides dependencies to plugins during initialization.
type Context struct {
	// Helper is the host callback table for this plugin instance.
	Helper Helper

	// Logger is a structured logger already named after the plugin.
	Logger *zap.Logger

	// Clock is the time source. Plugins schedule every delay through it.
	Clock clock.Clock

	// Fs is the filesystem plugins touch hardware and config files through.
	Fs afero.Fs

	// ConfigDir is the path to the configuration directory.
	ConfigDir string
}

// NewContext creates a new plugin context with all required dependencies.
func NewContext(helper Helper, logger *zap.Logger, clk clock.Clock, fs afero.Fs, configDir string) *Context {
	return &Context{
		Helper:    helper,
		Logger:    logger,
		Clock:     clk,
		Fs:        fs,
		ConfigDir: configDir,
	}
}

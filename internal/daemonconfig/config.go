// Package daemonconfig holds pedald's outer daemon settings: which pattern
// files to load, the repeat-fire cadence, logging verbosity, and
// daemonization options. This is distinct from the pattern-file DSL itself
// (internal/patternconfig), which has its own loader.
package daemonconfig

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/larsks/pedald/internal/config"
)

// Config is pedald's Configurable, implementing internal/cli.Configurable.
type Config struct {
	// ConfigFile is an optional outer settings file (YAML/TOML/JSON via
	// viper) carrying defaults for the fields below. It is unrelated to
	// the pattern files themselves.
	ConfigFile string `mapstructure:"config-file"`

	// PatternFiles is the repeatable -c/--config flag: one pattern file
	// per Instance.
	PatternFiles []string `mapstructure:"pattern-files"`

	RepeatRate time.Duration `mapstructure:"repeat-rate"`
	LogLevel   string        `mapstructure:"log-level"`
	Quiet      bool          `mapstructure:"quiet"`
	Debug      bool          `mapstructure:"debug"`
	Daemonize  bool          `mapstructure:"daemonize"`
	PidFile    string        `mapstructure:"pidfile"`
	LogFile    string        `mapstructure:"logfile"`
}

// AddFlags registers pedald's command-line flags.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config-file", "", "optional outer settings file")
	fs.StringSliceVarP(&c.PatternFiles, "config", "c", nil, "pattern file (repeatable, one per instance)")
	fs.DurationVar(&c.RepeatRate, "repeat-rate", 250*time.Millisecond, "cadence for repeat-tagged patterns")
	fs.StringVar(&c.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.BoolVar(&c.Quiet, "quiet", false, "suppress info-level logging (history dumps, reconnection notices)")
	fs.BoolVar(&c.Debug, "debug", false, "enable debug-level logging and startup structure dumps")
	fs.BoolVar(&c.Daemonize, "daemonize", false, "background the process via a double-fork")
	fs.StringVar(&c.PidFile, "pidfile", "/var/run/pedald.pid", "pidfile path (used under --daemonize)")
	fs.StringVar(&c.LogFile, "logfile", "/var/log/pedald.log", "log file path (used under --daemonize)")
}

// LoadConfigWithFlagSet loads defaults < ConfigFile (if set) < explicit
// flags using the shared internal/config.ConfigLoader.
func (c *Config) LoadConfigWithFlagSet(fs *pflag.FlagSet) error {
	loader := config.NewConfigLoader()
	if c.ConfigFile != "" {
		loader.SetConfigFile(c.ConfigFile)
	}
	loader.SetDefaults(map[string]any{
		"repeat-rate": "250ms",
		"log-level":   "info",
		"pidfile":     "/var/run/pedald.pid",
		"logfile":     "/var/log/pedald.log",
	})
	return loader.LoadConfigWithFlagSet(c, fs)
}

// Validate checks invariants LoadConfigWithFlagSet alone can't: at least
// one pattern file, a recognized log level, a positive repeat rate.
func (c *Config) Validate() error {
	if len(c.PatternFiles) == 0 {
		return ErrNoPatternFiles
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, c.LogLevel)
	}
	if c.RepeatRate <= 0 {
		return ErrInvalidRepeatRate
	}
	return nil
}

// Level resolves the configured log level, applying --quiet/--debug
// overrides on top of --log-level.
func (c *Config) Level() log.Level {
	switch {
	case c.Debug:
		return log.DebugLevel
	case c.Quiet:
		return log.WarnLevel
	}
	if lvl, err := log.ParseLevel(c.LogLevel); err == nil {
		return lvl
	}
	return log.InfoLevel
}

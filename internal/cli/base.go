package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/larsks/pedald/internal/version"
	"github.com/spf13/pflag"
)

// Configurable is implemented by a daemon's own settings struct (for
// pedald, *daemonconfig.Config): it registers its flags and knows how to
// load itself from defaults/file/flags.
type Configurable interface {
	AddFlags(fs *pflag.FlagSet)
	LoadConfigWithFlagSet(fs *pflag.FlagSet) error
}

// CommandHandler runs the daemon once its Configurable is ready. pedald's
// internal/daemon.Handler is the only implementation.
type CommandHandler interface {
	Start(config Configurable) error
}

// BaseCLI provides the version/start argument-parsing scaffolding shared
// by every pedald entrypoint.
type BaseCLI struct {
	stdout io.Writer
	stderr io.Writer
}

// NewBaseCLI creates a new BaseCLI instance
func NewBaseCLI(stdout, stderr io.Writer) *BaseCLI {
	return &BaseCLI{
		stdout: stdout,
		stderr: stderr,
	}
}

// CommandArgs represents parsed command line arguments
type CommandArgs struct {
	Command string
	Config  Configurable
}

// ParseArgsStandard provides standard argument parsing for version/help/start commands
func (c *BaseCLI) ParseArgsStandard(args []string, configFactory func() Configurable) (*CommandArgs, error) {
	return c.ParseArgsStandardWithFlagSet(args, configFactory, pflag.CommandLine)
}

// ParseArgsStandardWithFlagSet provides standard argument parsing with a custom flag set
func (c *BaseCLI) ParseArgsStandardWithFlagSet(args []string, configFactory func() Configurable, fs *pflag.FlagSet) (*CommandArgs, error) {
	// Define standard flags
	versionFlag := fs.Bool("version", false, "Show version and exit")

	// Create config and add its flags
	cfg := configFactory()
	cfg.AddFlags(fs)

	// Parse arguments
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	// Handle version flag
	if *versionFlag {
		return &CommandArgs{Command: "version", Config: cfg}, nil
	}

	// Load configuration using the same flag set
	if err := cfg.LoadConfigWithFlagSet(fs); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &CommandArgs{Command: "start", Config: cfg}, nil
}

// Execute runs the specified command using standard patterns
func (c *BaseCLI) Execute(cmdArgs *CommandArgs, handler CommandHandler) error {
	switch cmdArgs.Command {
	case "version":
		version.ShowVersion()
		return nil
	case "start":
		return handler.Start(cmdArgs.Config)
	default:
		return fmt.Errorf("unknown command: %s", cmdArgs.Command)
	}
}

// StandardMain is the complete body of cmd/pedald/main.go: parse flags,
// handle --version, and otherwise hand the loaded config to handler.Start.
func StandardMain(configFactory func() Configurable, handler CommandHandler) {
	cli := NewBaseCLI(os.Stdout, os.Stderr)

	// Parse command line arguments
	cmdArgs, err := cli.ParseArgsStandard(os.Args[1:], configFactory)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	// Execute command
	if err := cli.Execute(cmdArgs, handler); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// Package daemon wires pedald's daemonconfig, instance manager, and
// optional go-daemon backgrounding together behind the cli.CommandHandler
// interface.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	daemonlib "github.com/sevlyar/go-daemon"

	"github.com/larsks/pedald/internal/cli"
	"github.com/larsks/pedald/internal/daemonconfig"
	"github.com/larsks/pedald/internal/executor"
	"github.com/larsks/pedald/internal/instance"
)

// Handler implements cli.CommandHandler for pedald.
type Handler struct {
	logger *log.Logger
}

// NewHandler creates a Handler. A nil logger gets a stderr logger created
// at Start time, once the configured log level is known.
func NewHandler(logger *log.Logger) *Handler {
	return &Handler{logger: logger}
}

// Start implements cli.CommandHandler: builds one Instance per configured
// pattern file, then runs the event loop until SIGINT/SIGTERM/SIGHUP.
func (h *Handler) Start(config cli.Configurable) error {
	cfg, ok := config.(*daemonconfig.Config)
	if !ok {
		return fmt.Errorf("unexpected config type %T", config)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Daemonize {
		dctx, detached, err := h.daemonize(cfg)
		if err != nil {
			return err
		}
		if detached {
			return nil
		}
		defer dctx.Release() //nolint:errcheck
	}

	logger := h.logger
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	logger.SetLevel(cfg.Level())

	runner := executor.NewShellRunner(logger)

	instances := make([]*instance.Instance, 0, len(cfg.PatternFiles))
	for _, path := range cfg.PatternFiles {
		inst, err := instance.New(path, cfg.RepeatRate, runner, logger)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		instances = append(instances, inst)
	}

	manager := instance.NewManager(instances, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	logger.Info("pedald starting", "instances", len(instances))
	return manager.Run(ctx)
}

// daemonize reborns the process under go-daemon. The bool return is true
// in the parent process, which has nothing left to do but exit; the child
// gets back a live *daemonlib.Context it must Release on shutdown.
func (h *Handler) daemonize(cfg *daemonconfig.Config) (*daemonlib.Context, bool, error) {
	ctx := &daemonlib.Context{
		PidFileName: cfg.PidFile,
		PidFilePerm: 0o644,
		LogFileName: cfg.LogFile,
		LogFilePerm: 0o640,
		WorkDir:     "/",
		Umask:       0o027,
	}

	child, err := ctx.Reborn()
	if err != nil {
		return nil, false, fmt.Errorf("failed to daemonize: %w", err)
	}
	if child != nil {
		return nil, true, nil
	}
	return ctx, false, nil
}

// Package executor provides the command-execution collaborator the pattern
// matcher dispatches into: an opaque Runner so the engine never inspects
// *how* a command runs, only whether it succeeded.
package executor

import (
	"os/exec"

	"github.com/charmbracelet/log"
)

// Runner executes a shell command string and reports failure, as an
// interface so the event loop never depends on os/exec directly.
type Runner interface {
	Run(command string) error
}

// ShellRunner runs commands via exec.Command("sh", "-c", command).
type ShellRunner struct {
	log *log.Logger
}

// NewShellRunner creates a Runner that logs each invocation at debug level.
func NewShellRunner(logger *log.Logger) *ShellRunner {
	return &ShellRunner{log: logger}
}

func (r *ShellRunner) Run(command string) error {
	if command == "" {
		return nil
	}

	r.log.Debug("executing command", "command", command)
	cmd := exec.Command("sh", "-c", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		r.log.Warn("command execution failed", "command", command, "error", err, "output", string(output))
		return err
	}
	if len(output) > 0 {
		r.log.Debug("command output", "command", command, "output", string(output))
	}
	return nil
}

package executor

import (
	"os"
	"testing"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	l := log.New(os.Stderr)
	l.SetLevel(log.FatalLevel)
	return l
}

func TestShellRunner_RunSuccess(t *testing.T) {
	r := NewShellRunner(testLogger())
	if err := r.Run("exit 0"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestShellRunner_RunFailurePropagatesError(t *testing.T) {
	r := NewShellRunner(testLogger())
	if err := r.Run("exit 1"); err == nil {
		t.Error("expected an error from a failing command")
	}
}

func TestShellRunner_EmptyCommandIsNoop(t *testing.T) {
	r := NewShellRunner(testLogger())
	if err := r.Run(""); err != nil {
		t.Errorf("unexpected error for empty command: %v", err)
	}
}

package instance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	l := log.New(os.Stderr)
	l.SetLevel(log.FatalLevel)
	return l
}

type nullRunner struct{}

func (nullRunner) Run(string) error { return nil }

func writePatternFile(t *testing.T, devicePath, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pedal.conf")
	content := "dev: " + devicePath + " [30] [shared]\n" + body
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write pattern file: %v", err)
	}
	return path
}

func TestNew_OpensDevicesAndLoadsPatterns(t *testing.T) {
	dir := t.TempDir()
	devicePath := filepath.Join(dir, "fakedev")
	if err := os.WriteFile(devicePath, nil, 0o600); err != nil {
		t.Fatalf("failed to create fake device: %v", err)
	}

	configPath := writePatternFile(t, devicePath, "1: echo x\n")

	inst, err := New(configPath, 250*time.Millisecond, nullRunner{}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer inst.Close()

	if len(inst.sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(inst.sessions))
	}
	if !inst.sessions[0].Connected() {
		t.Error("expected device session to be connected")
	}
	fds := inst.CollectFDs(make(map[int]fdOwner))
	if len(fds) != 1 {
		t.Errorf("expected 1 collected fd, got %d", len(fds))
	}
}

func TestNew_NoDevicesIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.conf")
	if err := os.WriteFile(path, []byte("1: echo x\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := New(path, time.Second, nullRunner{}, testLogger()); err == nil {
		t.Error("expected an error when the pattern file declares no devices")
	}
}

func TestReloadIfChanged_RebuildsOnEdit(t *testing.T) {
	dir := t.TempDir()
	devicePath := filepath.Join(dir, "fakedev")
	if err := os.WriteFile(devicePath, nil, 0o600); err != nil {
		t.Fatalf("failed to create fake device: %v", err)
	}
	configPath := writePatternFile(t, devicePath, "1: echo x\n")

	inst, err := New(configPath, time.Second, nullRunner{}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer inst.Close()

	changed, err := inst.ReloadIfChanged()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Error("expected no reload before any edit")
	}

	future := inst.config.ModTime.Add(2)
	newContent := "dev: " + devicePath + " [30, 31] [shared]\n1: echo y\n"
	if err := os.WriteFile(configPath, []byte(newContent), 0o600); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	if err := os.Chtimes(configPath, future, future); err != nil {
		t.Fatalf("failed to bump mtime: %v", err)
	}

	changed, err = inst.ReloadIfChanged()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected reload to be detected")
	}
	if len(inst.sessions) != 1 {
		t.Fatalf("expected sessions to be rebuilt, got %d", len(inst.sessions))
	}
}

func TestAttemptReconnections_RecoversDisconnectedSessions(t *testing.T) {
	dir := t.TempDir()
	devicePath := filepath.Join(dir, "fakedev")
	configPath := writePatternFile(t, devicePath, "1: echo x\n")

	inst, err := New(configPath, time.Second, nullRunner{}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer inst.Close()

	if inst.sessions[0].Connected() {
		t.Fatal("expected session to start disconnected since the device file does not exist yet")
	}

	if err := os.WriteFile(devicePath, nil, 0o600); err != nil {
		t.Fatalf("failed to create fake device: %v", err)
	}
	inst.AttemptReconnections()
	if !inst.sessions[0].Connected() {
		t.Error("expected reconnection to succeed once the device file appears")
	}
}

func TestCheckAndFireRepeats_RespectsInitialDelay(t *testing.T) {
	dir := t.TempDir()
	devicePath := filepath.Join(dir, "fakedev")
	if err := os.WriteFile(devicePath, nil, 0o600); err != nil {
		t.Fatalf("failed to create fake device: %v", err)
	}
	configPath := writePatternFile(t, devicePath, "1v repeat: echo held\n")

	rate := 50 * time.Millisecond
	runner := &countingRunner{}
	inst, err := New(configPath, rate, runner, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer inst.Close()

	now := time.Now()
	inst.history.AddEntry(1, 0, inst.state, now)
	inst.timer.Arm(now)

	inst.CheckAndFireRepeats(now.Add(rate))
	if runner.calls != 0 {
		t.Errorf("expected no fire before 2x repeat rate, got %d calls", runner.calls)
	}

	inst.CheckAndFireRepeats(now.Add(2 * rate))
	if runner.calls != 1 {
		t.Errorf("expected exactly one fire at 2x repeat rate, got %d calls", runner.calls)
	}
}

type countingRunner struct {
	calls int
}

func (c *countingRunner) Run(string) error {
	c.calls++
	return nil
}

// Package session implements the Device Session component: one evdev
// character device, its optional exclusive grab, and the decode step from
// a raw input_event to a logical button transition folded into the
// instance's shared History and PedalState.
package session

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"
	"unsafe"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/larsks/pedald/internal/evdevcodes"
	"github.com/larsks/pedald/internal/executor"
	"github.com/larsks/pedald/internal/history"
	"github.com/larsks/pedald/internal/matcher"
	"github.com/larsks/pedald/internal/patternconfig"
)

// eviocgrab is EVIOCGRAB, _IOW('E', 0x90, int) from linux/input.h. The
// encoding is identical across every Linux architecture pedald targets, so
// it is a plain constant rather than a cgo or per-arch build-tagged value.
const eviocgrab = 0x40044590

var eventSize = int(unsafe.Sizeof(evdevcodes.InputEvent{}))

// DeviceSession owns one evdev device: its open file, its grab state, and
// the decode rules declared in its DeviceConfig. Reads and decodes happen
// one event at a time, driven by the single-threaded cooperative event
// loop rather than a per-device goroutine, over "arbitrary (type, code,
// value) to Button mappings" instead of a fixed set of named buttons.
type DeviceSession struct {
	Config *patternconfig.DeviceConfig

	file      *os.File
	connected bool
	log       *log.Logger
}

// NewDeviceSession creates a session for cfg. The device is not opened
// until Open is called.
func NewDeviceSession(cfg *patternconfig.DeviceConfig, logger *log.Logger) *DeviceSession {
	return &DeviceSession{Config: cfg, log: logger}
}

// Open opens the device file and, unless the device is declared [shared]
// in the pattern file, grabs it exclusively via EVIOCGRAB so nothing else
// on the system (notably the kernel's own evdev-to-X11/Wayland path) also
// sees its events. Idempotent.
func (s *DeviceSession) Open() error {
	if s.connected {
		return nil
	}

	f, err := os.OpenFile(s.Config.Path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}

	if !s.Config.Shared {
		if err := unix.IoctlSetInt(int(f.Fd()), eviocgrab, 1); err != nil {
			f.Close() //nolint:errcheck
			return fmt.Errorf("grab %s: %w", s.Config.Path, err)
		}
	}

	s.file = f
	s.connected = true
	s.log.Debug("device opened", "path", s.Config.Path, "shared", s.Config.Shared)
	return nil
}

// Close ungrabs (if grabbed) and closes the device file. Idempotent.
func (s *DeviceSession) Close() error {
	if !s.connected {
		return nil
	}

	if !s.Config.Shared {
		_ = unix.IoctlSetInt(int(s.file.Fd()), eviocgrab, 0)
	}
	err := s.file.Close()
	s.file = nil
	s.connected = false
	return err
}

// FD returns the session's current file descriptor, if open.
func (s *DeviceSession) FD() (int, bool) {
	if !s.connected {
		return 0, false
	}
	return int(s.file.Fd()), true
}

// Connected reports whether the device is currently open.
func (s *DeviceSession) Connected() bool {
	return s.connected
}

// AttemptReconnection probes for the device's reappearance and reopens it
// if found. Hot-plug recovery is stat-based polling of the configured
// path rather than inotify; a device that comes back under a different
// path is not found. Returns whether a reconnection happened.
func (s *DeviceSession) AttemptReconnection() bool {
	if s.connected {
		return false
	}
	if _, err := os.Stat(s.Config.Path); err != nil {
		return false
	}
	if err := s.Open(); err != nil {
		s.log.Debug("reconnection attempt failed", "path", s.Config.Path, "error", err)
		return false
	}
	s.log.Info("device reconnected", "path", s.Config.Path)
	return true
}

// ReadEvent blocks reading exactly one input_event record: a fixed-size
// read followed by a little-endian binary.Read decode into the wire
// struct.
func (s *DeviceSession) ReadEvent() (evdevcodes.InputEvent, error) {
	var raw evdevcodes.InputEvent

	buf := make([]byte, eventSize)
	n, err := s.file.Read(buf)
	if err != nil {
		return raw, err
	}
	if n != eventSize {
		return raw, fmt.Errorf("short read from %s: got %d bytes, want %d", s.Config.Path, n, eventSize)
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return raw, err
	}
	return raw, nil
}

// Dispatch is the outcome of ProcessEvent: whether a completed pattern
// fired, and if so which one, plus the set of patterns currently eligible
// to repeat-fire.
type Dispatch struct {
	Fired   *patternconfig.Pattern
	Repeats []*patternconfig.Pattern
}

// ProcessEvent decodes one raw input_event against the session's device
// mapping and, if it resolves to a declared button transition, folds it
// into the shared history and pedal state, runs the matcher, executes any
// completed pattern's command, and prunes history of fully-released
// chords.
//
// hist, state, patterns, runner and timer are owned by the instance this
// session belongs to and shared across every session of that instance,
// since a pattern's sequence can span multiple physical devices.
func (s *DeviceSession) ProcessEvent(
	raw evdevcodes.InputEvent,
	hist *history.History,
	state history.PedalState,
	patterns []*patternconfig.Pattern,
	runner executor.Runner,
	timer *history.RepeatTimer,
	now time.Time,
) (Dispatch, error) {
	var result Dispatch

	mapping, ok := s.Config.Lookup(evdevcodes.EventType(raw.Type), raw.Code, raw.Value)
	if !ok {
		// Rule 1: events with no declared mapping (EV_SYN, key-repeat
		// values, unmapped axes) are silently ignored.
		return result, nil
	}

	if evdevcodes.EventType(raw.Type) == evdevcodes.EV_KEY {
		s.log.Debug("decoded key event", "path", s.Config.Path, "code", raw.Code, "state", evdevcodes.GetKeyStateName(raw.Value))
	} else {
		s.log.Debug("decoded event", "path", s.Config.Path, "type", evdevcodes.GetEventTypeCode(evdevcodes.EventType(raw.Type)), "code", raw.Code, "value", raw.Value)
	}

	// Rule 2: within a declared mapping, a nonzero value is a press
	// (Down), zero is a release (Up). Key mappings declare both values
	// explicitly; type/code=value mappings declare only the triggering
	// value and rely on AutoRelease for the Up half.
	event := patternconfig.Down
	if raw.Value == 0 && !mapping.AutoRelease {
		event = patternconfig.Up
	}

	s.appendTransition(hist, state, mapping.Button, event, now)

	if mapping.AutoRelease {
		// Rule 3: a momentary (non-key) input has no separate release
		// event from the kernel, so the session synthesizes one
		// immediately so the button never appears stuck Down.
		s.appendTransition(hist, state, mapping.Button, patternconfig.Up, now)
	}

	s.log.Info("history\n" + strings.TrimSuffix(hist.Render(), "\n"))

	// Rule 4: once the event's transitions are appended, a completed
	// pattern may fire. At most one (the lowest-line-number match) fires
	// per event; firing a non-repeat pattern marks every current entry
	// used.
	if fired, ok := matcher.FindCompleteMatch(patterns, hist.Entries); ok {
		result.Fired = fired
		if !fired.Repeat {
			hist.SetUsed()
		}
		if err := runner.Run(fired.Command); err != nil {
			s.log.Warn("pattern command failed", "line", fired.LineNumber, "command", fired.Command, "error", err)
		} else {
			s.log.Info("pattern fired", "line", fired.LineNumber, "sequence", fired.SequenceStr())
		}
	}

	// Rule 5: repeat-tagged patterns arm (or stay armed) as long as they
	// keep matching; the event loop's periodic re-check does the actual
	// re-firing on a timer, not this decode step.
	result.Repeats = matcher.FindRepeatMatches(patterns, hist.Entries)
	if len(result.Repeats) > 0 {
		timer.Arm(now)
	} else {
		timer.Clear()
	}

	hist.PopReleased(state)

	return result, nil
}

func (s *DeviceSession) appendTransition(hist *history.History, state history.PedalState, button patternconfig.Button, event patternconfig.ButtonEvent, now time.Time) {
	state[button] = event
	hist.AddEntry(button, event, state, now)
}

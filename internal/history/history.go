// Package history implements the shared per-instance event history and
// pedal state: an append-only, right-pruned log of button transitions and
// the derived up/down state of every button.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/larsks/pedald/internal/patternconfig"
)

// PedalState is the current Up/Down status of every declared button.
type PedalState map[patternconfig.Button]patternconfig.ButtonEvent

// NewPedalState initializes every given button to Up.
func NewPedalState(buttons []patternconfig.Button) PedalState {
	s := make(PedalState, len(buttons))
	for _, b := range buttons {
		s[b] = patternconfig.Up
	}
	return s
}

// Get returns the button's current event, defaulting to Up for an
// undeclared button.
func (s PedalState) Get(b patternconfig.Button) patternconfig.ButtonEvent {
	if e, ok := s[b]; ok {
		return e
	}
	return patternconfig.Up
}

// Clone returns an independent copy, used to take an immutable snapshot at
// append time so a HistoryEntry's snapshot never aliases the live state.
func (s PedalState) Clone() PedalState {
	clone := make(PedalState, len(s))
	for b, e := range s {
		clone[b] = e
	}
	return clone
}

func (s PedalState) String() string {
	parts := make([]string, 0, len(s))
	for b, e := range s {
		mark := "-"
		if e == patternconfig.Down {
			mark = "+"
		}
		parts = append(parts, fmt.Sprintf("B%d:%s", b, mark))
	}
	return strings.Join(parts, " ")
}

// HistoryEntry is a single timestamped, immutable (except for Used) record
// of a button transition.
type HistoryEntry struct {
	Timestamp time.Time
	Button    patternconfig.Button
	Event     patternconfig.ButtonEvent
	Snapshot  PedalState
	Used      int
}

func (h HistoryEntry) String() string {
	verb := "pressed"
	if h.Event == patternconfig.Up {
		verb = "released"
	}
	return fmt.Sprintf("%s B%d %-8s | %s", h.Timestamp.Format("15:04:05.000"), h.Button, verb, h.Snapshot)
}

// History is the ordered, append-only (except for right-pruning) event log
// shared by all device sessions of one instance.
type History struct {
	Entries []HistoryEntry
}

// New creates an empty History.
func New() *History {
	return &History{}
}

// AddEntry appends a fresh entry with Used = 0. The snapshot is copied so
// later mutation of the live PedalState cannot retroactively change it.
func (h *History) AddEntry(button patternconfig.Button, event patternconfig.ButtonEvent, state PedalState, timestamp time.Time) HistoryEntry {
	entry := HistoryEntry{
		Timestamp: timestamp,
		Button:    button,
		Event:     event,
		Snapshot:  state.Clone(),
	}
	h.Entries = append(h.Entries, entry)
	return entry
}

// SetUsed increments Used on every current entry. Called exactly once after
// a non-repeat pattern fires, so a subsequent match attempt against the same
// entries sees their consumption.
func (h *History) SetUsed() {
	for i := range h.Entries {
		h.Entries[i].Used++
	}
}

// PopReleased walks History from newest to oldest, finds the newest entry
// whose button is currently Down in currentState, and truncates History to
// that point. If no button is currently held, History is cleared.
//
// This treats History as a stack of hold-contexts: a single press/release
// pair vanishes on release, while a multi-button chord survives as long as
// any of its buttons are still held.
func (h *History) PopReleased(currentState PedalState) {
	for i := len(h.Entries) - 1; i >= 0; i-- {
		if currentState.Get(h.Entries[i].Button) == patternconfig.Down {
			h.Entries = h.Entries[:i+1]
			return
		}
	}
	h.Entries = nil
}

// Render renders the full history for debug/verbose logging.
func (h *History) Render() string {
	var b strings.Builder
	for _, e := range h.Entries {
		b.WriteString("  ")
		b.WriteString(e.String())
		b.WriteString("\n")
	}
	return b.String()
}

// repeatPhase distinguishes "armed but not yet fired" from "fired at
// least once" without resorting to a sentinel-valued timestamp.
type repeatPhase int

const (
	repeatIdle repeatPhase = iota
	repeatArmed
	repeatFiring
)

// RepeatTimer tracks one instance's single in-flight repeat pattern: the
// moment it was armed (first matched) and, once it has fired, the moment
// of its most recent fire. An instance has at most one logical repeat
// timer regardless of how many devices feed its history.
type RepeatTimer struct {
	phase    repeatPhase
	baseline time.Time
}

// Arm records that a repeat pattern newly started matching. A timer that
// is already armed or firing is left untouched: re-arming would reset the
// 2x initial-delay clock every time the matcher re-confirms the same
// still-held sequence.
func (r *RepeatTimer) Arm(now time.Time) {
	if r.phase != repeatIdle {
		return
	}
	r.phase = repeatArmed
	r.baseline = now
}

// Clear disarms the timer, e.g. when no repeat pattern currently matches.
func (r *RepeatTimer) Clear() {
	r.phase = repeatIdle
	r.baseline = time.Time{}
}

// Armed reports whether the timer is tracking a repeat pattern at all
// (armed or already firing).
func (r *RepeatTimer) Armed() bool {
	return r.phase != repeatIdle
}

// ShouldFire reports whether repeatRate has elapsed since the relevant
// baseline: 2x repeatRate since arming for the first fire, or 1x
// repeatRate since the last fire for every subsequent one.
func (r *RepeatTimer) ShouldFire(now time.Time, repeatRate time.Duration) bool {
	switch r.phase {
	case repeatArmed:
		return now.Sub(r.baseline) >= 2*repeatRate
	case repeatFiring:
		return now.Sub(r.baseline) >= repeatRate
	default:
		return false
	}
}

// MarkFired records a fire, switching the baseline to "last fired" so the
// next ShouldFire call uses the 1x cadence.
func (r *RepeatTimer) MarkFired(now time.Time) {
	r.phase = repeatFiring
	r.baseline = now
}

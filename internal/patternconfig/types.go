// Package patternconfig holds the declarative data model described by the
// pattern-file grammar: buttons, devices, event mappings, and the sequence
// patterns that drive command dispatch, generalized from "one button spec"
// to "a whole config file of devices and sequence patterns".
package patternconfig

import (
	"fmt"
	"math"
	"strings"

	"github.com/larsks/pedald/internal/evdevcodes"
)

// Button is a small positive integer, globally unique across all devices of
// one instance. Numbering is sequential in config declaration order.
type Button int

// ButtonEvent is the two-valued tag for a button transition.
type ButtonEvent int

const (
	Down ButtonEvent = iota
	Up
)

func (e ButtonEvent) String() string {
	if e == Down {
		return "v"
	}
	return "^"
}

// MaxUse is a two-variant enum replacing the None/0 sentinel the original
// implementation used: Unlimited reuse, or AtMost(n) uses.
type MaxUse struct {
	limited bool
	n       int
}

// UnlimitedUse permits a pattern element to match a history entry no matter
// how many times that entry has already been consumed.
var UnlimitedUse = MaxUse{}

// AtMost builds a MaxUse that refuses to match a history entry whose used
// counter exceeds n.
func AtMost(n int) MaxUse {
	return MaxUse{limited: true, n: n}
}

// Allows reports whether a history entry with the given used count may still
// satisfy this element.
func (m MaxUse) Allows(used int) bool {
	if !m.limited {
		return true
	}
	return used <= m.n
}

func (m MaxUse) String() string {
	if !m.limited {
		return "unlimited"
	}
	return fmt.Sprintf("at-most-%d", m.n)
}

// EventMapping is the decoding rule for one raw device input.
type EventMapping struct {
	EventType   evdevcodes.EventType
	EventCode   uint16
	EventValue  int32
	Button      Button
	AutoRelease bool
}

// DeviceConfig describes one physical evdev device and how its raw events
// decode into logical buttons.
type DeviceConfig struct {
	Path     string
	Mappings []EventMapping
	Shared   bool
}

// Buttons returns the unique set of buttons this device declares, in
// first-seen order.
func (d *DeviceConfig) Buttons() []Button {
	seen := make(map[Button]bool)
	var buttons []Button
	for _, m := range d.Mappings {
		if !seen[m.Button] {
			seen[m.Button] = true
			buttons = append(buttons, m.Button)
		}
	}
	return buttons
}

// Lookup finds the EventMapping for a raw (type, code, value) triple, if
// any has been declared.
func (d *DeviceConfig) Lookup(eventType evdevcodes.EventType, code uint16, value int32) (EventMapping, bool) {
	for _, m := range d.Mappings {
		if m.EventType == eventType && m.EventCode == code && m.EventValue == value {
			return m, true
		}
	}
	return EventMapping{}, false
}

// PatternElement is one step of a pattern's sequence.
type PatternElement struct {
	Button Button
	Event  ButtonEvent
	MaxUse MaxUse
}

func (e PatternElement) String() string {
	return fmt.Sprintf("%d%s", e.Button, e.Event)
}

// Pattern is a declarative rule mapping a sequence of button events to a
// shell command.
type Pattern struct {
	Sequence       []PatternElement
	TimeConstraint float64 // seconds; math.Inf(1) disables the constraint
	Command        string
	LineNumber     int
	Repeat         bool
}

// SequenceStr renders the sequence portion of a pattern the way the config
// grammar expresses it, e.g. "1v,2^". Used for debug dumps and round-trip
// tests.
func (p *Pattern) SequenceStr() string {
	parts := make([]string, len(p.Sequence))
	for i, e := range p.Sequence {
		parts[i] = e.String()
	}
	return strings.Join(parts, ",")
}

func (p *Pattern) String() string {
	var b strings.Builder
	b.WriteString(p.SequenceStr())
	if !math.IsInf(p.TimeConstraint, 1) {
		fmt.Fprintf(&b, " < %g", p.TimeConstraint)
	}
	if p.Repeat {
		b.WriteString(" repeat")
	}
	fmt.Fprintf(&b, ": %s", p.Command)
	return b.String()
}

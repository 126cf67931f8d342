package patternconfig

import (
	"math"
	"testing"
)

func TestMaxUse_Allows(t *testing.T) {
	if !UnlimitedUse.Allows(1000) {
		t.Error("UnlimitedUse should allow any used count")
	}
	limited := AtMost(2)
	if !limited.Allows(2) {
		t.Error("AtMost(2) should allow used == 2")
	}
	if limited.Allows(3) {
		t.Error("AtMost(2) should refuse used == 3")
	}
}

func TestDeviceConfig_Buttons_FirstSeenOrderDeduplicated(t *testing.T) {
	d := &DeviceConfig{
		Mappings: []EventMapping{
			{Button: 2},
			{Button: 1},
			{Button: 2},
			{Button: 3},
		},
	}
	got := d.Buttons()
	want := []Button{2, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %d buttons, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestDeviceConfig_Lookup(t *testing.T) {
	d := &DeviceConfig{
		Mappings: []EventMapping{
			{EventType: 1, EventCode: 30, EventValue: 1, Button: 5},
		},
	}
	m, ok := d.Lookup(1, 30, 1)
	if !ok || m.Button != 5 {
		t.Errorf("expected to find mapping for button 5, got %+v, ok=%v", m, ok)
	}
	if _, ok := d.Lookup(1, 30, 0); ok {
		t.Error("expected no match for an undeclared value")
	}
}

func TestPattern_StringRendersGrammarForm(t *testing.T) {
	p := &Pattern{
		Sequence: []PatternElement{
			{Button: 1, Event: Down},
			{Button: 2, Event: Up},
		},
		TimeConstraint: 1.5,
		Command:        "echo hi",
		Repeat:         true,
	}

	seq := p.SequenceStr()
	if seq != "1v,2^" {
		t.Errorf("unexpected sequence string %q", seq)
	}

	full := p.String()
	want := "1v,2^ < 1.5 repeat: echo hi"
	if full != want {
		t.Errorf("expected %q, got %q", want, full)
	}
}

func TestPattern_StringOmitsUnsetTimeConstraintAndRepeat(t *testing.T) {
	p := &Pattern{
		Sequence:       []PatternElement{{Button: 3, Event: Down}},
		TimeConstraint: math.Inf(1),
		Command:        "echo bare",
	}
	want := "3v: echo bare"
	if got := p.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

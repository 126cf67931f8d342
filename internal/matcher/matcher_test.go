package matcher

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsks/pedald/internal/history"
	"github.com/larsks/pedald/internal/patternconfig"
)

func entry(button patternconfig.Button, event patternconfig.ButtonEvent, used int, at time.Time) history.HistoryEntry {
	return history.HistoryEntry{Timestamp: at, Button: button, Event: event, Used: used}
}

func TestFindCompleteMatch_ExactLengthOnly(t *testing.T) {
	base := time.Now()
	patterns := []*patternconfig.Pattern{
		{
			Sequence: []patternconfig.PatternElement{
				{Button: 1, Event: patternconfig.Down, MaxUse: patternconfig.AtMost(0)},
				{Button: 1, Event: patternconfig.Up, MaxUse: patternconfig.AtMost(0)},
			},
			TimeConstraint: math.Inf(1),
			Command:        "echo two",
			LineNumber:     1,
		},
	}

	// Three entries against a two-element pattern must not match, even
	// though the last two entries alone would: a pattern must consume the
	// *entire* current history, not a suffix.
	entries := []history.HistoryEntry{
		entry(2, patternconfig.Down, 0, base),
		entry(1, patternconfig.Down, 0, base.Add(time.Millisecond)),
		entry(1, patternconfig.Up, 0, base.Add(2*time.Millisecond)),
	}

	_, ok := FindCompleteMatch(patterns, entries)
	assert.False(t, ok, "a three-entry history must not satisfy a two-element pattern")
}

func TestFindCompleteMatch_LowestLineNumberWins(t *testing.T) {
	base := time.Now()
	seq := []patternconfig.PatternElement{{Button: 1, Event: patternconfig.Down, MaxUse: patternconfig.UnlimitedUse}}
	patterns := []*patternconfig.Pattern{
		{Sequence: seq, TimeConstraint: math.Inf(1), Command: "second", LineNumber: 5},
		{Sequence: seq, TimeConstraint: math.Inf(1), Command: "first", LineNumber: 2},
		{Sequence: seq, TimeConstraint: math.Inf(1), Command: "third", LineNumber: 9},
	}
	entries := []history.HistoryEntry{entry(1, patternconfig.Down, 0, base)}

	winner, ok := FindCompleteMatch(patterns, entries)
	require.True(t, ok)
	assert.Equal(t, "first", winner.Command)
}

func TestFindCompleteMatch_MaxUseExhausted(t *testing.T) {
	base := time.Now()
	patterns := []*patternconfig.Pattern{
		{
			Sequence:       []patternconfig.PatternElement{{Button: 1, Event: patternconfig.Down, MaxUse: patternconfig.AtMost(0)}},
			TimeConstraint: math.Inf(1),
			Command:        "echo once",
			LineNumber:     1,
		},
	}
	entries := []history.HistoryEntry{entry(1, patternconfig.Down, 1, base)}

	_, ok := FindCompleteMatch(patterns, entries)
	assert.False(t, ok, "an AtMost(0) element must refuse a history entry already used once")
}

func TestFindCompleteMatch_TotalSpanTiming(t *testing.T) {
	base := time.Now()
	patterns := []*patternconfig.Pattern{
		{
			Sequence: []patternconfig.PatternElement{
				{Button: 1, Event: patternconfig.Down, MaxUse: patternconfig.AtMost(0)},
				{Button: 1, Event: patternconfig.Up, MaxUse: patternconfig.AtMost(0)},
			},
			TimeConstraint: 0.5,
			Command:        "echo fast",
			LineNumber:     1,
		},
	}

	withinBudget := []history.HistoryEntry{
		entry(1, patternconfig.Down, 0, base),
		entry(1, patternconfig.Up, 0, base.Add(400*time.Millisecond)),
	}
	_, ok := FindCompleteMatch(patterns, withinBudget)
	assert.True(t, ok, "total span under the time constraint should match")

	overBudget := []history.HistoryEntry{
		entry(1, patternconfig.Down, 0, base),
		entry(1, patternconfig.Up, 0, base.Add(600*time.Millisecond)),
	}
	_, ok = FindCompleteMatch(patterns, overBudget)
	assert.False(t, ok, "total span over the time constraint must not match")
}

func TestFindCompleteMatch_EmptyHistoryNeverMatches(t *testing.T) {
	patterns := []*patternconfig.Pattern{
		{
			Sequence:       []patternconfig.PatternElement{{Button: 1, Event: patternconfig.Down, MaxUse: patternconfig.UnlimitedUse}},
			TimeConstraint: math.Inf(1),
			Command:        "echo x",
			LineNumber:     1,
		},
	}
	_, ok := FindCompleteMatch(patterns, nil)
	assert.False(t, ok)
}

func TestFindRepeatMatches_IgnoresMaxUseAndNonRepeatPatterns(t *testing.T) {
	base := time.Now()
	patterns := []*patternconfig.Pattern{
		{
			Sequence:       []patternconfig.PatternElement{{Button: 1, Event: patternconfig.Down, MaxUse: patternconfig.AtMost(0)}},
			TimeConstraint: math.Inf(1),
			Command:        "echo repeat",
			LineNumber:     3,
			Repeat:         true,
		},
		{
			Sequence:       []patternconfig.PatternElement{{Button: 1, Event: patternconfig.Down, MaxUse: patternconfig.UnlimitedUse}},
			TimeConstraint: math.Inf(1),
			Command:        "echo not-repeat",
			LineNumber:     1,
		},
	}
	// Used=5 would fail the AtMost(0) element under a complete match, but
	// repeat matching ignores usage counts entirely.
	entries := []history.HistoryEntry{entry(1, patternconfig.Down, 5, base)}

	matches := FindRepeatMatches(patterns, entries)
	require.Len(t, matches, 1)
	assert.Equal(t, "echo repeat", matches[0].Command)
}

func TestFindRepeatMatches_SortedByLineNumber(t *testing.T) {
	base := time.Now()
	seq := []patternconfig.PatternElement{{Button: 1, Event: patternconfig.Down, MaxUse: patternconfig.UnlimitedUse}}
	patterns := []*patternconfig.Pattern{
		{Sequence: seq, TimeConstraint: math.Inf(1), Command: "b", LineNumber: 8, Repeat: true},
		{Sequence: seq, TimeConstraint: math.Inf(1), Command: "a", LineNumber: 1, Repeat: true},
	}
	entries := []history.HistoryEntry{entry(1, patternconfig.Down, 0, base)}

	matches := FindRepeatMatches(patterns, entries)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Command)
	assert.Equal(t, "b", matches[1].Command)
}

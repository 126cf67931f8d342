// Package matcher implements the pattern-matching engine's two matching
// procedures: the completed-pattern match (fires a command once) and the
// repeat-pattern match (fires periodically while the event loop re-polls
// it).
package matcher

import (
	"sort"

	"github.com/larsks/pedald/internal/history"
	"github.com/larsks/pedald/internal/patternconfig"
)

// sequenceMatchesButtons reports whether every element of seq agrees on
// button and event with the corresponding history entry. Does not check
// max_use or timing; those are caller-specific (complete match checks both,
// repeat match checks only timing).
func sequenceMatchesButtons(seq []patternconfig.PatternElement, entries []history.HistoryEntry) bool {
	if len(seq) != len(entries) {
		return false
	}
	for i, el := range seq {
		if el.Button != entries[i].Button || el.Event != entries[i].Event {
			return false
		}
	}
	return true
}

func withinTimeConstraint(entries []history.HistoryEntry, constraint float64) bool {
	n := len(entries)
	if n <= 1 {
		return true
	}
	span := entries[n-1].Timestamp.Sub(entries[0].Timestamp).Seconds()
	return span <= constraint
}

// FindCompleteMatch returns the pattern (if any) that completely matches the
// current history under button, event, timing, and usage-count
// constraints. Among qualifying patterns the one with the lowest
// LineNumber wins, a declaration-order tie-break.
func FindCompleteMatch(patterns []*patternconfig.Pattern, entries []history.HistoryEntry) (*patternconfig.Pattern, bool) {
	if len(entries) == 0 {
		return nil, false
	}

	var winner *patternconfig.Pattern
	for _, p := range patterns {
		if !sequenceMatchesButtons(p.Sequence, entries) {
			continue
		}
		if !usageSatisfied(p.Sequence, entries) {
			continue
		}
		if !withinTimeConstraint(entries, p.TimeConstraint) {
			continue
		}
		if winner == nil || p.LineNumber < winner.LineNumber {
			winner = p
		}
	}
	if winner == nil {
		return nil, false
	}
	return winner, true
}

func usageSatisfied(seq []patternconfig.PatternElement, entries []history.HistoryEntry) bool {
	for i, el := range seq {
		if !el.MaxUse.Allows(entries[i].Used) {
			return false
		}
	}
	return true
}

// FindRepeatMatches returns every repeat-tagged pattern currently matching
// history, ignoring usage counts. The event loop decides when to actually
// fire them.
func FindRepeatMatches(patterns []*patternconfig.Pattern, entries []history.HistoryEntry) []*patternconfig.Pattern {
	if len(entries) == 0 {
		return nil
	}

	var matches []*patternconfig.Pattern
	for _, p := range patterns {
		if !p.Repeat {
			continue
		}
		if !sequenceMatchesButtons(p.Sequence, entries) {
			continue
		}
		if !withinTimeConstraint(entries, p.TimeConstraint) {
			continue
		}
		matches = append(matches, p)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].LineNumber < matches[j].LineNumber })
	return matches
}

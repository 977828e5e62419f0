// Package domain defines the core persistence models for the application.
// This file is the single authority on the debate lifecycle: which statuses
// exist and which transitions between them are legal. Services consult this
// table instead of special-casing transitions inline.
package domain

// Debate lifecycle statuses.
const (
	StatusSetup    = "setup"
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusFinished = "finished"
)

// debateTransitions maps each status to the set of statuses it may move to.
// "finished" is terminal.
var debateTransitions = map[string][]string{
	StatusSetup:    {StatusActive},
	StatusActive:   {StatusPaused, StatusFinished},
	StatusPaused:   {StatusActive, StatusFinished},
	StatusFinished: {},
}

// ValidStatus reports whether s names a known debate status.
func ValidStatus(s string) bool {
	_, ok := debateTransitions[s]
	return ok
}

// CanTransition reports whether a debate in status from may move to status to.
// Unknown statuses never transition.
func CanTransition(from, to string) bool {
	for _, t := range debateTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal targets from the given status. The returned
// slice is a copy; callers may not mutate the table through it.
func NextStatuses(from string) []string {
	ts := debateTransitions[from]
	out := make([]string, len(ts))
	copy(out, ts)
	return out
}

// ValidSeverity reports whether s is a known analysis severity.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// ValidIssueType reports whether t is a known moderation issue category.
func ValidIssueType(t string) bool {
	switch t {
	case IssueFallacy, IssueAmbiguity, IssueLogicalError, IssueCognitiveBias:
		return true
	}
	return false
}

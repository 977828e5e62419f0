package domain

import "testing"

func TestCanTransition_Table(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusSetup, StatusActive, true},
		{StatusSetup, StatusPaused, false},
		{StatusSetup, StatusFinished, false},
		{StatusActive, StatusPaused, true},
		{StatusActive, StatusFinished, true},
		{StatusActive, StatusSetup, false},
		{StatusPaused, StatusActive, true},
		{StatusPaused, StatusFinished, true},
		{StatusPaused, StatusSetup, false},
		{StatusFinished, StatusActive, false},
		{StatusFinished, StatusPaused, false},
		{StatusFinished, StatusSetup, false},
		{StatusFinished, StatusFinished, false},
		{StatusActive, StatusActive, false},
		{"bogus", StatusActive, false},
		{StatusActive, "bogus", false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%q, %q) = %v; want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusSetup, StatusActive, StatusPaused, StatusFinished} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false; want true", s)
		}
	}
	for _, s := range []string{"", "SETUP", "done", "archived"} {
		if ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = true; want false", s)
		}
	}
}

func TestNextStatuses_ReturnsCopy(t *testing.T) {
	next := NextStatuses(StatusActive)
	if len(next) != 2 {
		t.Fatalf("NextStatuses(active) = %v; want 2 entries", next)
	}
	next[0] = "mutated"
	if again := NextStatuses(StatusActive); again[0] == "mutated" {
		t.Fatalf("NextStatuses must not expose internal state")
	}
	if got := NextStatuses(StatusFinished); len(got) != 0 {
		t.Fatalf("finished is terminal; got %v", got)
	}
}

func TestValidSeverity(t *testing.T) {
	for _, s := range []string{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh} {
		if !ValidSeverity(s) {
			t.Errorf("ValidSeverity(%q) = false", s)
		}
	}
	if ValidSeverity("critical") || ValidSeverity("") {
		t.Errorf("unexpected severity accepted")
	}
}

func TestValidIssueType(t *testing.T) {
	for _, s := range []string{IssueFallacy, IssueAmbiguity, IssueLogicalError, IssueCognitiveBias} {
		if !ValidIssueType(s) {
			t.Errorf("ValidIssueType(%q) = false", s)
		}
	}
	if ValidIssueType("typo") {
		t.Errorf("unexpected issue type accepted")
	}
}

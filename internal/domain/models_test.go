package domain

import (
	"testing"
)

func TestDebate_IsParticipant(t *testing.T) {
	opp := "u2"
	d := Debate{CreatorID: "u1", OpponentID: &opp}

	if !d.IsParticipant("u1") {
		t.Fatalf("creator must be a participant")
	}
	if !d.IsParticipant("u2") {
		t.Fatalf("opponent must be a participant")
	}
	if d.IsParticipant("u3") {
		t.Fatalf("third party must not be a participant")
	}

	unseated := Debate{CreatorID: "u1"}
	if unseated.IsParticipant("u2") {
		t.Fatalf("empty opponent seat must not match")
	}
	if unseated.IsParticipant("") {
		t.Fatalf("empty user id must never match")
	}
}

func TestIssueList_ValueAndScan(t *testing.T) {
	in := IssueList{
		{
			Type:        IssueFallacy,
			Name:        "Straw man",
			Description: "Misstates the opposing position before attacking it.",
			Quote:       "so you want no rules at all",
			Suggestion:  "Address the position actually stated.",
		},
	}

	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value error: %v", err)
	}
	s, okStr := v.(string)
	if !okStr || s == "" {
		t.Fatalf("Value() = %T %v; want non-empty string", v, v)
	}

	var out IssueList
	if err := out.Scan(s); err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(out) != 1 || out[0].Name != "Straw man" || out[0].Type != IssueFallacy {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestIssueList_ScanEdgeCases(t *testing.T) {
	var l IssueList
	if err := l.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if l == nil || len(l) != 0 {
		t.Fatalf("Scan(nil) should produce empty list, got %v", l)
	}

	var fromBytes IssueList
	if err := fromBytes.Scan([]byte(`[]`)); err != nil {
		t.Fatalf("Scan bytes error: %v", err)
	}
	if len(fromBytes) != 0 {
		t.Fatalf("expected empty list, got %v", fromBytes)
	}

	var bad IssueList
	if err := bad.Scan(12345); err == nil {
		t.Fatalf("Scan should reject unsupported types")
	}
}

func TestAnalysis_Persisted(t *testing.T) {
	var none Analysis
	if none.Persisted() {
		t.Fatalf("zero-value analysis must not count as persisted")
	}
	stored := Analysis{ID: "a1"}
	if !stored.Persisted() {
		t.Fatalf("analysis with ID must count as persisted")
	}
	var nilA *Analysis
	if nilA.Persisted() {
		t.Fatalf("nil analysis must not count as persisted")
	}
}

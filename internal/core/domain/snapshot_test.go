package domain

import (
	"testing"
	"time"
)

func TestSnapshot_Next(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	portal := &PortalData{Contract: Contract{ID: "c1"}}
	prev := &Snapshot{
		Sequence:      4,
		Mode:          ModePortal,
		Portal:        portal,
		LastError:     "boom",
		LastErrorKind: ErrorKindUnclassified,
	}

	next := prev.Next(now)
	if next == prev {
		t.Fatal("expected a new snapshot value")
	}
	if next.Sequence != 5 {
		t.Errorf("expected sequence 5, got %d", next.Sequence)
	}
	if next.Portal != portal {
		t.Error("expected portal data to carry over")
	}
	if next.LastError != "" || next.LastErrorKind != "" {
		t.Error("expected error fields cleared")
	}
	if prev.LastError != "boom" || prev.Sequence != 4 {
		t.Error("expected previous snapshot untouched")
	}
}

func TestSnapshot_HasPortalData(t *testing.T) {
	var nilSnap *Snapshot
	if nilSnap.HasPortalData() {
		t.Error("nil snapshot has no portal data")
	}
	if (&Snapshot{}).HasPortalData() {
		t.Error("empty snapshot has no portal data")
	}
	if !(&Snapshot{Portal: &PortalData{}}).HasPortalData() {
		t.Error("expected portal data")
	}
}

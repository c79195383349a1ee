package types

import "testing"

func TestReconcileSummaryAdd(t *testing.T) {
	var s ReconcileSummary

	results := []ReconcileResult{
		{Status: StatusUpdated},
		{Status: StatusUpdated},
		{Status: StatusSkipped},
		{Status: StatusMissingField},
		{Status: StatusNoEmail},
		{Status: StatusError},
		{Status: ReconcileStatus("unknown")}, // counted as an error
	}
	for _, r := range results {
		s.Add(r)
	}

	if s.Updated != 2 {
		t.Errorf("Updated = %d, want 2", s.Updated)
	}
	if s.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", s.Skipped)
	}
	if s.MissingField != 1 {
		t.Errorf("MissingField = %d, want 1", s.MissingField)
	}
	if s.NoEmail != 1 {
		t.Errorf("NoEmail = %d, want 1", s.NoEmail)
	}
	if s.Errors != 2 {
		t.Errorf("Errors = %d, want 2", s.Errors)
	}
	if s.Total() != len(results) {
		t.Errorf("Total() = %d, want %d", s.Total(), len(results))
	}
}

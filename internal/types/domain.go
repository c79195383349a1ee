// Package types defines the shared domain model for stripelink: the error
// taxonomy, redacted secrets, request context helpers, and the member and
// reconciliation value types exchanged between the directory, the Stripe
// gateway, and the reconciliation engine.
package types

// Member is a directory record as seen by this service. The Stripe
// customer id is not part of the struct; it lives in a dynamically
// configured member field accessed through the directory's field API.
type Member struct {
	ID    int64
	Email string
}

// ReconcileStatus is the closed set of per-member outcomes produced by a
// reconciliation run.
type ReconcileStatus string

const (
	StatusUpdated      ReconcileStatus = "updated"
	StatusSkipped      ReconcileStatus = "skipped"
	StatusMissingField ReconcileStatus = "missing_field"
	StatusNoEmail      ReconcileStatus = "no_email"
	StatusError        ReconcileStatus = "error"
)

// ReconcileResult is the ephemeral per-member outcome of a reconciliation
// run. Results are aggregated by the caller and never persisted.
type ReconcileResult struct {
	Status     ReconcileStatus `json:"status"`
	MemberID   int64           `json:"member_id"`
	Email      string          `json:"email"`
	CustomerID string          `json:"customer_id,omitempty"`
	Message    string          `json:"message,omitempty"`
	DryRun     bool            `json:"dry_run"`
}

// ReconcileSummary aggregates result counts for a reconciliation run.
type ReconcileSummary struct {
	Updated      int `json:"updated"`
	Skipped      int `json:"skipped"`
	MissingField int `json:"missing_field"`
	NoEmail      int `json:"no_email"`
	Errors       int `json:"errors"`
}

// Add counts one result into the summary.
func (s *ReconcileSummary) Add(r ReconcileResult) {
	switch r.Status {
	case StatusUpdated:
		s.Updated++
	case StatusSkipped:
		s.Skipped++
	case StatusMissingField:
		s.MissingField++
	case StatusNoEmail:
		s.NoEmail++
	default:
		s.Errors++
	}
}

// Total returns the number of results counted so far.
func (s *ReconcileSummary) Total() int {
	return s.Updated + s.Skipped + s.MissingField + s.NoEmail + s.Errors
}

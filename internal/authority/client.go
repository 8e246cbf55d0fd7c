// Package authority is the boundary to the tax authority's reporting API.
package authority

import "context"

// Classification sorts a submission result into the three cases the
// orchestrator acts on.
type Classification string

const (
	// Accepted means the authority recorded the document.
	Accepted Classification = "ACCEPTED"
	// Rejected means the authority refused the document. Resubmitting the
	// same bytes would be refused again.
	Rejected Classification = "REJECTED"
	// Transient means the attempt failed without a verdict and may be
	// retried: timeouts, transport failures, authority-side errors.
	Transient Classification = "TRANSIENT"
)

// Outcome is the result of one submission attempt.
type Outcome struct {
	Classification Classification
	AuthorityID    string
	Message        string
	Warnings       []string
}

// Client submits sealed documents for reporting. docB64 is the base64
// transport form of the document, hash its hex SHA-256.
type Client interface {
	Submit(ctx context.Context, docB64, hash string) (Outcome, error)
}

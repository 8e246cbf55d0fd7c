package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Outcome carries the result of one submission attempt, applied atomically
// to the invoice row.
type Outcome struct {
	Status    InvoiceStatus
	Retryable bool

	// CountAttempt marks a failure that consumed a retry attempt. Transient
	// failures set it; rejections and local validation failures do not, so
	// retry_count stays a count of transient attempts.
	CountAttempt bool

	DocumentHash *string
	AuthorityID  *string
	LastError    *string
	SubmittedAt  *time.Time
}

// Repository is the record store boundary for invoices.
type Repository interface {
	FindByExternalRef(ctx context.Context, ref string) (*Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invoice, error)

	// InsertNew stores an invoice with its lines in one transaction.
	// Returns ErrDuplicateKey when the external ref or invoice number
	// already exists.
	InsertNew(ctx context.Context, inv *Invoice) error

	// SelectAndMarkInProgress atomically claims up to limit invoices that
	// are PENDING or retry-eligible FAILED (retry count below maxRetries)
	// and transitions them to IN_PROGRESS. No invoice is ever returned to
	// two concurrent callers.
	SelectAndMarkInProgress(ctx context.Context, limit, maxRetries int, now time.Time) ([]Invoice, error)

	// UpdateOutcome records the submission result for a claimed invoice.
	UpdateOutcome(ctx context.Context, id snowflake.ID, out Outcome, now time.Time) error

	// ReleaseStale re-offers IN_PROGRESS invoices claimed before cutoff as
	// retry-eligible FAILED. Returns the number of recovered rows.
	ReleaseStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error)

	CountByStatus(ctx context.Context) (map[InvoiceStatus]int64, error)
	List(ctx context.Context, req ListRequest) ([]Invoice, error)
}

// ListRequest filters the invoice listing.
type ListRequest struct {
	Status *InvoiceStatus
	Limit  int
	Offset int
}

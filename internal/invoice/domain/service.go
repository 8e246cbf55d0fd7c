package domain

import "context"

// Artifact is the sealed submission document exposed for audit and display.
type Artifact struct {
	InvoiceID    string `json:"invoice_id"`
	DocumentB64  string `json:"document"`
	DocumentHash string `json:"document_hash"`
	QRPayload    string `json:"qr_payload"`
}

// Service exposes read queries over the record store to the API surface.
type Service interface {
	List(ctx context.Context, req ListRequest) ([]Invoice, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	StatusCounts(ctx context.Context) (map[string]int64, error)

	// Artifact rebuilds the sealed document for a stored invoice.
	Artifact(ctx context.Context, id string) (Artifact, error)
}

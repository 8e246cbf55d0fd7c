// Package domain contains persistence models for the invoice pipeline.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending    InvoiceStatus = "PENDING"
	InvoiceStatusInProgress InvoiceStatus = "IN_PROGRESS"
	InvoiceStatusDone       InvoiceStatus = "DONE"
	InvoiceStatusFailed     InvoiceStatus = "FAILED"
)

// Statuses lists all lifecycle states in display order.
var Statuses = []InvoiceStatus{
	InvoiceStatusPending,
	InvoiceStatusInProgress,
	InvoiceStatusDone,
	InvoiceStatusFailed,
}

// Invoice is the unit of work the pipeline drives from ingestion to
// authority acceptance.
//
// ExternalRef is the stable identifier from the source feed and the sole
// ingestion dedup key. Status, DocumentHash, AuthorityID and LastError are
// written exclusively by the submitter.
type Invoice struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	ExternalRef   string          `gorm:"type:text;not null;uniqueIndex:ux_invoices_external_ref" json:"external_ref"`
	InvoiceNumber string          `gorm:"type:text;not null;uniqueIndex:ux_invoices_number" json:"invoice_number"`
	SellerName    string          `gorm:"type:text;not null" json:"seller_name"`
	SellerAddress string          `gorm:"type:text;not null" json:"seller_address"`
	VATNumber     string          `gorm:"type:text;not null" json:"vat_number"`
	CustomerName  string          `gorm:"type:text" json:"customer_name"`
	AccountID     string          `gorm:"type:text" json:"account_id"`
	IssuedAt      time.Time       `gorm:"not null" json:"issued_at"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	TaxAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax_amount"`
	NetTotal      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"net_total"`

	Status     InvoiceStatus `gorm:"type:text;not null;default:'PENDING';index" json:"status"`
	Retryable  bool          `gorm:"not null;default:false" json:"retryable"`
	RetryCount int           `gorm:"not null;default:0" json:"retry_count"`

	DocumentHash *string    `gorm:"type:text" json:"document_hash,omitempty"`
	AuthorityID  *string    `gorm:"type:text" json:"authority_id,omitempty"`
	SubmittedAt  *time.Time `gorm:"" json:"submitted_at,omitempty"`
	LastError    *string    `gorm:"type:text" json:"last_error,omitempty"`
	ClaimedAt    *time.Time `gorm:"" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Lines []InvoiceLine `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"lines"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Terminal reports whether the invoice can never be selected for submission again.
func (i Invoice) Terminal() bool {
	switch i.Status {
	case InvoiceStatusDone:
		return true
	case InvoiceStatusFailed:
		return !i.Retryable
	default:
		return false
	}
}

// InvoiceLine is one line on an invoice. Lines are owned by their invoice
// and removed with it.
type InvoiceLine struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID snowflake.ID    `gorm:"not null;index" json:"-"`
	Name      string          `gorm:"type:text;not null" json:"name"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TaxAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax_amount"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceLine) TableName() string { return "invoice_lines" }

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/salloumtech/fatoora/internal/invoice/domain"
	"github.com/salloumtech/fatoora/pkg/db"
)

type repo struct {
	db *gorm.DB
}

// Provide builds the gorm-backed record store.
func Provide(gdb *gorm.DB) domain.Repository {
	return &repo{db: gdb}
}

func (r *repo) FindByExternalRef(ctx context.Context, ref string) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("external_ref = ?", ref).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repo) GetByID(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", id).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repo) InsertNew(ctx context.Context, inv *domain.Invoice) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(inv).Error
	})
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateKey
	}
	return err
}

// SelectAndMarkInProgress claims work in two steps: a candidate scan, then a
// per-row conditional UPDATE whose affected-row count is the claim proof. A
// row claimed by a concurrent worker between the two steps fails its UPDATE
// predicate and is skipped, so no invoice is handed out twice.
func (r *repo) SelectAndMarkInProgress(ctx context.Context, limit, maxRetries int, now time.Time) ([]domain.Invoice, error) {
	if limit <= 0 {
		return nil, nil
	}

	var candidates []struct{ ID snowflake.ID }
	err := r.db.WithContext(ctx).Raw(
		`SELECT id
		 FROM invoices
		 WHERE status = ?
		    OR (status = ? AND retryable AND retry_count < ?)
		 ORDER BY id
		 LIMIT ?`,
		domain.InvoiceStatusPending,
		domain.InvoiceStatusFailed,
		maxRetries,
		limit,
	).Scan(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]domain.Invoice, 0, len(candidates))
	for _, c := range candidates {
		res := r.db.WithContext(ctx).Exec(
			`UPDATE invoices
			 SET status = ?, claimed_at = ?, updated_at = ?
			 WHERE id = ?
			   AND (status = ?
			        OR (status = ? AND retryable AND retry_count < ?))`,
			domain.InvoiceStatusInProgress,
			now,
			now,
			c.ID,
			domain.InvoiceStatusPending,
			domain.InvoiceStatusFailed,
			maxRetries,
		)
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 0 {
			// lost the race for this row
			continue
		}
		var inv domain.Invoice
		if err := r.db.WithContext(ctx).Preload("Lines").First(&inv, "id = ?", c.ID).Error; err != nil {
			return claimed, err
		}
		claimed = append(claimed, inv)
	}
	return claimed, nil
}

func (r *repo) UpdateOutcome(ctx context.Context, id snowflake.ID, out domain.Outcome, now time.Time) error {
	updates := map[string]any{
		"status":     out.Status,
		"retryable":  out.Retryable,
		"claimed_at": nil,
		"updated_at": now,
	}
	if out.CountAttempt {
		updates["retry_count"] = gorm.Expr("retry_count + 1")
	}
	if out.DocumentHash != nil {
		updates["document_hash"] = *out.DocumentHash
	}
	if out.AuthorityID != nil {
		updates["authority_id"] = *out.AuthorityID
	}
	if out.SubmittedAt != nil {
		updates["submitted_at"] = *out.SubmittedAt
	}
	updates["last_error"] = out.LastError

	res := r.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ? AND status = ?", id, domain.InvoiceStatusInProgress).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInvalidStatus
	}
	return nil
}

func (r *repo) ReleaseStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error) {
	staleErr := "claim expired before an outcome was recorded"
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, retryable = ?, retry_count = retry_count + 1,
		     last_error = ?, claimed_at = NULL, updated_at = ?
		 WHERE status = ? AND claimed_at IS NOT NULL AND claimed_at < ?`,
		domain.InvoiceStatusFailed,
		true,
		staleErr,
		now,
		domain.InvoiceStatusInProgress,
		cutoff,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) CountByStatus(ctx context.Context) (map[domain.InvoiceStatus]int64, error) {
	var rows []struct {
		Status domain.InvoiceStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.InvoiceStatus]int64, len(domain.Statuses))
	for _, s := range domain.Statuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *repo) List(ctx context.Context, req domain.ListRequest) ([]domain.Invoice, error) {
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := r.db.WithContext(ctx).
		Preload("Lines").
		Order("id DESC").
		Limit(limit).
		Offset(req.Offset)
	if req.Status != nil {
		q = q.Where("status = ?", *req.Status)
	}

	var invoices []domain.Invoice
	if err := q.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

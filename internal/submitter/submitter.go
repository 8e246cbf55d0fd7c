// Package submitter drives claimed invoices through build, seal and
// authority reporting.
package submitter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/salloumtech/fatoora/internal/authority"
	"github.com/salloumtech/fatoora/internal/clock"
	"github.com/salloumtech/fatoora/internal/config"
	"github.com/salloumtech/fatoora/internal/document"
	"github.com/salloumtech/fatoora/internal/invoice/domain"
	obsmetrics "github.com/salloumtech/fatoora/internal/observability/metrics"
	"github.com/salloumtech/fatoora/internal/qr"
)

// Result summarizes one batch pass.
type Result struct {
	Processed int `json:"processed"`
	Succeeded int `json:"success"`
	Failed    int `json:"failed"`
}

// Submitter is the submission orchestrator. All status transitions of
// claimed invoices go through it.
type Submitter struct {
	repo   domain.Repository
	client authority.Client
	holder *config.SubmissionPolicyHolder
	clock  clock.Clock
	log    *zap.Logger
}

func New(
	repo domain.Repository,
	client authority.Client,
	holder *config.SubmissionPolicyHolder,
	clk clock.Clock,
	log *zap.Logger,
) *Submitter {
	return &Submitter{
		repo:   repo,
		client: client,
		holder: holder,
		clock:  clk,
		log:    log.Named("submitter"),
	}
}

// ProcessBatch claims up to limit eligible invoices and submits them
// concurrently. One invoice's failure never aborts the batch; every claimed
// row leaves with a recorded outcome. limit <= 0 uses the policy batch size.
func (s *Submitter) ProcessBatch(ctx context.Context, limit int) (Result, error) {
	policy := s.holder.Get()
	if limit <= 0 || limit > policy.BatchSize {
		limit = policy.BatchSize
	}
	start := time.Now()
	metrics := obsmetrics.Submitter()
	defer func() { metrics.ObserveBatch(time.Since(start)) }()

	claimed, err := s.repo.SelectAndMarkInProgress(ctx, limit, policy.MaxRetries, s.clock.Now())
	if err != nil {
		return Result{}, err
	}
	if len(claimed) == 0 {
		return Result{}, nil
	}

	var (
		mu  sync.Mutex
		res Result
		wg  sync.WaitGroup
	)
	sem := make(chan struct{}, policy.Concurrency)
	for i := range claimed {
		inv := claimed[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			succeeded := s.submitOne(ctx, &inv, policy)
			mu.Lock()
			res.Processed++
			if succeeded {
				res.Succeeded++
			} else {
				res.Failed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.log.Info("batch processed",
		zap.Int("processed", res.Processed),
		zap.Int("success", res.Succeeded),
		zap.Int("failed", res.Failed))
	return res, nil
}

// submitOne takes a claimed invoice to a terminal or retryable outcome.
// Reports whether the invoice reached DONE.
func (s *Submitter) submitOne(ctx context.Context, inv *domain.Invoice, policy config.SubmissionPolicy) bool {
	metrics := obsmetrics.Submitter()
	log := s.log.With(
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber))

	doc, err := document.Build(inv)
	if err == nil {
		_, err = qr.Encode(qr.Payload{
			SellerName: inv.SellerName,
			VATNumber:  inv.VATNumber,
			IssuedAt:   inv.IssuedAt,
			GrossTotal: inv.NetTotal,
			TaxTotal:   inv.TaxAmount,
		})
	}
	if err != nil {
		// local build failures are permanent, nothing goes on the wire
		var verr *domain.ValidationError
		var eerr *qr.EncodingError
		if !errors.As(err, &verr) && !errors.As(err, &eerr) {
			log.Error("unexpected build failure", zap.Error(err))
		}
		metrics.IncProcessed(obsmetrics.OutcomeInvalid)
		s.recordOutcome(ctx, inv.ID, domain.Outcome{
			Status:    domain.InvoiceStatusFailed,
			Retryable: false,
			LastError: truncated(err.Error()),
		})
		return false
	}

	transport, hash := document.Seal(doc)
	if inv.DocumentHash != nil && *inv.DocumentHash != hash {
		log.Warn("document hash drifted since last attempt",
			zap.String("previous", *inv.DocumentHash),
			zap.String("current", hash))
	}

	submitCtx, cancel := context.WithTimeout(ctx, policy.SubmitTimeout)
	out, err := s.client.Submit(submitCtx, transport, hash)
	cancel()
	if err != nil {
		out = authority.Outcome{Classification: authority.Transient, Message: err.Error()}
	}

	now := s.clock.Now()
	switch out.Classification {
	case authority.Accepted:
		if len(out.Warnings) > 0 {
			log.Info("accepted with warnings", zap.Strings("warnings", out.Warnings))
		}
		metrics.IncProcessed(obsmetrics.OutcomeAccepted)
		s.recordOutcome(ctx, inv.ID, domain.Outcome{
			Status:       domain.InvoiceStatusDone,
			DocumentHash: &hash,
			AuthorityID:  &out.AuthorityID,
			SubmittedAt:  &now,
		})
		return true

	case authority.Rejected:
		log.Warn("authority rejected invoice", zap.String("reason", out.Message))
		metrics.IncProcessed(obsmetrics.OutcomeRejected)
		s.recordOutcome(ctx, inv.ID, domain.Outcome{
			Status:       domain.InvoiceStatusFailed,
			Retryable:    false,
			DocumentHash: &hash,
			LastError:    truncated(out.Message),
		})
		return false

	default:
		// retryable until the ceiling; the claim already counted this
		// attempt, so the row written now carries RetryCount+1
		retryable := inv.RetryCount+1 < policy.MaxRetries
		log.Warn("transient submission failure",
			zap.String("reason", out.Message),
			zap.Int("retry_count", inv.RetryCount+1),
			zap.Bool("retryable", retryable))
		metrics.IncProcessed(obsmetrics.OutcomeTransient)
		s.recordOutcome(ctx, inv.ID, domain.Outcome{
			Status:       domain.InvoiceStatusFailed,
			Retryable:    retryable,
			CountAttempt: true,
			DocumentHash: &hash,
			LastError:    truncated(out.Message),
		})
		return false
	}
}

// recordOutcome must not lose a verdict. A row whose write fails stays
// IN_PROGRESS and is picked up by the recovery sweep.
func (s *Submitter) recordOutcome(ctx context.Context, id snowflake.ID, out domain.Outcome) {
	if err := s.repo.UpdateOutcome(ctx, id, out, s.clock.Now()); err != nil {
		s.log.Error("failed to record outcome",
			zap.String("invoice_id", id.String()),
			zap.String("status", string(out.Status)),
			zap.Error(err))
	}
}

func truncated(msg string) *string {
	const max = 1000
	if len(msg) > max {
		msg = msg[:max]
	}
	return &msg
}

// RecoverySweep re-offers IN_PROGRESS rows whose claim outlived the stale
// threshold. Their retry count is incremented so a crash looping worker
// cannot spin the same invoice forever.
func (s *Submitter) RecoverySweep(ctx context.Context) (int64, error) {
	policy := s.holder.Get()
	now := s.clock.Now()
	n, err := s.repo.ReleaseStale(ctx, now.Add(-policy.StaleThreshold), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Warn("recovered stale claims", zap.Int64("count", n))
		obsmetrics.Submitter().AddStaleRecovered(n)
	}
	return n, nil
}

// RunForever drives batches on the policy interval until ctx is canceled.
func (s *Submitter) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.holder.Get().RunInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RecoverySweep(ctx); err != nil {
			s.log.Warn("recovery sweep failed", zap.Error(err))
		}
		if _, err := s.ProcessBatch(ctx, 0); err != nil {
			s.log.Warn("batch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// the interval may have been hot-reloaded between passes
			ticker.Reset(s.holder.Get().RunInterval)
		}
	}
}

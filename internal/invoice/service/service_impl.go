package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/salloumtech/fatoora/internal/document"
	"github.com/salloumtech/fatoora/internal/invoice/domain"
	"github.com/salloumtech/fatoora/internal/qr"
)

type service struct {
	repo domain.Repository
	log  *zap.Logger
}

// Provide builds the invoice read service.
func Provide(repo domain.Repository, log *zap.Logger) domain.Service {
	return &service{repo: repo, log: log.Named("invoice")}
}

func (s *service) List(ctx context.Context, req domain.ListRequest) ([]domain.Invoice, error) {
	return s.repo.List(ctx, req)
}

func (s *service) GetByID(ctx context.Context, id string) (domain.Invoice, error) {
	sid, err := snowflake.ParseString(id)
	if err != nil {
		return domain.Invoice{}, domain.ErrInvalidID
	}
	inv, err := s.repo.GetByID(ctx, sid)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *inv, nil
}

func (s *service) StatusCounts(ctx context.Context) (map[string]int64, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out, nil
}

// Artifact rebuilds the sealed document from the stored row. The build is
// deterministic, so the hash always matches the one recorded at submission.
func (s *service) Artifact(ctx context.Context, id string) (domain.Artifact, error) {
	inv, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Artifact{}, err
	}

	doc, err := document.Build(&inv)
	if err != nil {
		s.log.Warn("stored invoice no longer builds",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err))
		return domain.Artifact{}, domain.ErrNoDocument
	}
	transport, hash := document.Seal(doc)

	payload, err := qr.Encode(qr.Payload{
		SellerName: inv.SellerName,
		VATNumber:  inv.VATNumber,
		IssuedAt:   inv.IssuedAt,
		GrossTotal: inv.NetTotal,
		TaxTotal:   inv.TaxAmount,
	})
	if err != nil {
		return domain.Artifact{}, err
	}

	return domain.Artifact{
		InvoiceID:    inv.ID.String(),
		DocumentB64:  transport,
		DocumentHash: hash,
		QRPayload:    payload,
	}, nil
}

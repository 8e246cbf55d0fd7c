// Package ingest loads invoice feeds into the record store.
//
// A batch is two CSV feeds: a header feed with one row per invoice and a
// line feed keyed by the same external reference. The external reference is
// the sole dedup key, so re-running a batch only inserts what is missing.
package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/salloumtech/fatoora/internal/invoice/domain"
	obsmetrics "github.com/salloumtech/fatoora/internal/observability/metrics"
	"github.com/salloumtech/fatoora/internal/tax"
)

var headerColumns = []string{
	"external_ref", "invoice_number", "seller_name", "seller_address",
	"vat_number", "customer_name", "account_id", "issued_at",
	"subtotal", "tax_amount", "net_total",
}

var lineColumns = []string{"external_ref", "name", "quantity", "unit_price"}

// Result summarizes one batch run.
type Result struct {
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
	Malformed int `json:"malformed"`
}

// Service parses feeds and inserts new invoices with status PENDING.
type Service struct {
	repo domain.Repository
	node *snowflake.Node
	log  *zap.Logger
}

func NewService(repo domain.Repository, node *snowflake.Node, log *zap.Logger) *Service {
	return &Service{repo: repo, node: node, log: log.Named("ingest")}
}

// Ingest imports one batch. Already-imported references are skipped, rows
// that fail validation are counted and logged. Neither aborts the batch, so
// a partially imported batch can simply be run again.
func (s *Service) Ingest(ctx context.Context, headers io.Reader, lines io.Reader) (Result, error) {
	lineRows, err := readFeed(lines, lineColumns)
	if err != nil {
		return Result{}, fmt.Errorf("line feed: %w", err)
	}
	linesByRef := make(map[string][]domain.InvoiceLine)
	res := Result{}
	for i, row := range lineRows {
		line, ref, err := s.parseLine(row)
		if err != nil {
			res.Malformed++
			s.log.Warn("malformed line row", zap.Int("row", i+2), zap.Error(err))
			continue
		}
		linesByRef[ref] = append(linesByRef[ref], line)
	}

	headerRows, err := readFeed(headers, headerColumns)
	if err != nil {
		return Result{}, fmt.Errorf("header feed: %w", err)
	}
	for i, row := range headerRows {
		inv, err := s.parseHeader(row)
		if err != nil {
			res.Malformed++
			s.log.Warn("malformed header row", zap.Int("row", i+2), zap.Error(err))
			continue
		}

		if _, err := s.repo.FindByExternalRef(ctx, inv.ExternalRef); err == nil {
			res.Skipped++
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return res, err
		}

		inv.Lines = s.attachLines(inv, linesByRef[inv.ExternalRef])
		if err := s.verifyTotals(inv); err != nil {
			res.Malformed++
			s.log.Warn("inconsistent totals",
				zap.String("external_ref", inv.ExternalRef), zap.Error(err))
			continue
		}

		switch err := s.repo.InsertNew(ctx, inv); {
		case err == nil:
			res.Inserted++
		case errors.Is(err, domain.ErrDuplicateKey):
			res.Skipped++
		default:
			return res, err
		}
	}

	metrics := obsmetrics.Submitter()
	metrics.AddIngested("inserted", res.Inserted)
	metrics.AddIngested("skipped", res.Skipped)
	metrics.AddIngested("malformed", res.Malformed)

	s.log.Info("batch ingested",
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("malformed", res.Malformed))
	return res, nil
}

func (s *Service) parseHeader(row map[string]string) (*domain.Invoice, error) {
	for _, field := range []string{"external_ref", "invoice_number", "seller_name", "seller_address", "vat_number"} {
		if row[field] == "" {
			return nil, domain.NewValidationError(field, "must not be empty")
		}
	}

	issuedAt, err := parseDate(row["issued_at"])
	if err != nil {
		return nil, domain.NewValidationError("issued_at", err.Error())
	}
	subtotal, err := decimal.NewFromString(row["subtotal"])
	if err != nil {
		return nil, domain.NewValidationError("subtotal", err.Error())
	}
	taxAmount, err := decimal.NewFromString(row["tax_amount"])
	if err != nil {
		return nil, domain.NewValidationError("tax_amount", err.Error())
	}
	netTotal, err := decimal.NewFromString(row["net_total"])
	if err != nil {
		return nil, domain.NewValidationError("net_total", err.Error())
	}

	return &domain.Invoice{
		ID:            s.node.Generate(),
		ExternalRef:   row["external_ref"],
		InvoiceNumber: row["invoice_number"],
		SellerName:    row["seller_name"],
		SellerAddress: row["seller_address"],
		VATNumber:     row["vat_number"],
		CustomerName:  row["customer_name"],
		AccountID:     row["account_id"],
		IssuedAt:      issuedAt,
		Subtotal:      subtotal.Round(2),
		TaxAmount:     taxAmount.Round(2),
		NetTotal:      netTotal.Round(2),
		Status:        domain.InvoiceStatusPending,
	}, nil
}

func (s *Service) parseLine(row map[string]string) (domain.InvoiceLine, string, error) {
	ref := row["external_ref"]
	if ref == "" {
		return domain.InvoiceLine{}, "", domain.NewValidationError("external_ref", "must not be empty")
	}
	if row["name"] == "" {
		return domain.InvoiceLine{}, "", domain.NewValidationError("name", "must not be empty")
	}
	qty, err := strconv.ParseInt(row["quantity"], 10, 64)
	if err != nil {
		return domain.InvoiceLine{}, "", domain.NewValidationError("quantity", err.Error())
	}
	price, err := decimal.NewFromString(row["unit_price"])
	if err != nil {
		return domain.InvoiceLine{}, "", domain.NewValidationError("unit_price", err.Error())
	}
	if _, _, err := tax.ComputeLine(qty, price, tax.StandardRate); err != nil {
		return domain.InvoiceLine{}, "", domain.NewValidationError("line", err.Error())
	}
	return domain.InvoiceLine{
		Name:      row["name"],
		Quantity:  qty,
		UnitPrice: price.Round(2),
	}, ref, nil
}

func (s *Service) attachLines(inv *domain.Invoice, lines []domain.InvoiceLine) []domain.InvoiceLine {
	out := make([]domain.InvoiceLine, 0, len(lines))
	for _, line := range lines {
		_, lineTax, _ := tax.ComputeLine(line.Quantity, line.UnitPrice, tax.StandardRate)
		line.ID = s.node.Generate()
		line.InvoiceID = inv.ID
		line.TaxAmount = lineTax
		out = append(out, line)
	}
	return out
}

// verifyTotals rejects records whose declared totals disagree with the line
// sum or with the standard rate arithmetic. These never become submittable,
// so they are refused at the door instead of failing later in the pipeline.
func (s *Service) verifyTotals(inv *domain.Invoice) error {
	if len(inv.Lines) == 0 {
		return domain.NewValidationError("lines", "no lines for external_ref")
	}
	sum := decimal.Zero
	for _, line := range inv.Lines {
		lineTotal, _, err := tax.ComputeLine(line.Quantity, line.UnitPrice, tax.StandardRate)
		if err != nil {
			return err
		}
		sum = sum.Add(lineTotal)
	}
	if !tax.WithinTolerance(sum, inv.Subtotal) {
		return domain.NewValidationError("subtotal",
			fmt.Sprintf("line sum %s, declared %s", sum.StringFixed(2), inv.Subtotal.StringFixed(2)))
	}
	wantTax, wantGross, err := tax.Compute(inv.Subtotal, tax.StandardRate)
	if err != nil {
		return domain.NewValidationError("subtotal", err.Error())
	}
	if !tax.WithinTolerance(wantTax, inv.TaxAmount) {
		return domain.NewValidationError("tax_amount",
			fmt.Sprintf("expected %s, declared %s", wantTax.StringFixed(2), inv.TaxAmount.StringFixed(2)))
	}
	if !tax.WithinTolerance(wantGross, inv.NetTotal) {
		return domain.NewValidationError("net_total",
			fmt.Sprintf("expected %s, declared %s", wantGross.StringFixed(2), inv.NetTotal.StringFixed(2)))
	}
	return nil
}

// readFeed parses a CSV feed into keyed rows. The first record is the header
// and must contain every expected column; extra columns are ignored. A UTF-8
// BOM on the first cell is tolerated.
func readFeed(r io.Reader, want []string) ([]map[string]string, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range want {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(want))
		for _, col := range want {
			i := index[col]
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006/01/02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}

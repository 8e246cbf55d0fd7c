// Package seed loads demo invoices so a fresh local install has something
// to submit.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	invoicedomain "github.com/salloumtech/fatoora/internal/invoice/domain"
	"github.com/salloumtech/fatoora/internal/tax"
)

type demoRecord struct {
	ref      string
	number   string
	customer string
	issued   time.Time
	lines    []demoLine
}

type demoLine struct {
	name  string
	qty   int64
	price string
}

var demoRecords = []demoRecord{
	{
		ref: "demo-0001", number: "INV-DEMO-0001", customer: "Al Noor Trading",
		issued: time.Date(2026, 1, 12, 10, 15, 0, 0, time.UTC),
		lines: []demoLine{
			{name: "Thermal printer roll", qty: 10, price: "4.50"},
			{name: "Cash drawer", qty: 1, price: "180.00"},
		},
	},
	{
		ref: "demo-0002", number: "INV-DEMO-0002", customer: "Desert Rose LLC",
		issued: time.Date(2026, 1, 13, 14, 40, 0, 0, time.UTC),
		lines: []demoLine{
			{name: "Barcode scanner", qty: 2, price: "95.00"},
		},
	},
	{
		ref: "demo-0003", number: "INV-DEMO-0003", customer: "Gulf Retail Group",
		issued: time.Date(2026, 1, 15, 9, 5, 0, 0, time.UTC),
		lines: []demoLine{
			{name: "Receipt paper case", qty: 5, price: "32.00"},
			{name: "Label rolls", qty: 12, price: "6.25"},
		},
	},
}

// SellerIdentity is stamped on every seeded invoice.
type SellerIdentity struct {
	Name    string
	Address string
	VAT     string
}

// EnsureDemoInvoices inserts the demo batch once. Reruns are no-ops because
// the external refs already exist.
func EnsureDemoInvoices(db *gorm.DB, seller SellerIdentity) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if seller.Name == "" {
		seller.Name = "Fatoora Demo Trading Co"
	}
	if seller.Address == "" {
		seller.Address = "King Fahd Road, Riyadh"
	}
	if seller.VAT == "" {
		seller.VAT = "399999999900003"
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range demoRecords {
			var existing invoicedomain.Invoice
			err := tx.Where("external_ref = ?", rec.ref).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			inv := buildDemoInvoice(node, rec, seller)
			if err := tx.Create(inv).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func buildDemoInvoice(node *snowflake.Node, rec demoRecord, seller SellerIdentity) *invoicedomain.Invoice {
	inv := &invoicedomain.Invoice{
		ID:            node.Generate(),
		ExternalRef:   rec.ref,
		InvoiceNumber: rec.number,
		SellerName:    seller.Name,
		SellerAddress: seller.Address,
		VATNumber:     seller.VAT,
		CustomerName:  rec.customer,
		IssuedAt:      rec.issued,
		Status:        invoicedomain.InvoiceStatusPending,
	}

	subtotal := decimal.Zero
	for _, l := range rec.lines {
		price := decimal.RequireFromString(l.price)
		lineTotal, lineTax, _ := tax.ComputeLine(l.qty, price, tax.StandardRate)
		subtotal = subtotal.Add(lineTotal)
		inv.Lines = append(inv.Lines, invoicedomain.InvoiceLine{
			ID:        node.Generate(),
			InvoiceID: inv.ID,
			Name:      l.name,
			Quantity:  l.qty,
			UnitPrice: price,
			TaxAmount: lineTax,
		})
	}
	taxAmount, gross, _ := tax.Compute(subtotal, tax.StandardRate)
	inv.Subtotal = subtotal
	inv.TaxAmount = taxAmount
	inv.NetTotal = gross
	return inv
}

package document

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/salloumtech/fatoora/internal/invoice/domain"
	"github.com/salloumtech/fatoora/internal/tax"
)

// Document holds the canonical XML bytes for an invoice. The same invoice
// always produces the same bytes, so the integrity hash is stable across
// rebuilds.
type Document struct {
	Bytes []byte
}

// Build renders an invoice as a UBL 2.1 document after validating that its
// stored totals are internally consistent. Validation failures are permanent:
// the row will never become submittable without being corrected upstream.
func Build(inv *domain.Invoice) (*Document, error) {
	if err := validate(inv); err != nil {
		return nil, err
	}

	issuedAt := inv.IssuedAt.UTC()
	doc := ublInvoice{
		Xmlns:           xmlnsInvoice,
		XmlnsCAC:        xmlnsCAC,
		XmlnsCBC:        xmlnsCBC,
		CustomizationID: customizationID,
		ProfileID:       profileID,
		ID:              inv.InvoiceNumber,
		UUID:            inv.ID.String(),
		IssueDate:       issuedAt.Format("2006-01-02"),
		IssueTime:       issuedAt.Format("15:04:05"),
		InvoiceTypeCode: invoiceTypeCode,
		CurrencyCode:    currencyCode,
		TaxCurrencyCode: currencyCode,
		SupplierParty: ublSupplierParty{
			Party: ublParty{
				Name: ublName{Name: inv.SellerName},
				Address: ublAddress{
					StreetName: inv.SellerAddress,
					Country:    ublCountry{IdentificationCode: "SA"},
				},
				TaxScheme: ublPartyScheme{
					CompanyID: inv.VATNumber,
					TaxScheme: ublSchemeRef{ID: taxSchemeVAT},
				},
			},
		},
		CustomerParty: ublCustomerParty{
			Party: ublPartyName{Name: ublName{Name: inv.CustomerName}},
		},
		TaxTotal: ublTaxTotal{
			TaxAmount: amount(inv.TaxAmount.StringFixed(2)),
			TaxSubtotal: ublTaxSubtotal{
				TaxableAmount: amount(inv.Subtotal.StringFixed(2)),
				TaxAmount:     amount(inv.TaxAmount.StringFixed(2)),
				TaxCategory: ublTaxCategory{
					ID:        taxCategoryStd,
					Percent:   tax.StandardRate.Mul(decimal.NewFromInt(100)).StringFixed(2),
					TaxScheme: ublSchemeRef{ID: taxSchemeVAT},
				},
			},
		},
		MonetaryTotal: ublMonetaryTotal{
			LineExtensionAmount: amount(inv.Subtotal.StringFixed(2)),
			TaxExclusiveAmount:  amount(inv.Subtotal.StringFixed(2)),
			TaxInclusiveAmount:  amount(inv.NetTotal.StringFixed(2)),
			PayableAmount:       amount(inv.NetTotal.StringFixed(2)),
		},
	}

	for i, line := range inv.Lines {
		lineTotal, lineTax, _ := tax.ComputeLine(line.Quantity, line.UnitPrice, tax.StandardRate)
		doc.Lines = append(doc.Lines, ublInvoiceLine{
			ID:                  strconv.Itoa(i + 1),
			InvoicedQuantity:    ublQuantity{UnitCode: unitCodePiece, Value: strconv.FormatInt(line.Quantity, 10)},
			LineExtensionAmount: amount(lineTotal.StringFixed(2)),
			Item:                ublName{Name: line.Name},
			Price:               ublPrice{PriceAmount: amount(line.UnitPrice.StringFixed(2))},
			TaxTotal:            ublLineTax{TaxAmount: amount(lineTax.StringFixed(2))},
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal invoice %s: %w", inv.InvoiceNumber, err)
	}
	return &Document{Bytes: append([]byte(xml.Header), body...)}, nil
}

func validate(inv *domain.Invoice) error {
	switch {
	case inv.SellerName == "":
		return domain.NewValidationError("seller_name", "must not be empty")
	case inv.VATNumber == "":
		return domain.NewValidationError("vat_number", "must not be empty")
	case inv.SellerAddress == "":
		return domain.NewValidationError("seller_address", "must not be empty")
	case inv.InvoiceNumber == "":
		return domain.NewValidationError("invoice_number", "must not be empty")
	case len(inv.Lines) == 0:
		return domain.NewValidationError("lines", "invoice has no lines")
	}

	lineSum := decimal.Zero
	for i, line := range inv.Lines {
		lineTotal, _, err := tax.ComputeLine(line.Quantity, line.UnitPrice, tax.StandardRate)
		if err != nil {
			return domain.NewValidationError(fmt.Sprintf("lines[%d]", i), err.Error())
		}
		lineSum = lineSum.Add(lineTotal)
	}
	if !tax.WithinTolerance(lineSum, inv.Subtotal) {
		return domain.NewValidationError("subtotal",
			fmt.Sprintf("line sum %s does not match subtotal %s", lineSum.StringFixed(2), inv.Subtotal.StringFixed(2)))
	}

	wantTax, wantGross, err := tax.Compute(inv.Subtotal, tax.StandardRate)
	if err != nil {
		return domain.NewValidationError("subtotal", err.Error())
	}
	if !tax.WithinTolerance(wantTax, inv.TaxAmount) {
		return domain.NewValidationError("tax_amount",
			fmt.Sprintf("expected %s, stored %s", wantTax.StringFixed(2), inv.TaxAmount.StringFixed(2)))
	}
	if !tax.WithinTolerance(wantGross, inv.NetTotal) {
		return domain.NewValidationError("net_total",
			fmt.Sprintf("expected %s, stored %s", wantGross.StringFixed(2), inv.NetTotal.StringFixed(2)))
	}
	return nil
}

package document

import "encoding/xml"

// UBL 2.1 document shapes. The field set is fixed and typed so the emitted
// bytes are identical for identical input.

const (
	xmlnsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	xmlnsCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	xmlnsCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"

	customizationID = "BR-KSA-CB"
	profileID       = "reporting:1.0"
	invoiceTypeCode = "388"
	currencyCode    = "SAR"
	taxSchemeVAT    = "VAT"
	taxCategoryStd  = "S"
	unitCodePiece   = "PCE"
)

type ublInvoice struct {
	XMLName         xml.Name `xml:"Invoice"`
	Xmlns           string   `xml:"xmlns,attr"`
	XmlnsCAC        string   `xml:"xmlns:cac,attr"`
	XmlnsCBC        string   `xml:"xmlns:cbc,attr"`
	CustomizationID string   `xml:"cbc:CustomizationID"`
	ProfileID       string   `xml:"cbc:ProfileID"`
	ID              string   `xml:"cbc:ID"`
	UUID            string   `xml:"cbc:UUID"`
	IssueDate       string   `xml:"cbc:IssueDate"`
	IssueTime       string   `xml:"cbc:IssueTime"`
	InvoiceTypeCode string   `xml:"cbc:InvoiceTypeCode"`
	CurrencyCode    string   `xml:"cbc:DocumentCurrencyCode"`
	TaxCurrencyCode string   `xml:"cbc:TaxCurrencyCode"`

	SupplierParty ublSupplierParty `xml:"cac:AccountingSupplierParty"`
	CustomerParty ublCustomerParty `xml:"cac:AccountingCustomerParty"`
	TaxTotal      ublTaxTotal      `xml:"cac:TaxTotal"`
	MonetaryTotal ublMonetaryTotal `xml:"cac:LegalMonetaryTotal"`
	Lines         []ublInvoiceLine `xml:"cac:InvoiceLine"`
}

type ublSupplierParty struct {
	Party ublParty `xml:"cac:Party"`
}

type ublCustomerParty struct {
	Party ublPartyName `xml:"cac:Party"`
}

type ublParty struct {
	Name      ublName        `xml:"cac:PartyName"`
	Address   ublAddress     `xml:"cac:PostalAddress"`
	TaxScheme ublPartyScheme `xml:"cac:PartyTaxScheme"`
}

type ublPartyName struct {
	Name ublName `xml:"cac:PartyName"`
}

type ublName struct {
	Name string `xml:"cbc:Name"`
}

type ublAddress struct {
	StreetName string     `xml:"cbc:StreetName"`
	Country    ublCountry `xml:"cac:Country"`
}

type ublCountry struct {
	IdentificationCode string `xml:"cbc:IdentificationCode"`
}

type ublPartyScheme struct {
	CompanyID string       `xml:"cbc:CompanyID"`
	TaxScheme ublSchemeRef `xml:"cac:TaxScheme"`
}

type ublSchemeRef struct {
	ID string `xml:"cbc:ID"`
}

type ublAmount struct {
	CurrencyID string `xml:"currencyID,attr"`
	Value      string `xml:",chardata"`
}

type ublQuantity struct {
	UnitCode string `xml:"unitCode,attr"`
	Value    string `xml:",chardata"`
}

type ublTaxTotal struct {
	TaxAmount   ublAmount      `xml:"cbc:TaxAmount"`
	TaxSubtotal ublTaxSubtotal `xml:"cac:TaxSubtotal"`
}

type ublTaxSubtotal struct {
	TaxableAmount ublAmount      `xml:"cbc:TaxableAmount"`
	TaxAmount     ublAmount      `xml:"cbc:TaxAmount"`
	TaxCategory   ublTaxCategory `xml:"cac:TaxCategory"`
}

type ublTaxCategory struct {
	ID        string       `xml:"cbc:ID"`
	Percent   string       `xml:"cbc:Percent"`
	TaxScheme ublSchemeRef `xml:"cac:TaxScheme"`
}

type ublMonetaryTotal struct {
	LineExtensionAmount ublAmount `xml:"cbc:LineExtensionAmount"`
	TaxExclusiveAmount  ublAmount `xml:"cbc:TaxExclusiveAmount"`
	TaxInclusiveAmount  ublAmount `xml:"cbc:TaxInclusiveAmount"`
	PayableAmount       ublAmount `xml:"cbc:PayableAmount"`
}

type ublInvoiceLine struct {
	ID                  string      `xml:"cbc:ID"`
	InvoicedQuantity    ublQuantity `xml:"cbc:InvoicedQuantity"`
	LineExtensionAmount ublAmount   `xml:"cbc:LineExtensionAmount"`
	Item                ublName     `xml:"cac:Item"`
	Price               ublPrice    `xml:"cac:Price"`
	TaxTotal            ublLineTax  `xml:"cac:TaxTotal"`
}

type ublPrice struct {
	PriceAmount ublAmount `xml:"cbc:PriceAmount"`
}

type ublLineTax struct {
	TaxAmount ublAmount `xml:"cbc:TaxAmount"`
}

func amount(v string) ublAmount {
	return ublAmount{CurrencyID: currencyCode, Value: v}
}

// Package qr encodes the machine-readable invoice payload embedded in the
// printed QR code.
//
// The payload is a fixed, ordered sequence of tag-length-value triples: one
// byte tag (1..5), one byte length, then that many UTF-8 content bytes, with
// no padding between triples. The concatenation is base64-encoded for
// transport. Decoding the transport string and re-parsing the TLV sequence
// reconstructs the original field values exactly.
package qr

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TLV tags in wire order.
const (
	tagSellerName = 1 + iota
	tagVATNumber
	tagTimestamp
	tagGrossTotal
	tagTaxTotal
)

const maxFieldLen = 255

// Payload carries the five QR fields in their fixed order.
type Payload struct {
	SellerName string
	VATNumber  string
	IssuedAt   time.Time
	GrossTotal decimal.Decimal
	TaxTotal   decimal.Decimal
}

// EncodingError reports a field whose UTF-8 encoding exceeds one TLV length byte.
type EncodingError struct {
	Tag    int
	Length int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("qr field tag %d is %d bytes, exceeds %d", e.Tag, e.Length, maxFieldLen)
}

// Encode serializes the payload as a base64 TLV string.
func Encode(p Payload) (string, error) {
	fields := []string{
		p.SellerName,
		p.VATNumber,
		p.IssuedAt.UTC().Format(time.RFC3339),
		p.GrossTotal.StringFixed(2),
		p.TaxTotal.StringFixed(2),
	}

	var buf []byte
	for i, value := range fields {
		raw := []byte(value)
		if len(raw) > maxFieldLen {
			return "", &EncodingError{Tag: i + 1, Length: len(raw)}
		}
		buf = append(buf, byte(i+1), byte(len(raw)))
		buf = append(buf, raw...)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Decode reverses Encode. The five tags must appear exactly once, in order.
func Decode(encoded string) (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("decode qr transport encoding: %w", err)
	}

	values := make(map[byte]string, 5)
	for pos := 0; pos < len(raw); {
		if len(raw)-pos < 2 {
			return Payload{}, fmt.Errorf("truncated tlv header at offset %d", pos)
		}
		tag := raw[pos]
		length := int(raw[pos+1])
		pos += 2
		if len(raw)-pos < length {
			return Payload{}, fmt.Errorf("truncated tlv value for tag %d", tag)
		}
		if _, dup := values[tag]; dup {
			return Payload{}, fmt.Errorf("duplicate tlv tag %d", tag)
		}
		values[tag] = string(raw[pos : pos+length])
		pos += length
	}

	for tag := byte(tagSellerName); tag <= tagTaxTotal; tag++ {
		if _, ok := values[tag]; !ok {
			return Payload{}, fmt.Errorf("missing tlv tag %d", tag)
		}
	}

	issuedAt, err := time.Parse(time.RFC3339, values[tagTimestamp])
	if err != nil {
		return Payload{}, fmt.Errorf("parse qr timestamp: %w", err)
	}
	gross, err := decimal.NewFromString(values[tagGrossTotal])
	if err != nil {
		return Payload{}, fmt.Errorf("parse qr gross total: %w", err)
	}
	taxTotal, err := decimal.NewFromString(values[tagTaxTotal])
	if err != nil {
		return Payload{}, fmt.Errorf("parse qr tax total: %w", err)
	}

	return Payload{
		SellerName: values[tagSellerName],
		VATNumber:  values[tagVATNumber],
		IssuedAt:   issuedAt,
		GrossTotal: gross,
		TaxTotal:   taxTotal,
	}, nil
}

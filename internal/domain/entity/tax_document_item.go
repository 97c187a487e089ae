package entity

import "github.com/shopspring/decimal"

// TaxDocumentItem representa una línea de detalle de un DTE.
type TaxDocumentItem struct {
	ID            string
	TaxDocumentID string
	LineNumber    int // NroLinDet, base 1
	Description   string
	Quantity      int64
	UnitPrice     int64
	Adjustment    int64 // recargo (+) o descuento (-) prorrateado sobre la línea
	Net           int64
	Tax           int64
	Total         int64
	TaxExempt     bool
	TaxRate       decimal.Decimal
}

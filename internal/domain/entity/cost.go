package entity

import "time"

// Cost gasto registrado por el negocio; puede originar un documento tributario.
type Cost struct {
	ID            string
	TenantID      string
	Description   string
	SupplierTaxID string
	SupplierName  string
	Amount        int64 // monto con impuesto incluido
	TaxExempt     bool
	IncurredAt    time.Time
}

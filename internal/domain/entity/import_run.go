package entity

import "time"

// ImportError error por registro dentro de una corrida de importación.
type ImportError struct {
	NaturalKey string `json:"natural_key"`
	Reason     string `json:"reason"`
}

// ImportRun estado de una corrida acotada de conciliación de documentos recibidos.
// Vive sólo durante la invocación; la idempotencia la da la verificación por clave natural.
type ImportRun struct {
	TenantID          string
	StartDate         time.Time
	EndDate           time.Time
	DocumentTypeCode  int
	CounterpartyTaxID string
	DryRun            bool
	MaxPages          int

	Page         int
	PagesFetched int
	Fetched      int
	Imported     int
	Skipped      int
	OutOfRange   int
	Errors       []ImportError
	Aborted      bool
	AbortReason  string
}

// AddError agrega un error por registro conservando el orden del feed.
func (r *ImportRun) AddError(naturalKey, reason string) {
	r.Errors = append(r.Errors, ImportError{NaturalKey: naturalKey, Reason: reason})
}

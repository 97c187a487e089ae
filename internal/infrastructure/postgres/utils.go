package postgres

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/dte-sync/internal/domain"
)

// Índices únicos del esquema (ver migrations/).
const (
	idxNaturalKey     = "ux_tax_documents_natural_key"
	idxActivePOSLink  = "ux_tax_documents_active_pos"
	idxActiveCostLink = "ux_tax_documents_active_cost"
	idxExternalSale   = "ux_pos_transactions_external_sale"
)

// uniqueViolationError traduce una violación de unicidad al error de dominio según el índice.
// Devuelve nil si err no es una violación de unicidad.
func uniqueViolationError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch pgErr.ConstraintName {
	case idxNaturalKey:
		return domain.ErrDuplicateNaturalKey
	case idxActivePOSLink, idxActiveCostLink:
		return domain.ErrAlreadyConverted
	case idxExternalSale:
		return domain.ErrDuplicateSale
	default:
		return domain.ErrConflict
	}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(p *string) string {
	if p != nil {
		return *p
	}
	return ""
}

func nullIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// jsonbOrNil prepara bytes para una columna JSONB: texto que no es JSON se guarda como string JSON.
func jsonbOrNil(b []byte) any {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed)
	}
	quoted, _ := json.Marshal(trimmed)
	return quoted
}

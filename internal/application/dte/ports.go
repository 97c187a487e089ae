// Package dte contiene los casos de uso del motor de documentos tributarios: creación de
// borradores, emisión, conciliación de recibidos, recuperación de representaciones e ingesta POS.
package dte

import (
	"context"
	"time"

	"github.com/jhoicas/dte-sync/internal/domain/repository"
	"github.com/jhoicas/dte-sync/internal/infrastructure/sii"
)

// TxRunner ejecuta una función dentro de una transacción con los repositorios del motor.
type TxRunner interface {
	RunDTE(ctx context.Context, fn func(
		docRepo repository.TaxDocumentRepository,
		posRepo repository.POSTransactionRepository,
	) error) error
}

// ArtifactCache memoiza representaciones obtenidas por búsqueda en vivo.
type ArtifactCache interface {
	Get(ctx context.Context, key string) (*sii.ArtifactPayload, bool)
	Set(ctx context.Context, key string, payload *sii.ArtifactPayload)
}

// EmitterIdentity RUT y razón social del negocio (emisor de sus propios DTE, receptor de los recibidos).
type EmitterIdentity struct {
	TaxID string
	Name  string
}

// Clock permite fijar la hora en tests.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}

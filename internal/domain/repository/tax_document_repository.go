package repository

import (
	"context"

	"github.com/jhoicas/dte-sync/internal/domain/entity"
)

// TaxDocumentRepository define el puerto de persistencia para documentos tributarios y sus líneas.
// Los Get/Find devuelven (nil, nil) cuando no hay resultado.
type TaxDocumentRepository interface {
	// Create persiste la cabecera. Devuelve domain.ErrDuplicateNaturalKey si la clave natural ya
	// existe y domain.ErrAlreadyConverted si el origen ya tiene un documento vigente.
	Create(ctx context.Context, doc *entity.TaxDocument) error
	CreateItem(ctx context.Context, item *entity.TaxDocumentItem) error

	GetByID(ctx context.Context, id string) (*entity.TaxDocument, error)
	GetItems(ctx context.Context, documentID string) ([]*entity.TaxDocumentItem, error)

	// FindActiveBySourcePOS / FindActiveBySourceCost devuelven el documento no reemplazado
	// vinculado al origen.
	FindActiveBySourcePOS(ctx context.Context, tenantID, posTransactionID string) (*entity.TaxDocument, error)
	FindActiveBySourceCost(ctx context.Context, tenantID, costID string) (*entity.TaxDocument, error)

	FindByNaturalKey(ctx context.Context, tenantID string, key entity.NaturalKey) (*entity.TaxDocument, error)
	ExistsByNaturalKey(ctx context.Context, tenantID string, key entity.NaturalKey) (bool, error)

	// UpdateEmission actualiza los campos que cambia el envío al SII:
	// status, folio, external_document_id, pdf_url, xml_url, issued_at, raw_external_response, last_error.
	// Devuelve domain.ErrDuplicateNaturalKey si el folio asignado choca con otro documento.
	UpdateEmission(ctx context.Context, doc *entity.TaxDocument) error

	MarkSuperseded(ctx context.Context, id, replacementID string) error
}

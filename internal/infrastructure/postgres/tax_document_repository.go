package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/domain/entity"
	"github.com/jhoicas/dte-sync/internal/domain/repository"
)

var _ repository.TaxDocumentRepository = (*TaxDocumentRepo)(nil)

// TaxDocumentRepo implementación de TaxDocumentRepository (usable con pool o tx).
type TaxDocumentRepo struct {
	q Querier
}

// NewTaxDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTaxDocumentRepository(q Querier) *TaxDocumentRepo {
	return &TaxDocumentRepo{q: q}
}

const taxDocumentColumns = `
	id, tenant_id, direction, kind, external_type_code, folio, status,
	emitter_tax_id, emitter_name, receiver_tax_id, receiver_name, receiver_email,
	net_amount, tax_amount, exempt_amount, total_amount, issued_at, notes,
	external_document_id, pdf_url, xml_url, raw_external_response, last_error,
	source_pos_transaction_id, source_cost_id, superseded_by_id, created_at, updated_at`

// Create persiste la cabecera del documento.
func (r *TaxDocumentRepo) Create(ctx context.Context, doc *entity.TaxDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = doc.CreatedAt

	query := `INSERT INTO tax_documents (` + taxDocumentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`
	_, err := r.q.Exec(ctx, query,
		doc.ID, doc.TenantID, doc.Direction, doc.Kind, doc.ExternalTypeCode, doc.Folio, doc.Status,
		doc.EmitterTaxID, doc.EmitterName, doc.ReceiverTaxID, doc.ReceiverName, nullIfEmpty(doc.ReceiverEmail),
		doc.NetAmount, doc.TaxAmount, doc.ExemptAmount, doc.TotalAmount, doc.IssuedAt, nullIfEmpty(doc.Notes),
		nullIfEmpty(doc.ExternalDocumentID), nullIfEmpty(doc.PDFURL), nullIfEmpty(doc.XMLURL),
		jsonbOrNil(doc.RawExternalResponse), nullIfEmpty(doc.LastError),
		nullIfEmpty(doc.SourcePOSTransactionID), nullIfEmpty(doc.SourceCostID), nullIfEmpty(doc.SupersededByID),
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if derr := uniqueViolationError(err); derr != nil {
			return fmt.Errorf("%w: %s", derr, doc.NaturalKey())
		}
		return fmt.Errorf("insert tax document: %w", err)
	}
	return nil
}

// CreateItem persiste una línea de detalle.
func (r *TaxDocumentRepo) CreateItem(ctx context.Context, item *entity.TaxDocumentItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	query := `
		INSERT INTO tax_document_items (id, tax_document_id, line_number, description, quantity, unit_price,
		                                adjustment, net, tax, total, tax_exempt, tax_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		item.ID, item.TaxDocumentID, item.LineNumber, item.Description, item.Quantity, item.UnitPrice,
		item.Adjustment, item.Net, item.Tax, item.Total, item.TaxExempt, item.TaxRate,
	)
	if err != nil {
		return fmt.Errorf("insert tax document item: %w", err)
	}
	return nil
}

// GetByID obtiene un documento por ID. (nil, nil) si no existe.
func (r *TaxDocumentRepo) GetByID(ctx context.Context, id string) (*entity.TaxDocument, error) {
	query := `SELECT ` + taxDocumentColumns + ` FROM tax_documents WHERE id = $1`
	return r.getOne(ctx, "get tax document", query, id)
}

// GetItems devuelve las líneas ordenadas por número de línea.
func (r *TaxDocumentRepo) GetItems(ctx context.Context, documentID string) ([]*entity.TaxDocumentItem, error) {
	query := `
		SELECT id, tax_document_id, line_number, description, quantity, unit_price,
		       adjustment, net, tax, total, tax_exempt, tax_rate
		FROM tax_document_items WHERE tax_document_id = $1 ORDER BY line_number`
	rows, err := r.q.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list tax document items: %w", err)
	}
	defer rows.Close()

	var list []*entity.TaxDocumentItem
	for rows.Next() {
		var it entity.TaxDocumentItem
		if err := rows.Scan(
			&it.ID, &it.TaxDocumentID, &it.LineNumber, &it.Description, &it.Quantity, &it.UnitPrice,
			&it.Adjustment, &it.Net, &it.Tax, &it.Total, &it.TaxExempt, &it.TaxRate,
		); err != nil {
			return nil, fmt.Errorf("scan tax document item: %w", err)
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}

// FindActiveBySourcePOS documento vigente originado en la venta.
func (r *TaxDocumentRepo) FindActiveBySourcePOS(ctx context.Context, tenantID, posTransactionID string) (*entity.TaxDocument, error) {
	query := `SELECT ` + taxDocumentColumns + ` FROM tax_documents
		WHERE tenant_id = $1 AND source_pos_transaction_id = $2 AND superseded_by_id IS NULL
		ORDER BY created_at DESC LIMIT 1`
	return r.getOne(ctx, "find tax document by pos transaction", query, tenantID, posTransactionID)
}

// FindActiveBySourceCost documento vigente originado en el gasto.
func (r *TaxDocumentRepo) FindActiveBySourceCost(ctx context.Context, tenantID, costID string) (*entity.TaxDocument, error) {
	query := `SELECT ` + taxDocumentColumns + ` FROM tax_documents
		WHERE tenant_id = $1 AND source_cost_id = $2 AND superseded_by_id IS NULL
		ORDER BY created_at DESC LIMIT 1`
	return r.getOne(ctx, "find tax document by cost", query, tenantID, costID)
}

// FindByNaturalKey busca por (emisor, folio, clase) dentro del tenant.
func (r *TaxDocumentRepo) FindByNaturalKey(ctx context.Context, tenantID string, key entity.NaturalKey) (*entity.TaxDocument, error) {
	query := `SELECT ` + taxDocumentColumns + ` FROM tax_documents
		WHERE tenant_id = $1 AND emitter_tax_id = $2 AND folio = $3 AND kind = $4 AND folio <> ''`
	return r.getOne(ctx, "find tax document by natural key", query, tenantID, key.EmitterTaxID, key.Folio, key.Kind)
}

// ExistsByNaturalKey consulta liviana usada por el importador.
func (r *TaxDocumentRepo) ExistsByNaturalKey(ctx context.Context, tenantID string, key entity.NaturalKey) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM tax_documents
			WHERE tenant_id = $1 AND emitter_tax_id = $2 AND folio = $3 AND kind = $4 AND folio <> ''
		)`
	var exists bool
	if err := r.q.QueryRow(ctx, query, tenantID, key.EmitterTaxID, key.Folio, key.Kind).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists tax document: %w", err)
	}
	return exists, nil
}

// UpdateEmission actualiza los campos que cambia un envío al SII.
func (r *TaxDocumentRepo) UpdateEmission(ctx context.Context, doc *entity.TaxDocument) error {
	doc.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE tax_documents
		SET status                = $2,
		    folio                 = $3,
		    external_document_id  = COALESCE($4, external_document_id),
		    pdf_url               = COALESCE($5, pdf_url),
		    xml_url               = COALESCE($6, xml_url),
		    issued_at             = COALESCE($7, issued_at),
		    raw_external_response = COALESCE($8, raw_external_response),
		    last_error            = $9,
		    updated_at            = $10
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		doc.ID, doc.Status, doc.Folio,
		nullIfEmpty(doc.ExternalDocumentID), nullIfEmpty(doc.PDFURL), nullIfEmpty(doc.XMLURL),
		doc.IssuedAt, jsonbOrNil(doc.RawExternalResponse), nullIfEmpty(doc.LastError), doc.UpdatedAt,
	)
	if err != nil {
		if derr := uniqueViolationError(err); derr != nil {
			return fmt.Errorf("%w: %s", derr, doc.NaturalKey())
		}
		return fmt.Errorf("update tax document emission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkSuperseded enlaza el documento con su reemplazo. Un documento ya reemplazado no cambia.
func (r *TaxDocumentRepo) MarkSuperseded(ctx context.Context, id, replacementID string) error {
	const query = `
		UPDATE tax_documents SET superseded_by_id = $2, updated_at = now()
		WHERE id = $1 AND superseded_by_id IS NULL`
	tag, err := r.q.Exec(ctx, query, id, replacementID)
	if err != nil {
		return fmt.Errorf("mark tax document superseded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: documento %s inexistente o ya reemplazado", domain.ErrConflict, id)
	}
	return nil
}

func (r *TaxDocumentRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.TaxDocument, error) {
	doc, err := scanTaxDocument(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc, nil
}

func scanTaxDocument(row pgx.Row) (*entity.TaxDocument, error) {
	var d entity.TaxDocument
	var receiverEmail, notes, extID, pdfURL, xmlURL, lastError, srcPOS, srcCost, supersededBy *string
	err := row.Scan(
		&d.ID, &d.TenantID, &d.Direction, &d.Kind, &d.ExternalTypeCode, &d.Folio, &d.Status,
		&d.EmitterTaxID, &d.EmitterName, &d.ReceiverTaxID, &d.ReceiverName, &receiverEmail,
		&d.NetAmount, &d.TaxAmount, &d.ExemptAmount, &d.TotalAmount, &d.IssuedAt, &notes,
		&extID, &pdfURL, &xmlURL, &d.RawExternalResponse, &lastError,
		&srcPOS, &srcCost, &supersededBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ReceiverEmail = derefStr(receiverEmail)
	d.Notes = derefStr(notes)
	d.ExternalDocumentID = derefStr(extID)
	d.PDFURL = derefStr(pdfURL)
	d.XMLURL = derefStr(xmlURL)
	d.LastError = derefStr(lastError)
	d.SourcePOSTransactionID = derefStr(srcPOS)
	d.SourceCostID = derefStr(srcCost)
	d.SupersededByID = derefStr(supersededBy)
	return &d, nil
}

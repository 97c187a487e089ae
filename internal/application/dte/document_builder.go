package dte

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/domain/entity"
	"github.com/jhoicas/dte-sync/internal/domain/repository"
	domainsii "github.com/jhoicas/dte-sync/internal/domain/sii"
	pkgsii "github.com/jhoicas/dte-sync/pkg/sii"
)

// Receiver receptor indicado por el llamador.
type Receiver struct {
	TaxID string
	Name  string
	Email string
}

// DraftRequest datos para crear un borrador a partir de una venta o un gasto.
type DraftRequest struct {
	TenantID string
	SourceID string
	Kind     entity.DocumentKind // vacío: RECEIPT para ventas, INVOICE para gastos
	Receiver Receiver
	EmitNow  bool
	Notes    string
}

// DraftResult borrador creado. EmissionErr se informa junto al borrador; el borrador queda
// persistido aunque el envío falle.
type DraftResult struct {
	Document    *entity.TaxDocument
	Items       []*entity.TaxDocumentItem
	EmissionErr error
}

// DocumentBuilder crea documentos tributarios locales a partir de ventas POS y gastos.
type DocumentBuilder struct {
	txRunner TxRunner
	docRepo  repository.TaxDocumentRepository
	posRepo  repository.POSTransactionRepository
	costRepo repository.CostRepository
	emission *EmissionService
	emitter  EmitterIdentity
	taxRate  decimal.Decimal
	log      zerolog.Logger
	clock    Clock
}

// NewDocumentBuilder construye el caso de uso.
func NewDocumentBuilder(
	txRunner TxRunner,
	docRepo repository.TaxDocumentRepository,
	posRepo repository.POSTransactionRepository,
	costRepo repository.CostRepository,
	emission *EmissionService,
	emitter EmitterIdentity,
	taxRate decimal.Decimal,
	log zerolog.Logger,
	clock Clock,
) *DocumentBuilder {
	return &DocumentBuilder{
		txRunner: txRunner,
		docRepo:  docRepo,
		posRepo:  posRepo,
		costRepo: costRepo,
		emission: emission,
		emitter:  emitter,
		taxRate:  taxRate,
		log:      log,
		clock:    clock,
	}
}

// CreateDraftFromPOS crea el borrador de una venta. Cada ítem es una línea qty*price; la
// diferencia con el total de la venta (propinas, descuentos) se prorratea entre las líneas.
func (b *DocumentBuilder) CreateDraftFromPOS(ctx context.Context, req DraftRequest) (*DraftResult, error) {
	if req.TenantID == "" || req.SourceID == "" {
		return nil, domain.ErrInvalidInput
	}
	sale, err := b.posRepo.GetByID(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}
	if sale == nil || sale.TenantID != req.TenantID {
		return nil, domain.ErrNotFound
	}
	active, err := b.docRepo.FindActiveBySourcePOS(ctx, req.TenantID, sale.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: venta %s ya tiene el documento %s", domain.ErrAlreadyConverted, sale.ID, active.ID)
	}

	kind := req.Kind
	if kind == "" {
		kind = entity.KindReceipt
	}
	lines, err := posLines(sale)
	if err != nil {
		return nil, err
	}
	doc, items, err := b.buildDraft(req, kind, req.Receiver, lines)
	if err != nil {
		return nil, err
	}
	doc.SourcePOSTransactionID = sale.ID
	return b.persistAndMaybeEmit(ctx, req, doc, items)
}

// CreateDraftFromCost crea el borrador de un gasto con una única línea. Si no se indica
// receptor se usa el proveedor del gasto.
func (b *DocumentBuilder) CreateDraftFromCost(ctx context.Context, req DraftRequest) (*DraftResult, error) {
	if req.TenantID == "" || req.SourceID == "" {
		return nil, domain.ErrInvalidInput
	}
	cost, err := b.costRepo.GetByID(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}
	if cost == nil || cost.TenantID != req.TenantID {
		return nil, domain.ErrNotFound
	}
	active, err := b.docRepo.FindActiveBySourceCost(ctx, req.TenantID, cost.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: gasto %s ya tiene el documento %s", domain.ErrAlreadyConverted, cost.ID, active.ID)
	}

	kind := req.Kind
	if kind == "" {
		kind = entity.KindInvoice
	}
	receiver := req.Receiver
	if strings.TrimSpace(receiver.TaxID) == "" && strings.TrimSpace(receiver.Name) == "" {
		receiver.TaxID, receiver.Name = cost.SupplierTaxID, cost.SupplierName
	}
	description := strings.TrimSpace(cost.Description)
	if description == "" {
		description = "Gasto " + cost.ID
	}
	lines := []domainsii.LineInput{{Description: description, Quantity: 1, UnitPrice: cost.Amount, Exempt: cost.TaxExempt}}

	doc, items, err := b.buildDraft(req, kind, receiver, lines)
	if err != nil {
		return nil, err
	}
	doc.SourceCostID = cost.ID
	return b.persistAndMaybeEmit(ctx, req, doc, items)
}

// GetDocument devuelve el documento con sus líneas.
func (b *DocumentBuilder) GetDocument(ctx context.Context, tenantID, documentID string) (*entity.TaxDocument, []*entity.TaxDocumentItem, error) {
	doc, err := b.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil || doc.TenantID != tenantID {
		return nil, nil, domain.ErrNotFound
	}
	items, err := b.docRepo.GetItems(ctx, doc.ID)
	if err != nil {
		return nil, nil, err
	}
	return doc, items, nil
}

// SupersedeDocument registra una corrección: documentID queda reemplazado por replacementID.
// Los documentos nunca se borran.
func (b *DocumentBuilder) SupersedeDocument(ctx context.Context, tenantID, documentID, replacementID string) (*entity.TaxDocument, error) {
	if documentID == "" || replacementID == "" || documentID == replacementID {
		return nil, domain.ErrInvalidInput
	}
	doc, err := b.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	replacement, err := b.docRepo.GetByID(ctx, replacementID)
	if err != nil {
		return nil, err
	}
	if doc == nil || replacement == nil || doc.TenantID != tenantID || replacement.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	if replacement.Superseded() {
		return nil, fmt.Errorf("%w: el reemplazo %s también está reemplazado", domain.ErrConflict, replacement.ID)
	}
	if err := b.docRepo.MarkSuperseded(ctx, doc.ID, replacement.ID); err != nil {
		return nil, err
	}
	doc.SupersededByID = replacement.ID
	b.log.Info().Str("tenant_id", tenantID).Str("document_id", doc.ID).Str("replacement_id", replacement.ID).Msg("documento reemplazado")
	return doc, nil
}

// buildDraft valoriza las líneas y arma la cabecera EMITTED/DRAFT.
func (b *DocumentBuilder) buildDraft(req DraftRequest, kind entity.DocumentKind, receiver Receiver, lines []domainsii.LineInput) (*entity.TaxDocument, []*entity.TaxDocumentItem, error) {
	if !kind.Valid() {
		return nil, nil, fmt.Errorf("%w: clase %q", domain.ErrInvalidInput, kind)
	}
	receiver, err := resolveReceiver(kind, receiver)
	if err != nil {
		return nil, nil, err
	}
	items, totals, err := domainsii.ComputeLines(lines, b.taxRate)
	if err != nil {
		return nil, nil, err
	}
	now := b.clock.now()
	doc := &entity.TaxDocument{
		TenantID:         req.TenantID,
		Direction:        entity.DirectionEmitted,
		Kind:             kind,
		ExternalTypeCode: domainsii.KindToExternalTypeCode(kind, domainsii.AllExempt(items)),
		Status:           entity.StatusDraft,
		EmitterTaxID:     b.emitter.TaxID,
		EmitterName:      b.emitter.Name,
		ReceiverTaxID:    receiver.TaxID,
		ReceiverName:     receiver.Name,
		ReceiverEmail:    receiver.Email,
		NetAmount:        totals.Net,
		TaxAmount:        totals.Tax,
		ExemptAmount:     totals.Exempt,
		TotalAmount:      totals.Total,
		Notes:            strings.TrimSpace(req.Notes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := domainsii.ValidateDocument(doc, items); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return doc, items, nil
}

// persistAndMaybeEmit guarda cabecera y líneas en una transacción y, si se pidió, emite.
func (b *DocumentBuilder) persistAndMaybeEmit(ctx context.Context, req DraftRequest, doc *entity.TaxDocument, items []*entity.TaxDocumentItem) (*DraftResult, error) {
	err := b.txRunner.RunDTE(ctx, func(docRepo repository.TaxDocumentRepository, _ repository.POSTransactionRepository) error {
		if err := docRepo.Create(ctx, doc); err != nil {
			return err
		}
		for _, it := range items {
			it.TaxDocumentID = doc.ID
			if err := docRepo.CreateItem(ctx, it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyConverted) {
			return nil, err
		}
		return nil, fmt.Errorf("crear borrador: %w", err)
	}
	b.log.Info().Str("tenant_id", doc.TenantID).Str("document_id", doc.ID).
		Str("kind", string(doc.Kind)).Int64("total", doc.TotalAmount).Msg("borrador creado")

	result := &DraftResult{Document: doc, Items: items}
	if !req.EmitNow || b.emission == nil {
		return result, nil
	}
	emitted, emitErr := b.emission.EmitDocument(ctx, doc.TenantID, doc.ID)
	if emitted != nil {
		result.Document = emitted
	}
	result.EmissionErr = emitErr
	return result, nil
}

// posLines convierte los ítems de la venta en líneas y prorratea la diferencia con el total.
// Una venta sin ítems genera una única línea por el total.
func posLines(sale *entity.POSTransaction) ([]domainsii.LineInput, error) {
	if sale.TotalAmount <= 0 {
		return nil, fmt.Errorf("%w: venta %s con total %d", domain.ErrInvalidInput, sale.ID, sale.TotalAmount)
	}
	if len(sale.Items) == 0 {
		return []domainsii.LineInput{{Description: "Venta " + sale.ExternalSaleID, Quantity: 1, UnitPrice: sale.TotalAmount}}, nil
	}
	bases := make([]int64, len(sale.Items))
	var sum int64
	for i, it := range sale.Items {
		bases[i] = it.Quantity * it.Price
		sum += bases[i]
	}
	shares := domainsii.ProrateAdjustment(bases, sale.TotalAmount-sum)
	lines := make([]domainsii.LineInput, len(sale.Items))
	for i, it := range sale.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			name = fmt.Sprintf("Ítem %d", i+1)
		}
		lines[i] = domainsii.LineInput{Description: name, Quantity: it.Quantity, UnitPrice: it.Price, Adjustment: shares[i]}
	}
	return lines, nil
}

// resolveReceiver normaliza el receptor. Las boletas sin receptor van a consumidor final;
// las demás clases exigen RUT válido y razón social.
func resolveReceiver(kind entity.DocumentKind, r Receiver) (Receiver, error) {
	r.TaxID = strings.TrimSpace(r.TaxID)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)

	if kind == entity.KindReceipt {
		if r.TaxID == "" {
			r.TaxID = pkgsii.ConsumidorFinalRUT
		}
		if r.Name == "" {
			r.Name = pkgsii.ConsumidorFinalNombre
		}
	}
	if r.TaxID == "" || r.Name == "" {
		return Receiver{}, fmt.Errorf("%w: se requieren RUT y razón social", domain.ErrInvalidReceiver)
	}
	rut, err := pkgsii.ParseRUT(r.TaxID)
	if err != nil {
		return Receiver{}, fmt.Errorf("%w: %v", domain.ErrInvalidReceiver, err)
	}
	r.TaxID = rut.String()
	return r, nil
}

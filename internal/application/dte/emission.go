package dte

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/domain/entity"
	"github.com/jhoicas/dte-sync/internal/domain/repository"
	"github.com/jhoicas/dte-sync/internal/infrastructure/sii"
)

// EmissionService envía borradores al proveedor y registra el resultado.
//
// Reglas:
//   - ACCEPTED se devuelve tal cual sin tocar la red; PENDING con folio también (espera asíncrona).
//   - REJECTED devuelve domain.ErrUpstreamRejected.
//   - Una falla de transporte no cambia el estado: se guarda last_error y se devuelve
//     domain.ErrUpstreamTransport junto al documento. No hay reintentos aquí.
//   - Si el folio asignado choca con un documento existente, se devuelve ese documento y el
//     borrador queda reemplazado por él.
type EmissionService struct {
	docRepo   repository.TaxDocumentRepository
	authority sii.Authority
	log       zerolog.Logger
	clock     Clock
}

// NewEmissionService construye el servicio.
func NewEmissionService(docRepo repository.TaxDocumentRepository, authority sii.Authority, log zerolog.Logger, clock Clock) *EmissionService {
	return &EmissionService{docRepo: docRepo, authority: authority, log: log, clock: clock}
}

// EmitDocument envía el documento y devuelve su estado resultante.
func (s *EmissionService) EmitDocument(ctx context.Context, tenantID, documentID string) (*entity.TaxDocument, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	if doc.Direction != entity.DirectionEmitted {
		return nil, fmt.Errorf("%w: un documento recibido no se emite", domain.ErrInvalidInput)
	}
	if doc.Superseded() {
		// el origen pudo volver a convertirse y quedar aceptado en otro documento
		accepted, err := s.acceptedForSource(ctx, doc)
		if err != nil {
			return nil, err
		}
		if accepted != nil {
			return accepted, nil
		}
		return nil, fmt.Errorf("%w: documento reemplazado por %s", domain.ErrConflict, doc.SupersededByID)
	}

	switch {
	case doc.Status == entity.StatusAccepted:
		return doc, nil
	case doc.Status == entity.StatusRejected:
		return doc, fmt.Errorf("%w: %s", domain.ErrUpstreamRejected, doc.LastError)
	case doc.Status == entity.StatusPending && doc.Folio != "":
		return doc, nil
	}

	items, err := s.docRepo.GetItems(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	logger := s.log.With().Str("tenant_id", tenantID).Str("document_id", doc.ID).Logger()

	res, err := s.authority.SubmitDocument(ctx, s.buildSubmitRequest(doc, items))
	if err != nil {
		doc.LastError = err.Error()
		if uerr := s.docRepo.UpdateEmission(ctx, doc); uerr != nil {
			logger.Error().Err(uerr).Msg("no se pudo registrar el error de envío")
		}
		logger.Warn().Err(err).Msg("envío fallido, el documento conserva su estado")
		if !errors.Is(err, domain.ErrUpstreamTransport) {
			err = fmt.Errorf("%w: %v", domain.ErrUpstreamTransport, err)
		}
		return doc, err
	}

	doc.RawExternalResponse = res.Raw
	if res.Rejected {
		doc.Status = entity.StatusRejected
		doc.LastError = res.Message
		if err := s.docRepo.UpdateEmission(ctx, doc); err != nil {
			return nil, err
		}
		logger.Warn().Str("message", res.Message).Msg("documento rechazado")
		return doc, fmt.Errorf("%w: %s", domain.ErrUpstreamRejected, res.Message)
	}

	doc.Folio = res.Folio.String()
	doc.ExternalDocumentID = res.ExternalDocumentID.String()
	doc.PDFURL = res.PDFURL
	doc.XMLURL = res.XMLURL
	doc.LastError = ""
	if issued := res.IssuedAtTime(); issued != nil {
		doc.IssuedAt = issued
	} else {
		now := s.clock.now()
		doc.IssuedAt = &now
	}
	if res.Accepted() {
		doc.Status = entity.StatusAccepted
	} else {
		doc.Status = entity.StatusPending
	}

	if err := s.docRepo.UpdateEmission(ctx, doc); err != nil {
		if errors.Is(err, domain.ErrDuplicateNaturalKey) {
			return s.absorbDuplicate(ctx, doc, logger)
		}
		return nil, err
	}
	logger.Info().Str("folio", doc.Folio).Str("status", string(doc.Status)).Msg("documento emitido")
	return doc, nil
}

// acceptedForSource devuelve el documento ACCEPTED vigente del mismo origen, si es otro.
// Sólo aplica a documentos reemplazados: el índice parcial por origen impide dos vigentes.
func (s *EmissionService) acceptedForSource(ctx context.Context, doc *entity.TaxDocument) (*entity.TaxDocument, error) {
	var (
		active *entity.TaxDocument
		err    error
	)
	switch {
	case doc.SourcePOSTransactionID != "":
		active, err = s.docRepo.FindActiveBySourcePOS(ctx, doc.TenantID, doc.SourcePOSTransactionID)
	case doc.SourceCostID != "":
		active, err = s.docRepo.FindActiveBySourceCost(ctx, doc.TenantID, doc.SourceCostID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if active != nil && active.ID != doc.ID && active.Status == entity.StatusAccepted {
		return active, nil
	}
	return nil, nil
}

// absorbDuplicate resuelve el choque de clave natural: gana el registro existente.
func (s *EmissionService) absorbDuplicate(ctx context.Context, doc *entity.TaxDocument, logger zerolog.Logger) (*entity.TaxDocument, error) {
	key := doc.NaturalKey()
	existing, err := s.docRepo.FindByNaturalKey(ctx, doc.TenantID, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateNaturalKey, key)
	}
	if err := s.docRepo.MarkSuperseded(ctx, doc.ID, existing.ID); err != nil {
		logger.Error().Err(err).Str("natural_key", key.String()).Msg("no se pudo marcar el borrador como reemplazado")
	}
	logger.Warn().Str("natural_key", key.String()).Str("existing_id", existing.ID).Msg("folio ya registrado, se usa el documento existente")
	return existing, nil
}

// buildSubmitRequest arma el DTE: una línea por ítem, NroLinDet base 1, IndExe en las exentas.
func (s *EmissionService) buildSubmitRequest(doc *entity.TaxDocument, items []*entity.TaxDocumentItem) *sii.SubmitRequest {
	req := &sii.SubmitRequest{
		Response: []string{"FOLIO", "PDF", "XML"},
		DTE: sii.DTE{
			Encabezado: sii.Encabezado{
				IdDoc: sii.IdDoc{
					TipoDTE: doc.ExternalTypeCode,
					FchEmis: s.clock.now().Format("2006-01-02"),
				},
				Emisor:   sii.Emisor{RUTEmisor: doc.EmitterTaxID, RznSoc: doc.EmitterName},
				Receptor: sii.Receptor{RUTRecep: doc.ReceiverTaxID, RznSocRecep: doc.ReceiverName, CorreoRecep: doc.ReceiverEmail},
				Totales: sii.Totales{
					MntNeto:  doc.NetAmount - doc.ExemptAmount,
					MntExe:   doc.ExemptAmount,
					IVA:      doc.TaxAmount,
					MntTotal: doc.TotalAmount,
				},
			},
		},
	}
	for i, it := range items {
		line := it.LineNumber
		if line == 0 {
			line = i + 1
		}
		d := sii.Detalle{
			NroLinDet: line,
			NmbItem:   it.Description,
			QtyItem:   it.Quantity,
			PrcItem:   it.UnitPrice,
			MontoItem: it.Total,
		}
		if it.TaxExempt {
			d.IndExe = 1
		} else if req.DTE.Encabezado.Totales.TasaIVA == "" {
			req.DTE.Encabezado.Totales.TasaIVA = it.TaxRate.Mul(decimal.NewFromInt(100)).String()
		}
		req.DTE.Detalle = append(req.DTE.Detalle, d)
	}
	return req
}

package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/dte-sync/internal/application/dte"
	"github.com/jhoicas/dte-sync/internal/application/dto"
	"github.com/jhoicas/dte-sync/internal/domain/entity"
)

// HeaderArtifactTier informa qué nivel de la cadena de búsqueda entregó la representación.
const HeaderArtifactTier = "X-Artifact-Tier"

// DTEHandler maneja las peticiones HTTP de documentos tributarios (protegido).
type DTEHandler struct {
	builder   *dte.DocumentBuilder
	emission  *dte.EmissionService
	retrieval *dte.RetrievalGateway
}

// NewDTEHandler construye el handler.
func NewDTEHandler(builder *dte.DocumentBuilder, emission *dte.EmissionService, retrieval *dte.RetrievalGateway) *DTEHandler {
	return &DTEHandler{builder: builder, emission: emission, retrieval: retrieval}
}

// CreateFromPOS crea el borrador de una venta POS y opcionalmente lo emite.
// POST /api/dte/documents/from-pos
func (h *DTEHandler) CreateFromPOS(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.CreateFromPOSRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	res, err := h.builder.CreateDraftFromPOS(c.Context(), dte.DraftRequest{
		TenantID: tenantID,
		SourceID: strings.TrimSpace(in.POSTransactionID),
		Kind:     entity.DocumentKind(strings.ToUpper(strings.TrimSpace(in.Kind))),
		Receiver: dte.Receiver(in.Receiver),
		EmitNow:  in.EmitNow,
		Notes:    in.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(draftResponse(res))
}

// CreateFromCost crea el borrador de un gasto y opcionalmente lo emite.
// POST /api/dte/documents/from-cost
func (h *DTEHandler) CreateFromCost(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.CreateFromCostRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	res, err := h.builder.CreateDraftFromCost(c.Context(), dte.DraftRequest{
		TenantID: tenantID,
		SourceID: strings.TrimSpace(in.CostID),
		Kind:     entity.DocumentKind(strings.ToUpper(strings.TrimSpace(in.Kind))),
		Receiver: dte.Receiver(in.Receiver),
		EmitNow:  in.EmitNow,
		Notes:    in.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(draftResponse(res))
}

// GetByID devuelve el documento con sus líneas.
// GET /api/dte/documents/:id
func (h *DTEHandler) GetByID(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	doc, items, err := h.builder.GetDocument(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromTaxDocument(doc, items))
}

// Emit envía el documento al SII. Idempotente: un documento aceptado se devuelve sin reenviar.
// POST /api/dte/documents/:id/emit
func (h *DTEHandler) Emit(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	doc, emitErr := h.emission.EmitDocument(c.Context(), tenantID, c.Params("id"))
	if doc == nil {
		return writeError(c, emitErr)
	}
	_, items, err := h.builder.GetDocument(c.Context(), tenantID, doc.ID)
	if err != nil {
		return writeError(c, err)
	}
	if emitErr != nil {
		// rechazo o falla de transporte: el documento queda como estaba y se informa el error crudo
		status, code := errorStatus(emitErr)
		return c.Status(status).JSON(dto.EmitFailureResponse{
			Code:     code,
			Message:  emitErr.Error(),
			Document: dto.FromTaxDocument(doc, items),
		})
	}
	return c.JSON(dto.FromTaxDocument(doc, items))
}

// Supersede marca el documento como reemplazado por otro.
// POST /api/dte/documents/:id/supersede
func (h *DTEHandler) Supersede(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.SupersedeRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	doc, err := h.builder.SupersedeDocument(c.Context(), tenantID, c.Params("id"), strings.TrimSpace(in.ReplacementID))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromTaxDocument(doc, nil))
}

// View entrega la representación para mostrar en el navegador.
// GET /api/dte/documents/:id/view/:format
func (h *DTEHandler) View(c *fiber.Ctx) error {
	return h.artifact(c, dte.ModeInline)
}

// Download entrega la representación como adjunto.
// GET /api/dte/documents/:id/download/:format
func (h *DTEHandler) Download(c *fiber.Ctx) error {
	return h.artifact(c, dte.ModeDownload)
}

func (h *DTEHandler) artifact(c *fiber.Ctx, mode string) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	art, err := h.retrieval.GetDocumentArtifact(c.Context(), tenantID, c.Params("id"), c.Params("format"), mode)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, art.ContentType)
	c.Set(fiber.HeaderContentDisposition, art.ContentDisposition())
	c.Set(HeaderArtifactTier, art.Tier)
	return c.Status(fiber.StatusOK).Send(art.Content)
}

func draftResponse(res *dte.DraftResult) dto.DraftResponse {
	out := dto.DraftResponse{Document: dto.FromTaxDocument(res.Document, res.Items)}
	if res.EmissionErr != nil {
		out.EmissionError = res.EmissionErr.Error()
	}
	return out
}

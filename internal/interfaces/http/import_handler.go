package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/dte-sync/internal/application/dte"
	"github.com/jhoicas/dte-sync/internal/application/dto"
	"github.com/jhoicas/dte-sync/internal/domain"
)

// ImportHandler dispara corridas de conciliación de documentos recibidos (rol admin).
type ImportHandler struct {
	importer *dte.Importer
}

// NewImportHandler construye el handler.
func NewImportHandler(importer *dte.Importer) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// ImportReceived ejecuta una corrida acotada y devuelve el resumen. Una corrida abortada por el
// feed responde 200 con aborted=true: lo importado hasta el corte queda guardado.
// POST /api/dte/imports/received
func (h *ImportHandler) ImportReceived(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.ImportReceivedRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
	}
	start, err := parseDay(in.StartDate)
	if err != nil {
		return writeError(c, err)
	}
	end, err := parseDay(in.EndDate)
	if err != nil {
		return writeError(c, err)
	}
	run, err := h.importer.ImportReceivedDocuments(c.Context(), dte.ImportParams{
		TenantID:          tenantID,
		StartDate:         start,
		EndDate:           end,
		DocumentTypeCode:  in.DocumentTypeCode,
		CounterpartyTaxID: in.CounterpartyTaxID,
		DryRun:            in.DryRun,
		MaxPages:          in.MaxPages,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromImportRun(run))
}

// parseDay interpreta AAAA-MM-DD; vacío es nil.
func parseDay(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("%w: fecha %q, formato AAAA-MM-DD", domain.ErrInvalidInput, s)
	}
	return &t, nil
}

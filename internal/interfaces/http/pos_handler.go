package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/dte-sync/internal/application/dte"
	"github.com/jhoicas/dte-sync/internal/application/dto"
)

// POSHandler recibe lotes de ventas del punto de venta.
type POSHandler struct {
	sync *dte.POSSyncService
}

// NewPOSHandler construye el handler.
func NewPOSHandler(sync *dte.POSSyncService) *POSHandler {
	return &POSHandler{sync: sync}
}

// SyncSales registra un lote de ventas. Las ventas inválidas no invalidan el lote.
// POST /api/pos/sales/sync
func (h *POSHandler) SyncSales(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.POSSyncRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.sync.IngestPOSSales(c.Context(), tenantID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/dte-sync/internal/application/dte"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Builder   *dte.DocumentBuilder
	Emission  *dte.EmissionService
	Retrieval *dte.RetrievalGateway
	Importer  *dte.Importer
	POSSync   *dte.POSSyncService
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	// Rutas protegidas (requieren Bearer Token con tenant_id)
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	// Documentos tributarios
	docs := api.Group("/dte/documents")
	dteHandler := NewDTEHandler(deps.Builder, deps.Emission, deps.Retrieval)
	docs.Post("/from-pos", dteHandler.CreateFromPOS)
	docs.Post("/from-cost", dteHandler.CreateFromCost)
	docs.Get("/:id", dteHandler.GetByID)
	docs.Post("/:id/emit", dteHandler.Emit)
	docs.Post("/:id/supersede", dteHandler.Supersede)
	docs.Get("/:id/view/:format", dteHandler.View)
	docs.Get("/:id/download/:format", dteHandler.Download)

	// Conciliación de recibidos (sólo admin)
	importHandler := NewImportHandler(deps.Importer)
	api.Post("/dte/imports/received", RequireRole(RoleAdmin), importHandler.ImportReceived)

	// Ventas POS
	posHandler := NewPOSHandler(deps.POSSync)
	api.Post("/pos/sales/sync", posHandler.SyncSales)
}

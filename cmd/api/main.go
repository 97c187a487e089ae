package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/dte-sync/internal/application/dte"
	"github.com/jhoicas/dte-sync/internal/application/dto"
	"github.com/jhoicas/dte-sync/internal/infrastructure/cache"
	"github.com/jhoicas/dte-sync/internal/infrastructure/postgres"
	"github.com/jhoicas/dte-sync/internal/infrastructure/sii"
	httpRouter "github.com/jhoicas/dte-sync/internal/interfaces/http"
	"github.com/jhoicas/dte-sync/pkg/config"
	"github.com/jhoicas/dte-sync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.Log.Level,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("emitter", cfg.SII.EmitterTaxID).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if cfg.DB.AutoMigrate {
		if err := postgres.RunMigrations(pool); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
		log.Info().Msg("migraciones aplicadas")
	}

	docRepo := postgres.NewTaxDocumentRepository(pool)
	posRepo := postgres.NewPOSTransactionRepository(pool)
	costRepo := postgres.NewCostRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Proveedor de DTE: firma, timbra y envía al SII; también expone el feed de recibidos.
	authority := sii.NewHTTPClient(cfg.SII.BaseURL, cfg.SII.APIKey, cfg.SII.RequestTimeout)
	artifactCache := cache.NewArtifactCache(cfg.SII.ArtifactCacheTTL)

	emitter := dte.EmitterIdentity{TaxID: cfg.SII.EmitterTaxID, Name: cfg.SII.EmitterName}
	emission := dte.NewEmissionService(docRepo, authority, log.Component("emission"), nil)
	builder := dte.NewDocumentBuilder(
		txRunner, docRepo, posRepo, costRepo, emission,
		emitter, cfg.SII.TaxRate, log.Component("builder"), nil,
	)
	importer := dte.NewImporter(txRunner, docRepo, authority, emitter, dte.ImporterConfig{
		PageDelay:  cfg.SII.ImportPageDelay,
		MaxPages:   cfg.SII.ImportMaxPages,
		WindowDays: cfg.SII.ImportWindowDays,
		DateField:  cfg.SII.ImportDateField,
		TaxRate:    cfg.SII.TaxRate,
	}, log.Component("importer"), nil)
	retrieval := dte.NewRetrievalGateway(docRepo, authority, artifactCache, log.Component("retrieval"))
	posSync := dte.NewPOSSyncService(txRunner, log.Component("pos_sync"))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.SII.RequestTimeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "DTE Sync API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		out := dto.HealthResponse{Status: "ok", DB: "ok"}
		if err := pool.Ping(c.Context()); err != nil {
			out.Status, out.DB = "degraded", err.Error()
			return c.Status(fiber.StatusServiceUnavailable).JSON(out)
		}
		return c.JSON(out)
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Builder:   builder,
		Emission:  emission,
		Retrieval: retrieval,
		Importer:  importer,
		POSSync:   posSync,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

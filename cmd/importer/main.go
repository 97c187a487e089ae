// Comando importer ejecuta una corrida de conciliación de documentos recibidos e imprime el
// resumen en JSON. Pensado para cron: sale con código 1 si la corrida se abortó.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jhoicas/dte-sync/internal/application/dte"
	"github.com/jhoicas/dte-sync/internal/application/dto"
	"github.com/jhoicas/dte-sync/internal/infrastructure/postgres"
	"github.com/jhoicas/dte-sync/internal/infrastructure/sii"
	"github.com/jhoicas/dte-sync/pkg/config"
	"github.com/jhoicas/dte-sync/pkg/logger"
)

func main() {
	tenantID := flag.String("tenant", "", "tenant al que se importan los documentos (requerido)")
	from := flag.String("from", "", "fecha inicial AAAA-MM-DD (por defecto la ventana configurada)")
	to := flag.String("to", "", "fecha final AAAA-MM-DD (opcional)")
	typeCode := flag.Int("type", 0, "TipoDTE a filtrar (opcional)")
	counterparty := flag.String("counterparty", "", "RUT emisor a filtrar (opcional)")
	dryRun := flag.Bool("dry-run", false, "no escribe, sólo informa lo que importaría")
	maxPages := flag.Int("max-pages", 0, "techo de páginas (0: el configurado)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(2)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, Output: os.Stderr})

	params := dte.ImportParams{
		TenantID:          *tenantID,
		DocumentTypeCode:  *typeCode,
		CounterpartyTaxID: *counterparty,
		DryRun:            *dryRun,
		MaxPages:          *maxPages,
	}
	if params.StartDate, err = parseFlagDate(*from); err != nil {
		log.Fatal().Err(err).Str("flag", "from").Msg("fecha inválida")
	}
	if params.EndDate, err = parseFlagDate(*to); err != nil {
		log.Fatal().Err(err).Str("flag", "to").Msg("fecha inválida")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if cfg.DB.AutoMigrate {
		if err := postgres.RunMigrations(pool); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
	}

	importer := dte.NewImporter(
		postgres.NewTxRunner(pool),
		postgres.NewTaxDocumentRepository(pool),
		sii.NewHTTPClient(cfg.SII.BaseURL, cfg.SII.APIKey, cfg.SII.RequestTimeout),
		dte.EmitterIdentity{TaxID: cfg.SII.EmitterTaxID, Name: cfg.SII.EmitterName},
		dte.ImporterConfig{
			PageDelay:  cfg.SII.ImportPageDelay,
			MaxPages:   cfg.SII.ImportMaxPages,
			WindowDays: cfg.SII.ImportWindowDays,
			DateField:  cfg.SII.ImportDateField,
			TaxRate:    cfg.SII.TaxRate,
		},
		log.Component("importer"), nil,
	)

	run, err := importer.ImportReceivedDocuments(ctx, params)
	if err != nil {
		log.Error().Err(err).Msg("importación")
		pool.Close()
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dto.FromImportRun(run)); err != nil {
		log.Error().Err(err).Msg("escribir resumen")
	}
	if run.Aborted {
		pool.Close()
		os.Exit(1)
	}
}

func parseFlagDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

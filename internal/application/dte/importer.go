package dte

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/domain/entity"
	"github.com/jhoicas/dte-sync/internal/domain/repository"
	domainsii "github.com/jhoicas/dte-sync/internal/domain/sii"
	"github.com/jhoicas/dte-sync/internal/infrastructure/sii"
	pkgsii "github.com/jhoicas/dte-sync/pkg/sii"
)

// ImporterConfig parámetros de la corrida tomados de la configuración.
type ImporterConfig struct {
	PageDelay  time.Duration // pausa mínima entre páginas
	MaxPages   int           // techo de páginas por corrida
	WindowDays int           // ventana por defecto hacia atrás desde hoy
	DateField  string        // FchEmis | FchRecep
	TaxRate    decimal.Decimal
}

// ImportParams filtros de una corrida. Fechas nil toman los valores por defecto.
type ImportParams struct {
	TenantID          string
	StartDate         *time.Time
	EndDate           *time.Time
	DocumentTypeCode  int
	CounterpartyTaxID string
	DryRun            bool
	MaxPages          int
}

// Importer concilia los documentos que terceros emiten al negocio contra el registro local.
// La idempotencia se basa en la clave natural (emisor, folio, clase): correr dos veces sobre
// el mismo rango no duplica documentos.
type Importer struct {
	txRunner  TxRunner
	docRepo   repository.TaxDocumentRepository
	authority sii.Authority
	receiver  EmitterIdentity
	cfg       ImporterConfig
	log       zerolog.Logger
	clock     Clock
}

// NewImporter construye el importador.
func NewImporter(
	txRunner TxRunner,
	docRepo repository.TaxDocumentRepository,
	authority sii.Authority,
	receiver EmitterIdentity,
	cfg ImporterConfig,
	log zerolog.Logger,
	clock Clock,
) *Importer {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 60
	}
	if cfg.DateField == "" {
		cfg.DateField = "FchEmis"
	}
	return &Importer{
		txRunner:  txRunner,
		docRepo:   docRepo,
		authority: authority,
		receiver:  receiver,
		cfg:       cfg,
		log:       log,
		clock:     clock,
	}
}

// ImportReceivedDocuments recorre el feed página a página (ascendente, con pausa entre páginas)
// e inserta los documentos que no existen. Los errores por registro se acumulan en el resumen;
// una falla del feed corta la corrida y devuelve el resumen parcial con Aborted.
func (im *Importer) ImportReceivedDocuments(ctx context.Context, p ImportParams) (*entity.ImportRun, error) {
	run, err := im.newRun(p)
	if err != nil {
		return nil, err
	}
	logger := im.log.With().Str("tenant_id", run.TenantID).Bool("dry_run", run.DryRun).Logger()

	limit := rate.Inf
	if im.cfg.PageDelay > 0 {
		limit = rate.Every(im.cfg.PageDelay)
	}
	limiter := rate.NewLimiter(limit, 1)
	seen := make(map[entity.NaturalKey]bool)

	for page := 1; ; page++ {
		if err := limiter.Wait(ctx); err != nil {
			im.abort(run, logger, fmt.Errorf("espera entre páginas: %w", err))
			return run, nil
		}
		resp, err := im.authority.FetchReceivedPage(ctx, sii.ReceivedQuery{
			Page:              page,
			DateField:         im.cfg.DateField,
			DateFrom:          &run.StartDate,
			DocumentTypeCode:  run.DocumentTypeCode,
			CounterpartyTaxID: run.CounterpartyTaxID,
		})
		if err != nil {
			im.abort(run, logger, fmt.Errorf("página %d: %w", page, err))
			return run, nil
		}
		run.Page = page
		run.PagesFetched++

		for i := range resp.Data {
			im.processRecord(ctx, run, &resp.Data[i], seen, logger)
		}
		logger.Debug().Int("page", page).Int("last_page", resp.LastPage).Int("records", len(resp.Data)).Msg("página procesada")

		if resp.LastPage <= page || len(resp.Data) == 0 {
			break
		}
		if run.PagesFetched >= run.MaxPages {
			logger.Warn().Int("page", page).Int("last_page", resp.LastPage).Msg("techo de páginas alcanzado")
			break
		}
	}

	logger.Info().Int("fetched", run.Fetched).Int("imported", run.Imported).Int("skipped", run.Skipped).
		Int("out_of_range", run.OutOfRange).Int("errors", len(run.Errors)).Msg("importación terminada")
	return run, nil
}

func (im *Importer) newRun(p ImportParams) (*entity.ImportRun, error) {
	if strings.TrimSpace(p.TenantID) == "" {
		return nil, fmt.Errorf("%w: tenant requerido", domain.ErrInvalidInput)
	}
	now := im.clock.now()
	run := &entity.ImportRun{
		TenantID:         p.TenantID,
		DocumentTypeCode: p.DocumentTypeCode,
		DryRun:           p.DryRun,
		MaxPages:         im.cfg.MaxPages,
	}
	if p.MaxPages > 0 {
		run.MaxPages = p.MaxPages
	}
	if p.StartDate != nil {
		run.StartDate = startOfDay(*p.StartDate)
	} else {
		run.StartDate = startOfDay(now.AddDate(0, 0, -im.cfg.WindowDays))
	}
	if p.EndDate != nil {
		run.EndDate = startOfDay(*p.EndDate)
		if run.EndDate.Before(run.StartDate) {
			return nil, fmt.Errorf("%w: la fecha final es anterior a la inicial", domain.ErrInvalidInput)
		}
	}
	if cp := strings.TrimSpace(p.CounterpartyTaxID); cp != "" {
		rut, err := pkgsii.ParseRUT(cp)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		run.CounterpartyTaxID = rut.String()
	}
	return run, nil
}

func (im *Importer) abort(run *entity.ImportRun, logger zerolog.Logger, err error) {
	run.Aborted = true
	run.AbortReason = err.Error()
	logger.Error().Err(err).Int("pages_fetched", run.PagesFetched).Msg("importación abortada")
}

// processRecord concilia un registro del feed. Nunca falla: los problemas quedan en run.Errors.
func (im *Importer) processRecord(ctx context.Context, run *entity.ImportRun, rec *sii.ReceivedRecord, seen map[entity.NaturalKey]bool, logger zerolog.Logger) {
	run.Fetched++

	key, typeCode, err := naturalKeyOf(rec)
	if err != nil {
		run.AddError(rawKey(rec), err.Error())
		return
	}
	if !im.inRange(run, rec) {
		run.OutOfRange++
		return
	}
	// una clave se marca vista sólo cuando quedó resuelta; si la primera aparición falla,
	// la siguiente se intenta
	if seen[key] {
		run.Skipped++
		return
	}

	exists, err := im.docRepo.ExistsByNaturalKey(ctx, run.TenantID, key)
	if err != nil {
		run.AddError(key.String(), err.Error())
		return
	}
	if exists {
		seen[key] = true
		run.Skipped++
		return
	}

	doc, items, err := im.buildReceived(run.TenantID, key, typeCode, rec)
	if err != nil {
		run.AddError(key.String(), err.Error())
		return
	}
	if run.DryRun {
		seen[key] = true
		run.Imported++
		return
	}

	err = im.txRunner.RunDTE(ctx, func(docRepo repository.TaxDocumentRepository, _ repository.POSTransactionRepository) error {
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
	switch {
	case errors.Is(err, domain.ErrDuplicateNaturalKey):
		// otra corrida lo insertó entre la verificación y el insert
		seen[key] = true
		run.Skipped++
	case err != nil:
		run.AddError(key.String(), err.Error())
	default:
		seen[key] = true
		run.Imported++
		logger.Debug().Str("natural_key", key.String()).Str("status", string(doc.Status)).Msg("documento recibido importado")
	}
}

// naturalKeyOf calcula (RUT emisor, folio, clase) del registro.
func naturalKeyOf(rec *sii.ReceivedRecord) (entity.NaturalKey, int, error) {
	emitter, err := rec.EmitterTaxID()
	if err != nil {
		return entity.NaturalKey{}, 0, fmt.Errorf("RUT emisor: %v", err)
	}
	typeCode, err := rec.TypeCode()
	if err != nil {
		return entity.NaturalKey{}, 0, err
	}
	folio := rec.Folio.String()
	if folio == "" {
		return entity.NaturalKey{}, 0, errors.New("registro sin folio")
	}
	return entity.NaturalKey{EmitterTaxID: emitter, Folio: folio, Kind: domainsii.MapExternalTypeToKind(typeCode)}, typeCode, nil
}

// rawKey identifica un registro inválido en el resumen con lo que venga en el feed.
func rawKey(rec *sii.ReceivedRecord) string {
	return fmt.Sprintf("%s-%s/%s/%s", rec.RUTEmisor.String(), rec.DV, rec.Folio.String(), rec.TipoDTE.String())
}

// inRange aplica el rango de fechas sobre el campo configurado. Registros sin fecha legible pasan.
func (im *Importer) inRange(run *entity.ImportRun, rec *sii.ReceivedRecord) bool {
	raw := rec.FchEmis
	if strings.EqualFold(im.cfg.DateField, "FchRecep") {
		raw = rec.FchRecep
	}
	d := parseFeedDate(raw)
	if d == nil {
		return true
	}
	day := startOfDay(*d)
	if day.Before(run.StartDate) {
		return false
	}
	return run.EndDate.IsZero() || !day.After(run.EndDate)
}

// buildReceived arma el documento RECEIVED con su estado según acuses y sus líneas.
func (im *Importer) buildReceived(tenantID string, key entity.NaturalKey, typeCode int, rec *sii.ReceivedRecord) (*entity.TaxDocument, []*entity.TaxDocumentItem, error) {
	net, err := domainsii.ParseAmount(rec.MntNeto)
	if err != nil {
		return nil, nil, err
	}
	exempt, err := domainsii.ParseAmount(rec.MntExe)
	if err != nil {
		return nil, nil, err
	}
	iva, err := domainsii.ParseAmount(rec.IVA)
	if err != nil {
		return nil, nil, err
	}
	total, err := domainsii.ParseAmount(rec.MntTotal)
	if err != nil {
		return nil, nil, err
	}
	if total == 0 {
		total = net + exempt + iva
	}

	acks := rec.Acknowledgments()
	domainsii.SortAcknowledgments(acks)

	items := im.detailLines(rec, net, exempt, total)
	if items == nil {
		items = im.synthesizedLines(key, net, exempt, total)
	}

	now := im.clock.now()
	doc := &entity.TaxDocument{
		TenantID:            tenantID,
		Direction:           entity.DirectionReceived,
		Kind:                key.Kind,
		ExternalTypeCode:    typeCode,
		Folio:               key.Folio,
		Status:              domainsii.MapAcknowledgmentsToStatus(acks),
		EmitterTaxID:        key.EmitterTaxID,
		EmitterName:         strings.TrimSpace(rec.RznSoc),
		ReceiverTaxID:       im.receiver.TaxID,
		ReceiverName:        im.receiver.Name,
		NetAmount:           net + exempt,
		TaxAmount:           total - net - exempt,
		ExemptAmount:        exempt,
		TotalAmount:         total,
		IssuedAt:            rec.IssueDate(),
		RawExternalResponse: rec.Raw,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := domainsii.ValidateDocument(doc, items); err != nil {
		return nil, nil, err
	}
	return doc, items, nil
}

// synthesizedLines una línea afecta (neto + impuestos) y, si corresponde, una exenta.
func (im *Importer) synthesizedLines(key entity.NaturalKey, net, exempt, total int64) []*entity.TaxDocumentItem {
	var items []*entity.TaxDocumentItem
	taxedTotal := total - exempt
	if taxedTotal != 0 || exempt == 0 {
		items = append(items, &entity.TaxDocumentItem{
			Description: fmt.Sprintf("Documento %s folio %s", key.Kind, key.Folio),
			Quantity:    1,
			UnitPrice:   taxedTotal,
			Net:         net,
			Tax:         taxedTotal - net,
			Total:       taxedTotal,
			TaxRate:     im.cfg.TaxRate,
		})
	}
	if exempt != 0 {
		items = append(items, &entity.TaxDocumentItem{
			Description: "Monto exento",
			Quantity:    1,
			UnitPrice:   exempt,
			Net:         exempt,
			Total:       exempt,
			TaxExempt:   true,
			TaxRate:     decimal.Zero,
		})
	}
	for i, it := range items {
		it.LineNumber = i + 1
	}
	return items
}

// detailLines usa el Detalle del feed cuando cuadra con la cabecera: MontoItem es neto y el
// impuesto de cabecera se prorratea entre las líneas afectas. Devuelve nil si no cuadra.
func (im *Importer) detailLines(rec *sii.ReceivedRecord, net, exempt, total int64) []*entity.TaxDocumentItem {
	if len(rec.Detalle) == 0 {
		return nil
	}
	items := make([]*entity.TaxDocumentItem, 0, len(rec.Detalle))
	var taxedBases []int64
	var taxedIdx []int
	var sumTaxed, sumExempt int64
	for i, l := range rec.Detalle {
		amount, err := domainsii.ParseAmount(l.MontoItem)
		if err != nil {
			return nil
		}
		qty, err := domainsii.ParseAmount(l.QtyItem)
		if err != nil || qty <= 0 {
			qty = 1
		}
		price, err := domainsii.ParseAmount(l.PrcItem)
		if err != nil || price == 0 {
			price = amount / qty
		}
		lineNumber := l.NroLinDet
		if lineNumber <= 0 {
			lineNumber = i + 1
		}
		it := &entity.TaxDocumentItem{
			LineNumber:  lineNumber,
			Description: strings.TrimSpace(l.NmbItem),
			Quantity:    qty,
			UnitPrice:   price,
			Net:         amount,
			Total:       amount,
			TaxExempt:   l.IndExe.String() == "1",
			TaxRate:     im.cfg.TaxRate,
		}
		if it.TaxExempt {
			it.TaxRate = decimal.Zero
			sumExempt += amount
		} else {
			taxedBases = append(taxedBases, amount)
			taxedIdx = append(taxedIdx, len(items))
			sumTaxed += amount
		}
		items = append(items, it)
	}
	if sumTaxed != net || sumExempt != exempt {
		return nil
	}
	tax := total - net - exempt
	if tax != 0 && len(taxedIdx) == 0 {
		return nil
	}
	for j, share := range domainsii.ProrateAdjustment(taxedBases, tax) {
		it := items[taxedIdx[j]]
		it.Tax = share
		it.Total = it.Net + share
	}
	return items
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var feedDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

func parseFeedDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

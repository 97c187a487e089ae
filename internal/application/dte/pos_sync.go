package dte

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/dte-sync/internal/application/dto"
	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/domain/entity"
	"github.com/jhoicas/dte-sync/internal/domain/repository"
	domainsii "github.com/jhoicas/dte-sync/internal/domain/sii"
)

// POSSyncService registra lotes de ventas del POS resolviendo un identificador estable por venta.
type POSSyncService struct {
	txRunner TxRunner
	log      zerolog.Logger
}

// NewPOSSyncService construye el servicio.
func NewPOSSyncService(txRunner TxRunner, log zerolog.Logger) *POSSyncService {
	return &POSSyncService{txRunner: txRunner, log: log}
}

// IngestPOSSales registra cada venta del lote en su propia transacción. Las ventas sin
// identidad resoluble o con datos inválidos quedan en Errors; las ya registradas cuentan como
// duplicadas.
func (s *POSSyncService) IngestPOSSales(ctx context.Context, tenantID string, in dto.POSSyncRequest) (*dto.POSSyncResponse, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, domain.ErrInvalidInput
	}
	batch := domainsii.BatchContext{LocationID: strings.TrimSpace(in.LocationID), SerialNumber: strings.TrimSpace(in.SerialNumber)}
	out := &dto.POSSyncResponse{
		Received:       len(in.Sales),
		TransactionIDs: []string{},
		Errors:         []dto.POSSyncError{},
	}

	for i, raw := range in.Sales {
		tx, err := toPOSTransaction(tenantID, raw, batch)
		if err != nil {
			out.Errors = append(out.Errors, dto.POSSyncError{Index: i, Reason: err.Error()})
			continue
		}
		err = s.txRunner.RunDTE(ctx, func(_ repository.TaxDocumentRepository, posRepo repository.POSTransactionRepository) error {
			return posRepo.Create(ctx, tx)
		})
		switch {
		case errors.Is(err, domain.ErrDuplicateSale):
			out.Duplicates++
		case err != nil:
			out.Errors = append(out.Errors, dto.POSSyncError{Index: i, Reason: err.Error()})
		default:
			out.Created++
			out.TransactionIDs = append(out.TransactionIDs, tx.ID)
		}
	}

	s.log.Info().Str("tenant_id", tenantID).Str("location_id", batch.LocationID).
		Int("received", out.Received).Int("created", out.Created).Int("duplicates", out.Duplicates).
		Int("errors", len(out.Errors)).Msg("lote POS procesado")
	return out, nil
}

// toPOSTransaction resuelve la identidad y normaliza montos. Si no viene totalAmount se usa
// saleAmount + tipAmount.
func toPOSTransaction(tenantID string, raw domainsii.RawSale, batch domainsii.BatchContext) (*entity.POSTransaction, error) {
	saleID, err := domainsii.ResolveSaleID(raw, batch)
	if err != nil {
		return nil, err
	}
	sale, err := domainsii.ParseAmount(raw.SaleAmount)
	if err != nil {
		return nil, err
	}
	tip, err := domainsii.ParseAmount(raw.TipAmount)
	if err != nil {
		return nil, err
	}
	total, err := domainsii.ParseAmount(raw.TotalAmount)
	if err != nil {
		return nil, err
	}
	if raw.TotalAmount.Empty() {
		total = sale + tip
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: venta %s sin monto total", domain.ErrInvalidInput, saleID)
	}

	serial := raw.SerialNumber.String()
	if serial == "" {
		serial = batch.SerialNumber
	}
	tx := &entity.POSTransaction{
		TenantID:            tenantID,
		ExternalSaleID:      saleID,
		SequenceNumber:      raw.SequenceNumber.String(),
		SerialNumber:        serial,
		LocationID:          batch.LocationID,
		Status:              strings.TrimSpace(raw.Status),
		TransactionDateTime: parseSaleTime(raw.TransactionDateTime.String()),
		SaleAmount:          sale,
		TipAmount:           tip,
		TotalAmount:         total,
	}
	for j, it := range raw.Items {
		qty, err := domainsii.ParseAmount(it.Quantity)
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("%w: ítem %d de la venta %s con cantidad inválida", domain.ErrInvalidInput, j+1, saleID)
		}
		price, err := domainsii.ParseAmount(it.Price)
		if err != nil || price < 0 {
			return nil, fmt.Errorf("%w: ítem %d de la venta %s con precio inválido", domain.ErrInvalidInput, j+1, saleID)
		}
		tx.Items = append(tx.Items, entity.POSTransactionItem{Name: strings.TrimSpace(it.Name), Quantity: qty, Price: price})
	}
	return tx, nil
}

var saleTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// parseSaleTime interpreta la fecha del POS; ilegible queda en cero (se guarda NULL).
func parseSaleTime(s string) time.Time {
	for _, layout := range saleTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

package dte_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/dte-sync/internal/application/dte"
	"github.com/jhoicas/dte-sync/internal/application/dto"
	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/testutil"
)

const posBatch = `{
	"location_id": "local-centro",
	"serial_number": "CAJA2",
	"sales": [
		{"id": 98765, "status": "COMPLETED", "transactionDateTime": "2025-09-09T10:30:00Z",
		 "saleAmount": "8500", "tipAmount": 500,
		 "items": [{"name": "Almuerzo ejecutivo", "quantity": 1, "price": 7000}, {"name": "Café", "quantity": "1", "price": "1500"}]},
		{"id": null, "transactionId": "", "serialNumber": "POS001", "sequenceNumber": "SEQ001",
		 "transactionDateTime": "2025-09-09 10:30:00", "totalAmount": "15000.00"},
		{"transactionDateTime": "2025-09-09T10:30:00", "sequenceNumber": 7, "totalAmount": 15000},
		{"status": "VOID"},
		{"saleId": "S-9", "totalAmount": 1000, "items": [{"name": "x", "quantity": 0, "price": 10}]}
	]
}`

func TestIngestPOSSales(t *testing.T) {
	store := testutil.NewStore()
	svc := dte.NewPOSSyncService(store, zerolog.Nop())
	var req dto.POSSyncRequest
	require.NoError(t, json.Unmarshal([]byte(posBatch), &req))
	ctx := context.Background()

	out, err := svc.IngestPOSSales(ctx, testTenant, req)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Received)
	assert.Equal(t, 3, out.Created)
	assert.Zero(t, out.Duplicates)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, 3, out.Errors[0].Index)
	assert.Equal(t, 4, out.Errors[1].Index)

	sales := store.Sales()
	first := sales.FindByExternalID(testTenant, "98765")
	require.NotNil(t, first)
	assert.Equal(t, int64(9000), first.TotalAmount, "sin totalAmount se suma la propina")
	assert.Equal(t, "CAJA2", first.SerialNumber)
	assert.Equal(t, "local-centro", first.LocationID)
	require.Len(t, first.Items, 2)
	assert.Equal(t, int64(1500), first.Items[1].Price)

	composite := sales.FindByExternalID(testTenant, "POS0012025090910300015000SEQ001")
	require.NotNil(t, composite)
	assert.Equal(t, int64(15000), composite.TotalAmount)

	assert.NotNil(t, sales.FindByExternalID(testTenant, "CAJA220250909103000150007"), "serial del lote en la clave compuesta")

	// reenviar el lote no duplica
	again, err := svc.IngestPOSSales(ctx, testTenant, req)
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Equal(t, 3, again.Duplicates)
	assert.Equal(t, 3, store.SaleCount())
}

func TestIngestPOSSales_VentaIngeridaSeConvierteEnBoleta(t *testing.T) {
	e := newEnv()
	svc := dte.NewPOSSyncService(e.store, zerolog.Nop())
	var req dto.POSSyncRequest
	require.NoError(t, json.Unmarshal([]byte(posBatch), &req))
	req.Sales = req.Sales[:1]

	out, err := svc.IngestPOSSales(context.Background(), testTenant, req)
	require.NoError(t, err)
	require.Len(t, out.TransactionIDs, 1)

	res, err := e.builder.CreateDraftFromPOS(context.Background(), dte.DraftRequest{TenantID: testTenant, SourceID: out.TransactionIDs[0]})
	require.NoError(t, err)
	assert.Equal(t, int64(9000), res.Document.TotalAmount)
	assert.Equal(t, int64(7563), res.Document.NetAmount)
	assert.Equal(t, int64(1437), res.Document.TaxAmount)
}

func TestIngestPOSSales_TenantRequerido(t *testing.T) {
	svc := dte.NewPOSSyncService(testutil.NewStore(), zerolog.Nop())
	_, err := svc.IngestPOSSales(context.Background(), " ", dto.POSSyncRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

package dte_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/dte-sync/internal/application/dte"
	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/domain/entity"
	"github.com/jhoicas/dte-sync/internal/testutil"
)

const (
	testTenant  = "tenant-1"
	testEmitter = "77123456-9"
)

var fixedNow = time.Date(2025, 9, 9, 15, 0, 0, 0, time.UTC)

type env struct {
	store     *testutil.Store
	authority *testutil.FakeAuthority
	emission  *dte.EmissionService
	builder   *dte.DocumentBuilder
}

func newEnv() *env {
	store := testutil.NewStore()
	authority := &testutil.FakeAuthority{}
	clock := dte.Clock(func() time.Time { return fixedNow })
	emission := dte.NewEmissionService(store.Docs(), authority, zerolog.Nop(), clock)
	builder := dte.NewDocumentBuilder(
		store, store.Docs(), store.Sales(), store.Costs(), emission,
		dte.EmitterIdentity{TaxID: testEmitter, Name: "Café Los Andes SpA"},
		decimal.RequireFromString("0.19"), zerolog.Nop(), clock,
	)
	return &env{store: store, authority: authority, emission: emission, builder: builder}
}

// saleWithTip venta de 8.500 en ítems y 9.000 de total (500 de propina).
func saleWithTip() *entity.POSTransaction {
	return &entity.POSTransaction{
		ID:             "pos-tip",
		TenantID:       testTenant,
		ExternalSaleID: "SALE-1",
		SaleAmount:     8500,
		TipAmount:      500,
		TotalAmount:    9000,
		Items: []entity.POSTransactionItem{
			{Name: "Almuerzo ejecutivo", Quantity: 1, Price: 7000},
			{Name: "Café", Quantity: 1, Price: 1500},
		},
	}
}

func TestCreateDraftFromPOS_ProrrateaPropina(t *testing.T) {
	e := newEnv()
	e.store.AddSale(saleWithTip())

	res, err := e.builder.CreateDraftFromPOS(context.Background(), dte.DraftRequest{TenantID: testTenant, SourceID: "pos-tip"})
	require.NoError(t, err)
	require.NoError(t, res.EmissionErr)

	doc := res.Document
	assert.Equal(t, entity.StatusDraft, doc.Status)
	assert.Equal(t, entity.DirectionEmitted, doc.Direction)
	assert.Equal(t, entity.KindReceipt, doc.Kind)
	assert.Equal(t, 39, doc.ExternalTypeCode)
	assert.Equal(t, "66666666-6", doc.ReceiverTaxID)
	assert.Equal(t, testEmitter, doc.EmitterTaxID)
	assert.Empty(t, doc.Folio)
	assert.Equal(t, int64(7563), doc.NetAmount)
	assert.Equal(t, int64(1437), doc.TaxAmount)
	assert.Equal(t, int64(9000), doc.TotalAmount)
	assert.Equal(t, "pos-tip", doc.SourcePOSTransactionID)

	require.Len(t, res.Items, 2)
	assert.Equal(t, int64(411), res.Items[0].Adjustment)
	assert.Equal(t, int64(89), res.Items[1].Adjustment)
	assert.Equal(t, int64(7411), res.Items[0].Total)
	assert.Equal(t, int64(1589), res.Items[1].Total)
	var net, tax int64
	for _, it := range res.Items {
		net += it.Net
		tax += it.Tax
	}
	assert.Equal(t, doc.NetAmount, net)
	assert.Equal(t, doc.TaxAmount, tax)

	stored, items, err := e.builder.GetDocument(context.Background(), testTenant, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.TotalAmount, stored.TotalAmount)
	assert.Len(t, items, 2)
	assert.Zero(t, e.authority.SubmitCalls, "sin emit_now no se envía")
}

func TestCreateDraftFromPOS_YaConvertida(t *testing.T) {
	e := newEnv()
	e.store.AddSale(saleWithTip())
	ctx := context.Background()
	req := dte.DraftRequest{TenantID: testTenant, SourceID: "pos-tip"}

	_, err := e.builder.CreateDraftFromPOS(ctx, req)
	require.NoError(t, err)

	_, err = e.builder.CreateDraftFromPOS(ctx, req)
	assert.ErrorIs(t, err, domain.ErrAlreadyConverted)
	assert.Len(t, e.store.Documents(), 1)
}

func TestCreateDraftFromPOS_ReemplazadoPermiteNuevoDocumento(t *testing.T) {
	e := newEnv()
	e.store.AddSale(saleWithTip())
	ctx := context.Background()
	req := dte.DraftRequest{TenantID: testTenant, SourceID: "pos-tip"}

	first, err := e.builder.CreateDraftFromPOS(ctx, req)
	require.NoError(t, err)
	e.store.AddDocument(&entity.TaxDocument{ID: "correccion", TenantID: testTenant, Direction: entity.DirectionEmitted, Kind: entity.KindCreditNote, Status: entity.StatusDraft})

	_, err = e.builder.SupersedeDocument(ctx, testTenant, first.Document.ID, "correccion")
	require.NoError(t, err)

	second, err := e.builder.CreateDraftFromPOS(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.Document.ID, second.Document.ID)
}

func TestCreateDraftFromPOS_Errores(t *testing.T) {
	e := newEnv()
	e.store.AddSale(saleWithTip())
	ctx := context.Background()

	_, err := e.builder.CreateDraftFromPOS(ctx, dte.DraftRequest{TenantID: testTenant, SourceID: "no-existe"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.builder.CreateDraftFromPOS(ctx, dte.DraftRequest{TenantID: "otro-tenant", SourceID: "pos-tip"})
	assert.ErrorIs(t, err, domain.ErrNotFound, "otro tenant no ve la venta")

	_, err = e.builder.CreateDraftFromPOS(ctx, dte.DraftRequest{TenantID: testTenant, SourceID: "pos-tip", Kind: entity.KindInvoice})
	assert.ErrorIs(t, err, domain.ErrInvalidReceiver, "factura sin receptor")

	_, err = e.builder.CreateDraftFromPOS(ctx, dte.DraftRequest{
		TenantID: testTenant, SourceID: "pos-tip", Kind: entity.KindInvoice,
		Receiver: dte.Receiver{TaxID: "12.345.678-9", Name: "Cliente"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidReceiver, "dígito verificador incorrecto")

	_, err = e.builder.CreateDraftFromPOS(ctx, dte.DraftRequest{TenantID: testTenant, SourceID: "pos-tip", Kind: "TICKET"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Empty(t, e.store.Documents())
}

func TestCreateDraftFromPOS_FacturaConReceptor(t *testing.T) {
	e := newEnv()
	e.store.AddSale(saleWithTip())

	res, err := e.builder.CreateDraftFromPOS(context.Background(), dte.DraftRequest{
		TenantID: testTenant, SourceID: "pos-tip", Kind: entity.KindInvoice,
		Receiver: dte.Receiver{TaxID: "12.345.678-5", Name: " Comercial Sur Ltda ", Email: "pagos@sur.cl"},
	})
	require.NoError(t, err)
	assert.Equal(t, 33, res.Document.ExternalTypeCode)
	assert.Equal(t, "12345678-5", res.Document.ReceiverTaxID)
	assert.Equal(t, "Comercial Sur Ltda", res.Document.ReceiverName)
}

func TestCreateDraftFromPOS_EmitNowFallaConservaBorrador(t *testing.T) {
	e := newEnv()
	e.store.AddSale(saleWithTip())

	res, err := e.builder.CreateDraftFromPOS(context.Background(), dte.DraftRequest{TenantID: testTenant, SourceID: "pos-tip", EmitNow: true})
	require.NoError(t, err)
	assert.ErrorIs(t, res.EmissionErr, domain.ErrUpstreamTransport)
	assert.Equal(t, entity.StatusDraft, res.Document.Status)
	assert.NotEmpty(t, res.Document.LastError)

	docs := e.store.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, entity.StatusDraft, docs[0].Status)
	assert.Equal(t, 1, e.authority.SubmitCalls)
}

func TestCreateDraftFromPOS_EmitNowAceptado(t *testing.T) {
	e := newEnv()
	e.store.AddSale(saleWithTip())
	e.authority.SubmitFn = testutil.AcceptingSubmit(1001)

	res, err := e.builder.CreateDraftFromPOS(context.Background(), dte.DraftRequest{TenantID: testTenant, SourceID: "pos-tip", EmitNow: true})
	require.NoError(t, err)
	require.NoError(t, res.EmissionErr)
	assert.Equal(t, entity.StatusAccepted, res.Document.Status)
	assert.Equal(t, "1001", res.Document.Folio)
}

func TestCreateDraftFromCost(t *testing.T) {
	e := newEnv()
	e.store.AddCost(&entity.Cost{
		ID: "cost-1", TenantID: testTenant, Description: "Arriendo local",
		SupplierTaxID: "76.795.561-8", SupplierName: "Inmobiliaria Norte", Amount: 15000,
	})

	res, err := e.builder.CreateDraftFromCost(context.Background(), dte.DraftRequest{TenantID: testTenant, SourceID: "cost-1"})
	require.NoError(t, err)
	doc := res.Document
	assert.Equal(t, entity.KindInvoice, doc.Kind)
	assert.Equal(t, 33, doc.ExternalTypeCode)
	assert.Equal(t, "76795561-8", doc.ReceiverTaxID, "sin receptor se usa el proveedor")
	assert.Equal(t, int64(12605), doc.NetAmount)
	assert.Equal(t, int64(2395), doc.TaxAmount)
	assert.Equal(t, "cost-1", doc.SourceCostID)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Arriendo local", res.Items[0].Description)

	_, err = e.builder.CreateDraftFromCost(context.Background(), dte.DraftRequest{TenantID: testTenant, SourceID: "cost-1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyConverted)
}

func TestCreateDraftFromCost_Exento(t *testing.T) {
	e := newEnv()
	e.store.AddCost(&entity.Cost{
		ID: "cost-2", TenantID: testTenant, SupplierTaxID: "76795561-8", SupplierName: "Colegio", Amount: 50000, TaxExempt: true,
	})

	res, err := e.builder.CreateDraftFromCost(context.Background(), dte.DraftRequest{TenantID: testTenant, SourceID: "cost-2"})
	require.NoError(t, err)
	assert.Equal(t, 34, res.Document.ExternalTypeCode)
	assert.Equal(t, int64(50000), res.Document.NetAmount)
	assert.Equal(t, int64(50000), res.Document.ExemptAmount)
	assert.Zero(t, res.Document.TaxAmount)
}

func TestSupersedeDocument(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	e.store.AddDocument(&entity.TaxDocument{ID: "a", TenantID: testTenant, Status: entity.StatusAccepted})
	e.store.AddDocument(&entity.TaxDocument{ID: "b", TenantID: testTenant, Status: entity.StatusDraft})

	_, err := e.builder.SupersedeDocument(ctx, testTenant, "a", "a")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.builder.SupersedeDocument(ctx, "otro", "a", "b")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	doc, err := e.builder.SupersedeDocument(ctx, testTenant, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", doc.SupersededByID)

	_, err = e.builder.SupersedeDocument(ctx, testTenant, "a", "b")
	assert.ErrorIs(t, err, domain.ErrConflict, "ya estaba reemplazado")
}

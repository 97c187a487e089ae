package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/dte-sync/internal/domain"
	domainsii "github.com/jhoicas/dte-sync/internal/domain/sii"
	"github.com/jhoicas/dte-sync/internal/infrastructure/sii"
)

// FakeAuthority doble de sii.Authority. Las funciones nil devuelven ErrArtifactUnavailable (lecturas)
// o un error de transporte (envío); los contadores registran cada llamada.
type FakeAuthority struct {
	mu sync.Mutex

	SubmitFn        func(ctx context.Context, req *sii.SubmitRequest) (*sii.SubmitResult, error)
	FetchPageFn     func(ctx context.Context, q sii.ReceivedQuery) (*sii.ReceivedPage, error)
	FetchArtifactFn func(ctx context.Context, emitterTaxID string, typeCode int, folio, format string) (*sii.ArtifactPayload, error)
	FetchURLFn      func(ctx context.Context, url string) (*sii.ArtifactPayload, error)

	SubmitCalls        int
	FetchPageCalls     int
	FetchArtifactCalls int
	FetchURLCalls      int

	Submitted []*sii.SubmitRequest
	Queries   []sii.ReceivedQuery
}

var _ sii.Authority = (*FakeAuthority)(nil)

func (f *FakeAuthority) SubmitDocument(ctx context.Context, req *sii.SubmitRequest) (*sii.SubmitResult, error) {
	f.mu.Lock()
	f.SubmitCalls++
	f.Submitted = append(f.Submitted, req)
	fn := f.SubmitFn
	f.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: sin respuesta configurada", domain.ErrUpstreamTransport)
	}
	return fn(ctx, req)
}

func (f *FakeAuthority) FetchReceivedPage(ctx context.Context, q sii.ReceivedQuery) (*sii.ReceivedPage, error) {
	f.mu.Lock()
	f.FetchPageCalls++
	f.Queries = append(f.Queries, q)
	fn := f.FetchPageFn
	f.mu.Unlock()
	if fn == nil {
		return &sii.ReceivedPage{CurrentPage: q.Page, LastPage: q.Page}, nil
	}
	return fn(ctx, q)
}

func (f *FakeAuthority) FetchArtifact(ctx context.Context, emitterTaxID string, typeCode int, folio, format string) (*sii.ArtifactPayload, error) {
	f.mu.Lock()
	f.FetchArtifactCalls++
	fn := f.FetchArtifactFn
	f.mu.Unlock()
	if fn == nil {
		return nil, domain.ErrArtifactUnavailable
	}
	return fn(ctx, emitterTaxID, typeCode, folio, format)
}

func (f *FakeAuthority) FetchURL(ctx context.Context, url string) (*sii.ArtifactPayload, error) {
	f.mu.Lock()
	f.FetchURLCalls++
	fn := f.FetchURLFn
	f.mu.Unlock()
	if fn == nil {
		return nil, domain.ErrArtifactUnavailable
	}
	return fn(ctx, url)
}

// AcceptingSubmit respuesta de envío aceptado con folios correlativos desde first.
func AcceptingSubmit(first int) func(context.Context, *sii.SubmitRequest) (*sii.SubmitResult, error) {
	var mu sync.Mutex
	next := first
	return func(_ context.Context, _ *sii.SubmitRequest) (*sii.SubmitResult, error) {
		mu.Lock()
		defer mu.Unlock()
		folio := fmt.Sprint(next)
		next++
		return &sii.SubmitResult{
			Folio:              domainsii.NewFlexString(folio),
			ExternalDocumentID: domainsii.NewFlexString("ext-" + folio),
			PDFURL:             "/files/" + folio + ".pdf",
			XMLURL:             "/files/" + folio + ".xml",
			Status:             "ACCEPTED",
			Raw:                []byte(`{"folio":` + folio + `,"status":"ACCEPTED"}`),
		}, nil
	}
}

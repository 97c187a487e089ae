package sii_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/dte-sync/internal/domain"
	domainsii "github.com/jhoicas/dte-sync/internal/domain/sii"
	"github.com/jhoicas/dte-sync/internal/infrastructure/sii"
)

func newServer(t *testing.T, h http.HandlerFunc) (*sii.HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return sii.NewHTTPClient(srv.URL, "key-123", 2*time.Second), srv
}

func TestSubmitDocument_OK(t *testing.T) {
	var got sii.SubmitRequest
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/dte/document", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("apikey"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"folio":1234,"externalDocumentId":"ext-9","pdfUrl":"/files/1.pdf","issuedAt":"2025-09-09","status":"ACCEPTED"}`)
	})

	res, err := client.SubmitDocument(context.Background(), &sii.SubmitRequest{
		Response: []string{"FOLIO"},
		DTE: sii.DTE{
			Encabezado: sii.Encabezado{IdDoc: sii.IdDoc{TipoDTE: 39}},
			Detalle:    []sii.Detalle{{NroLinDet: 1, NmbItem: "Café", QtyItem: 1, PrcItem: 1190, MontoItem: 1190}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 39, got.DTE.Encabezado.IdDoc.TipoDTE)
	assert.Equal(t, "1234", res.Folio.String())
	assert.Equal(t, "ext-9", res.ExternalDocumentID.String())
	assert.True(t, res.Accepted())
	require.NotNil(t, res.IssuedAtTime())
	assert.Equal(t, 9, res.IssuedAtTime().Day())
	assert.NotEmpty(t, res.Raw)
}

func TestSubmitDocument_SinSenalAfirmativa(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"folio":"77"}`)
	})
	res, err := client.SubmitDocument(context.Background(), &sii.SubmitRequest{})
	require.NoError(t, err)
	assert.False(t, res.Accepted())
	assert.False(t, res.Rejected)
}

func TestSubmitDocument_Rechazo(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"message":"RUT receptor inválido"}`)
	})
	res, err := client.SubmitDocument(context.Background(), &sii.SubmitRequest{})
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Equal(t, "RUT receptor inválido", res.Message)
}

func TestSubmitDocument_ErrorServidor(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.SubmitDocument(context.Background(), &sii.SubmitRequest{})
	assert.ErrorIs(t, err, domain.ErrUpstreamTransport)
}

func TestSubmitDocument_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()
	client := sii.NewHTTPClient(srv.URL, "k", 50*time.Millisecond)
	_, err := client.SubmitDocument(context.Background(), &sii.SubmitRequest{})
	assert.ErrorIs(t, err, domain.ErrUpstreamTransport)
}

func TestFetchReceivedPage(t *testing.T) {
	var body map[string]any
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/dte/document/received", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{
			"data":[{"RUTEmisor":"76795561","DV":"8","RznSoc":"Proveedor SpA","TipoDTE":39,"Folio":"B-001",
			         "FchEmis":"2025-09-01","MntNeto":1000,"IVA":190,"MntTotal":"1190",
			         "Acuses":[{"codEvento":"ACD","fechaEvento":"2025-09-02"}]}],
			"current_page":1,"last_page":3,"total":21}`)
	})
	from := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	page, err := client.FetchReceivedPage(context.Background(), sii.ReceivedQuery{Page: 1, DateField: "FchEmis", DateFrom: &from, DocumentTypeCode: 39})
	require.NoError(t, err)

	assert.Equal(t, "2025-07-01", body["dateFrom"])
	assert.Equal(t, "FchEmis", body["dateField"])
	assert.EqualValues(t, 39, body["documentTypeCode"])
	assert.NotContains(t, body, "counterpartyTaxId")

	assert.Equal(t, 3, page.LastPage)
	require.Len(t, page.Data, 1)
	rec := page.Data[0]
	rut, err := rec.EmitterTaxID()
	require.NoError(t, err)
	assert.Equal(t, "76795561-8", rut)
	code, err := rec.TypeCode()
	require.NoError(t, err)
	assert.Equal(t, 39, code)
	assert.Equal(t, "B-001", rec.Folio.String())
	total, err := domainsii.ParseAmount(rec.MntTotal)
	require.NoError(t, err)
	assert.Equal(t, int64(1190), total)
	acks := rec.Acknowledgments()
	require.Len(t, acks, 1)
	assert.Equal(t, "ACD", acks[0].Code)
	assert.Contains(t, string(rec.Raw), `"B-001"`)
}

func TestFetchArtifact_CrudoYSobre(t *testing.T) {
	pdf := []byte("%PDF-1.4 prueba")
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/dte/document/76795561-8/39/100/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(pdf)
		case "/v2/dte/document/76795561-8/39/100/xml":
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			_ = json.NewEncoder(w).Encode(map[string]string{"xml": base64.StdEncoding.EncodeToString([]byte("<DTE/>"))})
		default:
			http.NotFound(w, r)
		}
	})

	got, err := client.FetchArtifact(context.Background(), "76795561-8", 39, "100", "pdf")
	require.NoError(t, err)
	assert.Equal(t, pdf, got.Content)
	assert.Equal(t, "application/pdf", got.ContentType)

	got, err = client.FetchArtifact(context.Background(), "76795561-8", 39, "100", "xml")
	require.NoError(t, err)
	assert.Equal(t, "<DTE/>", string(got.Content))
	assert.Equal(t, "application/xml", got.ContentType)

	_, err = client.FetchArtifact(context.Background(), "76795561-8", 39, "999", "pdf")
	assert.ErrorIs(t, err, domain.ErrArtifactUnavailable)

	_, err = client.FetchArtifact(context.Background(), "76795561-8", 39, "100", "docx")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFetchArtifact_CuerpoExcedeLimite(t *testing.T) {
	const limit = 20 << 20
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		size := limit
		if r.URL.Path == "/files/grande.pdf" {
			size++
		}
		_, _ = w.Write(bytes.Repeat([]byte("a"), size))
	})

	got, err := client.FetchURL(context.Background(), "/files/justo.pdf")
	require.NoError(t, err)
	assert.Len(t, got.Content, limit)

	_, err = client.FetchURL(context.Background(), "/files/grande.pdf")
	assert.ErrorIs(t, err, domain.ErrUpstreamTransport)
	assert.Contains(t, err.Error(), "excede")
}

func TestFetchURL_Relativa(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/1.pdf", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF")
	})
	got, err := client.FetchURL(context.Background(), "/files/1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(got.Content))

	_, err = client.FetchURL(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrArtifactUnavailable)
}

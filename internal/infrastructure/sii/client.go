package sii

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/dte-sync/internal/domain"
)

const (
	pathSubmit   = "/v2/dte/document"
	pathReceived = "/v2/dte/document/received"

	maxJSONBody     = 4 << 20  // 4 MB
	maxArtifactBody = 20 << 20 // 20 MB
)

// HTTPClient implementa Authority sobre la API JSON del proveedor (cabecera apikey).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Authority = (*HTTPClient)(nil)

// NewHTTPClient construye el cliente. timeout acota cada llamada además del contexto.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ── SubmitDocument ────────────────────────────────────────────────────────────

// SubmitDocument envía el DTE. 400/422 se interpretan como rechazo del contenido.
func (c *HTTPClient) SubmitDocument(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("sii: serializar documento: %w", err)
	}
	status, body, _, err := c.do(ctx, http.MethodPost, c.baseURL+pathSubmit, payload, maxJSONBody)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		res := &SubmitResult{Rejected: true, Raw: body}
		_ = json.Unmarshal(body, res)
		if res.Message == "" {
			res.Message = strings.TrimSpace(string(body))
		}
		return res, nil
	case status < 200 || status > 299:
		return nil, fmt.Errorf("%w: envío respondió HTTP %d: %s", domain.ErrUpstreamTransport, status, truncate(body))
	}

	res := &SubmitResult{Raw: body}
	if err := json.Unmarshal(body, res); err != nil {
		return nil, fmt.Errorf("%w: respuesta de envío ilegible: %v", domain.ErrUpstreamTransport, err)
	}
	if rejectedSubmitStatus[strings.ToUpper(strings.TrimSpace(res.Status))] {
		res.Rejected = true
		return res, nil
	}
	if res.Folio.Empty() {
		return nil, fmt.Errorf("%w: respuesta de envío sin folio", domain.ErrUpstreamTransport)
	}
	return res, nil
}

// ── FetchReceivedPage ─────────────────────────────────────────────────────────

// FetchReceivedPage pide una página del feed de documentos recibidos.
func (c *HTTPClient) FetchReceivedPage(ctx context.Context, q ReceivedQuery) (*ReceivedPage, error) {
	reqBody := receivedQueryBody{
		Page:              q.Page,
		DateField:         q.DateField,
		DocumentTypeCode:  q.DocumentTypeCode,
		CounterpartyTaxID: q.CounterpartyTaxID,
	}
	if reqBody.Page < 1 {
		reqBody.Page = 1
	}
	if q.DateFrom != nil {
		reqBody.DateFrom = q.DateFrom.Format("2006-01-02")
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("sii: serializar consulta: %w", err)
	}
	status, body, _, err := c.do(ctx, http.MethodPost, c.baseURL+pathReceived, payload, maxJSONBody)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: feed de recibidos respondió HTTP %d: %s", domain.ErrUpstreamTransport, status, truncate(body))
	}
	var page ReceivedPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: página %d ilegible: %v", domain.ErrUpstreamTransport, reqBody.Page, err)
	}
	if page.CurrentPage == 0 {
		page.CurrentPage = reqBody.Page
	}
	return &page, nil
}

// ── Representaciones ──────────────────────────────────────────────────────────

// FetchArtifact GET /v2/dte/document/{emisor}/{tipo}/{folio}/{pdf|xml}.
func (c *HTTPClient) FetchArtifact(ctx context.Context, emitterTaxID string, typeCode int, folio, format string) (*ArtifactPayload, error) {
	if format != "pdf" && format != "xml" {
		return nil, fmt.Errorf("%w: formato %q", domain.ErrInvalidInput, format)
	}
	u := fmt.Sprintf("%s%s/%s/%s/%s/%s", c.baseURL, pathSubmit,
		url.PathEscape(emitterTaxID), strconv.Itoa(typeCode), url.PathEscape(folio), format)
	return c.fetchArtifact(ctx, u, format)
}

// FetchURL descarga una URL almacenada. Si es relativa se resuelve contra la base del proveedor.
func (c *HTTPClient) FetchURL(ctx context.Context, rawURL string) (*ArtifactPayload, error) {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return nil, fmt.Errorf("%w: URL vacía", domain.ErrArtifactUnavailable)
	}
	if strings.HasPrefix(u, "/") {
		u = c.baseURL + u
	}
	return c.fetchArtifact(ctx, u, "")
}

func (c *HTTPClient) fetchArtifact(ctx context.Context, u, format string) (*ArtifactPayload, error) {
	status, body, contentType, err := c.do(ctx, http.MethodGet, u, nil, maxArtifactBody)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return nil, fmt.Errorf("%w: %s respondió HTTP %d", domain.ErrArtifactUnavailable, u, status)
	case status < 200 || status > 299:
		return nil, fmt.Errorf("%w: %s respondió HTTP %d", domain.ErrUpstreamTransport, u, status)
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" {
		return decodeEnvelope(body, format)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %s devolvió un cuerpo vacío", domain.ErrArtifactUnavailable, u)
	}
	return &ArtifactPayload{Content: body, ContentType: mediaType}, nil
}

// decodeEnvelope interpreta {"pdf": "<base64>"} o {"xml": "<base64>"}.
func decodeEnvelope(body []byte, format string) (*ArtifactPayload, error) {
	var env map[string]string
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: sobre JSON ilegible: %v", domain.ErrUpstreamTransport, err)
	}
	keys := []string{format}
	if format == "" {
		keys = []string{"pdf", "xml"}
	}
	for _, k := range keys {
		encoded := strings.TrimSpace(env[k])
		if encoded == "" {
			continue
		}
		content, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: base64 inválido en %q: %v", domain.ErrUpstreamTransport, k, err)
		}
		return &ArtifactPayload{Content: content, ContentType: contentTypeFor(k)}, nil
	}
	return nil, fmt.Errorf("%w: el sobre no trae contenido", domain.ErrArtifactUnavailable)
}

func contentTypeFor(format string) string {
	switch format {
	case "pdf":
		return "application/pdf"
	case "xml":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

// ── HTTP ──────────────────────────────────────────────────────────────────────

// do ejecuta la llamada. Sólo devuelve error ante fallas de transporte; el status lo evalúa
// cada operación.
func (c *HTTPClient) do(ctx context.Context, method, u string, payload []byte, limit int64) (int, []byte, string, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, "", fmt.Errorf("sii: crear request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json, application/pdf, application/xml")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, "", fmt.Errorf("%w: timeout o cancelación: %w", domain.ErrUpstreamTransport, ctxErr)
		}
		return 0, nil, "", fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamTransport, method, u, err)
	}
	defer resp.Body.Close()

	// se lee un byte de más para distinguir un cuerpo truncado de uno que cabe justo
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return 0, nil, "", fmt.Errorf("%w: leer respuesta: %v", domain.ErrUpstreamTransport, err)
	}
	if int64(len(raw)) > limit {
		return 0, nil, "", fmt.Errorf("%w: %s %s: respuesta excede %d bytes", domain.ErrUpstreamTransport, method, u, limit)
	}
	return resp.StatusCode, raw, resp.Header.Get("Content-Type"), nil
}

func truncate(b []byte) string {
	const max = 300
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

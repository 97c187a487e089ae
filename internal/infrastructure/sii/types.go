// Package sii implementa el cliente HTTP del proveedor de DTE que firma, timbra y envía los
// documentos al SII, y expone el feed de documentos recibidos.
package sii

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	domainsii "github.com/jhoicas/dte-sync/internal/domain/sii"
	pkgsii "github.com/jhoicas/dte-sync/pkg/sii"
)

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// Authority define el puerto de salida hacia la autoridad tributaria.
// Los errores de red, timeouts y respuestas 5xx envuelven domain.ErrUpstreamTransport; un 404 al
// pedir representaciones envuelve domain.ErrArtifactUnavailable.
type Authority interface {
	// SubmitDocument envía un DTE. Un rechazo explícito no es error: viene en SubmitResult.Rejected.
	SubmitDocument(ctx context.Context, req *SubmitRequest) (*SubmitResult, error)
	// FetchReceivedPage trae una página del feed de documentos recibidos.
	FetchReceivedPage(ctx context.Context, q ReceivedQuery) (*ReceivedPage, error)
	// FetchArtifact busca el PDF o XML por emisor, tipo y folio.
	FetchArtifact(ctx context.Context, emitterTaxID string, typeCode int, folio, format string) (*ArtifactPayload, error)
	// FetchURL descarga una representación ya conocida (URL almacenada).
	FetchURL(ctx context.Context, url string) (*ArtifactPayload, error)
}

// ── Envío ─────────────────────────────────────────────────────────────────────

// SubmitRequest cuerpo de POST /v2/dte/document.
type SubmitRequest struct {
	Response []string `json:"response"` // representaciones a devolver: PDF, XML, FOLIO
	DTE      DTE      `json:"dte"`
}

// DTE documento en la nomenclatura del SII.
type DTE struct {
	Encabezado Encabezado `json:"Encabezado"`
	Detalle    []Detalle  `json:"Detalle"`
}

type Encabezado struct {
	IdDoc    IdDoc    `json:"IdDoc"`
	Emisor   Emisor   `json:"Emisor"`
	Receptor Receptor `json:"Receptor"`
	Totales  Totales  `json:"Totales"`
}

type IdDoc struct {
	TipoDTE int    `json:"TipoDTE"`
	Folio   int    `json:"Folio"` // 0: lo asigna el proveedor
	FchEmis string `json:"FchEmis"`
}

type Emisor struct {
	RUTEmisor string `json:"RUTEmisor"`
	RznSoc    string `json:"RznSoc"`
}

type Receptor struct {
	RUTRecep    string `json:"RUTRecep"`
	RznSocRecep string `json:"RznSocRecep"`
	CorreoRecep string `json:"CorreoRecep,omitempty"`
}

type Totales struct {
	MntNeto  int64  `json:"MntNeto,omitempty"`
	MntExe   int64  `json:"MntExe,omitempty"`
	TasaIVA  string `json:"TasaIVA,omitempty"`
	IVA      int64  `json:"IVA,omitempty"`
	MntTotal int64  `json:"MntTotal"`
}

// Detalle línea del DTE. NroLinDet es base 1; IndExe = 1 marca la línea exenta.
type Detalle struct {
	NroLinDet int    `json:"NroLinDet"`
	NmbItem   string `json:"NmbItem"`
	QtyItem   int64  `json:"QtyItem"`
	PrcItem   int64  `json:"PrcItem"`
	MontoItem int64  `json:"MontoItem"`
	IndExe    int    `json:"IndExe,omitempty"`
}

// SubmitResult respuesta del envío.
type SubmitResult struct {
	Folio              domainsii.FlexString `json:"folio"`
	ExternalDocumentID domainsii.FlexString `json:"externalDocumentId"`
	PDFURL             string               `json:"pdfUrl"`
	XMLURL             string               `json:"xmlUrl"`
	IssuedAt           string               `json:"issuedAt"`
	Status             string               `json:"status"`
	Message            string               `json:"message"`

	Rejected bool   `json:"-"` // el proveedor rechazó el contenido (4xx de validación o estado de rechazo)
	Raw      []byte `json:"-"` // cuerpo tal cual se recibió
}

var (
	acceptedSubmitStatus = map[string]bool{"ACCEPTED": true, "ACEPTADO": true, "EPR": true, "DOK": true}
	rejectedSubmitStatus = map[string]bool{"REJECTED": true, "RECHAZADO": true, "RCH": true, "RCT": true, "RFR": true}
)

// Accepted sólo es verdadero ante una señal afirmativa explícita del proveedor.
func (r *SubmitResult) Accepted() bool {
	return !r.Rejected && acceptedSubmitStatus[strings.ToUpper(strings.TrimSpace(r.Status))]
}

// IssuedAtTime interpreta issuedAt (RFC 3339 o AAAA-MM-DD). Nil si no vino o no se entiende.
func (r *SubmitResult) IssuedAtTime() *time.Time {
	return parseDate(r.IssuedAt)
}

// ── Feed de recibidos ─────────────────────────────────────────────────────────

// ReceivedQuery filtros de POST /v2/dte/document/received.
type ReceivedQuery struct {
	Page              int
	DateField         string // FchEmis | FchRecep
	DateFrom          *time.Time
	DocumentTypeCode  int
	CounterpartyTaxID string
}

type receivedQueryBody struct {
	Page              int    `json:"page"`
	DateField         string `json:"dateField"`
	DateFrom          string `json:"dateFrom,omitempty"`
	DocumentTypeCode  int    `json:"documentTypeCode,omitempty"`
	CounterpartyTaxID string `json:"counterpartyTaxId,omitempty"`
}

// ReceivedPage página del feed.
type ReceivedPage struct {
	Data        []ReceivedRecord `json:"data"`
	CurrentPage int              `json:"current_page"`
	LastPage    int              `json:"last_page"`
	Total       int              `json:"total"`
}

// ReceivedRecord documento emitido por un tercero al negocio.
type ReceivedRecord struct {
	RUTEmisor domainsii.FlexString `json:"RUTEmisor"`
	DV        string               `json:"DV"`
	RznSoc    string               `json:"RznSoc"`
	TipoDTE   domainsii.FlexString `json:"TipoDTE"`
	Folio     domainsii.FlexString `json:"Folio"`
	FchEmis   string               `json:"FchEmis"`
	FchRecep  string               `json:"FchRecep"`
	MntNeto   domainsii.FlexString `json:"MntNeto"`
	MntExe    domainsii.FlexString `json:"MntExe"`
	IVA       domainsii.FlexString `json:"IVA"`
	MntTotal  domainsii.FlexString `json:"MntTotal"`
	Acuses    []ReceivedAck        `json:"Acuses"`
	Detalle   []ReceivedLine       `json:"Detalle"`

	Raw json.RawMessage `json:"-"`
}

// ReceivedAck acuse o reclamo registrado sobre el documento.
type ReceivedAck struct {
	CodEvento   string `json:"codEvento"`
	FechaEvento string `json:"fechaEvento"`
}

// ReceivedLine línea de detalle informada por el feed (opcional).
type ReceivedLine struct {
	NroLinDet int                  `json:"NroLinDet"`
	NmbItem   string               `json:"NmbItem"`
	QtyItem   domainsii.FlexString `json:"QtyItem"`
	PrcItem   domainsii.FlexString `json:"PrcItem"`
	MontoItem domainsii.FlexString `json:"MontoItem"`
	IndExe    domainsii.FlexString `json:"IndExe"`
}

func (r *ReceivedRecord) UnmarshalJSON(b []byte) error {
	type alias ReceivedRecord
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*r = ReceivedRecord(a)
	r.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// EmitterTaxID RUT del emisor normalizado (NNNNNNNN-D). Acepta RUT y DV separados o juntos.
func (r ReceivedRecord) EmitterTaxID() (string, error) {
	raw := r.RUTEmisor.String()
	if dv := strings.TrimSpace(r.DV); dv != "" {
		raw = raw + "-" + dv
	}
	rut, err := pkgsii.ParseRUT(raw)
	if err != nil {
		return "", err
	}
	return rut.String(), nil
}

// TypeCode TipoDTE numérico.
func (r ReceivedRecord) TypeCode() (int, error) {
	n, err := strconv.Atoi(r.TipoDTE.String())
	if err != nil {
		return 0, fmt.Errorf("TipoDTE %q no numérico", r.TipoDTE.String())
	}
	return n, nil
}

// IssueDate fecha de emisión (FchEmis); nil si no viene o no se entiende.
func (r ReceivedRecord) IssueDate() *time.Time {
	return parseDate(r.FchEmis)
}

// Acknowledgments acuses como valores de dominio, en el orden del feed.
func (r ReceivedRecord) Acknowledgments() []domainsii.Acknowledgment {
	out := make([]domainsii.Acknowledgment, 0, len(r.Acuses))
	for _, a := range r.Acuses {
		ack := domainsii.Acknowledgment{Code: a.CodEvento}
		if t := parseDate(a.FechaEvento); t != nil {
			ack.At = *t
		}
		out = append(out, ack)
	}
	return out
}

// ── Representaciones ──────────────────────────────────────────────────────────

// ArtifactPayload bytes de un PDF o XML.
type ArtifactPayload struct {
	Content     []byte
	ContentType string
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

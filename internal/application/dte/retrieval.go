package dte

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"

	"github.com/jhoicas/dte-sync/internal/application/dto"
	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/domain/entity"
	"github.com/jhoicas/dte-sync/internal/domain/repository"
	"github.com/jhoicas/dte-sync/internal/infrastructure/sii"
)

// Formatos y modos de entrega.
const (
	FormatPDF  = "pdf"
	FormatXML  = "xml"
	FormatJSON = "json"

	ModeInline   = "inline"
	ModeDownload = "download"
)

// Niveles de la cadena de búsqueda, informados al cliente.
const (
	TierCache       = "cache"       // URL almacenada en el documento
	TierLiveLookup  = "live_lookup" // consulta al proveedor por emisor, tipo y folio
	TierSynthesized = "synthesized" // proyección JSON del registro local
)

// Artifact representación lista para entregar.
type Artifact struct {
	Content     []byte
	ContentType string
	Filename    string
	Disposition string // inline | attachment
	Tier        string
}

// ContentDisposition valor de la cabecera HTTP.
func (a *Artifact) ContentDisposition() string {
	return fmt.Sprintf(`%s; filename="%s"`, a.Disposition, a.Filename)
}

// RetrievalGateway entrega PDF, XML o JSON de un documento. Para PDF y XML prueba primero la
// URL almacenada y luego la búsqueda en vivo; nunca sintetiza un PDF o XML.
type RetrievalGateway struct {
	docRepo   repository.TaxDocumentRepository
	authority sii.Authority
	cache     ArtifactCache
	log       zerolog.Logger
}

// NewRetrievalGateway construye el gateway. cache puede ser nil.
func NewRetrievalGateway(docRepo repository.TaxDocumentRepository, authority sii.Authority, cache ArtifactCache, log zerolog.Logger) *RetrievalGateway {
	return &RetrievalGateway{docRepo: docRepo, authority: authority, cache: cache, log: log}
}

// GetDocumentArtifact resuelve la representación pedida.
func (g *RetrievalGateway) GetDocumentArtifact(ctx context.Context, tenantID, documentID, format, mode string) (*Artifact, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != FormatPDF && format != FormatXML && format != FormatJSON {
		return nil, fmt.Errorf("%w: formato %q", domain.ErrInvalidInput, format)
	}
	disposition := "inline"
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeInline:
	case ModeDownload:
		disposition = "attachment"
	default:
		return nil, fmt.Errorf("%w: modo %q", domain.ErrInvalidInput, mode)
	}

	doc, err := g.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}

	var art *Artifact
	if format == FormatJSON {
		art, err = g.synthesize(ctx, doc)
	} else {
		art, err = g.lookup(ctx, doc, format)
	}
	if err != nil {
		return nil, err
	}
	art.Filename = ArtifactFilename(doc, format)
	art.Disposition = disposition
	return art, nil
}

func (g *RetrievalGateway) synthesize(ctx context.Context, doc *entity.TaxDocument) (*Artifact, error) {
	items, err := g.docRepo.GetItems(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(dto.FromTaxDocument(doc, items))
	if err != nil {
		return nil, fmt.Errorf("serializar documento: %w", err)
	}
	return &Artifact{Content: body, ContentType: "application/json", Tier: TierSynthesized}, nil
}

// lookup recorre la cadena cache → live_lookup y devuelve ErrArtifactUnavailable si se agota.
func (g *RetrievalGateway) lookup(ctx context.Context, doc *entity.TaxDocument, format string) (*Artifact, error) {
	logger := g.log.With().Str("document_id", doc.ID).Str("format", format).Logger()
	var reasons []string

	if stored := storedURL(doc, format); stored != "" {
		payload, err := g.authority.FetchURL(ctx, stored)
		if err == nil {
			err = verifyPayload(payload, doc, format)
		}
		if err == nil {
			return artifactFrom(payload, format, TierCache), nil
		}
		logger.Debug().Err(err).Msg("URL almacenada no sirvió, se intenta búsqueda en vivo")
		reasons = append(reasons, "cache: "+err.Error())
	}

	if doc.Folio == "" || doc.EmitterTaxID == "" || doc.ExternalTypeCode == 0 {
		reasons = append(reasons, "live_lookup: documento sin folio asignado")
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactUnavailable, strings.Join(reasons, "; "))
	}

	key := artifactKey(doc, format)
	if g.cache != nil {
		if payload, ok := g.cache.Get(ctx, key); ok {
			return artifactFrom(payload, format, TierLiveLookup), nil
		}
	}
	payload, err := g.authority.FetchArtifact(ctx, doc.EmitterTaxID, doc.ExternalTypeCode, doc.Folio, format)
	if err == nil {
		err = verifyPayload(payload, doc, format)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamTransport) {
			logger.Warn().Err(err).Msg("búsqueda en vivo falló")
		}
		reasons = append(reasons, "live_lookup: "+err.Error())
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactUnavailable, strings.Join(reasons, "; "))
	}
	if g.cache != nil {
		g.cache.Set(ctx, key, payload)
	}
	return artifactFrom(payload, format, TierLiveLookup), nil
}

func storedURL(doc *entity.TaxDocument, format string) string {
	if format == FormatPDF {
		return doc.PDFURL
	}
	return doc.XMLURL
}

func artifactKey(doc *entity.TaxDocument, format string) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", doc.TenantID, doc.EmitterTaxID, doc.ExternalTypeCode, doc.Folio, format)
}

func artifactFrom(p *sii.ArtifactPayload, format, tier string) *Artifact {
	ct := p.ContentType
	if ct == "" || ct == "application/octet-stream" || ct == "application/json" {
		if format == FormatPDF {
			ct = "application/pdf"
		} else {
			ct = "application/xml"
		}
	}
	return &Artifact{Content: p.Content, ContentType: ct, Tier: tier}
}

// verifyPayload descarta contenido vacío y XML cuyo Folio no corresponde al documento.
func verifyPayload(p *sii.ArtifactPayload, doc *entity.TaxDocument, format string) error {
	if p == nil || len(p.Content) == 0 {
		return errors.New("contenido vacío")
	}
	if format == FormatXML {
		return CheckXMLFolio(p.Content, doc.Folio)
	}
	return nil
}

// CheckXMLFolio valida que el XML sea legible (UTF-8 o ISO-8859-1, habitual en el SII) y que su
// elemento Folio, si existe, coincida con el folio esperado.
func CheckXMLFolio(content []byte, folio string) error {
	xmlDoc := etree.NewDocument()
	xmlDoc.ReadSettings.CharsetReader = charsetReader
	if err := xmlDoc.ReadFromBytes(bytes.TrimSpace(content)); err != nil {
		return fmt.Errorf("XML ilegible: %w", err)
	}
	el := xmlDoc.FindElement("//Folio")
	if el == nil || folio == "" {
		return nil
	}
	if got := strings.TrimSpace(el.Text()); got != folio {
		return fmt.Errorf("el XML corresponde al folio %s, se esperaba %s", got, folio)
	}
	return nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("charset %q no soportado", label)
	}
}

// ArtifactFilename nombre de archivo: <clase>_<folio>.<ext>, o borrador_<id> sin folio.
func ArtifactFilename(doc *entity.TaxDocument, format string) string {
	if doc.Folio == "" {
		return fmt.Sprintf("borrador_%s.%s", doc.ID, format)
	}
	return fmt.Sprintf("%s_%s.%s", kindSlug(doc.Kind), sanitizeFilename(doc.Folio), format)
}

func kindSlug(k entity.DocumentKind) string {
	switch k {
	case entity.KindReceipt:
		return "boleta"
	case entity.KindCreditNote:
		return "nota_credito"
	case entity.KindDebitNote:
		return "nota_debito"
	default:
		return "factura"
	}
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}

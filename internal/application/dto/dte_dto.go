package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/dte-sync/internal/domain/entity"
	domainsii "github.com/jhoicas/dte-sync/internal/domain/sii"
)

// ReceiverRequest receptor del documento. Para boletas puede omitirse (consumidor final).
type ReceiverRequest struct {
	TaxID string `json:"tax_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// CreateFromPOSRequest body para POST /api/dte/documents/from-pos.
type CreateFromPOSRequest struct {
	POSTransactionID string          `json:"pos_transaction_id"`
	Kind             string          `json:"kind,omitempty"` // por defecto RECEIPT
	Receiver         ReceiverRequest `json:"receiver"`
	EmitNow          bool            `json:"emit_now"`
	Notes            string          `json:"notes,omitempty"`
}

// CreateFromCostRequest body para POST /api/dte/documents/from-cost.
type CreateFromCostRequest struct {
	CostID   string          `json:"cost_id"`
	Kind     string          `json:"kind,omitempty"` // por defecto INVOICE
	Receiver ReceiverRequest `json:"receiver"`
	EmitNow  bool            `json:"emit_now"`
	Notes    string          `json:"notes,omitempty"`
}

// SupersedeRequest body para POST /api/dte/documents/:id/supersede.
type SupersedeRequest struct {
	ReplacementID string `json:"replacement_id"`
}

// TaxDocumentResponse documento con sus líneas.
type TaxDocumentResponse struct {
	ID                     string                    `json:"id"`
	TenantID               string                    `json:"tenant_id"`
	Direction              string                    `json:"direction"`
	Kind                   string                    `json:"kind"`
	ExternalTypeCode       int                       `json:"external_type_code"`
	Folio                  string                    `json:"folio,omitempty"`
	Status                 string                    `json:"status"`
	EmitterTaxID           string                    `json:"emitter_tax_id"`
	EmitterName            string                    `json:"emitter_name"`
	ReceiverTaxID          string                    `json:"receiver_tax_id"`
	ReceiverName           string                    `json:"receiver_name"`
	ReceiverEmail          string                    `json:"receiver_email,omitempty"`
	NetAmount              int64                     `json:"net_amount"`
	TaxAmount              int64                     `json:"tax_amount"`
	ExemptAmount           int64                     `json:"exempt_amount"`
	TotalAmount            int64                     `json:"total_amount"`
	IssuedAt               *time.Time                `json:"issued_at,omitempty"`
	Notes                  string                    `json:"notes,omitempty"`
	ExternalDocumentID     string                    `json:"external_document_id,omitempty"`
	PDFURL                 string                    `json:"pdf_url,omitempty"`
	XMLURL                 string                    `json:"xml_url,omitempty"`
	LastError              string                    `json:"last_error,omitempty"`
	SourcePOSTransactionID string                    `json:"source_pos_transaction_id,omitempty"`
	SourceCostID           string                    `json:"source_cost_id,omitempty"`
	SupersededByID         string                    `json:"superseded_by_id,omitempty"`
	CreatedAt              time.Time                 `json:"created_at"`
	UpdatedAt              time.Time                 `json:"updated_at"`
	Items                  []TaxDocumentItemResponse `json:"items,omitempty"`
}

// TaxDocumentItemResponse línea del documento.
type TaxDocumentItemResponse struct {
	LineNumber  int             `json:"line_number"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   int64           `json:"unit_price"`
	Adjustment  int64           `json:"adjustment,omitempty"`
	Net         int64           `json:"net"`
	Tax         int64           `json:"tax"`
	Total       int64           `json:"total"`
	TaxExempt   bool            `json:"tax_exempt"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// EmitFailureResponse error de emisión junto al documento en su último estado conocido.
type EmitFailureResponse struct {
	Code     string              `json:"code"`
	Message  string              `json:"message"`
	Document TaxDocumentResponse `json:"document"`
}

// DraftResponse resultado de crear un borrador. EmissionError informa un envío fallido
// sin deshacer el borrador.
type DraftResponse struct {
	Document      TaxDocumentResponse `json:"document"`
	EmissionError string              `json:"emission_error,omitempty"`
}

// FromTaxDocument proyecta el documento y sus líneas.
func FromTaxDocument(doc *entity.TaxDocument, items []*entity.TaxDocumentItem) TaxDocumentResponse {
	out := TaxDocumentResponse{
		ID:                     doc.ID,
		TenantID:               doc.TenantID,
		Direction:              string(doc.Direction),
		Kind:                   string(doc.Kind),
		ExternalTypeCode:       doc.ExternalTypeCode,
		Folio:                  doc.Folio,
		Status:                 string(doc.Status),
		EmitterTaxID:           doc.EmitterTaxID,
		EmitterName:            doc.EmitterName,
		ReceiverTaxID:          doc.ReceiverTaxID,
		ReceiverName:           doc.ReceiverName,
		ReceiverEmail:          doc.ReceiverEmail,
		NetAmount:              doc.NetAmount,
		TaxAmount:              doc.TaxAmount,
		ExemptAmount:           doc.ExemptAmount,
		TotalAmount:            doc.TotalAmount,
		IssuedAt:               doc.IssuedAt,
		Notes:                  doc.Notes,
		ExternalDocumentID:     doc.ExternalDocumentID,
		PDFURL:                 doc.PDFURL,
		XMLURL:                 doc.XMLURL,
		LastError:              doc.LastError,
		SourcePOSTransactionID: doc.SourcePOSTransactionID,
		SourceCostID:           doc.SourceCostID,
		SupersededByID:         doc.SupersededByID,
		CreatedAt:              doc.CreatedAt,
		UpdatedAt:              doc.UpdatedAt,
	}
	for _, it := range items {
		out.Items = append(out.Items, TaxDocumentItemResponse{
			LineNumber:  it.LineNumber,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Adjustment:  it.Adjustment,
			Net:         it.Net,
			Tax:         it.Tax,
			Total:       it.Total,
			TaxExempt:   it.TaxExempt,
			TaxRate:     it.TaxRate,
		})
	}
	return out
}

// ImportReceivedRequest body para POST /api/dte/imports/received. Fechas AAAA-MM-DD.
type ImportReceivedRequest struct {
	StartDate         string `json:"start_date,omitempty"`
	EndDate           string `json:"end_date,omitempty"`
	DocumentTypeCode  int    `json:"document_type_code,omitempty"`
	CounterpartyTaxID string `json:"counterparty_tax_id,omitempty"`
	DryRun            bool   `json:"dry_run"`
	MaxPages          int    `json:"max_pages,omitempty"`
}

// ImportSummaryResponse resumen de una corrida de importación.
type ImportSummaryResponse struct {
	StartDate    string               `json:"start_date"`
	EndDate      string               `json:"end_date,omitempty"`
	DryRun       bool                 `json:"dry_run"`
	LastPage     int                  `json:"last_page"`
	PagesFetched int                  `json:"pages_fetched"`
	Fetched      int                  `json:"fetched"`
	Imported     int                  `json:"imported"`
	Skipped      int                  `json:"skipped"`
	OutOfRange   int                  `json:"out_of_range"`
	Errors       []entity.ImportError `json:"errors"`
	Aborted      bool                 `json:"aborted"`
	AbortReason  string               `json:"abort_reason,omitempty"`
}

// FromImportRun proyecta el resumen.
func FromImportRun(run *entity.ImportRun) ImportSummaryResponse {
	out := ImportSummaryResponse{
		StartDate:    run.StartDate.Format("2006-01-02"),
		DryRun:       run.DryRun,
		LastPage:     run.Page,
		PagesFetched: run.PagesFetched,
		Fetched:      run.Fetched,
		Imported:     run.Imported,
		Skipped:      run.Skipped,
		OutOfRange:   run.OutOfRange,
		Errors:       run.Errors,
		Aborted:      run.Aborted,
		AbortReason:  run.AbortReason,
	}
	if !run.EndDate.IsZero() {
		out.EndDate = run.EndDate.Format("2006-01-02")
	}
	if out.Errors == nil {
		out.Errors = []entity.ImportError{}
	}
	return out
}

// POSSyncRequest body para POST /api/pos/sales/sync: lote de ventas de un local.
type POSSyncRequest struct {
	LocationID   string              `json:"location_id"`
	SerialNumber string              `json:"serial_number"`
	Sales        []domainsii.RawSale `json:"sales"`
}

// POSSyncError venta del lote que no se pudo registrar.
type POSSyncError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// POSSyncResponse resumen de la ingesta.
type POSSyncResponse struct {
	Received       int            `json:"received"`
	Created        int            `json:"created"`
	Duplicates     int            `json:"duplicates"`
	TransactionIDs []string       `json:"transaction_ids"`
	Errors         []POSSyncError `json:"errors"`
}

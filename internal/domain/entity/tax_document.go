package entity

import (
	"fmt"
	"time"
)

// DocumentKind clase interna de documento tributario.
type DocumentKind string

const (
	KindInvoice    DocumentKind = "INVOICE"     // Factura
	KindReceipt    DocumentKind = "RECEIPT"     // Boleta
	KindCreditNote DocumentKind = "CREDIT_NOTE" // Nota de crédito
	KindDebitNote  DocumentKind = "DEBIT_NOTE"  // Nota de débito
)

// Valid indica si el valor corresponde a una clase conocida.
func (k DocumentKind) Valid() bool {
	switch k {
	case KindInvoice, KindReceipt, KindCreditNote, KindDebitNote:
		return true
	}
	return false
}

// DocumentStatus estado del ciclo de vida frente al SII.
type DocumentStatus string

const (
	StatusDraft    DocumentStatus = "DRAFT"    // Creado localmente, no enviado (o envío explícitamente omitido)
	StatusPending  DocumentStatus = "PENDING"  // Enviado con folio asignado, sin confirmación definitiva
	StatusIssued   DocumentStatus = "ISSUED"   // Recibido de un tercero, sin acuses concluyentes
	StatusAccepted DocumentStatus = "ACCEPTED" // Aceptado
	StatusRejected DocumentStatus = "REJECTED" // Rechazado / reclamado
)

// Direction distingue documentos emitidos por el negocio de los recibidos de terceros.
type Direction string

const (
	DirectionEmitted  Direction = "EMITTED"
	DirectionReceived Direction = "RECEIVED"
)

// TaxDocument es el registro local y autoritativo de un DTE.
type TaxDocument struct {
	ID                     string
	TenantID               string
	Direction              Direction
	Kind                   DocumentKind
	ExternalTypeCode       int    // TipoDTE (33, 39, 56, 61...)
	Folio                  string // vacío hasta que el SII lo asigna
	Status                 DocumentStatus
	EmitterTaxID           string
	EmitterName            string
	ReceiverTaxID          string
	ReceiverName           string
	ReceiverEmail          string
	NetAmount              int64
	TaxAmount              int64
	ExemptAmount           int64 // suma informativa de líneas exentas (ya incluida en NetAmount)
	TotalAmount            int64
	IssuedAt               *time.Time
	Notes                  string
	ExternalDocumentID     string
	PDFURL                 string
	XMLURL                 string
	RawExternalResponse    []byte
	LastError              string
	SourcePOSTransactionID string
	SourceCostID           string
	SupersededByID         string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NaturalKey clave de negocio que identifica un DTE independiente del ID interno.
type NaturalKey struct {
	EmitterTaxID string
	Folio        string
	Kind         DocumentKind
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.EmitterTaxID, k.Folio, k.Kind)
}

// NaturalKey devuelve la clave natural del documento.
func (d *TaxDocument) NaturalKey() NaturalKey {
	return NaturalKey{EmitterTaxID: d.EmitterTaxID, Folio: d.Folio, Kind: d.Kind}
}

// Superseded indica si el documento fue reemplazado por una corrección.
func (d *TaxDocument) Superseded() bool {
	return d.SupersededByID != ""
}

// Terminal indica si el documento ya no admite un nuevo envío.
func (d *TaxDocument) Terminal() bool {
	return d.Status == StatusAccepted || d.Status == StatusRejected
}

// Package sii contiene las reglas de dominio del motor de DTE: tablas de códigos, resolución de
// identidad de ventas POS, separación de impuesto y validación de montos.
package sii

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jhoicas/dte-sync/internal/domain/entity"
	pkgsii "github.com/jhoicas/dte-sync/pkg/sii"
)

// Acknowledgment acuse registrado por el receptor o el SII sobre un documento.
type Acknowledgment struct {
	Code string
	At   time.Time
}

// MapExternalTypeToKind traduce TipoDTE a la clase interna. Nunca falla: un código desconocido
// se trata como factura y se registra una advertencia.
func MapExternalTypeToKind(code int) entity.DocumentKind {
	switch code {
	case pkgsii.TipoFacturaElectronica, pkgsii.TipoFacturaExentaElectronica:
		return entity.KindInvoice
	case pkgsii.TipoBoletaElectronica, pkgsii.TipoBoletaExentaElectronica:
		return entity.KindReceipt
	case pkgsii.TipoNotaDebitoElectronica:
		return entity.KindDebitNote
	case pkgsii.TipoNotaCreditoElectronica:
		return entity.KindCreditNote
	default:
		log.Warn().Int("tipo_dte", code).Msg("sii: TipoDTE desconocido, se asume factura")
		return entity.KindInvoice
	}
}

// KindToExternalTypeCode es la inversa usada al emitir. exempt selecciona 34/41 para
// documentos sin líneas afectas.
func KindToExternalTypeCode(kind entity.DocumentKind, exempt bool) int {
	switch kind {
	case entity.KindReceipt:
		if exempt {
			return pkgsii.TipoBoletaExentaElectronica
		}
		return pkgsii.TipoBoletaElectronica
	case entity.KindCreditNote:
		return pkgsii.TipoNotaCreditoElectronica
	case entity.KindDebitNote:
		return pkgsii.TipoNotaDebitoElectronica
	default:
		if exempt {
			return pkgsii.TipoFacturaExentaElectronica
		}
		return pkgsii.TipoFacturaElectronica
	}
}

// MapAcknowledgmentsToStatus deriva el estado a partir del ÚLTIMO acuse de la lista.
// Precondición: acks viene en orden cronológico (ver SortAcknowledgments).
func MapAcknowledgmentsToStatus(acks []Acknowledgment) entity.DocumentStatus {
	if len(acks) == 0 {
		return entity.StatusIssued
	}
	code := strings.ToUpper(strings.TrimSpace(acks[len(acks)-1].Code))
	switch {
	case pkgsii.AcceptedAcknowledgments[code]:
		return entity.StatusAccepted
	case pkgsii.RejectedAcknowledgments[code]:
		return entity.StatusRejected
	default:
		return entity.StatusIssued
	}
}

// SortAcknowledgments ordena cronológicamente sin alterar el orden relativo de acuses con
// la misma fecha. Los acuses sin fecha van al final en el orden del feed.
func SortAcknowledgments(acks []Acknowledgment) {
	sort.SliceStable(acks, func(i, j int) bool {
		a, b := acks[i].At, acks[j].At
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})
}

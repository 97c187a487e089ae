// Package sii contiene catálogos y utilidades del Servicio de Impuestos Internos (Chile)
// para documentos tributarios electrónicos (DTE).
package sii

// =============================================================================
// Tipos de DTE (campo TipoDTE)
// =============================================================================

const (
	TipoFacturaElectronica       = 33 // Factura electrónica afecta
	TipoFacturaExentaElectronica = 34 // Factura no afecta o exenta
	TipoBoletaElectronica        = 39 // Boleta electrónica
	TipoBoletaExentaElectronica  = 41 // Boleta exenta electrónica
	TipoNotaDebitoElectronica    = 56
	TipoNotaCreditoElectronica   = 61
)

// =============================================================================
// Acuses (eventos del receptor registrados en el Registro de Reclamos / RCV)
// =============================================================================

const (
	AcuseAceptaContenido      = "ACD" // Acepta contenido del documento
	AcuseReciboMercaderias    = "ERM" // Otorga recibo de mercaderías o servicios
	AcusePagoContado          = "PAG" // Pagado al contado
	AcuseReclamoContenido     = "RCD" // Reclamo al contenido del documento
	AcuseReclamoFaltaParcial  = "RFP" // Reclamo por falta parcial de mercaderías
	AcuseReclamoFaltaTotal    = "RFT" // Reclamo por falta total de mercaderías
	AcuseNoReclamadoEnPlazo   = "ENC" // Recibido, sin reclamo dentro de plazo
	AcuseCedido               = "CED" // Documento cedido (factoring)
)

// AcceptedAcknowledgments acuses que dejan el documento como aceptado.
var AcceptedAcknowledgments = map[string]bool{
	AcuseAceptaContenido:   true,
	AcuseReciboMercaderias: true,
	AcusePagoContado:       true,
}

// RejectedAcknowledgments acuses de reclamo.
var RejectedAcknowledgments = map[string]bool{
	AcuseReclamoContenido:    true,
	AcuseReclamoFaltaParcial: true,
	AcuseReclamoFaltaTotal:   true,
}

// ConsumidorFinalRUT RUT genérico que el SII admite como receptor de boletas sin identificar.
const (
	ConsumidorFinalRUT    = "66666666-6"
	ConsumidorFinalNombre = "Consumidor final"
)

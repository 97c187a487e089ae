package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Errores del motor de DTE.
	ErrInvalidReceiver      = errors.New("receptor inválido o incompleto")
	ErrAlreadyConverted     = errors.New("el origen ya tiene un documento tributario vigente")
	ErrUnresolvableIdentity = errors.New("no es posible determinar un identificador para la venta")
	ErrUpstreamTransport    = errors.New("falla de comunicación con el servicio tributario")
	ErrUpstreamRejected     = errors.New("documento rechazado por el servicio tributario")
	ErrArtifactUnavailable  = errors.New("representación del documento no disponible")
	ErrDuplicateNaturalKey  = errors.New("ya existe un documento con el mismo emisor, folio y tipo")
	ErrDuplicateSale        = errors.New("la venta ya fue registrada")
)

package sii

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/dte-sync/internal/domain"
)

// RawSale venta tal como llega del feed POS. Cualquier identificador puede venir ausente,
// nulo, vacío o numérico.
type RawSale struct {
	ID                  FlexString    `json:"id"`
	TransactionID       FlexString    `json:"transactionId"`
	SaleID              FlexString    `json:"saleId"`
	ProviderSaleID      FlexString    `json:"providerSaleId"`
	SequenceNumber      FlexString    `json:"sequenceNumber"`
	SerialNumber        FlexString    `json:"serialNumber"`
	Status              string        `json:"status"`
	TransactionDateTime FlexString    `json:"transactionDateTime"`
	SaleAmount          FlexString    `json:"saleAmount"`
	TipAmount           FlexString    `json:"tipAmount"`
	TotalAmount         FlexString    `json:"totalAmount"`
	Items               []RawSaleItem `json:"items"`
}

// RawSaleItem línea informada por el POS.
type RawSaleItem struct {
	Name     string     `json:"name"`
	Quantity FlexString `json:"quantity"`
	Price    FlexString `json:"price"`
}

// BatchContext datos del lote/local que envuelve a las ventas.
type BatchContext struct {
	LocationID   string
	SerialNumber string
}

// timestampDigits largo AAAAMMDDhhmmss.
const timestampDigits = 14

// ResolveSaleID devuelve un identificador externo no vacío para la venta.
//
// Orden: id → transactionId → saleId → providerSaleId → clave compuesta
// serial + timestamp saneado + monto total + secuencia. La compuesta es determinista pero no
// garantiza unicidad global si dos ventas comparten los cuatro componentes.
func ResolveSaleID(raw RawSale, batch BatchContext) (string, error) {
	for _, candidate := range []FlexString{raw.ID, raw.TransactionID, raw.SaleID, raw.ProviderSaleID} {
		if !candidate.Empty() {
			return candidate.String(), nil
		}
	}
	return compositeSaleID(raw, batch)
}

func compositeSaleID(raw RawSale, batch BatchContext) (string, error) {
	serial := raw.SerialNumber.String()
	if serial == "" {
		serial = strings.TrimSpace(batch.SerialNumber)
	}
	ts := SanitizeTimestamp(raw.TransactionDateTime.String())
	amount := NormalizeAmount(raw.TotalAmount.String())
	seq := raw.SequenceNumber.String()
	if serial == "" && ts == "" && amount == "" && seq == "" {
		return "", fmt.Errorf("%w: faltan id, serial, fecha, monto y secuencia", domain.ErrUnresolvableIdentity)
	}
	return serial + ts + amount + seq, nil
}

// SanitizeTimestamp conserva sólo dígitos y trunca a 14 (precisión de segundos).
func SanitizeTimestamp(s string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	if len(digits) > timestampDigits {
		digits = digits[:timestampDigits]
	}
	return digits
}

// NormalizeAmount representa el monto sin ceros decimales de relleno ("15000.0" → "15000").
// Si no es numérico se usa tal cual.
func NormalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.String()
}

// ParseAmount interpreta un monto en pesos enteros ("1190", 1190, "1190.0"). Vacío es 0.
func ParseAmount(f FlexString) (int64, error) {
	s := NormalizeAmount(f.String())
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: monto %q no es un entero", domain.ErrInvalidInput, f.String())
	}
	return n, nil
}

package sii

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/domain/entity"
)

// DefaultTaxRate IVA vigente en Chile.
var DefaultTaxRate = decimal.NewFromFloat(0.19)

// SplitTaxInclusive separa un monto con IVA incluido: net = round(total/(1+rate)), tax = total-net.
// Ambos son pesos enteros y net+tax == total siempre.
func SplitTaxInclusive(total int64, rate decimal.Decimal) (net, tax int64) {
	divisor := decimal.NewFromInt(1).Add(rate)
	net = decimal.NewFromInt(total).Div(divisor).Round(0).IntPart()
	return net, total - net
}

// ProrateAdjustment distribuye adjustment (recargo o descuento) entre las líneas en proporción
// a su monto base. La división trunca y el resto queda en la última línea, de modo que la
// suma de las porciones es exactamente adjustment. Ninguna línea queda con base+porción < 0
// mientras el descuento no supere la suma de las bases.
func ProrateAdjustment(bases []int64, adjustment int64) []int64 {
	shares := make([]int64, len(bases))
	if len(bases) == 0 || adjustment == 0 {
		return shares
	}
	var sum int64
	for _, b := range bases {
		sum += b
	}
	last := len(bases) - 1
	if sum == 0 {
		shares[last] = adjustment
		return shares
	}
	var assigned int64
	for i := 0; i < last; i++ {
		shares[i] = adjustment * bases[i] / sum
		assigned += shares[i]
	}
	shares[last] = adjustment - assigned
	// con descuentos casi totales el resto puede dejar una línea bajo cero:
	// el exceso se corre hacia las líneas anteriores que aún tienen margen
	for i := last; i > 0 && bases[i]+shares[i] < 0; i-- {
		excess := bases[i] + shares[i]
		shares[i] -= excess
		shares[i-1] += excess
	}
	return shares
}

// LineInput línea a valorizar. Quantity*UnitPrice + Adjustment es el total con IVA incluido.
type LineInput struct {
	Description string
	Quantity    int64
	UnitPrice   int64
	Adjustment  int64
	Exempt      bool
}

// Totals montos de cabecera. Exempt ya está incluido en Net.
type Totals struct {
	Net    int64
	Tax    int64
	Exempt int64
	Total  int64
}

// ComputeLines valoriza las líneas y calcula la cabecera como suma de las líneas.
// Las líneas exentas llevan net = total y tax = 0.
func ComputeLines(lines []LineInput, rate decimal.Decimal) ([]*entity.TaxDocumentItem, Totals, error) {
	if len(lines) == 0 {
		return nil, Totals{}, fmt.Errorf("%w: el documento debe tener al menos una línea", domain.ErrInvalidInput)
	}
	items := make([]*entity.TaxDocumentItem, 0, len(lines))
	var totals Totals
	for i, l := range lines {
		if l.Quantity <= 0 {
			return nil, Totals{}, fmt.Errorf("%w: línea %d con cantidad %d", domain.ErrInvalidInput, i+1, l.Quantity)
		}
		if l.UnitPrice < 0 {
			return nil, Totals{}, fmt.Errorf("%w: línea %d con precio negativo", domain.ErrInvalidInput, i+1)
		}
		total := l.Quantity*l.UnitPrice + l.Adjustment
		if total < 0 {
			return nil, Totals{}, fmt.Errorf("%w: línea %d queda con total negativo (%d)", domain.ErrInvalidInput, i+1, total)
		}
		item := &entity.TaxDocumentItem{
			LineNumber:  i + 1,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Adjustment:  l.Adjustment,
			Total:       total,
			TaxExempt:   l.Exempt,
		}
		if l.Exempt {
			item.Net, item.Tax = total, 0
			item.TaxRate = decimal.Zero
			totals.Exempt += total
		} else {
			item.Net, item.Tax = SplitTaxInclusive(total, rate)
			item.TaxRate = rate
		}
		totals.Net += item.Net
		totals.Tax += item.Tax
		totals.Total += item.Total
		items = append(items, item)
	}
	return items, totals, nil
}

// AllExempt indica si ninguna línea está afecta a IVA.
func AllExempt(items []*entity.TaxDocumentItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if !it.TaxExempt {
			return false
		}
	}
	return true
}

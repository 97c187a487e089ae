package sii

import (
	"errors"
	"fmt"

	pkgsii "github.com/jhoicas/dte-sync/pkg/sii"

	"github.com/jhoicas/dte-sync/internal/domain/entity"
)

// ErrInvalidDocument agrupa errores de validación de un DTE.
var ErrInvalidDocument = errors.New("documento tributario inválido")

// ValidateDocument comprueba la coherencia de montos entre cabecera y líneas.
// Para documentos emitidos además verifica el RUT del emisor y que cada línea afecta respete
// net = round(total/(1+rate)). Los recibidos se aceptan con los montos que informa el tercero.
func ValidateDocument(doc *entity.TaxDocument, items []*entity.TaxDocumentItem) error {
	if doc == nil {
		return fmt.Errorf("%w: documento nulo", ErrInvalidDocument)
	}
	var errs []error

	if !doc.Kind.Valid() {
		errs = append(errs, fmt.Errorf("clase %q desconocida", doc.Kind))
	}
	if doc.NetAmount+doc.TaxAmount != doc.TotalAmount {
		errs = append(errs, fmt.Errorf("net (%d) + tax (%d) no coincide con total (%d)", doc.NetAmount, doc.TaxAmount, doc.TotalAmount))
	}

	if doc.Direction == entity.DirectionEmitted {
		if _, err := pkgsii.ParseRUT(doc.EmitterTaxID); err != nil {
			errs = append(errs, fmt.Errorf("emisor: %w", err))
		}
		if len(items) == 0 {
			errs = append(errs, errors.New("el documento debe tener al menos una línea"))
		}
	}

	if len(items) > 0 {
		var sumNet, sumTax, sumTotal, sumExempt int64
		for _, it := range items {
			if it.Net+it.Tax != it.Total {
				errs = append(errs, fmt.Errorf("línea %d: net (%d) + tax (%d) no coincide con total (%d)", it.LineNumber, it.Net, it.Tax, it.Total))
			}
			if it.TaxExempt {
				if it.Tax != 0 {
					errs = append(errs, fmt.Errorf("línea %d: exenta con impuesto %d", it.LineNumber, it.Tax))
				}
				sumExempt += it.Total
			} else if doc.Direction == entity.DirectionEmitted {
				if net, _ := SplitTaxInclusive(it.Total, it.TaxRate); net != it.Net {
					errs = append(errs, fmt.Errorf("línea %d: neto %d, se esperaba %d", it.LineNumber, it.Net, net))
				}
			}
			sumNet += it.Net
			sumTax += it.Tax
			sumTotal += it.Total
		}
		if sumNet != doc.NetAmount {
			errs = append(errs, fmt.Errorf("net (%d) no coincide con la suma de líneas (%d)", doc.NetAmount, sumNet))
		}
		if sumTax != doc.TaxAmount {
			errs = append(errs, fmt.Errorf("tax (%d) no coincide con la suma de líneas (%d)", doc.TaxAmount, sumTax))
		}
		if sumTotal != doc.TotalAmount {
			errs = append(errs, fmt.Errorf("total (%d) no coincide con la suma de líneas (%d)", doc.TotalAmount, sumTotal))
		}
		if sumExempt != doc.ExemptAmount {
			errs = append(errs, fmt.Errorf("exento (%d) no coincide con la suma de líneas exentas (%d)", doc.ExemptAmount, sumExempt))
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidDocument}, errs...)...)
	}
	return nil
}

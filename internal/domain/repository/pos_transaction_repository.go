package repository

import (
	"context"

	"github.com/jhoicas/dte-sync/internal/domain/entity"
)

// POSTransactionRepository puerto de persistencia para ventas POS.
type POSTransactionRepository interface {
	// Create inserta la venta con sus ítems. Devuelve domain.ErrDuplicateSale si el
	// external_sale_id ya existe para el tenant.
	Create(ctx context.Context, tx *entity.POSTransaction) error
	GetByID(ctx context.Context, id string) (*entity.POSTransaction, error)
}

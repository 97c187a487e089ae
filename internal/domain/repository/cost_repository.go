package repository

import (
	"context"

	"github.com/jhoicas/dte-sync/internal/domain/entity"
)

// CostRepository lectura de gastos registrados (el CRUD de gastos vive fuera de este servicio).
type CostRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Cost, error)
}

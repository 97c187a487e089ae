package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/dte-sync/internal/domain/entity"
	"github.com/jhoicas/dte-sync/internal/domain/repository"
)

var _ repository.CostRepository = (*CostRepo)(nil)

// CostRepo lectura de gastos.
type CostRepo struct {
	q Querier
}

func NewCostRepository(q Querier) *CostRepo {
	return &CostRepo{q: q}
}

// GetByID obtiene un gasto. (nil, nil) si no existe.
func (r *CostRepo) GetByID(ctx context.Context, id string) (*entity.Cost, error) {
	const query = `
		SELECT id, tenant_id, description, supplier_tax_id, supplier_name, amount, tax_exempt, incurred_at
		FROM costs WHERE id = $1`
	var c entity.Cost
	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.TenantID, &c.Description, &c.SupplierTaxID, &c.SupplierName, &c.Amount, &c.TaxExempt, &c.IncurredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cost: %w", err)
	}
	return &c, nil
}

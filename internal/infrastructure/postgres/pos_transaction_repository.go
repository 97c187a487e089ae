package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/dte-sync/internal/domain/entity"
	"github.com/jhoicas/dte-sync/internal/domain/repository"
)

var _ repository.POSTransactionRepository = (*POSTransactionRepo)(nil)

// POSTransactionRepo implementación de POSTransactionRepository (usable con pool o tx).
// Create inserta cabecera e ítems; llamar dentro de una tx para que sea atómico.
type POSTransactionRepo struct {
	q Querier
}

// NewPOSTransactionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPOSTransactionRepository(q Querier) *POSTransactionRepo {
	return &POSTransactionRepo{q: q}
}

// Create persiste la venta y sus ítems.
func (r *POSTransactionRepo) Create(ctx context.Context, tx *entity.POSTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO pos_transactions (id, tenant_id, external_sale_id, sequence_number, serial_number, location_id,
		                              status, transaction_date_time, sale_amount, tip_amount, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		tx.ID, tx.TenantID, tx.ExternalSaleID, tx.SequenceNumber, tx.SerialNumber, tx.LocationID,
		tx.Status, nullIfZeroTime(tx.TransactionDateTime), tx.SaleAmount, tx.TipAmount, tx.TotalAmount, tx.CreatedAt,
	)
	if err != nil {
		if derr := uniqueViolationError(err); derr != nil {
			return fmt.Errorf("%w: %s", derr, tx.ExternalSaleID)
		}
		return fmt.Errorf("insert pos transaction: %w", err)
	}

	const itemQuery = `
		INSERT INTO pos_transaction_items (id, pos_transaction_id, line_number, name, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i, it := range tx.Items {
		if _, err := r.q.Exec(ctx, itemQuery, uuid.New().String(), tx.ID, i+1, it.Name, it.Quantity, it.Price); err != nil {
			return fmt.Errorf("insert pos transaction item: %w", err)
		}
	}
	return nil
}

// GetByID obtiene la venta con sus ítems. (nil, nil) si no existe.
func (r *POSTransactionRepo) GetByID(ctx context.Context, id string) (*entity.POSTransaction, error) {
	query := `
		SELECT id, tenant_id, external_sale_id, sequence_number, serial_number, location_id, status,
		       transaction_date_time, sale_amount, tip_amount, total_amount, created_at
		FROM pos_transactions WHERE id = $1`
	var tx entity.POSTransaction
	var at *time.Time
	err := r.q.QueryRow(ctx, query, id).Scan(
		&tx.ID, &tx.TenantID, &tx.ExternalSaleID, &tx.SequenceNumber, &tx.SerialNumber, &tx.LocationID, &tx.Status,
		&at, &tx.SaleAmount, &tx.TipAmount, &tx.TotalAmount, &tx.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pos transaction: %w", err)
	}
	if at != nil {
		tx.TransactionDateTime = *at
	}

	rows, err := r.q.Query(ctx, `
		SELECT name, quantity, price FROM pos_transaction_items
		WHERE pos_transaction_id = $1 ORDER BY line_number`, id)
	if err != nil {
		return nil, fmt.Errorf("list pos transaction items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.POSTransactionItem
		if err := rows.Scan(&it.Name, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scan pos transaction item: %w", err)
		}
		tx.Items = append(tx.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pos transaction items: %w", err)
	}
	return &tx, nil
}

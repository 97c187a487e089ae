package entity

import "time"

// POSTransaction venta registrada por el punto de venta.
type POSTransaction struct {
	ID                  string
	TenantID            string
	ExternalSaleID      string // resuelto por el resolvedor de identidad antes de persistir
	SequenceNumber      string
	SerialNumber        string
	LocationID          string
	Status              string
	TransactionDateTime time.Time
	SaleAmount          int64
	TipAmount           int64
	TotalAmount         int64
	Items               []POSTransactionItem
	CreatedAt           time.Time
}

// POSTransactionItem línea de la venta tal como la informa el POS.
type POSTransactionItem struct {
	Name     string
	Quantity int64
	Price    int64
}

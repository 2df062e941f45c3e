package domain

import "github.com/shopspring/decimal"

// Sale is the header of a recorded sale. Items is populated by reads only.
type Sale struct {
	ID          int64           `db:"id" json:"id"`
	Reference   string          `db:"reference" json:"reference"`
	BuyerID     int64           `db:"buyer_id" json:"buyer_id"`
	AttendantID int64           `db:"attendant_id" json:"attendant_id"`
	Total       decimal.Decimal `db:"total" json:"total"`
	CreatedAt   string          `db:"created_at" json:"created_at"`
	Items       []SaleItem      `db:"-" json:"items"`
}

type SaleItem struct {
	ID        int64           `db:"id" json:"id"`
	SaleID    int64           `db:"sale_id" json:"sale_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal" json:"subtotal"`
}

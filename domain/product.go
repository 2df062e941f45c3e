package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Category    *string         `db:"category" json:"category"`
	Description *string         `db:"description" json:"description,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int64           `db:"stock" json:"stock"`
}

package migrations

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS user_groups (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            description TEXT
        );`,
	`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            group_id INTEGER NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(group_id) REFERENCES user_groups(id)
        );`,
	`CREATE TABLE IF NOT EXISTS products (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            category TEXT,
            description TEXT,
            price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
            stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0)
        );`,
	`CREATE TABLE IF NOT EXISTS sales (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            reference TEXT NOT NULL UNIQUE,
            buyer_id INTEGER NOT NULL,
            attendant_id INTEGER NOT NULL,
            total NUMERIC(12,2) NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(buyer_id) REFERENCES users(id),
            FOREIGN KEY(attendant_id) REFERENCES users(id)
        );`,
	`CREATE TABLE IF NOT EXISTS sale_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            sale_id INTEGER NOT NULL,
            product_id INTEGER NOT NULL,
            quantity INTEGER NOT NULL CHECK (quantity > 0),
            unit_price NUMERIC(12,2) NOT NULL,
            subtotal NUMERIC(12,2) NOT NULL,
            FOREIGN KEY(sale_id) REFERENCES sales(id) ON DELETE CASCADE,
            FOREIGN KEY(product_id) REFERENCES products(id)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_product ON sale_items(product_id);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS user_groups (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            description TEXT
        );`,
	`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            group_id BIGINT NOT NULL REFERENCES user_groups(id),
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS products (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            category TEXT,
            description TEXT,
            price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
            stock BIGINT NOT NULL DEFAULT 0 CHECK (stock >= 0)
        );`,
	`CREATE TABLE IF NOT EXISTS sales (
            id BIGSERIAL PRIMARY KEY,
            reference TEXT NOT NULL UNIQUE,
            buyer_id BIGINT NOT NULL REFERENCES users(id),
            attendant_id BIGINT NOT NULL REFERENCES users(id),
            total NUMERIC(12,2) NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS sale_items (
            id BIGSERIAL PRIMARY KEY,
            sale_id BIGINT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
            product_id BIGINT NOT NULL REFERENCES products(id),
            quantity BIGINT NOT NULL CHECK (quantity > 0),
            unit_price NUMERIC(12,2) NOT NULL,
            subtotal NUMERIC(12,2) NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_product ON sale_items(product_id);`,
}

// Run creates the back-office schema for the database's dialect.
func Run(ctx context.Context, db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == "pgx" {
		schema = postgresSchema
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

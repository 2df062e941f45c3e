package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tailorshop/m/domain"
)

// LoadProducts ingests a CSV catalog (name,category,description,price,stock
// with a header row) into the products table. Rows whose name already exists
// are skipped. It returns the number of inserted rows.
func LoadProducts(ctx context.Context, db *sqlx.DB, csvPath string, logger *zap.Logger) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open product catalog %s: %w", csvPath, err)
	}
	defer file.Close()

	return importProducts(ctx, db, file, logger)
}

func importProducts(ctx context.Context, db *sqlx.DB, r io.Reader, logger *zap.Logger) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("read catalog header: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("start catalog transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO products (name, category, description, price, stock) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return 0, fmt.Errorf("prepare product insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			logger.Warn("unable to read catalog row", zap.Int("line", line), zap.Error(err))
			continue
		}
		if len(record) < 4 {
			continue
		}

		name := strings.TrimSpace(record[0])
		if name == "" {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(record[3]))
		if err == nil {
			price, err = domain.NormalizeAmount("price", price)
		}
		if err != nil {
			logger.Warn("skipping catalog row with invalid price", zap.Int("line", line), zap.String("name", name))
			continue
		}
		var stock int64
		if len(record) > 4 && strings.TrimSpace(record[4]) != "" {
			stock, err = strconv.ParseInt(strings.TrimSpace(record[4]), 10, 64)
			if err != nil || stock < 0 {
				logger.Warn("skipping catalog row with invalid stock", zap.Int("line", line), zap.String("name", name))
				continue
			}
		}

		var exists bool
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM products WHERE name = ?)`), name); err != nil {
			return 0, fmt.Errorf("look up product %s: %w", name, err)
		}
		if exists {
			continue
		}
		if _, err := stmt.ExecContext(ctx, name, nullIfEmpty(record[1]), nullIfEmpty(record[2]), price, stock); err != nil {
			return 0, fmt.Errorf("insert product %s: %w", name, err)
		}
		rows++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit product catalog: %w", err)
	}
	logger.Info("seeded product catalog", zap.Int("rows", rows))
	return rows, nil
}

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

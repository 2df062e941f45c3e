package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tailorshop/m/domain"
	"tailorshop/m/internal/database"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

const productColumns = `id, name, category, description, price, stock`

// Page selects a window of the catalog.
type Page struct {
	Offset int
	Limit  int
}

// ProductInput carries the writable product fields.
type ProductInput struct {
	Name        string
	Category    *string
	Description *string
	Price       decimal.Decimal
	Stock       int64
}

// normalize validates in and returns it with a trimmed name and the price
// rounded to the stored scale.
func (in ProductInput) normalize() (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	price, err := domain.NormalizeAmount("price", in.Price)
	if err != nil {
		return in, err
	}
	in.Price = price
	if in.Stock < 0 {
		return in, fmt.Errorf("%w: stock must not be negative", domain.ErrValidation)
	}
	return in, nil
}

// Store reads and writes the product catalog.
type Store struct {
	sessions *database.Sessions
	logger   *zap.Logger
}

// NewStore constructs a Store.
func NewStore(sessions *database.Sessions, logger *zap.Logger) *Store {
	return &Store{sessions: sessions, logger: logger}
}

// List returns products ordered by id.
func (s *Store) List(ctx context.Context, page Page) ([]domain.Product, error) {
	if page.Offset < 0 {
		page.Offset = 0
	}
	if page.Limit <= 0 {
		page.Limit = DefaultLimit
	}
	if page.Limit > MaxLimit {
		page.Limit = MaxLimit
	}

	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	products := []domain.Product{}
	if err := sess.Select(ctx, &products, `SELECT `+productColumns+` FROM products ORDER BY id LIMIT ? OFFSET ?`, page.Limit, page.Offset); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Get fetches one product.
func (s *Store) Get(ctx context.Context, id int64) (domain.Product, error) {
	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	defer sess.Release()

	var p domain.Product
	if err := sess.Get(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("product %d %w", id, domain.ErrNotFound)
		}
		return domain.Product{}, fmt.Errorf("load product %d: %w", id, err)
	}
	return p, nil
}

// Create inserts a product and returns it with its new id.
func (s *Store) Create(ctx context.Context, in ProductInput) (domain.Product, error) {
	in, err := in.normalize()
	if err != nil {
		return domain.Product{}, err
	}

	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	defer sess.Release()

	p := domain.Product{
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
	}
	err = sess.InTx(ctx, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO products (name, category, description, price, stock) VALUES (?, ?, ?, ?, ?) RETURNING id`),
			p.Name, p.Category, p.Description, p.Price, p.Stock).Scan(&p.ID)
	})
	if err != nil {
		s.logger.Error("unable to create product", zap.String("name", p.Name), zap.Error(err))
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// Update replaces the writable fields of an existing product.
func (s *Store) Update(ctx context.Context, id int64, in ProductInput) (domain.Product, error) {
	in, err := in.normalize()
	if err != nil {
		return domain.Product{}, err
	}

	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	defer sess.Release()

	p := domain.Product{
		ID:          id,
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
	}
	err = sess.InTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE products SET name = ?, category = ?, description = ?, price = ?, stock = ? WHERE id = ?`),
			p.Name, p.Category, p.Description, p.Price, p.Stock, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("product %d %w", id, domain.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Product{}, err
		}
		s.logger.Error("unable to update product", zap.Int64("product_id", id), zap.Error(err))
		return domain.Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	return p, nil
}

// Delete removes a product. A product referenced by recorded sale items
// cannot be deleted and yields domain.ErrConflict.
func (s *Store) Delete(ctx context.Context, id int64) error {
	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return err
	}
	defer sess.Release()

	err = sess.InTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)`), id); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("product %d %w", id, domain.ErrNotFound)
		}

		var referenced bool
		if err := tx.GetContext(ctx, &referenced, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM sale_items WHERE product_id = ?)`), id); err != nil {
			return err
		}
		if referenced {
			return errInUse(id)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM products WHERE id = ?`), id); err != nil {
			if database.IsForeignKeyViolation(err) {
				return errInUse(id)
			}
			return err
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		return err
	default:
		s.logger.Error("unable to delete product", zap.Int64("product_id", id), zap.Error(err))
		return fmt.Errorf("delete product %d: %w", id, err)
	}
}

func errInUse(id int64) error {
	return fmt.Errorf("%w: product %d is referenced by recorded sales and cannot be deleted", domain.ErrConflict, id)
}

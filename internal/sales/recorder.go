package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tailorshop/m/domain"
	"tailorshop/m/internal/database"
)

// ItemRequest is one submitted line item. UnitPrice is the price agreed at
// the counter and is stored as-is.
type ItemRequest struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Request describes a sale to record. A zero AttendantID means the buyer
// attended the sale themselves.
type Request struct {
	BuyerID     int64
	AttendantID int64
	Items       []ItemRequest
}

// Receipt identifies a committed sale.
type Receipt struct {
	SaleID    int64
	Reference string
	Total     decimal.Decimal
	CreatedAt string
}

// Filter narrows List. Dates are inclusive YYYY-MM-DD strings.
type Filter struct {
	BuyerID int64
	From    string
	To      string
}

// Total returns the sum of unit price times quantity over items.
func Total(items []ItemRequest) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(subtotal(item))
	}
	return total
}

// normalize validates r and returns a copy whose prices are rounded to the
// stored scale. Subtotals and the total must fit the amount columns too.
func (r Request) normalize() (Request, error) {
	if r.BuyerID <= 0 {
		return r, fmt.Errorf("%w: buyer_id is required", domain.ErrValidation)
	}
	if r.AttendantID < 0 {
		return r, fmt.Errorf("%w: attendant_id must be positive", domain.ErrValidation)
	}
	items := make([]ItemRequest, len(r.Items))
	for i, item := range r.Items {
		if item.ProductID <= 0 {
			return r, fmt.Errorf("%w: item %d: product_id is required", domain.ErrValidation, i)
		}
		if item.Quantity <= 0 {
			return r, fmt.Errorf("%w: item %d: quantity must be positive", domain.ErrValidation, i)
		}
		price, err := domain.NormalizeAmount(fmt.Sprintf("item %d: unit_price", i), item.UnitPrice)
		if err != nil {
			return r, err
		}
		item.UnitPrice = price
		if _, err := domain.NormalizeAmount(fmt.Sprintf("item %d: subtotal", i), subtotal(item)); err != nil {
			return r, err
		}
		items[i] = item
	}
	r.Items = items
	if _, err := domain.NormalizeAmount("total", Total(items)); err != nil {
		return r, err
	}
	return r, nil
}

func subtotal(item ItemRequest) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity))
}

// Recorder persists sales with their line items.
type Recorder struct {
	sessions     *database.Sessions
	logger       *zap.Logger
	newReference func() string
}

// NewRecorder constructs a Recorder.
func NewRecorder(sessions *database.Sessions, logger *zap.Logger) *Recorder {
	return &Recorder{sessions: sessions, logger: logger, newReference: uuid.NewString}
}

// Record validates req and stores the sale header and all of its items in a
// single transaction. Either everything commits or nothing does. Product
// stock is not touched.
func (r *Recorder) Record(ctx context.Context, req Request) (Receipt, error) {
	if req.AttendantID == 0 {
		req.AttendantID = req.BuyerID
	}
	req, err := req.normalize()
	if err != nil {
		return Receipt{}, fmt.Errorf("could not register sale: %w", err)
	}

	receipt := Receipt{Reference: r.newReference(), Total: Total(req.Items)}

	sess, err := r.sessions.Acquire(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("could not register sale: %w", err)
	}
	defer sess.Release()

	err = sess.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireUser(ctx, tx, "buyer", req.BuyerID); err != nil {
			return err
		}
		if req.AttendantID != req.BuyerID {
			if err := requireUser(ctx, tx, "attendant", req.AttendantID); err != nil {
				return err
			}
		}
		if err := requireProducts(ctx, tx, req.Items); err != nil {
			return err
		}

		err := tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO sales (reference, buyer_id, attendant_id, total) VALUES (?, ?, ?, ?) RETURNING id, created_at`),
			receipt.Reference, req.BuyerID, req.AttendantID, receipt.Total).Scan(&receipt.SaleID, &receipt.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert sale header: %w", err)
		}

		insertItem := tx.Rebind(`INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, subtotal) VALUES (?, ?, ?, ?, ?)`)
		for i, item := range req.Items {
			if _, err := tx.ExecContext(ctx, insertItem, receipt.SaleID, item.ProductID, item.Quantity, item.UnitPrice, subtotal(item)); err != nil {
				if database.IsForeignKeyViolation(err) {
					return fmt.Errorf("product %d %w", item.ProductID, domain.ErrNotFound)
				}
				return fmt.Errorf("insert item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error("unable to register sale",
				zap.Int64("buyer_id", req.BuyerID),
				zap.Int("items", len(req.Items)),
				zap.Error(err),
			)
		}
		return Receipt{}, fmt.Errorf("could not register sale: %w", err)
	}

	r.logger.Info("sale registered",
		zap.Int64("sale_id", receipt.SaleID),
		zap.String("reference", receipt.Reference),
		zap.Int64("buyer_id", req.BuyerID),
		zap.Int64("attendant_id", req.AttendantID),
		zap.Int("items", len(req.Items)),
		zap.Stringer("total", receipt.Total),
	)
	return receipt, nil
}

func requireUser(ctx context.Context, tx *sqlx.Tx, role string, id int64) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`), id); err != nil {
		return fmt.Errorf("look up %s: %w", role, err)
	}
	if !exists {
		return fmt.Errorf("%s %d %w", role, id, domain.ErrNotFound)
	}
	return nil
}

func requireProducts(ctx context.Context, tx *sqlx.Tx, items []ItemRequest) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	query, args, err := sqlx.In(`SELECT id FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("prepare product lookup: %w", err)
	}
	var found []int64
	if err := tx.SelectContext(ctx, &found, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("look up products: %w", err)
	}

	known := make(map[int64]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	for _, item := range items {
		if _, ok := known[item.ProductID]; !ok {
			return fmt.Errorf("product %d %w", item.ProductID, domain.ErrNotFound)
		}
	}
	return nil
}

// Get loads a sale with its items.
func (r *Recorder) Get(ctx context.Context, id int64) (domain.Sale, error) {
	sess, err := r.sessions.Acquire(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	defer sess.Release()

	var sale domain.Sale
	if err := sess.Get(ctx, &sale, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, fmt.Errorf("sale %d %w", id, domain.ErrNotFound)
		}
		return domain.Sale{}, fmt.Errorf("load sale %d: %w", id, err)
	}

	sales := []domain.Sale{sale}
	if err := attachItems(ctx, sess, sales); err != nil {
		return domain.Sale{}, err
	}
	return sales[0], nil
}

const saleColumns = `id, reference, buyer_id, attendant_id, total, created_at`

// List returns sales newest first, each with its items.
func (r *Recorder) List(ctx context.Context, f Filter) ([]domain.Sale, error) {
	var (
		args    []any
		clauses []string
	)
	if f.BuyerID > 0 {
		args = append(args, f.BuyerID)
		clauses = append(clauses, "buyer_id = ?")
	}
	if f.From != "" {
		if _, err := time.Parse(time.DateOnly, f.From); err != nil {
			return nil, fmt.Errorf("%w: from must be in YYYY-MM-DD format", domain.ErrValidation)
		}
		args = append(args, f.From)
		clauses = append(clauses, "DATE(created_at) >= ?")
	}
	if f.To != "" {
		if _, err := time.Parse(time.DateOnly, f.To); err != nil {
			return nil, fmt.Errorf("%w: to must be in YYYY-MM-DD format", domain.ErrValidation)
		}
		args = append(args, f.To)
		clauses = append(clauses, "DATE(created_at) <= ?")
	}

	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	sess, err := r.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	sales := []domain.Sale{}
	if err := sess.Select(ctx, &sales, query, args...); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	if err := attachItems(ctx, sess, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

// Count returns the number of committed sales.
func (r *Recorder) Count(ctx context.Context) (int64, error) {
	sess, err := r.sessions.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer sess.Release()

	var n int64
	if err := sess.Get(ctx, &n, `SELECT COUNT(*) FROM sales`); err != nil {
		return 0, fmt.Errorf("count sales: %w", err)
	}
	return n, nil
}

func attachItems(ctx context.Context, sess *database.Session, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]int64, len(sales))
	for i, sale := range sales {
		ids[i] = sale.ID
	}

	query, args, err := sqlx.In(`SELECT id, sale_id, product_id, quantity, unit_price, subtotal FROM sale_items WHERE sale_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("prepare sale items query: %w", err)
	}
	var rows []domain.SaleItem
	if err := sess.Select(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("load sale items: %w", err)
	}

	itemsBySale := make(map[int64][]domain.SaleItem)
	for _, row := range rows {
		itemsBySale[row.SaleID] = append(itemsBySale[row.SaleID], row)
	}
	for i := range sales {
		items := itemsBySale[sales[i].ID]
		if items == nil {
			items = []domain.SaleItem{}
		}
		sales[i].Items = items
	}
	return nil
}

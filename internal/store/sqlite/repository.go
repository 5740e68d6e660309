// Package sqlite implements the inventory store on an embedded SQLite
// database (modernc.org/sqlite, no cgo) with embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"luxstock/internal/core"
	"luxstock/internal/store"

	_ "modernc.org/sqlite"
)

var _ store.Store = (*Repository)(nil)

const selectColumns = `id, item_name, unit_price, quantity_in_hand, quantity_sold, year, month, created_at, updated_at`

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) ListItems(ctx context.Context, period core.Period) ([]core.RawItem, error) {
	query := `SELECT ` + selectColumns + ` FROM inventory_items WHERE year = ?`
	args := []any{period.Year}
	if !period.IsYearly() {
		query += ` AND month = ?`
		args = append(args, period.Month)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items for %s: %w", period.Key(), err)
	}
	defer rows.Close()

	items := make([]core.RawItem, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (r *Repository) GetItem(ctx context.Context, id string) (core.RawItem, error) {
	return getItem(ctx, r.db, id)
}

func (r *Repository) CreateItem(ctx context.Context, n core.NewItem) (core.RawItem, error) {
	if err := n.Validate(); err != nil {
		return core.RawItem{}, err
	}
	now := r.now().UTC()
	it := core.RawItem{
		ID:             uuid.NewString(),
		ItemName:       strings.TrimSpace(n.ItemName),
		UnitPrice:      n.UnitPrice,
		QuantityInHand: n.QuantityInHand,
		QuantitySold:   n.QuantitySold,
		Year:           n.Year,
		Month:          n.Month,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO inventory_items (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.ItemName, it.UnitPrice.String(), it.QuantityInHand, it.QuantitySold,
		it.Year, it.Month, now.UnixNano(), now.UnixNano())
	if err != nil {
		return core.RawItem{}, fmt.Errorf("insert item: %w", err)
	}

	slog.DebugContext(ctx, "Inventory item saved to SQLite", "id", it.ID, "year", it.Year, "month", it.Month)
	return it, nil
}

// UpdateItem reads, patches and writes back the row inside one transaction.
func (r *Repository) UpdateItem(ctx context.Context, id string, patch core.ItemPatch) (core.RawItem, error) {
	if err := patch.Validate(); err != nil {
		return core.RawItem{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.RawItem{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := getItem(ctx, tx, id)
	if err != nil {
		return core.RawItem{}, err
	}

	updated := patch.Apply(current)
	updated.UpdatedAt = r.now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE inventory_items
		 SET item_name = ?, unit_price = ?, quantity_in_hand = ?, quantity_sold = ?, year = ?, month = ?, updated_at = ?
		 WHERE id = ?`,
		updated.ItemName, updated.UnitPrice.String(), updated.QuantityInHand, updated.QuantitySold,
		updated.Year, updated.Month, updated.UpdatedAt.UnixNano(), id)
	if err != nil {
		return core.RawItem{}, fmt.Errorf("update item %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return core.RawItem{}, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (r *Repository) DeleteItem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete item %s: %w", id, store.ErrNotFound)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getItem(ctx context.Context, q queryer, id string) (core.RawItem, error) {
	row := q.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM inventory_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RawItem{}, fmt.Errorf("get item %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.RawItem{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return it, nil
}

func scanItem(s scanner) (core.RawItem, error) {
	var (
		it               core.RawItem
		price            string
		created, updated int64
	)
	if err := s.Scan(&it.ID, &it.ItemName, &price, &it.QuantityInHand, &it.QuantitySold,
		&it.Year, &it.Month, &created, &updated); err != nil {
		return core.RawItem{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		p = decimal.Zero
	}
	it.UnitPrice = p
	it.CreatedAt = time.Unix(0, created).UTC()
	it.UpdatedAt = time.Unix(0, updated).UTC()
	return it, nil
}

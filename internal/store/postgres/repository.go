// Package postgres implements the inventory store on PostgreSQL through
// the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"luxstock/internal/core"
	"luxstock/internal/store"
)

var _ store.Store = (*Repository)(nil)

const selectColumns = `id::text, item_name, unit_price::text, quantity_in_hand, quantity_sold, year, month, created_at, updated_at`

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
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
	query := `SELECT ` + selectColumns + ` FROM inventory_items WHERE year = $1`
	args := []any{period.Year}
	if !period.IsYearly() {
		query += ` AND month = $2`
		args = append(args, period.Month)
	}
	query += ` ORDER BY created_at DESC, seq DESC`

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
	return getItem(ctx, r.db, id, false)
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
		`INSERT INTO inventory_items (id, item_name, unit_price, quantity_in_hand, quantity_sold, year, month, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		it.ID, it.ItemName, it.UnitPrice.String(), it.QuantityInHand, it.QuantitySold,
		it.Year, it.Month, now, now)
	if err != nil {
		return core.RawItem{}, fmt.Errorf("insert item: %w", err)
	}

	slog.DebugContext(ctx, "Inventory item saved to Postgres", "id", it.ID, "year", it.Year, "month", it.Month)
	return it, nil
}

// UpdateItem locks the row, applies the patch and writes it back.
func (r *Repository) UpdateItem(ctx context.Context, id string, patch core.ItemPatch) (core.RawItem, error) {
	if err := patch.Validate(); err != nil {
		return core.RawItem{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.RawItem{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := getItem(ctx, tx, id, true)
	if err != nil {
		return core.RawItem{}, err
	}

	updated := patch.Apply(current)
	updated.UpdatedAt = r.now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE inventory_items
		 SET item_name = $1, unit_price = $2, quantity_in_hand = $3, quantity_sold = $4, year = $5, month = $6, updated_at = $7
		 WHERE id = $8`,
		updated.ItemName, updated.UnitPrice.String(), updated.QuantityInHand, updated.QuantitySold,
		updated.Year, updated.Month, updated.UpdatedAt, id)
	if err != nil {
		return core.RawItem{}, fmt.Errorf("update item %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return core.RawItem{}, fmt.Errorf("commit update: %w", err)
	}
	return updated, nil
}

func (r *Repository) DeleteItem(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, store.ErrNotFound)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
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

func getItem(ctx context.Context, q queryer, id string, forUpdate bool) (core.RawItem, error) {
	// Malformed ids would otherwise surface as a uuid cast error
	if _, err := uuid.Parse(id); err != nil {
		return core.RawItem{}, fmt.Errorf("get item %s: %w", id, store.ErrNotFound)
	}
	query := `SELECT ` + selectColumns + ` FROM inventory_items WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	it, err := scanItem(q.QueryRowContext(ctx, query, id))
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
		it    core.RawItem
		price string
	)
	if err := s.Scan(&it.ID, &it.ItemName, &price, &it.QuantityInHand, &it.QuantitySold,
		&it.Year, &it.Month, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return core.RawItem{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		p = decimal.Zero
	}
	it.UnitPrice = p
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return it, nil
}

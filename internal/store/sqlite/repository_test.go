package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luxstock/internal/core"
	"luxstock/internal/store"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "data", "luxstock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	// Deterministic, strictly increasing clock
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func TestRepositoryCreateListOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	watch, err := repo.CreateItem(ctx, core.NewItem{ItemName: " Watch ", UnitPrice: decimal.RequireFromString("1250.50"), QuantityInHand: 4, Year: 2025, Month: 3})
	require.NoError(t, err)
	assert.Equal(t, "Watch", watch.ItemName)
	assert.NotEmpty(t, watch.ID)

	_, err = repo.CreateItem(ctx, core.NewItem{ItemName: "Bag", UnitPrice: decimal.NewFromInt(900), QuantityInHand: 1, Year: 2025, Month: 3})
	require.NoError(t, err)
	_, err = repo.CreateItem(ctx, core.NewItem{ItemName: "Ring", UnitPrice: decimal.NewFromInt(300), Year: 2025, Month: 7})
	require.NoError(t, err)

	march, err := repo.ListItems(ctx, core.MonthPeriod(2025, 3))
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, "Bag", march[0].ItemName)
	assert.Equal(t, "Watch", march[1].ItemName)
	assert.True(t, decimal.RequireFromString("1250.5").Equal(march[1].UnitPrice))

	year, err := repo.ListItems(ctx, core.YearPeriod(2025))
	require.NoError(t, err)
	assert.Len(t, year, 3)

	none, err := repo.ListItems(ctx, core.YearPeriod(1999))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestRepositoryUpdateMovesMonth(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	it, err := repo.CreateItem(ctx, core.NewItem{ItemName: "Watch", UnitPrice: decimal.NewFromInt(10), QuantityInHand: 3, Year: 2025, Month: 1})
	require.NoError(t, err)

	month := 2
	price := decimal.NewFromInt(12)
	updated, err := repo.UpdateItem(ctx, it.ID, core.ItemPatch{Month: &month, UnitPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Month)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	got, err := repo.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Month)
	assert.True(t, price.Equal(got.UnitPrice))
	assert.Equal(t, 3, got.QuantityInHand)

	jan, err := repo.ListItems(ctx, core.MonthPeriod(2025, 1))
	require.NoError(t, err)
	assert.Empty(t, jan)
}

func TestRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.GetItem(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	qty := 1
	_, err = repo.UpdateItem(ctx, "missing", core.ItemPatch{QuantityInHand: &qty})
	assert.True(t, errors.Is(err, store.ErrNotFound))

	err = repo.DeleteItem(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	it, err := repo.CreateItem(ctx, core.NewItem{ItemName: "Scarf", Year: 2025, Month: 5})
	require.NoError(t, err)
	require.NoError(t, repo.DeleteItem(ctx, it.ID))

	items, err := repo.ListItems(ctx, core.MonthPeriod(2025, 5))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRepositoryMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luxstock/internal/core"
	"luxstock/internal/store"
)

// Runs against a live database only when POSTGRES_TEST_DSN is set.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set, skipping postgres integration test")
	}
	repo, err := NewRepository(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestPostgresRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	// Use an unlikely year so reruns against a shared database stay isolated
	year := 1900 + int(uuid.New().ID()%90)
	t.Cleanup(func() {
		items, _ := repo.ListItems(context.Background(), core.YearPeriod(year))
		for _, it := range items {
			_ = repo.DeleteItem(context.Background(), it.ID)
		}
	})

	created, err := repo.CreateItem(ctx, core.NewItem{ItemName: "Chronograph", UnitPrice: decimal.RequireFromString("1250.50"), QuantityInHand: 4, QuantitySold: 1, Year: year, Month: 3})
	require.NoError(t, err)

	got, err := repo.GetItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chronograph", got.ItemName)
	assert.True(t, decimal.RequireFromString("1250.5").Equal(got.UnitPrice))

	month := 4
	_, err = repo.UpdateItem(ctx, created.ID, core.ItemPatch{Month: &month})
	require.NoError(t, err)

	march, err := repo.ListItems(ctx, core.MonthPeriod(year, 3))
	require.NoError(t, err)
	assert.Empty(t, march)

	whole, err := repo.ListItems(ctx, core.YearPeriod(year))
	require.NoError(t, err)
	assert.Len(t, whole, 1)

	require.NoError(t, repo.DeleteItem(ctx, created.ID))
	_, err = repo.GetItem(ctx, created.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestPostgresRepositoryMalformedID(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.GetItem(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.True(t, errors.Is(repo.DeleteItem(context.Background(), "not-a-uuid"), store.ErrNotFound))
}

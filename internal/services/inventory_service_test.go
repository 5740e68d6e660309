package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luxstock/internal/amqp"
	"luxstock/internal/cache"
	"luxstock/internal/core"
	"luxstock/internal/store"
	"luxstock/internal/store/memory"
)

// countingStore wraps the memory store and counts list queries.
type countingStore struct {
	*memory.Store
	lists   atomic.Int64
	listErr error
	gate    chan struct{}
}

func (c *countingStore) ListItems(ctx context.Context, p core.Period) ([]core.RawItem, error) {
	c.lists.Add(1)
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.Store.ListItems(ctx, p)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.ItemEvent
	err    error
}

func (p *recordingPublisher) PublishItemEvent(_ context.Context, ev *amqp.ItemEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func newItem(name string, price string, inHand, sold, year, month int) core.NewItem {
	return core.NewItem{
		ItemName:       name,
		UnitPrice:      decimal.RequireFromString(price),
		QuantityInHand: inHand,
		QuantitySold:   sold,
		Year:           year,
		Month:          month,
	}
}

func newService(t *testing.T, opts ...Option) (*InventoryService, *countingStore) {
	t.Helper()
	st := &countingStore{Store: memory.New()}
	lru := cache.NewLRUCache[[]core.RawItem](16, time.Minute)
	svc := NewInventoryService(st, append([]Option{WithCache(lru)}, opts...)...)
	return svc, st
}

func TestInventoryService_MonthlyView(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.CreateItem(ctx, newItem("Chronograph", "10", 3, 1, 2025, 3))
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, newItem("Clutch", "5", 0, 2, 2025, 3))
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, newItem("Ring", "100", 9, 0, 2025, 4))
	require.NoError(t, err)

	view, err := svc.MonthlyView(ctx, 2025, 3)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "Clutch", view.Items[0].ItemName)
	assert.Equal(t, core.OutOfStock, view.Items[0].Status)
	assert.Equal(t, core.LowStock, view.Items[1].Status)
	assert.True(t, decimal.NewFromInt(30).Equal(view.Totals.InventoryValue))
	assert.True(t, decimal.NewFromInt(20).Equal(view.Totals.SalesValue))

	empty, err := svc.MonthlyView(ctx, 2024, 1)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Zero(t, empty.Totals.Count)
}

func TestInventoryService_YearlyViewSpansMonths(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.CreateItem(ctx, newItem("Jan item", "100", 2, 1, 2025, 1))
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, newItem("Jun item", "50", 8, 3, 2025, 6))
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, newItem("Other year", "1", 1, 0, 2024, 6))
	require.NoError(t, err)

	view, err := svc.YearlyView(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.True(t, view.Period.IsYearly())
	assert.True(t, decimal.NewFromInt(600).Equal(view.Totals.InventoryValue))
	assert.True(t, decimal.NewFromInt(250).Equal(view.Totals.SalesValue))
}

func TestInventoryService_InvalidPeriod(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.MonthlyView(context.Background(), 2025, 13)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
	_, err = svc.YearlyView(context.Background(), 0)
	assert.ErrorIs(t, err, core.ErrInvalidYear)
}

func TestInventoryService_CachesRawLists(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	_, err := svc.CreateItem(ctx, newItem("Watch", "10", 3, 0, 2025, 1))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.MonthlyView(ctx, 2025, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), st.lists.Load(), "repeat reads should hit the cache")

	_, err = svc.CreateItem(ctx, newItem("Bag", "10", 3, 0, 2025, 1))
	require.NoError(t, err)
	view, err := svc.MonthlyView(ctx, 2025, 1)
	require.NoError(t, err)
	assert.Len(t, view.Items, 2, "create must invalidate the month")
	assert.Equal(t, int64(2), st.lists.Load())
}

func TestInventoryService_UpdateMovingMonthInvalidatesBoth(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc, _ := newService(t, WithPublisher(pub))

	created, err := svc.CreateItem(ctx, newItem("Watch", "10", 3, 0, 2025, 1))
	require.NoError(t, err)

	// Warm every affected cache key
	jan, err := svc.MonthlyView(ctx, 2025, 1)
	require.NoError(t, err)
	require.Len(t, jan.Items, 1)
	feb, err := svc.MonthlyView(ctx, 2025, 2)
	require.NoError(t, err)
	require.Empty(t, feb.Items)
	_, err = svc.YearlyView(ctx, 2025)
	require.NoError(t, err)

	month := 2
	updated, err := svc.UpdateItem(ctx, created.ID, core.ItemPatch{Month: &month})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Month)

	jan, err = svc.MonthlyView(ctx, 2025, 1)
	require.NoError(t, err)
	assert.Empty(t, jan.Items)

	feb, err = svc.MonthlyView(ctx, 2025, 2)
	require.NoError(t, err)
	require.Len(t, feb.Items, 1)
	assert.Equal(t, created.ID, feb.Items[0].ID)

	year, err := svc.YearlyView(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, year.Items, 1)
	assert.Equal(t, 2, year.Items[0].Month)

	require.Len(t, pub.events, 2)
	ev := pub.events[1]
	assert.Equal(t, amqp.ItemUpdated, ev.Type)
	assert.Equal(t, 1, ev.PrevMonth)
	assert.Len(t, ev.Periods(), 2)
}

func TestInventoryService_UpdateRecomputesDerived(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	created, err := svc.CreateItem(ctx, newItem("Watch", "10", 3, 1, 2025, 1))
	require.NoError(t, err)
	assert.Equal(t, core.LowStock, created.Status)

	qty := 10
	updated, err := svc.UpdateItem(ctx, created.ID, core.ItemPatch{QuantityInHand: &qty})
	require.NoError(t, err)
	assert.Equal(t, core.InStock, updated.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(updated.InventoryValue))
	assert.True(t, decimal.NewFromInt(10).Equal(updated.SalesValue))
}

func TestInventoryService_NotFoundAndValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	qty := 1
	_, err := svc.UpdateItem(ctx, "missing", core.ItemPatch{QuantityInHand: &qty})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = svc.DeleteItem(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.UpdateItem(ctx, "missing", core.ItemPatch{})
	assert.ErrorIs(t, err, core.ErrEmptyPatch)

	_, err = svc.CreateItem(ctx, newItem("   ", "1", 1, 0, 2025, 1))
	assert.ErrorIs(t, err, core.ErrEmptyItemName)
}

func TestInventoryService_DeleteRemovesFromViews(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc, _ := newService(t, WithPublisher(pub))

	created, err := svc.CreateItem(ctx, newItem("Watch", "10", 3, 0, 2025, 5))
	require.NoError(t, err)
	_, err = svc.YearlyView(ctx, 2025)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(ctx, created.ID))

	year, err := svc.YearlyView(ctx, 2025)
	require.NoError(t, err)
	assert.Empty(t, year.Items)
	require.Len(t, pub.events, 2)
	assert.Equal(t, amqp.ItemDeleted, pub.events[1].Type)
	assert.Equal(t, 5, pub.events[1].Month)
}

func TestInventoryService_PublishFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: amqp.ErrCircuitOpen}
	svc, _ := newService(t, WithPublisher(pub))

	created, err := svc.CreateItem(ctx, newItem("Watch", "10", 3, 0, 2025, 1))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Len(t, pub.events, 1)
}

func TestInventoryService_StoreErrorPropagates(t *testing.T) {
	st := &countingStore{Store: memory.New(), listErr: errors.New("disk on fire")}
	svc := NewInventoryService(st)

	_, err := svc.MonthlyView(context.Background(), 2025, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestInventoryService_ConcurrentMissesShareOneQuery(t *testing.T) {
	st := &countingStore{Store: memory.New(), gate: make(chan struct{})}
	svc := NewInventoryService(st, WithCache(cache.NewLRUCache[[]core.RawItem](16, time.Minute)))

	const readers = 8
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.MonthlyView(context.Background(), 2025, 1)
			errs <- err
		}()
	}

	// Let the readers pile up on the single in-flight query
	time.Sleep(50 * time.Millisecond)
	close(st.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), st.lists.Load())
}

func TestInventoryService_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	st := &countingStore{Store: memory.New(), gate: make(chan struct{})}
	_, err := st.Store.CreateItem(context.Background(), newItem("Brooch", "40", 2, 0, 2025, 1))
	require.NoError(t, err)
	svc := NewInventoryService(st, WithCache(cache.NewLRUCache[[]core.RawItem](16, time.Minute)))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.MonthlyView(firstCtx, 2025, 1)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return st.lists.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		view core.View
		err  error
	}
	second := make(chan result, 1)
	go func() {
		v, err := svc.MonthlyView(context.Background(), 2025, 1)
		second <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(st.gate)
	res := <-second
	require.NoError(t, res.err)
	assert.Len(t, res.view.Items, 1)
	assert.Equal(t, int64(1), st.lists.Load())
}

func TestInventoryService_Dashboard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.CreateItem(ctx, newItem("Jan", "10", 1, 0, 2025, 1))
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, newItem("Mar", "10", 1, 0, 2025, 3))
	require.NoError(t, err)

	monthly, yearly, err := svc.Dashboard(ctx, 2025, 3)
	require.NoError(t, err)
	assert.Len(t, monthly.Items, 1)
	assert.Len(t, yearly.Items, 2)
	assert.Equal(t, core.MonthPeriod(2025, 3), monthly.Period)

	_, _, err = svc.Dashboard(ctx, 2025, 0)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestInventoryService_Close(t *testing.T) {
	svc := &InventoryService{}
	assert.NoError(t, svc.Close())
}

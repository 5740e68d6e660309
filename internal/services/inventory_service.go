package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"luxstock/internal/amqp"
	"luxstock/internal/cache"
	"luxstock/internal/core"
	"luxstock/internal/log"
	"luxstock/internal/metrics"
	"luxstock/internal/store"
)

// EventPublisher announces item changes; *amqp.Client satisfies it.
type EventPublisher interface {
	PublishItemEvent(ctx context.Context, ev *amqp.ItemEvent) error
}

// InventoryService orchestrates the store, the period cache, event
// publishing and the valuation core. Derived values are computed on every
// read; only raw item lists are cached.
type InventoryService struct {
	store     store.Store
	cache     cache.Cache[[]core.RawItem]
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *log.Logger
	loads     singleflight.Group

	genMu sync.Mutex
	gens  map[string]uint64
}

// loadTimeout bounds a shared store query once it no longer follows the
// context of the request that started it.
const loadTimeout = 30 * time.Second

type Option func(*InventoryService)

func WithCache(c cache.Cache[[]core.RawItem]) Option {
	return func(s *InventoryService) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithPublisher enables change events; a nil publisher leaves them off.
func WithPublisher(p EventPublisher) Option {
	return func(s *InventoryService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *InventoryService) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *InventoryService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentInventory)
		}
	}
}

func NewInventoryService(st store.Store, opts ...Option) *InventoryService {
	s := &InventoryService{
		store:  st,
		cache:  cache.Noop[[]core.RawItem]{},
		gens:   make(map[string]uint64),
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentInventory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MonthlyView returns the derived items and totals of one month.
func (s *InventoryService) MonthlyView(ctx context.Context, year, month int) (core.View, error) {
	if month < 1 || month > 12 {
		return core.View{}, core.ErrInvalidMonth
	}
	return s.view(ctx, core.MonthPeriod(year, month), "monthly")
}

// YearlyView returns the derived items and totals of every month of a year.
func (s *InventoryService) YearlyView(ctx context.Context, year int) (core.View, error) {
	return s.view(ctx, core.YearPeriod(year), "yearly")
}

// Dashboard loads the monthly and yearly views of a period concurrently.
func (s *InventoryService) Dashboard(ctx context.Context, year, month int) (core.View, core.View, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveView("dashboard", time.Since(start)) }()

	var monthly, yearly core.View
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.MonthlyView(gctx, year, month)
		monthly = v
		return err
	})
	g.Go(func() error {
		v, err := s.YearlyView(gctx, year)
		yearly = v
		return err
	})
	if err := g.Wait(); err != nil {
		return core.View{}, core.View{}, err
	}
	return monthly, yearly, nil
}

func (s *InventoryService) view(ctx context.Context, period core.Period, kind string) (core.View, error) {
	if err := period.Validate(); err != nil {
		return core.View{}, err
	}
	start := time.Now()
	raw, err := s.listRaw(ctx, period)
	if err != nil {
		return core.View{}, err
	}
	v := core.NewView(period, raw)
	s.metrics.ObserveView(kind, time.Since(start))
	return v, nil
}

// listRaw reads a period through the cache. Concurrent misses for the
// same period share one store query.
func (s *InventoryService) listRaw(ctx context.Context, period core.Period) ([]core.RawItem, error) {
	key := period.Key()
	if items, ok := s.cache.Get(ctx, key); ok {
		s.metrics.ObserveCacheLookup(true)
		return items, nil
	}
	s.metrics.ObserveCacheLookup(false)

	// The shared load outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := s.loads.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		gen := s.generation(key)
		items, err := s.store.ListItems(loadCtx, period)
		if err != nil {
			return nil, err
		}
		// A write during the query bumps the generation; keep the result out of the cache
		if s.generation(key) == gen {
			s.cache.Set(loadCtx, key, items)
		}
		return items, nil
	})

	var v any
	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-ch:
		v, err = res.Val, res.Err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list items",
			log.NewFields().WithPeriod(period.Year, period.Month, key).WithError(err).WithOperation(log.OpList).ToSlice()...)
		return nil, fmt.Errorf("list items for %s: %w", key, err)
	}
	return v.([]core.RawItem), nil
}

// CreateItem validates and stores a new item and returns it with its
// derived values.
func (s *InventoryService) CreateItem(ctx context.Context, n core.NewItem) (core.DerivedItem, error) {
	if err := n.Validate(); err != nil {
		s.metrics.ObserveMutation(log.OpCreate, err)
		return core.DerivedItem{}, err
	}

	item, err := s.store.CreateItem(ctx, n)
	s.metrics.ObserveMutation(log.OpCreate, err)
	if err != nil {
		return core.DerivedItem{}, fmt.Errorf("create item: %w", err)
	}

	s.invalidate(ctx, item.Period())
	s.publish(ctx, amqp.NewItemEvent(amqp.ItemCreated, item, core.Period{}))

	s.logger.InfoContext(ctx, "Inventory item created",
		log.NewFields().WithItem(item.ID, item.ItemName).WithPeriod(item.Year, item.Month, item.Period().Key()).ToSlice()...)
	return core.Calculate(item), nil
}

// UpdateItem applies a partial update. When the patch moves the item to
// another month both the old and the new period are invalidated.
func (s *InventoryService) UpdateItem(ctx context.Context, id string, patch core.ItemPatch) (core.DerivedItem, error) {
	if err := patch.Validate(); err != nil {
		s.metrics.ObserveMutation(log.OpUpdate, err)
		return core.DerivedItem{}, err
	}

	before, err := s.store.GetItem(ctx, id)
	if err != nil {
		s.metrics.ObserveMutation(log.OpUpdate, err)
		return core.DerivedItem{}, fmt.Errorf("update item: %w", err)
	}

	item, err := s.store.UpdateItem(ctx, id, patch)
	s.metrics.ObserveMutation(log.OpUpdate, err)
	if err != nil {
		return core.DerivedItem{}, fmt.Errorf("update item: %w", err)
	}

	s.invalidate(ctx, before.Period(), item.Period())
	s.publish(ctx, amqp.NewItemEvent(amqp.ItemUpdated, item, before.Period()))

	s.logger.InfoContext(ctx, "Inventory item updated",
		log.NewFields().WithItem(item.ID, item.ItemName).WithPeriod(item.Year, item.Month, item.Period().Key()).ToSlice()...)
	return core.Calculate(item), nil
}

func (s *InventoryService) DeleteItem(ctx context.Context, id string) error {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		s.metrics.ObserveMutation(log.OpDelete, err)
		return fmt.Errorf("delete item: %w", err)
	}

	err = s.store.DeleteItem(ctx, id)
	s.metrics.ObserveMutation(log.OpDelete, err)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	s.invalidate(ctx, item.Period())
	s.publish(ctx, amqp.NewItemEvent(amqp.ItemDeleted, item, core.Period{}))

	s.logger.InfoContext(ctx, "Inventory item deleted",
		log.NewFields().WithItem(item.ID, item.ItemName).WithPeriod(item.Year, item.Month, item.Period().Key()).ToSlice()...)
	return nil
}

// Ping reports store readiness
func (s *InventoryService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *InventoryService) invalidate(ctx context.Context, periods ...core.Period) {
	keys := make([]string, 0, len(periods)*2)
	seen := make(map[string]bool, len(periods)*2)
	for _, p := range periods {
		for _, k := range []string{p.Key(), p.Yearly().Key()} {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	s.genMu.Lock()
	for _, k := range keys {
		s.gens[k]++
	}
	s.genMu.Unlock()

	s.cache.Delete(ctx, keys...)
	for _, k := range keys {
		s.loads.Forget(k)
	}
}

func (s *InventoryService) generation(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[key]
}

// publish never fails the caller: the item is already persisted.
func (s *InventoryService) publish(ctx context.Context, ev *amqp.ItemEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishItemEvent(ctx, ev)
	s.metrics.ObserveEventPublish(err)
	if err != nil {
		msg := "Failed to publish item event"
		if errors.Is(err, amqp.ErrCircuitOpen) {
			msg = "Item event skipped, broker circuit open"
		}
		s.logger.WarnContext(ctx, msg,
			log.NewFields().WithItem(ev.ItemID, "").WithError(err).WithOperation(log.OpPublish).ToSlice()...)
	}
}

// Close releases the store
func (s *InventoryService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close inventory service: %w", err)
	}
	return nil
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"luxstock/internal/amqp"
	"luxstock/internal/core"
	"luxstock/internal/log"
	"luxstock/internal/metrics"
	"luxstock/internal/sheets"
)

// ViewSource provides fresh period views; *services.InventoryService satisfies it.
type ViewSource interface {
	MonthlyView(ctx context.Context, year, month int) (core.View, error)
	YearlyView(ctx context.Context, year int) (core.View, error)
}

// SyncWorker mirrors inventory months into a spreadsheet. Events only carry
// identity, so every write re-reads the affected month from the store.
type SyncWorker struct {
	views   ViewSource
	writer  sheets.MonthWriter
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewSyncWorker(views ViewSource, writer sheets.MonthWriter, m *metrics.Metrics, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		views:   views,
		writer:  writer,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleItemEvent rewrites every month the event touched. A returned error
// makes the consumer requeue the delivery.
func (w *SyncWorker) HandleItemEvent(ctx context.Context, ev *amqp.ItemEvent) error {
	w.logger.InfoContext(ctx, "Processing item event",
		log.FieldEventType, ev.Type,
		log.FieldItemID, ev.ItemID)

	var errs []error
	for _, p := range ev.Periods() {
		if err := w.mirrorMonth(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("mirror item %s: %w", ev.ItemID, err)
	}
	return nil
}

// ResyncYear rewrites every month of year that holds items. It recovers
// tabs after worker downtime or lost messages.
func (w *SyncWorker) ResyncYear(ctx context.Context, year int) error {
	start := time.Now()
	yearly, err := w.views.YearlyView(ctx, year)
	if err != nil {
		return fmt.Errorf("load year %d: %w", year, err)
	}

	months := core.MonthlyBreakdown(yearly.Items)
	if len(months) == 0 {
		w.logger.InfoContext(ctx, "No inventory to resync", log.FieldYear, year)
		return nil
	}

	synced, failed := 0, 0
	for _, m := range months {
		if err := w.mirrorMonth(ctx, m.Period); err != nil {
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Startup resync completed",
		log.FieldYear, year,
		"months", len(months),
		"synced", synced,
		"errors", failed,
		log.FieldDuration, time.Since(start).Milliseconds())

	if failed > 0 {
		return fmt.Errorf("resync year %d: %d of %d months failed", year, failed, len(months))
	}
	return nil
}

func (w *SyncWorker) mirrorMonth(ctx context.Context, p core.Period) error {
	view, err := w.views.MonthlyView(ctx, p.Year, p.Month)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to load month for mirroring",
			log.NewFields().WithPeriod(p.Year, p.Month, p.Key()).WithError(err).WithOperation(log.OpMirror).ToSlice()...)
		return fmt.Errorf("load %s: %w", p.Key(), err)
	}

	err = w.writer.WriteMonth(ctx, view)
	w.metrics.ObserveMirrorWrite(err)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to write month to sheet",
			append(log.NewFields().WithPeriod(p.Year, p.Month, p.Key()).WithError(err).WithOperation(log.OpMirror).ToSlice(),
				log.FieldSheetTab, p.Label())...)
		return fmt.Errorf("write %s: %w", p.Key(), err)
	}

	w.logger.InfoContext(ctx, "Month mirrored",
		log.FieldSheetTab, p.Label(),
		log.FieldItemCount, len(view.Items))
	return nil
}

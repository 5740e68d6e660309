package sheets

import (
	"context"

	"luxstock/internal/core"
)

// Ports for outbound spreadsheet adapters.
type (
	// MonthWriter replaces the contents of a month's tab with the given view.
	MonthWriter interface {
		WriteMonth(ctx context.Context, view core.View) error
	}
)

// Package store defines the inventory store gateway: the ports the
// services layer depends on, implemented by the memory, sqlite and
// postgres backends.
package store

import (
	"context"
	"errors"
	"io"

	"luxstock/internal/core"
)

// ErrNotFound is returned (wrapped) when an item id does not exist.
var ErrNotFound = errors.New("item not found")

// Ports for inventory persistence.
type (
	// ItemLister returns the raw items of a period, newest first.
	ItemLister interface {
		// ListItems lists a single month, or the whole year when period.Month == 0.
		ListItems(ctx context.Context, period core.Period) ([]core.RawItem, error)
	}

	ItemReader interface {
		GetItem(ctx context.Context, id string) (core.RawItem, error)
	}

	ItemWriter interface {
		CreateItem(ctx context.Context, item core.NewItem) (core.RawItem, error)
		UpdateItem(ctx context.Context, id string, patch core.ItemPatch) (core.RawItem, error)
		DeleteItem(ctx context.Context, id string) error
	}

	// Pinger reports whether the backing store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is the full gateway with an explicit lifecycle.
	Store interface {
		ItemLister
		ItemReader
		ItemWriter
		Pinger
		io.Closer
	}
)

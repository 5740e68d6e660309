package memory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"luxstock/internal/core"
	"luxstock/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps items in insertion order; listing walks it backwards so the
// newest item comes first.
type Store struct {
	mu    sync.Mutex
	items []core.RawItem
	now   func() time.Time
}

func New() *Store {
	return &Store{now: time.Now}
}

// NewFromFile seeds the store from a pipe-separated file with lines of
// "itemName|unitPrice|quantityInHand|quantitySold|year|month".
// Blank lines and lines starting with '#' are skipped. Prices and
// quantities are coerced like API input; an unreadable file or a line
// without six fields, a numeric period or a valid item is an error.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	for _, l := range lines {
		n, err := parseSeedLine(l.text)
		if err != nil {
			return nil, fmt.Errorf("seed file %s line %d: %w", path, l.number, err)
		}
		if _, err := s.CreateItem(context.Background(), n); err != nil {
			return nil, fmt.Errorf("seed file %s line %d: %w", path, l.number, err)
		}
	}
	return s, nil
}

func (s *Store) ListItems(_ context.Context, period core.Period) ([]core.RawItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RawItem, 0)
	for i := len(s.items) - 1; i >= 0; i-- {
		it := s.items[i]
		if it.Year != period.Year {
			continue
		}
		if !period.IsYearly() && it.Month != period.Month {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *Store) GetItem(_ context.Context, id string) (core.RawItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.RawItem{}, fmt.Errorf("get item %s: %w", id, store.ErrNotFound)
	}
	return s.items[i], nil
}

// CreateItem stores the item and assigns it a fresh UUID.
func (s *Store) CreateItem(_ context.Context, n core.NewItem) (core.RawItem, error) {
	if err := n.Validate(); err != nil {
		return core.RawItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
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
	s.items = append(s.items, it)
	return it, nil
}

func (s *Store) UpdateItem(_ context.Context, id string, patch core.ItemPatch) (core.RawItem, error) {
	if err := patch.Validate(); err != nil {
		return core.RawItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.RawItem{}, fmt.Errorf("update item %s: %w", id, store.ErrNotFound)
	}
	updated := patch.Apply(s.items[i])
	updated.UpdatedAt = s.now().UTC()
	s.items[i] = updated
	return updated, nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete item %s: %w", id, store.ErrNotFound)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

var errSeedFields = errors.New("expected 6 fields separated by '|'")

func parseSeedLine(line string) (core.NewItem, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 6 {
		return core.NewItem{}, errSeedFields
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[4]))
	if err != nil {
		return core.NewItem{}, fmt.Errorf("year: %w", err)
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[5]))
	if err != nil {
		return core.NewItem{}, fmt.Errorf("month: %w", err)
	}
	return core.NewItem{
		ItemName:       strings.TrimSpace(parts[0]),
		UnitPrice:      core.ParsePrice(parts[1]),
		QuantityInHand: core.ParseQuantity(parts[2]),
		QuantitySold:   core.ParseQuantity(parts[3]),
		Year:           year,
		Month:          month,
	}, nil
}

type seedLine struct {
	number int
	text   string
}

func readLines(path string) ([]seedLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []seedLine
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, seedLine{number: n, text: line})
	}
	return out, sc.Err()
}

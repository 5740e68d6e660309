package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Totals is a fold over a sequence of derived items.
type Totals struct {
	Count          int
	InventoryValue decimal.Decimal
	SalesValue     decimal.Decimal
	InStock        int
	LowStock       int
	OutOfStock     int
}

// MonthTotals holds the totals of a single month inside a yearly view.
type MonthTotals struct {
	Period Period
	Totals Totals
}

// View is an aggregated, period-scoped list ready for presentation.
type View struct {
	Period Period
	Items  []DerivedItem
	Totals Totals
}

// Aggregate applies Calculate to every item, preserving length and order.
// It does not filter: callers pass items already scoped to a period.
func Aggregate(items []RawItem) []DerivedItem {
	out := make([]DerivedItem, len(items))
	for i, it := range items {
		out[i] = Calculate(it)
	}
	return out
}

// Summarize folds the derived items into totals. Nothing is memoized.
func Summarize(items []DerivedItem) Totals {
	t := Totals{InventoryValue: decimal.Zero, SalesValue: decimal.Zero}
	for _, it := range items {
		t.Count++
		t.InventoryValue = t.InventoryValue.Add(it.InventoryValue)
		t.SalesValue = t.SalesValue.Add(it.SalesValue)
		switch it.Status {
		case InStock:
			t.InStock++
		case LowStock:
			t.LowStock++
		case OutOfStock:
			t.OutOfStock++
		}
	}
	return t
}

// NewView aggregates raw items for period and computes their totals.
func NewView(period Period, raw []RawItem) View {
	items := Aggregate(raw)
	return View{
		Period: period,
		Items:  items,
		Totals: Summarize(items),
	}
}

// MonthlyBreakdown groups derived items by month, ascending, with per-month totals.
func MonthlyBreakdown(items []DerivedItem) []MonthTotals {
	byPeriod := make(map[Period][]DerivedItem)
	for _, it := range items {
		p := it.Period()
		byPeriod[p] = append(byPeriod[p], it)
	}

	out := make([]MonthTotals, 0, len(byPeriod))
	for p, group := range byPeriod {
		out = append(out, MonthTotals{Period: p, Totals: Summarize(group)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period.Year != out[j].Period.Year {
			return out[i].Period.Year < out[j].Period.Year
		}
		return out[i].Period.Month < out[j].Period.Month
	})
	return out
}

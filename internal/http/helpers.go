package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"luxstock/internal/core"
	"luxstock/internal/store"
)

const currencySymbol = "₵"

var numberPrinter = message.NewPrinter(language.English)

// formatCurrency renders an amount like "₵1,234.50".
func formatCurrency(d decimal.Decimal) string {
	return currencySymbol + numberPrinter.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

// statusClass maps a stock status to its badge class.
func statusClass(s core.Status) string {
	switch s {
	case core.InStock:
		return "status-in-stock"
	case core.LowStock:
		return "status-low-stock"
	default:
		return "status-out-of-stock"
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyItemName) ||
		errors.Is(err, core.ErrItemNameTooLong) ||
		errors.Is(err, core.ErrInvalidYear) ||
		errors.Is(err, core.ErrInvalidMonth) ||
		errors.Is(err, core.ErrNegativeValue)
}

// statusForError picks the response code for a service error.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrEmptyPatch):
		return http.StatusBadRequest
	case isValidationError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// itemResponse is the JSON wire form of a derived item.
type itemResponse struct {
	ID             string      `json:"id"`
	ItemName       string      `json:"itemName"`
	UnitPrice      float64     `json:"unitPrice"`
	QuantityInHand int         `json:"quantityInHand"`
	QuantitySold   int         `json:"quantitySold"`
	Year           int         `json:"year"`
	Month          int         `json:"month"`
	InventoryValue float64     `json:"inventoryValue"`
	SalesValue     float64     `json:"salesValue"`
	Status         core.Status `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

type totalsResponse struct {
	Count          int     `json:"count"`
	InventoryValue float64 `json:"inventoryValue"`
	SalesValue     float64 `json:"salesValue"`
	InStock        int     `json:"inStock"`
	LowStock       int     `json:"lowStock"`
	OutOfStock     int     `json:"outOfStock"`
}

type monthTotalsResponse struct {
	Period string         `json:"period"`
	Label  string         `json:"label"`
	Totals totalsResponse `json:"totals"`
}

type summaryResponse struct {
	Period string                `json:"period"`
	Items  []itemResponse        `json:"items"`
	Totals totalsResponse        `json:"totals"`
	Months []monthTotalsResponse `json:"months,omitempty"`
}

func toItemResponse(it core.DerivedItem) itemResponse {
	return itemResponse{
		ID:             it.ID,
		ItemName:       it.ItemName,
		UnitPrice:      it.UnitPrice.InexactFloat64(),
		QuantityInHand: it.QuantityInHand,
		QuantitySold:   it.QuantitySold,
		Year:           it.Year,
		Month:          it.Month,
		InventoryValue: it.InventoryValue.InexactFloat64(),
		SalesValue:     it.SalesValue.InexactFloat64(),
		Status:         it.Status,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
}

func toItemResponses(items []core.DerivedItem) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	return out
}

func toTotalsResponse(t core.Totals) totalsResponse {
	return totalsResponse{
		Count:          t.Count,
		InventoryValue: t.InventoryValue.InexactFloat64(),
		SalesValue:     t.SalesValue.InexactFloat64(),
		InStock:        t.InStock,
		LowStock:       t.LowStock,
		OutOfStock:     t.OutOfStock,
	}
}

func toSummaryResponse(v core.View) summaryResponse {
	resp := summaryResponse{
		Period: v.Period.Key(),
		Items:  toItemResponses(v.Items),
		Totals: toTotalsResponse(v.Totals),
	}
	if v.Period.IsYearly() {
		for _, mt := range core.MonthlyBreakdown(v.Items) {
			resp.Months = append(resp.Months, monthTotalsResponse{
				Period: mt.Period.Key(),
				Label:  mt.Period.Label(),
				Totals: toTotalsResponse(mt.Totals),
			})
		}
	}
	return resp
}

// validationMessage turns a client error into text fit for display.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyItemName):
		return "Item name is required"
	case errors.Is(err, core.ErrItemNameTooLong):
		return "Item name must be at most 200 characters"
	case errors.Is(err, core.ErrInvalidYear):
		return "Year is invalid"
	case errors.Is(err, core.ErrInvalidMonth):
		return "Month must be between 1 and 12"
	case errors.Is(err, core.ErrNegativeValue):
		return "Price and quantities cannot be negative"
	case errors.Is(err, core.ErrEmptyPatch):
		return "No fields to update"
	default:
		return err.Error()
	}
}

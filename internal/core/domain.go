package core

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	InStock    Status = "In Stock"
	LowStock   Status = "Low Stock"
	OutOfStock Status = "Out of Stock"
)

// LowStockThreshold is the highest quantity in hand still reported as Low Stock.
const LowStockThreshold = 5

const maxItemNameLen = 200

type (
	Status string

	// RawItem is a stock record as stored, before derived fields are computed.
	RawItem struct {
		ID             string
		ItemName       string
		UnitPrice      decimal.Decimal
		QuantityInHand int
		QuantitySold   int
		Year           int
		Month          int // 1-12
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// DerivedItem is a raw item augmented with computed valuation and status.
	DerivedItem struct {
		RawItem
		InventoryValue decimal.Decimal
		SalesValue     decimal.Decimal
		Status         Status
	}

	// NewItem carries the user-submitted fields of an item to be created.
	NewItem struct {
		ItemName       string
		UnitPrice      decimal.Decimal
		QuantityInHand int
		QuantitySold   int
		Year           int
		Month          int
	}

	// ItemPatch is a partial update; nil fields are left unchanged.
	ItemPatch struct {
		ItemName       *string
		UnitPrice      *decimal.Decimal
		QuantityInHand *int
		QuantitySold   *int
		Year           *int
		Month          *int
	}

	// Period scopes a view: Month == 0 selects the whole year.
	Period struct {
		Year  int
		Month int
	}
)

var (
	ErrEmptyItemName   = errors.New("empty item name")
	ErrItemNameTooLong = errors.New("item name too long (max 200 characters)")
	ErrInvalidYear     = errors.New("invalid year")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrNegativeValue   = errors.New("price and quantities cannot be negative")
	ErrEmptyPatch      = errors.New("no fields to update")
)

// MonthPeriod returns the period for a single month.
func MonthPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

// YearPeriod returns the period covering every month of year.
func YearPeriod(year int) Period {
	return Period{Year: year}
}

// IsYearly reports whether the period spans a whole year.
func (p Period) IsYearly() bool {
	return p.Month == 0
}

// Key renders the period as "2025" or "2025-03".
func (p Period) Key() string {
	if p.IsYearly() {
		return strconv.Itoa(p.Year)
	}
	if p.Month < 10 {
		return strconv.Itoa(p.Year) + "-0" + strconv.Itoa(p.Month)
	}
	return strconv.Itoa(p.Year) + "-" + strconv.Itoa(p.Month)
}

// Label renders a human readable name, e.g. "March 2025" or "2025".
func (p Period) Label() string {
	if p.IsYearly() {
		return strconv.Itoa(p.Year)
	}
	return time.Month(p.Month).String() + " " + strconv.Itoa(p.Year)
}

// Yearly returns the yearly period that contains p.
func (p Period) Yearly() Period {
	return Period{Year: p.Year}
}

func (p Period) Validate() error {
	if err := validateYear(p.Year); err != nil {
		return err
	}
	if p.Month < 0 || p.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Period returns the month period the item belongs to.
func (it RawItem) Period() Period {
	return Period{Year: it.Year, Month: it.Month}
}

func (n NewItem) Validate() error {
	if err := validateName(n.ItemName); err != nil {
		return err
	}
	if n.UnitPrice.IsNegative() || n.QuantityInHand < 0 || n.QuantitySold < 0 {
		return ErrNegativeValue
	}
	if err := validateYear(n.Year); err != nil {
		return err
	}
	return validateMonth(n.Month)
}

func (p ItemPatch) IsEmpty() bool {
	return p.ItemName == nil && p.UnitPrice == nil && p.QuantityInHand == nil &&
		p.QuantitySold == nil && p.Year == nil && p.Month == nil
}

func (p ItemPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.ItemName != nil {
		if err := validateName(*p.ItemName); err != nil {
			return err
		}
	}
	if p.UnitPrice != nil && p.UnitPrice.IsNegative() {
		return ErrNegativeValue
	}
	if (p.QuantityInHand != nil && *p.QuantityInHand < 0) || (p.QuantitySold != nil && *p.QuantitySold < 0) {
		return ErrNegativeValue
	}
	if p.Year != nil {
		if err := validateYear(*p.Year); err != nil {
			return err
		}
	}
	if p.Month != nil {
		if err := validateMonth(*p.Month); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns a copy of item with the patch fields set.
func (p ItemPatch) Apply(item RawItem) RawItem {
	if p.ItemName != nil {
		item.ItemName = strings.TrimSpace(*p.ItemName)
	}
	if p.UnitPrice != nil {
		item.UnitPrice = *p.UnitPrice
	}
	if p.QuantityInHand != nil {
		item.QuantityInHand = *p.QuantityInHand
	}
	if p.QuantitySold != nil {
		item.QuantitySold = *p.QuantitySold
	}
	if p.Year != nil {
		item.Year = *p.Year
	}
	if p.Month != nil {
		item.Month = *p.Month
	}
	return item
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyItemName
	}
	if len(name) > maxItemNameLen {
		return ErrItemNameTooLong
	}
	return nil
}

func validateYear(year int) error {
	if year < 1 || year > 9999 {
		return ErrInvalidYear
	}
	return nil
}

func validateMonth(month int) error {
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

package core

import "github.com/shopspring/decimal"

// Calculate derives valuation and stock status from a raw item.
//
// It is pure and total: negative price or quantities are treated as zero,
// so both monetary values are always non-negative. The returned item
// carries the normalised raw fields, which makes Calculate idempotent.
func Calculate(item RawItem) DerivedItem {
	if item.UnitPrice.IsNegative() {
		item.UnitPrice = decimal.Zero
	}
	if item.QuantityInHand < 0 {
		item.QuantityInHand = 0
	}
	if item.QuantitySold < 0 {
		item.QuantitySold = 0
	}

	return DerivedItem{
		RawItem:        item,
		InventoryValue: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.QuantityInHand))),
		SalesValue:     item.UnitPrice.Mul(decimal.NewFromInt(int64(item.QuantitySold))),
		Status:         StatusFor(item.QuantityInHand),
	}
}

// StatusFor classifies a quantity in hand.
func StatusFor(quantityInHand int) Status {
	switch {
	case quantityInHand <= 0:
		return OutOfStock
	case quantityInHand <= LowStockThreshold:
		return LowStock
	default:
		return InStock
	}
}

package lots

import "github.com/shopspring/decimal"

// Lot is one batch of inventory acquired together at a single per-unit price.
// Quantity is the number of units remaining; a lot never sits in a store with
// a quantity of zero.
type Lot struct {
	PricePerUnit decimal.Decimal
	Quantity     uint64
}

// View is the read-only projection of a lot handed back on peek and extract.
// Callers only ever need the price the unit was acquired at.
type View struct {
	PricePerUnit decimal.Decimal
}

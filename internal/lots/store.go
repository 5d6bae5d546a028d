package lots

import "errors"

var ErrEmptyStore = errors.New("no lots remaining")

// Store holds the open lots for a single product and always knows the
// cheapest one. Implementations are not safe for concurrent use; the owner
// serializes access.
type Store interface {
	// Insert adds a new lot. Lots with equal prices coexist as distinct
	// entries and are never merged.
	Insert(lot Lot)

	// Min returns a view of the cheapest lot without mutating the store.
	// Returns ErrEmptyStore if no lots remain.
	Min() (View, error)

	// ExtractOne returns the cheapest lot's view and removes a single unit
	// of its quantity. Returns ErrEmptyStore if no lots remain.
	ExtractOne() (View, error)

	// DeleteOne removes a single unit of quantity from the cheapest lot.
	// Deleting from an empty store is a no-op; callers that need to observe
	// emptiness use ExtractOne instead.
	DeleteOne()

	// Size is the number of open lots (not units).
	Size() int

	IsEmpty() bool
}

// Factory builds an empty Store. The warehouse calls it once per product, on
// the first produce for that product.
type Factory func() Store

package lots

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

var factories = map[string]Factory{
	"heap": NewHeap,
	"tree": NewTree,
}

func newLot(price string, quantity uint64) Lot {
	return Lot{
		PricePerUnit: decimal.RequireFromString(price),
		Quantity:     quantity,
	}
}

// drainPrices extracts until the store is empty, returning the observed
// price sequence.
func drainPrices(t *testing.T, store Store) []decimal.Decimal {
	t.Helper()

	var prices []decimal.Decimal
	for !store.IsEmpty() {
		view, err := store.ExtractOne()
		require.NoError(t, err)
		prices = append(prices, view.PricePerUnit)
	}
	return prices
}

// --- Tests ------------------------------------------------------------------

func TestEmptyStore(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory()

			assert.True(t, store.IsEmpty())
			assert.Equal(t, 0, store.Size())

			_, err := store.Min()
			assert.ErrorIs(t, err, ErrEmptyStore)

			_, err = store.ExtractOne()
			assert.ErrorIs(t, err, ErrEmptyStore)

			// DeleteOne on an empty store is a structural no-op, not an error.
			store.DeleteOne()
			assert.True(t, store.IsEmpty())
		})
	}
}

func TestInsertThenPeek(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory()
			store.Insert(newLot("1.00", 10))

			view, err := store.Min()
			require.NoError(t, err)
			assert.True(t, view.PricePerUnit.Equal(decimal.RequireFromString("1.00")))
			// Peek does not mutate.
			assert.Equal(t, 1, store.Size())
		})
	}
}

func TestCheapestFirstAcrossInsertOrder(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory()

			// Insert most expensive first to force sifting.
			for _, price := range []string{"4", "3", "2", "1"} {
				store.Insert(newLot(price, 1))
			}

			view, err := store.Min()
			require.NoError(t, err)
			assert.True(t, view.PricePerUnit.Equal(decimal.NewFromInt(1)))
		})
	}
}

func TestSingleQuantityLotIsRemoved(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory()
			store.Insert(newLot("1.00", 1))
			assert.Equal(t, 1, store.Size())

			store.DeleteOne()
			assert.Equal(t, 0, store.Size())
			assert.True(t, store.IsEmpty())
		})
	}
}

func TestLargeQuantityDecrementsInPlace(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory()
			store.Insert(newLot("1.00", 2))
			assert.Equal(t, 1, store.Size())

			// First delete only trims the root's quantity.
			store.DeleteOne()
			assert.Equal(t, 1, store.Size())

			// Second delete removes the node.
			store.DeleteOne()
			assert.Equal(t, 0, store.Size())
		})
	}
}

func TestEqualPriceLotsCoexist(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory()
			store.Insert(newLot("1.00", 2))
			store.Insert(newLot("1.00", 2))

			// Never merged, even with identical prices.
			assert.Equal(t, 2, store.Size())

			store.DeleteOne()
			store.DeleteOne()
			assert.Equal(t, 1, store.Size())
		})
	}
}

func TestMonotonicExtraction(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory()
			rng := rand.New(rand.NewSource(7))

			totalUnits := uint64(0)
			for range 50 {
				qty := rng.Uint64()%4 + 1
				store.Insert(Lot{
					PricePerUnit: decimal.New(rng.Int63n(1000), -2),
					Quantity:     qty,
				})
				totalUnits += qty
			}

			prices := drainPrices(t, store)

			// Every inserted unit comes back out, cheapest first.
			assert.Len(t, prices, int(totalUnits))
			for i := 1; i < len(prices); i++ {
				assert.True(t, prices[i-1].LessThanOrEqual(prices[i]),
					"extraction at %d went backwards: %s > %s", i, prices[i-1], prices[i])
			}
		})
	}
}

func TestHeapOrderInvariant(t *testing.T) {
	heap := NewHeap().(*Heap)
	rng := rand.New(rand.NewSource(11))

	checkInvariant := func() {
		t.Helper()
		for i := range heap.lots {
			for _, child := range []int{leftChild(i), rightChild(i)} {
				if child < len(heap.lots) {
					assert.True(t,
						heap.lots[i].PricePerUnit.LessThanOrEqual(heap.lots[child].PricePerUnit),
						"node %d (%s) dearer than child %d (%s)",
						i, heap.lots[i].PricePerUnit, child, heap.lots[child].PricePerUnit)
				}
			}
		}
	}

	// Interleave inserts and extracts; the heap property must hold after
	// every structural mutation.
	for range 200 {
		if rng.Intn(3) == 0 && !heap.IsEmpty() {
			_, err := heap.ExtractOne()
			require.NoError(t, err)
		} else {
			heap.Insert(Lot{
				PricePerUnit: decimal.New(rng.Int63n(100), -2),
				Quantity:     rng.Uint64()%3 + 1,
			})
		}
		checkInvariant()
	}
}

func TestHeapMatchesTreeReference(t *testing.T) {
	heap := NewHeap()
	tree := NewTree()
	rng := rand.New(rand.NewSource(3))

	// Drive both implementations with the same workload and require
	// identical observable behaviour. Prices are made unique (sequence in
	// the low digits) because extraction order between equal-price lots is
	// unspecified and may differ between the two structures.
	seq := int64(0)
	for range 500 {
		if rng.Intn(4) == 0 {
			hView, hErr := heap.ExtractOne()
			tView, tErr := tree.ExtractOne()
			if hErr != nil {
				assert.ErrorIs(t, tErr, ErrEmptyStore)
				continue
			}
			require.NoError(t, tErr)
			assert.True(t, hView.PricePerUnit.Equal(tView.PricePerUnit),
				"heap extracted %s, tree extracted %s", hView.PricePerUnit, tView.PricePerUnit)
		} else {
			seq++
			lot := Lot{
				PricePerUnit: decimal.New(rng.Int63n(500)*1000+seq, -5),
				Quantity:     rng.Uint64()%5 + 1,
			}
			heap.Insert(lot)
			tree.Insert(lot)
		}
		assert.Equal(t, heap.Size(), tree.Size())
	}

	hPrices := drainPrices(t, heap)
	tPrices := drainPrices(t, tree)
	require.Len(t, tPrices, len(hPrices))
	for i := range hPrices {
		assert.True(t, hPrices[i].Equal(tPrices[i]))
	}
}

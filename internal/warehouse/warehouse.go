package warehouse

import (
	"errors"
	"fmt"

	"geri/internal/common"
	"geri/internal/lots"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTransaction    = errors.New("invalid transaction")
	ErrUnknownProduct        = errors.New("unknown product")
	ErrInsufficientInventory = errors.New("insufficient inventory")
)

// pricePlaces is the scale per-unit prices are kept at when the cost division
// is inexact. Rounding is half away from zero.
const pricePlaces = 8

// ProductIndex maps product names to stable numeric keys. Keys are assigned
// monotonically on first reference and never reclaimed.
type ProductIndex struct {
	keys    map[string]uint64
	nextKey uint64
}

func NewProductIndex() ProductIndex {
	return ProductIndex{keys: make(map[string]uint64)}
}

// KeyFor returns the key for a product name, assigning the next unused key on
// first reference. Lookup-or-create; never fails, never removes a mapping.
func (idx *ProductIndex) KeyFor(product string) uint64 {
	key, ok := idx.keys[product]
	if !ok {
		key = idx.nextKey
		idx.keys[product] = key
		idx.nextKey++
	}
	return key
}

// Receipt reports what a successful transaction did. For produce,
// PricePerUnit is the per-unit price the new lot was recorded at; for
// consume, the price the dispensed unit was originally acquired at.
type Receipt struct {
	Transaction  common.Transaction
	PricePerUnit decimal.Decimal
}

// Warehouse owns the product index, one lot store per product and the
// append-only transaction history. Transact is the sole entry point.
//
// A warehouse is strictly sequential and not safe for concurrent use; callers
// running transactions from multiple goroutines must funnel them through a
// single applier (see internal/net).
type Warehouse struct {
	index    ProductIndex
	stores   map[uint64]lots.Store
	history  []common.Transaction
	newStore lots.Factory
}

// New builds a warehouse whose per-product stores come from factory.
// lots.NewHeap is the usual choice.
func New(factory lots.Factory) *Warehouse {
	return &Warehouse{
		index:    NewProductIndex(),
		stores:   make(map[uint64]lots.Store),
		newStore: factory,
	}
}

// Transact validates, routes and records a transaction. On any failure the
// warehouse is untouched and the transaction is not recorded; there are no
// partial effects.
func (w *Warehouse) Transact(t common.Transaction) (Receipt, error) {
	if err := validate(t); err != nil {
		return Receipt{}, err
	}

	var receipt Receipt
	var err error
	switch t.Kind {
	case common.Produce:
		receipt, err = w.produce(t)
	case common.Consume:
		receipt, err = w.consume(t)
	}
	if err != nil {
		return Receipt{}, err
	}

	w.history = append(w.history, t)
	return receipt, nil
}

func validate(t common.Transaction) error {
	switch t.Kind {
	case common.Produce:
		if t.TotalCost == nil {
			return fmt.Errorf("%w: produce requires a total cost", ErrInvalidTransaction)
		}
		if t.Quantity == 0 {
			return fmt.Errorf("%w: produce requires a positive quantity", ErrInvalidTransaction)
		}
	case common.Consume:
		if t.TotalCost != nil {
			return fmt.Errorf("%w: consume must not carry a total cost", ErrInvalidTransaction)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidTransaction, int(t.Kind))
	}
	return nil
}

func (w *Warehouse) produce(t common.Transaction) (Receipt, error) {
	key := w.index.KeyFor(t.Product)

	store, ok := w.stores[key]
	if !ok {
		store = w.newStore()
		w.stores[key] = store
	}

	// Inexact divisions round half away from zero at pricePlaces decimal
	// places (e.g. 10.00 over 3 units records 3.33333333 per unit).
	price := t.TotalCost.DivRound(decimal.NewFromUint64(t.Quantity), pricePlaces)
	store.Insert(lots.Lot{PricePerUnit: price, Quantity: t.Quantity})

	return Receipt{Transaction: t, PricePerUnit: price}, nil
}

func (w *Warehouse) consume(t common.Transaction) (Receipt, error) {
	// The index entry is created even when the consume fails; first
	// reference to a name always assigns a key.
	key := w.index.KeyFor(t.Product)

	store, ok := w.stores[key]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %q", ErrUnknownProduct, t.Product)
	}

	view, err := store.ExtractOne()
	if errors.Is(err, lots.ErrEmptyStore) {
		return Receipt{}, fmt.Errorf("%w: %q", ErrInsufficientInventory, t.Product)
	}
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{Transaction: t, PricePerUnit: view.PricePerUnit}, nil
}

// History returns a copy of the applied transactions in call order. Only
// transactions that succeeded are ever recorded.
func (w *Warehouse) History() []common.Transaction {
	return append([]common.Transaction(nil), w.history...)
}

// OpenLots reports the number of open lots for a product, zero when the
// product has never been produced.
func (w *Warehouse) OpenLots(product string) int {
	key, ok := w.index.keys[product]
	if !ok {
		return 0
	}
	store, ok := w.stores[key]
	if !ok {
		return 0
	}
	return store.Size()
}

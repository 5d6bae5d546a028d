package lots

import "github.com/tidwall/btree"

// treeLot carries an insertion sequence number so that equal-price lots stay
// distinct under the btree comparator instead of replacing one another.
type treeLot struct {
	Lot
	seq uint64
}

// Tree is a Store backed by a B-tree ordered price-ascending. It exists as a
// reference implementation to cross-check the heap against, and for callers
// that want cheap ordered iteration over open lots.
type Tree struct {
	lots *btree.BTreeG[*treeLot]
	seq  uint64
}

// NewTree is a Factory.
func NewTree() Store {
	// Sorted cheapest first; insertion order breaks price ties.
	lots := btree.NewBTreeG(func(a, b *treeLot) bool {
		if !a.PricePerUnit.Equal(b.PricePerUnit) {
			return a.PricePerUnit.LessThan(b.PricePerUnit)
		}
		return a.seq < b.seq
	})
	return &Tree{lots: lots}
}

func (t *Tree) Insert(lot Lot) {
	t.seq++
	t.lots.Set(&treeLot{Lot: lot, seq: t.seq})
}

func (t *Tree) Min() (View, error) {
	min, ok := t.lots.Min()
	if !ok {
		return View{}, ErrEmptyStore
	}
	return View{PricePerUnit: min.PricePerUnit}, nil
}

func (t *Tree) DeleteOne() {
	min, ok := t.lots.MinMut()
	if !ok {
		return
	}
	if min.Quantity > 1 {
		min.Quantity--
		return
	}
	t.lots.PopMin()
}

func (t *Tree) ExtractOne() (View, error) {
	min, err := t.Min()
	if err != nil {
		return View{}, err
	}
	t.DeleteOne()
	return min, nil
}

func (t *Tree) Size() int {
	return t.lots.Len()
}

func (t *Tree) IsEmpty() bool {
	return t.lots.Len() == 0
}

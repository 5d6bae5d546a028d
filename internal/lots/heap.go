package lots

// Heap is a binary min-heap of lots over a contiguous slice, ordered by price
// per unit. The cheapest lot is always at index 0. Extraction decrements the
// root's quantity in place and only removes the node once its last unit is
// gone, so repeated single-unit draws against a large lot cost O(1).
type Heap struct {
	lots []Lot
}

// NewHeap is the production Factory.
func NewHeap() Store {
	return &Heap{}
}

func parent(i int) int     { return (i - 1) / 2 }
func leftChild(i int) int  { return 2*i + 1 }
func rightChild(i int) int { return 2*i + 2 }

func (h *Heap) Insert(lot Lot) {
	h.lots = append(h.lots, lot)

	// Sift the new lot up while it is strictly cheaper than its parent.
	// Equal prices stop the walk, so order between equal-price lots is
	// whatever the structure happens to hold.
	for i := len(h.lots) - 1; i != 0; {
		p := parent(i)
		if h.lots[p].PricePerUnit.LessThanOrEqual(h.lots[i].PricePerUnit) {
			return
		}
		h.lots[p], h.lots[i] = h.lots[i], h.lots[p]
		i = p
	}
}

func (h *Heap) Min() (View, error) {
	if len(h.lots) == 0 {
		return View{}, ErrEmptyStore
	}
	return View{PricePerUnit: h.lots[0].PricePerUnit}, nil
}

func (h *Heap) DeleteOne() {
	// Nothing to do, heap is empty. Results in a no-op.
	if len(h.lots) == 0 {
		return
	}

	if h.lots[0].Quantity > 1 {
		h.lots[0].Quantity--
		return
	}

	// Last unit of the root: swap the tail lot into the root slot, shrink,
	// and restore the heap property downward.
	last := len(h.lots) - 1
	h.lots[0] = h.lots[last]
	h.lots = h.lots[:last]
	h.siftDown(0)
}

func (h *Heap) ExtractOne() (View, error) {
	min, err := h.Min()
	if err != nil {
		return View{}, err
	}
	h.DeleteOne()
	return min, nil
}

func (h *Heap) Size() int {
	return len(h.lots)
}

func (h *Heap) IsEmpty() bool {
	return len(h.lots) == 0
}

// siftDown walks the lot at index i toward the leaves, swapping with the
// cheaper child until neither child is cheaper. Ties between children resolve
// to the left child. Iterative on purpose: no recursion depth to worry about
// however deep the heap gets.
func (h *Heap) siftDown(i int) {
	for {
		smallest := i

		if l := leftChild(i); l < len(h.lots) &&
			h.lots[l].PricePerUnit.LessThan(h.lots[smallest].PricePerUnit) {
			smallest = l
		}
		if r := rightChild(i); r < len(h.lots) &&
			h.lots[r].PricePerUnit.LessThan(h.lots[smallest].PricePerUnit) {
			smallest = r
		}

		if smallest == i {
			return
		}
		h.lots[i], h.lots[smallest] = h.lots[smallest], h.lots[i]
		i = smallest
	}
}

package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind int

const (
	// Produce adds a new lot of inventory acquired at a total cost.
	Produce Kind = iota
	// Consume withdraws exactly one unit from the cheapest available lot.
	Consume
)

func (k Kind) String() string {
	switch k {
	case Produce:
		return "produce"
	case Consume:
		return "consume"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Transaction is an immutable request against the warehouse. TotalCost is
// present on produce and absent on consume; the warehouse rejects anything
// else.
type Transaction struct {
	UUID      string           // Transaction tracked uuid
	Kind      Kind             //
	Product   string           // Product the transaction applies to
	Quantity  uint64           // Units produced (consume is always 1)
	TotalCost *decimal.Decimal // Acquisition cost of the whole lot, nil on consume
	Timestamp time.Time        // Time of arrival of the transaction
}

// NewProduce builds a produce transaction for quantity units acquired at
// totalCost.
func NewProduce(product string, quantity uint64, totalCost decimal.Decimal) Transaction {
	return Transaction{
		UUID:      uuid.New().String(),
		Kind:      Produce,
		Product:   product,
		Quantity:  quantity,
		TotalCost: &totalCost,
		Timestamp: time.Now(),
	}
}

// NewConsume builds a consume transaction for a single unit.
func NewConsume(product string) Transaction {
	return Transaction{
		UUID:      uuid.New().String(),
		Kind:      Consume,
		Product:   product,
		Quantity:  1,
		Timestamp: time.Now(),
	}
}

func (t Transaction) String() string {
	cost := "-"
	if t.TotalCost != nil {
		cost = t.TotalCost.String()
	}
	return fmt.Sprintf(
		`UUID:      %s
Kind:      %v
Product:   %s
Quantity:  %d
TotalCost: %s
Timestamp: %v`,
		t.UUID,
		t.Kind,
		t.Product,
		t.Quantity,
		cost,
		t.Timestamp.Format(time.RFC3339),
	)
}

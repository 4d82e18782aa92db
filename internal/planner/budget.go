package planner

import (
	"fmt"
	"sync"
)

// Budget is the process-wide daily spending ledger. Every decomposition
// reserves its estimated cost through the one mutex here, so two
// concurrent goals cannot jointly overspend the ceiling.
type Budget struct {
	mu       sync.Mutex
	ceiling  float64
	reserved float64
}

// NewBudget creates a ledger with the given daily ceiling in USD.
func NewBudget(ceilingUSD float64) *Budget {
	return &Budget{ceiling: ceilingUSD}
}

// Remaining returns the unreserved budget.
func (b *Budget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ceiling - b.reserved
}

// Reserve claims amount against the remaining budget, failing if it does
// not fit.
func (b *Budget) Reserve(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("reserve negative amount %v", amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reserved+amount > b.ceiling {
		return fmt.Errorf("budget exceeded: %.4f reserved of %.4f ceiling, cannot add %.4f",
			b.reserved, b.ceiling, amount)
	}
	b.reserved += amount
	return nil
}

// Release returns a previously reserved amount, e.g. after a rejected
// enqueue. Releasing more than is reserved clamps to zero.
func (b *Budget) Release(amount float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserved -= amount
	if b.reserved < 0 {
		b.reserved = 0
	}
}

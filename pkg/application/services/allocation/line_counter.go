package allocation

import (
	"sync"

	"github.com/vsinha/stockalloc/pkg/domain/entities"
)

// StoreLineCounter tracks which products each store receives across a whole run
// and enforces the per-store line limit. It is the only state shared between
// product pipelines and is safe for concurrent use.
type StoreLineCounter struct {
	mu    sync.Mutex
	limit int
	lines map[entities.OutletID]map[entities.ProductID]struct{}
}

// NewStoreLineCounter creates a counter; limit <= 0 means unlimited
func NewStoreLineCounter(limit int) *StoreLineCounter {
	return &StoreLineCounter{
		limit: limit,
		lines: make(map[entities.OutletID]map[entities.ProductID]struct{}),
	}
}

// TryAcquire claims a line slot for product at outlet. Claiming a slot the
// product already holds succeeds without consuming another.
func (c *StoreLineCounter) TryAcquire(outlet entities.OutletID, product entities.ProductID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	held := c.lines[outlet]
	if _, ok := held[product]; ok {
		return true
	}
	if c.limit > 0 && len(held) >= c.limit {
		return false
	}
	if held == nil {
		held = make(map[entities.ProductID]struct{})
		c.lines[outlet] = held
	}
	held[product] = struct{}{}
	return true
}

// Release frees the slot product holds at outlet, if any
func (c *StoreLineCounter) Release(outlet entities.OutletID, product entities.ProductID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if held, ok := c.lines[outlet]; ok {
		delete(held, product)
		if len(held) == 0 {
			delete(c.lines, outlet)
		}
	}
}

// Count returns the number of lines held at an outlet
func (c *StoreLineCounter) Count(outlet entities.OutletID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines[outlet])
}

// Limit returns the configured per-store limit (0 = unlimited)
func (c *StoreLineCounter) Limit() int {
	return c.limit
}

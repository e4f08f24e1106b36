package batch

import (
	"sync"

	"github.com/deppfellow/itembatch/internal/model"
)

// accumulator collects the items saved by one run, in completion order.
// An id is accepted at most once.
type accumulator struct {
	mu    sync.Mutex
	items []model.Item
	seen  map[int64]struct{}
}

func newAccumulator(capacity int) *accumulator {
	return &accumulator{
		items: make([]model.Item, 0, capacity),
		seen:  make(map[int64]struct{}, capacity),
	}
}

// add appends item and reports whether it was new for this run.
func (a *accumulator) add(item model.Item) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.seen[item.ID]; dup {
		return false
	}
	a.seen[item.ID] = struct{}{}
	a.items = append(a.items, item)

	return true
}

// snapshot returns a copy the caller may keep.
func (a *accumulator) snapshot() []model.Item {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.Item, len(a.items))
	copy(out, a.items)

	return out
}

func (a *accumulator) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Package book indexes every order of one account by id and keeps the
// FIFO queue of pending order ids that matching passes drain.
package book

import (
	"fmt"
	"sort"

	"github.com/eddiefleurent/paper_tiger/internal/models"
)

// Book is the order store. It is not self-locking: the owning service
// serializes every call. Terminal orders stay in the index so past
// fills and cancels remain inspectable; only pending orders sit in the
// queue.
type Book struct {
	orders  map[string]*models.Order
	pending []string
}

// New returns an empty book.
func New() *Book {
	return &Book{orders: make(map[string]*models.Order)}
}

// Load rebuilds a book from persisted orders and queue. Every queued id
// must resolve to a pending order and every pending order must be
// queued exactly once; anything else means the snapshot is corrupt.
func Load(orders map[string]*models.Order, pending []string) (*Book, error) {
	b := New()
	for id, o := range orders {
		if o == nil {
			return nil, fmt.Errorf("order %s is null", id)
		}
		if o.ID != id {
			return nil, fmt.Errorf("order keyed %s carries id %s", id, o.ID)
		}
		b.orders[id] = o.Copy()
	}

	seen := make(map[string]struct{}, len(pending))
	for _, id := range pending {
		o, ok := b.orders[id]
		if !ok {
			return nil, fmt.Errorf("queued order %s missing from the book", id)
		}
		if o.Status != models.StatusPending {
			return nil, fmt.Errorf("queued order %s is %s", id, o.Status)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("order %s queued twice", id)
		}
		seen[id] = struct{}{}
		b.pending = append(b.pending, id)
	}

	for id, o := range b.orders {
		if o.Status != models.StatusPending {
			continue
		}
		if _, ok := seen[id]; !ok {
			return nil, fmt.Errorf("pending order %s not queued", id)
		}
	}
	return b, nil
}

// Add indexes the order, queueing it when pending. Duplicate ids fail.
func (b *Book) Add(o *models.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}
	if _, exists := b.orders[o.ID]; exists {
		return fmt.Errorf("order %s already booked", o.ID)
	}
	b.orders[o.ID] = o
	if o.Status == models.StatusPending {
		b.pending = append(b.pending, o.ID)
	}
	return nil
}

// Get returns the live order, or nil when unknown. Callers change its
// status only through the order's Transition method.
func (b *Book) Get(id string) *models.Order {
	return b.orders[id]
}

// PendingIDs returns a snapshot of the queue in arrival order.
func (b *Book) PendingIDs() []string {
	return append([]string(nil), b.pending...)
}

// PendingCount returns the number of queued orders.
func (b *Book) PendingCount() int { return len(b.pending) }

// RemovePending drops an id from the queue once its order left the
// pending status. Unknown ids are a no-op.
func (b *Book) RemovePending(id string) {
	for i, queued := range b.pending {
		if queued == id {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			return
		}
	}
}

// Orders returns copies of the orders with the given status, oldest
// first. An empty status selects everything.
func (b *Book) Orders(status models.OrderStatus) []*models.Order {
	out := make([]*models.Order, 0, len(b.orders))
	for _, o := range b.orders {
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, o.Copy())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Snapshot returns deep copies of the index and queue for persistence.
func (b *Book) Snapshot() (map[string]*models.Order, []string) {
	orders := make(map[string]*models.Order, len(b.orders))
	for id, o := range b.orders {
		orders[id] = o.Copy()
	}
	return orders, b.PendingIDs()
}

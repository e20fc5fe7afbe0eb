// Package orders negotiates the orders offered to the driver during one
// session. The server decides accept outcomes; the driver decides rejections.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/sy1125/MyApp/pkg/client"
	"github.com/sy1125/MyApp/pkg/domain"
)

var (
	ErrUnknownOrder = errors.New("unknown order")
	ErrNotPending   = errors.New("order is no longer pending")
	// ErrSessionChanged is returned when the registry was reset while an
	// accept was in flight; its result was discarded.
	ErrSessionChanged = errors.New("session changed, result discarded")
)

// ConflictError means another driver claimed the order first.
type ConflictError struct {
	OrderID string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("order %s already taken: %s", e.OrderID, e.Message)
}

// Accepter claims an order on the server.
type Accepter interface {
	Accept(ctx context.Context, orderID string) error
}

type entry struct {
	// lock serializes accept/reject on this order.
	lock  sync.Mutex
	order domain.Order
}

// Registry holds the session's orders in arrival order.
type Registry struct {
	api Accepter
	log *slog.Logger

	mu      sync.Mutex
	epoch   uint64
	entries map[string]*entry
	ids     []string

	changes chan struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry(api Accepter, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		api:     api,
		log:     log.With("component", "orders"),
		entries: make(map[string]*entry),
		changes: make(chan struct{}, 1),
	}
}

// Changes signals, coalesced, that the registry content changed.
func (r *Registry) Changes() <-chan struct{} {
	return r.changes
}

func (r *Registry) notify() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

// Ingest adds a pushed order as pending. Re-delivery of a known id is a no-op.
func (r *Registry) Ingest(o domain.Order) bool {
	if o.OrderID == "" {
		return false
	}
	r.mu.Lock()
	if _, ok := r.entries[o.OrderID]; ok {
		r.mu.Unlock()
		return false
	}
	o.Status = domain.OrderPending
	o.Tentative = false
	r.entries[o.OrderID] = &entry{order: o}
	r.ids = append(r.ids, o.OrderID)
	r.mu.Unlock()

	r.notify()
	return true
}

// Accept optimistically marks the order accepted, then asks the server.
// A 400 reverts it to rejected and returns a *ConflictError carrying the
// server's message; any other failure reverts it to pending.
func (r *Registry) Accept(ctx context.Context, orderID string) error {
	e, epoch, err := r.lockEntry(orderID)
	if err != nil {
		return err
	}
	defer e.lock.Unlock()

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		return ErrSessionChanged
	}
	if e.order.Status != domain.OrderPending {
		r.mu.Unlock()
		return ErrNotPending
	}
	e.order.Status = domain.OrderAccepted
	e.order.Tentative = true
	r.mu.Unlock()
	r.notify()

	apiErr := r.api.Accept(ctx, orderID)

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		r.log.Info("discarded accept result from previous session", "order_id", orderID)
		return ErrSessionChanged
	}
	switch {
	case apiErr == nil:
		e.order.Tentative = false
	case client.IsStatus(apiErr, http.StatusBadRequest):
		e.order.Status = domain.OrderRejected
		e.order.Tentative = false
	default:
		e.order.Status = domain.OrderPending
		e.order.Tentative = false
	}
	r.mu.Unlock()
	r.notify()

	if apiErr == nil {
		return nil
	}
	if client.IsStatus(apiErr, http.StatusBadRequest) {
		return &ConflictError{OrderID: orderID, Message: client.Message(apiErr)}
	}
	r.log.Warn("accept failed, order back to pending", "order_id", orderID, "err", apiErr)
	return fmt.Errorf("orders.Accept: %w", apiErr)
}

// Reject marks the order rejected. It never calls the server.
func (r *Registry) Reject(orderID string) error {
	e, epoch, err := r.lockEntry(orderID)
	if err != nil {
		return err
	}
	defer e.lock.Unlock()

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		return ErrSessionChanged
	}
	if e.order.Status != domain.OrderPending {
		r.mu.Unlock()
		return ErrNotPending
	}
	e.order.Status = domain.OrderRejected
	r.mu.Unlock()
	r.notify()
	return nil
}

// lockEntry finds the entry and takes its per-order lock. Callers must
// recheck the returned epoch under r.mu before changing the order.
func (r *Registry) lockEntry(orderID string) (*entry, uint64, error) {
	r.mu.Lock()
	e, ok := r.entries[orderID]
	epoch := r.epoch
	r.mu.Unlock()
	if !ok {
		return nil, 0, ErrUnknownOrder
	}
	e.lock.Lock()
	return e, epoch, nil
}

// Get returns a copy of one order.
func (r *Registry) Get(orderID string) (domain.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return e.order, true
}

// Pending lists pending orders, including ones with an accept in flight.
func (r *Registry) Pending() []domain.Order {
	return r.filter(func(o domain.Order) bool {
		return o.Status == domain.OrderPending || o.Tentative
	})
}

// Accepted lists orders the server confirmed.
func (r *Registry) Accepted() []domain.Order {
	return r.filter(func(o domain.Order) bool {
		return o.Status == domain.OrderAccepted && !o.Tentative
	})
}

// Len returns the number of orders of any status.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) filter(keep func(domain.Order) bool) []domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Order, 0, len(r.ids))
	for _, id := range r.ids {
		if o := r.entries[id].order; keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// Reset empties the registry. Accepts still in flight will find a newer
// epoch and drop their result.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.epoch++
	r.entries = make(map[string]*entry)
	r.ids = nil
	r.mu.Unlock()
	r.notify()
}

// SessionStarted implements session.Listener.
func (r *Registry) SessionStarted(context.Context, domain.Session) {}

// SessionEnded clears the registry.
func (r *Registry) SessionEnded() { r.Reset() }

// Package store implements the cart state engine: the authoritative
// in-session line-item list, hydrated once from durable storage and written
// through after every mutation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/martincharlesFajIT/fajtradingllc/internal/catalog"
	"github.com/martincharlesFajIT/fajtradingllc/internal/domain"
	"github.com/martincharlesFajIT/fajtradingllc/internal/storage"
	apperrors "github.com/martincharlesFajIT/fajtradingllc/pkg/errors"
	"github.com/martincharlesFajIT/fajtradingllc/pkg/logger"
)

// Lifecycle errors. The store has exactly two states: it starts
// uninitialized, transitions to ready exactly once via Initialize, and never
// re-hydrates mid-session.
var (
	ErrNotReady           = errors.New("cart store is not initialized")
	ErrAlreadyInitialized = errors.New("cart store is already initialized")
)

const writeTimeout = 5 * time.Second

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Total cart mutations by operation",
		},
		[]string{"op"},
	)

	writeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_write_failures_total",
			Help: "Write-throughs that failed to persist the cart",
		},
	)
)

// Notifier receives cart change notifications after successful mutations.
// Failures are logged by the store and never surfaced to the mutation caller.
type Notifier interface {
	CartUpdated(ctx context.Context, cart domain.Cart) error
	CartCleared(ctx context.Context) error
}

// Store owns the canonical cart line-item list. Mutations update the
// in-memory list synchronously; the durable write happens on a background
// writer that coalesces rapid successive mutations into fewer physical
// writes, always persisting the newest snapshot. A failed or slow write
// never blocks mutations and never rolls back in-memory state.
type Store struct {
	adapter  storage.Adapter
	key      string
	notifier Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	ready bool
	cart  domain.Cart

	// writer state, guarded by wmu
	wmu     sync.Mutex
	wcond   *sync.Cond
	pending []byte
	writing bool
	closing bool
	saveErr error
	done    chan struct{}
}

// New creates an uninitialized store persisting under the given storage key.
// notifier may be nil.
func New(adapter storage.Adapter, key string, notifier Notifier, logger *slog.Logger) *Store {
	s := &Store{
		adapter:  adapter,
		key:      key,
		notifier: notifier,
		logger:   logger,
		done:     make(chan struct{}),
	}
	s.wcond = sync.NewCond(&s.wmu)
	return s
}

// Initialize hydrates the cart from storage and transitions the store to
// ready. An absent key starts an empty cart. An unreadable or corrupt blob
// is discarded with a logged warning — durability loss is acceptable,
// corruption must never block startup. Mutations issued before Initialize
// completes are rejected, never applied to a not-yet-hydrated list.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return ErrAlreadyInitialized
	}

	data, err := s.adapter.Read(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// First run on this device.
	case err != nil:
		s.logger.WarnContext(ctx, "cart hydration failed, starting empty",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
	default:
		var items []domain.LineItem
		if uerr := json.Unmarshal(data, &items); uerr != nil {
			s.logger.WarnContext(ctx, "discarding corrupt persisted cart",
				slog.String("key", s.key),
				slog.String("error", uerr.Error()),
			)
		} else {
			s.cart.Items = items
			s.logger.InfoContext(ctx, "cart hydrated from storage",
				slog.String("key", s.key),
				slog.Int("items", len(items)),
			)
		}
	}

	s.ready = true
	go s.writeLoop()
	return nil
}

// Ready reports whether Initialize has completed.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// AddItem adds quantity units of the product's variant at variantIndex. If a
// line item with the same product+variant id already exists, its quantity is
// incremented (no ceiling: stock limits are the catalog's responsibility);
// otherwise a new line item is appended, capturing name, image, price,
// currency, and availability at add-time.
func (s *Store) AddItem(ctx context.Context, product catalog.Product, variantIndex, quantity int) (domain.LineItem, error) {
	if quantity < 1 {
		return domain.LineItem{}, apperrors.InvalidInput(fmt.Sprintf("quantity must be at least 1, got %d", quantity))
	}
	variant, ok := product.Variant(variantIndex)
	if !ok {
		return domain.LineItem{}, apperrors.InvalidInput(fmt.Sprintf("product %s has no variant at index %d", product.ID, variantIndex))
	}

	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return domain.LineItem{}, ErrNotReady
	}

	id := domain.LineItemID(product.ID, variant.ID)
	var item domain.LineItem
	if i := s.cart.FindIndex(id); i >= 0 {
		s.cart.Items[i].Quantity += quantity
		item = s.cart.Items[i]
	} else {
		li, err := domain.NewLineItem(product, variant, quantity)
		if err != nil {
			s.mu.Unlock()
			return domain.LineItem{}, apperrors.InvalidInput(err.Error())
		}
		s.cart.Items = append(s.cart.Items, li)
		item = li
	}
	snapshot, cart := s.snapshotLocked()
	s.mu.Unlock()

	mutationsTotal.WithLabelValues("add").Inc()
	s.enqueueWrite(snapshot)
	s.notifyUpdated(ctx, cart)

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "item added to cart",
		slog.String("item_id", item.ID),
		slog.Int("quantity", quantity),
		slog.Int("item_quantity", item.Quantity),
	)

	return item, nil
}

// RemoveItem removes the line item with the given id. Removing an absent id
// is a no-op, not an error.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return ErrNotReady
	}

	i := s.cart.FindIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.cart.Items = append(s.cart.Items[:i], s.cart.Items[i+1:]...)
	snapshot, cart := s.snapshotLocked()
	s.mu.Unlock()

	mutationsTotal.WithLabelValues("remove").Inc()
	s.enqueueWrite(snapshot)
	s.notifyUpdated(ctx, cart)

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "item removed from cart", slog.String("item_id", id))
	return nil
}

// SetQuantity replaces the quantity of the line item with the given id.
// Quantities below 1 and unknown ids are silent no-ops: deletion is only
// ever the explicit RemoveItem, never an implicit clamp to zero.
func (s *Store) SetQuantity(ctx context.Context, id string, quantity int) error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return ErrNotReady
	}

	if quantity < 1 {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "ignoring quantity below 1",
			slog.String("item_id", id),
			slog.Int("quantity", quantity),
		)
		return nil
	}

	i := s.cart.FindIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.cart.Items[i].Quantity = quantity
	snapshot, cart := s.snapshotLocked()
	s.mu.Unlock()

	mutationsTotal.WithLabelValues("set_quantity").Inc()
	s.enqueueWrite(snapshot)
	s.notifyUpdated(ctx, cart)

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "cart item quantity updated",
		slog.String("item_id", id),
		slog.Int("quantity", quantity),
	)
	return nil
}

// Clear unconditionally empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.cart.Items = []domain.LineItem{}
	snapshot, _ := s.snapshotLocked()
	s.mu.Unlock()

	mutationsTotal.WithLabelValues("clear").Inc()
	s.enqueueWrite(snapshot)
	if s.notifier != nil {
		if err := s.notifier.CartCleared(ctx); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
				slog.String("error", err.Error()),
			)
		}
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "cart cleared")
	return nil
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.LineItem, len(s.cart.Items))
	copy(items, s.cart.Items)
	return domain.Cart{Items: items}
}

// Count returns the sum of all item quantities.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Count()
}

// Subtotal returns the derived subtotal in minor units.
func (s *Store) Subtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Subtotal()
}

// VAT returns the derived 5% tax in minor units.
func (s *Store) VAT() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.VAT()
}

// Total returns subtotal plus VAT in minor units.
func (s *Store) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

// Flush blocks until every enqueued write-through has been attempted, then
// returns the outcome of the last attempt. A non-nil result means the latest
// in-memory state may not survive a restart; the cart itself remains fully
// usable.
func (s *Store) Flush(ctx context.Context) error {
	flushed := make(chan error, 1)
	go func() {
		s.wmu.Lock()
		for s.pending != nil || s.writing {
			s.wcond.Wait()
		}
		err := s.saveErr
		s.wmu.Unlock()
		flushed <- err
	}()

	select {
	case err := <-flushed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending write-throughs and stops the background writer. The
// store must not be used afterwards.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.wmu.Lock()
	s.closing = true
	s.wcond.Broadcast()
	s.wmu.Unlock()

	select {
	case <-s.done:
		s.wmu.Lock()
		err := s.saveErr
		s.wmu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// snapshotLocked serializes the current item list for persistence and
// returns a detached copy of the cart for notifications. Callers must hold
// s.mu.
func (s *Store) snapshotLocked() ([]byte, domain.Cart) {
	items := make([]domain.LineItem, len(s.cart.Items))
	copy(items, s.cart.Items)

	data, err := json.Marshal(items)
	if err != nil {
		// LineItem contains only marshal-safe fields; this cannot happen
		// without a programming error.
		s.logger.Error("failed to serialize cart snapshot", slog.String("error", err.Error()))
		data = []byte("[]")
	}
	return data, domain.Cart{Items: items}
}

// enqueueWrite hands the latest snapshot to the writer, replacing any
// still-queued older snapshot. Write-throughs are therefore applied in
// mutation order with last-write-wins coalescing.
func (s *Store) enqueueWrite(snapshot []byte) {
	s.wmu.Lock()
	s.pending = snapshot
	s.wcond.Signal()
	s.wmu.Unlock()
}

func (s *Store) writeLoop() {
	defer close(s.done)

	s.wmu.Lock()
	for {
		for s.pending == nil && !s.closing {
			s.wcond.Wait()
		}
		if s.pending == nil {
			s.wmu.Unlock()
			return
		}
		data := s.pending
		s.pending = nil
		s.writing = true
		s.wmu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := s.adapter.Write(ctx, s.key, data)
		cancel()

		if err != nil {
			writeFailuresTotal.Inc()
			s.logger.Warn("cart write-through failed; in-memory cart remains authoritative",
				slog.String("key", s.key),
				slog.String("error", err.Error()),
			)
		}

		s.wmu.Lock()
		s.writing = false
		s.saveErr = err
		s.wcond.Broadcast()
	}
}

func (s *Store) notifyUpdated(ctx context.Context, cart domain.Cart) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.CartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("error", err.Error()),
		)
	}
}

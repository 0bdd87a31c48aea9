package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martincharlesFajIT/fajtradingllc/internal/catalog"
	"github.com/martincharlesFajIT/fajtradingllc/internal/domain"
	"github.com/martincharlesFajIT/fajtradingllc/internal/storage"
	apperrors "github.com/martincharlesFajIT/fajtradingllc/pkg/errors"
	pkglogger "github.com/martincharlesFajIT/fajtradingllc/pkg/logger"
)

const testKey = "shopping_cart"

// fakeAdapter is an in-memory storage.Adapter with injectable failures.
type fakeAdapter struct {
	mu       sync.Mutex
	data     map[string][]byte
	readErr  error
	writeErr error
	writes   int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{data: make(map[string][]byte)}
}

func (f *fakeAdapter) Read(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	data, ok := f.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (f *fakeAdapter) Write(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.data[key] = value
	return nil
}

func (f *fakeAdapter) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeAdapter) stored(t *testing.T, key string) []domain.LineItem {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[key]
	require.True(t, ok, "no value stored under %q", key)
	var items []domain.LineItem
	require.NoError(t, json.Unmarshal(data, &items))
	return items
}

// spyNotifier records notifications.
type spyNotifier struct {
	mu      sync.Mutex
	updated int
	cleared int
	err     error
}

func (n *spyNotifier) CartUpdated(ctx context.Context, cart domain.Cart) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updated++
	return n.err
}

func (n *spyNotifier) CartCleared(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cleared++
	return n.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newReadyStore(t *testing.T, adapter storage.Adapter) *Store {
	t.Helper()
	s := New(adapter, testKey, nil, testLogger())
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func widget() catalog.Product {
	return catalog.Product{
		ID:    "P1",
		Title: "Widget",
		Images: []catalog.Image{
			{URL: "img1"},
		},
		Variants: []catalog.Variant{
			{
				ID:               "V1",
				Title:            "Default Title",
				Price:            catalog.Price{Amount: "100.00", CurrencyCode: "AED"},
				AvailableForSale: true,
			},
		},
	}
}

func gadget() catalog.Product {
	return catalog.Product{
		ID:    "P2",
		Title: "Gadget",
		Variants: []catalog.Variant{
			{
				ID:               "V9",
				Title:            "Blue",
				Price:            catalog.Price{Amount: "45.00", CurrencyCode: "AED"},
				AvailableForSale: true,
			},
		},
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestMutationsRejectedBeforeInitialize(t *testing.T) {
	s := New(newFakeAdapter(), testKey, nil, testLogger())
	ctx := context.Background()

	_, err := s.AddItem(ctx, widget(), 0, 1)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, s.RemoveItem(ctx, "P1_V1"), ErrNotReady)
	assert.ErrorIs(t, s.SetQuantity(ctx, "P1_V1", 2), ErrNotReady)
	assert.ErrorIs(t, s.Clear(ctx), ErrNotReady)
	assert.False(t, s.Ready())
}

func TestInitialize_Twice(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())
	assert.ErrorIs(t, s.Initialize(context.Background()), ErrAlreadyInitialized)
}

func TestInitialize_EmptyWhenKeyAbsent(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())
	assert.True(t, s.Ready())
	assert.Equal(t, 0, s.Count())
}

func TestInitialize_HydratesPersistedCart(t *testing.T) {
	adapter := newFakeAdapter()
	items := []domain.LineItem{
		{ID: "P1_V1", ProductID: "P1", VariantID: "V1", Name: "Widget", UnitPrice: 10000, Currency: "AED", Quantity: 2, InStock: true},
	}
	data, err := json.Marshal(items)
	require.NoError(t, err)
	adapter.data[testKey] = data

	s := newReadyStore(t, adapter)

	assert.Equal(t, 2, s.Count())
	cart := s.Cart()
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "P1_V1", cart.Items[0].ID)
}

func TestInitialize_CorruptBlobStartsEmpty(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.data[testKey] = []byte("{{not-valid-json")

	s := newReadyStore(t, adapter)

	assert.True(t, s.Ready())
	assert.Equal(t, 0, s.Count())
}

func TestInitialize_ReadFailureStartsEmpty(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.readErr = errors.New("disk on fire")

	s := New(adapter, testKey, nil, testLogger())
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	assert.True(t, s.Ready())
	assert.Equal(t, 0, s.Count())
}

// ---------------------------------------------------------------------------
// AddItem
// ---------------------------------------------------------------------------

func TestAddItem_NewItem(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())

	item, err := s.AddItem(context.Background(), widget(), 0, 2)

	require.NoError(t, err)
	assert.Equal(t, "P1_V1", item.ID)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, int64(10000), item.UnitPrice)
	assert.Empty(t, item.VariantLabel)
	assert.Equal(t, 2, s.Count())
}

func TestAddItem_MergesSameVariant(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())
	ctx := context.Background()

	_, err := s.AddItem(ctx, widget(), 0, 2)
	require.NoError(t, err)
	item, err := s.AddItem(ctx, widget(), 0, 3)
	require.NoError(t, err)

	assert.Equal(t, 5, item.Quantity)
	cart := s.Cart()
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestAddItem_PreservesInsertionOrder(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())
	ctx := context.Background()

	_, err := s.AddItem(ctx, widget(), 0, 1)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, gadget(), 0, 1)
	require.NoError(t, err)
	// Merging must not move the item.
	_, err = s.AddItem(ctx, widget(), 0, 1)
	require.NoError(t, err)

	cart := s.Cart()
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "P1_V1", cart.Items[0].ID)
	assert.Equal(t, "P2_V9", cart.Items[1].ID)
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())

	_, err := s.AddItem(context.Background(), widget(), 0, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = s.AddItem(context.Background(), widget(), 0, -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 0, s.Count())
}

func TestAddItem_RejectsBadVariantIndex(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())

	_, err := s.AddItem(context.Background(), widget(), 5, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = s.AddItem(context.Background(), widget(), -1, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// ---------------------------------------------------------------------------
// SetQuantity / RemoveItem / Clear
// ---------------------------------------------------------------------------

func TestSetQuantity_ReplacesQuantity(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())
	ctx := context.Background()

	_, err := s.AddItem(ctx, widget(), 0, 5)
	require.NoError(t, err)

	require.NoError(t, s.SetQuantity(ctx, "P1_V1", 1))
	assert.Equal(t, 1, s.Count())
}

func TestSetQuantity_BelowOneIsNoOp(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())
	ctx := context.Background()

	_, err := s.AddItem(ctx, widget(), 0, 3)
	require.NoError(t, err)

	require.NoError(t, s.SetQuantity(ctx, "P1_V1", 0))
	require.NoError(t, s.SetQuantity(ctx, "P1_V1", -2))

	cart := s.Cart()
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestSetQuantity_UnknownIDIsNoOp(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())

	require.NoError(t, s.SetQuantity(context.Background(), "nope", 4))
	assert.Equal(t, 0, s.Count())
}

func TestRemoveItem_RemovesAndReducesCount(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())
	ctx := context.Background()

	_, err := s.AddItem(ctx, widget(), 0, 2)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, gadget(), 0, 1)
	require.NoError(t, err)

	before := s.Count()
	require.NoError(t, s.RemoveItem(ctx, "P1_V1"))

	cart := s.Cart()
	assert.Equal(t, -1, cart.FindIndex("P1_V1"))
	assert.Equal(t, before-2, s.Count())
}

func TestRemoveItem_AbsentIsNoOp(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())
	require.NoError(t, s.RemoveItem(context.Background(), "ghost"))
}

func TestClear_EmptiesCartAndPersists(t *testing.T) {
	adapter := newFakeAdapter()
	s := newReadyStore(t, adapter)
	ctx := context.Background()

	_, err := s.AddItem(ctx, widget(), 0, 2)
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, 0, s.Count())
	assert.Empty(t, adapter.stored(t, testKey))
}

// ---------------------------------------------------------------------------
// Derived totals
// ---------------------------------------------------------------------------

func TestDerivedTotals_Scenario(t *testing.T) {
	s := newReadyStore(t, newFakeAdapter())
	ctx := context.Background()

	// Add 2, then 3 more of the same variant: one line item, quantity 5.
	_, err := s.AddItem(ctx, widget(), 0, 2)
	require.NoError(t, err)
	item, err := s.AddItem(ctx, widget(), 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	// 5 x 100.00 = 500.00, VAT 25.00, total 525.00.
	assert.Equal(t, int64(50000), s.Subtotal())
	assert.Equal(t, int64(2500), s.VAT())
	assert.Equal(t, int64(52500), s.Total())

	require.NoError(t, s.SetQuantity(ctx, "P1_V1", 1))
	assert.Equal(t, int64(10500), s.Total())

	require.NoError(t, s.RemoveItem(ctx, "P1_V1"))
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, int64(0), s.Total())
}

// ---------------------------------------------------------------------------
// Write-through and persistence
// ---------------------------------------------------------------------------

func TestWriteThrough_RoundTrip(t *testing.T) {
	adapter := newFakeAdapter()
	s := newReadyStore(t, adapter)
	ctx := context.Background()

	_, err := s.AddItem(ctx, widget(), 0, 2)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, gadget(), 0, 1)
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	// A fresh store over the same adapter sees the same items in order.
	fresh := New(adapter, testKey, nil, testLogger())
	require.NoError(t, fresh.Initialize(ctx))
	t.Cleanup(func() { _ = fresh.Close(context.Background()) })

	cart := fresh.Cart()
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "P1_V1", cart.Items[0].ID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "P2_V9", cart.Items[1].ID)
	assert.Equal(t, 1, cart.Items[1].Quantity)
	assert.Equal(t, s.Subtotal(), fresh.Subtotal())
}

func TestWriteThrough_FinalStateMatchesAfterRapidMutations(t *testing.T) {
	adapter := newFakeAdapter()
	s := newReadyStore(t, adapter)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, err := s.AddItem(ctx, widget(), 0, 1)
		require.NoError(t, err)
	}
	require.NoError(t, s.Flush(ctx))

	items := adapter.stored(t, testKey)
	require.Len(t, items, 1)
	assert.Equal(t, 50, items[0].Quantity)
	// Rapid mutations coalesce into fewer physical writes.
	adapter.mu.Lock()
	writes := adapter.writes
	adapter.mu.Unlock()
	assert.LessOrEqual(t, writes, 50)
	assert.GreaterOrEqual(t, writes, 1)
}

func TestWriteThrough_FailureDoesNotRollBack(t *testing.T) {
	adapter := newFakeAdapter()
	s := newReadyStore(t, adapter)
	ctx := context.Background()

	adapter.setWriteErr(errors.New("storage offline"))

	// The mutation itself succeeds; in-memory state is authoritative.
	item, err := s.AddItem(ctx, widget(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 2, s.Count())

	// Flush surfaces the recoverable write failure.
	err = s.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage offline")

	// Once storage recovers, the next mutation persists the full state.
	adapter.setWriteErr(nil)
	_, err = s.AddItem(ctx, widget(), 0, 1)
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	items := adapter.stored(t, testKey)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestClose_DrainsPendingWrites(t *testing.T) {
	adapter := newFakeAdapter()
	s := New(adapter, testKey, nil, testLogger())
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	_, err := s.AddItem(ctx, widget(), 0, 4)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	items := adapter.stored(t, testKey)
	require.Len(t, items, 1)
	assert.Equal(t, 4, items[0].Quantity)
}

func TestClose_BeforeInitialize(t *testing.T) {
	s := New(newFakeAdapter(), testKey, nil, testLogger())
	assert.NoError(t, s.Close(context.Background()))
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

func TestNotifier_ReceivesUpdatesAndClear(t *testing.T) {
	notifier := &spyNotifier{}
	s := New(newFakeAdapter(), testKey, notifier, testLogger())
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	_, err := s.AddItem(ctx, widget(), 0, 1)
	require.NoError(t, err)
	require.NoError(t, s.SetQuantity(ctx, "P1_V1", 3))
	require.NoError(t, s.RemoveItem(ctx, "P1_V1"))
	require.NoError(t, s.Clear(ctx))

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, 3, notifier.updated)
	assert.Equal(t, 1, notifier.cleared)
}

func TestMutationLogs_CarryCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	log := pkglogger.NewWithWriter("cart-service", "info", &buf)
	s := New(newFakeAdapter(), testKey, nil, log)
	ctx := pkglogger.WithCorrelationID(context.Background(), "corr-42")
	require.NoError(t, s.Initialize(ctx))
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	_, err := s.AddItem(ctx, widget(), 0, 1)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"correlation_id":"corr-42"`)
}

func TestNotifier_FailureDoesNotFailMutation(t *testing.T) {
	notifier := &spyNotifier{err: errors.New("broker down")}
	s := New(newFakeAdapter(), testKey, notifier, testLogger())
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	_, err := s.AddItem(ctx, widget(), 0, 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, s.Count())
}

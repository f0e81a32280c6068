package cartstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func fern() CartLine {
	return CartLine{ProductID: "p-fern", Title: "Boston Fern", UnitPrice: decimal.RequireFromString("249.50")}
}

func storedCart(t *testing.T, storage Storage) []CartLine {
	t.Helper()
	raw, err := storage.Load(context.Background(), CartKey)
	require.NoError(t, err)
	var lines []CartLine
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &lines))
	}
	return lines
}

func TestAddOrIncrement(t *testing.T) {
	storage := NewMemoryStorage()
	s := New(storage, nil)
	ctx := context.Background()

	s.AddOrIncrement(ctx, fern())
	s.AddOrIncrement(ctx, fern())
	s.AddOrIncrement(ctx, CartLine{ProductID: "p-cactus", Title: "Golden Barrel", UnitPrice: decimal.NewFromInt(99), Quantity: 7})

	lines := s.Lines()
	require.Len(t, lines, 2)
	require.Equal(t, 2, lines[0].Quantity)
	require.Equal(t, 1, lines[1].Quantity, "new lines start at one regardless of input")
	require.Equal(t, 3, s.Count())
	require.Equal(t, lines, storedCart(t, storage))
}

func TestSetQuantityIgnoresNonPositiveAndUnknown(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	s.AddOrIncrement(ctx, fern())

	events := 0
	unsubscribe := s.Subscribe(func(Change) { events++ })
	defer unsubscribe()

	s.SetQuantity(ctx, "p-fern", 0)
	s.SetQuantity(ctx, "p-fern", -3)
	s.SetQuantity(ctx, "p-missing", 4)
	require.Equal(t, 0, events)
	require.Equal(t, 1, s.Lines()[0].Quantity)

	s.SetQuantity(ctx, "p-fern", 5)
	require.Equal(t, 1, events)
	require.Equal(t, 5, s.Lines()[0].Quantity)
}

func TestRemoveIsIdempotent(t *testing.T) {
	storage := NewMemoryStorage()
	s := New(storage, nil)
	ctx := context.Background()
	s.AddOrIncrement(ctx, fern())

	s.Remove(ctx, "p-fern")
	s.Remove(ctx, "p-fern")
	require.Empty(t, s.Lines())
	require.Empty(t, storedCart(t, storage))
}

func TestWishlistAddIsIdempotentAndMoveKeepsEntry(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	entry := WishlistEntry{ProductID: "p-monstera", Title: "Monstera", Price: decimal.NewFromInt(599)}

	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	s.AddToWishlist(ctx, entry)
	s.AddToWishlist(ctx, entry)
	require.Len(t, s.Wishlist(), 1)
	require.Len(t, changes, 1)
	require.Equal(t, EventWishlistUpdated, changes[0].Event)

	require.True(t, s.MoveWishlistItemToCart(ctx, "p-monstera"))
	require.True(t, s.MoveWishlistItemToCart(ctx, "p-monstera"))
	require.False(t, s.MoveWishlistItemToCart(ctx, "p-unknown"))
	require.Len(t, s.Wishlist(), 1)
	require.Equal(t, 2, s.Lines()[0].Quantity)
	require.Equal(t, EventCartUpdated, changes[len(changes)-1].Event)

	s.RemoveFromWishlist(ctx, "p-monstera")
	s.RemoveFromWishlist(ctx, "p-monstera")
	require.Empty(t, s.Wishlist())
}

func TestListenersMayReadStore(t *testing.T) {
	s := New(nil, nil)
	var seen int
	s.Subscribe(func(Change) { seen = s.Count() })
	s.AddOrIncrement(context.Background(), fern())
	require.Equal(t, 1, seen)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := New(nil, nil)
	calls := 0
	unsubscribe := s.Subscribe(func(Change) { calls++ })
	s.AddOrIncrement(context.Background(), fern())
	unsubscribe()
	unsubscribe()
	s.AddOrIncrement(context.Background(), fern())
	require.Equal(t, 1, calls)
}

func TestSubtotalUsesDiscountPrice(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	discount := decimal.RequireFromString("199.99")
	s.AddOrIncrement(ctx, CartLine{ProductID: "a", UnitPrice: decimal.NewFromInt(250), DiscountPrice: &discount})
	s.AddOrIncrement(ctx, CartLine{ProductID: "a"})
	s.AddOrIncrement(ctx, CartLine{ProductID: "b", UnitPrice: decimal.RequireFromString("10.50")})
	require.Equal(t, "410.48", s.Subtotal().StringFixed(2))
}

func TestOversizedCartPersistsMostRecentTen(t *testing.T) {
	storage := NewMemoryStorage()
	s := New(storage, nil, WithMaxBytes(2000))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		s.AddOrIncrement(ctx, CartLine{
			ProductID: fmt.Sprintf("p-%02d", i),
			Title:     strings.Repeat("x", 40),
			UnitPrice: decimal.NewFromInt(1),
		})
	}

	require.Len(t, s.Lines(), 25, "memory stays authoritative")
	stored := storedCart(t, storage)
	require.Len(t, stored, TrimTo)
	require.Equal(t, "p-15", stored[0].ProductID)
	require.Equal(t, "p-24", stored[TrimTo-1].ProductID)
}

func TestQuotaFailureKeepsMemoryAndPreviousValue(t *testing.T) {
	storage := NewMemoryStorage()
	s := New(storage, nil)
	ctx := context.Background()
	s.AddOrIncrement(ctx, fern())

	storage.Quota = 10
	s.AddOrIncrement(ctx, CartLine{ProductID: "p-cactus", UnitPrice: decimal.NewFromInt(99)})

	require.Len(t, s.Lines(), 2)
	require.Len(t, storedCart(t, storage), 1)
}

func TestLoadRestoresAndToleratesMalformedData(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Save(ctx, CartKey, []byte(`[{"productId":"a","title":"A","unitPrice":"12.5","quantity":2},{"productId":"b","quantity":0}]`)))
	require.NoError(t, storage.Save(ctx, WishlistKey, []byte(`{not json`)))

	s := New(storage, nil)
	s.Load(ctx)

	lines := s.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, 2, lines[0].Quantity)
	require.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("12.5")))
	require.Empty(t, s.Wishlist())
}

func TestLoadMergesDuplicateCartLines(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Save(ctx, CartKey, []byte(`[{"productId":"a","title":"A","unitPrice":"12.5","quantity":2},{"productId":"b","unitPrice":"4","quantity":1},{"productId":"a","title":"A again","unitPrice":"12.5","quantity":3}]`)))

	s := New(storage, nil)
	s.Load(ctx)

	lines := s.Lines()
	require.Len(t, lines, 2)
	require.Equal(t, "a", lines[0].ProductID)
	require.Equal(t, "A", lines[0].Title)
	require.Equal(t, 5, lines[0].Quantity)
	require.Equal(t, 6, s.Count())

	s.AddOrIncrement(ctx, CartLine{ProductID: "a", UnitPrice: decimal.RequireFromString("12.5")})
	require.Len(t, s.Lines(), 2)
	require.Equal(t, 6, s.Lines()[0].Quantity)
}

func TestFileStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewFileStorage(dir)
	require.NoError(t, err)
	ctx := context.Background()

	raw, err := storage.Load(ctx, CartKey)
	require.NoError(t, err)
	require.Nil(t, raw)

	s := New(storage, nil)
	s.AddOrIncrement(ctx, fern())
	s.AddToWishlist(ctx, WishlistEntry{ProductID: "p-monstera", Price: decimal.NewFromInt(599)})

	reopened, err := NewFileStorage(dir)
	require.NoError(t, err)
	restored := New(reopened, nil)
	restored.Load(ctx)
	require.Equal(t, 1, restored.Count())
	require.Len(t, restored.Wishlist(), 1)

	_, err = storage.Load(ctx, "../escape")
	require.Error(t, err)
}

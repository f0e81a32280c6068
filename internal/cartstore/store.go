package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/plantomart/plantomart-backend/pkg/logger"
)

const (
	// MaxSerializedBytes is the largest collection written as-is.
	MaxSerializedBytes = 2 * 1024 * 1024
	// TrimTo is how many of the most recent entries survive an oversized save.
	TrimTo = 10
)

var errTooLarge = errors.New("collection too large to persist")

// Store is the shopper-local cart and wishlist. Memory is authoritative: storage failures
// are logged and never surface to callers.
type Store struct {
	storage  Storage
	logg     *logger.Logger
	maxBytes int

	mu       sync.Mutex
	cart     []CartLine
	wishlist []WishlistEntry

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

type Option func(*Store)

// WithMaxBytes overrides the serialized size limit.
func WithMaxBytes(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func New(storage Storage, logg *logger.Logger, opts ...Option) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Store{
		storage:   storage,
		logg:      logg,
		maxBytes:  MaxSerializedBytes,
		listeners: map[int]Listener{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces both collections with what storage holds. Malformed data is logged and
// the collection starts empty.
func (s *Store) Load(ctx context.Context) {
	var (
		cart     []CartLine
		wishlist []WishlistEntry
	)
	s.loadInto(ctx, CartKey, &cart)
	s.loadInto(ctx, WishlistKey, &wishlist)

	cart = sanitizeCart(cart)
	wishlist = dedupeWishlist(wishlist)

	s.mu.Lock()
	s.cart = cart
	s.wishlist = wishlist
	s.mu.Unlock()
}

func (s *Store) loadInto(ctx context.Context, key string, dst any) {
	raw, err := s.storage.Load(ctx, key)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "key", key), "failed to read stored collection")
		return
	}
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"key": key, "error": err.Error()}), "stored collection is malformed")
	}
}

// sanitizeCart drops invalid lines and folds repeated products into the first line,
// summing quantities.
func sanitizeCart(lines []CartLine) []CartLine {
	index := make(map[string]int, len(lines))
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity < 1 {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

func dedupeWishlist(entries []WishlistEntry) []WishlistEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]WishlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.ProductID == "" {
			continue
		}
		if _, ok := seen[e.ProductID]; ok {
			continue
		}
		seen[e.ProductID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// AddOrIncrement bumps the quantity of an existing line by one or appends the item with
// quantity 1.
func (s *Store) AddOrIncrement(ctx context.Context, item CartLine) {
	if item.ProductID == "" {
		return
	}
	s.mu.Lock()
	s.addOrIncrementLocked(item)
	snapshot := s.persistCartLocked(ctx)
	s.mu.Unlock()
	s.emit(Change{Event: EventCartUpdated, Cart: snapshot})
}

func (s *Store) addOrIncrementLocked(item CartLine) {
	for i := range s.cart {
		if s.cart[i].ProductID == item.ProductID {
			s.cart[i].Quantity++
			return
		}
	}
	item.Quantity = 1
	s.cart = append(s.cart, item)
}

// SetQuantity replaces a line's quantity. Non-positive n and unknown products are
// ignored and emit nothing.
func (s *Store) SetQuantity(ctx context.Context, productID string, n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	found := false
	for i := range s.cart {
		if s.cart[i].ProductID == productID {
			s.cart[i].Quantity = n
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return
	}
	snapshot := s.persistCartLocked(ctx)
	s.mu.Unlock()
	s.emit(Change{Event: EventCartUpdated, Cart: snapshot})
}

// Remove drops the line for productID. Removing an absent product still persists and
// notifies.
func (s *Store) Remove(ctx context.Context, productID string) {
	s.mu.Lock()
	kept := s.cart[:0:0]
	for _, l := range s.cart {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	s.cart = kept
	snapshot := s.persistCartLocked(ctx)
	s.mu.Unlock()
	s.emit(Change{Event: EventCartUpdated, Cart: snapshot})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.cart = nil
	snapshot := s.persistCartLocked(ctx)
	s.mu.Unlock()
	s.emit(Change{Event: EventCartUpdated, Cart: snapshot})
}

// AddToWishlist is a no-op when the product is already saved.
func (s *Store) AddToWishlist(ctx context.Context, entry WishlistEntry) {
	if entry.ProductID == "" {
		return
	}
	s.mu.Lock()
	for _, e := range s.wishlist {
		if e.ProductID == entry.ProductID {
			s.mu.Unlock()
			return
		}
	}
	s.wishlist = append(s.wishlist, entry)
	snapshot := s.persistWishlistLocked(ctx)
	s.mu.Unlock()
	s.emit(Change{Event: EventWishlistUpdated, Wishlist: snapshot})
}

func (s *Store) RemoveFromWishlist(ctx context.Context, productID string) {
	s.mu.Lock()
	kept := s.wishlist[:0:0]
	for _, e := range s.wishlist {
		if e.ProductID != productID {
			kept = append(kept, e)
		}
	}
	s.wishlist = kept
	snapshot := s.persistWishlistLocked(ctx)
	s.mu.Unlock()
	s.emit(Change{Event: EventWishlistUpdated, Wishlist: snapshot})
}

// MoveWishlistItemToCart adds the saved product to the cart. The wishlist entry stays.
// It reports false when the product is not on the wishlist.
func (s *Store) MoveWishlistItemToCart(ctx context.Context, productID string) bool {
	s.mu.Lock()
	var entry *WishlistEntry
	for i := range s.wishlist {
		if s.wishlist[i].ProductID == productID {
			e := s.wishlist[i]
			entry = &e
			break
		}
	}
	if entry == nil {
		s.mu.Unlock()
		return false
	}
	s.addOrIncrementLocked(CartLine{
		ProductID:     entry.ProductID,
		VendorID:      entry.VendorID,
		Title:         entry.Title,
		UnitPrice:     entry.Price,
		DiscountPrice: entry.DiscountPrice,
	})
	snapshot := s.persistCartLocked(ctx)
	s.mu.Unlock()
	s.emit(Change{Event: EventCartUpdated, Cart: snapshot})
	return true
}

func (s *Store) Lines() []CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CartLine(nil), s.cart...)
}

func (s *Store) Wishlist() []WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WishlistEntry(nil), s.wishlist...)
}

// Count is the total quantity across lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.cart {
		n += l.Quantity
	}
	return n
}

// Subtotal sums effective price times quantity, rounded to paise per line.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, l := range s.cart {
		total = total.Add(l.EffectivePrice().Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2))
	}
	return total
}

// Subscribe registers fn for change notifications and returns its unsubscribe func.
func (s *Store) Subscribe(fn Listener) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

// emit runs listeners outside the state lock so they may read the store.
func (s *Store) emit(change Change) {
	s.lmu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}

func (s *Store) persistCartLocked(ctx context.Context) []CartLine {
	snapshot := append([]CartLine(nil), s.cart...)
	persist(ctx, s, CartKey, snapshot)
	return snapshot
}

func (s *Store) persistWishlistLocked(ctx context.Context) []WishlistEntry {
	snapshot := append([]WishlistEntry(nil), s.wishlist...)
	persist(ctx, s, WishlistKey, snapshot)
	return snapshot
}

// persist writes items under key. Oversized collections are cut to the TrimTo most
// recent entries before writing; any failure leaves storage as it was.
func persist[T any](ctx context.Context, s *Store, key string, items []T) {
	logCtx := s.logg.WithField(ctx, "key", key)
	data, err := encode(items, s.maxBytes)
	if errors.Is(err, errTooLarge) && len(items) > TrimTo {
		s.logg.Warn(logCtx, "collection exceeds size limit, keeping most recent entries")
		data, err = encode(items[len(items)-TrimTo:], s.maxBytes)
	}
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "collection not persisted")
		return
	}
	if err := s.storage.Save(ctx, key, data); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "collection not persisted")
	}
}

func encode[T any](items []T, maxBytes int) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	if len(data) > maxBytes {
		return nil, errTooLarge
	}
	return data, nil
}

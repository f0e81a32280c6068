package cartstore

import "github.com/shopspring/decimal"

const (
	CartKey     = "plantomartCart"
	WishlistKey = "plantomartWishlist"
)

// Event names the collection a change notification refers to.
type Event string

const (
	EventCartUpdated     Event = "cartUpdated"
	EventWishlistUpdated Event = "wishlistUpdated"
)

// CartLine is one product in the shopper's cart. Quantity is always at least 1.
type CartLine struct {
	ProductID     string           `json:"productId"`
	VendorID      string           `json:"vendorId,omitempty"`
	Title         string           `json:"title"`
	UnitPrice     decimal.Decimal  `json:"unitPrice"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
	Quantity      int              `json:"quantity"`
}

// EffectivePrice is the discount price when present, otherwise the unit price.
func (l CartLine) EffectivePrice() decimal.Decimal {
	if l.DiscountPrice != nil {
		return *l.DiscountPrice
	}
	return l.UnitPrice
}

// WishlistEntry is a saved product. Entries are unique by ProductID.
type WishlistEntry struct {
	ProductID     string           `json:"productId"`
	VendorID      string           `json:"vendorId,omitempty"`
	Title         string           `json:"title"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
}

// Change is delivered to subscribers after a mutation. Only the collection named by
// Event is populated.
type Change struct {
	Event    Event
	Cart     []CartLine
	Wishlist []WishlistEntry
}

type Listener func(Change)

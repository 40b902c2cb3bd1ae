package order

import "strings"

// CartEntry is a product and the quantity the customer wants.
type CartEntry struct {
	ProductID string
	Quantity  int
}

// Cart is an immutable set of cart entries, one per product.
type Cart struct {
	entries []CartEntry
}

// NewCart builds a Cart, merging entries that reference the same product.
// Entries keep the order in which each product first appears.
func NewCart(entries ...CartEntry) (Cart, error) {
	merged := make([]CartEntry, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		id := strings.TrimSpace(e.ProductID)
		if id == "" {
			return Cart{}, &ValidationError{Field: "product_id", Reason: "is required"}
		}
		if e.Quantity <= 0 {
			return Cart{}, &InvalidQuantityError{ProductID: id}
		}
		if i, ok := index[id]; ok {
			merged[i].Quantity += e.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, CartEntry{ProductID: id, Quantity: e.Quantity})
	}
	return Cart{entries: merged}, nil
}

// Entries returns a copy of the cart's entries.
func (c Cart) Entries() []CartEntry {
	out := make([]CartEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of distinct products in the cart.
func (c Cart) Len() int { return len(c.entries) }

// Empty reports whether the cart has no entries.
func (c Cart) Empty() bool { return len(c.entries) == 0 }

// ProductIDs returns the distinct product ids in the cart.
func (c Cart) ProductIDs() []string {
	ids := make([]string, len(c.entries))
	for i, e := range c.entries {
		ids[i] = e.ProductID
	}
	return ids
}

package domain

import (
	"fmt"

	"github.com/martincharlesFajIT/fajtradingllc/internal/catalog"
)

const (
	// VATRateBasisPoints is the fixed 5% VAT applied to the subtotal.
	VATRateBasisPoints = 500

	// DefaultVariantTitle is the sentinel the catalog uses for products with
	// a single, unnamed variant. Such items carry no variant label.
	DefaultVariantTitle = "Default Title"

	// PlaceholderImageURL is used when the product has no image.
	PlaceholderImageURL = "https://via.placeholder.com/150"
)

// LineItem is one purchasable product+variant combination in the cart.
// Display fields are captured at add-time and never re-fetched. The JSON
// field names are the persisted storage layout; do not rename them.
type LineItem struct {
	ID           string `json:"id"`
	ProductID    string `json:"productId"`
	VariantID    string `json:"variantId"`
	Name         string `json:"name"`
	Image        string `json:"image"`
	UnitPrice    int64  `json:"unitPrice"`
	Currency     string `json:"currency"`
	Quantity     int    `json:"quantity"`
	VariantLabel string `json:"variantLabel,omitempty"`
	InStock      bool   `json:"inStock"`
}

// LineItemID derives the uniqueness key for a product+variant combination.
func LineItemID(productID, variantID string) string {
	return productID + "_" + variantID
}

// NewLineItem captures a catalog snapshot into a cart line item.
func NewLineItem(p catalog.Product, v catalog.Variant, quantity int) (LineItem, error) {
	if quantity < 1 {
		return LineItem{}, fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}

	unitPrice, err := ParseAmount(v.Price.Amount)
	if err != nil {
		return LineItem{}, err
	}

	image := p.PrimaryImageURL()
	if image == "" {
		image = PlaceholderImageURL
	}

	label := v.Title
	if label == DefaultVariantTitle {
		label = ""
	}

	return LineItem{
		ID:           LineItemID(p.ID, v.ID),
		ProductID:    p.ID,
		VariantID:    v.ID,
		Name:         p.Title,
		Image:        image,
		UnitPrice:    unitPrice,
		Currency:     v.Price.CurrencyCode,
		Quantity:     quantity,
		VariantLabel: label,
		InStock:      v.AvailableForSale,
	}, nil
}

// Cart is the aggregate of line items, insertion order preserved. Totals are
// always derived from the items, never stored.
type Cart struct {
	Items []LineItem `json:"items"`
}

// Count returns the sum of all item quantities.
func (c *Cart) Count() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Subtotal returns the sum of unit price times quantity, in minor units.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// VAT returns the 5% tax on the subtotal, rounded half up.
func (c *Cart) VAT() int64 {
	return (c.Subtotal()*VATRateBasisPoints + 5000) / 10000
}

// Total returns subtotal plus VAT.
func (c *Cart) Total() int64 {
	return c.Subtotal() + c.VAT()
}

// Currency returns the currency of the items, or "" for an empty cart. All
// items in practice share the storefront's currency.
func (c *Cart) Currency() string {
	if len(c.Items) == 0 {
		return ""
	}
	return c.Items[0].Currency
}

// FindIndex returns the position of the line item with the given id, or -1.
func (c *Cart) FindIndex(id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// Package catalog defines the product shapes the storefront catalog hands to
// the cart when an item is added. The cart never fetches catalog data itself;
// these are pure input types mirroring the storefront API.
package catalog

// Product is a catalog product snapshot.
type Product struct {
	ID       string    `json:"id" validate:"required"`
	Title    string    `json:"title" validate:"required"`
	Images   []Image   `json:"images"`
	Variants []Variant `json:"variants" validate:"required,min=1,dive"`
}

// Image is a product image reference.
type Image struct {
	URL string `json:"url"`
}

// Variant is one purchasable variant of a product.
type Variant struct {
	ID               string `json:"id" validate:"required"`
	Title            string `json:"title"`
	Price            Price  `json:"price"`
	AvailableForSale bool   `json:"availableForSale"`
}

// Price is a decimal amount with its currency, as the storefront API
// serializes money.
type Price struct {
	Amount       string `json:"amount" validate:"required"`
	CurrencyCode string `json:"currencyCode" validate:"required"`
}

// Variant returns the variant at the given index, reporting whether the
// index is in range.
func (p Product) Variant(i int) (Variant, bool) {
	if i < 0 || i >= len(p.Variants) {
		return Variant{}, false
	}
	return p.Variants[i], true
}

// PrimaryImageURL returns the first image URL, or "" when the product has
// no images.
func (p Product) PrimaryImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

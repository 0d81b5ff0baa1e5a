package listing

import (
	"strings"
	"time"
)

// RawListing is one scraped listing as the crawler hands it over: display
// attributes and price text exactly as shown on the retailer page.
type RawListing struct {
	ProductCode string            `json:"product_code"`
	Attributes  map[string]string `json:"attributes"`
	Price       string            `json:"price"`
	FullPrice   *string           `json:"full_price,omitempty"`
	SourceURL   string            `json:"source_url" validate:"omitempty,url"`
	ObservedAt  time.Time         `json:"observed_at"`
}

// Code returns the product code, falling back to the UPC attribute when the
// crawler did not set one explicitly.
func (l *RawListing) Code() string {
	if code := strings.TrimSpace(l.ProductCode); code != "" {
		return code
	}
	return AttributeUPC(l.Attributes)
}

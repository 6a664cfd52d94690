package internal

import "time"

// Sentinel values rendered for fields the matching backend could not fill.
const (
	SentinelNotFound = "Not Found"
	SentinelUnknown  = "Unknown"
)

// CategoryTag is one level of a product's category breadcrumb. Lower level
// means more specific.
type CategoryTag struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// Product is one row extracted from a bid spreadsheet sheet. Name is the only
// required field; everything else is optional and nil when the extraction
// backend did not report it.
type Product struct {
	ID            *string       `json:"id,omitempty"`
	Name          string        `json:"item_name"`
	Specification *string       `json:"item_specification,omitempty"`
	Unit          *string       `json:"unit,omitempty"`
	Quantity      *string       `json:"quantity,omitempty"`
	Categories    []CategoryTag `json:"categories,omitempty"`
}

// AnalyzedProduct is a Product merged with the matching backend's verdict.
// Absent matches carry the sentinels instead of empty strings.
type AnalyzedProduct struct {
	Product
	Price    string `json:"price"`
	Provider string `json:"provider"`
	Origin   string `json:"origin"`
	Type     string `json:"type"`
}

// SheetSet holds extracted rows grouped by sheet, preserving the sheet order
// reported by the extraction backend.
type SheetSet struct {
	Order []string
	Rows  map[string][]Product
}

func (s SheetSet) Empty() bool { return len(s.Order) == 0 }

// ReferenceFile is an uploaded provider spreadsheet. Data is retained so the
// whole batch can be resent to the provider-pricing endpoint.
type ReferenceFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploadedAt"`
	Data       []byte    `json:"-"`
}

// ProviderPricingItem is one priced line of a provider sheet in the canonical
// dataset shape.
type ProviderPricingItem struct {
	ItemName          string   `json:"item_name"`
	ItemSpecification *string  `json:"item_specification"`
	TotalAmount       *float64 `json:"total_amount"`
	UnitPrice         *float64 `json:"unit_price"`
	QtyItems          *float64 `json:"qty_items"`
	Brand             *string  `json:"brand"`
	Origin            *string  `json:"origin"`
}

type ProviderPricing struct {
	ProviderName string                `json:"provider_name"`
	Items        []ProviderPricingItem `json:"items"`
}

// ProviderPricingSheet is one entry of the canonical provider pricing
// dataset. Every variant response shape of the provider endpoint is folded
// into this form exactly once, at the client boundary.
type ProviderPricingSheet struct {
	SheetName       string          `json:"sheet_name"`
	FileName        string          `json:"file_name"`
	ProviderPricing ProviderPricing `json:"provider_pricing"`
}

// MatchedItem is one entry of the matching response, with the price already
// rendered as a display string.
type MatchedItem struct {
	ItemName string  `json:"item_name"`
	Price    *string `json:"price"`
	Provider *string `json:"provider"`
	Origin   *string `json:"origin"`
	Type     *string `json:"type"`
}

type MatchResponse struct {
	Items  []MatchedItem `json:"items"`
	CSVURL *string       `json:"csv_url,omitempty"`
}

package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"

	"bidmatch/internal"
)

// The provider-pricing endpoint has been observed to answer in three
// incompatible shapes: a bare array of sheet entries, an object wrapping the
// same array under "data", and an object nesting a map keyed by sheet name
// under "data.mappedProducts". NormalizeProviderPricing detects which
// variant arrived and folds all of them into the canonical
// []ProviderPricingSheet. Downstream code never sees the raw union.
func NormalizeProviderPricing(body []byte) ([]internal.ProviderPricingSheet, error) {
	trim := bytes.TrimSpace(body)
	if len(trim) == 0 {
		return nil, errors.New("empty response body")
	}

	switch trim[0] {
	case '[':
		var entries []map[string]any
		if err := json.Unmarshal(trim, &entries); err != nil {
			return nil, err
		}
		return sheetsFromEntries(entries), nil
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(trim, &obj); err != nil {
			return nil, err
		}
		if data, ok := obj["data"]; ok {
			switch d := data.(type) {
			case []any:
				return sheetsFromList(d), nil
			case map[string]any:
				if mapped, ok := d["mappedProducts"].(map[string]any); ok {
					return sheetsFromMapped(mapped), nil
				}
			}
			return nil, errors.New("unrecognized data field shape")
		}
		if mapped, ok := obj["mappedProducts"].(map[string]any); ok {
			return sheetsFromMapped(mapped), nil
		}
		return nil, errors.New("unrecognized provider pricing object")
	default:
		return nil, errors.New("provider pricing response is neither array nor object")
	}
}

func sheetsFromEntries(entries []map[string]any) []internal.ProviderPricingSheet {
	out := make([]internal.ProviderPricingSheet, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toPricingSheet(entry, ""))
	}
	return out
}

func sheetsFromList(list []any) []internal.ProviderPricingSheet {
	out := make([]internal.ProviderPricingSheet, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, toPricingSheet(m, ""))
		}
	}
	return out
}

// sheetsFromMapped flattens the map-keyed-by-sheet variant. Map iteration
// order is random, so keys are sorted to keep the canonical dataset stable.
func sheetsFromMapped(mapped map[string]any) []internal.ProviderPricingSheet {
	keys := make([]string, 0, len(mapped))
	for k := range mapped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]internal.ProviderPricingSheet, 0, len(keys))
	for _, key := range keys {
		switch v := mapped[key].(type) {
		case map[string]any:
			out = append(out, toPricingSheet(v, key))
		case []any:
			out = append(out, internal.ProviderPricingSheet{
				SheetName:       key,
				ProviderPricing: internal.ProviderPricing{Items: itemsFromAny(v)},
			})
		}
	}
	return out
}

func toPricingSheet(m map[string]any, fallbackSheet string) internal.ProviderPricingSheet {
	entry := internal.ProviderPricingSheet{
		SheetName: toString(m["sheet_name"]),
		FileName:  toString(m["file_name"]),
	}
	if entry.SheetName == "" {
		entry.SheetName = fallbackSheet
	}

	if pp, ok := m["provider_pricing"].(map[string]any); ok {
		entry.ProviderPricing.ProviderName = toString(pp["provider_name"])
		entry.ProviderPricing.Items = itemsFromAny(pp["items"])
		return entry
	}

	// Flat variant: provider fields live directly on the entry.
	entry.ProviderPricing.ProviderName = toString(m["provider_name"])
	entry.ProviderPricing.Items = itemsFromAny(m["items"])
	return entry
}

func itemsFromAny(v any) []internal.ProviderPricingItem {
	arr, ok := v.([]any)
	if !ok {
		return []internal.ProviderPricingItem{}
	}
	out := make([]internal.ProviderPricingItem, 0, len(arr))
	for _, raw := range arr {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := toString(m["item_name"])
		if name == "" {
			continue
		}
		out = append(out, internal.ProviderPricingItem{
			ItemName:          name,
			ItemSpecification: toStringPtr(m["item_specification"]),
			TotalAmount:       toFloatPtr(m["total_amount"]),
			UnitPrice:         toFloatPtr(m["unit_price"]),
			QtyItems:          toFloatPtr(m["qty_items"]),
			Brand:             toStringPtr(m["brand"]),
			Origin:            toStringPtr(m["origin"]),
		})
	}
	return out
}

package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"bidmatch/internal"
)

// decodeSheetSet parses the extraction response, an object keyed by sheet
// name. encoding/json maps drop key order, and sheet order must stay exactly
// as the server enumerated it, so the object is walked token by token.
func decodeSheetSet(data []byte) (internal.SheetSet, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return internal.SheetSet{}, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return internal.SheetSet{}, errors.New("expected a JSON object keyed by sheet name")
	}

	set := internal.SheetSet{Rows: map[string][]internal.Product{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return internal.SheetSet{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return internal.SheetSet{}, fmt.Errorf("unexpected sheet key token %v", keyTok)
		}

		var rawRows []map[string]any
		if err := dec.Decode(&rawRows); err != nil {
			return internal.SheetSet{}, fmt.Errorf("sheet %q: %v", key, err)
		}

		rows := make([]internal.Product, 0, len(rawRows))
		for _, raw := range rawRows {
			if p, ok := toProduct(raw); ok {
				rows = append(rows, p)
			}
		}
		set.Order = append(set.Order, key)
		set.Rows[key] = rows
	}

	if _, err := dec.Token(); err != nil {
		return internal.SheetSet{}, err
	}
	return set, nil
}

// toProduct converts one raw extraction row. Rows without an item name are
// dropped, matching the backend contract that name is the only required
// field.
func toProduct(raw map[string]any) (internal.Product, bool) {
	name := toString(raw["item_name"])
	if name == "" {
		name = toString(raw["name"])
	}
	if name == "" {
		return internal.Product{}, false
	}

	p := internal.Product{Name: name}
	p.ID = toNumberString(raw["id"])
	p.Specification = toStringPtr(raw["item_specification"])
	p.Unit = toStringPtr(raw["unit"])
	p.Quantity = toNumberString(raw["quantity"])
	p.Categories = toCategoryTags(raw["categories"])
	return p, true
}

func toCategoryTags(v any) []internal.CategoryTag {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]internal.CategoryTag, 0, len(arr))
	for _, entry := range arr {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := toString(m["name"])
		if name == "" {
			continue
		}
		level := 0
		if f := toFloatPtr(m["level"]); f != nil {
			level = int(*f)
		}
		out = append(out, internal.CategoryTag{Name: name, Level: level})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

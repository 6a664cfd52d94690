package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"bidmatch/internal"
	"bidmatch/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	cfg, _ := config.Load()
	cfg.PricingAPIBaseURL = "https://example.test"
	cfg.PricingRateLimitRPS = 1000
	cfg.PricingMaxRetries = 3

	c := NewClient(cfg, zerolog.Nop())
	c.httpClient = &http.Client{Transport: rt}
	return c
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestExtractItemsPreservesSheetOrderAndSelectsFields(t *testing.T) {
	c := testClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/bid/extract_items_from_excel" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Fatalf("unexpected content type %s", r.Header.Get("Content-Type"))
		}
		body := `{
			"Zebra": [{"item_name":"Widget","quantity":3,"unit":"pcs","categories":[{"name":"Tools","level":2},{"name":"Hand Tools","level":1}]}],
			"Alpha": [],
			"Middle": [{"item_name":""},{"item_name":"Gadget","id":7}]
		}`
		return jsonResponse(http.StatusOK, body), nil
	})

	set, err := c.ExtractItems(context.Background(), "bid.xlsx", strings.NewReader("fake"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Zebra", "Alpha", "Middle"}
	if len(set.Order) != 3 {
		t.Fatalf("order = %v", set.Order)
	}
	for i, name := range want {
		if set.Order[i] != name {
			t.Fatalf("order[%d] = %s, want %s (server order must be preserved)", i, set.Order[i], name)
		}
	}
	zebra := set.Rows["Zebra"]
	if len(zebra) != 1 || zebra[0].Name != "Widget" {
		t.Fatalf("zebra rows = %+v", zebra)
	}
	if zebra[0].Quantity == nil || *zebra[0].Quantity != "3" {
		t.Fatalf("quantity = %v", zebra[0].Quantity)
	}
	if len(zebra[0].Categories) != 2 {
		t.Fatalf("categories = %+v", zebra[0].Categories)
	}
	// Nameless row dropped, numeric id stringified.
	middle := set.Rows["Middle"]
	if len(middle) != 1 || middle[0].ID == nil || *middle[0].ID != "7" {
		t.Fatalf("middle rows = %+v", middle)
	}
}

func TestExtractItemsParseErrorIsDistinct(t *testing.T) {
	c := testClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `["not","an","object"]`), nil
	})
	_, err := c.ExtractItems(context.Background(), "bid.xlsx", strings.NewReader("fake"))
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestExtractItemsStatusErrorIsNotParseError(t *testing.T) {
	c := testClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `oops`), nil
	})
	_, err := c.ExtractItems(context.Background(), "bid.xlsx", strings.NewReader("fake"))
	if err == nil || errors.Is(err, ErrParse) {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestPostRetriesRetryableStatuses(t *testing.T) {
	attempt := 0
	c := testClient(t, func(r *http.Request) (*http.Response, error) {
		attempt++
		if attempt < 3 {
			return jsonResponse(http.StatusServiceUnavailable, `busy`), nil
		}
		return jsonResponse(http.StatusOK, `{"Sheet1":[]}`), nil
	})
	set, err := c.ExtractItems(context.Background(), "bid.xlsx", strings.NewReader("fake"))
	if err != nil {
		t.Fatal(err)
	}
	if attempt != 3 {
		t.Fatalf("attempts = %d", attempt)
	}
	if len(set.Order) != 1 || set.Order[0] != "Sheet1" {
		t.Fatalf("order = %v", set.Order)
	}
}

func TestExtractProviderPricingSendsRepeatedFilesField(t *testing.T) {
	c := testClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/provider/extract_provider_pricing_from_excel_folder_json" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		if got := len(r.MultipartForm.File["files"]); got != 2 {
			t.Fatalf("files parts = %d, want 2", got)
		}
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	files := []internal.ReferenceFile{
		{ID: "1", Name: "a.xlsx", Data: []byte("a")},
		{ID: "2", Name: "b.xls", Data: []byte("b")},
	}
	if _, err := c.ExtractProviderPricing(context.Background(), files); err != nil {
		t.Fatal(err)
	}
}

func TestMapItemsPayloadAndResponse(t *testing.T) {
	spec := "steel"
	c := testClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/bid/map_items_to_provider_pricing_json" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		blob, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(blob, &payload); err != nil {
			t.Fatal(err)
		}
		items, _ := payload["item_list"].([]any)
		if len(items) != 2 {
			t.Fatalf("item_list = %v", items)
		}
		first, _ := items[0].(map[string]any)
		if first["item_name"] != "Widget" || first["item_specification"] != "steel" {
			t.Fatalf("first item = %v", first)
		}
		if v, present := first["unit"]; !present || v != nil {
			t.Fatalf("absent unit must be serialized as null, got %v", v)
		}
		if _, ok := payload["provider_pricing_detail_list"]; !ok {
			t.Fatal("missing provider_pricing_detail_list")
		}
		return jsonResponse(http.StatusOK, `{"items":[{"item_name":"Widget","unit_price":10,"provider":"Acme","origin":"USA"}],"csv_url":"/files/out.csv"}`), nil
	})

	items := []internal.Product{
		{Name: "Widget", Specification: &spec},
		{Name: "Gadget"},
	}
	resp, err := c.MapItems(context.Background(), items, []internal.ProviderPricingSheet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("items = %+v", resp.Items)
	}
	got := resp.Items[0]
	if got.Price == nil || *got.Price != "10" {
		t.Fatalf("price = %v, want \"10\"", got.Price)
	}
	if got.Provider == nil || *got.Provider != "Acme" {
		t.Fatalf("provider = %v", got.Provider)
	}
	if resp.CSVURL == nil || *resp.CSVURL != "/files/out.csv" {
		t.Fatalf("csv_url = %v", resp.CSVURL)
	}
}

func TestMapItemsParseError(t *testing.T) {
	c := testClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `<html>gateway timeout</html>`), nil
	})
	_, err := c.MapItems(context.Background(), []internal.Product{{Name: "Widget"}}, nil)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

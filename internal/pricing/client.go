// Package pricing is the HTTP client for the remote bid/pricing backend.
// Spreadsheet parsing and item matching happen entirely server-side; this
// client only moves files and JSON, normalizes the backend's loosely typed
// responses, and distinguishes parse failures from transport failures.
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bidmatch/internal"
	"bidmatch/internal/config"
)

// ErrParse marks a response body that could not be decoded into the expected
// structure. Callers use errors.Is to report it distinctly from network or
// status errors, so a contract change is distinguishable from an outage.
var ErrParse = errors.New("failed to parse server response")

const (
	extractItemsPath    = "/bid/extract_items_from_excel"
	providerPricingPath = "/provider/extract_provider_pricing_from_excel_folder_json"
	mapItemsPath        = "/bid/map_items_to_provider_pricing_json"
)

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	log        zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.PricingTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.PricingRateLimitRPS),
		log:        log,
	}
}

// BaseURL returns the scheme://host prefix used for backend-relative
// download links such as csv_url.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.cfg.PricingAPIBaseURL, "/")
}

// ExtractItems uploads one bid spreadsheet and returns the extracted rows
// grouped by sheet, in the server's sheet order.
func (c *Client) ExtractItems(ctx context.Context, fileName string, file io.Reader) (internal.SheetSet, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return internal.SheetSet{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return internal.SheetSet{}, err
	}
	if err := mw.Close(); err != nil {
		return internal.SheetSet{}, err
	}

	respBody, err := c.post(ctx, extractItemsPath, mw.FormDataContentType(), body.Bytes())
	if err != nil {
		return internal.SheetSet{}, err
	}
	set, err := decodeSheetSet(respBody)
	if err != nil {
		return internal.SheetSet{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return set, nil
}

// ExtractProviderPricing resends the whole reference batch and normalizes
// whichever response variant comes back into the canonical dataset.
func (c *Client) ExtractProviderPricing(ctx context.Context, files []internal.ReferenceFile) ([]internal.ProviderPricingSheet, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", filepath.Base(f.Name))
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	respBody, err := c.post(ctx, providerPricingPath, mw.FormDataContentType(), body.Bytes())
	if err != nil {
		return nil, err
	}
	dataset, err := NormalizeProviderPricing(respBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return dataset, nil
}

type itemPayload struct {
	ItemName          string  `json:"item_name"`
	ItemSpecification *string `json:"item_specification"`
	Unit              *string `json:"unit"`
	Quantity          *string `json:"quantity"`
}

type mapRequest struct {
	ItemList                  []itemPayload                   `json:"item_list"`
	ProviderPricingDetailList []internal.ProviderPricingSheet `json:"provider_pricing_detail_list"`
}

// MapItems submits the current rows plus the canonical dataset for matching.
// Absent optional row fields go out as JSON null.
func (c *Client) MapItems(ctx context.Context, items []internal.Product, dataset []internal.ProviderPricingSheet) (*internal.MatchResponse, error) {
	payload := mapRequest{
		ItemList:                  make([]itemPayload, 0, len(items)),
		ProviderPricingDetailList: dataset,
	}
	for _, item := range items {
		payload.ItemList = append(payload.ItemList, itemPayload{
			ItemName:          item.Name,
			ItemSpecification: item.Specification,
			Unit:              item.Unit,
			Quantity:          item.Quantity,
		})
	}

	blob, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	respBody, err := c.post(ctx, mapItemsPath, "application/json", blob)
	if err != nil {
		return nil, err
	}
	resp, err := decodeMatchResponse(respBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return resp, nil
}

func decodeMatchResponse(body []byte) (*internal.MatchResponse, error) {
	var raw struct {
		Items  []map[string]any `json:"items"`
		CSVURL *string          `json:"csv_url"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	out := &internal.MatchResponse{
		Items:  make([]internal.MatchedItem, 0, len(raw.Items)),
		CSVURL: raw.CSVURL,
	}
	for _, m := range raw.Items {
		name := toString(m["item_name"])
		if name == "" {
			continue
		}
		out.Items = append(out.Items, internal.MatchedItem{
			ItemName: name,
			Price:    toNumberString(m["unit_price"]),
			Provider: toStringPtr(m["provider"]),
			Origin:   toStringPtr(m["origin"]),
			Type:     toStringPtr(m["type"]),
		})
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, payload []byte) ([]byte, error) {
	u := c.BaseURL() + path
	attempts := c.cfg.PricingMaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < attempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Dur("backoff", backoff).Msg("retrying pricing api call")
				time.Sleep(backoff)
				lastErr = fmt.Errorf("pricing api status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("pricing api error: status=%d body=%s", resp.StatusCode, truncate(string(body), 512))
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("pricing api request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

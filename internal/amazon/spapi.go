package amazon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"resellhub-api/internal/model"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
)

// Feed types understood by the submission endpoint.
const (
	feedTypePrice    = "POST_PRODUCT_PRICING_DATA"
	feedTypeQuantity = "POST_INVENTORY_AVAILABILITY_DATA"
	feedTypeCombined = "POST_FLAT_FILE_PRICEANDQUANTITYONLY_UPDATE_DATA"
)

// SPAPIConfig holds settings for the real Amazon client.
type SPAPIConfig struct {
	BaseURL       string
	AccessToken   string
	SellerID      string
	MarketplaceID string
	HTTPTimeout   time.Duration
	MaxRetries    uint
}

// SPAPIClient talks to Amazon's Feeds and Product Pricing APIs over HTTP.
// 4xx responses (other than 429) are classified as fatal; 429, 5xx and
// network errors are transient and retried with exponential backoff before
// being surfaced to the caller as transient.
type SPAPIClient struct {
	cfg    SPAPIConfig
	client *http.Client
}

// NewSPAPIClient creates a new Amazon SP-API client.
func NewSPAPIClient(cfg SPAPIConfig) *SPAPIClient {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &SPAPIClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// feedMessage is one listing line in a feed submission.
type feedMessage struct {
	SKU      string `json:"sku"`
	ASIN     string `json:"asin"`
	Price    string `json:"price,omitempty"`
	Quantity *int   `json:"quantity,omitempty"`
}

type submitFeedRequest struct {
	FeedType       string        `json:"feedType"`
	MarketplaceIDs []string      `json:"marketplaceIds"`
	SellerID       string        `json:"sellerId"`
	Messages       []feedMessage `json:"messages"`
}

type submitFeedResponse struct {
	FeedID string `json:"feedId"`
}

// SubmitPriceFeed submits price changes and returns the feed document id.
func (c *SPAPIClient) SubmitPriceFeed(ctx context.Context, entries []model.AggregatedEntry) (string, error) {
	return c.submitFeed(ctx, feedTypePrice, buildMessages(entries, true, false))
}

// SubmitQuantityFeed submits quantity changes and returns the feed document id.
func (c *SPAPIClient) SubmitQuantityFeed(ctx context.Context, entries []model.AggregatedEntry) (string, error) {
	return c.submitFeed(ctx, feedTypeQuantity, buildMessages(entries, false, true))
}

// SubmitCombinedFeed submits price and quantity in one document (legacy
// single-phase mode).
func (c *SPAPIClient) SubmitCombinedFeed(ctx context.Context, entries []model.AggregatedEntry) (string, error) {
	return c.submitFeed(ctx, feedTypeCombined, buildMessages(entries, true, true))
}

func buildMessages(entries []model.AggregatedEntry, withPrice, withQuantity bool) []feedMessage {
	messages := make([]feedMessage, 0, len(entries))
	for _, entry := range entries {
		msg := feedMessage{ASIN: entry.ASIN}
		if len(entry.Items) > 0 {
			msg.SKU = entry.Items[0].InventoryItemID
		}
		if withPrice {
			msg.Price = entry.Price.StringFixed(2)
		}
		if withQuantity {
			qty := entry.Quantity
			msg.Quantity = &qty
		}
		messages = append(messages, msg)
	}
	return messages
}

func (c *SPAPIClient) submitFeed(ctx context.Context, feedType string, messages []feedMessage) (string, error) {
	req := submitFeedRequest{
		FeedType:       feedType,
		MarketplaceIDs: []string{c.cfg.MarketplaceID},
		SellerID:       c.cfg.SellerID,
		Messages:       messages,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", Fatal("failed to encode feed payload", err)
	}

	var resp submitFeedResponse
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/feeds/2021-06-30/feeds", body, &resp); err != nil {
		return "", err
	}
	if resp.FeedID == "" {
		return "", Fatal("feed submission returned no feed id", nil)
	}
	log.Printf("[SPAPIClient] Submitted %s feed with %d messages, feed_id=%s", feedType, len(messages), resp.FeedID)
	return resp.FeedID, nil
}

type feedStatusResponse struct {
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	Lines            []LineResult     `json:"lines"`
}

// GetFeedStatus reports processing progress for a submitted feed.
func (c *SPAPIClient) GetFeedStatus(ctx context.Context, feedID string) (*FeedResult, error) {
	var resp feedStatusResponse
	url := fmt.Sprintf("%s/feeds/2021-06-30/feeds/%s", c.cfg.BaseURL, feedID)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}
	switch resp.ProcessingStatus {
	case ProcessingInProgress, ProcessingDone, ProcessingFatal:
	default:
		return nil, fmt.Errorf("unexpected processing status %q for feed %s", resp.ProcessingStatus, feedID)
	}
	return &FeedResult{Status: resp.ProcessingStatus, Lines: resp.Lines}, nil
}

type pricingResponse struct {
	ASIN  string `json:"asin"`
	Price string `json:"price"`
}

// GetLivePrice returns the currently live listing price for an ASIN.
func (c *SPAPIClient) GetLivePrice(ctx context.Context, asin string) (decimal.Decimal, error) {
	var resp pricingResponse
	url := fmt.Sprintf("%s/products/pricing/v0/price?MarketplaceId=%s&Asins=%s", c.cfg.BaseURL, c.cfg.MarketplaceID, asin)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse live price %q for %s: %w", resp.Price, asin, err)
	}
	return price, nil
}

// doJSON performs one HTTP call, retrying transient failures. Fatal
// classifications short-circuit the retry loop via backoff.Permanent.
func (c *SPAPIClient) doJSON(ctx context.Context, method, url string, body []byte, out interface{}) error {
	operation := func() (struct{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return struct{}{}, backoff.Permanent(Fatal("failed to build request", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

		resp, err := c.client.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("request to %s failed: %w", url, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil {
				return struct{}{}, nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return struct{}{}, fmt.Errorf("failed to decode response from %s: %w", url, err)
			}
			return struct{}{}, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return struct{}{}, fmt.Errorf("amazon returned %d for %s", resp.StatusCode, url)
		default:
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return struct{}{}, backoff.Permanent(Fatal(
				fmt.Sprintf("amazon rejected request with %d: %s", resp.StatusCode, string(payload)), nil))
		}
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.cfg.MaxRetries),
	)
	return err
}

// Ensure SPAPIClient implements FeedClient
var _ FeedClient = (*SPAPIClient)(nil)

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"solmint/pkg/token"
)

// ActivitySource supplies recent transaction activity for an address. It is
// a best-effort collaborator: the engine treats any failure as an empty
// result, never as a fatal fetch error.
type ActivitySource interface {
	RecentActivity(ctx context.Context, address string, limit int) ([]token.ActivityRecord, error)
}

// ActivityClient queries an enriched transaction-history API
// (Helius-style: GET /v0/addresses/{address}/transactions).
type ActivityClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewActivityClient creates a history client for the given API base URL.
func NewActivityClient(baseURL, apiKey string, log *zap.SugaredLogger) *ActivityClient {
	return &ActivityClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// activityTx mirrors one entry of the enriched transaction response.
type activityTx struct {
	Signature   string      `json:"signature"`
	Timestamp   int64       `json:"timestamp"` // Unix seconds
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Err         interface{} `json:"err"`
}

// RecentActivity fetches the newest transactions for an address, newest
// first. Non-success responses are reported as errors; the caller decides
// whether they are fatal.
func (c *ActivityClient) RecentActivity(ctx context.Context, address string, limit int) ([]token.ActivityRecord, error) {
	endpoint := fmt.Sprintf("%s/v0/addresses/%s/transactions?api-key=%s&limit=%d",
		c.baseURL, url.PathEscape(address), url.QueryEscape(c.apiKey), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build activity request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("activity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("activity API returned status code %d: %s", resp.StatusCode, string(body))
	}

	var txs []activityTx
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		return nil, fmt.Errorf("failed to decode activity response: %w", err)
	}

	records := make([]token.ActivityRecord, 0, len(txs))
	for _, tx := range txs {
		kind := tx.Type
		if kind == "" {
			kind = "UNKNOWN"
		}
		description := tx.Description
		if description == "" {
			description = "Transaction"
		}
		records = append(records, token.ActivityRecord{
			ID:          tx.Signature,
			Timestamp:   time.Unix(tx.Timestamp, 0).UTC(),
			Kind:        kind,
			Description: description,
			Succeeded:   tx.Err == nil,
		})
	}
	return records, nil
}

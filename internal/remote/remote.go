// Package remote pulls the decay-rate override from a remote tuning
// endpoint. The fetch is best effort: any failure leaves the previous
// configuration in place and is never surfaced to the end user.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
)

// DefaultTimeout bounds one fetch so a slow endpoint can never stall the
// decay or event pipeline.
const DefaultTimeout = 3 * time.Second

// decayPayload matches the relay's /config endpoint.
type decayPayload struct {
	DecayPerSec *float64 `json:"decay_per_sec"`
}

// Fetcher retrieves the remote decay rate.
type Fetcher struct {
	url    string
	client *http.Client
}

// NewFetcher creates a fetcher for the given URL. A nil client gets a
// default with DefaultTimeout.
func NewFetcher(url string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Fetcher{url: url, client: client}
}

// Fetch returns the remote decay rate. Transport failures, non-200
// responses, malformed JSON, missing fields, and negative or non-finite
// values are all errors; the caller logs and keeps the previous rate.
func (f *Fetcher) Fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch decay rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch decay rate: status %d", resp.StatusCode)
	}

	var payload decayPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode decay rate: %w", err)
	}
	if payload.DecayPerSec == nil {
		return 0, fmt.Errorf("decay rate missing from payload")
	}

	rate := *payload.DecayPerSec
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, fmt.Errorf("invalid decay rate %v", rate)
	}
	return rate, nil
}

// Package polymarket provides access to the Polymarket Gamma API.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/quantfold/polyalert/internal/logger"
	"github.com/quantfold/polyalert/internal/models"
)

// ClientConfig holds transport tuning knobs.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
	PageSize       int
	MaxEvents      int
}

// Client fetches events from the Gamma API.
type Client struct {
	gammaAPIURL string
	httpClient  *http.Client
	cfg         ClientConfig
}

// NewClient creates a new Gamma API client.
func NewClient(gammaAPIURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 500
	}
	return &Client{
		gammaAPIURL: gammaAPIURL,
		httpClient:  &http.Client{Timeout: timeout},
		cfg:         cfg,
	}
}

// FetchActiveEvents retrieves all active, non-closed events with their
// nested markets, paginating until MaxEvents is reached or the data runs
// out. Results are ordered by 24-hour volume descending. A page failure
// after the first page returns the partial result with a warning; a
// failure on the first page is an error.
func (c *Client) FetchActiveEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	offset := 0

	for len(events) < c.cfg.MaxEvents {
		limit := c.cfg.PageSize
		if remaining := c.cfg.MaxEvents - len(events); remaining < limit {
			limit = remaining
		}

		page, err := c.fetchEventsPage(ctx, limit, offset)
		if err != nil {
			if len(events) == 0 {
				return nil, fmt.Errorf("failed to fetch events: %w", err)
			}
			logger.Warn("Events page fetch failed at offset %d, continuing with %d events: %v",
				offset, len(events), err)
			break
		}
		if len(page) == 0 {
			break
		}

		events = append(events, page...)
		offset += limit

		// Fewer results than requested means the data is exhausted.
		if len(page) < limit {
			break
		}

		// Polite pause between pages.
		select {
		case <-ctx.Done():
			return events, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}

	logger.Info("Fetched %d active events from Gamma API", len(events))
	return events, nil
}

func (c *Client) fetchEventsPage(ctx context.Context, limit, offset int) ([]models.Event, error) {
	u, err := url.Parse(c.gammaAPIURL + "/events")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("order", "volume24hr")
	q.Set("ascending", "false")
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("offset", fmt.Sprintf("%d", offset))
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Response is an array directly, not wrapped.
	var page []models.Event
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return page, nil
}

// doRequest performs a GET with retry on transport errors, rate limiting,
// and server errors.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.cfg.MaxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.RetryDelayBase * time.Duration(i+1)):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

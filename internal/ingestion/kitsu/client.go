package kitsu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultAPIURL = "https://kitsu.io/api/edge"

	contentType = "application/vnd.api+json"

	// Rate limiting
	rateLimit = 2 // requests per second
	rateBurst = 5

	// Retry configuration
	maxRetries   = 5
	initialDelay = 1 * time.Second
	maxDelay     = 32 * time.Second
)

// ErrNotFound is returned when Kitsu or the local store has no such record
var ErrNotFound = errors.New("not found")

// ClientConfig holds client settings
type ClientConfig struct {
	APIURL      string
	AccessToken string
	Logger      *zerolog.Logger // nil discards retry logs

	// Overrides for tests
	HTTPClient   *http.Client
	RateLimiter  *rate.Limiter
	InitialDelay time.Duration
}

// Client handles Kitsu JSON:API requests with rate limiting
type Client struct {
	apiURL       string
	accessToken  string
	httpClient   *http.Client
	rateLimiter  *rate.Limiter
	initialDelay time.Duration
	log          zerolog.Logger
}

// NewClient creates a new Kitsu API client
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		apiURL:       cfg.APIURL,
		accessToken:  cfg.AccessToken,
		httpClient:   cfg.HTTPClient,
		rateLimiter:  cfg.RateLimiter,
		initialDelay: cfg.InitialDelay,
		log:          zerolog.Nop(),
	}

	if cfg.Logger != nil {
		c.log = *cfg.Logger
	}
	if c.apiURL == "" {
		c.apiURL = defaultAPIURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if c.rateLimiter == nil {
		c.rateLimiter = rate.NewLimiter(rate.Limit(rateLimit), rateBurst)
	}
	if c.initialDelay == 0 {
		c.initialDelay = initialDelay
	}

	return c
}

// GetAnime fetches a single anime by Kitsu ID
func (c *Client) GetAnime(ctx context.Context, id int) (*AnimeResponse, error) {
	var result AnimeResponse
	if err := c.doRequest(ctx, http.MethodGet, "/anime/"+strconv.Itoa(id), nil, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch anime %d: %w", id, err)
	}
	return &result, nil
}

// GetLibraryEntries fetches one page of a user's anime library entries
func (c *Client) GetLibraryEntries(ctx context.Context, userID string, offset, limit int) (*LibraryEntriesResponse, error) {
	query := url.Values{}
	query.Set("filter[userId]", userID)
	query.Set("filter[kind]", "anime")
	query.Set("include", "anime")
	query.Set("page[offset]", strconv.Itoa(offset))
	query.Set("page[limit]", strconv.Itoa(limit))

	var result LibraryEntriesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/library-entries", query, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch library entries: %w", err)
	}
	return &result, nil
}

// UpdateLibraryEntry submits changed attributes of an existing library entry
func (c *Client) UpdateLibraryEntry(ctx context.Context, entryID int, update LibraryEntryUpdate) error {
	attrs, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	body := map[string]interface{}{
		"data": Resource{
			ID:         strconv.Itoa(entryID),
			Type:       "libraryEntries",
			Attributes: attrs,
		},
	}

	if err := c.doRequest(ctx, http.MethodPatch, "/library-entries/"+strconv.Itoa(entryID), nil, body, nil); err != nil {
		return fmt.Errorf("failed to update library entry %d: %w", entryID, err)
	}
	return nil
}

// doRequest performs a request with rate limiting and retry logic
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload interface{}, result interface{}) error {
	var bodyJSON []byte
	if payload != nil {
		var err error
		bodyJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	endpoint := c.apiURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	delay := c.initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		var body io.Reader
		if bodyJSON != nil {
			body = bytes.NewReader(bodyJSON)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", contentType)
		if bodyJSON != nil {
			req.Header.Set("Content-Type", contentType)
		}
		if c.accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.accessToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRetries && ctx.Err() == nil {
				c.log.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("Request failed, retrying")
				if err := sleepContext(ctx, delay); err != nil {
					return err
				}
				delay = minDuration(delay*2, maxDelay)
				continue
			}
			return fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))

			if shouldRetry(resp.StatusCode) && attempt < maxRetries {
				if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
					if seconds, err := strconv.Atoi(retryAfter); err == nil {
						delay = time.Duration(seconds) * time.Second
					}
				}

				c.log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Dur("delay", delay).Msg("HTTP error, retrying")
				if err := sleepContext(ctx, delay); err != nil {
					return err
				}
				delay = minDuration(delay*2, maxDelay)
				continue
			}

			return lastErr
		}

		if result == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, lastErr)
}

// shouldRetry determines if an HTTP status code warrants a retry
func shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || // 429
		statusCode >= 500
}

// minDuration returns the smaller of two durations
func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

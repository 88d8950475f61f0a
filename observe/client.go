package observe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lucabaldini/baldaquin/retry"
)

// Client polls a Server's HTTP status endpoint on behalf of a tool that
// cannot afford to treat one flaky request as fatal, retrying transport
// errors and non-200 responses with exponential backoff instead of
// surfacing the first failure.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Policy  retry.Policy
}

// NewClient returns a Client against baseURL (no trailing slash) with a
// default policy of up to three retries after the first request (four
// requests in all), waiting 100ms and doubling up to one second between
// tries.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    http.DefaultClient,
		Policy:  retry.MaxRetries(retry.Backoff(100*time.Millisecond, time.Second, 2), 3),
	}
}

// Status fetches GET /status, retrying per c.Policy until it succeeds, the
// policy is exhausted, or ctx is done.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.fetchStatus(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if waitErr := retry.Wait(ctx, c.Policy, attempt); waitErr != nil {
			return StatusResponse{}, lastErr
		}
	}
}

func (c *Client) fetchStatus(ctx context.Context) (StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/status", nil)
	if err != nil {
		return StatusResponse{}, err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return StatusResponse{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return StatusResponse{}, fmt.Errorf("observe: status request returned %d", res.StatusCode)
	}
	var out StatusResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return StatusResponse{}, err
	}
	return out, nil
}

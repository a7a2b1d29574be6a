package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/starcourier/starcourier/pkg/apperr"
	"github.com/starcourier/starcourier/pkg/models"
	"github.com/starcourier/starcourier/pkg/retry"
)

// Defaults for WaitForServer.
const (
	DefaultWaitAttempts = 5
	DefaultWaitDelay    = time.Second
)

// CheckHealth probes GET /health under the retry policy. Never cached.
func (c *Client) CheckHealth(ctx context.Context) (*models.HealthResponse, error) {
	return c.health(ctx, c.policy)
}

func (c *Client) health(ctx context.Context, p retry.Policy) (*models.HealthResponse, error) {
	body, err := c.fetch(ctx, http.MethodGet, "/health", nil, p)
	if err != nil {
		return nil, err
	}
	var resp models.HealthResponse
	if err := c.decode(http.MethodGet, "/health", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitForServer probes the service up to maxAttempts times, sleeping delay
// between failed probes. Each probe is a single request.
func (c *Client) WaitForServer(ctx context.Context, maxAttempts int, delay time.Duration) error {
	if maxAttempts < 1 {
		maxAttempts = DefaultWaitAttempts
	}
	sleep := c.policy.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}
	once := retry.Policy{MaxAttempts: 1}

	var last error
	for i := 0; i < maxAttempts; i++ {
		_, err := c.health(ctx, once)
		if err == nil {
			log.Printf("api: server available")
			return nil
		}
		last = err
		log.Printf("api: waiting for server (%d/%d)", i+1, maxAttempts)
		if i < maxAttempts-1 {
			if err := sleep(ctx, delay); err != nil {
				return apperr.Wrap(apperr.KindUnavailable, err, "wait for server cancelled")
			}
		}
	}
	return apperr.Wrap(apperr.KindUnavailable, last, "server did not respond at %s", c.BaseURL())
}

// IsAvailable reports whether a health probe succeeds.
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.CheckHealth(ctx)
	return err == nil
}

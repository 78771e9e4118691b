package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Provider and throttles every remote call.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited returns p throttled to rps requests per second with the given
// burst. A non-positive rps disables limiting and returns p unchanged.
func NewRateLimited(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Name() string {
	return r.next.Name()
}

func (r *RateLimited) ListCalendars(ctx context.Context, maxResults int) ([]Calendar, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}
	return r.next.ListCalendars(ctx, maxResults)
}

func (r *RateLimited) ListEvents(ctx context.Context, req ListEventsRequest) (*EventPage, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}
	return r.next.ListEvents(ctx, req)
}

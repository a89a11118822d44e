package conversation

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// ResilientOptions bounds every call made through a ResilientLLMClient.
type ResilientOptions struct {
	// RatePerSecond of 0 disables rate limiting.
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	MaxRetries    int
	BaseBackoff   time.Duration
}

// ResilientLLMClient adds rate limiting, a per-attempt timeout and
// exponential backoff around another client.
type ResilientLLMClient struct {
	next    LLMClient
	limiter *rate.Limiter
	opts    ResilientOptions
	sleep   func(context.Context, time.Duration) error
}

func NewResilientLLMClient(next LLMClient, opts ResilientOptions) *ResilientLLMClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 200 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	c := &ResilientLLMClient{next: next, opts: opts, sleep: sleepCtx}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return c
}

func (c *ResilientLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.opts.BaseBackoff*time.Duration(1<<(attempt-1))); err != nil {
				return LLMResponse{}, err
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return LLMResponse{}, err
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		resp, err := c.next.Complete(attemptCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return LLMResponse{}, ctx.Err()
		}
	}
	return LLMResponse{}, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

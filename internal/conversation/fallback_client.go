package conversation

import (
	"context"

	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// FallbackLLMClient retries a failed completion on a secondary provider.
type FallbackLLMClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

// NewFallbackLLMClient returns primary unchanged when fallback is nil.
func NewFallbackLLMClient(primary, fallback LLMClient, logger *logging.Logger) LLMClient {
	if fallback == nil {
		return primary
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return LLMResponse{}, err
	}
	c.logger.Warn("primary llm failed, trying fallback", "error", err)

	resp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback llm also failed", "primary_error", err, "fallback_error", fallbackErr)
		return LLMResponse{}, fallbackErr
	}
	return resp, nil
}

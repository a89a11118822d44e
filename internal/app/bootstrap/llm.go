package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/clinic-booking-engine/internal/config"
	"github.com/wolfman30/clinic-booking-engine/internal/conversation"
	"github.com/wolfman30/clinic-booking-engine/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// BuildHintClassifier wires the optional intent hint collaborator: Gemini
// first, Bedrock as fallback, each paced and retried. It returns nil when
// neither is configured and the conversation runs on local rules only.
func BuildHintClassifier(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.ConversationMetrics, logger *logging.Logger) (*conversation.HintClassifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := conversation.ResilientOptions{
		RatePerSecond: cfg.LLMRatePerSecond,
		Burst:         int(cfg.LLMRatePerSecond) + 1,
		Timeout:       cfg.LLMTimeout,
		MaxRetries:    cfg.LLMMaxRetries,
		BaseBackoff:   cfg.LLMRetryBaseDelay,
	}

	var primary, fallback conversation.LLMClient
	if key := strings.TrimSpace(cfg.GeminiAPIKey); key != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, key, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		primary = conversation.NewResilientLLMClient(gemini, opts)
		logger.Info("intent hint via gemini", "model", cfg.GeminiModel)
	}
	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" {
		if awsCfg == nil {
			logger.Warn("bedrock model configured without aws config; skipping")
		} else {
			bedrock := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg), model)
			fallback = conversation.NewResilientLLMClient(bedrock, opts)
			logger.Info("intent hint via bedrock", "model", model)
		}
	}

	if primary == nil {
		primary, fallback = fallback, nil
	}
	if primary == nil {
		logger.Warn("no intent hint model configured; using local rules only")
		return nil, nil
	}
	client := conversation.NewFallbackLLMClient(primary, fallback, logger)
	return conversation.NewHintClassifier(client, "", logger, m), nil
}

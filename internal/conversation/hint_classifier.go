package conversation

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking-engine/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

const hintHistoryTurns = 5

const hintInstruction = `You route messages for a clinic booking assistant.
Patients write in English, Hindi or Hinglish.
Reply with exactly one label and nothing else:
find_doctor - looking for a doctor, describing symptoms or asking for an appointment with a specialty
check_availability - asking when a doctor is free or which slots are open
confirm_booking - choosing a doctor, date or time to book
view_profile - asking about a doctor's details, fees or experience
unknown - anything else`

var hintLabels = []string{"find_doctor", "check_availability", "confirm_booking", "view_profile", "unknown"}

var hintLabelRe = regexp.MustCompile(`[a-z_]+`)

// HintClassifier asks an LLM for an intent label. The answer is only a hint:
// any failure or unparseable reply yields "".
type HintClassifier struct {
	client  LLMClient
	model   string
	logger  *logging.Logger
	metrics *metrics.ConversationMetrics
}

func NewHintClassifier(client LLMClient, model string, logger *logging.Logger, m *metrics.ConversationMetrics) *HintClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &HintClassifier{client: client, model: model, logger: logger, metrics: m}
}

// Classify returns a label from hintLabels, or "" when the model was
// unavailable or said something else.
func (c *HintClassifier) Classify(ctx context.Context, message string, history []Message) string {
	if c == nil || c.client == nil {
		return ""
	}
	ctx, span := otel.Tracer("clinic.internal.conversation").Start(ctx, "conversation.classify_hint")
	defer span.End()

	if len(history) > hintHistoryTurns {
		history = history[len(history)-hintHistoryTurns:]
	}
	msgs := append(toChat(history), ChatMessage{Role: ChatRoleUser, Content: message})

	start := time.Now()
	resp, err := c.client.Complete(ctx, LLMRequest{
		Model:     c.model,
		System:    []string{hintInstruction},
		Messages:  msgs,
		MaxTokens: 16,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		span.RecordError(err)
		c.metrics.ObserveHint("error", elapsed)
		c.logger.Warn("intent hint unavailable", "error", err)
		return ""
	}

	label := ParseHintLabel(resp.Text)
	status := "ok"
	if label == "" {
		status = "unparsed"
	}
	c.metrics.ObserveHint(status, elapsed)
	span.SetAttributes(attribute.String("clinic.hint", label))
	return label
}

// ParseHintLabel picks the first known label out of free-form model output.
func ParseHintLabel(text string) string {
	for _, tok := range hintLabelRe.FindAllString(strings.ToLower(text), -1) {
		for _, label := range hintLabels {
			if tok == label {
				return label
			}
		}
	}
	return ""
}

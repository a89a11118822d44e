package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// SMSSender sends a text message to an E.164 number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

var ErrInvalidPhone = errors.New("notify: phone number must be E.164 (start with +)")

type twilioMessagesAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioSender sends SMS through the Twilio REST API.
type TwilioSender struct {
	api    twilioMessagesAPI
	from   string
	logger *logging.Logger
}

// NewTwilioSender returns nil unless every credential is set.
func NewTwilioSender(cfg TwilioConfig, logger *logging.Logger) *TwilioSender {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioSender(client.Api, cfg.FromNumber, logger)
}

func newTwilioSender(api twilioMessagesAPI, from string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{api: api, from: from, logger: logger}
}

// SendSMS is synchronous; the twilio client has no context support, so
// cancellation is only checked before the call.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if !strings.HasPrefix(to, "+") {
		return ErrInvalidPhone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("notify: twilio send failed: %w", err)
	}
	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	s.logger.Debug("sms sent via twilio", "sid", sid)
	return nil
}

// StubSMSSender logs instead of sending.
type StubSMSSender struct {
	logger *logging.Logger
}

func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("stub sms sender: would send sms", "length", len(body))
	return nil
}

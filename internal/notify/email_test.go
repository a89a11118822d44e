package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeSendGrid struct {
	last   *mail.SGMailV3
	status int
	err    error
}

func (f *fakeSendGrid) SendWithContext(ctx context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.last = m
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestNewSendGridSenderNilWithoutAPIKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "clinic@example.com"}, nil))
}

func TestSendGridSenderSend(t *testing.T) {
	api := &fakeSendGrid{status: 202}
	sender := newSendGridSender(api, SendGridConfig{FromEmail: "clinic@example.com"}, nil)
	assert.Equal(t, defaultFromName, sender.fromName)

	err := sender.Send(context.Background(), EmailMessage{To: "asha@example.com", ToName: "Asha", Subject: "Appointment confirmed", Body: "See you"})
	require.NoError(t, err)
	require.NotNil(t, api.last)
	assert.Equal(t, "Appointment confirmed", api.last.Subject)
	assert.Equal(t, "clinic@example.com", api.last.From.Address)

	api.status = 401
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "asha@example.com"}))

	api.err = errors.New("network")
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "asha@example.com"}))
}

func TestSendGridSenderNilIsAnError(t *testing.T) {
	var sender *SendGridSender
	assert.Error(t, sender.Send(context.Background(), EmailMessage{}))
}

type fakeSES struct {
	last *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.last = in
	return &sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestSESSenderBuildsSimpleMessage(t *testing.T) {
	api := &fakeSES{}
	sender := NewSESSender(api, SESConfig{FromEmail: "clinic@example.com", FromName: "City Clinic"}, nil)

	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "asha@example.com", Subject: "Cancelled", Body: "Sorry"}))
	assert.Equal(t, "City Clinic <clinic@example.com>", aws.ToString(api.last.FromEmailAddress))
	assert.Equal(t, []string{"asha@example.com"}, api.last.Destination.ToAddresses)
	assert.Equal(t, "Sorry", aws.ToString(api.last.Content.Simple.Body.Text.Data))
	assert.Nil(t, api.last.Content.Simple.Body.Html)

	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}

type fakeTwilio struct {
	params *openapi.CreateMessageParams
}

func (f *fakeTwilio) CreateMessage(p *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = p
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSender(t *testing.T) {
	api := &fakeTwilio{}
	sender := newTwilioSender(api, "+15550001111", nil)

	require.NoError(t, sender.SendSMS(context.Background(), "+919800000001", "your turn"))
	require.NotNil(t, api.params)
	assert.Equal(t, "+919800000001", *api.params.To)
	assert.Equal(t, "+15550001111", *api.params.From)
	assert.Equal(t, "your turn", *api.params.Body)

	assert.ErrorIs(t, sender.SendSMS(context.Background(), "9800000001", "x"), ErrInvalidPhone)
	assert.Nil(t, NewTwilioSender(TwilioConfig{AccountSID: "AC"}, nil))
}

func TestStubSenders(t *testing.T) {
	assert.NoError(t, NewStubEmailSender(nil).Send(context.Background(), EmailMessage{Subject: "x"}))
	assert.NoError(t, NewStubSMSSender(nil).SendSMS(context.Background(), "+1", "x"))
}

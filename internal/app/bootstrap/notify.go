package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/clinic-booking-engine/internal/config"
	"github.com/wolfman30/clinic-booking-engine/internal/notify"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// BuildSMSSender returns Twilio when credentials are set, else a logging stub.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) notify.SMSSender {
	if tw := notify.NewTwilioSender(notify.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
	}, logger); tw != nil {
		logger.Info("sms via twilio", "from", cfg.TwilioFromNumber)
		return tw
	}
	return notify.NewStubSMSSender(logger)
}

// BuildEmailSender picks the provider named by EMAIL_PROVIDER, falling back
// to the stub when the chosen one is not configured.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sg != nil {
			logger.Info("email via sendgrid")
			return sg
		}
		logger.Warn("sendgrid selected without api key; using stub email sender")
	case "ses":
		if awsCfg != nil && cfg.SESFromEmail != "" {
			logger.Info("email via ses")
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		logger.Warn("ses selected without aws config or sender; using stub email sender")
	}
	return notify.NewStubEmailSender(logger)
}

package bootstrap

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/abbotsfordroad/cafe-ai-platform/internal/config"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/notify"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// BuildEmailSender picks the configured email provider. "auto" prefers
// SendGrid when a key is present, then SES, then the logging stub.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	useSendGrid := cfg.SendGridAPIKey != "" && (cfg.EmailProvider == "auto" || cfg.EmailProvider == "sendgrid")
	if useSendGrid {
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			logger.Info("email alerts via sendgrid", "from", cfg.SendGridFromEmail)
			return sender
		}
	}

	useSES := cfg.SESFromEmail != "" && (cfg.EmailProvider == "auto" || cfg.EmailProvider == "ses")
	if useSES {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("SES unavailable", "error", err)
		} else {
			sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SESFromName,
			}, logger)
			if sender != nil {
				logger.Info("email alerts via SES", "from", cfg.SESFromEmail)
				return sender
			}
		}
	}

	logger.Warn("no email provider configured; alerts will only be logged")
	return notify.NewStubEmailSender(logger)
}

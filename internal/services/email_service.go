package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/BradenHooton/donorguard/internal/models"
)

// SESSender is the subset of the SES client used for alert mail
type SESSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESAlertNotifier mails critical alerts to the security recipients via AWS SES
type SESAlertNotifier struct {
	client      SESSender
	fromAddress string
	recipients  []string
	logger      *slog.Logger
}

// NewSESAlertNotifier loads the default AWS configuration for region
func NewSESAlertNotifier(ctx context.Context, region, fromAddress string, recipients []string, logger *slog.Logger) (*SESAlertNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESAlertNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, recipients, logger), nil
}

// NewSESAlertNotifierWithClient builds a notifier on an existing client
func NewSESAlertNotifierWithClient(client SESSender, fromAddress string, recipients []string, logger *slog.Logger) *SESAlertNotifier {
	return &SESAlertNotifier{
		client:      client,
		fromAddress: fromAddress,
		recipients:  recipients,
		logger:      logger,
	}
}

// NotifyAlert sends one plain text message per alert
func (n *SESAlertNotifier) NotifyAlert(ctx context.Context, alert *models.AdminAlert) error {
	if len(n.recipients) == 0 {
		return nil
	}

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: n.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(alertEmailBody(alert)),
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	n.logger.Info("critical alert mailed",
		slog.String("alert_id", alert.ID.String()),
		slog.Int("recipients", len(n.recipients)),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

func alertEmailBody(alert *models.AdminAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", alert.Message)
	fmt.Fprintf(&b, "Type:      %s\n", alert.Type)
	fmt.Fprintf(&b, "Severity:  %s\n", alert.Severity)
	if alert.Details.IP != "" {
		fmt.Fprintf(&b, "IP:        %s\n", alert.Details.IP)
	}
	if alert.Details.AttemptCount > 0 {
		fmt.Fprintf(&b, "Attempts:  %d\n", alert.Details.AttemptCount)
	}
	if alert.Details.LockoutLevel > 0 {
		fmt.Fprintf(&b, "Lockout:   level %d for %s\n", alert.Details.LockoutLevel, alert.Details.LockoutDuration)
	}
	if alert.Details.RiskScore > 0 {
		fmt.Fprintf(&b, "Risk:      %d\n", alert.Details.RiskScore)
	}
	if alert.Details.ExpiresAt != nil {
		fmt.Fprintf(&b, "Expires:   %s\n", alert.Details.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Raised at: %s\n", alert.CreatedAt.Format(time.RFC3339))
	b.WriteString("\nReview it under /admin/security/alerts.\n")
	return b.String()
}

// Package alerting delivers failure alerts when the pipeline returns a hard
// failure. Delivery errors are logged, never propagated into the render path.
package alerting

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"docgen-service/internal/common/logger"
)

// Notifier is the alert delivery interface injected into the server.
type Notifier interface {
	NotifyFailure(ctx context.Context, correlationID, templateID, detail string) error
}

// SESNotifier sends failure alerts by email through AWS SES.
type SESNotifier struct {
	client *ses.Client
	from   string
	to     string
	logger logger.Logger
}

func NewSESNotifier(ctx context.Context, region, from, to string, log logger.Logger) (*SESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SESNotifier{
		client: ses.NewFromConfig(cfg),
		from:   from,
		to:     to,
		logger: log.WithFields(map[string]interface{}{"component": "alerting"}),
	}, nil
}

func (n *SESNotifier) NotifyFailure(ctx context.Context, correlationID, templateID, detail string) error {
	subject := fmt.Sprintf("Document generation failed: %s", templateID)
	body := fmt.Sprintf("correlationId: %s\ntemplate: %s\n\n%s", correlationID, templateID, detail)

	_, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.from),
		Destination: &types.Destination{
			ToAddresses: []string{n.to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		n.logger.Error("failed to send failure alert", map[string]interface{}{
			"correlationId": correlationID,
			"error":         err.Error(),
		})
		return err
	}

	n.logger.Info("failure alert sent", map[string]interface{}{
		"correlationId": correlationID,
		"template":      templateID,
	})
	return nil
}

// NoopNotifier is used when email alerting is disabled.
type NoopNotifier struct{}

func (NoopNotifier) NotifyFailure(ctx context.Context, correlationID, templateID, detail string) error {
	return nil
}

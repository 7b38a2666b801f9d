package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"github.com/stride-fit/stride/internal/db"
)

// SNSTransport publishes notices to mobile devices registered as SNS
// platform endpoints.
type SNSTransport struct {
	client *sns.Client
	logger *zap.Logger
}

type SNSConfig struct {
	Region string
}

// NewSNSTransport creates the SNS-backed push transport
func NewSNSTransport(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSTransport, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for SNS: %w", err)
	}

	return &SNSTransport{
		client: sns.NewFromConfig(awsCfg),
		logger: logger,
	}, nil
}

// Deliver publishes the notice to the subscription's endpoint ARN.
// A disabled endpoint maps to ErrTargetGone so the registry gets pruned.
func (t *SNSTransport) Deliver(ctx context.Context, sub *db.PushSubscription, n Notice) error {
	if sub.Transport != db.TransportSNS {
		return fmt.Errorf("sns transport got %q subscription", sub.Transport)
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	input := &sns.PublishInput{
		TargetArn: aws.String(sub.Target),
		Message:   aws.String(string(body)),
	}

	result, err := t.client.Publish(ctx, input)
	if err != nil {
		var disabled *types.EndpointDisabledException
		if errors.As(err, &disabled) {
			return fmt.Errorf("%w: endpoint disabled: %s", ErrTargetGone, sub.Target)
		}
		return fmt.Errorf("sns publish failed: %w", err)
	}

	t.logger.Info("push delivered via SNS",
		zap.String("reminder_id", n.ReminderID.String()),
		zap.String("subscription_id", sub.ID.String()),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}

// Kind returns the subscription kind this transport serves
func (t *SNSTransport) Kind() string {
	return db.TransportSNS
}

package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/stride-fit/stride/internal/db"
)

// emailSender is the narrow SES surface MissedNotifier uses; tests swap it
// for a recorder.
type emailSender interface {
	send(ctx context.Context, to, subject, body string) error
}

// MissedNotifier emails the user about a one-off reminder that was already
// overdue when the session came back, so the reminder is not lost silently.
// It sends to the owner's registered email targets; everything about it is
// best-effort.
type MissedNotifier struct {
	store  SubscriptionStore
	sender emailSender
	logger *zap.Logger
}

type SESConfig struct {
	Region    string
	FromEmail string
}

// NewMissedNotifier creates the SES-backed missed-reminder notifier
func NewMissedNotifier(ctx context.Context, store SubscriptionStore, cfg SESConfig, logger *zap.Logger) (*MissedNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for SES: %w", err)
	}

	return &MissedNotifier{
		store:  store,
		sender: &sesSender{client: ses.NewFromConfig(awsCfg), from: cfg.FromEmail},
		logger: logger,
	}, nil
}

// NotifyMissed emails every registered email target about the missed
// reminder. Failures are logged; none are returned.
func (m *MissedNotifier) NotifyMissed(ctx context.Context, rem *db.Reminder) {
	subs, err := m.store.ListPushSubscriptions(ctx, rem.OwnerID)
	if err != nil {
		m.logger.Warn("failed to list email targets for missed notice",
			zap.Error(err),
			zap.String("reminder_id", rem.ID.String()),
		)
		return
	}

	subject := fmt.Sprintf("Missed reminder: %s", rem.Title)
	body := fmt.Sprintf(
		"Your reminder %q was due at %s while Stride was not running.\n\n%s\n",
		rem.Title, rem.FireAt.Format("Mon, 02 Jan 2006 15:04"), rem.Body,
	)

	sent := 0
	for _, sub := range subs {
		if sub.Transport != db.TransportEmail {
			continue
		}
		if err := m.sender.send(ctx, sub.Target, subject, body); err != nil {
			m.logger.Warn("missed notice email failed",
				zap.Error(err),
				zap.String("reminder_id", rem.ID.String()),
				zap.String("subscription_id", sub.ID.String()),
			)
			continue
		}
		sent++
	}

	if sent > 0 {
		m.logger.Info("missed reminder notice sent",
			zap.String("reminder_id", rem.ID.String()),
			zap.Int("recipients", sent),
		)
	}
}

type sesSender struct {
	client *ses.Client
	from   string
}

func (s *sesSender) send(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}
	return nil
}

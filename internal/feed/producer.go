// Package feed announces freshly queued notification events on SQS so that
// downstream consumers (analytics, admin surfaces) can follow dispatch
// activity. The feed is strictly fire-and-forget: delivery semantics stay
// with the Postgres queue, never with the broker.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/db"
)

// Config holds SQS configuration.
type Config struct {
	Region   string
	QueueURL string
}

// Message is the payload sent to SQS.
type Message struct {
	EventID         string `json:"event_id"`
	EventKey        string `json:"event_key"`
	TriggerKey      string `json:"trigger_key"`
	Channel         string `json:"channel"`
	ExternalOrderID string `json:"external_order_id,omitempty"`
	SourceSystem    string `json:"source_system,omitempty"`
	EnqueuedAt      int64  `json:"enqueued_at"`
}

// Producer publishes dispatch announcements to SQS.
type Producer struct {
	client   *sqs.Client
	queueURL string
	logger   *zap.Logger
}

// NewProducer creates a new SQS producer.
func NewProducer(ctx context.Context, cfg Config, logger *zap.Logger) (*Producer, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("sqs dispatch feed initialized",
		zap.String("queue_url", cfg.QueueURL),
	)

	return &Producer{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: cfg.QueueURL,
		logger:   logger,
	}, nil
}

// Publish announces one queued event. Errors are returned for logging but
// callers must not treat them as dispatch failures.
func (p *Producer) Publish(ctx context.Context, event *db.NotificationEvent) error {
	msg := Message{
		EventID:         event.ID.String(),
		EventKey:        event.EventKey,
		TriggerKey:      event.TriggerKey,
		Channel:         event.Channel,
		ExternalOrderID: event.ExternalOrderID,
		SourceSystem:    event.SourceSystem,
		EnqueuedAt:      time.Now().UnixNano(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal feed message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}

	result, err := p.client.SendMessage(ctx, input)
	if err != nil {
		p.logger.Error("failed to publish dispatch feed message",
			zap.Error(err),
			zap.String("event_key", event.EventKey),
		)
		return fmt.Errorf("sqs send failed: %w", err)
	}

	p.logger.Debug("dispatch feed message published",
		zap.String("event_key", event.EventKey),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}

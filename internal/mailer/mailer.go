// Package mailer is the outbound mail transport collaborator.
package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Message is one outbound email.
type Message struct {
	Recipients []string
	Subject    string
	HTML       string
	Plain      string
	ScopeID    *string
}

// Mailer delivers a message, failing with a transport error on delivery
// failure.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer logs messages instead of delivering them (development mode).
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("logging mail (development mode)",
		zap.Strings("recipients", msg.Recipients),
		zap.String("subject", msg.Subject),
		zap.Int("plain_bytes", len(msg.Plain)),
	)
	return nil
}

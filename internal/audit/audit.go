// Package audit records engine actions to the audit log. Writes are
// fire-and-forget from the caller's perspective: a storage failure is logged
// and swallowed, it never fails the operation being audited.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/db"
)

// Store persists audit entries.
type Store interface {
	CreateAuditEntry(ctx context.Context, entry db.AuditEntry) error
}

// Audit action names written by the worker.
const (
	ActionNotificationSent   = "notification_sent"
	ActionNotificationFailed = "notification_failed"
)

type Logger struct {
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// Log writes one audit entry.
func (l *Logger) Log(ctx context.Context, action, targetType, targetID, contextLabel string, details map[string]any, category string) {
	entry := db.AuditEntry{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Context:    contextLabel,
		Details:    details,
		Category:   category,
	}

	if err := l.store.CreateAuditEntry(ctx, entry); err != nil {
		l.logger.Error("failed to write audit entry",
			zap.Error(err),
			zap.String("action", action),
			zap.String("target_id", targetID),
		)
	}
}

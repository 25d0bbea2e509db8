package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository handles database operations for the dispatch and reconciliation
// engine. It is the single storage collaborator behind the per-package store
// interfaces; the claim primitive in events.go is the correctness linchpin
// documented there.
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateAuditEntry persists an audit record. Callers treat this as
// fire-and-forget; see the audit package.
func (r *Repository) CreateAuditEntry(ctx context.Context, entry AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_log (
			id, action, target_type, target_id, context, details, category
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		entry.ID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Context,
		details,
		entry.Category,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

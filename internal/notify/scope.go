package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/db"
)

// OrderLookup is the read-only order access the scope resolver needs.
type OrderLookup interface {
	FindOrderByNumber(ctx context.Context, orderNumber string) (db.Order, bool, error)
	RecentOrders(ctx context.Context, limit int) ([]db.Order, error)
}

// ScopeResolver maps a source system / external order identifier to the
// owning sales channel scope, used to pick the right toggle and template.
type ScopeResolver struct {
	orders       OrderLookup
	sourceScopes map[string]string
	recentWindow int
	logger       *zap.Logger
}

func NewScopeResolver(orders OrderLookup, sourceScopes map[string]string, recentWindow int, logger *zap.Logger) *ScopeResolver {
	if recentWindow <= 0 {
		recentWindow = 500
	}
	normalized := make(map[string]string, len(sourceScopes))
	for key, value := range sourceScopes {
		normalized[strings.ToLower(strings.TrimSpace(key))] = value
	}
	return &ScopeResolver{
		orders:       orders,
		sourceScopes: normalized,
		recentWindow: recentWindow,
		logger:       logger,
	}
}

// Resolve returns the scope id for a dispatch, or nil when nothing resolves.
// Callers must treat nil as "use global toggle/template only". Lookup errors
// are logged and the resolver falls through to the next stage; scope
// resolution is best effort and must never block a dispatch on its own.
func (r *ScopeResolver) Resolve(ctx context.Context, sourceSystem, externalOrderID, fallbackScopeID string) *string {
	if fallbackScopeID != "" {
		return &fallbackScopeID
	}

	if externalOrderID != "" {
		if scope := r.scopeFromOrderNumber(ctx, externalOrderID); scope != nil {
			return scope
		}
		if scope := r.scopeFromRecentOrders(ctx, externalOrderID); scope != nil {
			return scope
		}
	}

	if sourceSystem != "" {
		key := strings.ToLower(strings.TrimSpace(sourceSystem))
		if scope, ok := r.sourceScopes[key]; ok {
			return &scope
		}
	}

	return nil
}

func (r *ScopeResolver) scopeFromOrderNumber(ctx context.Context, externalOrderID string) *string {
	order, found, err := r.orders.FindOrderByNumber(ctx, externalOrderID)
	if err != nil {
		r.logger.Warn("order number lookup failed during scope resolution",
			zap.Error(err),
			zap.String("external_order_id", externalOrderID),
		)
		return nil
	}
	if !found {
		return nil
	}
	return order.SalesChannelID
}

func (r *ScopeResolver) scopeFromRecentOrders(ctx context.Context, externalOrderID string) *string {
	orders, err := r.orders.RecentOrders(ctx, r.recentWindow)
	if err != nil {
		r.logger.Warn("recent order scan failed during scope resolution",
			zap.Error(err),
			zap.String("external_order_id", externalOrderID),
		)
		return nil
	}

	for _, order := range orders {
		if order.ExternalOrderID != nil && *order.ExternalOrderID == externalOrderID {
			return order.SalesChannelID
		}
	}

	return nil
}

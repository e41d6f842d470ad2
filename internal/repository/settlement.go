package repository

import (
	"context"
	"time"

	"transit/internal/domain"
)

// SettlementRepository defines the persistence operations for settlement intents.
type SettlementRepository interface {
	// Create persists a new intent.
	Create(ctx context.Context, intent *domain.SettlementIntent) error

	// Update stores the targets and status of an open intent.
	// Returns ErrStaleWrite if the intent is no longer open.
	Update(ctx context.Context, intent *domain.SettlementIntent) error

	// SupersedeOpen marks every open intent of a payment as superseded and
	// returns how many were changed.
	SupersedeOpen(ctx context.Context, paymentID string, at time.Time) (int64, error)

	// ListOpen returns up to limit open intents, oldest first.
	ListOpen(ctx context.Context, limit int) ([]*domain.SettlementIntent, error)
}

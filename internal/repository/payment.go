package repository

import (
	"context"

	"transit/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByOrderID retrieves a payment by its provider order id.
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)

	// ListByPassenger returns one page of a passenger's payments, newest first,
	// along with the total count.
	ListByPassenger(ctx context.Context, passengerID string, offset, limit int) ([]*domain.Payment, int, error)

	// UpdateGuarded writes the payment only if its stored status still equals expected.
	// Returns ErrStaleWrite when it does not.
	UpdateGuarded(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error
}

package repository

import (
	"context"

	"transit/internal/domain"
)

// JourneyFilter narrows a passenger's journey listing.
type JourneyFilter struct {
	PassengerID string
	Status      domain.JourneyStatus // Empty means any status
	Offset      int
	Limit       int
}

// JourneyRepository defines the persistence operations for journeys.
type JourneyRepository interface {
	// Create persists a new journey.
	Create(ctx context.Context, journey *domain.Journey) error

	// GetByID retrieves a journey by ID.
	GetByID(ctx context.Context, id string) (*domain.Journey, error)

	// ListByPassenger returns one page of a passenger's journeys, newest start time first,
	// along with the total number of matching journeys.
	ListByPassenger(ctx context.Context, filter JourneyFilter) ([]*domain.Journey, int, error)

	// UpdateGuarded writes the journey only if its stored state still equals expected.
	// Returns ErrStaleWrite when it does not.
	UpdateGuarded(ctx context.Context, journey *domain.Journey, expected domain.JourneyState) error
}

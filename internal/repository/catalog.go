package repository

import (
	"context"

	"transit/internal/domain"
)

// ScheduleRepository reads schedules.
type ScheduleRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Schedule, error)
}

// RouteRepository reads routes.
type RouteRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Route, error)
}

// PassengerRepository reads passenger accounts.
type PassengerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Passenger, error)
}

// DriverRepository reads driver accounts.
type DriverRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Driver, error)
}

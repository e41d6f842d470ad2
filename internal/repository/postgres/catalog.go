package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"transit/internal/domain"
	"transit/internal/repository"
)

// ScheduleRepository is a PostgreSQL implementation of repository.ScheduleRepository.
type ScheduleRepository struct {
	q Querier
}

// NewScheduleRepository creates a new PostgreSQL schedule repository.
func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{q: db}
}

// GetByID retrieves a schedule by ID.
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	query := `
		SELECT id, route_id, driver_id, days_of_week, start_time, end_time, status
		FROM schedules WHERE id = $1
	`

	var schedule domain.Schedule
	var driverID sql.NullString
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&schedule.ID,
		&schedule.RouteID,
		&driverID,
		pq.Array(&schedule.DaysOfWeek),
		&schedule.StartTime,
		&schedule.EndTime,
		&schedule.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	schedule.DriverID = driverID.String

	return &schedule, nil
}

// RouteRepository is a PostgreSQL implementation of repository.RouteRepository.
type RouteRepository struct {
	q Querier
}

// NewRouteRepository creates a new PostgreSQL route repository.
func NewRouteRepository(db *sql.DB) *RouteRepository {
	return &RouteRepository{q: db}
}

// GetByID retrieves a route with its ordered stops.
func (r *RouteRepository) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	query := `SELECT id, name, distance, cost_per_km, stops FROM routes WHERE id = $1`

	var route domain.Route
	var stops []byte
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&route.ID,
		&route.Name,
		&route.Distance,
		&route.CostPerKm,
		&stops,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if len(stops) > 0 {
		if err := json.Unmarshal(stops, &route.Stops); err != nil {
			return nil, fmt.Errorf("decode route stops: %w", err)
		}
	}

	return &route, nil
}

// PassengerRepository is a PostgreSQL implementation of repository.PassengerRepository.
type PassengerRepository struct {
	q Querier
}

// NewPassengerRepository creates a new PostgreSQL passenger repository.
func NewPassengerRepository(db *sql.DB) *PassengerRepository {
	return &PassengerRepository{q: db}
}

// GetByID retrieves a passenger by ID.
func (r *PassengerRepository) GetByID(ctx context.Context, id string) (*domain.Passenger, error) {
	query := `SELECT id, name, COALESCE(email, ''), COALESCE(phone, '') FROM passengers WHERE id = $1`

	var passenger domain.Passenger
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&passenger.ID,
		&passenger.Name,
		&passenger.Email,
		&passenger.Phone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &passenger, nil
}

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `
		SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(license_number, '')
		FROM drivers WHERE id = $1
	`

	var driver domain.Driver
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&driver.ID,
		&driver.Name,
		&driver.Email,
		&driver.Phone,
		&driver.LicenseNumber,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &driver, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"transit/internal/domain"
	"transit/internal/repository"
)

const ticketNumberConstraint = "journeys_ticket_number_key"

const journeyColumns = `id, schedule_id, passenger_id, driver_id, route_details, start_time, end_time,
	status, payment_status, payment_method, ticket_number, fare, qr_code,
	is_verified, verified_by, verified_at, is_additional_passenger, additional_passenger_info,
	created_at, updated_at`

// JourneyRepository is a PostgreSQL implementation of repository.JourneyRepository.
type JourneyRepository struct {
	q Querier
}

// NewJourneyRepository creates a new PostgreSQL journey repository.
func NewJourneyRepository(db *sql.DB) *JourneyRepository {
	return &JourneyRepository{q: db}
}

// NewJourneyRepositoryWithTx creates a journey repository using a transaction.
func NewJourneyRepositoryWithTx(tx *sql.Tx) *JourneyRepository {
	return &JourneyRepository{q: tx}
}

// Create persists a new journey.
func (r *JourneyRepository) Create(ctx context.Context, journey *domain.Journey) error {
	query := `
		INSERT INTO journeys (` + journeyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	routeDetails, err := toJSON(journey.RouteDetails)
	if err != nil {
		return fmt.Errorf("encode route details: %w", err)
	}
	passengerInfo, err := toJSON(journey.AdditionalPassengerInfo)
	if err != nil {
		return fmt.Errorf("encode passenger info: %w", err)
	}

	_, err = r.q.ExecContext(ctx, query,
		journey.ID,
		journey.ScheduleID,
		journey.PassengerID,
		nullString(journey.DriverID),
		routeDetails,
		journey.StartTime,
		journey.EndTime,
		journey.Status,
		journey.PaymentStatus,
		journey.PaymentMethod,
		nullString(journey.TicketNumber),
		journey.Fare,
		journey.QRCode,
		journey.IsVerified,
		nullString(journey.VerifiedBy),
		nullTime(journey.VerifiedAt),
		journey.IsAdditionalPassenger,
		passengerInfo,
		journey.CreatedAt,
		journey.UpdatedAt,
	)
	if isUniqueViolation(err, ticketNumberConstraint) {
		return repository.ErrDuplicateTicket
	}

	return err
}

// GetByID retrieves a journey by ID.
func (r *JourneyRepository) GetByID(ctx context.Context, id string) (*domain.Journey, error) {
	query := `SELECT ` + journeyColumns + ` FROM journeys WHERE id = $1`

	journey, err := scanJourney(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return journey, nil
}

// ListByPassenger returns one page of a passenger's journeys and the total count.
func (r *JourneyRepository) ListByPassenger(ctx context.Context, filter repository.JourneyFilter) ([]*domain.Journey, int, error) {
	where := `WHERE passenger_id = $1`
	args := []any{filter.PassengerID}
	if filter.Status != "" {
		where += ` AND status = $2`
		args = append(args, filter.Status)
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM journeys `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM journeys %s ORDER BY start_time DESC LIMIT $%d OFFSET $%d`,
		journeyColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	journeys := make([]*domain.Journey, 0, filter.Limit)
	for rows.Next() {
		journey, err := scanJourney(rows)
		if err != nil {
			return nil, 0, err
		}
		journeys = append(journeys, journey)
	}

	return journeys, total, rows.Err()
}

// UpdateGuarded writes the mutable journey fields if the stored state still equals expected.
func (r *JourneyRepository) UpdateGuarded(ctx context.Context, journey *domain.Journey, expected domain.JourneyState) error {
	query := `
		UPDATE journeys
		SET status = $1, payment_status = $2, ticket_number = $3, is_verified = $4,
			verified_by = $5, verified_at = $6, updated_at = $7
		WHERE id = $8 AND status = $9 AND payment_status = $10 AND is_verified = $11
	`

	result, err := r.q.ExecContext(ctx, query,
		journey.Status,
		journey.PaymentStatus,
		nullString(journey.TicketNumber),
		journey.IsVerified,
		nullString(journey.VerifiedBy),
		nullTime(journey.VerifiedAt),
		journey.UpdatedAt,
		journey.ID,
		expected.Status,
		expected.PaymentStatus,
		expected.IsVerified,
	)
	if err != nil {
		if isUniqueViolation(err, ticketNumberConstraint) {
			return repository.ErrDuplicateTicket
		}
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrStaleWrite
	}

	return nil
}

func scanJourney(s rowScanner) (*domain.Journey, error) {
	var journey domain.Journey
	var driverID, ticketNumber, verifiedBy sql.NullString
	var verifiedAt sql.NullTime
	var routeDetails, passengerInfo []byte

	if err := s.Scan(
		&journey.ID,
		&journey.ScheduleID,
		&journey.PassengerID,
		&driverID,
		&routeDetails,
		&journey.StartTime,
		&journey.EndTime,
		&journey.Status,
		&journey.PaymentStatus,
		&journey.PaymentMethod,
		&ticketNumber,
		&journey.Fare,
		&journey.QRCode,
		&journey.IsVerified,
		&verifiedBy,
		&verifiedAt,
		&journey.IsAdditionalPassenger,
		&passengerInfo,
		&journey.CreatedAt,
		&journey.UpdatedAt,
	); err != nil {
		return nil, err
	}

	journey.DriverID = driverID.String
	journey.TicketNumber = ticketNumber.String
	journey.VerifiedBy = verifiedBy.String
	if verifiedAt.Valid {
		journey.VerifiedAt = verifiedAt.Time
	}

	var err error
	if journey.RouteDetails, err = fromJSON[domain.RouteSnapshot](routeDetails); err != nil {
		return nil, fmt.Errorf("decode route details: %w", err)
	}
	if journey.AdditionalPassengerInfo, err = fromJSON[domain.PassengerInfo](passengerInfo); err != nil {
		return nil, fmt.Errorf("decode passenger info: %w", err)
	}

	return &journey, nil
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"transit/internal/domain"
	"transit/internal/repository"
)

var journeyColumnNames = []string{
	"id", "schedule_id", "passenger_id", "driver_id", "route_details", "start_time", "end_time",
	"status", "payment_status", "payment_method", "ticket_number", "fare", "qr_code",
	"is_verified", "verified_by", "verified_at", "is_additional_passenger", "additional_passenger_info",
	"created_at", "updated_at",
}

func journeyRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(journeyColumnNames).
		AddRow("j-1", "s-1", "p-1", "d-1",
			`{"routeId":"r-1","routeName":"Coastal","startLocation":{"name":"A","lat":1,"lng":2}}`,
			now, now.Add(time.Hour), "booked", "paid", "online", "BUS-20250310-1234", 20.0, "data:image/png;base64,AA==",
			true, "d-1", now, true, `{"name":"Ravi","age":12}`, now, now).
		AddRow("j-2", "s-1", "p-1", nil, nil,
			now, now.Add(time.Hour), "booked", "pending", "in-bus", nil, 20.0, "",
			false, nil, nil, false, nil, now, now)
}

func newMock(t *testing.T) (*JourneyRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	return NewJourneyRepository(db), mock, func() { db.Close() }
}

func TestJourneyRepository_GetByID(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM journeys WHERE id = \\$1").
		WithArgs("j-1").
		WillReturnRows(journeyRows(now))

	journey, err := repo.GetByID(context.Background(), "j-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if journey.Status != domain.JourneyStatusBooked || journey.PaymentStatus != domain.JourneyPaymentPaid {
		t.Errorf("unexpected statuses %s / %s", journey.Status, journey.PaymentStatus)
	}
	if journey.RouteDetails == nil || journey.RouteDetails.RouteName != "Coastal" || journey.RouteDetails.StartLocation.Lat != 1 {
		t.Errorf("unexpected route details %+v", journey.RouteDetails)
	}
	if journey.AdditionalPassengerInfo == nil || journey.AdditionalPassengerInfo.Age != 12 {
		t.Errorf("unexpected passenger info %+v", journey.AdditionalPassengerInfo)
	}
	if journey.TicketNumber != "BUS-20250310-1234" || !journey.VerifiedAt.Equal(now) {
		t.Errorf("unexpected ticket or verification %q %v", journey.TicketNumber, journey.VerifiedAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJourneyRepository_GetByID_NotFound(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM journeys").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(journeyColumnNames))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJourneyRepository_ListByPassenger(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM journeys WHERE passenger_id = \\$1 AND status = \\$2").
		WithArgs("p-1", domain.JourneyStatusBooked).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("ORDER BY start_time DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("p-1", domain.JourneyStatusBooked, 2, 4).
		WillReturnRows(journeyRows(now))

	journeys, total, err := repo.ListByPassenger(context.Background(), repository.JourneyFilter{
		PassengerID: "p-1",
		Status:      domain.JourneyStatusBooked,
		Offset:      4,
		Limit:       2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 7 || len(journeys) != 2 {
		t.Errorf("expected 2 of 7, got %d of %d", len(journeys), total)
	}
	if journeys[1].DriverID != "" || journeys[1].RouteDetails != nil || journeys[1].TicketNumber != "" {
		t.Errorf("expected NULL columns to decode as empty, got %+v", journeys[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJourneyRepository_UpdateGuarded(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	journey := &domain.Journey{
		ID:            "j-1",
		Status:        domain.JourneyStatusBooked,
		PaymentStatus: domain.JourneyPaymentPaid,
		TicketNumber:  "BUS-20250310-1234",
		UpdatedAt:     now,
	}
	expected := domain.JourneyState{Status: domain.JourneyStatusBooked, PaymentStatus: domain.JourneyPaymentPending}

	t.Run("applied", func(t *testing.T) {
		repo, mock, done := newMock(t)
		defer done()
		mock.ExpectExec("UPDATE journeys").
			WithArgs(journey.Status, journey.PaymentStatus, sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg(), now,
				"j-1", expected.Status, expected.PaymentStatus, false).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.UpdateGuarded(ctx, journey, expected); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("stale", func(t *testing.T) {
		repo, mock, done := newMock(t)
		defer done()
		mock.ExpectExec("UPDATE journeys").WillReturnResult(sqlmock.NewResult(0, 0))

		if err := repo.UpdateGuarded(ctx, journey, expected); !errors.Is(err, repository.ErrStaleWrite) {
			t.Errorf("expected ErrStaleWrite, got %v", err)
		}
	})

	t.Run("duplicate ticket", func(t *testing.T) {
		repo, mock, done := newMock(t)
		defer done()
		mock.ExpectExec("UPDATE journeys").
			WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: ticketNumberConstraint})

		if err := repo.UpdateGuarded(ctx, journey, expected); !errors.Is(err, repository.ErrDuplicateTicket) {
			t.Errorf("expected ErrDuplicateTicket, got %v", err)
		}
	})
}

func TestJourneyRepository_CreateInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO journeys").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO journeys").
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: ticketNumberConstraint})
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	repo := NewJourneyRepositoryWithTx(tx)
	now := time.Now()

	first := &domain.Journey{
		ID:           "j-1",
		RouteDetails: &domain.RouteSnapshot{RouteID: "r-1"},
		Status:       domain.JourneyStatusBooked,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), first); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	second := *first
	second.ID = "j-2"
	second.TicketNumber = "BUS-20250310-1234"
	if err := repo.Create(context.Background(), &second); !errors.Is(err, repository.ErrDuplicateTicket) {
		t.Errorf("expected ErrDuplicateTicket, got %v", err)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

package tests

import (
	"context"
	"testing"
	"time"

	"transit/internal/domain"
	"transit/internal/logger"
	"transit/internal/service"
)

const (
	testScheduleID  = "schedule-1"
	testRouteID     = "route-1"
	testRouteName   = "Downtown Express"
	testPassengerID = "passenger-1"
	testOtherID     = "passenger-2"
	testDriverID    = "driver-1"
	testSecret      = "test-ticket-secret"

	captureTestTTL = 30 * time.Second
)

var (
	passengerCaller = domain.Caller{ID: testPassengerID, Role: domain.RolePassenger}
	otherCaller     = domain.Caller{ID: testOtherID, Role: domain.RolePassenger}
	driverCaller    = domain.Caller{ID: testDriverID, Role: domain.RoleDriver}
	adminCaller     = domain.Caller{ID: "admin-1", Role: domain.RoleAdmin}
)

// harness wires every service over in-memory mocks.
type harness struct {
	journeys   *MockJourneyRepository
	payments   *MockPaymentRepository
	schedules  *MockCatalog[domain.Schedule]
	routes     *MockCatalog[domain.Route]
	passengers *MockCatalog[domain.Passenger]
	drivers    *MockCatalog[domain.Driver]
	intents    *MockSettlementRepository
	locks      *MockLockStore
	kv         *MockKVStore
	provider   *MockPaymentProvider
	publisher  *MockEventPublisher
	events     *MockEventRecorder
	qr         *MockQREncoder
	tickets    *service.TicketIssuer

	fareService       *service.FareService
	journeyService    *service.JourneyService
	settlementService *service.SettlementService
	paymentService    *service.PaymentService
	bookingService    *service.BookingService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		journeys:   NewMockJourneyRepository(),
		payments:   NewMockPaymentRepository(),
		schedules:  NewMockCatalog[domain.Schedule](),
		routes:     NewMockCatalog[domain.Route](),
		passengers: NewMockCatalog[domain.Passenger](),
		drivers:    NewMockCatalog[domain.Driver](),
		intents:    NewMockSettlementRepository(),
		locks:      NewMockLockStore(),
		kv:         NewMockKVStore(),
		provider:   NewMockPaymentProvider(),
		publisher:  NewMockEventPublisher(),
		events:     NewMockEventRecorder(),
		qr:         &MockQREncoder{},
	}

	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	h.routes.Add(testRouteID, &domain.Route{
		ID:        testRouteID,
		Name:      testRouteName,
		Distance:  10,
		CostPerKm: 2,
		Stops: []domain.Stop{
			{Name: "Central Station", Lat: 6.93, Lng: 79.85},
			{Name: "Harbor Terminal", Lat: 6.95, Lng: 79.84},
		},
	})
	h.schedules.Add(testScheduleID, &domain.Schedule{
		ID:         testScheduleID,
		RouteID:    testRouteID,
		DriverID:   testDriverID,
		DaysOfWeek: []string{"Monday", "Wednesday"},
		StartTime:  start,
		EndTime:    start.Add(45 * time.Minute),
		Status:     "active",
	})
	h.passengers.Add(testPassengerID, &domain.Passenger{ID: testPassengerID, Name: "Nimal Perera", Email: "nimal@example.com"})
	h.passengers.Add(testOtherID, &domain.Passenger{ID: testOtherID, Name: "Ama Silva"})
	h.drivers.Add(testDriverID, &domain.Driver{ID: testDriverID, Name: "Kasun", LicenseNumber: "B-1234"})

	log := logger.NewNop()
	h.tickets = service.NewTicketIssuer(testSecret, h.qr)
	notifier := service.NewNotificationService(h.publisher, log)

	h.fareService = service.NewFareService(h.schedules, h.routes, h.kv, log)
	h.journeyService = service.NewJourneyService(
		h.journeys, h.schedules, h.routes, h.passengers, h.drivers,
		h.tickets, notifier, h.events, log,
	)
	h.settlementService = service.NewSettlementService(h.intents, h.journeyService, h.locks, h.events, log)
	h.paymentService = service.NewPaymentService(
		h.payments, h.journeys, h.passengers, h.provider, h.settlementService, h.locks, notifier,
		service.RedirectURLs{ReturnURL: "https://app.test/success", CancelURL: "https://app.test/cancel"},
		log,
	)
	h.bookingService = service.NewBookingService(h.journeyService, h.paymentService, log)

	return h
}

// book books a single journey for passengerID.
func (h *harness) book(t *testing.T, passengerID string, method domain.PaymentMethod) *domain.Journey {
	t.Helper()
	journey, err := h.journeyService.BookJourney(context.Background(), service.BookJourneyRequest{
		PassengerID:   passengerID,
		ScheduleID:    testScheduleID,
		PaymentMethod: method,
	})
	if err != nil {
		t.Fatalf("book journey: %v", err)
	}
	return journey
}

// bookGroup books count passengers under one payment order.
func (h *harness) bookGroup(t *testing.T, count int) *service.PaymentOrder {
	t.Helper()
	order, err := h.bookingService.BookGroup(context.Background(), service.GroupBookingRequest{
		PassengerID:    testPassengerID,
		ScheduleID:     testScheduleID,
		PassengerCount: count,
	})
	if err != nil {
		t.Fatalf("book group of %d: %v", count, err)
	}
	return order
}

// capture books and captures a group, returning the order.
func (h *harness) capture(t *testing.T, count int) *service.PaymentOrder {
	t.Helper()
	order := h.bookGroup(t, count)
	if _, err := h.paymentService.CapturePayment(context.Background(), order.OrderID); err != nil {
		t.Fatalf("capture %s: %v", order.OrderID, err)
	}
	return order
}

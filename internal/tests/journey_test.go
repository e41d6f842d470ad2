package tests

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"transit/internal/domain"
	"transit/internal/service"
)

func TestBookJourney_StartsBookedAndPending(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, method := range []domain.PaymentMethod{domain.PaymentMethodOnline, domain.PaymentMethodInBus} {
		journey := h.book(t, testPassengerID, method)

		if journey.Status != domain.JourneyStatusBooked {
			t.Errorf("expected booked, got %s", journey.Status)
		}
		if journey.PaymentStatus != domain.JourneyPaymentPending {
			t.Errorf("expected pending payment for %s, got %s", method, journey.PaymentStatus)
		}
		if journey.TicketNumber != "" {
			t.Errorf("expected no ticket number before payment, got %q", journey.TicketNumber)
		}
		if journey.QRCode == "" {
			t.Error("expected QR code to be issued at booking")
		}
		if journey.Fare != 20 {
			t.Errorf("expected fare 20.00, got %.2f", journey.Fare)
		}
		if journey.DriverID != testDriverID {
			t.Errorf("expected driver copied from schedule, got %q", journey.DriverID)
		}
		if journey.RouteDetails == nil || journey.RouteDetails.StartLocation == nil ||
			journey.RouteDetails.StartLocation.Name != "Central Station" ||
			journey.RouteDetails.EndLocation.Name != "Harbor Terminal" {
			t.Errorf("expected route snapshot with first and last stop, got %+v", journey.RouteDetails)
		}
	}

	if h.journeys.CountJourneys() != 2 {
		t.Errorf("expected 2 journeys persisted, got %d", h.journeys.CountJourneys())
	}
}

func TestBookJourney_DefaultsToOnline(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	journey := h.book(t, testPassengerID, "")
	if journey.PaymentMethod != domain.PaymentMethodOnline {
		t.Errorf("expected online, got %s", journey.PaymentMethod)
	}
}

func TestBookJourney_RouteWithoutStopsHasNoLocations(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.routes.Add("short", &domain.Route{ID: "short", Name: "Loop", CostPerKm: 0})
	h.schedules.Add("short-run", &domain.Schedule{ID: "short-run", RouteID: "short"})

	journey, err := h.journeyService.BookJourney(context.Background(), service.BookJourneyRequest{
		PassengerID: testPassengerID,
		ScheduleID:  "short-run",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if journey.RouteDetails.StartLocation != nil || journey.RouteDetails.EndLocation != nil {
		t.Error("expected no start or end location for a route without stops")
	}
	if journey.Fare != service.DefaultFare {
		t.Errorf("expected default fare, got %.2f", journey.Fare)
	}
}

func TestBookJourney_Validation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	testCases := []struct {
		name     string
		req      service.BookJourneyRequest
		expected error
	}{
		{"missing schedule", service.BookJourneyRequest{PassengerID: testPassengerID}, service.ErrMissingScheduleID},
		{"unknown schedule", service.BookJourneyRequest{PassengerID: testPassengerID, ScheduleID: "nope"}, service.ErrScheduleNotFound},
		{"bad method", service.BookJourneyRequest{PassengerID: testPassengerID, ScheduleID: testScheduleID, PaymentMethod: "card"}, service.ErrInvalidPaymentMethod},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.journeyService.BookJourney(context.Background(), tc.req); err != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, err)
			}
		})
	}

	if h.journeys.CreateCallCount != 0 {
		t.Errorf("expected no journeys created, got %d", h.journeys.CreateCallCount)
	}
}

func TestBookJourney_QRFailureAborts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.qr.EncodeError = ErrMockTimeout

	_, err := h.journeyService.BookJourney(context.Background(), service.BookJourneyRequest{
		PassengerID: testPassengerID,
		ScheduleID:  testScheduleID,
	})
	if service.KindOf(err) != service.KindInternal {
		t.Errorf("expected internal error, got %v", err)
	}
	if h.journeys.CountJourneys() != 0 {
		t.Error("expected no journey persisted when QR generation fails")
	}
}

func TestBookJourney_PublishesNotification(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	journey := h.book(t, testPassengerID, domain.PaymentMethodOnline)

	keys := h.publisher.RoutingKeys()
	if len(keys) != 1 || keys[0] != "journey.booked."+journey.ID {
		t.Errorf("expected journey.booked notification, got %v", keys)
	}
}

func TestBookJourney_NotificationFailureIsIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.publisher.PublishError = ErrMockTimeout

	h.book(t, testPassengerID, domain.PaymentMethodOnline)
}

func TestGetPassengerJourneys_Paginates(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		h.journeys.AddJourney(&domain.Journey{
			ID:          "j-" + string(rune('a'+i)),
			PassengerID: testPassengerID,
			StartTime:   base.Add(time.Duration(i) * time.Hour),
			Status:      domain.JourneyStatusBooked,
		})
	}
	h.journeys.AddJourney(&domain.Journey{ID: "other", PassengerID: testOtherID, Status: domain.JourneyStatusBooked})

	page, err := h.journeyService.GetPassengerJourneys(context.Background(), testPassengerID, "", 2, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(page.Journeys) != 5 {
		t.Fatalf("expected 5 journeys on page 2, got %d", len(page.Journeys))
	}
	if page.Journeys[0].ID != "j-g" {
		t.Errorf("expected newest-first ordering, got %s first", page.Journeys[0].ID)
	}
	expected := service.Pagination{Current: 2, Total: 3, TotalRecords: 12}
	if page.Pagination != expected {
		t.Errorf("expected %+v, got %+v", expected, page.Pagination)
	}
}

func TestGetPassengerJourneys_FiltersByStatus(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.journeys.AddJourney(&domain.Journey{ID: "a", PassengerID: testPassengerID, Status: domain.JourneyStatusBooked})
	h.journeys.AddJourney(&domain.Journey{ID: "b", PassengerID: testPassengerID, Status: domain.JourneyStatusCancelled})

	page, err := h.journeyService.GetPassengerJourneys(context.Background(), testPassengerID, domain.JourneyStatusCancelled, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Journeys) != 1 || page.Journeys[0].ID != "b" {
		t.Errorf("expected only the cancelled journey, got %d", len(page.Journeys))
	}
	if page.Pagination.Current != 1 {
		t.Errorf("expected page to default to 1, got %d", page.Pagination.Current)
	}

	_, err = h.journeyService.GetPassengerJourneys(context.Background(), testPassengerID, "lost", 1, 10)
	if service.KindOf(err) != service.KindValidation {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}

func TestGetJourneyDetails_AccessByRole(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	journey := h.book(t, testPassengerID, domain.PaymentMethodOnline)
	ctx := context.Background()

	details, err := h.journeyService.GetJourneyDetails(ctx, journey.ID, passengerCaller)
	if err != nil {
		t.Fatalf("owner: unexpected error: %v", err)
	}
	if details.Schedule == nil || details.Passenger == nil || details.Driver == nil {
		t.Errorf("expected schedule, passenger and driver to be loaded, got %+v", details)
	}

	if _, err := h.journeyService.GetJourneyDetails(ctx, journey.ID, otherCaller); err != service.ErrNotJourneyOwner {
		t.Errorf("other passenger: expected ErrNotJourneyOwner, got %v", err)
	}
	if _, err := h.journeyService.GetJourneyDetails(ctx, journey.ID, driverCaller); err != nil {
		t.Errorf("driver: unexpected error: %v", err)
	}
	if _, err := h.journeyService.GetJourneyDetails(ctx, journey.ID, adminCaller); err != nil {
		t.Errorf("admin: unexpected error: %v", err)
	}
	if _, err := h.journeyService.GetJourneyDetails(ctx, "missing", passengerCaller); err != service.ErrJourneyNotFound {
		t.Errorf("expected ErrJourneyNotFound, got %v", err)
	}
}

func TestGetJourneyDetails_MissingRelationsAreNil(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.journeys.AddJourney(&domain.Journey{
		ID:          "orphan",
		PassengerID: testPassengerID,
		ScheduleID:  "retired",
		DriverID:    "former-driver",
	})

	details, err := h.journeyService.GetJourneyDetails(context.Background(), "orphan", passengerCaller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.Schedule != nil || details.Driver != nil {
		t.Error("expected missing schedule and driver to be nil")
	}
	if details.Passenger == nil {
		t.Error("expected passenger to be loaded")
	}
}

func TestCancelJourney(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	journey := h.book(t, testPassengerID, domain.PaymentMethodOnline)

	if _, err := h.journeyService.CancelJourney(ctx, journey.ID, testOtherID); err != service.ErrNotJourneyOwner {
		t.Errorf("expected ErrNotJourneyOwner, got %v", err)
	}

	cancelled, err := h.journeyService.CancelJourney(ctx, journey.ID, testPassengerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.JourneyStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if stored := h.journeys.GetJourney(journey.ID); stored.Status != domain.JourneyStatusCancelled {
		t.Errorf("expected stored journey cancelled, got %s", stored.Status)
	}

	_, err = h.journeyService.CancelJourney(ctx, journey.ID, testPassengerID)
	if !errors.Is(err, service.ErrJourneyNotCancellable) {
		t.Fatalf("expected ErrJourneyNotCancellable, got %v", err)
	}
	if msg := service.Message(err); !strings.Contains(msg, "current status is cancelled") {
		t.Errorf("expected current status in message, got %q", msg)
	}
}

func TestCancelJourney_InProgressRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.journeys.AddJourney(&domain.Journey{ID: "riding", PassengerID: testPassengerID, Status: domain.JourneyStatusInProgress})

	_, err := h.journeyService.CancelJourney(context.Background(), "riding", testPassengerID)
	if !errors.Is(err, service.ErrJourneyNotCancellable) {
		t.Errorf("expected ErrJourneyNotCancellable, got %v", err)
	}
}

func TestVerifyJourney_RequiresDriver(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	journey := h.book(t, testPassengerID, domain.PaymentMethodOnline)

	for _, caller := range []domain.Caller{passengerCaller, adminCaller} {
		if _, err := h.journeyService.VerifyJourney(context.Background(), journey.ID, caller); err != service.ErrDriverRoleRequired {
			t.Errorf("%s: expected ErrDriverRoleRequired, got %v", caller.Role, err)
		}
	}
}

func TestVerifyJourney_InBusPaymentMarkedPaid(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	journey := h.book(t, testPassengerID, domain.PaymentMethodInBus)

	verified, err := h.journeyService.VerifyJourney(ctx, journey.ID, driverCaller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !verified.IsVerified || verified.VerifiedBy != testDriverID || verified.VerifiedAt.IsZero() {
		t.Errorf("expected verification recorded, got %+v", verified)
	}
	if verified.PaymentStatus != domain.JourneyPaymentPaid {
		t.Errorf("expected in-bus journey paid on boarding, got %s", verified.PaymentStatus)
	}
	if !ticketNumberPattern.MatchString(verified.TicketNumber) {
		t.Errorf("expected ticket number on payment, got %q", verified.TicketNumber)
	}

	otherDriver := domain.Caller{ID: "driver-2", Role: domain.RoleDriver}
	if _, err := h.journeyService.VerifyJourney(ctx, journey.ID, otherDriver); err != service.ErrJourneyAlreadyVerified {
		t.Errorf("expected ErrJourneyAlreadyVerified, got %v", err)
	}

	stored := h.journeys.GetJourney(journey.ID)
	if stored.VerifiedBy != testDriverID || !stored.VerifiedAt.Equal(verified.VerifiedAt) {
		t.Errorf("expected first verification kept, got %q at %v", stored.VerifiedBy, stored.VerifiedAt)
	}
	if stored.TicketNumber != verified.TicketNumber {
		t.Errorf("expected ticket %q kept, got %q", verified.TicketNumber, stored.TicketNumber)
	}
}

func TestSingleJourney_OnlinePaymentThenBoarding(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	journey := h.book(t, testPassengerID, domain.PaymentMethodOnline)
	if journey.Fare != 20 {
		t.Fatalf("expected fare of 20, got %v", journey.Fare)
	}

	order, err := h.paymentService.CreatePaymentOrder(ctx, service.CreatePaymentOrderRequest{
		JourneyID:   journey.ID,
		PassengerID: testPassengerID,
		Amount:      journey.Fare,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := h.paymentService.CapturePayment(ctx, order.OrderID); err != nil {
		t.Fatalf("capture: %v", err)
	}

	paid := h.journeys.GetJourney(journey.ID)
	if paid.PaymentStatus != domain.JourneyPaymentPaid || !ticketNumberPattern.MatchString(paid.TicketNumber) {
		t.Fatalf("expected paid journey with ticket, got %s / %q", paid.PaymentStatus, paid.TicketNumber)
	}

	verified, err := h.journeyService.VerifyJourney(ctx, journey.ID, driverCaller)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.IsVerified || verified.VerifiedBy != testDriverID {
		t.Errorf("expected verification recorded, got %+v", verified)
	}
	if verified.PaymentStatus != domain.JourneyPaymentPaid || verified.TicketNumber != paid.TicketNumber {
		t.Errorf("expected boarding to keep payment and ticket, got %s / %q", verified.PaymentStatus, verified.TicketNumber)
	}
	if verified.Status != domain.JourneyStatusBooked {
		t.Errorf("expected journey still booked, got %s", verified.Status)
	}
}

func TestVerifyJourney_OnlinePendingStaysPending(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	journey := h.book(t, testPassengerID, domain.PaymentMethodOnline)

	verified, err := h.journeyService.VerifyJourney(context.Background(), journey.ID, driverCaller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verified.PaymentStatus != domain.JourneyPaymentPending || verified.TicketNumber != "" {
		t.Errorf("expected online journey untouched by boarding, got %s / %q", verified.PaymentStatus, verified.TicketNumber)
	}
}

func TestVerifyTicketQR(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	journey := h.book(t, testPassengerID, domain.PaymentMethodInBus)

	payload, err := h.tickets.BuildPayload(journey, time.Now())
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	if _, err := h.journeyService.VerifyTicketQR(ctx, payload, passengerCaller); err != service.ErrDriverRoleRequired {
		t.Errorf("expected ErrDriverRoleRequired, got %v", err)
	}
	if _, err := h.journeyService.VerifyTicketQR(ctx, strings.Replace(payload, journey.ID, "forged", 1), driverCaller); err != service.ErrInvalidQRPayload {
		t.Errorf("expected ErrInvalidQRPayload for forged journey, got %v", err)
	}

	verified, err := h.journeyService.VerifyTicketQR(ctx, payload, driverCaller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verified.IsVerified || verified.PaymentStatus != domain.JourneyPaymentPaid {
		t.Errorf("expected verified and paid, got %+v", verified)
	}
}

func TestVerifyTicketQR_MismatchedJourneyRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	journey := h.book(t, testPassengerID, domain.PaymentMethodOnline)

	// Validly signed, but for a passenger who does not hold the journey.
	impostor := &domain.Journey{ID: journey.ID, PassengerID: testOtherID, ScheduleID: testScheduleID}
	payload, err := h.tickets.BuildPayload(impostor, time.Now())
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	if _, err := h.journeyService.VerifyTicketQR(context.Background(), payload, driverCaller); err != service.ErrInvalidQRPayload {
		t.Errorf("expected ErrInvalidQRPayload, got %v", err)
	}
}

func TestUpdateJourneyPaymentStatus_AssignsTicketOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	journey := h.book(t, testPassengerID, domain.PaymentMethodOnline)

	paid, err := h.journeyService.UpdateJourneyPaymentStatus(ctx, journey.ID, domain.JourneyPaymentPaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ticketNumberPattern.MatchString(paid.TicketNumber) {
		t.Fatalf("expected ticket number, got %q", paid.TicketNumber)
	}

	again, err := h.journeyService.UpdateJourneyPaymentStatus(ctx, journey.ID, domain.JourneyPaymentPaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.TicketNumber != paid.TicketNumber {
		t.Errorf("expected ticket number to be stable, got %q then %q", paid.TicketNumber, again.TicketNumber)
	}

	refunded, err := h.journeyService.UpdateJourneyPaymentStatus(ctx, journey.ID, domain.JourneyPaymentRefunded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refunded.TicketNumber != paid.TicketNumber {
		t.Error("expected refund to keep the ticket number")
	}
}

func TestUpdateJourneyPaymentStatus_RetriesTicketCollision(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	journey := h.book(t, testPassengerID, domain.PaymentMethodOnline)
	h.journeys.DuplicateTickets = 2

	paid, err := h.journeyService.UpdateJourneyPaymentStatus(context.Background(), journey.ID, domain.JourneyPaymentPaid)
	if err != nil {
		t.Fatalf("expected collision to be retried, got %v", err)
	}
	if paid.TicketNumber == "" {
		t.Error("expected a ticket number after retry")
	}
	if h.journeys.UpdateCallCount != 3 {
		t.Errorf("expected 3 update attempts, got %d", h.journeys.UpdateCallCount)
	}
}

func TestUpdateJourneyPaymentStatus_CollisionRetriesBounded(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	journey := h.book(t, testPassengerID, domain.PaymentMethodOnline)
	h.journeys.DuplicateTickets = 10

	_, err := h.journeyService.UpdateJourneyPaymentStatus(context.Background(), journey.ID, domain.JourneyPaymentPaid)
	if err == nil {
		t.Fatal("expected error after repeated collisions")
	}
	if h.journeys.UpdateCallCount != 3 {
		t.Errorf("expected 3 update attempts, got %d", h.journeys.UpdateCallCount)
	}
	if stored := h.journeys.GetJourney(journey.ID); stored.PaymentStatus != domain.JourneyPaymentPending {
		t.Errorf("expected journey to stay pending, got %s", stored.PaymentStatus)
	}
}

func TestUpdateJourneyPaymentStatus_Errors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	journey := h.book(t, testPassengerID, domain.PaymentMethodOnline)

	if _, err := h.journeyService.UpdateJourneyPaymentStatus(context.Background(), journey.ID, "settled"); err != service.ErrInvalidPaymentStatus {
		t.Errorf("expected ErrInvalidPaymentStatus, got %v", err)
	}
	if _, err := h.journeyService.UpdateJourneyPaymentStatus(context.Background(), "missing", domain.JourneyPaymentPaid); err != service.ErrJourneyNotFound {
		t.Errorf("expected ErrJourneyNotFound, got %v", err)
	}
}

func TestUpdateMultipleJourneyPaymentStatus_FailuresAreIndependent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	j1 := h.book(t, testPassengerID, domain.PaymentMethodOnline)
	j2 := h.book(t, testPassengerID, domain.PaymentMethodOnline)
	j3 := h.book(t, testPassengerID, domain.PaymentMethodOnline)
	h.journeys.FailUpdate(j2.ID, ErrMockTimeout)

	batch, err := h.journeyService.UpdateMultipleJourneyPaymentStatus(context.Background(),
		[]string{j1.ID, j2.ID, j3.ID}, domain.JourneyPaymentPaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if batch.AllSucceeded {
		t.Error("expected AllSucceeded to be false")
	}
	if failed := batch.Failed(); len(failed) != 1 || failed[0] != j2.ID {
		t.Errorf("expected only %s to fail, got %v", j2.ID, failed)
	}
	for _, id := range []string{j1.ID, j3.ID} {
		if stored := h.journeys.GetJourney(id); stored.PaymentStatus != domain.JourneyPaymentPaid {
			t.Errorf("expected %s paid, got %s", id, stored.PaymentStatus)
		}
	}
	if stored := h.journeys.GetJourney(j2.ID); stored.PaymentStatus != domain.JourneyPaymentPending {
		t.Errorf("expected %s to stay pending, got %s", j2.ID, stored.PaymentStatus)
	}
	if h.events.Count("JourneyFanOutFailure") != 1 {
		t.Errorf("expected one fan-out failure event, got %d", h.events.Count("JourneyFanOutFailure"))
	}
}

func TestUpdateMultipleJourneyPaymentStatus_DistinctTickets(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	ids := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		ids = append(ids, h.book(t, testPassengerID, domain.PaymentMethodOnline).ID)
	}

	batch, err := h.journeyService.UpdateMultipleJourneyPaymentStatus(context.Background(), ids, domain.JourneyPaymentPaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !batch.AllSucceeded {
		t.Fatalf("expected all updates to succeed, failed: %v", batch.Failed())
	}

	seen := make(map[string]bool)
	for _, res := range batch.Results {
		if seen[res.Journey.TicketNumber] {
			t.Errorf("ticket number %s issued twice", res.Journey.TicketNumber)
		}
		seen[res.Journey.TicketNumber] = true
	}
}

func TestUpdateMultipleJourneyPaymentStatus_RequiresJourneys(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	if _, err := h.journeyService.UpdateMultipleJourneyPaymentStatus(context.Background(), nil, domain.JourneyPaymentPaid); err != service.ErrMissingJourneyIDs {
		t.Errorf("expected ErrMissingJourneyIDs, got %v", err)
	}
}

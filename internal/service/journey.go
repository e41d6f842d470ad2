package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"transit/internal/domain"
	"transit/internal/logger"
	"transit/internal/repository"
)

const (
	// maxTicketAttempts bounds retries after a ticket number collision.
	maxTicketAttempts = 3

	// maxStaleRetries bounds reload-and-retry after a lost guarded write.
	maxStaleRetries = 3

	// fanOutConcurrency caps parallel journey updates in a group.
	fanOutConcurrency = 10
)

// EventRecorder records custom monitoring events.
type EventRecorder interface {
	RecordCustomEvent(eventType string, params map[string]interface{})
}

// JourneyService owns journey booking and state transitions.
type JourneyService struct {
	journeyRepo   repository.JourneyRepository
	scheduleRepo  repository.ScheduleRepository
	routeRepo     repository.RouteRepository
	passengerRepo repository.PassengerRepository
	driverRepo    repository.DriverRepository
	tickets       *TicketIssuer
	notifier      *NotificationService
	events        EventRecorder
	log           logger.ILogger
	now           func() time.Time
}

// NewJourneyService creates a new JourneyService. events may be nil.
func NewJourneyService(
	journeyRepo repository.JourneyRepository,
	scheduleRepo repository.ScheduleRepository,
	routeRepo repository.RouteRepository,
	passengerRepo repository.PassengerRepository,
	driverRepo repository.DriverRepository,
	tickets *TicketIssuer,
	notifier *NotificationService,
	events EventRecorder,
	log logger.ILogger,
) *JourneyService {
	return &JourneyService{
		journeyRepo:   journeyRepo,
		scheduleRepo:  scheduleRepo,
		routeRepo:     routeRepo,
		passengerRepo: passengerRepo,
		driverRepo:    driverRepo,
		tickets:       tickets,
		notifier:      notifier,
		events:        events,
		log:           log,
		now:           time.Now,
	}
}

// BookJourneyRequest contains the parameters for booking a journey.
type BookJourneyRequest struct {
	PassengerID             string
	ScheduleID              string
	PaymentMethod           domain.PaymentMethod
	AdditionalPassengerInfo *domain.PassengerInfo
}

// BookJourney creates a journey for a schedule. The journey starts with a
// pending payment and no ticket number regardless of payment method.
func (s *JourneyService) BookJourney(ctx context.Context, req BookJourneyRequest) (*domain.Journey, error) {
	if req.ScheduleID == "" {
		return nil, ErrMissingScheduleID
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodOnline
	}
	if method != domain.PaymentMethodOnline && method != domain.PaymentMethodInBus {
		return nil, ErrInvalidPaymentMethod
	}

	schedule, err := s.scheduleRepo.GetByID(ctx, req.ScheduleID)
	if err != nil {
		return nil, lookupError(err, ErrScheduleNotFound)
	}

	route, err := s.routeRepo.GetByID(ctx, schedule.RouteID)
	if err != nil {
		return nil, lookupError(err, ErrRouteNotFound)
	}

	now := s.now()
	journey := &domain.Journey{
		ID:                      uuid.New().String(),
		ScheduleID:              schedule.ID,
		PassengerID:             req.PassengerID,
		DriverID:                schedule.DriverID,
		RouteDetails:            route.Snapshot(),
		StartTime:               schedule.StartTime,
		EndTime:                 schedule.EndTime,
		Status:                  domain.JourneyStatusBooked,
		PaymentStatus:           domain.JourneyPaymentPending,
		PaymentMethod:           method,
		Fare:                    CalculateFare(route),
		IsAdditionalPassenger:   req.AdditionalPassengerInfo != nil,
		AdditionalPassengerInfo: req.AdditionalPassengerInfo,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	journey.QRCode, err = s.tickets.IssueQR(journey, now)
	if err != nil {
		return nil, wrapError(KindInternal, "failed to generate ticket QR code", err)
	}

	if err := s.journeyRepo.Create(ctx, journey); err != nil {
		return nil, writeError(err)
	}

	s.log.Info("journey booked",
		logger.String("journey_id", journey.ID),
		logger.String("schedule_id", journey.ScheduleID),
		logger.String("passenger_id", journey.PassengerID),
		logger.Float64("fare", journey.Fare),
		logger.Bool("additional_passenger", journey.IsAdditionalPassenger),
	)
	s.notify(ctx, journey, s.notifier.NotifyJourneyBooked)

	return journey, nil
}

// Pagination describes one page of a listing.
type Pagination struct {
	Current      int `json:"current"`
	Total        int `json:"total"`
	TotalRecords int `json:"totalRecords"`
}

// normalizePage applies the default and maximum page size.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func newPagination(page, limit, total int) Pagination {
	return Pagination{
		Current:      page,
		Total:        (total + limit - 1) / limit,
		TotalRecords: total,
	}
}

// JourneyPage is one page of a passenger's journeys.
type JourneyPage struct {
	Journeys   []*domain.Journey
	Pagination Pagination
}

// GetPassengerJourneys lists a passenger's journeys, newest start time first.
func (s *JourneyService) GetPassengerJourneys(ctx context.Context, passengerID string, status domain.JourneyStatus, page, limit int) (*JourneyPage, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %s", newError(KindValidation, "invalid journey status"), status)
	}

	page, limit = normalizePage(page, limit)
	journeys, total, err := s.journeyRepo.ListByPassenger(ctx, repository.JourneyFilter{
		PassengerID: passengerID,
		Status:      status,
		Offset:      (page - 1) * limit,
		Limit:       limit,
	})
	if err != nil {
		return nil, wrapError(KindInternal, "failed to list journeys", err)
	}

	return &JourneyPage{
		Journeys:   journeys,
		Pagination: newPagination(page, limit, total),
	}, nil
}

// journeyAccess decides, per caller role, whether a journey's details are visible.
var journeyAccess = map[domain.Role]func(caller domain.Caller, journey *domain.Journey) bool{
	domain.RolePassenger: func(caller domain.Caller, journey *domain.Journey) bool {
		return journey.PassengerID == caller.ID
	},
	domain.RoleDriver: func(domain.Caller, *domain.Journey) bool { return true },
	domain.RoleAdmin:  func(domain.Caller, *domain.Journey) bool { return true },
}

// JourneyDetails is a journey with its schedule, passenger and driver.
type JourneyDetails struct {
	Journey   *domain.Journey
	Schedule  *domain.Schedule
	Passenger *domain.Passenger
	Driver    *domain.Driver
}

// GetJourneyDetails returns a journey with its related records. Related
// records that no longer exist are left nil.
func (s *JourneyService) GetJourneyDetails(ctx context.Context, journeyID string, caller domain.Caller) (*JourneyDetails, error) {
	journey, err := s.journeyRepo.GetByID(ctx, journeyID)
	if err != nil {
		return nil, lookupError(err, ErrJourneyNotFound)
	}

	allowed, ok := journeyAccess[caller.Role]
	if !ok || !allowed(caller, journey) {
		return nil, ErrNotJourneyOwner
	}

	details := &JourneyDetails{Journey: journey}

	if details.Schedule, err = optional(s.scheduleRepo.GetByID(ctx, journey.ScheduleID)); err != nil {
		return nil, err
	}
	if details.Passenger, err = optional(s.passengerRepo.GetByID(ctx, journey.PassengerID)); err != nil {
		return nil, err
	}
	if journey.DriverID != "" {
		if details.Driver, err = optional(s.driverRepo.GetByID(ctx, journey.DriverID)); err != nil {
			return nil, err
		}
	}

	return details, nil
}

// optional turns a not-found read into a nil result.
func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(KindInternal, "internal error", err)
	}
	return v, nil
}

// CancelJourney cancels a booked journey owned by passengerID.
func (s *JourneyService) CancelJourney(ctx context.Context, journeyID, passengerID string) (*domain.Journey, error) {
	journey, err := s.journeyRepo.GetByID(ctx, journeyID)
	if err != nil {
		return nil, lookupError(err, ErrJourneyNotFound)
	}

	if journey.PassengerID != passengerID {
		return nil, ErrNotJourneyOwner
	}

	expected := journey.State()
	if err := journey.Cancel(s.now()); err != nil {
		return nil, fmt.Errorf("%w: current status is %s", ErrJourneyNotCancellable, journey.Status)
	}

	if err := s.journeyRepo.UpdateGuarded(ctx, journey, expected); err != nil {
		return nil, writeError(err)
	}

	s.log.Info("journey cancelled", logger.String("journey_id", journey.ID), logger.String("passenger_id", passengerID))
	s.notify(ctx, journey, s.notifier.NotifyJourneyCancelled)

	return journey, nil
}

// VerifyJourney records boarding verification by a driver.
func (s *JourneyService) VerifyJourney(ctx context.Context, journeyID string, caller domain.Caller) (*domain.Journey, error) {
	if caller.Role != domain.RoleDriver {
		return nil, ErrDriverRoleRequired
	}

	journey, err := s.journeyRepo.GetByID(ctx, journeyID)
	if err != nil {
		return nil, lookupError(err, ErrJourneyNotFound)
	}

	return s.verify(ctx, journey, caller.ID)
}

// VerifyTicketQR verifies a journey from a scanned QR payload.
func (s *JourneyService) VerifyTicketQR(ctx context.Context, payload string, caller domain.Caller) (*domain.Journey, error) {
	if caller.Role != domain.RoleDriver {
		return nil, ErrDriverRoleRequired
	}

	ticket, err := s.tickets.VerifyPayload(payload)
	if err != nil {
		return nil, err
	}

	journey, err := s.journeyRepo.GetByID(ctx, ticket.JourneyID)
	if err != nil {
		return nil, lookupError(err, ErrJourneyNotFound)
	}

	if journey.PassengerID != ticket.PassengerID || journey.ScheduleID != ticket.ScheduleID {
		return nil, ErrInvalidQRPayload
	}

	return s.verify(ctx, journey, caller.ID)
}

func (s *JourneyService) verify(ctx context.Context, journey *domain.Journey, driverID string) (*domain.Journey, error) {
	expected := journey.State()
	hadTicket := journey.TicketNumber != ""
	now := s.now()

	if err := journey.Verify(driverID, now, s.ticketFunc(now)); err != nil {
		return nil, ErrJourneyAlreadyVerified
	}

	if err := s.save(ctx, journey, expected, hadTicket); err != nil {
		return nil, err
	}

	s.log.Info("journey verified",
		logger.String("journey_id", journey.ID),
		logger.String("driver_id", driverID),
		logger.String("payment_status", string(journey.PaymentStatus)),
	)
	s.notify(ctx, journey, s.notifier.NotifyJourneyVerified)

	return journey, nil
}

// UpdateJourneyPaymentStatus sets a journey's payment status. Moving to paid
// assigns a ticket number if the journey has none.
func (s *JourneyService) UpdateJourneyPaymentStatus(ctx context.Context, journeyID string, status domain.JourneyPaymentStatus) (*domain.Journey, error) {
	if !status.Valid() {
		return nil, ErrInvalidPaymentStatus
	}

	for attempt := 1; ; attempt++ {
		journey, err := s.journeyRepo.GetByID(ctx, journeyID)
		if err != nil {
			return nil, lookupError(err, ErrJourneyNotFound)
		}

		if journey.PaymentStatus == status && (status != domain.JourneyPaymentPaid || journey.TicketNumber != "") {
			return journey, nil
		}

		expected := journey.State()
		hadTicket := journey.TicketNumber != ""
		now := s.now()
		journey.SetPaymentStatus(status, now, s.ticketFunc(now))

		err = s.save(ctx, journey, expected, hadTicket)
		if errors.Is(err, repository.ErrStaleWrite) && attempt < maxStaleRetries {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.log.Info("journey payment status updated",
			logger.String("journey_id", journey.ID),
			logger.String("payment_status", string(status)),
			logger.String("ticket_number", journey.TicketNumber),
		)
		s.notify(ctx, journey, s.notifier.NotifyJourneyPaymentUpdated)

		return journey, nil
	}
}

// JourneyUpdateResult is the outcome of updating one journey in a group.
type JourneyUpdateResult struct {
	JourneyID string
	Journey   *domain.Journey
	Err       error
}

// BatchUpdateResult is the outcome of a group payment status update.
type BatchUpdateResult struct {
	Results      []JourneyUpdateResult
	AllSucceeded bool
}

// Failed returns the ids of the journeys that were not updated.
func (r *BatchUpdateResult) Failed() []string {
	var ids []string
	for _, res := range r.Results {
		if res.Err != nil {
			ids = append(ids, res.JourneyID)
		}
	}
	return ids
}

// UpdateMultipleJourneyPaymentStatus updates every journey independently and
// concurrently. A failed journey does not undo the others.
func (s *JourneyService) UpdateMultipleJourneyPaymentStatus(ctx context.Context, journeyIDs []string, status domain.JourneyPaymentStatus) (*BatchUpdateResult, error) {
	if len(journeyIDs) == 0 {
		return nil, ErrMissingJourneyIDs
	}
	if !status.Valid() {
		return nil, ErrInvalidPaymentStatus
	}

	results := make([]JourneyUpdateResult, len(journeyIDs))

	var g errgroup.Group
	g.SetLimit(fanOutConcurrency)
	for i, id := range journeyIDs {
		g.Go(func() error {
			journey, err := s.UpdateJourneyPaymentStatus(ctx, id, status)
			results[i] = JourneyUpdateResult{JourneyID: id, Journey: journey, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchUpdateResult{Results: results, AllSucceeded: true}
	for _, res := range results {
		if res.Err != nil {
			batch.AllSucceeded = false
			s.log.Error("journey payment status update failed",
				logger.String("journey_id", res.JourneyID),
				logger.String("payment_status", string(status)),
				logger.Error(res.Err),
			)
		}
	}

	if !batch.AllSucceeded {
		s.recordEvent("JourneyFanOutFailure", map[string]interface{}{
			"paymentStatus": string(status),
			"journeyCount":  len(journeyIDs),
			"failedCount":   len(batch.Failed()),
		})
	}

	return batch, nil
}

// save writes a guarded journey update. A ticket number assigned by this
// update is regenerated if it collides with an existing one.
func (s *JourneyService) save(ctx context.Context, journey *domain.Journey, expected domain.JourneyState, hadTicket bool) error {
	for attempt := 1; ; attempt++ {
		err := s.journeyRepo.UpdateGuarded(ctx, journey, expected)
		if errors.Is(err, repository.ErrDuplicateTicket) && !hadTicket && attempt < maxTicketAttempts {
			journey.TicketNumber = s.tickets.TicketNumber(s.now())
			continue
		}
		if err != nil {
			return writeError(err)
		}
		return nil
	}
}

func (s *JourneyService) ticketFunc(now time.Time) func() string {
	return func() string { return s.tickets.TicketNumber(now) }
}

func (s *JourneyService) notify(ctx context.Context, journey *domain.Journey, send func(context.Context, *domain.Journey) error) {
	if err := send(ctx, journey); err != nil {
		s.log.Warning("journey notification failed", logger.String("journey_id", journey.ID), logger.Error(err))
	}
}

func (s *JourneyService) recordEvent(eventType string, params map[string]interface{}) {
	if s.events != nil {
		s.events.RecordCustomEvent(eventType, params)
	}
}

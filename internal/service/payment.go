package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"transit/internal/domain"
	"transit/internal/logger"
	"transit/internal/redis"
	"transit/internal/repository"
)

const (
	captureLockTTL = 30 * time.Second

	maxCaptureWriteAttempts = 3
	captureWriteBackoff     = 50 * time.Millisecond
)

// Settler fans a payment outcome out to journeys.
type Settler interface {
	Settle(ctx context.Context, paymentID string, status domain.JourneyPaymentStatus, journeyIDs []string) (*domain.SettlementIntent, error)
}

// RedirectURLs are where the provider sends the payer after approval or cancellation.
type RedirectURLs struct {
	ReturnURL string
	CancelURL string
}

// PaymentService orchestrates provider orders, captures and refunds.
type PaymentService struct {
	paymentRepo   repository.PaymentRepository
	journeyRepo   repository.JourneyRepository
	passengerRepo repository.PassengerRepository
	provider      PaymentProvider
	settler       Settler
	locker        redis.Locker
	notifier      *NotificationService
	urls          RedirectURLs
	log           logger.ILogger
	now           func() time.Time
}

// NewPaymentService creates a new PaymentService. locker may be nil.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	journeyRepo repository.JourneyRepository,
	passengerRepo repository.PassengerRepository,
	provider PaymentProvider,
	settler Settler,
	locker redis.Locker,
	notifier *NotificationService,
	urls RedirectURLs,
	log logger.ILogger,
) *PaymentService {
	return &PaymentService{
		paymentRepo:   paymentRepo,
		journeyRepo:   journeyRepo,
		passengerRepo: passengerRepo,
		provider:      provider,
		settler:       settler,
		locker:        locker,
		notifier:      notifier,
		urls:          urls,
		log:           log,
		now:           time.Now,
	}
}

// RequestMetadata is the client context stored on a payment.
type RequestMetadata struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// PaymentOrder is a newly opened provider order.
type PaymentOrder struct {
	PaymentID      string               `json:"paymentId"`
	OrderID        string               `json:"orderId"`
	Status         domain.PaymentStatus `json:"status"`
	Links          []ProviderLink       `json:"links"`
	PassengerCount int                  `json:"passengerCount"`
	TotalAmount    float64              `json:"totalAmount"`
	JourneyIDs     []string             `json:"journeyIds"`
}

// CreatePaymentOrderRequest contains the parameters for paying one journey.
type CreatePaymentOrderRequest struct {
	JourneyID   string
	PassengerID string
	Amount      float64
	Metadata    RequestMetadata
}

// CreatePaymentOrder opens a provider order for a single journey.
func (s *PaymentService) CreatePaymentOrder(ctx context.Context, req CreatePaymentOrderRequest) (*PaymentOrder, error) {
	journey, err := s.loadOwnedJourney(ctx, req.JourneyID, req.PassengerID)
	if err != nil {
		return nil, err
	}

	if req.Amount <= 0 {
		return nil, ErrInvalidPaymentAmount
	}

	return s.openOrder(ctx, journey, nil, req.Amount, req.Metadata,
		fmt.Sprintf("Bus Journey payment for route %s", routeName(journey)))
}

// PayJourney opens a provider order for a single journey at its booked fare.
func (s *PaymentService) PayJourney(ctx context.Context, journeyID, passengerID string, meta RequestMetadata) (*PaymentOrder, error) {
	journey, err := s.journeyRepo.GetByID(ctx, journeyID)
	if err != nil {
		return nil, lookupError(err, ErrJourneyNotFound)
	}

	return s.CreatePaymentOrder(ctx, CreatePaymentOrderRequest{
		JourneyID:   journey.ID,
		PassengerID: passengerID,
		Amount:      journey.Fare,
		Metadata:    meta,
	})
}

// CreateSchedulePaymentRequest contains the parameters for paying a passenger group.
type CreateSchedulePaymentRequest struct {
	JourneyID            string
	PassengerID          string
	TotalAmount          float64
	AdditionalJourneyIDs []string
	Metadata             RequestMetadata
}

// CreateSchedulePayment opens one provider order covering a primary journey
// and its additional passengers' journeys.
func (s *PaymentService) CreateSchedulePayment(ctx context.Context, req CreateSchedulePaymentRequest) (*PaymentOrder, error) {
	count := 1 + len(req.AdditionalJourneyIDs)
	if count < domain.MinPassengerCount || count > domain.MaxPassengerCount {
		return nil, ErrInvalidPassengerCount
	}

	journey, err := s.loadOwnedJourney(ctx, req.JourneyID, req.PassengerID)
	if err != nil {
		return nil, err
	}

	if req.TotalAmount <= 0 {
		return nil, ErrInvalidPaymentAmount
	}

	return s.openOrder(ctx, journey, req.AdditionalJourneyIDs, req.TotalAmount, req.Metadata,
		fmt.Sprintf("Bus Ticket payment - %d passenger(s) for route %s", count, routeName(journey)))
}

func (s *PaymentService) loadOwnedJourney(ctx context.Context, journeyID, passengerID string) (*domain.Journey, error) {
	journey, err := s.journeyRepo.GetByID(ctx, journeyID)
	if err != nil {
		return nil, lookupError(err, ErrJourneyNotFound)
	}

	if _, err := s.passengerRepo.GetByID(ctx, passengerID); err != nil {
		return nil, lookupError(err, ErrPassengerNotFound)
	}

	if journey.PassengerID != passengerID {
		return nil, ErrNotJourneyOwner
	}

	if journey.Status == domain.JourneyStatusCancelled {
		return nil, ErrJourneyNotPayable
	}
	if journey.PaymentStatus == domain.JourneyPaymentPaid {
		return nil, ErrJourneyAlreadyPaid
	}

	return journey, nil
}

func (s *PaymentService) openOrder(ctx context.Context, journey *domain.Journey, additional []string, amount float64, meta RequestMetadata, description string) (*PaymentOrder, error) {
	order, err := s.provider.CreateOrder(ctx, OrderRequest{
		Amount:      amount,
		Currency:    domain.CurrencyUSD,
		Description: description,
		ReturnURL:   s.urls.ReturnURL,
		CancelURL:   s.urls.CancelURL,
	})
	if err != nil {
		s.log.Error("provider order creation failed", logger.String("journey_id", journey.ID), logger.Error(err))
		return nil, wrapError(KindProvider, "failed to create payment order", err)
	}

	now := s.now()
	payment := &domain.Payment{
		ID:                 uuid.New().String(),
		JourneyID:          journey.ID,
		AdditionalJourneys: additional,
		PassengerID:        journey.PassengerID,
		PassengerCount:     1 + len(additional),
		Amount:             amount,
		Currency:           domain.CurrencyUSD,
		Status:             domain.PaymentStatusPending,
		PayPalOrderID:      order.OrderID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	payment.Metadata = domain.PaymentMetadata{
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		RequestID:      meta.RequestID,
		AttemptCount:   1,
		PassengerCount: payment.PassengerCount,
		Journeys:       payment.JourneyIDs(),
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, writeError(err)
	}

	s.log.Info("payment order created",
		logger.String("payment_id", payment.ID),
		logger.String("order_id", payment.PayPalOrderID),
		logger.Float64("amount", payment.Amount),
		logger.Int("passenger_count", payment.PassengerCount),
	)

	return &PaymentOrder{
		PaymentID:      payment.ID,
		OrderID:        payment.PayPalOrderID,
		Status:         payment.Status,
		Links:          order.Links,
		PassengerCount: payment.PassengerCount,
		TotalAmount:    payment.Amount,
		JourneyIDs:     payment.JourneyIDs(),
	}, nil
}

// CaptureResult is the outcome of capturing a payment.
type CaptureResult struct {
	PaymentID      string               `json:"paymentId"`
	Status         domain.PaymentStatus `json:"status"`
	CaptureID      string               `json:"captureId"`
	Amount         float64              `json:"amount"`
	Journeys       []string             `json:"journeys"`
	PassengerCount int                  `json:"passengerCount"`
	Replayed       bool                 `json:"replayed"`
}

func captureResult(payment *domain.Payment, replayed bool) *CaptureResult {
	return &CaptureResult{
		PaymentID:      payment.ID,
		Status:         payment.Status,
		CaptureID:      payment.CaptureID(),
		Amount:         payment.Amount,
		Journeys:       payment.JourneyIDs(),
		PassengerCount: payment.PassengerCount,
		Replayed:       replayed,
	}
}

// checkCapturable returns the recorded result for a completed payment, an
// error for a payment that cannot be captured, or neither for a pending one.
func checkCapturable(payment *domain.Payment) (*CaptureResult, error) {
	switch payment.Status {
	case domain.PaymentStatusPending:
		return nil, nil
	case domain.PaymentStatusCompleted:
		return captureResult(payment, true), nil
	case domain.PaymentStatusProcessing:
		return nil, ErrCaptureInProgress
	default:
		return nil, fmt.Errorf("%w: current status is %s", ErrPaymentNotCapturable, payment.Status)
	}
}

// CapturePayment captures an approved provider order and marks every journey
// of the payment as paid. Capturing a completed payment again returns the
// recorded result without contacting the provider. A payment left processing
// past the lock TTL is reclaimed and reconciled against the provider order.
func (s *PaymentService) CapturePayment(ctx context.Context, orderID string) (*CaptureResult, error) {
	if orderID == "" {
		return nil, ErrMissingOrderID
	}

	payment, err := s.paymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, ErrPaymentNotFound)
	}

	if !s.claimExpired(payment) {
		if res, err := checkCapturable(payment); res != nil || err != nil {
			return res, err
		}
	}

	if s.locker != nil {
		lockName := "capture:" + orderID
		acquired, err := s.locker.AcquireLock(ctx, lockName, captureLockTTL)
		if err != nil {
			return nil, wrapError(KindInternal, "internal error", err)
		}
		if !acquired {
			return nil, ErrCaptureInProgress
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockName); err != nil {
				s.log.Warning("failed to release capture lock", logger.String("order_id", orderID), logger.Error(err))
			}
		}()

		if payment, err = s.paymentRepo.GetByOrderID(ctx, orderID); err != nil {
			return nil, lookupError(err, ErrPaymentNotFound)
		}
	}

	var captured *ProviderCapture
	reclaimed := s.claimExpired(payment)
	if reclaimed {
		s.log.Warning("reclaiming stale capture",
			logger.String("payment_id", payment.ID),
			logger.String("order_id", orderID),
		)
		captured, err = s.provider.LookupCapture(ctx, orderID)
		if err == nil && captured == nil {
			captured, err = s.provider.CaptureOrder(ctx, orderID)
		}
	} else {
		if res, err := checkCapturable(payment); res != nil || err != nil {
			return res, err
		}
		if res, err := s.claim(ctx, payment); res != nil || err != nil {
			return res, err
		}
		captured, err = s.provider.CaptureOrder(ctx, orderID)
	}

	if err != nil {
		s.log.Error("provider capture failed",
			logger.String("payment_id", payment.ID),
			logger.String("order_id", orderID),
			logger.Error(err),
		)
		// A reclaimed order may already be captured, so it stays processing
		// until the provider can be read again.
		if !reclaimed {
			s.releaseClaim(ctx, payment)
		}
		return nil, wrapError(KindProvider, "payment capture failed", err)
	}

	switch captured.Status {
	case ProviderStatusCompleted:
	case ProviderStatusVoided:
		s.failPayment(ctx, payment)
		return nil, ErrPaymentVoided
	default:
		s.log.Warning("provider capture not completed",
			logger.String("payment_id", payment.ID),
			logger.String("provider_status", captured.Status),
		)
		s.releaseClaim(ctx, payment)
		return nil, fmt.Errorf("%w: provider status is %s", newError(KindProvider, "payment capture was not completed"), captured.Status)
	}

	now := s.now()
	payment.Status = domain.PaymentStatusCompleted
	payment.PayerID = captured.PayerID
	payment.TransactionDetails = &domain.TransactionDetails{
		CaptureID:                captured.CaptureID,
		PaymentMethod:            "PayPal",
		CaptureStatus:            captured.Status,
		ProcessorResponseCode:    captured.ResponseCode,
		ProcessorResponseMessage: captured.ResponseMessage,
		PayerID:                  captured.PayerID,
		Timestamp:                now,
		RawResponse:              captured.Raw,
	}
	payment.UpdatedAt = now

	if err := s.recordCapture(ctx, payment); err != nil {
		s.log.Error("failed to record captured payment",
			logger.String("payment_id", payment.ID),
			logger.String("capture_id", captured.CaptureID),
			logger.Error(err),
		)
		return nil, writeError(err)
	}

	s.log.Info("payment captured",
		logger.String("payment_id", payment.ID),
		logger.String("capture_id", captured.CaptureID),
		logger.Float64("amount", payment.Amount),
		logger.Strings("journeys", payment.JourneyIDs()),
	)

	s.settle(ctx, payment, domain.JourneyPaymentPaid, payment.JourneyIDs())

	if err := s.notifier.NotifyPaymentCaptured(ctx, payment); err != nil {
		s.log.Warning("payment notification failed", logger.String("payment_id", payment.ID), logger.Error(err))
	}

	return captureResult(payment, false), nil
}

// claimExpired reports whether a processing payment has outlived its capture
// lock, leaving no capture in flight.
func (s *PaymentService) claimExpired(payment *domain.Payment) bool {
	return payment.Status == domain.PaymentStatusProcessing &&
		s.now().Sub(payment.UpdatedAt) >= captureLockTTL
}

// claim moves a pending payment to processing. A lost race returns the
// recorded result or the current conflict.
func (s *PaymentService) claim(ctx context.Context, payment *domain.Payment) (*CaptureResult, error) {
	payment.Status = domain.PaymentStatusProcessing
	payment.UpdatedAt = s.now()
	err := s.paymentRepo.UpdateGuarded(ctx, payment, domain.PaymentStatusPending)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, repository.ErrStaleWrite) {
		return nil, writeError(err)
	}

	current, err := s.paymentRepo.GetByOrderID(ctx, payment.PayPalOrderID)
	if err != nil {
		return nil, lookupError(err, ErrPaymentNotFound)
	}
	if res, err := checkCapturable(current); res != nil || err != nil {
		return res, err
	}
	return nil, ErrConcurrentModification
}

// recordCapture writes the completed payment. The provider has already taken
// the money, so transient failures are retried past caller cancellation.
func (s *PaymentService) recordCapture(ctx context.Context, payment *domain.Payment) error {
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 1; attempt <= maxCaptureWriteAttempts; attempt++ {
		err = s.paymentRepo.UpdateGuarded(ctx, payment, domain.PaymentStatusProcessing)
		if err == nil || errors.Is(err, repository.ErrStaleWrite) {
			return err
		}
		if attempt < maxCaptureWriteAttempts {
			s.log.Warning("retrying captured payment write",
				logger.String("payment_id", payment.ID),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
			time.Sleep(time.Duration(attempt) * captureWriteBackoff)
		}
	}
	return err
}

// releaseClaim returns a processing payment to pending after a failed capture attempt.
func (s *PaymentService) releaseClaim(ctx context.Context, payment *domain.Payment) {
	payment.Status = domain.PaymentStatusPending
	payment.Metadata.AttemptCount++
	payment.UpdatedAt = s.now()

	if err := s.paymentRepo.UpdateGuarded(context.WithoutCancel(ctx), payment, domain.PaymentStatusProcessing); err != nil {
		s.log.Error("failed to release capture claim", logger.String("payment_id", payment.ID), logger.Error(err))
	}
}

// failPayment marks a voided payment failed along with its journeys.
func (s *PaymentService) failPayment(ctx context.Context, payment *domain.Payment) {
	payment.Status = domain.PaymentStatusFailed
	payment.UpdatedAt = s.now()

	if err := s.paymentRepo.UpdateGuarded(context.WithoutCancel(ctx), payment, domain.PaymentStatusProcessing); err != nil {
		s.log.Error("failed to record voided payment", logger.String("payment_id", payment.ID), logger.Error(err))
		return
	}

	s.settle(ctx, payment, domain.JourneyPaymentFailed, payment.JourneyIDs())

	if err := s.notifier.NotifyPaymentFailed(ctx, payment); err != nil {
		s.log.Warning("payment notification failed", logger.String("payment_id", payment.ID), logger.Error(err))
	}
}

func (s *PaymentService) settle(ctx context.Context, payment *domain.Payment, status domain.JourneyPaymentStatus, journeyIDs []string) {
	intent, err := s.settler.Settle(ctx, payment.ID, status, journeyIDs)
	if err != nil {
		s.log.Error("settlement failed",
			logger.String("payment_id", payment.ID),
			logger.String("target_status", string(status)),
			logger.Error(err),
		)
		return
	}

	if pending := intent.PendingJourneyIDs(); len(pending) > 0 {
		s.log.Warning("settlement incomplete, queued for retry",
			logger.String("payment_id", payment.ID),
			logger.String("intent_id", intent.ID),
			logger.Strings("pending_journeys", pending),
		)
	}
}

// RefundScope selects which journeys a refund is propagated to.
type RefundScope string

const (
	RefundScopePrimary RefundScope = "primary"
	RefundScopeGroup   RefundScope = "group"
)

// RefundRequest contains the parameters for refunding a payment.
type RefundRequest struct {
	PaymentID string
	Reason    string
	Caller    domain.Caller
	Scope     RefundScope
}

// RefundResult is the outcome of a refund.
type RefundResult struct {
	RefundID string               `json:"refundId"`
	Status   domain.PaymentStatus `json:"status"`
	Amount   float64              `json:"amount"`
	Currency string               `json:"currency"`
	Journeys []string             `json:"journeys"`
}

// ProcessRefund refunds the full captured amount. The primary journey is
// marked refunded, or every journey of the group when Scope is group.
func (s *PaymentService) ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	scope := req.Scope
	if scope == "" {
		scope = RefundScopePrimary
	}
	if scope != RefundScopePrimary && scope != RefundScopeGroup {
		return nil, ErrInvalidRefundScope
	}

	payment, err := s.paymentRepo.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, lookupError(err, ErrPaymentNotFound)
	}

	if !canAccessPayment(req.Caller, payment) {
		return nil, ErrNotPaymentOwner
	}

	if payment.Status == domain.PaymentStatusRefunded {
		return nil, ErrPaymentAlreadyRefunded
	}
	if payment.CaptureID() == "" ||
		(payment.Status != domain.PaymentStatusCompleted && payment.Status != domain.PaymentStatusRefundFailed) {
		return nil, ErrPaymentNotCaptured
	}

	expected := payment.Status
	refund, err := s.provider.RefundCapture(ctx, RefundCaptureRequest{
		CaptureID: payment.CaptureID(),
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Note:      "Refund for journey: " + req.Reason,
	})
	if err == nil && (refund.Status == domain.RefundStatusFailed || refund.Status == domain.RefundStatusCancelled) {
		err = fmt.Errorf("refund %s: provider status is %s", refund.RefundID, refund.Status)
	}
	now := s.now()
	if err != nil {
		s.log.Error("provider refund failed", logger.String("payment_id", payment.ID), logger.Error(err))

		payment.Status = domain.PaymentStatusRefundFailed
		payment.RefundDetails = &domain.RefundDetails{
			Reason:     req.Reason,
			RefundedAt: now,
			Status:     domain.RefundStatusFailed,
			Amount:     payment.Amount,
			Error:      err.Error(),
		}
		payment.UpdatedAt = now
		if uerr := s.paymentRepo.UpdateGuarded(context.WithoutCancel(ctx), payment, expected); uerr != nil {
			s.log.Error("failed to record refund failure", logger.String("payment_id", payment.ID), logger.Error(uerr))
		}
		return nil, wrapError(KindProvider, "refund failed", err)
	}

	refundStatus := refund.Status
	if refundStatus == "" {
		refundStatus = domain.RefundStatusCompleted
	}

	payment.Status = domain.PaymentStatusRefunded
	payment.RefundDetails = &domain.RefundDetails{
		RefundID:   refund.RefundID,
		Reason:     req.Reason,
		RefundedAt: now,
		Status:     refundStatus,
		Amount:     refund.Amount,
	}
	payment.UpdatedAt = now
	if err := s.paymentRepo.UpdateGuarded(ctx, payment, expected); err != nil {
		s.log.Error("failed to record refund",
			logger.String("payment_id", payment.ID),
			logger.String("refund_id", refund.RefundID),
			logger.Error(err),
		)
		return nil, writeError(err)
	}

	journeys := []string{payment.JourneyID}
	if scope == RefundScopeGroup {
		journeys = payment.JourneyIDs()
	}

	s.log.Info("payment refunded",
		logger.String("payment_id", payment.ID),
		logger.String("refund_id", refund.RefundID),
		logger.String("scope", string(scope)),
		logger.Float64("amount", refund.Amount),
	)

	s.settle(ctx, payment, domain.JourneyPaymentRefunded, journeys)

	if err := s.notifier.NotifyPaymentRefunded(ctx, payment); err != nil {
		s.log.Warning("payment notification failed", logger.String("payment_id", payment.ID), logger.Error(err))
	}

	return &RefundResult{
		RefundID: refund.RefundID,
		Status:   payment.Status,
		Amount:   refund.Amount,
		Currency: payment.Currency,
		Journeys: journeys,
	}, nil
}

func canAccessPayment(caller domain.Caller, payment *domain.Payment) bool {
	return caller.Role == domain.RoleAdmin || payment.PassengerID == caller.ID
}

// PaymentPage is one page of a passenger's payments.
type PaymentPage struct {
	Payments   []*domain.Payment
	Pagination Pagination
}

// GetPaymentHistory lists a passenger's payments, newest first.
func (s *PaymentService) GetPaymentHistory(ctx context.Context, passengerID string, page, limit int) (*PaymentPage, error) {
	page, limit = normalizePage(page, limit)

	payments, total, err := s.paymentRepo.ListByPassenger(ctx, passengerID, (page-1)*limit, limit)
	if err != nil {
		return nil, wrapError(KindInternal, "failed to list payments", err)
	}

	return &PaymentPage{
		Payments:   payments,
		Pagination: newPagination(page, limit, total),
	}, nil
}

// PaymentDetails is a payment with the journeys it settles.
type PaymentDetails struct {
	Payment  *domain.Payment
	Journeys []*domain.Journey
}

// GetPaymentDetails returns a payment visible to its owner or an admin.
func (s *PaymentService) GetPaymentDetails(ctx context.Context, paymentID string, caller domain.Caller) (*PaymentDetails, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, lookupError(err, ErrPaymentNotFound)
	}

	if !canAccessPayment(caller, payment) {
		return nil, ErrNotPaymentOwner
	}

	details := &PaymentDetails{Payment: payment}
	for _, id := range payment.JourneyIDs() {
		journey, err := optional(s.journeyRepo.GetByID(ctx, id))
		if err != nil {
			return nil, err
		}
		if journey != nil {
			details.Journeys = append(details.Journeys, journey)
		}
	}

	return details, nil
}

func routeName(journey *domain.Journey) string {
	if journey.RouteDetails == nil || journey.RouteDetails.RouteName == "" {
		return "unknown"
	}
	return journey.RouteDetails.RouteName
}

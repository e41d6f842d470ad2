package service

import (
	"context"

	"transit/internal/domain"
	"transit/internal/logger"
)

// JourneyBooker defines the journey operations group booking depends on.
type JourneyBooker interface {
	BookJourney(ctx context.Context, req BookJourneyRequest) (*domain.Journey, error)
	CancelJourney(ctx context.Context, journeyID, passengerID string) (*domain.Journey, error)
}

// OrderCreator opens provider orders.
type OrderCreator interface {
	CreatePaymentOrder(ctx context.Context, req CreatePaymentOrderRequest) (*PaymentOrder, error)
	CreateSchedulePayment(ctx context.Context, req CreateSchedulePaymentRequest) (*PaymentOrder, error)
}

// Ensure services implement the interfaces.
var (
	_ JourneyBooker = (*JourneyService)(nil)
	_ OrderCreator  = (*PaymentService)(nil)
)

// BookingService books passenger groups under a single payment.
type BookingService struct {
	journeys JourneyBooker
	payments OrderCreator
	log      logger.ILogger
}

// NewBookingService creates a new BookingService.
func NewBookingService(journeys JourneyBooker, payments OrderCreator, log logger.ILogger) *BookingService {
	return &BookingService{
		journeys: journeys,
		payments: payments,
		log:      log,
	}
}

// GroupBookingRequest contains the parameters for booking a passenger group.
type GroupBookingRequest struct {
	PassengerID          string
	ScheduleID           string
	PassengerCount       int
	AdditionalPassengers []domain.PassengerInfo
	Metadata             RequestMetadata
}

// BookGroup books one journey per passenger and opens one provider order for
// the whole group at the booked fare times count. If any step fails the
// journeys booked so far are cancelled.
func (s *BookingService) BookGroup(ctx context.Context, req GroupBookingRequest) (*PaymentOrder, error) {
	if req.PassengerCount < domain.MinPassengerCount || req.PassengerCount > domain.MaxPassengerCount {
		return nil, ErrInvalidPassengerCount
	}

	primary, err := s.journeys.BookJourney(ctx, BookJourneyRequest{
		PassengerID:   req.PassengerID,
		ScheduleID:    req.ScheduleID,
		PaymentMethod: domain.PaymentMethodOnline,
	})
	if err != nil {
		return nil, err
	}
	booked := []string{primary.ID}

	additional := make([]string, 0, req.PassengerCount-1)
	for i := 1; i < req.PassengerCount; i++ {
		info := domain.PassengerInfo{Name: "Additional Passenger"}
		if i-1 < len(req.AdditionalPassengers) {
			info = req.AdditionalPassengers[i-1]
		}

		journey, err := s.journeys.BookJourney(ctx, BookJourneyRequest{
			PassengerID:             req.PassengerID,
			ScheduleID:              req.ScheduleID,
			PaymentMethod:           domain.PaymentMethodOnline,
			AdditionalPassengerInfo: &info,
		})
		if err != nil {
			s.compensate(ctx, req.PassengerID, booked)
			return nil, err
		}
		booked = append(booked, journey.ID)
		if journey.Fare != primary.Fare {
			s.compensate(ctx, req.PassengerID, booked)
			return nil, ErrFareChanged
		}
		additional = append(additional, journey.ID)
	}

	total := GroupTotal(primary.Fare, req.PassengerCount)

	var order *PaymentOrder
	if len(additional) == 0 {
		order, err = s.payments.CreatePaymentOrder(ctx, CreatePaymentOrderRequest{
			JourneyID:   primary.ID,
			PassengerID: req.PassengerID,
			Amount:      total,
			Metadata:    req.Metadata,
		})
	} else {
		order, err = s.payments.CreateSchedulePayment(ctx, CreateSchedulePaymentRequest{
			JourneyID:            primary.ID,
			PassengerID:          req.PassengerID,
			TotalAmount:          total,
			AdditionalJourneyIDs: additional,
			Metadata:             req.Metadata,
		})
	}
	if err != nil {
		s.compensate(ctx, req.PassengerID, booked)
		return nil, err
	}

	s.log.Info("group booked",
		logger.String("payment_id", order.PaymentID),
		logger.String("schedule_id", req.ScheduleID),
		logger.Int("passenger_count", req.PassengerCount),
		logger.Float64("total_amount", total),
	)

	return order, nil
}

// compensate cancels journeys booked by a group request that did not complete.
func (s *BookingService) compensate(ctx context.Context, passengerID string, journeyIDs []string) {
	for _, id := range journeyIDs {
		if _, err := s.journeys.CancelJourney(context.WithoutCancel(ctx), id, passengerID); err != nil {
			s.log.Error("failed to cancel journey after group booking failure",
				logger.String("journey_id", id),
				logger.Error(err),
			)
		}
	}
	s.log.Warning("group booking rolled back", logger.Strings("journey_ids", journeyIDs))
}

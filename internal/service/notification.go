package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"transit/internal/domain"
	"transit/internal/logger"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationJourneyBooked         NotificationType = "JOURNEY_BOOKED"
	NotificationJourneyCancelled      NotificationType = "JOURNEY_CANCELLED"
	NotificationJourneyVerified       NotificationType = "JOURNEY_VERIFIED"
	NotificationJourneyPaymentUpdated NotificationType = "JOURNEY_PAYMENT_UPDATED"
	NotificationPaymentCaptured       NotificationType = "PAYMENT_CAPTURED"
	NotificationPaymentFailed         NotificationType = "PAYMENT_FAILED"
	NotificationPaymentRefunded       NotificationType = "PAYMENT_REFUNDED"
)

// Notification represents an event to be delivered.
type Notification struct {
	Type        NotificationType       `json:"type"`
	RecipientID string                 `json:"recipientId"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// EventPublisher publishes a message under a routing key.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// NotificationService emits journey and payment events. Delivery is best-effort.
type NotificationService struct {
	publisher EventPublisher
	log       logger.ILogger
}

// NewNotificationService creates a new NotificationService. With a nil
// publisher notifications are only logged.
func NewNotificationService(publisher EventPublisher, log logger.ILogger) *NotificationService {
	return &NotificationService{
		publisher: publisher,
		log:       log,
	}
}

// NotifyJourneyBooked announces a new booking.
func (s *NotificationService) NotifyJourneyBooked(ctx context.Context, journey *domain.Journey) error {
	return s.send(ctx, journeyKey("booked", journey.ID), Notification{
		Type:        NotificationJourneyBooked,
		RecipientID: journey.PassengerID,
		Title:       "Journey Booked",
		Message:     fmt.Sprintf("Your journey is booked. Fare: $%.2f", journey.Fare),
		Data: map[string]interface{}{
			"journeyId":  journey.ID,
			"scheduleId": journey.ScheduleID,
			"fare":       journey.Fare,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyJourneyCancelled announces a cancellation.
func (s *NotificationService) NotifyJourneyCancelled(ctx context.Context, journey *domain.Journey) error {
	return s.send(ctx, journeyKey("cancelled", journey.ID), Notification{
		Type:        NotificationJourneyCancelled,
		RecipientID: journey.PassengerID,
		Title:       "Journey Cancelled",
		Message:     "Your journey has been cancelled.",
		Data: map[string]interface{}{
			"journeyId":  journey.ID,
			"scheduleId": journey.ScheduleID,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyJourneyVerified announces boarding verification.
func (s *NotificationService) NotifyJourneyVerified(ctx context.Context, journey *domain.Journey) error {
	return s.send(ctx, journeyKey("verified", journey.ID), Notification{
		Type:        NotificationJourneyVerified,
		RecipientID: journey.PassengerID,
		Title:       "Ticket Verified",
		Message:     "Your ticket was verified. Enjoy your trip!",
		Data: map[string]interface{}{
			"journeyId":  journey.ID,
			"verifiedBy": journey.VerifiedBy,
			"verifiedAt": journey.VerifiedAt,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyJourneyPaymentUpdated announces a journey payment status change.
func (s *NotificationService) NotifyJourneyPaymentUpdated(ctx context.Context, journey *domain.Journey) error {
	return s.send(ctx, journeyKey("payment.updated", journey.ID), Notification{
		Type:        NotificationJourneyPaymentUpdated,
		RecipientID: journey.PassengerID,
		Title:       "Payment Status Updated",
		Message:     fmt.Sprintf("Payment status for your journey is now %s", journey.PaymentStatus),
		Data: map[string]interface{}{
			"journeyId":     journey.ID,
			"paymentStatus": journey.PaymentStatus,
			"ticketNumber":  journey.TicketNumber,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPaymentCaptured announces a successful capture.
func (s *NotificationService) NotifyPaymentCaptured(ctx context.Context, payment *domain.Payment) error {
	return s.send(ctx, paymentKey("captured", payment.ID), Notification{
		Type:        NotificationPaymentCaptured,
		RecipientID: payment.PassengerID,
		Title:       "Payment Successful",
		Message:     fmt.Sprintf("Payment of $%.2f for %d passenger(s) was successful", payment.Amount, payment.PassengerCount),
		Data: map[string]interface{}{
			"paymentId": payment.ID,
			"amount":    payment.Amount,
			"journeys":  payment.JourneyIDs(),
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPaymentFailed announces a capture the provider will not complete.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, payment *domain.Payment) error {
	return s.send(ctx, paymentKey("failed", payment.ID), Notification{
		Type:        NotificationPaymentFailed,
		RecipientID: payment.PassengerID,
		Title:       "Payment Failed",
		Message:     fmt.Sprintf("Payment of $%.2f failed. Please try again.", payment.Amount),
		Data: map[string]interface{}{
			"paymentId": payment.ID,
			"amount":    payment.Amount,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyPaymentRefunded announces a completed refund.
func (s *NotificationService) NotifyPaymentRefunded(ctx context.Context, payment *domain.Payment) error {
	return s.send(ctx, paymentKey("refunded", payment.ID), Notification{
		Type:        NotificationPaymentRefunded,
		RecipientID: payment.PassengerID,
		Title:       "Refund Processed",
		Message:     fmt.Sprintf("Your refund of $%.2f has been processed", payment.Amount),
		Data: map[string]interface{}{
			"paymentId": payment.ID,
			"amount":    payment.Amount,
		},
		CreatedAt: time.Now(),
	})
}

func journeyKey(event, journeyID string) string {
	return "journey." + event + "." + journeyID
}

func paymentKey(event, paymentID string) string {
	return "payment." + event + "." + paymentID
}

// send publishes the notification, or only logs it when no publisher is set.
func (s *NotificationService) send(ctx context.Context, routingKey string, notification Notification) error {
	s.log.Info("notification",
		logger.String("type", string(notification.Type)),
		logger.String("recipient_id", notification.RecipientID),
		logger.String("routing_key", routingKey),
	)

	if s.publisher == nil {
		return nil
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	return s.publisher.Publish(ctx, routingKey, body)
}

package domain

import (
	"encoding/json"
	"time"
)

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending      PaymentStatus = "PENDING"
	PaymentStatusProcessing   PaymentStatus = "PROCESSING"
	PaymentStatusCompleted    PaymentStatus = "COMPLETED"
	PaymentStatusFailed       PaymentStatus = "FAILED"
	PaymentStatusRefunded     PaymentStatus = "REFUNDED"
	PaymentStatusRefundFailed PaymentStatus = "REFUND_FAILED"
)

// CurrencyUSD is the only currency payments are taken in.
const CurrencyUSD = "USD"

// Passenger count bounds for one payment.
const (
	MinPassengerCount = 1
	MaxPassengerCount = 10
)

// TransactionDetails is recorded on a successful capture.
type TransactionDetails struct {
	CaptureID                string          `json:"captureId"`
	PaymentMethod            string          `json:"paymentMethod"`
	CaptureStatus            string          `json:"captureStatus"`
	ProcessorResponseCode    string          `json:"processorResponseCode"`
	ProcessorResponseMessage string          `json:"processorResponseMessage"`
	PayerID                  string          `json:"payerId,omitempty"`
	Timestamp                time.Time       `json:"timestamp"`
	RawResponse              json.RawMessage `json:"rawResponse,omitempty"`
}

// PaymentMetadata carries request context and group membership.
type PaymentMetadata struct {
	IPAddress      string   `json:"ipAddress,omitempty"`
	UserAgent      string   `json:"userAgent,omitempty"`
	RequestID      string   `json:"requestId,omitempty"`
	AttemptCount   int      `json:"attemptCount"`
	PassengerCount int      `json:"passengerCount"`
	Journeys       []string `json:"journeys"`
}

// Refund statuses, as reported by the provider.
const (
	RefundStatusCompleted = "COMPLETED"
	RefundStatusPending   = "PENDING"
	RefundStatusFailed    = "FAILED"
	RefundStatusCancelled = "CANCELLED"
)

// RefundDetails is recorded on every refund attempt.
type RefundDetails struct {
	RefundID   string    `json:"refundId,omitempty"`
	Reason     string    `json:"reason"`
	RefundedAt time.Time `json:"refundedAt"`
	Status     string    `json:"status"`
	Amount     float64   `json:"amount"`
	Error      string    `json:"error,omitempty"`
}

// Payment is the settlement record for one journey or a passenger group.
type Payment struct {
	ID                 string
	JourneyID          string
	AdditionalJourneys []string
	PassengerID        string
	PassengerCount     int
	Amount             float64
	Currency           string
	Status             PaymentStatus
	PayPalOrderID      string
	PayerID            string
	TransactionDetails *TransactionDetails
	Metadata           PaymentMetadata
	RefundDetails      *RefundDetails
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// JourneyIDs returns the primary journey followed by the additional ones.
func (p *Payment) JourneyIDs() []string {
	ids := make([]string, 0, 1+len(p.AdditionalJourneys))
	ids = append(ids, p.JourneyID)
	return append(ids, p.AdditionalJourneys...)
}

// IsGroup reports whether the payment settles more than one journey.
func (p *Payment) IsGroup() bool {
	return len(p.AdditionalJourneys) > 0
}

// CaptureID returns the provider capture id, or "" if the payment was never captured.
func (p *Payment) CaptureID() string {
	if p.TransactionDetails == nil {
		return ""
	}
	return p.TransactionDetails.CaptureID
}

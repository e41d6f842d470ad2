package handler

import (
	"time"

	"transit/internal/domain"
)

// JourneyResponse is the HTTP representation of a journey.
type JourneyResponse struct {
	ID                      string                `json:"id"`
	ScheduleID              string                `json:"scheduleId"`
	PassengerID             string                `json:"passengerId"`
	DriverID                string                `json:"driverId,omitempty"`
	RouteDetails            *domain.RouteSnapshot `json:"routeDetails,omitempty"`
	StartTime               time.Time             `json:"startTime"`
	EndTime                 time.Time             `json:"endTime"`
	Status                  string                `json:"status"`
	PaymentStatus           string                `json:"paymentStatus"`
	PaymentMethod           string                `json:"paymentMethod"`
	TicketNumber            string                `json:"ticketNumber,omitempty"`
	Fare                    float64               `json:"fare"`
	QRCode                  string                `json:"qrCode"`
	IsVerified              bool                  `json:"isVerified"`
	VerifiedBy              string                `json:"verifiedBy,omitempty"`
	VerifiedAt              *time.Time            `json:"verifiedAt,omitempty"`
	IsAdditionalPassenger   bool                  `json:"isAdditionalPassenger"`
	AdditionalPassengerInfo *domain.PassengerInfo `json:"additionalPassengerInfo,omitempty"`
	CreatedAt               time.Time             `json:"createdAt"`
	UpdatedAt               time.Time             `json:"updatedAt"`
}

func toJourneyResponse(j *domain.Journey) *JourneyResponse {
	if j == nil {
		return nil
	}
	return &JourneyResponse{
		ID:                      j.ID,
		ScheduleID:              j.ScheduleID,
		PassengerID:             j.PassengerID,
		DriverID:                j.DriverID,
		RouteDetails:            j.RouteDetails,
		StartTime:               j.StartTime,
		EndTime:                 j.EndTime,
		Status:                  string(j.Status),
		PaymentStatus:           string(j.PaymentStatus),
		PaymentMethod:           string(j.PaymentMethod),
		TicketNumber:            j.TicketNumber,
		Fare:                    j.Fare,
		QRCode:                  j.QRCode,
		IsVerified:              j.IsVerified,
		VerifiedBy:              j.VerifiedBy,
		VerifiedAt:              optionalTime(j.VerifiedAt),
		IsAdditionalPassenger:   j.IsAdditionalPassenger,
		AdditionalPassengerInfo: j.AdditionalPassengerInfo,
		CreatedAt:               j.CreatedAt,
		UpdatedAt:               j.UpdatedAt,
	}
}

func toJourneyResponses(journeys []*domain.Journey) []*JourneyResponse {
	out := make([]*JourneyResponse, 0, len(journeys))
	for _, j := range journeys {
		out = append(out, toJourneyResponse(j))
	}
	return out
}

// PaymentResponse is the HTTP representation of a payment.
type PaymentResponse struct {
	ID                 string                     `json:"id"`
	JourneyID          string                     `json:"journeyId"`
	AdditionalJourneys []string                   `json:"additionalJourneys"`
	PassengerID        string                     `json:"passengerId"`
	PassengerCount     int                        `json:"passengerCount"`
	Amount             float64                    `json:"amount"`
	Currency           string                     `json:"currency"`
	Status             string                     `json:"status"`
	PayPalOrderID      string                     `json:"paypalOrderId"`
	PayerID            string                     `json:"payerId,omitempty"`
	TransactionDetails *domain.TransactionDetails `json:"transactionDetails,omitempty"`
	Metadata           domain.PaymentMetadata     `json:"metadata"`
	RefundDetails      *domain.RefundDetails      `json:"refundDetails,omitempty"`
	CreatedAt          time.Time                  `json:"createdAt"`
	UpdatedAt          time.Time                  `json:"updatedAt"`
}

func toPaymentResponse(p *domain.Payment) *PaymentResponse {
	additional := p.AdditionalJourneys
	if additional == nil {
		additional = []string{}
	}
	return &PaymentResponse{
		ID:                 p.ID,
		JourneyID:          p.JourneyID,
		AdditionalJourneys: additional,
		PassengerID:        p.PassengerID,
		PassengerCount:     p.PassengerCount,
		Amount:             p.Amount,
		Currency:           p.Currency,
		Status:             string(p.Status),
		PayPalOrderID:      p.PayPalOrderID,
		PayerID:            p.PayerID,
		TransactionDetails: p.TransactionDetails,
		Metadata:           p.Metadata,
		RefundDetails:      p.RefundDetails,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func toPaymentResponses(payments []*domain.Payment) []*PaymentResponse {
	out := make([]*PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	return out
}

// ScheduleResponse is the HTTP representation of a schedule.
type ScheduleResponse struct {
	ID         string    `json:"id"`
	RouteID    string    `json:"routeId"`
	DriverID   string    `json:"driverId,omitempty"`
	DaysOfWeek []string  `json:"daysOfWeek"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Status     string    `json:"status"`
}

// PersonResponse is the public profile of a passenger or driver.
type PersonResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// JourneyDetailsResponse is a journey with its schedule, passenger and driver.
type JourneyDetailsResponse struct {
	*JourneyResponse
	Schedule  *ScheduleResponse `json:"schedule,omitempty"`
	Passenger *PersonResponse   `json:"passenger,omitempty"`
	Driver    *PersonResponse   `json:"driver,omitempty"`
}

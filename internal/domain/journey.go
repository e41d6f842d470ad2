package domain

import (
	"errors"
	"fmt"
	"time"
)

// JourneyStatus represents the trip status of a journey.
type JourneyStatus string

const (
	JourneyStatusBooked     JourneyStatus = "booked"
	JourneyStatusInProgress JourneyStatus = "in-progress"
	JourneyStatusCompleted  JourneyStatus = "completed"
	JourneyStatusCancelled  JourneyStatus = "cancelled"
)

// Valid reports whether s is a known journey status.
func (s JourneyStatus) Valid() bool {
	switch s {
	case JourneyStatusBooked, JourneyStatusInProgress, JourneyStatusCompleted, JourneyStatusCancelled:
		return true
	}
	return false
}

// JourneyPaymentStatus represents the payment status of a single journey.
type JourneyPaymentStatus string

const (
	JourneyPaymentPending  JourneyPaymentStatus = "pending"
	JourneyPaymentPaid     JourneyPaymentStatus = "paid"
	JourneyPaymentRefunded JourneyPaymentStatus = "refunded"
	JourneyPaymentFailed   JourneyPaymentStatus = "failed"
)

// Valid reports whether s is a known journey payment status.
func (s JourneyPaymentStatus) Valid() bool {
	switch s {
	case JourneyPaymentPending, JourneyPaymentPaid, JourneyPaymentRefunded, JourneyPaymentFailed:
		return true
	}
	return false
}

// PaymentMethod represents how a journey is paid for.
type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodInBus  PaymentMethod = "in-bus"
)

var (
	// ErrJourneyNotCancellable is returned when cancelling a journey that is not booked.
	ErrJourneyNotCancellable = errors.New("journey cannot be cancelled")

	// ErrJourneyAlreadyVerified is returned when verifying a journey twice.
	ErrJourneyAlreadyVerified = errors.New("journey already verified")
)

// Location is a named point snapshotted from a route stop.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// RouteSnapshot is the route information frozen into a journey at booking time.
type RouteSnapshot struct {
	RouteID       string    `json:"routeId"`
	RouteName     string    `json:"routeName"`
	StartLocation *Location `json:"startLocation,omitempty"`
	EndLocation   *Location `json:"endLocation,omitempty"`
}

// PassengerInfo describes a companion travelling under another passenger's account.
type PassengerInfo struct {
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Age            int    `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
	SeatPreference string `json:"seatPreference,omitempty"`
}

// Journey is one passenger's ticket for a scheduled run.
type Journey struct {
	ID                      string
	ScheduleID              string
	PassengerID             string
	DriverID                string
	RouteDetails            *RouteSnapshot
	StartTime               time.Time
	EndTime                 time.Time
	Status                  JourneyStatus
	PaymentStatus           JourneyPaymentStatus
	PaymentMethod           PaymentMethod
	TicketNumber            string
	Fare                    float64
	QRCode                  string
	IsVerified              bool
	VerifiedBy              string
	VerifiedAt              time.Time
	IsAdditionalPassenger   bool
	AdditionalPassengerInfo *PassengerInfo
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// JourneyState is the mutable part of a journey used to guard conditional writes.
type JourneyState struct {
	Status        JourneyStatus
	PaymentStatus JourneyPaymentStatus
	IsVerified    bool
}

// State returns the current guard state of the journey.
func (j *Journey) State() JourneyState {
	return JourneyState{
		Status:        j.Status,
		PaymentStatus: j.PaymentStatus,
		IsVerified:    j.IsVerified,
	}
}

// Cancel moves a booked journey to cancelled.
func (j *Journey) Cancel(now time.Time) error {
	if j.Status != JourneyStatusBooked {
		return fmt.Errorf("%w: current status is %s", ErrJourneyNotCancellable, j.Status)
	}
	j.Status = JourneyStatusCancelled
	j.UpdatedAt = now
	return nil
}

// Verify records boarding verification by a driver. Cash journeys still
// pending are marked paid, which is the only way an in-bus journey is paid.
func (j *Journey) Verify(driverID string, now time.Time, issueTicket func() string) error {
	if j.IsVerified {
		return ErrJourneyAlreadyVerified
	}
	j.IsVerified = true
	j.VerifiedBy = driverID
	j.VerifiedAt = now
	if j.PaymentMethod == PaymentMethodInBus && j.PaymentStatus == JourneyPaymentPending {
		j.SetPaymentStatus(JourneyPaymentPaid, now, issueTicket)
	}
	j.UpdatedAt = now
	return nil
}

// SetPaymentStatus changes the payment status. On the transition to paid a
// ticket number is assigned if the journey does not have one yet.
func (j *Journey) SetPaymentStatus(status JourneyPaymentStatus, now time.Time, issueTicket func() string) {
	j.PaymentStatus = status
	if status == JourneyPaymentPaid && j.TicketNumber == "" {
		j.TicketNumber = issueTicket()
	}
	j.UpdatedAt = now
}

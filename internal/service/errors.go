package service

import (
	"errors"

	"transit/internal/domain"
	"transit/internal/repository"
)

// Kind classifies a service failure.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindValidation
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindProvider:
		return "provider"
	default:
		return "internal"
	}
}

// Error is a classified service error. Msg is safe to show to callers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

var (
	// ErrScheduleNotFound is returned when a schedule does not exist.
	ErrScheduleNotFound = newError(KindNotFound, "schedule not found")

	// ErrRouteNotFound is returned when a schedule's route does not exist.
	ErrRouteNotFound = newError(KindNotFound, "route not found")

	// ErrJourneyNotFound is returned when a journey does not exist.
	ErrJourneyNotFound = newError(KindNotFound, "journey not found")

	// ErrPassengerNotFound is returned when a passenger does not exist.
	ErrPassengerNotFound = newError(KindNotFound, "passenger not found")

	// ErrPaymentNotFound is returned when a payment does not exist.
	ErrPaymentNotFound = newError(KindNotFound, "payment not found")

	// ErrNotJourneyOwner is returned when the caller does not own the journey.
	ErrNotJourneyOwner = newError(KindUnauthorized, "not authorized to access this journey")

	// ErrNotPaymentOwner is returned when the caller does not own the payment.
	ErrNotPaymentOwner = newError(KindUnauthorized, "not authorized to access this payment")

	// ErrDriverRoleRequired is returned when a non-driver tries a driver operation.
	ErrDriverRoleRequired = newError(KindForbidden, "only drivers can verify journeys")

	// ErrInvalidPassengerCount is returned when the passenger count is outside 1..10.
	ErrInvalidPassengerCount = newError(KindValidation, "passenger count must be between 1 and 10")

	// ErrInvalidPaymentAmount is returned when a payment amount is not positive.
	ErrInvalidPaymentAmount = newError(KindValidation, "invalid payment amount")

	// ErrInvalidPaymentMethod is returned when the payment method is unknown.
	ErrInvalidPaymentMethod = newError(KindValidation, "payment method must be online or in-bus")

	// ErrInvalidPaymentStatus is returned when a journey payment status is unknown.
	ErrInvalidPaymentStatus = newError(KindValidation, "invalid payment status")

	// ErrMissingJourneyIDs is returned when a group update has no journeys.
	ErrMissingJourneyIDs = newError(KindValidation, "at least one journey id is required")

	// ErrMissingScheduleID is returned when a booking names no schedule.
	ErrMissingScheduleID = newError(KindValidation, "schedule id is required")

	// ErrMissingOrderID is returned when a capture names no provider order.
	ErrMissingOrderID = newError(KindValidation, "order id is required")

	// ErrInvalidRefundScope is returned when a refund scope is unknown.
	ErrInvalidRefundScope = newError(KindValidation, "refund scope must be primary or group")

	// ErrInvalidQRPayload is returned when a scanned ticket fails verification.
	ErrInvalidQRPayload = newError(KindValidation, "invalid ticket QR code")

	// ErrJourneyNotCancellable is returned when cancelling a journey that is not booked.
	ErrJourneyNotCancellable = newError(KindConflict, "journey cannot be cancelled")

	// ErrJourneyAlreadyVerified is returned when verifying a journey twice.
	ErrJourneyAlreadyVerified = newError(KindConflict, "journey already verified")

	// ErrConcurrentModification is returned when a guarded write loses a race.
	ErrConcurrentModification = newError(KindConflict, "record was modified concurrently, please retry")

	// ErrCaptureInProgress is returned while another capture of the same order runs.
	ErrCaptureInProgress = newError(KindConflict, "payment capture already in progress")

	// ErrPaymentNotCapturable is returned when capturing a payment that is not pending.
	ErrPaymentNotCapturable = newError(KindConflict, "payment cannot be captured in its current status")

	// ErrFareChanged is returned when the fare moves while a group is being booked.
	ErrFareChanged = newError(KindConflict, "fare changed while booking, please retry")

	// ErrJourneyAlreadyPaid is returned when opening an order for a paid journey.
	ErrJourneyAlreadyPaid = newError(KindConflict, "journey is already paid")

	// ErrJourneyNotPayable is returned when opening an order for a cancelled journey.
	ErrJourneyNotPayable = newError(KindConflict, "cannot pay for a cancelled journey")

	// ErrPaymentAlreadyRefunded is returned when refunding a refunded payment.
	ErrPaymentAlreadyRefunded = newError(KindConflict, "payment already refunded")

	// ErrPaymentNotCaptured is returned when refunding a payment that was never captured.
	ErrPaymentNotCaptured = newError(KindConflict, "payment has not been captured")

	// ErrReceiptUnavailable is returned when a receipt is requested for an unsettled payment.
	ErrReceiptUnavailable = newError(KindConflict, "receipt is only available for completed or refunded payments")

	// ErrPaymentVoided is returned when the provider voids an order during capture.
	ErrPaymentVoided = newError(KindProvider, "payment was voided by the provider")
)

// KindOf classifies err. Errors that carry no classification are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	case errors.Is(err, repository.ErrStaleWrite),
		errors.Is(err, domain.ErrJourneyNotCancellable),
		errors.Is(err, domain.ErrJourneyAlreadyVerified):
		return KindConflict
	default:
		return KindInternal
	}
}

// Message returns the caller-safe message for err. Detail added around a
// sentinel with fmt.Errorf is kept; wrapped causes are not shown.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "internal server error"
	}
	if e.Err == nil {
		return err.Error()
	}
	return e.Msg
}

// lookupError maps a repository read failure to notFound or an internal error.
func lookupError(err error, notFound *Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return wrapError(KindInternal, "internal error", err)
}

// writeError maps a repository write failure to a conflict or an internal error.
func writeError(err error) error {
	if errors.Is(err, repository.ErrStaleWrite) {
		return wrapError(KindConflict, ErrConcurrentModification.Msg, err)
	}
	return wrapError(KindInternal, "internal error", err)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transit/internal/domain"
	"transit/internal/service"
)

// ScheduleHandler handles HTTP requests for schedule fares and group bookings.
type ScheduleHandler struct {
	fareService    *service.FareService
	bookingService *service.BookingService
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(fareService *service.FareService, bookingService *service.BookingService) *ScheduleHandler {
	return &ScheduleHandler{
		fareService:    fareService,
		bookingService: bookingService,
	}
}

// GroupPaymentRequest is the HTTP request body for booking and paying for a group.
type GroupPaymentRequest struct {
	PassengerCount       int                    `json:"passengerCount"`
	AdditionalPassengers []domain.PassengerInfo `json:"additionalPassengers,omitempty"`
}

// GetFare handles GET /api/schedules/:scheduleId/fare
func (h *ScheduleHandler) GetFare(c *gin.Context) {
	quote, err := h.fareService.QuoteSchedule(c.Request.Context(), c.Param("scheduleId"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "", quote)
}

// CreateGroupPayment handles POST /api/schedules/:scheduleId/payments
func (h *ScheduleHandler) CreateGroupPayment(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req GroupPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	order, err := h.bookingService.BookGroup(c.Request.Context(), service.GroupBookingRequest{
		PassengerID:          caller.ID,
		ScheduleID:           c.Param("scheduleId"),
		PassengerCount:       req.PassengerCount,
		AdditionalPassengers: req.AdditionalPassengers,
		Metadata:             requestMetadata(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, "Payment order created", order)
}

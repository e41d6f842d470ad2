package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transit/internal/domain"
	"transit/internal/service"
)

// JourneyHandler handles HTTP requests for journeys.
type JourneyHandler struct {
	journeyService *service.JourneyService
}

// NewJourneyHandler creates a new JourneyHandler.
func NewJourneyHandler(journeyService *service.JourneyService) *JourneyHandler {
	return &JourneyHandler{journeyService: journeyService}
}

// BookJourneyRequest is the HTTP request body for booking a journey.
type BookJourneyRequest struct {
	ScheduleID              string                `json:"scheduleId"`
	PaymentMethod           string                `json:"paymentMethod,omitempty"` // online or in-bus
	AdditionalPassengerInfo *domain.PassengerInfo `json:"additionalPassengerInfo,omitempty"`
}

// VerifyQRRequest is the HTTP request body for verifying a scanned ticket.
type VerifyQRRequest struct {
	Payload string `json:"payload"`
}

// BookJourney handles POST /api/journeys/book
func (h *JourneyHandler) BookJourney(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req BookJourneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	if req.ScheduleID == "" {
		respondBadRequest(c, "scheduleId is required")
		return
	}

	journey, err := h.journeyService.BookJourney(c.Request.Context(), service.BookJourneyRequest{
		PassengerID:             caller.ID,
		ScheduleID:              req.ScheduleID,
		PaymentMethod:           domain.PaymentMethod(req.PaymentMethod),
		AdditionalPassengerInfo: req.AdditionalPassengerInfo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, "Journey booked successfully", toJourneyResponse(journey))
}

// GetPassengerJourneys handles GET /api/journeys/passenger
func (h *JourneyHandler) GetPassengerJourneys(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	page, limit := pageParams(c)
	result, err := h.journeyService.GetPassengerJourneys(c.Request.Context(), caller.ID,
		domain.JourneyStatus(c.Query("status")), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "", gin.H{
		"journeys":   toJourneyResponses(result.Journeys),
		"pagination": result.Pagination,
	})
}

// GetJourneyDetails handles GET /api/journeys/:journeyId
func (h *JourneyHandler) GetJourneyDetails(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	details, err := h.journeyService.GetJourneyDetails(c.Request.Context(), c.Param("journeyId"), caller)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := JourneyDetailsResponse{JourneyResponse: toJourneyResponse(details.Journey)}
	if s := details.Schedule; s != nil {
		resp.Schedule = &ScheduleResponse{
			ID:         s.ID,
			RouteID:    s.RouteID,
			DriverID:   s.DriverID,
			DaysOfWeek: s.DaysOfWeek,
			StartTime:  s.StartTime,
			EndTime:    s.EndTime,
			Status:     s.Status,
		}
	}
	if p := details.Passenger; p != nil {
		resp.Passenger = &PersonResponse{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone}
	}
	if d := details.Driver; d != nil {
		resp.Driver = &PersonResponse{ID: d.ID, Name: d.Name, Email: d.Email, Phone: d.Phone}
	}

	respondJSON(c, http.StatusOK, "", resp)
}

// CancelJourney handles POST /api/journeys/:journeyId/cancel
func (h *JourneyHandler) CancelJourney(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	journey, err := h.journeyService.CancelJourney(c.Request.Context(), c.Param("journeyId"), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "Journey cancelled successfully", toJourneyResponse(journey))
}

// VerifyJourney handles POST /api/journeys/:journeyId/verify
func (h *JourneyHandler) VerifyJourney(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	journey, err := h.journeyService.VerifyJourney(c.Request.Context(), c.Param("journeyId"), caller)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "Journey verified successfully", toJourneyResponse(journey))
}

// VerifyTicketQR handles POST /api/journeys/verify-qr
func (h *JourneyHandler) VerifyTicketQR(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req VerifyQRRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Payload == "" {
		respondBadRequest(c, "payload is required")
		return
	}

	journey, err := h.journeyService.VerifyTicketQR(c.Request.Context(), req.Payload, caller)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "Journey verified successfully", toJourneyResponse(journey))
}

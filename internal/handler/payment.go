package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transit/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreateOrderRequest is the HTTP request body for opening a payment order.
type CreateOrderRequest struct {
	JourneyID string  `json:"journeyId"`
	Amount    float64 `json:"amount"`
}

// RefundRequest is the HTTP request body for refunding a payment.
type RefundRequest struct {
	Reason string `json:"reason"`
	Scope  string `json:"scope,omitempty"` // primary (default) or group
}

// CreateOrder handles POST /api/payments/create-order
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	if req.JourneyID == "" {
		respondBadRequest(c, "journeyId is required")
		return
	}

	order, err := h.paymentService.CreatePaymentOrder(c.Request.Context(), service.CreatePaymentOrderRequest{
		JourneyID:   req.JourneyID,
		PassengerID: caller.ID,
		Amount:      req.Amount,
		Metadata:    requestMetadata(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, "Payment order created", order)
}

// PayJourney handles POST /api/journeys/:journeyId/pay
func (h *PaymentHandler) PayJourney(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	order, err := h.paymentService.PayJourney(c.Request.Context(), c.Param("journeyId"), caller.ID, requestMetadata(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, "Payment order created", order)
}

// CapturePayment handles POST /api/payments/capture/:orderId
func (h *PaymentHandler) CapturePayment(c *gin.Context) {
	result, err := h.paymentService.CapturePayment(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}

	msg := "Payment captured successfully"
	if result.Replayed {
		msg = "Payment already captured"
	}
	respondJSON(c, http.StatusOK, msg, result)
}

// GetPaymentHistory handles GET /api/payments/history
func (h *PaymentHandler) GetPaymentHistory(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	page, limit := pageParams(c)
	result, err := h.paymentService.GetPaymentHistory(c.Request.Context(), caller.ID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "", gin.H{
		"payments":   toPaymentResponses(result.Payments),
		"pagination": result.Pagination,
	})
}

// GetPaymentDetails handles GET /api/payments/:paymentId
func (h *PaymentHandler) GetPaymentDetails(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	details, err := h.paymentService.GetPaymentDetails(c.Request.Context(), c.Param("paymentId"), caller)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "", gin.H{
		"payment":  toPaymentResponse(details.Payment),
		"journeys": toJourneyResponses(details.Journeys),
	})
}

// GetPaymentReceipt handles GET /api/payments/:paymentId/receipt
func (h *PaymentHandler) GetPaymentReceipt(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	paymentID := c.Param("paymentId")
	doc, err := h.paymentService.GetPaymentReceipt(c.Request.Context(), paymentID, caller)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="receipt-`+paymentID+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

// ProcessRefund handles POST /api/payments/:paymentId/refund
func (h *PaymentHandler) ProcessRefund(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.paymentService.ProcessRefund(c.Request.Context(), service.RefundRequest{
		PaymentID: c.Param("paymentId"),
		Reason:    req.Reason,
		Caller:    caller,
		Scope:     service.RefundScope(req.Scope),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "Refund processed successfully", result)
}

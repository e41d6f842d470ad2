package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/plutov/paypal/v4"
)

// Provider order and capture statuses.
const (
	ProviderStatusCreated   = "CREATED"
	ProviderStatusCompleted = "COMPLETED"
	ProviderStatusVoided    = "VOIDED"
)

// OrderRequest describes an order to open with the payment provider.
type OrderRequest struct {
	Amount      float64
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
}

// ProviderLink is a HATEOAS link returned for an order.
type ProviderLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// ProviderOrder is an order opened with the payment provider.
type ProviderOrder struct {
	OrderID string
	Status  string
	Links   []ProviderLink
}

// ProviderCapture is the result of capturing an order.
type ProviderCapture struct {
	OrderID         string
	Status          string
	CaptureID       string
	Amount          float64
	PayerID         string
	ResponseCode    string
	ResponseMessage string
	Raw             json.RawMessage
}

// RefundCaptureRequest describes a refund of a captured payment.
type RefundCaptureRequest struct {
	CaptureID string
	Amount    float64
	Currency  string
	Note      string
}

// ProviderRefund is the result of a refund.
type ProviderRefund struct {
	RefundID string
	Status   string
	Amount   float64
}

// PaymentProvider is the external order, capture and refund API.
type PaymentProvider interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*ProviderOrder, error)
	CaptureOrder(ctx context.Context, orderID string) (*ProviderCapture, error)
	// LookupCapture returns the capture already made on an order, or nil if
	// the order has not been captured or voided.
	LookupCapture(ctx context.Context, orderID string) (*ProviderCapture, error)
	RefundCapture(ctx context.Context, req RefundCaptureRequest) (*ProviderRefund, error)
}

// PayPalProvider implements PaymentProvider on the PayPal Orders v2 API.
type PayPalProvider struct {
	client *paypal.Client
}

// NewPayPalProvider creates a PayPal client for the given mode ("live" or sandbox).
func NewPayPalProvider(ctx context.Context, clientID, secret, mode string) (*PayPalProvider, error) {
	base := paypal.APIBaseSandBox
	if mode == "live" {
		base = paypal.APIBaseLive
	}

	client, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}

	if _, err := client.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}

	return &PayPalProvider{client: client}, nil
}

// CreateOrder opens a capture-intent order.
func (p *PayPalProvider) CreateOrder(ctx context.Context, req OrderRequest) (*ProviderOrder, error) {
	units := []paypal.PurchaseUnitRequest{{
		Amount: &paypal.PurchaseUnitAmount{
			Currency: req.Currency,
			Value:    formatAmount(req.Amount),
		},
		Description: req.Description,
	}}
	appCtx := &paypal.ApplicationContext{
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	}

	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return nil, err
	}

	links := make([]ProviderLink, 0, len(order.Links))
	for _, l := range order.Links {
		links = append(links, ProviderLink{Href: l.Href, Rel: l.Rel, Method: l.Method})
	}

	return &ProviderOrder{
		OrderID: order.ID,
		Status:  order.Status,
		Links:   links,
	}, nil
}

// CaptureOrder captures an approved order.
func (p *PayPalProvider) CaptureOrder(ctx context.Context, orderID string) (*ProviderCapture, error) {
	resp, err := p.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, err
	}

	capture := &ProviderCapture{
		OrderID:         resp.ID,
		Status:          resp.Status,
		ResponseCode:    resp.Status,
		ResponseMessage: "order " + resp.Status,
	}
	if resp.Payer != nil {
		capture.PayerID = resp.Payer.PayerID
	}
	for _, unit := range resp.PurchaseUnits {
		if setCapture(capture, unit.Payments) {
			break
		}
	}
	if raw, err := json.Marshal(resp); err == nil {
		capture.Raw = raw
	}

	return capture, nil
}

// LookupCapture reads the order and returns its capture once the order is
// completed or voided.
func (p *PayPalProvider) LookupCapture(ctx context.Context, orderID string) (*ProviderCapture, error) {
	order, err := p.client.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != ProviderStatusCompleted && order.Status != ProviderStatusVoided {
		return nil, nil
	}

	capture := &ProviderCapture{
		OrderID:         order.ID,
		Status:          order.Status,
		ResponseCode:    order.Status,
		ResponseMessage: "order " + order.Status,
	}
	if order.Payer != nil {
		capture.PayerID = order.Payer.PayerID
	}
	for _, unit := range order.PurchaseUnits {
		if setCapture(capture, unit.Payments) {
			break
		}
	}
	if raw, err := json.Marshal(order); err == nil {
		capture.Raw = raw
	}

	return capture, nil
}

func setCapture(capture *ProviderCapture, payments *paypal.CapturedPayments) bool {
	if payments == nil || len(payments.Captures) == 0 {
		return false
	}
	c := payments.Captures[0]
	capture.CaptureID = c.ID
	if c.Amount != nil {
		capture.Amount = parseAmount(c.Amount.Value)
	}
	return true
}

// RefundCapture refunds a captured payment.
func (p *PayPalProvider) RefundCapture(ctx context.Context, req RefundCaptureRequest) (*ProviderRefund, error) {
	resp, err := p.client.RefundCapture(ctx, req.CaptureID, paypal.RefundCaptureRequest{
		Amount: &paypal.Money{
			Currency: req.Currency,
			Value:    formatAmount(req.Amount),
		},
		NoteToPayer: req.Note,
	})
	if err != nil {
		return nil, err
	}

	refund := &ProviderRefund{
		RefundID: resp.ID,
		Status:   resp.Status,
		Amount:   req.Amount,
	}
	if resp.Amount != nil {
		refund.Amount = parseAmount(resp.Amount.Value)
	}

	return refund, nil
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

func parseAmount(value string) float64 {
	f, _ := strconv.ParseFloat(value, 64)
	return f
}

// MockPaymentProvider is an in-memory PaymentProvider used when no PayPal
// credentials are configured. Every order captures and refunds successfully.
type MockPaymentProvider struct {
	mu       sync.Mutex
	orders   map[string]float64
	captures map[string]*ProviderCapture
}

// NewMockPaymentProvider creates a new mock provider.
func NewMockPaymentProvider() *MockPaymentProvider {
	return &MockPaymentProvider{
		orders:   make(map[string]float64),
		captures: make(map[string]*ProviderCapture),
	}
}

// CreateOrder records the order amount and returns an approval link.
func (p *MockPaymentProvider) CreateOrder(ctx context.Context, req OrderRequest) (*ProviderOrder, error) {
	id := "MOCK-" + uuid.New().String()

	p.mu.Lock()
	p.orders[id] = req.Amount
	p.mu.Unlock()

	return &ProviderOrder{
		OrderID: id,
		Status:  ProviderStatusCreated,
		Links: []ProviderLink{
			{Href: req.ReturnURL + "?token=" + id, Rel: "approve", Method: "GET"},
		},
	}, nil
}

// CaptureOrder completes a previously created order.
func (p *MockPaymentProvider) CaptureOrder(ctx context.Context, orderID string) (*ProviderCapture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	amount, ok := p.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	if capture, ok := p.captures[orderID]; ok {
		return nil, fmt.Errorf("order %s already captured as %s", orderID, capture.CaptureID)
	}

	capture := &ProviderCapture{
		OrderID:         orderID,
		Status:          ProviderStatusCompleted,
		CaptureID:       "CAPTURE-" + uuid.New().String(),
		Amount:          amount,
		ResponseCode:    ProviderStatusCompleted,
		ResponseMessage: "order COMPLETED",
	}
	p.captures[orderID] = capture

	c := *capture
	return &c, nil
}

// LookupCapture returns the capture recorded for an order, if any.
func (p *MockPaymentProvider) LookupCapture(ctx context.Context, orderID string) (*ProviderCapture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	capture, ok := p.captures[orderID]
	if !ok {
		return nil, nil
	}
	c := *capture
	return &c, nil
}

// RefundCapture refunds the requested amount.
func (p *MockPaymentProvider) RefundCapture(ctx context.Context, req RefundCaptureRequest) (*ProviderRefund, error) {
	return &ProviderRefund{
		RefundID: "REFUND-" + uuid.New().String(),
		Status:   ProviderStatusCompleted,
		Amount:   req.Amount,
	}, nil
}

var (
	_ PaymentProvider = (*PayPalProvider)(nil)
	_ PaymentProvider = (*MockPaymentProvider)(nil)
)

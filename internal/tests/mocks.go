package tests

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"transit/internal/domain"
	"transit/internal/redis"
	"transit/internal/repository"
	"transit/internal/service"
)

// ──────────────────────────────────────────────
// MOCK JOURNEY REPOSITORY
// ──────────────────────────────────────────────

// MockJourneyRepository is a mock implementation of JourneyRepository.
type MockJourneyRepository struct {
	mu       sync.RWMutex
	journeys map[string]*domain.Journey

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError  error
	UpdateErrors map[string]error // Keyed by journey ID

	// DuplicateTickets makes the next N ticket-assigning updates fail as collisions.
	DuplicateTickets int32
}

// NewMockJourneyRepository creates a new mock journey repository.
func NewMockJourneyRepository() *MockJourneyRepository {
	return &MockJourneyRepository{
		journeys:     make(map[string]*domain.Journey),
		UpdateErrors: make(map[string]error),
	}
}

// AddJourney adds a journey to the mock repository.
func (m *MockJourneyRepository) AddJourney(journey *domain.Journey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *journey
	m.journeys[journey.ID] = &copy
}

// FailUpdate makes every update of journeyID return err.
func (m *MockJourneyRepository) FailUpdate(journeyID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.UpdateErrors, journeyID)
		return
	}
	m.UpdateErrors[journeyID] = err
}

func (m *MockJourneyRepository) Create(ctx context.Context, journey *domain.Journey) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ticketTaken(journey.ID, journey.TicketNumber) {
		return repository.ErrDuplicateTicket
	}
	copy := *journey
	m.journeys[journey.ID] = &copy
	return nil
}

func (m *MockJourneyRepository) GetByID(ctx context.Context, id string) (*domain.Journey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	journey, ok := m.journeys[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *journey
	return &copy, nil
}

func (m *MockJourneyRepository) ListByPassenger(ctx context.Context, filter repository.JourneyFilter) ([]*domain.Journey, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Journey
	for _, j := range m.journeys {
		if j.PassengerID != filter.PassengerID {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		copy := *j
		matched = append(matched, &copy)
	}
	sort.Slice(matched, func(a, b int) bool {
		return matched[a].StartTime.After(matched[b].StartTime)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []*domain.Journey{}, total, nil
	}
	end := min(filter.Offset+filter.Limit, total)
	return matched[filter.Offset:end], total, nil
}

func (m *MockJourneyRepository) UpdateGuarded(ctx context.Context, journey *domain.Journey, expected domain.JourneyState) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.UpdateErrors[journey.ID]; err != nil {
		return err
	}

	stored, ok := m.journeys[journey.ID]
	if !ok || stored.State() != expected {
		return repository.ErrStaleWrite
	}

	if journey.TicketNumber != "" && journey.TicketNumber != stored.TicketNumber {
		if m.DuplicateTickets > 0 {
			m.DuplicateTickets--
			return repository.ErrDuplicateTicket
		}
		if m.ticketTaken(journey.ID, journey.TicketNumber) {
			return repository.ErrDuplicateTicket
		}
	}

	copy := *journey
	m.journeys[journey.ID] = &copy
	return nil
}

// ticketTaken must be called with mu held.
func (m *MockJourneyRepository) ticketTaken(journeyID, ticket string) bool {
	if ticket == "" {
		return false
	}
	for id, j := range m.journeys {
		if id != journeyID && j.TicketNumber == ticket {
			return true
		}
	}
	return false
}

// GetJourney returns journey for test assertions.
func (m *MockJourneyRepository) GetJourney(id string) *domain.Journey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.journeys[id]
	if !ok {
		return nil
	}
	copy := *j
	return &copy
}

// CountJourneys returns the number of stored journeys.
func (m *MockJourneyRepository) CountJourneys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.journeys)
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	// UpdateErrors fails updates that would move a payment to the keyed status.
	UpdateErrors map[domain.PaymentStatus]error
	// updateFailures bounds how many times an UpdateErrors entry fires.
	updateFailures map[domain.PaymentStatus]int
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments:       make(map[string]*domain.Payment),
		UpdateErrors:   make(map[domain.PaymentStatus]error),
		updateFailures: make(map[domain.PaymentStatus]int),
	}
}

// FailStatusUpdate makes the next times updates to status fail with err.
// times <= 0 fails every update until cleared with a nil err.
func (m *MockPaymentRepository) FailStatusUpdate(status domain.PaymentStatus, err error, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.updateFailures, status)
	if err == nil {
		delete(m.UpdateErrors, status)
		return
	}
	m.UpdateErrors[status] = err
	if times > 0 {
		m.updateFailures[status] = times
	}
}

// AddPayment adds a payment to the mock repository.
func (m *MockPaymentRepository) AddPayment(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = clonePayment(payment)
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.PayPalOrderID == payment.PayPalOrderID {
			return ErrMockDBConstraint
		}
	}
	m.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *MockPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.PayPalOrderID == orderID {
			return clonePayment(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPaymentRepository) ListByPassenger(ctx context.Context, passengerID string, offset, limit int) ([]*domain.Payment, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Payment
	for _, p := range m.payments {
		if p.PassengerID == passengerID {
			matched = append(matched, clonePayment(p))
		}
	}
	sort.Slice(matched, func(a, b int) bool {
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return []*domain.Payment{}, total, nil
	}
	return matched[offset:min(offset+limit, total)], total, nil
}

func (m *MockPaymentRepository) UpdateGuarded(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.UpdateErrors[payment.Status]; err != nil {
		if n, ok := m.updateFailures[payment.Status]; ok {
			if n <= 1 {
				delete(m.updateFailures, payment.Status)
				delete(m.UpdateErrors, payment.Status)
			} else {
				m.updateFailures[payment.Status] = n - 1
			}
		}
		return err
	}

	stored, ok := m.payments[payment.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStaleWrite
	}
	m.payments[payment.ID] = clonePayment(payment)
	return nil
}

// GetPayment returns payment for test assertions.
func (m *MockPaymentRepository) GetPayment(id string) *domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil
	}
	return clonePayment(p)
}

func clonePayment(p *domain.Payment) *domain.Payment {
	copy := *p
	copy.AdditionalJourneys = append([]string(nil), p.AdditionalJourneys...)
	copy.Metadata.Journeys = append([]string(nil), p.Metadata.Journeys...)
	if p.TransactionDetails != nil {
		td := *p.TransactionDetails
		copy.TransactionDetails = &td
	}
	if p.RefundDetails != nil {
		rd := *p.RefundDetails
		copy.RefundDetails = &rd
	}
	return &copy
}

// ──────────────────────────────────────────────
// MOCK CATALOG REPOSITORIES
// ──────────────────────────────────────────────

// MockCatalog is a read-only mock keyed by ID. It implements the schedule,
// route, passenger and driver repositories.
type MockCatalog[T any] struct {
	mu    sync.RWMutex
	items map[string]*T

	GetCallCount int32
	GetError     error
}

// NewMockCatalog creates an empty catalog.
func NewMockCatalog[T any]() *MockCatalog[T] {
	return &MockCatalog[T]{items: make(map[string]*T)}
}

// Add stores item under id.
func (m *MockCatalog[T]) Add(id string, item *T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = item
}

func (m *MockCatalog[T]) GetByID(ctx context.Context, id string) (*T, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *item
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK SETTLEMENT REPOSITORY
// ──────────────────────────────────────────────

// MockSettlementRepository is a mock implementation of SettlementRepository.
type MockSettlementRepository struct {
	mu      sync.RWMutex
	intents map[string]*domain.SettlementIntent

	CreateCallCount int32
	UpdateCallCount int32

	CreateError error
}

// NewMockSettlementRepository creates a new mock settlement repository.
func NewMockSettlementRepository() *MockSettlementRepository {
	return &MockSettlementRepository{intents: make(map[string]*domain.SettlementIntent)}
}

func (m *MockSettlementRepository) Create(ctx context.Context, intent *domain.SettlementIntent) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[intent.ID] = cloneIntent(intent)
	return nil
}

func (m *MockSettlementRepository) Update(ctx context.Context, intent *domain.SettlementIntent) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.intents[intent.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != domain.SettlementOpen {
		return repository.ErrStaleWrite
	}
	m.intents[intent.ID] = cloneIntent(intent)
	return nil
}

func (m *MockSettlementRepository) SupersedeOpen(ctx context.Context, paymentID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, in := range m.intents {
		if in.PaymentID == paymentID && in.Status == domain.SettlementOpen {
			in.Status = domain.SettlementSuperseded
			in.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (m *MockSettlementRepository) ListOpen(ctx context.Context, limit int) ([]*domain.SettlementIntent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var open []*domain.SettlementIntent
	for _, in := range m.intents {
		if in.Status == domain.SettlementOpen {
			open = append(open, cloneIntent(in))
		}
	}
	sort.Slice(open, func(a, b int) bool {
		return open[a].CreatedAt.Before(open[b].CreatedAt)
	})
	if len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

// Intents returns every stored intent for test assertions.
func (m *MockSettlementRepository) Intents() []*domain.SettlementIntent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.SettlementIntent, 0, len(m.intents))
	for _, in := range m.intents {
		out = append(out, cloneIntent(in))
	}
	return out
}

func cloneIntent(in *domain.SettlementIntent) *domain.SettlementIntent {
	copy := *in
	copy.Targets = append([]domain.SettlementTarget(nil), in.Targets...)
	return &copy
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of redis.Locker.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:" + name
	if expiry, exists := m.locks[key]; exists && time.Now().Before(expiry) {
		return false, nil // Lock still held.
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseLock(ctx context.Context, name string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:"+name)
	return nil
}

// IsLocked checks if a lock is held (for test assertions).
func (m *MockLockStore) IsLocked(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:"+name]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// MOCK KV STORE
// ──────────────────────────────────────────────

// MockKVStore is an in-memory redis.KV.
type MockKVStore struct {
	mu     sync.Mutex
	values map[string][]byte

	GetCallCount int32
	PutCallCount int32

	GetError error
	PutError error
}

// NewMockKVStore creates a new mock KV store.
func NewMockKVStore() *MockKVStore {
	return &MockKVStore{values: make(map[string][]byte)}
}

func (m *MockKVStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	atomic.AddInt32(&m.PutCallCount, 1)
	if m.PutError != nil {
		return m.PutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, false, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MockKVStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Has reports whether key is stored.
func (m *MockKVStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

// ──────────────────────────────────────────────
// MOCK PAYMENT PROVIDER
// ──────────────────────────────────────────────

// MockPaymentProvider is a scriptable payment provider.
type MockPaymentProvider struct {
	mu       sync.Mutex
	orders   int
	captured map[string]*service.ProviderCapture

	// Control behavior
	CreateError   error
	CaptureError  error
	CaptureStatus string // Defaults to COMPLETED
	LookupError   error
	RefundError   error
	RefundStatus  string // Defaults to COMPLETED

	// Counters
	CreateCallCount  int32
	CaptureCallCount int32
	LookupCallCount  int32
	RefundCallCount  int32

	LastOrder  service.OrderRequest
	LastRefund service.RefundCaptureRequest
}

// NewMockPaymentProvider creates a new mock provider.
func NewMockPaymentProvider() *MockPaymentProvider {
	return &MockPaymentProvider{captured: make(map[string]*service.ProviderCapture)}
}

func (m *MockPaymentProvider) CreateOrder(ctx context.Context, req service.OrderRequest) (*service.ProviderOrder, error) {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.orders++
	m.LastOrder = req
	id := fmt.Sprintf("ORDER-%d", m.orders)
	return &service.ProviderOrder{
		OrderID: id,
		Status:  service.ProviderStatusCreated,
		Links:   []service.ProviderLink{{Href: "https://paypal.test/approve/" + id, Rel: "approve", Method: "GET"}},
	}, nil
}

func (m *MockPaymentProvider) CaptureOrder(ctx context.Context, orderID string) (*service.ProviderCapture, error) {
	atomic.AddInt32(&m.CaptureCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CaptureError != nil {
		return nil, m.CaptureError
	}
	status := m.CaptureStatus
	if status == "" {
		status = service.ProviderStatusCompleted
	}
	capture := &service.ProviderCapture{
		OrderID:         orderID,
		Status:          status,
		CaptureID:       "CAP-" + orderID,
		PayerID:         "PAYER-1",
		ResponseCode:    status,
		ResponseMessage: "order " + status,
	}
	if status == service.ProviderStatusCompleted || status == service.ProviderStatusVoided {
		m.captured[orderID] = capture
	}
	return capture, nil
}

func (m *MockPaymentProvider) LookupCapture(ctx context.Context, orderID string) (*service.ProviderCapture, error) {
	atomic.AddInt32(&m.LookupCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	capture, ok := m.captured[orderID]
	if !ok {
		return nil, nil
	}
	copy := *capture
	return &copy, nil
}

func (m *MockPaymentProvider) RefundCapture(ctx context.Context, req service.RefundCaptureRequest) (*service.ProviderRefund, error) {
	atomic.AddInt32(&m.RefundCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRefund = req
	if m.RefundError != nil {
		return nil, m.RefundError
	}
	status := m.RefundStatus
	if status == "" {
		status = service.ProviderStatusCompleted
	}
	return &service.ProviderRefund{
		RefundID: "REF-" + req.CaptureID,
		Status:   status,
		Amount:   req.Amount,
	}, nil
}

// SetCapture configures the next captures.
func (m *MockPaymentProvider) SetCapture(status string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CaptureStatus = status
	m.CaptureError = err
}

// ──────────────────────────────────────────────
// MOCK EVENTS
// ──────────────────────────────────────────────

// PublishedMessage is a message captured by MockEventPublisher.
type PublishedMessage struct {
	RoutingKey string
	Body       []byte
}

// MockEventPublisher records published notifications.
type MockEventPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage

	PublishError error
}

// NewMockEventPublisher creates a new mock publisher.
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishError != nil {
		return m.PublishError
	}
	m.messages = append(m.messages, PublishedMessage{RoutingKey: routingKey, Body: body})
	return nil
}

// RoutingKeys returns the routing keys published so far.
func (m *MockEventPublisher) RoutingKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		keys = append(keys, msg.RoutingKey)
	}
	return keys
}

// MockEventRecorder records custom monitoring events.
type MockEventRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

// NewMockEventRecorder creates a new mock recorder.
func NewMockEventRecorder() *MockEventRecorder {
	return &MockEventRecorder{events: make(map[string]int)}
}

func (m *MockEventRecorder) RecordCustomEvent(eventType string, params map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[eventType]++
}

// Count returns how many events of eventType were recorded.
func (m *MockEventRecorder) Count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[eventType]
}

// ──────────────────────────────────────────────
// MOCK QR ENCODER
// ──────────────────────────────────────────────

// MockQREncoder returns a fixed data URI.
type MockQREncoder struct {
	EncodeCallCount int32
	EncodeError     error
}

func (m *MockQREncoder) Encode(payload string) (string, error) {
	atomic.AddInt32(&m.EncodeCallCount, 1)
	if m.EncodeError != nil {
		return "", m.EncodeError
	}
	return "data:image/png;base64,iVBORw0KGgo=", nil
}

// Ensure mocks implement interfaces.
var (
	_ repository.JourneyRepository    = (*MockJourneyRepository)(nil)
	_ repository.PaymentRepository    = (*MockPaymentRepository)(nil)
	_ repository.ScheduleRepository   = (*MockCatalog[domain.Schedule])(nil)
	_ repository.RouteRepository      = (*MockCatalog[domain.Route])(nil)
	_ repository.PassengerRepository  = (*MockCatalog[domain.Passenger])(nil)
	_ repository.DriverRepository     = (*MockCatalog[domain.Driver])(nil)
	_ repository.SettlementRepository = (*MockSettlementRepository)(nil)
	_ redis.Locker                    = (*MockLockStore)(nil)
	_ redis.KV                        = (*MockKVStore)(nil)
	_ service.PaymentProvider         = (*MockPaymentProvider)(nil)
	_ service.EventPublisher          = (*MockEventPublisher)(nil)
	_ service.EventRecorder           = (*MockEventRecorder)(nil)
	_ service.QREncoder               = (*MockQREncoder)(nil)
)

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
	ErrMockProvider     = errors.New("mock: provider unavailable")
)

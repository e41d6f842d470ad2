package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"transit/internal/domain"
	"transit/internal/repository"
)

const paymentColumns = `id, journey_id, additional_journeys, passenger_id, passenger_count, amount, currency,
	status, paypal_order_id, payer_id, transaction_details, metadata, refund_details, created_at, updated_at`

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	details, err := encodePaymentDetails(payment)
	if err != nil {
		return err
	}

	additional := payment.AdditionalJourneys
	if additional == nil {
		additional = []string{}
	}

	_, err = r.q.ExecContext(ctx, query,
		payment.ID,
		payment.JourneyID,
		pq.Array(additional),
		payment.PassengerID,
		payment.PassengerCount,
		payment.Amount,
		payment.Currency,
		payment.Status,
		nullString(payment.PayPalOrderID),
		nullString(payment.PayerID),
		details.transaction,
		details.metadata,
		details.refund,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return err
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

// GetByOrderID retrieves a payment by its provider order id.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE paypal_order_id = $1`, orderID)
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, arg string) (*domain.Payment, error) {
	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return payment, nil
}

// ListByPassenger returns one page of a passenger's payments and the total count.
func (r *PaymentRepository) ListByPassenger(ctx context.Context, passengerID string, offset, limit int) ([]*domain.Payment, int, error) {
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE passenger_id = $1`, passengerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + paymentColumns + `
		FROM payments WHERE passenger_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`

	rows, err := r.q.QueryContext(ctx, query, passengerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0, limit)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, payment)
	}

	return payments, total, rows.Err()
}

// UpdateGuarded writes the mutable payment fields if the stored status still equals expected.
func (r *PaymentRepository) UpdateGuarded(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error {
	query := `
		UPDATE payments
		SET status = $1, payer_id = $2, transaction_details = $3, metadata = $4,
			refund_details = $5, updated_at = $6
		WHERE id = $7 AND status = $8
	`

	details, err := encodePaymentDetails(payment)
	if err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx, query,
		payment.Status,
		nullString(payment.PayerID),
		details.transaction,
		details.metadata,
		details.refund,
		payment.UpdatedAt,
		payment.ID,
		expected,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrStaleWrite
	}

	return nil
}

type paymentDetails struct {
	transaction sql.NullString
	metadata    string
	refund      sql.NullString
}

func encodePaymentDetails(payment *domain.Payment) (paymentDetails, error) {
	var details paymentDetails
	var err error

	if details.transaction, err = toJSON(payment.TransactionDetails); err != nil {
		return details, fmt.Errorf("encode transaction details: %w", err)
	}
	if details.refund, err = toJSON(payment.RefundDetails); err != nil {
		return details, fmt.Errorf("encode refund details: %w", err)
	}
	metadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return details, fmt.Errorf("encode metadata: %w", err)
	}
	details.metadata = string(metadata)

	return details, nil
}

func scanPayment(s rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	var orderID, payerID sql.NullString
	var transaction, metadata, refund []byte

	if err := s.Scan(
		&payment.ID,
		&payment.JourneyID,
		pq.Array(&payment.AdditionalJourneys),
		&payment.PassengerID,
		&payment.PassengerCount,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&orderID,
		&payerID,
		&transaction,
		&metadata,
		&refund,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	); err != nil {
		return nil, err
	}

	payment.PayPalOrderID = orderID.String
	payment.PayerID = payerID.String

	var err error
	if payment.TransactionDetails, err = fromJSON[domain.TransactionDetails](transaction); err != nil {
		return nil, fmt.Errorf("decode transaction details: %w", err)
	}
	if payment.RefundDetails, err = fromJSON[domain.RefundDetails](refund); err != nil {
		return nil, fmt.Errorf("decode refund details: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &payment.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}

	return &payment, nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"transit/internal/domain"
	"transit/internal/repository"
)

// SettlementRepository is a PostgreSQL implementation of repository.SettlementRepository.
type SettlementRepository struct {
	q Querier
}

// NewSettlementRepository creates a new PostgreSQL settlement repository.
func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{q: db}
}

// Create persists a new settlement intent.
func (r *SettlementRepository) Create(ctx context.Context, intent *domain.SettlementIntent) error {
	query := `
		INSERT INTO settlement_intents (id, payment_id, target_status, targets, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	targets, err := json.Marshal(intent.Targets)
	if err != nil {
		return fmt.Errorf("encode settlement targets: %w", err)
	}

	_, err = r.q.ExecContext(ctx, query,
		intent.ID,
		intent.PaymentID,
		intent.TargetStatus,
		string(targets),
		intent.Status,
		intent.CreatedAt,
		intent.UpdatedAt,
	)

	return err
}

// Update stores the targets and status of an intent that is still open.
func (r *SettlementRepository) Update(ctx context.Context, intent *domain.SettlementIntent) error {
	query := `
		UPDATE settlement_intents SET targets = $1, status = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	targets, err := json.Marshal(intent.Targets)
	if err != nil {
		return fmt.Errorf("encode settlement targets: %w", err)
	}

	result, err := r.q.ExecContext(ctx, query, string(targets), intent.Status, intent.UpdatedAt, intent.ID, domain.SettlementOpen)
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

// SupersedeOpen marks every open intent of a payment as superseded.
func (r *SettlementRepository) SupersedeOpen(ctx context.Context, paymentID string, at time.Time) (int64, error) {
	query := `
		UPDATE settlement_intents SET status = $1, updated_at = $2
		WHERE payment_id = $3 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query, domain.SettlementSuperseded, at, paymentID, domain.SettlementOpen)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// ListOpen returns up to limit open intents, oldest first.
func (r *SettlementRepository) ListOpen(ctx context.Context, limit int) ([]*domain.SettlementIntent, error) {
	query := `
		SELECT id, payment_id, target_status, targets, status, created_at, updated_at
		FROM settlement_intents WHERE status = $1
		ORDER BY created_at ASC LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, domain.SettlementOpen, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []*domain.SettlementIntent
	for rows.Next() {
		var intent domain.SettlementIntent
		var targets []byte

		if err := rows.Scan(
			&intent.ID,
			&intent.PaymentID,
			&intent.TargetStatus,
			&targets,
			&intent.Status,
			&intent.CreatedAt,
			&intent.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(targets, &intent.Targets); err != nil {
			return nil, fmt.Errorf("decode settlement targets: %w", err)
		}

		intents = append(intents, &intent)
	}

	return intents, rows.Err()
}

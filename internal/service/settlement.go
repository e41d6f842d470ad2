package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"transit/internal/domain"
	"transit/internal/logger"
	"transit/internal/redis"
	"transit/internal/repository"
)

const (
	reconcileLockName = "settlement:reconcile"
	reconcileLockTTL  = 30 * time.Second
)

// JourneyUpdater applies a payment status to a set of journeys.
type JourneyUpdater interface {
	UpdateMultipleJourneyPaymentStatus(ctx context.Context, journeyIDs []string, status domain.JourneyPaymentStatus) (*BatchUpdateResult, error)
}

// SettlementService fans a payment outcome out to its journeys and retries
// journeys that could not be updated.
type SettlementService struct {
	repo     repository.SettlementRepository
	journeys JourneyUpdater
	locker   redis.Locker
	events   EventRecorder
	log      logger.ILogger
	now      func() time.Time
}

// NewSettlementService creates a new SettlementService. events may be nil.
func NewSettlementService(
	repo repository.SettlementRepository,
	journeys JourneyUpdater,
	locker redis.Locker,
	events EventRecorder,
	log logger.ILogger,
) *SettlementService {
	return &SettlementService{
		repo:     repo,
		journeys: journeys,
		locker:   locker,
		events:   events,
		log:      log,
		now:      time.Now,
	}
}

// Settle records an intent to move journeyIDs of a payment to status and
// applies it. Journeys that fail stay pending on the intent for Reconcile.
// Older open intents of the payment are superseded so Reconcile never
// replays an outcome the payment has since moved past.
func (s *SettlementService) Settle(ctx context.Context, paymentID string, status domain.JourneyPaymentStatus, journeyIDs []string) (*domain.SettlementIntent, error) {
	if len(journeyIDs) == 0 {
		return nil, ErrMissingJourneyIDs
	}

	now := s.now()
	intent := &domain.SettlementIntent{
		ID:           uuid.New().String(),
		PaymentID:    paymentID,
		TargetStatus: status,
		Status:       domain.SettlementOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, id := range journeyIDs {
		intent.Targets = append(intent.Targets, domain.SettlementTarget{
			JourneyID: id,
			Outcome:   domain.OutcomePending,
		})
	}

	if n, err := s.repo.SupersedeOpen(ctx, paymentID, now); err != nil {
		s.log.Error("failed to supersede open settlement intents",
			logger.String("payment_id", paymentID),
			logger.Error(err),
		)
	} else if n > 0 {
		s.log.Info("superseded open settlement intents",
			logger.String("payment_id", paymentID),
			logger.Int64("count", n),
		)
	}

	persisted := true
	if err := s.repo.Create(ctx, intent); err != nil {
		persisted = false
		s.log.Error("failed to record settlement intent",
			logger.String("payment_id", paymentID),
			logger.Error(err),
		)
	}

	if err := s.apply(ctx, intent); err != nil {
		return intent, err
	}

	if persisted {
		if err := s.repo.Update(ctx, intent); err != nil {
			s.log.Error("failed to update settlement intent",
				logger.String("intent_id", intent.ID),
				logger.Error(err),
			)
		}
	}

	if intent.Status != domain.SettlementSettled {
		s.recordEvent("SettlementFanOutFailure", map[string]interface{}{
			"paymentId":      paymentID,
			"targetStatus":   string(status),
			"pendingCount":   len(intent.PendingJourneyIDs()),
			"journeyCount":   len(journeyIDs),
			"intentRecorded": persisted,
		})
	}

	return intent, nil
}

// apply updates the intent's pending journeys and records each outcome.
func (s *SettlementService) apply(ctx context.Context, intent *domain.SettlementIntent) error {
	pending := intent.PendingJourneyIDs()
	if len(pending) == 0 {
		intent.Status = domain.SettlementSettled
		return nil
	}

	batch, err := s.journeys.UpdateMultipleJourneyPaymentStatus(ctx, pending, intent.TargetStatus)
	if err != nil {
		return err
	}

	now := s.now()
	for _, res := range batch.Results {
		intent.Record(res.JourneyID, res.Err, now)
	}
	return nil
}

// Reconcile retries up to batchSize open intents. It returns how many were
// settled. Only one instance reconciles at a time.
func (s *SettlementService) Reconcile(ctx context.Context, batchSize int) (int, error) {
	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, reconcileLockName, reconcileLockTTL)
		if err != nil {
			return 0, err
		}
		if !acquired {
			return 0, nil
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.Background(), reconcileLockName); err != nil {
				s.log.Warning("failed to release reconcile lock", logger.Error(err))
			}
		}()
	}

	intents, err := s.repo.ListOpen(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, intent := range intents {
		if err := s.apply(ctx, intent); err != nil {
			s.log.Error("settlement retry failed", logger.String("intent_id", intent.ID), logger.Error(err))
			continue
		}
		if err := s.repo.Update(ctx, intent); err != nil {
			s.log.Error("failed to update settlement intent", logger.String("intent_id", intent.ID), logger.Error(err))
			continue
		}
		if intent.Status == domain.SettlementSettled {
			settled++
		}
	}

	if len(intents) > 0 {
		s.log.Info("settlement reconcile finished",
			logger.Int("open", len(intents)),
			logger.Int("settled", settled),
		)
	}

	return settled, nil
}

// Run reconciles on every tick until ctx is cancelled.
func (s *SettlementService) Run(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Reconcile(ctx, batchSize); err != nil {
				s.log.Error("settlement reconcile failed", logger.Error(err))
			}
		}
	}
}

func (s *SettlementService) recordEvent(eventType string, params map[string]interface{}) {
	if s.events != nil {
		s.events.RecordCustomEvent(eventType, params)
	}
}

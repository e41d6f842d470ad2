package domain

import "time"

// SettlementStatus is the status of a settlement intent.
type SettlementStatus string

const (
	SettlementOpen       SettlementStatus = "open"
	SettlementSettled    SettlementStatus = "settled"
	SettlementSuperseded SettlementStatus = "superseded"
)

// TargetOutcome is the outcome of updating one journey in a settlement.
type TargetOutcome string

const (
	OutcomePending TargetOutcome = "pending"
	OutcomeApplied TargetOutcome = "applied"
	OutcomeFailed  TargetOutcome = "failed"
)

// SettlementTarget tracks one journey a payment outcome must reach.
type SettlementTarget struct {
	JourneyID string        `json:"journeyId"`
	Outcome   TargetOutcome `json:"outcome"`
	Attempts  int           `json:"attempts"`
	LastError string        `json:"lastError,omitempty"`
}

// SettlementIntent records the fan-out of a payment outcome to its journeys
// so partial failures can be retried.
type SettlementIntent struct {
	ID           string
	PaymentID    string
	TargetStatus JourneyPaymentStatus
	Targets      []SettlementTarget
	Status       SettlementStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PendingJourneyIDs returns the journeys not yet updated.
func (s *SettlementIntent) PendingJourneyIDs() []string {
	var ids []string
	for _, t := range s.Targets {
		if t.Outcome != OutcomeApplied {
			ids = append(ids, t.JourneyID)
		}
	}
	return ids
}

// Record stores the outcome of one attempt for a journey and settles the
// intent once every target is applied.
func (s *SettlementIntent) Record(journeyID string, err error, now time.Time) {
	for i := range s.Targets {
		if s.Targets[i].JourneyID != journeyID {
			continue
		}
		s.Targets[i].Attempts++
		if err != nil {
			s.Targets[i].Outcome = OutcomeFailed
			s.Targets[i].LastError = err.Error()
		} else {
			s.Targets[i].Outcome = OutcomeApplied
			s.Targets[i].LastError = ""
		}
	}
	s.UpdatedAt = now
	if len(s.PendingJourneyIDs()) == 0 {
		s.Status = SettlementSettled
	}
}

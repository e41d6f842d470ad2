package domain

import (
	"errors"
	"testing"
	"time"
)

func TestJourneyCancel(t *testing.T) {
	now := time.Now()

	j := &Journey{Status: JourneyStatusBooked}
	if err := j.Cancel(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Status != JourneyStatusCancelled || !j.UpdatedAt.Equal(now) {
		t.Errorf("expected cancelled at %v, got %s at %v", now, j.Status, j.UpdatedAt)
	}

	for _, status := range []JourneyStatus{JourneyStatusInProgress, JourneyStatusCompleted, JourneyStatusCancelled} {
		j := &Journey{Status: status}
		if err := j.Cancel(now); !errors.Is(err, ErrJourneyNotCancellable) {
			t.Errorf("%s: expected ErrJourneyNotCancellable, got %v", status, err)
		}
		if j.Status != status {
			t.Errorf("%s: status changed to %s", status, j.Status)
		}
	}
}

func TestJourneyVerify(t *testing.T) {
	now := time.Now()
	calls := 0
	issue := func() string { calls++; return "BUS-20250310-4321" }

	cash := &Journey{PaymentMethod: PaymentMethodInBus, PaymentStatus: JourneyPaymentPending}
	if err := cash.Verify("driver-1", now, issue); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cash.PaymentStatus != JourneyPaymentPaid || cash.TicketNumber != "BUS-20250310-4321" {
		t.Errorf("expected cash journey paid with ticket, got %s %q", cash.PaymentStatus, cash.TicketNumber)
	}
	if err := cash.Verify("driver-2", now, issue); err != ErrJourneyAlreadyVerified {
		t.Errorf("expected ErrJourneyAlreadyVerified, got %v", err)
	}
	if cash.VerifiedBy != "driver-1" {
		t.Errorf("expected first verifier kept, got %s", cash.VerifiedBy)
	}

	online := &Journey{PaymentMethod: PaymentMethodOnline, PaymentStatus: JourneyPaymentPending}
	if err := online.Verify("driver-1", now, issue); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if online.PaymentStatus != JourneyPaymentPending || online.TicketNumber != "" {
		t.Errorf("expected online journey unchanged, got %s %q", online.PaymentStatus, online.TicketNumber)
	}
	if calls != 1 {
		t.Errorf("expected one ticket issued, got %d", calls)
	}
}

func TestJourneySetPaymentStatus_KeepsExistingTicket(t *testing.T) {
	j := &Journey{TicketNumber: "BUS-20250101-1111"}
	j.SetPaymentStatus(JourneyPaymentPaid, time.Now(), func() string { return "BUS-20250101-2222" })

	if j.TicketNumber != "BUS-20250101-1111" {
		t.Errorf("expected existing ticket kept, got %s", j.TicketNumber)
	}
}

func TestRouteSnapshot(t *testing.T) {
	r := &Route{ID: "r", Name: "Coastal", Stops: []Stop{{Name: "A"}, {Name: "B"}, {Name: "C"}}}
	s := r.Snapshot()
	if s.StartLocation.Name != "A" || s.EndLocation.Name != "C" {
		t.Errorf("expected A to C, got %s to %s", s.StartLocation.Name, s.EndLocation.Name)
	}

	single := (&Route{Stops: []Stop{{Name: "A"}}}).Snapshot()
	if single.StartLocation != nil || single.EndLocation != nil {
		t.Error("expected no locations for a single-stop route")
	}
}

func TestPaymentJourneyIDs(t *testing.T) {
	p := &Payment{JourneyID: "j1", AdditionalJourneys: []string{"j2", "j3"}}
	ids := p.JourneyIDs()
	if len(ids) != 3 || ids[0] != "j1" || ids[2] != "j3" {
		t.Errorf("expected primary first, got %v", ids)
	}
	if !p.IsGroup() {
		t.Error("expected group payment")
	}
	if p.CaptureID() != "" {
		t.Error("expected no capture id before capture")
	}
}

func TestSettlementIntentRecord(t *testing.T) {
	intent := &SettlementIntent{
		Status: SettlementOpen,
		Targets: []SettlementTarget{
			{JourneyID: "j1", Outcome: OutcomePending},
			{JourneyID: "j2", Outcome: OutcomePending},
		},
	}
	now := time.Now()

	intent.Record("j1", nil, now)
	intent.Record("j2", errors.New("timeout"), now)
	if intent.Status != SettlementOpen {
		t.Fatalf("expected open intent, got %s", intent.Status)
	}
	if pending := intent.PendingJourneyIDs(); len(pending) != 1 || pending[0] != "j2" {
		t.Errorf("expected j2 pending, got %v", pending)
	}
	if intent.Targets[1].LastError != "timeout" {
		t.Errorf("expected last error recorded, got %q", intent.Targets[1].LastError)
	}

	intent.Record("j2", nil, now)
	if intent.Status != SettlementSettled {
		t.Errorf("expected settled, got %s", intent.Status)
	}
	if intent.Targets[1].Attempts != 2 || intent.Targets[1].LastError != "" {
		t.Errorf("unexpected target %+v", intent.Targets[1])
	}
}

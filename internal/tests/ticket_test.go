package tests

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"transit/internal/domain"
	"transit/internal/service"
)

var ticketNumberPattern = regexp.MustCompile(`^BUS-\d{8}-\d{4}$`)

func TestTicketNumber_Format(t *testing.T) {
	t.Parallel()
	issuer := service.NewTicketIssuer(testSecret, &MockQREncoder{})
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		number := issuer.TicketNumber(now)
		if !ticketNumberPattern.MatchString(number) {
			t.Fatalf("ticket number %q does not match BUS-YYYYMMDD-NNNN", number)
		}
		if !strings.HasPrefix(number, "BUS-20250310-") {
			t.Fatalf("ticket number %q does not carry the issue date", number)
		}
	}
}

func TestBuildPayload_SignsJourneyIdentity(t *testing.T) {
	t.Parallel()
	issuer := service.NewTicketIssuer(testSecret, &MockQREncoder{})
	journey := &domain.Journey{ID: "journey-1", PassengerID: testPassengerID, ScheduleID: testScheduleID}

	raw, err := issuer.BuildPayload(journey, time.UnixMilli(1700000000000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload service.QRPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload.Timestamp != 1700000000000 {
		t.Errorf("expected timestamp in milliseconds, got %d", payload.Timestamp)
	}
	if payload.Hash != issuer.Digest("journey-1", testPassengerID, testScheduleID) {
		t.Error("expected hash to be the digest of the journey identity")
	}
	if len(payload.Hash) != 64 {
		t.Errorf("expected hex sha256 hash, got %d chars", len(payload.Hash))
	}
}

func TestVerifyPayload_RejectsTampering(t *testing.T) {
	t.Parallel()
	issuer := service.NewTicketIssuer(testSecret, &MockQREncoder{})
	other := service.NewTicketIssuer("another-secret", &MockQREncoder{})
	journey := &domain.Journey{ID: "journey-1", PassengerID: testPassengerID, ScheduleID: testScheduleID}

	raw, err := issuer.BuildPayload(journey, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := issuer.VerifyPayload(raw); err != nil {
		t.Fatalf("expected genuine payload to verify, got %v", err)
	}

	forged := strings.Replace(raw, testPassengerID, testOtherID, 1)
	testCases := []struct {
		name   string
		issuer *service.TicketIssuer
		raw    string
	}{
		{"changed passenger", issuer, forged},
		{"different secret", other, raw},
		{"not json", issuer, "BUS-20250310-1234"},
		{"empty object", issuer, "{}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.issuer.VerifyPayload(tc.raw); err != service.ErrInvalidQRPayload {
				t.Errorf("expected ErrInvalidQRPayload, got %v", err)
			}
		})
	}
}

func TestPNGQREncoder_ProducesDataURI(t *testing.T) {
	t.Parallel()
	encoder := service.NewPNGQREncoder(128)

	uri, err := encoder.Encode(`{"journeyId":"journey-1"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("expected PNG data URI, got %q", uri[:min(len(uri), 32)])
	}
}

package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"transit/internal/domain"
)

// QREncoder renders a payload as an image data URI.
type QREncoder interface {
	Encode(payload string) (string, error)
}

// PNGQREncoder encodes payloads as PNG QR codes.
type PNGQREncoder struct {
	size int
}

// NewPNGQREncoder creates a QR encoder producing size x size images.
func NewPNGQREncoder(size int) *PNGQREncoder {
	if size <= 0 {
		size = 256
	}
	return &PNGQREncoder{size: size}
}

// Encode returns the payload as a base64 PNG data URI.
func (e *PNGQREncoder) Encode(payload string) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, e.size)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return qrDataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// QRPayload is the content of a ticket QR code.
type QRPayload struct {
	JourneyID   string `json:"journeyId"`
	PassengerID string `json:"passengerId"`
	ScheduleID  string `json:"scheduleId"`
	Timestamp   int64  `json:"timestamp"`
	Hash        string `json:"hash"`
}

// TicketIssuer builds ticket QR codes and ticket numbers.
type TicketIssuer struct {
	secret  string
	encoder QREncoder
}

// NewTicketIssuer creates a new TicketIssuer signing with secret.
func NewTicketIssuer(secret string, encoder QREncoder) *TicketIssuer {
	return &TicketIssuer{
		secret:  secret,
		encoder: encoder,
	}
}

// Digest returns the hex SHA-256 of journeyID|passengerID|scheduleID|secret.
func (t *TicketIssuer) Digest(journeyID, passengerID, scheduleID string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{journeyID, passengerID, scheduleID, t.secret}, "|")))
	return hex.EncodeToString(sum[:])
}

// BuildPayload returns the JSON QR payload for a journey.
func (t *TicketIssuer) BuildPayload(journey *domain.Journey, now time.Time) (string, error) {
	payload := QRPayload{
		JourneyID:   journey.ID,
		PassengerID: journey.PassengerID,
		ScheduleID:  journey.ScheduleID,
		Timestamp:   now.UnixMilli(),
		Hash:        t.Digest(journey.ID, journey.PassengerID, journey.ScheduleID),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IssueQR builds the journey's QR payload and renders it.
func (t *TicketIssuer) IssueQR(journey *domain.Journey, now time.Time) (string, error) {
	payload, err := t.BuildPayload(journey, now)
	if err != nil {
		return "", err
	}
	return t.encoder.Encode(payload)
}

// VerifyPayload parses a scanned QR payload and checks its hash.
func (t *TicketIssuer) VerifyPayload(raw string) (*QRPayload, error) {
	var payload QRPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, ErrInvalidQRPayload
	}
	if payload.JourneyID == "" || payload.Hash == "" {
		return nil, ErrInvalidQRPayload
	}

	expected := t.Digest(payload.JourneyID, payload.PassengerID, payload.ScheduleID)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(payload.Hash)) != 1 {
		return nil, ErrInvalidQRPayload
	}

	return &payload, nil
}

// TicketNumber returns a number of the form BUS-YYYYMMDD-NNNN.
func (t *TicketIssuer) TicketNumber(now time.Time) string {
	return fmt.Sprintf("BUS-%s-%04d", now.Format("20060102"), 1000+rand.IntN(9000))
}

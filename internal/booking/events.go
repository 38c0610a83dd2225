package booking

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventReservationInitiated       = "ReservationInitiated"
	EventReservationSessionAttached = "ReservationSessionAttached"
	EventReservationConfirmed       = "ReservationConfirmed"
	EventReservationAbandoned       = "ReservationAbandoned"

	EventPaymentSucceeded = "PaymentSucceeded"
	EventCheckoutExpired  = "CheckoutExpired"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "booking-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // reservation_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type ReservationInitiatedPayload struct {
	ReservationID string    `json:"reservation_id"`
	RoomID        string    `json:"room_id"`
	GuestID       string    `json:"guest_id"`
	CheckIn       Date      `json:"check_in"`
	CheckOut      Date      `json:"check_out"`
	Guests        int       `json:"guests"`
	TotalCents    int64     `json:"total_cents"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type ReservationSessionAttachedPayload struct {
	ReservationID string `json:"reservation_id"`
	SessionID     string `json:"session_id"`
}

type ReservationConfirmedPayload struct {
	ReservationID string `json:"reservation_id"`
	RoomID        string `json:"room_id"`
	PaymentRef    string `json:"payment_ref"`
	TotalCents    int64  `json:"total_cents"`
}

type ReservationAbandonedPayload struct {
	ReservationID string `json:"reservation_id"`
	RoomID        string `json:"room_id,omitempty"`
	Reason        string `json:"reason"` // EXPIRED | CANCELLED
}

const (
	ReasonExpired   = "EXPIRED"
	ReasonCancelled = "CANCELLED"
)

// EventPublisher receives lifecycle events; kafka.Emitter is the production one.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, correlationID string, payload any)
}

// StatusCache is told whenever a reservation's status may have changed.
type StatusCache interface {
	Invalidate(ctx context.Context, reservationID string)
}

package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 10 * time.Second

// Reservations is the slice of booking.Service the broker drives.
type Reservations interface {
	GetReservation(ctx context.Context, id string) (booking.Reservation, error)
	AttachSession(ctx context.Context, id, sessionID string) (booking.Reservation, error)
	ConfirmPayment(ctx context.Context, id, paymentRef string) (booking.Reservation, error)
	Expire(ctx context.Context, id string) (booking.Reservation, error)
}

// Deduper remembers processed provider event ids. redisx.Dedup implements it.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type Broker struct {
	Reservations Reservations
	Provider     Provider
	Currency     string
	Timeout      time.Duration
	SuccessURL   string
	CancelURL    string
	Dedup        Deduper // optional
	Log          logrus.FieldLogger
}

// Session is the redirect target handed back to the guest. URL is preferred;
// SessionID alone means the client uses the provider's redirect API.
type Session struct {
	ID            string
	URL           string
	ReservationID string
	ExpiresAt     time.Time
}

func (b *Broker) timeout() time.Duration {
	if b.Timeout > 0 {
		return b.Timeout
	}
	return DefaultTimeout
}

func (b *Broker) log() logrus.FieldLogger {
	if b.Log != nil {
		return b.Log
	}
	return logrus.StandardLogger()
}

// CreateSession requests a hosted payment session for an awaiting-payment
// reservation. A provider failure leaves the reservation untouched, so the
// call can be repeated.
func (b *Broker) CreateSession(ctx context.Context, reservationID string) (Session, error) {
	res, err := b.Reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return Session{}, err
	}
	if res.Status != booking.StatusAwaitingPayment {
		return Session{}, fmt.Errorf("%w: checkout for a %s reservation", booking.ErrInvalidTransition, res.Status)
	}

	pctx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()
	ps, err := b.Provider.CreateSession(pctx, SessionRequest{
		ReservationID: res.ID,
		AmountCents:   res.TotalCents,
		Currency:      b.Currency,
		Description:   fmt.Sprintf("Room %s, %s (%d nights)", res.RoomID, res.Range, res.Range.Nights()),
		SuccessURL:    b.SuccessURL,
		CancelURL:     b.CancelURL,
		ExpiresAt:     res.ExpiresAt,
	})
	if err != nil {
		b.log().WithError(err).WithField("reservation_id", res.ID).Error("payment session request failed")
		return Session{}, fmt.Errorf("%w: %v", booking.ErrSessionCreationFailed, err)
	}

	if ps.ID != "" {
		if _, err := b.Reservations.AttachSession(ctx, res.ID, ps.ID); err != nil {
			return Session{}, err
		}
	}
	b.log().WithFields(logrus.Fields{
		"reservation_id": res.ID, "session_id": ps.ID, "amount_cents": res.TotalCents, "currency": b.Currency,
	}).Info("checkout session created")
	return Session{ID: ps.ID, URL: ps.URL, ReservationID: res.ID, ExpiresAt: res.ExpiresAt}, nil
}

// Event is a payment provider callback, delivered by webhook or relayed on payment.events.
type Event struct {
	ID               string `json:"event_id" validate:"required"`
	Type             string `json:"type" validate:"required"`
	SessionID        string `json:"session_id"`
	ReservationID    string `json:"reservation_id" validate:"required"`
	PaymentReference string `json:"payment_reference"`
}

// HandleEvent applies a provider event at most once per event id. A claim is
// released when processing fails with a retryable error.
func (b *Broker) HandleEvent(ctx context.Context, ev Event) error {
	if ev.ID == "" || ev.ReservationID == "" {
		return fmt.Errorf("%w: event_id and reservation_id are required", booking.ErrInvalidInput)
	}
	log := b.log().WithFields(logrus.Fields{
		"event_id": ev.ID, "type": ev.Type, "reservation_id": ev.ReservationID,
	})

	if b.Dedup != nil {
		first, err := b.Dedup.Claim(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("dedup claim: %w", err)
		}
		if !first {
			log.Debug("duplicate provider event skipped")
			return nil
		}
	}

	err := b.apply(ctx, ev)
	if err != nil && b.Dedup != nil && !Permanent(err) {
		if rerr := b.Dedup.Release(ctx, ev.ID); rerr != nil {
			log.WithError(rerr).Warn("dedup release failed")
		}
	}
	if err != nil {
		log.WithError(err).Warn("provider event not applied")
	}
	return err
}

func (b *Broker) apply(ctx context.Context, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()

	switch ev.Type {
	case booking.EventPaymentSucceeded:
		ref := ev.PaymentReference
		if ref == "" {
			ref = ev.SessionID
		}
		_, err := b.Reservations.ConfirmPayment(ctx, ev.ReservationID, ref)
		return err
	case booking.EventCheckoutExpired:
		_, err := b.Reservations.Expire(ctx, ev.ReservationID)
		if errors.Is(err, booking.ErrNotExpired) {
			// sesi provider habis duluan; reservasi masih dalam window, guest boleh retry checkout
			return nil
		}
		if errors.Is(err, booking.ErrInvalidTransition) {
			// sudah confirmed / abandoned: confirm selalu menang
			return nil
		}
		return err
	default:
		b.log().WithField("type", ev.Type).Debug("unhandled provider event type")
		return nil
	}
}

// Permanent reports errors that a redelivery cannot fix.
func Permanent(err error) bool {
	return errors.Is(err, booking.ErrInvalidTransition) ||
		errors.Is(err, booking.ErrNotFound) ||
		errors.Is(err, booking.ErrInvalidInput) ||
		errors.Is(err, booking.ErrForbidden)
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultHoldTTL = 30 * time.Minute

// Service is the availability engine plus the reservation state machine.
// Events and Cache are optional.
type Service struct {
	Store   Store
	Events  EventPublisher
	Cache   StatusCache
	Log     *logrus.Logger
	HoldTTL time.Duration
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) today() Date { return DateOf(s.now()) }

func (s *Service) holdTTL() time.Duration {
	if s.HoldTTL > 0 {
		return s.HoldTTL
	}
	return DefaultHoldTTL
}

func (s *Service) log() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

func (s *Service) publish(ctx context.Context, eventType, id string, payload any) {
	if s.Events != nil {
		s.Events.PublishEvent(ctx, eventType, id, payload)
	}
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, id)
	}
}

// ---- Availability engine ----

// CheckAvailability is the advisory check: read-only, repeatable, possibly stale.
func (s *Service) CheckAvailability(ctx context.Context, roomID string, r DateRange) (bool, error) {
	if err := r.ValidateFrom(s.today()); err != nil {
		return false, err
	}
	room, err := s.Store.GetRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	if !room.IsAvailable {
		return false, nil
	}
	busy, err := s.Store.HasOverlap(ctx, roomID, r)
	if err != nil {
		return false, err
	}
	return !busy, nil
}

// ---- Reservation state machine ----

type InitiateInput struct {
	RoomID  string
	GuestID string
	Range   DateRange
	Guests  int
}

// Initiate creates an awaiting-payment reservation after the authoritative
// overlap check. Fails with ErrRoomUnavailable even when an earlier advisory
// check said the room was free.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (Reservation, error) {
	if strings.TrimSpace(in.GuestID) == "" {
		return Reservation{}, fmt.Errorf("%w: guest", ErrNotFound)
	}
	if in.Guests < 1 {
		return Reservation{}, fmt.Errorf("%w: guests must be at least 1", ErrInvalidInput)
	}
	if err := in.Range.ValidateFrom(s.today()); err != nil {
		return Reservation{}, err
	}
	room, err := s.Store.GetRoom(ctx, in.RoomID)
	if err != nil {
		return Reservation{}, err
	}

	now := s.now()
	res := Reservation{
		ID:         uuid.NewString(),
		RoomID:     room.ID,
		GuestID:    in.GuestID,
		Range:      in.Range,
		Guests:     in.Guests,
		TotalCents: room.PriceCents * int64(in.Range.Nights()),
		Status:     StatusAwaitingPayment,
		ExpiresAt:  now.Add(s.holdTTL()),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	abandoned, err := s.Store.CreateReservation(ctx, res, now)
	for _, id := range abandoned {
		s.invalidate(ctx, id)
		s.publish(ctx, EventReservationAbandoned, id, ReservationAbandonedPayload{
			ReservationID: id, RoomID: room.ID, Reason: ReasonExpired,
		})
	}
	if err != nil {
		if errors.Is(err, ErrRoomUnavailable) {
			s.log().WithFields(logrus.Fields{
				"room_id": room.ID, "range": in.Range.String(), "guest_id": in.GuestID,
			}).Info("initiate rejected: overlap at commit time")
		}
		return Reservation{}, err
	}

	s.log().WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"room_id":        res.RoomID,
		"range":          res.Range.String(),
		"total_cents":    res.TotalCents,
		"expires_at":     res.ExpiresAt,
	}).Info("reservation awaiting payment")

	s.publish(ctx, EventReservationInitiated, res.ID, ReservationInitiatedPayload{
		ReservationID: res.ID,
		RoomID:        res.RoomID,
		GuestID:       res.GuestID,
		CheckIn:       res.Range.CheckIn,
		CheckOut:      res.Range.CheckOut,
		Guests:        res.Guests,
		TotalCents:    res.TotalCents,
		ExpiresAt:     res.ExpiresAt,
	})
	return res, nil
}

func (s *Service) GetReservation(ctx context.Context, id string) (Reservation, error) {
	return s.Store.GetReservation(ctx, id)
}

// AttachSession records the checkout session back-reference. Not a transition.
func (s *Service) AttachSession(ctx context.Context, id, sessionID string) (Reservation, error) {
	res, err := s.Store.UpdateReservation(ctx, id, func(r *Reservation) (bool, error) {
		if r.Status != StatusAwaitingPayment {
			return false, fmt.Errorf("%w: cannot attach a session to a %s reservation", ErrInvalidTransition, r.Status)
		}
		if r.SessionID == sessionID {
			return false, nil
		}
		r.SessionID = sessionID
		r.UpdatedAt = s.now()
		return true, nil
	})
	if err != nil {
		return res, s.report(id, "attach-session", err)
	}
	s.invalidate(ctx, id)
	s.publish(ctx, EventReservationSessionAttached, id, ReservationSessionAttachedPayload{
		ReservationID: id, SessionID: sessionID,
	})
	return res, nil
}

// ConfirmPayment moves awaiting-payment -> confirmed. A repeated callback for
// an already-confirmed reservation is a no-op. Confirmation wins over an
// expiry that has not been applied yet, even past ExpiresAt.
func (s *Service) ConfirmPayment(ctx context.Context, id, paymentRef string) (Reservation, error) {
	applied := false
	res, err := s.Store.UpdateReservation(ctx, id, func(r *Reservation) (bool, error) {
		switch r.Status {
		case StatusConfirmed:
			if paymentRef == "" || r.PaymentRef == paymentRef {
				return false, nil
			}
			return false, fmt.Errorf("%w: already confirmed with a different payment reference", ErrInvalidTransition)
		case StatusAwaitingPayment:
			r.Status = StatusConfirmed
			r.PaymentRef = paymentRef
			r.UpdatedAt = s.now()
			applied = true
			return true, nil
		default:
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusConfirmed)
		}
	})
	if err != nil {
		return res, s.report(id, "confirm", err)
	}
	if !applied {
		s.log().WithField("reservation_id", id).Debug("duplicate payment confirmation ignored")
		return res, nil
	}

	s.invalidate(ctx, id)
	s.log().WithFields(logrus.Fields{
		"reservation_id": id, "payment_ref": paymentRef, "total_cents": res.TotalCents,
	}).Info("reservation confirmed")
	s.publish(ctx, EventReservationConfirmed, id, ReservationConfirmedPayload{
		ReservationID: id, RoomID: res.RoomID, PaymentRef: paymentRef, TotalCents: res.TotalCents,
	})
	return res, nil
}

// Expire abandons an awaiting-payment reservation whose window has elapsed.
// It never touches a confirmed reservation.
func (s *Service) Expire(ctx context.Context, id string) (Reservation, error) {
	now := s.now()
	res, err := s.Store.UpdateReservation(ctx, id, func(r *Reservation) (bool, error) {
		if !CanTransition(r.Status, StatusAbandoned) {
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusAbandoned)
		}
		if !r.Overdue(now) {
			return false, ErrNotExpired
		}
		r.Status = StatusAbandoned
		r.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotExpired) {
			return res, err
		}
		return res, s.report(id, "expire", err)
	}
	s.abandoned(ctx, res, ReasonExpired)
	return res, nil
}

// Cancel is the guest-initiated awaiting-payment -> abandoned.
func (s *Service) Cancel(ctx context.Context, id, guestID string) (Reservation, error) {
	res, err := s.Store.UpdateReservation(ctx, id, func(r *Reservation) (bool, error) {
		if r.GuestID != guestID {
			return false, fmt.Errorf("%w: reservation belongs to another guest", ErrForbidden)
		}
		if !CanTransition(r.Status, StatusAbandoned) {
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusAbandoned)
		}
		r.Status = StatusAbandoned
		r.UpdatedAt = s.now()
		return true, nil
	})
	if err != nil {
		return res, s.report(id, "cancel", err)
	}
	s.abandoned(ctx, res, ReasonCancelled)
	return res, nil
}

func (s *Service) abandoned(ctx context.Context, res Reservation, reason string) {
	s.invalidate(ctx, res.ID)
	s.log().WithFields(logrus.Fields{
		"reservation_id": res.ID, "room_id": res.RoomID, "reason": reason,
	}).Info("reservation abandoned")
	s.publish(ctx, EventReservationAbandoned, res.ID, ReservationAbandonedPayload{
		ReservationID: res.ID, RoomID: res.RoomID, Reason: reason,
	})
}

// report logs InvalidTransition as a divergence signal and passes err through.
func (s *Service) report(id, op string, err error) error {
	if errors.Is(err, ErrInvalidTransition) {
		s.log().WithFields(logrus.Fields{
			"reservation_id": id, "op": op,
		}).WithError(err).Warn("state machine misuse")
	}
	return err
}

// ExpireOverdue abandons up to limit overdue reservations and returns how many it moved.
func (s *Service) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	ids, err := s.Store.ListOverdue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if _, err := s.Expire(ctx, id); err != nil {
			// kalah race dengan confirm / cancel -> bukan error sweeper
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotExpired) || errors.Is(err, ErrNotFound) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// RunSweeper calls ExpireOverdue every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration, batch int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.ExpireOverdue(ctx, batch)
			if err != nil {
				s.log().WithError(err).Error("expiry sweep failed")
				continue
			}
			if n > 0 {
				s.log().WithField("count", n).Info("expired overdue reservations")
			}
		}
	}
}

func (s *Service) GuestReservations(ctx context.Context, guestID string) ([]Reservation, error) {
	return s.Store.ReservationsByGuest(ctx, guestID)
}

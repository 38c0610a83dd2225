package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/ariefcatur/go-hotel-booking/internal/checkout"
	"github.com/ariefcatur/go-hotel-booking/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type CheckoutHandler struct {
	Service       *booking.Service
	Broker        *checkout.Broker
	Idem          *redisx.Idempotency // optional
	WebhookSecret string
	Log           logrus.FieldLogger
}

type CreateSessionReq struct {
	RoomID        string `json:"roomId" validate:"required_without=ReservationID"`
	CheckInDate   string `json:"checkInDate"`
	CheckOutDate  string `json:"checkOutDate"`
	Guests        int    `json:"guests" validate:"omitempty,min=1"`
	ReservationID string `json:"reservationId"`
}

type CreateSessionResp struct {
	Success       bool      `json:"success"`
	URL           string    `json:"url,omitempty"`
	ID            string    `json:"id,omitempty"`
	ReservationID string    `json:"reservationId"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

const IdempotencyHeader = "Idempotency-Key"

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Post("/api/checkout/create-session", h.createSession)
	r.Post("/api/checkout/webhook", h.webhook)
}

func (h *CheckoutHandler) createSession(w http.ResponseWriter, r *http.Request) {
	guest, ok := requireUser(w, r, h.Log)
	if !ok {
		return
	}
	var req CreateSessionReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second+h.Broker.Timeout)
	defer cancel()

	resID, err := h.reservationFor(ctx, guest, strings.TrimSpace(r.Header.Get(IdempotencyHeader)), req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	// reservasi tetap awaiting-payment kalau provider gagal; client boleh retry pakai reservationId
	s, err := h.Broker.CreateSession(ctx, resID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, CreateSessionResp{
		Success:       true,
		URL:           s.URL,
		ID:            s.ID,
		ReservationID: s.ReservationID,
		ExpiresAt:     s.ExpiresAt,
	})
}

// reservationFor resolves the reservation to check out: an explicit retry, a
// replay of an earlier Idempotency-Key, or a freshly initiated one.
func (h *CheckoutHandler) reservationFor(ctx context.Context, guest, key string, req CreateSessionReq) (string, error) {
	if req.ReservationID != "" {
		res, err := h.Service.GetReservation(ctx, req.ReservationID)
		if err != nil {
			return "", err
		}
		if res.GuestID != guest {
			return "", fmt.Errorf("%w: reservation %s", booking.ErrNotFound, req.ReservationID)
		}
		return res.ID, nil
	}

	// klaim key dulu: klik ganda yang bersamaan menunggu reservasi yang pertama
	claimed := false
	if key != "" && h.Idem != nil {
		id, ok, err := h.Idem.Claim(ctx, guest, key)
		switch {
		case err != nil:
			h.Log.WithError(err).Warn("idempotency claim failed")
		case !ok:
			return id, nil
		default:
			claimed = true
		}
	}

	res, err := h.initiate(ctx, guest, req)
	if err != nil {
		if claimed {
			if ferr := h.Idem.Forget(context.WithoutCancel(ctx), guest, key); ferr != nil {
				h.Log.WithError(ferr).Warn("idempotency release failed")
			}
		}
		return "", err
	}
	if claimed {
		if err := h.Idem.Remember(ctx, guest, key, res.ID); err != nil {
			h.Log.WithError(err).WithField("reservation_id", res.ID).Warn("idempotency remember failed")
		}
	}
	return res.ID, nil
}

func (h *CheckoutHandler) initiate(ctx context.Context, guest string, req CreateSessionReq) (booking.Reservation, error) {
	dr, err := booking.ParseRange(req.CheckInDate, req.CheckOutDate)
	if err != nil {
		return booking.Reservation{}, err
	}
	return h.Service.Initiate(ctx, booking.InitiateInput{
		RoomID: req.RoomID, GuestID: guest, Range: dr, Guests: req.Guests,
	})
}

func (h *CheckoutHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, h.Log, fmt.Errorf("%w: unreadable body", booking.ErrInvalidInput))
		return
	}
	if err := checkout.VerifySignature(h.WebhookSecret, body, r.Header.Get(checkout.SignatureHeader)); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var ev checkout.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, r, h.Log, fmt.Errorf("%w: invalid json", booking.ErrInvalidInput))
		return
	}
	if err := validate.Struct(ev); err != nil {
		writeError(w, r, h.Log, fmt.Errorf("%w: %v", booking.ErrInvalidInput, err))
		return
	}

	if err := h.Broker.HandleEvent(r.Context(), ev); err != nil && !checkout.Permanent(err) {
		// provider akan kirim ulang
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "received": true})
}

package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/ariefcatur/go-hotel-booking/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// BookingsHandler serves availability, reservation reads and the owner dashboard.
type BookingsHandler struct {
	Service *booking.Service
	Cache   *redisx.StatusCache // optional
	Log     logrus.FieldLogger
}

type CheckAvailabilityReq struct {
	Room         string `json:"room" validate:"required"`
	CheckInDate  string `json:"checkInDate"`
	CheckOutDate string `json:"checkOutDate"`
}

func (h *BookingsHandler) Register(r chi.Router) {
	r.Post("/api/bookings/check-availability", h.checkAvailability)
	r.Get("/api/bookings/user", h.userBookings)
	r.Get("/api/bookings/hotel", h.dashboard)
	r.Get("/api/bookings/hotel/export", h.exportDashboard)
	r.Get("/api/bookings/{id}", h.getBooking)
	r.Post("/api/bookings/{id}/cancel", h.cancel)
}

func (h *BookingsHandler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	var req CheckAvailabilityReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	dr, err := booking.ParseRange(req.CheckInDate, req.CheckOutDate)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ok, err := h.Service.CheckAvailability(ctx, req.Room, dr)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "isAvailable": ok})
}

func (h *BookingsHandler) getBooking(w http.ResponseWriter, r *http.Request) {
	guest, ok := requireUser(w, r, h.Log)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Cache != nil {
		if b, hit := h.Cache.Get(ctx, id); hit {
			var cached reservationJSON
			if json.Unmarshal(b, &cached) == nil && cached.User == guest {
				writeJSON(w, http.StatusOK, map[string]any{"success": true, "booking": json.RawMessage(b)})
				return
			}
		}
	}

	// 2) fallback DB
	res, err := h.Service.GetReservation(ctx, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if res.GuestID != guest {
		writeError(w, r, h.Log, fmt.Errorf("%w: reservation %s", booking.ErrNotFound, id))
		return
	}
	body := toReservationJSON(res)
	if h.Cache != nil {
		if b, err := json.Marshal(body); err == nil {
			h.Cache.Set(ctx, id, b)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "booking": body})
}

func (h *BookingsHandler) userBookings(w http.ResponseWriter, r *http.Request) {
	guest, ok := requireUser(w, r, h.Log)
	if !ok {
		return
	}
	list, err := h.Service.GuestReservations(r.Context(), guest)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]reservationJSON, 0, len(list))
	for _, res := range list {
		out = append(out, toReservationJSON(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bookings": out})
}

func (h *BookingsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	guest, ok := requireUser(w, r, h.Log)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Service.Cancel(ctx, chi.URLParam(r, "id"), guest)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "booking": toReservationJSON(res)})
}

func (h *BookingsHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireUser(w, r, h.Log)
	if !ok {
		return
	}
	d, err := h.Service.Dashboard(r.Context(), owner)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "dashboardData": toDashboardJSON(d)})
}

func (h *BookingsHandler) exportDashboard(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireUser(w, r, h.Log)
	if !ok {
		return
	}
	d, err := h.Service.Dashboard(r.Context(), owner)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	f, err := dashboardWorkbook(d)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		h.Log.WithError(err).Error("write dashboard workbook")
	}
}

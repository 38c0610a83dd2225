package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// CatalogHandler serves hotels and rooms.
type CatalogHandler struct {
	Service *booking.Service
	Log     logrus.FieldLogger
}

type CreateHotelReq struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
	Contact string `json:"contact" validate:"required"`
	City    string `json:"city" validate:"required"`
}

type CreateRoomReq struct {
	HotelID       string   `json:"hotelId" validate:"required"`
	RoomType      string   `json:"roomType" validate:"required"`
	PricePerNight float64  `json:"pricePerNight" validate:"gt=0"`
	Amenities     []string `json:"amenities"`
	Images        []string `json:"images" validate:"dive,url"`
}

type SetAvailabilityReq struct {
	IsAvailable *bool `json:"isAvailable" validate:"required"`
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Post("/api/hotels", h.createHotel)
	r.Get("/api/hotels/me", h.myHotels)

	r.Get("/api/rooms", h.listRooms)
	r.Post("/api/rooms", h.createRoom)
	r.Get("/api/rooms/owner", h.ownerRooms)
	r.Get("/api/rooms/{id}", h.getRoom)
	r.Patch("/api/rooms/{id}/availability", h.setAvailability)
}

func (h *CatalogHandler) createHotel(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireUser(w, r, h.Log)
	if !ok {
		return
	}
	var req CreateHotelReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	hotel, err := h.Service.CreateHotel(r.Context(), owner, booking.NewHotel{
		Name: req.Name, Address: req.Address, Contact: req.Contact, City: req.City,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "hotel": hotel, "message": "Hotel registered successfully"})
}

func (h *CatalogHandler) myHotels(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireUser(w, r, h.Log)
	if !ok {
		return
	}
	hotels, err := h.Service.OwnerHotels(r.Context(), owner)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "hotels": hotels})
}

func (h *CatalogHandler) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Service.ListRooms(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "rooms": toRoomsJSON(rooms)})
}

func (h *CatalogHandler) createRoom(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireUser(w, r, h.Log)
	if !ok {
		return
	}
	var req CreateRoomReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	room, err := h.Service.CreateRoom(r.Context(), owner, booking.NewRoom{
		HotelID:    req.HotelID,
		RoomType:   req.RoomType,
		PriceCents: toCents(req.PricePerNight),
		Amenities:  req.Amenities,
		Images:     req.Images,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "room": toRoomJSON(room), "message": "Room created successfully"})
}

func (h *CatalogHandler) ownerRooms(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireUser(w, r, h.Log)
	if !ok {
		return
	}
	rooms, err := h.Service.OwnerRooms(r.Context(), owner)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "rooms": toRoomsJSON(rooms)})
}

func (h *CatalogHandler) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.Service.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "room": toRoomJSON(room)})
}

func (h *CatalogHandler) setAvailability(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireUser(w, r, h.Log)
	if !ok {
		return
	}
	var req SetAvailabilityReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	room, err := h.Service.SetRoomAvailability(r.Context(), owner, chi.URLParam(r, "id"), *req.IsAvailable)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "room": toRoomJSON(room)})
}

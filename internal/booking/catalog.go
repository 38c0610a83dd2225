package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type NewHotel struct {
	Name    string
	Address string
	Contact string
	City    string
}

func (s *Service) CreateHotel(ctx context.Context, ownerID string, in NewHotel) (Hotel, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Hotel{}, fmt.Errorf("%w: owner", ErrNotFound)
	}
	now := s.now()
	h := Hotel{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Address:   strings.TrimSpace(in.Address),
		Contact:   strings.TrimSpace(in.Contact),
		City:      strings.TrimSpace(in.City),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if h.Name == "" || h.Address == "" || h.Contact == "" || h.City == "" {
		return Hotel{}, fmt.Errorf("%w: name, address, contact and city are required", ErrInvalidInput)
	}
	if err := s.Store.CreateHotel(ctx, h); err != nil {
		return Hotel{}, err
	}
	s.log().WithFields(logrus.Fields{"hotel_id": h.ID, "owner_id": ownerID}).Info("hotel registered")
	return h, nil
}

func (s *Service) OwnerHotels(ctx context.Context, ownerID string) ([]Hotel, error) {
	return s.Store.HotelsByOwner(ctx, ownerID)
}

type NewRoom struct {
	HotelID    string
	RoomType   string
	PriceCents int64
	Amenities  []string
	Images     []string
}

// CreateRoom adds a room to a hotel the caller owns.
func (s *Service) CreateRoom(ctx context.Context, ownerID string, in NewRoom) (Room, error) {
	hotel, err := s.Store.GetHotel(ctx, in.HotelID)
	if err != nil {
		return Room{}, err
	}
	if hotel.OwnerID != ownerID {
		return Room{}, fmt.Errorf("%w: hotel belongs to another owner", ErrForbidden)
	}
	if !ValidRoomType(in.RoomType) {
		return Room{}, fmt.Errorf("%w: unknown room type %q", ErrInvalidInput, in.RoomType)
	}
	if in.PriceCents <= 0 {
		return Room{}, fmt.Errorf("%w: price per night must be positive", ErrInvalidInput)
	}
	amenities, err := NormalizeAmenities(in.Amenities)
	if err != nil {
		return Room{}, err
	}

	now := s.now()
	r := Room{
		ID:          uuid.NewString(),
		HotelID:     hotel.ID,
		RoomType:    in.RoomType,
		PriceCents:  in.PriceCents,
		Amenities:   amenities,
		Images:      append([]string(nil), in.Images...),
		IsAvailable: true,
		CreatedAt:   now,
		UpdatedAt:   now,
		Hotel:       &hotel,
	}
	if err := s.Store.CreateRoom(ctx, r); err != nil {
		return Room{}, err
	}
	s.log().WithFields(logrus.Fields{"room_id": r.ID, "hotel_id": hotel.ID}).Info("room added")
	return r, nil
}

func (s *Service) GetRoom(ctx context.Context, id string) (Room, error) {
	return s.Store.GetRoom(ctx, id)
}

// ListRooms returns the public catalogue: rooms whose owner flag is on.
func (s *Service) ListRooms(ctx context.Context) ([]Room, error) {
	return s.Store.ListRooms(ctx, RoomFilter{AvailableOnly: true})
}

func (s *Service) OwnerRooms(ctx context.Context, ownerID string) ([]Room, error) {
	return s.Store.ListRooms(ctx, RoomFilter{OwnerID: ownerID})
}

// SetRoomAvailability flips the owner flag. Date-level occupancy is unaffected.
func (s *Service) SetRoomAvailability(ctx context.Context, ownerID, roomID string, available bool) (Room, error) {
	room, err := s.Store.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, err
	}
	if room.Hotel == nil || room.Hotel.OwnerID != ownerID {
		return Room{}, fmt.Errorf("%w: room belongs to another owner", ErrForbidden)
	}
	return s.Store.SetRoomAvailable(ctx, roomID, available)
}

// Dashboard lists non-abandoned bookings of the owner's rooms. Revenue counts
// confirmed bookings only.
func (s *Service) Dashboard(ctx context.Context, ownerID string) (Dashboard, error) {
	rows, err := s.Store.DashboardBookings(ctx, ownerID)
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{Bookings: make([]DashboardBooking, 0, len(rows))}
	for _, b := range rows {
		if b.Status == StatusAbandoned {
			continue
		}
		d.Bookings = append(d.Bookings, b)
		if b.IsPaid() {
			d.TotalRevenueCents += b.TotalCents
		}
	}
	d.TotalBookings = len(d.Bookings)
	return d, nil
}

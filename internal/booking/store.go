package booking

import (
	"context"
	"time"
)

// Store is the persistence boundary of the booking engine. PGStore is the
// production implementation, MemStore backs tests and local runs.
type Store interface {
	CreateHotel(ctx context.Context, h Hotel) error
	GetHotel(ctx context.Context, id string) (Hotel, error)
	HotelsByOwner(ctx context.Context, ownerID string) ([]Hotel, error)

	CreateRoom(ctx context.Context, r Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, f RoomFilter) ([]Room, error)
	SetRoomAvailable(ctx context.Context, id string, available bool) (Room, error)

	// HasOverlap is the advisory, lock-free probe.
	HasOverlap(ctx context.Context, roomID string, r DateRange) (bool, error)

	// CreateReservation is the authoritative path: under the room's
	// serialization point it abandons overdue awaiting-payment reservations of
	// that room, re-runs the overlap test and inserts res. It returns the ids it
	// abandoned, or ErrRoomUnavailable / ErrNotFound.
	CreateReservation(ctx context.Context, res Reservation, now time.Time) (abandoned []string, err error)

	GetReservation(ctx context.Context, id string) (Reservation, error)

	// UpdateReservation loads the reservation under a row lock, applies fn and
	// persists the result when fn returns changed=true.
	UpdateReservation(ctx context.Context, id string, fn func(*Reservation) (changed bool, err error)) (Reservation, error)

	ListOverdue(ctx context.Context, now time.Time, limit int) ([]string, error)
	ReservationsByGuest(ctx context.Context, guestID string) ([]Reservation, error)
	DashboardBookings(ctx context.Context, ownerID string) ([]DashboardBooking, error)
}

package booking

import (
	"fmt"
	"time"
)

type Hotel struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Contact   string    `json:"contact"`
	City      string    `json:"city"`
	OwnerID   string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Room struct {
	ID          string
	HotelID     string
	RoomType    string
	PriceCents  int64
	Amenities   []string
	Images      []string
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Hotel *Hotel // diisi oleh GetRoom / ListRooms
}

type Reservation struct {
	ID         string
	RoomID     string
	GuestID    string
	Range      DateRange
	Guests     int
	TotalCents int64
	Status     Status
	PaymentRef string // kosong sampai confirmed
	SessionID  string // weak back-reference ke checkout session
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Overdue reports whether an awaiting-payment reservation has outlived its window.
func (r Reservation) Overdue(now time.Time) bool {
	return r.Status == StatusAwaitingPayment && !now.Before(r.ExpiresAt)
}

const (
	AmenityFreeWiFi      = "Free WiFi"
	AmenityFreeBreakfast = "Free Breakfast"
	AmenityRoomService   = "Room Service"
	AmenityMountainView  = "Mountain View"
	AmenityPoolAccess    = "Pool Access"
)

var knownAmenities = map[string]bool{
	AmenityFreeWiFi:      true,
	AmenityFreeBreakfast: true,
	AmenityRoomService:   true,
	AmenityMountainView:  true,
	AmenityPoolAccess:    true,
}

var knownRoomTypes = map[string]bool{
	"Single Bed":   true,
	"Double Bed":   true,
	"Luxury Room":  true,
	"Family Suite": true,
}

// NormalizeAmenities rejects unknown amenities and drops duplicates, keeping first-seen order.
func NormalizeAmenities(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		if !knownAmenities[a] {
			return nil, fmt.Errorf("%w: unknown amenity %q", ErrInvalidInput, a)
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out, nil
}

func ValidRoomType(t string) bool { return knownRoomTypes[t] }

// DashboardBooking is one row of an owner's dashboard.
type DashboardBooking struct {
	ReservationID string
	GuestID       string
	RoomID        string
	RoomType      string
	HotelName     string
	Range         DateRange
	Guests        int
	TotalCents    int64
	Status        Status
	CreatedAt     time.Time
}

func (b DashboardBooking) IsPaid() bool { return b.Status == StatusConfirmed }

type Dashboard struct {
	Bookings          []DashboardBooking
	TotalBookings     int
	TotalRevenueCents int64
}

type RoomFilter struct {
	AvailableOnly bool
	OwnerID       string
}

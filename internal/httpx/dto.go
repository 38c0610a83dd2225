package httpx

import (
	"math"
	"time"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
)

// Money is stored in cents and rendered in major units.
func major(cents int64) float64 { return float64(cents) / 100 }

func toCents(v float64) int64 { return int64(math.Round(v * 100)) }

type roomJSON struct {
	ID            string    `json:"_id"`
	Hotel         any       `json:"hotel"` // *booking.Hotel kalau ter-populate, selain itu hotel id
	RoomType      string    `json:"roomType"`
	PricePerNight float64   `json:"pricePerNight"`
	Amenities     []string  `json:"amenities"`
	Images        []string  `json:"images"`
	IsAvailable   bool      `json:"isAvailable"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toRoomJSON(r booking.Room) roomJSON {
	out := roomJSON{
		ID:            r.ID,
		Hotel:         r.HotelID,
		RoomType:      r.RoomType,
		PricePerNight: major(r.PriceCents),
		Amenities:     r.Amenities,
		Images:        r.Images,
		IsAvailable:   r.IsAvailable,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Hotel != nil {
		out.Hotel = r.Hotel
	}
	if out.Amenities == nil {
		out.Amenities = []string{}
	}
	if out.Images == nil {
		out.Images = []string{}
	}
	return out
}

func toRoomsJSON(rs []booking.Room) []roomJSON {
	out := make([]roomJSON, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRoomJSON(r))
	}
	return out
}

type reservationJSON struct {
	ID     string `json:"_id"`
	Room   string `json:"room"`
	User   string `json:"user"`
	booking.DateRange
	Guests           int            `json:"guests"`
	TotalPrice       float64        `json:"totalPrice"`
	Status           booking.Status `json:"status"`
	IsPaid           bool           `json:"isPaid"`
	PaymentReference string         `json:"paymentReference,omitempty"`
	SessionID        string         `json:"sessionId,omitempty"`
	ExpiresAt        time.Time      `json:"expiresAt"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

func toReservationJSON(r booking.Reservation) reservationJSON {
	return reservationJSON{
		ID:               r.ID,
		Room:             r.RoomID,
		User:             r.GuestID,
		DateRange:        r.Range,
		Guests:           r.Guests,
		TotalPrice:       major(r.TotalCents),
		Status:           r.Status,
		IsPaid:           r.Status == booking.StatusConfirmed,
		PaymentReference: r.PaymentRef,
		SessionID:        r.SessionID,
		ExpiresAt:        r.ExpiresAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type dashboardUser struct {
	Username string `json:"username"`
}

type dashboardRoom struct {
	ID       string `json:"_id"`
	RoomType string `json:"roomType"`
	Hotel    string `json:"hotel"`
}

type dashboardBookingJSON struct {
	ID   string        `json:"_id"`
	User dashboardUser `json:"user"`
	Room dashboardRoom `json:"room"`
	booking.DateRange
	Guests     int            `json:"guests"`
	TotalPrice float64        `json:"totalPrice"`
	Status     booking.Status `json:"status"`
	IsPaid     bool           `json:"isPaid"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type dashboardJSON struct {
	Bookings      []dashboardBookingJSON `json:"bookings"`
	TotalBookings int                    `json:"totalBookings"`
	TotalRevenue  float64                `json:"totalRevenue"`
}

func toDashboardJSON(d booking.Dashboard) dashboardJSON {
	out := dashboardJSON{
		Bookings:      make([]dashboardBookingJSON, 0, len(d.Bookings)),
		TotalBookings: d.TotalBookings,
		TotalRevenue:  major(d.TotalRevenueCents),
	}
	for _, b := range d.Bookings {
		out.Bookings = append(out.Bookings, dashboardBookingJSON{
			ID:         b.ReservationID,
			User:       dashboardUser{Username: b.GuestID},
			Room:       dashboardRoom{ID: b.RoomID, RoomType: b.RoomType, Hotel: b.HotelName},
			DateRange:  b.Range,
			Guests:     b.Guests,
			TotalPrice: major(b.TotalCents),
			Status:     b.Status,
			IsPaid:     b.IsPaid(),
			CreatedAt:  b.CreatedAt,
		})
	}
	return out
}

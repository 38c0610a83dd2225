package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-process Store. A single mutex is the serialization point
// for every room, which is coarser than PGStore's per-room row lock but gives
// the same guarantee.
type MemStore struct {
	mu           sync.Mutex
	hotels       map[string]Hotel
	rooms        map[string]Room
	reservations map[string]Reservation
	byRoom       map[string][]string // room_id -> reservation ids
}

func NewMemStore() *MemStore {
	return &MemStore{
		hotels:       map[string]Hotel{},
		rooms:        map[string]Room{},
		reservations: map[string]Reservation{},
		byRoom:       map[string][]string{},
	}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) CreateHotel(_ context.Context, h Hotel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hotels[h.ID]; ok {
		return fmt.Errorf("%w: hotel %s already exists", ErrInvalidInput, h.ID)
	}
	m.hotels[h.ID] = h
	return nil
}

func (m *MemStore) GetHotel(_ context.Context, id string) (Hotel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hotels[id]
	if !ok {
		return Hotel{}, fmt.Errorf("%w: hotel %s", ErrNotFound, id)
	}
	return h, nil
}

func (m *MemStore) HotelsByOwner(_ context.Context, ownerID string) ([]Hotel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Hotel{}
	for _, h := range m.hotels {
		if h.OwnerID == ownerID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) CreateRoom(_ context.Context, r Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hotels[r.HotelID]; !ok {
		return fmt.Errorf("%w: hotel %s", ErrNotFound, r.HotelID)
	}
	r.Hotel = nil
	r.Amenities = append([]string(nil), r.Amenities...)
	r.Images = append([]string(nil), r.Images...)
	m.rooms[r.ID] = r
	return nil
}

// withHotel must be called with mu held.
func (m *MemStore) withHotel(r Room) Room {
	if h, ok := m.hotels[r.HotelID]; ok {
		r.Hotel = &h
	}
	r.Amenities = append([]string(nil), r.Amenities...)
	r.Images = append([]string(nil), r.Images...)
	return r
}

func (m *MemStore) GetRoom(_ context.Context, id string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return Room{}, fmt.Errorf("%w: room %s", ErrNotFound, id)
	}
	return m.withHotel(r), nil
}

func (m *MemStore) ListRooms(_ context.Context, f RoomFilter) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Room{}
	for _, r := range m.rooms {
		if f.AvailableOnly && !r.IsAvailable {
			continue
		}
		if f.OwnerID != "" && m.hotels[r.HotelID].OwnerID != f.OwnerID {
			continue
		}
		out = append(out, m.withHotel(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) SetRoomAvailable(_ context.Context, id string, available bool) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return Room{}, fmt.Errorf("%w: room %s", ErrNotFound, id)
	}
	r.IsAvailable = available
	r.UpdatedAt = time.Now().UTC()
	m.rooms[id] = r
	return m.withHotel(r), nil
}

// overlapLocked must be called with mu held.
func (m *MemStore) overlapLocked(roomID string, r DateRange) bool {
	for _, id := range m.byRoom[roomID] {
		res := m.reservations[id]
		if res.Status.Blocking() && res.Range.Overlaps(r) {
			return true
		}
	}
	return false
}

func (m *MemStore) HasOverlap(_ context.Context, roomID string, r DateRange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return false, fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	}
	return m.overlapLocked(roomID, r), nil
}

func (m *MemStore) CreateReservation(_ context.Context, res Reservation, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[res.RoomID]
	if !ok {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, res.RoomID)
	}

	var abandoned []string
	for _, id := range m.byRoom[res.RoomID] {
		r := m.reservations[id]
		if r.Overdue(now) {
			r.Status = StatusAbandoned
			r.UpdatedAt = now
			m.reservations[id] = r
			abandoned = append(abandoned, id)
		}
	}

	if !room.IsAvailable || m.overlapLocked(res.RoomID, res.Range) {
		return abandoned, ErrRoomUnavailable
	}
	m.reservations[res.ID] = res
	m.byRoom[res.RoomID] = append(m.byRoom[res.RoomID], res.ID)
	return abandoned, nil
}

func (m *MemStore) GetReservation(_ context.Context, id string) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return Reservation{}, fmt.Errorf("%w: reservation %s", ErrNotFound, id)
	}
	return r, nil
}

func (m *MemStore) UpdateReservation(_ context.Context, id string, fn func(*Reservation) (bool, error)) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return Reservation{}, fmt.Errorf("%w: reservation %s", ErrNotFound, id)
	}
	work := r
	changed, err := fn(&work)
	if err != nil {
		return r, err
	}
	if changed {
		m.reservations[id] = work
		return work, nil
	}
	return r, nil
}

func (m *MemStore) ListOverdue(_ context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var overdue []Reservation
	for _, r := range m.reservations {
		if r.Overdue(now) {
			overdue = append(overdue, r)
		}
	}
	sort.Slice(overdue, func(i, j int) bool { return overdue[i].ExpiresAt.Before(overdue[j].ExpiresAt) })
	if limit > 0 && len(overdue) > limit {
		overdue = overdue[:limit]
	}
	ids := make([]string, 0, len(overdue))
	for _, r := range overdue {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (m *MemStore) ReservationsByGuest(_ context.Context, guestID string) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Reservation{}
	for _, r := range m.reservations {
		if r.GuestID == guestID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) DashboardBookings(_ context.Context, ownerID string) ([]DashboardBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []DashboardBooking{}
	for _, res := range m.reservations {
		room, ok := m.rooms[res.RoomID]
		if !ok {
			continue
		}
		hotel := m.hotels[room.HotelID]
		if hotel.OwnerID != ownerID {
			continue
		}
		out = append(out, DashboardBooking{
			ReservationID: res.ID,
			GuestID:       res.GuestID,
			RoomID:        room.ID,
			RoomType:      room.RoomType,
			HotelName:     hotel.Name,
			Range:         res.Range,
			Guests:        res.Guests,
			TotalCents:    res.TotalCents,
			Status:        res.Status,
			CreatedAt:     res.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

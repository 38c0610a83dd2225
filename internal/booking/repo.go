package booking

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

// PGStore: rooms.FOR UPDATE adalah serialization point per kamar; exclusion
// constraint reservations_no_overlap menjaga invariant yang sama di level DB.
type PGStore struct{ DB *pgxpool.Pool }

var _ Store = (*PGStore)(nil)

const (
	pgExclusionViolation  = "23P01"
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (s *PGStore) CreateHotel(ctx context.Context, h Hotel) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO hotels(id, name, address, contact, city, owner_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		h.ID, h.Name, h.Address, h.Contact, h.City, h.OwnerID, h.CreatedAt, h.UpdatedAt)
	if pgCode(err) == pgUniqueViolation {
		return fmt.Errorf("%w: hotel %s already exists", ErrInvalidInput, h.ID)
	}
	return err
}

const hotelCols = `id, name, address, contact, city, owner_id, created_at, updated_at`

func scanHotel(row pgx.Row) (Hotel, error) {
	var h Hotel
	err := row.Scan(&h.ID, &h.Name, &h.Address, &h.Contact, &h.City, &h.OwnerID, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

func (s *PGStore) GetHotel(ctx context.Context, id string) (Hotel, error) {
	h, err := scanHotel(s.DB.QueryRow(ctx, `SELECT `+hotelCols+` FROM hotels WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Hotel{}, fmt.Errorf("%w: hotel %s", ErrNotFound, id)
	}
	return h, err
}

func (s *PGStore) HotelsByOwner(ctx context.Context, ownerID string) ([]Hotel, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+hotelCols+` FROM hotels WHERE owner_id=$1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Hotel{}
	for rows.Next() {
		h, err := scanHotel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateRoom(ctx context.Context, r Room) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO rooms(id, hotel_id, room_type, price_cents, amenities, images, is_available, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.ID, r.HotelID, r.RoomType, r.PriceCents, nonNil(r.Amenities), nonNil(r.Images), r.IsAvailable, r.CreatedAt, r.UpdatedAt)
	if pgCode(err) == pgForeignKeyViolation {
		return fmt.Errorf("%w: hotel %s", ErrNotFound, r.HotelID)
	}
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// room + hotel dalam satu join
const roomSelect = `
	SELECT r.id, r.hotel_id, r.room_type, r.price_cents, r.amenities, r.images, r.is_available, r.created_at, r.updated_at,
	       h.id, h.name, h.address, h.contact, h.city, h.owner_id, h.created_at, h.updated_at
	FROM rooms r JOIN hotels h ON h.id = r.hotel_id`

func scanRoom(row pgx.Row) (Room, error) {
	var r Room
	var h Hotel
	err := row.Scan(&r.ID, &r.HotelID, &r.RoomType, &r.PriceCents, &r.Amenities, &r.Images, &r.IsAvailable, &r.CreatedAt, &r.UpdatedAt,
		&h.ID, &h.Name, &h.Address, &h.Contact, &h.City, &h.OwnerID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return Room{}, err
	}
	r.Hotel = &h
	return r, nil
}

func (s *PGStore) GetRoom(ctx context.Context, id string) (Room, error) {
	r, err := scanRoom(s.DB.QueryRow(ctx, roomSelect+` WHERE r.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, fmt.Errorf("%w: room %s", ErrNotFound, id)
	}
	return r, err
}

func (s *PGStore) ListRooms(ctx context.Context, f RoomFilter) ([]Room, error) {
	rows, err := s.DB.Query(ctx, roomSelect+`
		WHERE ($1 = false OR r.is_available)
		  AND ($2 = '' OR h.owner_id = $2)
		ORDER BY r.created_at DESC`, f.AvailableOnly, f.OwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) SetRoomAvailable(ctx context.Context, id string, available bool) (Room, error) {
	ct, err := s.DB.Exec(ctx, `UPDATE rooms SET is_available=$2, updated_at=now() WHERE id=$1`, id, available)
	if err != nil {
		return Room{}, err
	}
	if ct.RowsAffected() != 1 {
		return Room{}, fmt.Errorf("%w: room %s", ErrNotFound, id)
	}
	return s.GetRoom(ctx, id)
}

const overlapQuery = `
	SELECT EXISTS(
		SELECT 1 FROM reservations
		WHERE room_id = $1
		  AND status IN ('awaiting-payment','confirmed')
		  AND check_in < $3 AND $2 < check_out
	)`

func (s *PGStore) HasOverlap(ctx context.Context, roomID string, r DateRange) (bool, error) {
	var busy bool
	err := s.DB.QueryRow(ctx, overlapQuery, roomID, r.CheckIn.Time(), r.CheckOut.Time()).Scan(&busy)
	return busy, err
}

// CreateReservation: lock baris room (FOR UPDATE) -> expire yang overdue -> cek overlap -> insert.
// Expiry yang sudah dilakukan tetap di-commit walaupun hasilnya RoomUnavailable.
func (s *PGStore) CreateReservation(ctx context.Context, res Reservation, now time.Time) ([]string, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var available bool
	err = tx.QueryRow(ctx, `SELECT is_available FROM rooms WHERE id=$1 FOR UPDATE`, res.RoomID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, res.RoomID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		UPDATE reservations SET status='abandoned', updated_at=$2
		WHERE room_id=$1 AND status='awaiting-payment' AND expires_at <= $2
		RETURNING id`, res.RoomID, now)
	if err != nil {
		return nil, err
	}
	abandoned, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	var busy bool
	if err := tx.QueryRow(ctx, overlapQuery, res.RoomID, res.Range.CheckIn.Time(), res.Range.CheckOut.Time()).Scan(&busy); err != nil {
		return nil, err
	}
	if !available || busy {
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return abandoned, ErrRoomUnavailable
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reservations(id, room_id, guest_id, check_in, check_out, guests, total_cents, status, expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		res.ID, res.RoomID, res.GuestID, res.Range.CheckIn.Time(), res.Range.CheckOut.Time(),
		res.Guests, res.TotalCents, string(res.Status), res.ExpiresAt, res.CreatedAt, res.UpdatedAt)
	if pgCode(err) == pgExclusionViolation {
		return nil, ErrRoomUnavailable
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return abandoned, nil
}

const reservationCols = `id, room_id, guest_id, check_in, check_out, guests, total_cents, status,
	COALESCE(payment_ref, ''), COALESCE(session_id, ''), expires_at, created_at, updated_at`

func scanReservation(row pgx.Row) (Reservation, error) {
	var r Reservation
	var in, out time.Time
	var status string
	err := row.Scan(&r.ID, &r.RoomID, &r.GuestID, &in, &out, &r.Guests, &r.TotalCents, &status,
		&r.PaymentRef, &r.SessionID, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Reservation{}, err
	}
	r.Range = DateRange{CheckIn: DateOf(in), CheckOut: DateOf(out)}
	r.Status = Status(status)
	return r, nil
}

func (s *PGStore) GetReservation(ctx context.Context, id string) (Reservation, error) {
	r, err := scanReservation(s.DB.QueryRow(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, fmt.Errorf("%w: reservation %s", ErrNotFound, id)
	}
	return r, err
}

func (s *PGStore) UpdateReservation(ctx context.Context, id string, fn func(*Reservation) (bool, error)) (Reservation, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanReservation(tx.QueryRow(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, fmt.Errorf("%w: reservation %s", ErrNotFound, id)
	}
	if err != nil {
		return Reservation{}, err
	}

	work := cur
	changed, err := fn(&work)
	if err != nil {
		return cur, err
	}
	if !changed {
		return cur, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE reservations
		SET status=$2, payment_ref=NULLIF($3, ''), session_id=NULLIF($4, ''), updated_at=$5
		WHERE id=$1`, id, string(work.Status), work.PaymentRef, work.SessionID, work.UpdatedAt)
	if err != nil {
		return cur, err
	}
	if err := tx.Commit(ctx); err != nil {
		return cur, err
	}
	return work, nil
}

func (s *PGStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id FROM reservations
		WHERE status='awaiting-payment' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *PGStore) ReservationsByGuest(ctx context.Context, guestID string) ([]Reservation, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+reservationCols+` FROM reservations WHERE guest_id=$1 ORDER BY created_at DESC`, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) DashboardBookings(ctx context.Context, ownerID string) ([]DashboardBooking, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT b.id, b.guest_id, r.id, r.room_type, h.name, b.check_in, b.check_out,
		       b.guests, b.total_cents, b.status, b.created_at
		FROM reservations b
		JOIN rooms r ON r.id = b.room_id
		JOIN hotels h ON h.id = r.hotel_id
		WHERE h.owner_id = $1
		ORDER BY b.created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DashboardBooking{}
	for rows.Next() {
		var d DashboardBooking
		var in, outDate time.Time
		var status string
		if err := rows.Scan(&d.ReservationID, &d.GuestID, &d.RoomID, &d.RoomType, &d.HotelName,
			&in, &outDate, &d.Guests, &d.TotalCents, &status, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Range = DateRange{CheckIn: DateOf(in), CheckOut: DateOf(outDate)}
		d.Status = Status(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

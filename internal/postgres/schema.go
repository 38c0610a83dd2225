package postgres

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is idempotent; Migrate can run on every start.
var Schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS hotels (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		address    TEXT NOT NULL,
		contact    TEXT NOT NULL,
		city       TEXT NOT NULL,
		owner_id   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS hotels_owner_idx ON hotels(owner_id)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id           TEXT PRIMARY KEY,
		hotel_id     TEXT NOT NULL REFERENCES hotels(id) ON DELETE CASCADE,
		room_type    TEXT NOT NULL,
		price_cents  BIGINT NOT NULL CHECK (price_cents > 0),
		amenities    TEXT[] NOT NULL DEFAULT '{}',
		images       TEXT[] NOT NULL DEFAULT '{}',
		is_available BOOLEAN NOT NULL DEFAULT true,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS rooms_hotel_idx ON rooms(hotel_id)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id          TEXT PRIMARY KEY,
		room_id     TEXT NOT NULL REFERENCES rooms(id),
		guest_id    TEXT NOT NULL,
		check_in    DATE NOT NULL,
		check_out   DATE NOT NULL,
		guests      INT NOT NULL CHECK (guests >= 1),
		total_cents BIGINT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('awaiting-payment','confirmed','abandoned')),
		payment_ref TEXT,
		session_id  TEXT,
		expires_at  TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (check_in < check_out),
		CONSTRAINT reservations_no_overlap EXCLUDE USING gist (
			room_id WITH =,
			daterange(check_in, check_out, '[)') WITH &&
		) WHERE (status IN ('awaiting-payment','confirmed'))
	)`,
	`CREATE INDEX IF NOT EXISTS reservations_overdue_idx ON reservations(expires_at) WHERE status = 'awaiting-payment'`,
	`CREATE INDEX IF NOT EXISTS reservations_guest_idx ON reservations(guest_id)`,
}

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}

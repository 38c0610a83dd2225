package redisx

import "time"

const (
	// Idempotency create-session: idem:checkout:{guest_id}:{key} -> reservation_id | "pending"
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Cache status reservasi: booking_status:{reservation_id} -> {"status": "...", ...}
	KeyBookingStatus = "booking_status:%s"

	// Dedup event processing: dedup:{service}:{id} (id = provider event_id)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 30 * time.Second
	TTLDedup       = 48 * time.Hour

	// batas marker "pending" kalau request pemilik mati di tengah jalan
	TTLIdempotencyPending = 30 * time.Second
)

package booking

const (
	TopicReservations  = "booking.reservations"
	TopicPaymentEvents = "payment.events"
)

// Partition key = reservation_id, supaya semua event 1 reservasi maintain urutan.
func PartitionKey(reservationID string) []byte { return []byte(reservationID) }

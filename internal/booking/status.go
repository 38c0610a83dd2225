package booking

type Status string

const (
	StatusAwaitingPayment Status = "awaiting-payment"
	StatusConfirmed       Status = "confirmed"
	StatusAbandoned       Status = "abandoned"
)

var validNext = map[Status]map[Status]bool{
	StatusAwaitingPayment: {StatusConfirmed: true, StatusAbandoned: true},
	StatusConfirmed:       {},
	StatusAbandoned:       {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal: confirmed dan abandoned tidak punya transisi keluar.
func (s Status) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// Blocking reports whether a reservation in this status occupies its nights.
func (s Status) Blocking() bool {
	return s == StatusAwaitingPayment || s == StatusConfirmed
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

package booking

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar day. The zero value is not a valid date.
type Date struct{ t time.Time }

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidRange, s)
	}
	return Date{t: t}, nil
}

func (d Date) IsZero() bool { return d.t.IsZero() }
func (d Date) Time() time.Time { return d.t }
func (d Date) String() string { return d.t.Format(DateLayout) }
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	p, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = p
	return nil
}

// DateRange is the half-open night interval [CheckIn, CheckOut).
type DateRange struct {
	CheckIn  Date `json:"checkInDate"`
	CheckOut Date `json:"checkOutDate"`
}

func ParseRange(checkIn, checkOut string) (DateRange, error) {
	if checkIn == "" || checkOut == "" {
		return DateRange{}, fmt.Errorf("%w: both check-in and check-out dates are required", ErrInvalidRange)
	}
	in, err := ParseDate(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDate(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	r := DateRange{CheckIn: in, CheckOut: out}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate checks the shape of the range only; see ValidateFrom for the past-date rule.
func (r DateRange) Validate() error {
	if r.CheckIn.IsZero() || r.CheckOut.IsZero() {
		return fmt.Errorf("%w: both check-in and check-out dates are required", ErrInvalidRange)
	}
	if !r.CheckIn.Before(r.CheckOut) {
		return fmt.Errorf("%w: check-in date should be before check-out date", ErrInvalidRange)
	}
	return nil
}

// ValidateFrom additionally rejects a check-in strictly before today.
func (r DateRange) ValidateFrom(today Date) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.CheckIn.Before(today) {
		return fmt.Errorf("%w: check-in date %s is in the past", ErrInvalidRange, r.CheckIn)
	}
	return nil
}

// Overlaps: [a1,a2) dan [b1,b2) bentrok iff a1 < b2 && b1 < a2.
// Checkout day of one stay may equal check-in day of the next.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.CheckIn.Before(o.CheckOut) && o.CheckIn.Before(r.CheckOut)
}

func (r DateRange) Equal(o DateRange) bool {
	return r.CheckIn.Equal(o.CheckIn) && r.CheckOut.Equal(o.CheckOut)
}

func (r DateRange) Nights() int {
	return int(r.CheckOut.t.Sub(r.CheckIn.t).Hours() / 24)
}

func (r DateRange) String() string {
	return r.CheckIn.String() + ".." + r.CheckOut.String()
}

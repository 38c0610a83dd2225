package bookingclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Phase int

const (
	PhaseEditingDates Phase = iota
	PhaseAvailabilityChecked
	PhaseCheckoutStarted
	PhaseRedirected
)

func (p Phase) String() string {
	switch p {
	case PhaseEditingDates:
		return "editing-dates"
	case PhaseAvailabilityChecked:
		return "availability-checked"
	case PhaseCheckoutStarted:
		return "checkout-started"
	case PhaseRedirected:
		return "redirected"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

type Availability int

const (
	AvailabilityUnknown Availability = iota
	Available
	Unavailable
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// API is what the controller needs from Client.
type API interface {
	CheckAvailability(ctx context.Context, roomID string, r booking.DateRange) (bool, error)
	CreateSession(ctx context.Context, in CheckoutRequest) (Redirect, error)
}

// checked is an availability answer tied to the exact range it was computed for.
type checked struct {
	rng       booking.DateRange
	available bool
	idemKey   string
}

// Controller is one guest's booking flow for one room. Safe for concurrent use;
// each action allows a single request in flight.
type Controller struct {
	API    API
	RoomID string
	Guests int
	Log    logrus.FieldLogger
	Now    func() time.Time

	// SessionRedirect resolves a bare session id into a URL through the
	// provider's client-side redirect API. Optional.
	SessionRedirect func(ctx context.Context, sessionID string) (string, error)

	mu          sync.Mutex
	dates       booking.DateRange
	last        *checked
	phase       Phase
	checking    bool
	checkingOut bool
	redirect    Redirect
}

func NewController(api API, roomID string, guests int) *Controller {
	return &Controller{API: api, RoomID: roomID, Guests: guests}
}

func (c *Controller) today() booking.Date {
	if c.Now != nil {
		return booking.DateOf(c.Now())
	}
	return booking.DateOf(time.Now())
}

func (c *Controller) log() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}

// SetDates edits the stay. Either date may be zero while editing. Any change
// makes a previous availability answer stale.
func (c *Controller) SetDates(checkIn, checkOut booking.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dates = booking.DateRange{CheckIn: checkIn, CheckOut: checkOut}
	if c.phase != PhaseCheckoutStarted && c.phase != PhaseRedirected {
		c.settleLocked()
	}
}

// settleLocked derives the resting phase from the availability of the current dates.
func (c *Controller) settleLocked() {
	if c.availabilityLocked() == AvailabilityUnknown {
		c.phase = PhaseEditingDates
		return
	}
	c.phase = PhaseAvailabilityChecked
}

func (c *Controller) Dates() booking.DateRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dates
}

// availabilityLocked must be called with mu held.
func (c *Controller) availabilityLocked() Availability {
	if c.last == nil || !c.last.rng.Equal(c.dates) {
		return AvailabilityUnknown
	}
	if c.last.available {
		return Available
	}
	return Unavailable
}

// Availability is the answer for the current dates, Unknown once they changed.
func (c *Controller) Availability() Availability {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availabilityLocked()
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Redirect() Redirect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redirect
}

// CanCheck and CanCheckout drive the enabled state of the two buttons.
func (c *Controller) CanCheck() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.checking && !c.checkingOut && c.phase != PhaseRedirected
}

func (c *Controller) CanCheckout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.checking && !c.checkingOut && c.phase != PhaseRedirected && c.availabilityLocked() == Available
}

func (c *Controller) validateLocked() error {
	return c.dates.ValidateFrom(c.today())
}

// CheckAvailability asks the advisory endpoint about the current dates.
// Invalid dates fail locally without a request.
func (c *Controller) CheckAvailability(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.checking || c.checkingOut {
		c.mu.Unlock()
		return false, ErrBusy
	}
	if err := c.validateLocked(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	rng := c.dates
	c.checking = true
	c.mu.Unlock()

	ok, err := c.API.CheckAvailability(ctx, c.RoomID, rng)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.checking = false
	if err != nil {
		c.report("check-availability", err)
		return false, err
	}
	c.last = &checked{rng: rng, available: ok, idemKey: uuid.NewString()}
	if c.phase != PhaseRedirected {
		c.settleLocked()
	}
	return ok, nil
}

// StartCheckout requests a payment session for the checked dates. On failure
// the controller goes back to availability-checked; a repeat reuses the same
// idempotency key so the server resumes the same reservation.
func (c *Controller) StartCheckout(ctx context.Context) (Redirect, error) {
	c.mu.Lock()
	if c.checking || c.checkingOut {
		c.mu.Unlock()
		return Redirect{}, ErrBusy
	}
	if err := c.validateLocked(); err != nil {
		c.mu.Unlock()
		return Redirect{}, err
	}
	if c.Guests < 1 {
		c.mu.Unlock()
		return Redirect{}, fmt.Errorf("%w: guests must be at least 1", booking.ErrInvalidInput)
	}
	if c.availabilityLocked() != Available {
		c.mu.Unlock()
		return Redirect{}, ErrNotChecked
	}
	last := *c.last
	c.checkingOut = true
	c.phase = PhaseCheckoutStarted
	guests := c.Guests
	c.mu.Unlock()

	rd, err := c.API.CreateSession(ctx, CheckoutRequest{
		RoomID: c.RoomID, Range: last.rng, Guests: guests, IdempotencyKey: last.idemKey,
	})
	if err == nil && rd.URL == "" && rd.SessionID != "" && c.SessionRedirect != nil {
		rd.URL, err = c.SessionRedirect(ctx, rd.SessionID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkingOut = false
	if err != nil {
		if errors.Is(err, booking.ErrRoomUnavailable) && c.last != nil && c.last.rng.Equal(last.rng) {
			// server authoritative: kamar sudah diambil orang lain
			c.last.available = false
		}
		c.settleLocked()
		c.report("start-checkout", err)
		return Redirect{}, err
	}
	c.redirect = rd
	c.phase = PhaseRedirected
	return rd, nil
}

// report logs state divergence; other errors are the caller's to show.
func (c *Controller) report(op string, err error) {
	if errors.Is(err, booking.ErrInvalidTransition) {
		c.log().WithError(err).WithFields(logrus.Fields{"op": op, "room_id": c.RoomID}).Warn("client/server state divergence")
	}
}

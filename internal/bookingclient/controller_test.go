package bookingclient

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/sirupsen/logrus"
)

type fakeAPI struct {
	mu        sync.Mutex
	available bool
	checkErr  error
	sessErr   error
	redirect  Redirect
	gate      chan struct{} // kalau di-set, request menunggu sampai ditutup
	checks    int
	sessions  []CheckoutRequest
}

func (f *fakeAPI) wait(ctx context.Context) {
	f.mu.Lock()
	g := f.gate
	f.mu.Unlock()
	if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
		}
	}
}

func (f *fakeAPI) CheckAvailability(ctx context.Context, _ string, _ booking.DateRange) (bool, error) {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.available, f.checkErr
}

func (f *fakeAPI) CreateSession(ctx context.Context, in CheckoutRequest) (Redirect, error) {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, in)
	if f.sessErr != nil {
		return Redirect{}, f.sessErr
	}
	return f.redirect, nil
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newController(api API) *Controller {
	c := NewController(api, "room-1", 2)
	c.Log = quiet()
	c.Now = func() time.Time { return time.Date(2024, 7, 1, 15, 0, 0, 0, time.UTC) }
	return c
}

func d(s string) booking.Date {
	v, err := booking.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestLocalValidationSkipsNetwork(t *testing.T) {
	tests := []struct {
		name    string
		in, out booking.Date
	}{
		{"no dates", booking.Date{}, booking.Date{}},
		{"missing check-out", d("2024-07-10"), booking.Date{}},
		{"inverted", d("2024-07-12"), d("2024-07-10")},
		{"same day", d("2024-07-10"), d("2024-07-10")},
		{"past check-in", d("2024-06-30"), d("2024-07-02")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{available: true}
			c := newController(api)
			c.SetDates(tt.in, tt.out)
			if _, err := c.CheckAvailability(context.Background()); !errors.Is(err, booking.ErrInvalidRange) {
				t.Fatalf("err = %v", err)
			}
			if api.checks != 0 {
				t.Fatal("invalid dates reached the network")
			}
			if c.Phase() != PhaseEditingDates {
				t.Fatalf("phase = %s", c.Phase())
			}
		})
	}
}

func TestCheckInTodayIsAllowed(t *testing.T) {
	c := newController(&fakeAPI{available: true})
	c.SetDates(d("2024-07-01"), d("2024-07-02"))
	if ok, err := c.CheckAvailability(context.Background()); err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestDateChangeInvalidatesAvailability(t *testing.T) {
	api := &fakeAPI{available: true}
	c := newController(api)
	c.SetDates(d("2024-07-10"), d("2024-07-12"))
	if _, err := c.CheckAvailability(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Availability() != Available || c.Phase() != PhaseAvailabilityChecked || !c.CanCheckout() {
		t.Fatalf("after check: %s %s", c.Availability(), c.Phase())
	}

	c.SetDates(d("2024-07-10"), d("2024-07-13"))
	if c.Availability() != AvailabilityUnknown || c.Phase() != PhaseEditingDates || c.CanCheckout() {
		t.Fatalf("after edit: %s %s", c.Availability(), c.Phase())
	}
	if _, err := c.StartCheckout(context.Background()); !errors.Is(err, ErrNotChecked) {
		t.Fatalf("stale checkout err = %v", err)
	}
	if len(api.sessions) != 0 {
		t.Fatal("stale checkout reached the network")
	}
}

func TestCheckoutRejectsNoGuestsLocally(t *testing.T) {
	api := &fakeAPI{available: true}
	c := newController(api)
	c.Guests = 0
	c.SetDates(d("2024-07-10"), d("2024-07-12"))
	if _, err := c.CheckAvailability(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StartCheckout(context.Background()); !errors.Is(err, booking.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	if len(api.sessions) != 0 {
		t.Fatal("guest count was not validated before the request")
	}
	if c.Phase() != PhaseAvailabilityChecked || c.Availability() != Available {
		t.Fatalf("state = %s %s", c.Phase(), c.Availability())
	}
}

func TestUnavailableBlocksCheckout(t *testing.T) {
	c := newController(&fakeAPI{available: false})
	c.SetDates(d("2024-07-10"), d("2024-07-12"))
	ok, err := c.CheckAvailability(context.Background())
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if c.Availability() != Unavailable || c.Phase() != PhaseAvailabilityChecked {
		t.Fatalf("state: %s %s", c.Availability(), c.Phase())
	}
	if _, err := c.StartCheckout(context.Background()); !errors.Is(err, ErrNotChecked) {
		t.Fatalf("err = %v", err)
	}
}

func TestCheckoutFailureKeepsAvailability(t *testing.T) {
	api := &fakeAPI{available: true, sessErr: &APIError{Status: 502, Code: booking.CodeSessionCreationFailed, Message: "Failed to create checkout session"}}
	c := newController(api)
	c.SetDates(d("2024-07-10"), d("2024-07-12"))
	if _, err := c.CheckAvailability(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := c.StartCheckout(context.Background())
	if !errors.Is(err, booking.ErrSessionCreationFailed) {
		t.Fatalf("err = %v", err)
	}
	if c.Phase() != PhaseAvailabilityChecked || c.Availability() != Available {
		t.Fatalf("after failure: %s %s", c.Phase(), c.Availability())
	}

	api.set(func(f *fakeAPI) {
		f.sessErr = nil
		f.redirect = Redirect{URL: "https://pay.example/session/abc", SessionID: "abc"}
	})
	rd, err := c.StartCheckout(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rd.URL != "https://pay.example/session/abc" || c.Phase() != PhaseRedirected {
		t.Fatalf("redirect = %+v phase %s", rd, c.Phase())
	}
	if api.checks != 1 {
		t.Fatalf("retry forced a re-check (%d checks)", api.checks)
	}
	if len(api.sessions) != 2 || api.sessions[0].IdempotencyKey == "" || api.sessions[0].IdempotencyKey != api.sessions[1].IdempotencyKey {
		t.Fatalf("retry must reuse the idempotency key: %+v", api.sessions)
	}
	if c.CanCheck() || c.CanCheckout() {
		t.Fatal("actions still enabled after redirect")
	}
}

func TestCheckoutRoomTakenMarksUnavailable(t *testing.T) {
	api := &fakeAPI{available: true, sessErr: &APIError{Status: 409, Code: booking.CodeRoomUnavailable, Message: "taken"}}
	c := newController(api)
	c.SetDates(d("2024-07-10"), d("2024-07-12"))
	if _, err := c.CheckAvailability(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StartCheckout(context.Background()); !errors.Is(err, booking.ErrRoomUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if c.Availability() != Unavailable || c.Phase() != PhaseAvailabilityChecked {
		t.Fatalf("state: %s %s", c.Availability(), c.Phase())
	}
}

func TestSessionIDFallback(t *testing.T) {
	api := &fakeAPI{available: true, redirect: Redirect{SessionID: "cs_42"}}
	c := newController(api)
	c.SessionRedirect = func(_ context.Context, id string) (string, error) {
		return "https://checkout.provider.test/pay/" + id, nil
	}
	c.SetDates(d("2024-07-10"), d("2024-07-12"))
	if _, err := c.CheckAvailability(context.Background()); err != nil {
		t.Fatal(err)
	}
	rd, err := c.StartCheckout(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rd.URL != "https://checkout.provider.test/pay/cs_42" || rd.SessionID != "cs_42" {
		t.Fatalf("redirect = %+v", rd)
	}
}

func TestInFlightGuards(t *testing.T) {
	api := &fakeAPI{available: true, gate: make(chan struct{})}
	c := newController(api)
	c.SetDates(d("2024-07-10"), d("2024-07-12"))

	done := make(chan error, 1)
	go func() {
		_, err := c.CheckAvailability(context.Background())
		done <- err
	}()

	// tunggu sampai request pertama benar-benar in flight
	deadline := time.Now().Add(2 * time.Second)
	for c.CanCheck() {
		if time.Now().After(deadline) {
			t.Fatal("first check never started")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := c.CheckAvailability(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second check err = %v", err)
	}
	if _, err := c.StartCheckout(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("checkout during check err = %v", err)
	}

	close(api.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if api.checks != 1 {
		t.Fatalf("checks = %d", api.checks)
	}
	if !c.CanCheckout() {
		t.Fatal("checkout not enabled after check")
	}
}

func TestNetworkErrorLeavesAvailabilityUnknown(t *testing.T) {
	c := newController(&fakeAPI{checkErr: ErrNetwork})
	c.SetDates(d("2024-07-10"), d("2024-07-12"))
	if _, err := c.CheckAvailability(context.Background()); !errors.Is(err, ErrNetwork) {
		t.Fatalf("err = %v", err)
	}
	if c.Availability() != AvailabilityUnknown || c.Phase() != PhaseEditingDates {
		t.Fatalf("state: %s %s", c.Availability(), c.Phase())
	}
}

package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/ariefcatur/go-hotel-booking/internal/checkout"
	"github.com/ariefcatur/go-hotel-booking/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const webhookSecret = "whsec_test"

type switchProvider struct {
	mu   sync.Mutex
	fail bool
	next []string
	base checkout.PlaceholderProvider
}

func (p *switchProvider) CreateSession(ctx context.Context, req checkout.SessionRequest) (checkout.ProviderSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return checkout.ProviderSession{}, errors.New("provider unavailable")
	}
	if len(p.next) > 0 {
		id := p.next[0]
		p.next = p.next[1:]
		return checkout.ProviderSession{ID: id, URL: p.base.BaseURL + "/session/" + id}, nil
	}
	return p.base.CreateSession(ctx, req)
}

func (p *switchProvider) setFailing(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

type api struct {
	srv      *httptest.Server
	svc      *booking.Service
	provider *switchProvider
	now      time.Time
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	cache := &redisx.StatusCache{Redis: rdb, Log: log}
	svc := &booking.Service{
		Store: booking.NewMemStore(),
		Cache: cache,
		Log:   log,
		Now:   func() time.Time { return now },
	}
	provider := &switchProvider{base: checkout.PlaceholderProvider{BaseURL: "https://pay.example"}}
	broker := &checkout.Broker{
		Reservations: svc,
		Provider:     provider,
		Currency:     "usd",
		Timeout:      time.Second,
		Dedup:        &redisx.Dedup{Redis: rdb, Service: "checkout"},
		Log:          log,
	}

	r := NewRouter(log)
	(&CatalogHandler{Service: svc, Log: log}).Register(r)
	(&BookingsHandler{Service: svc, Cache: cache, Log: log}).Register(r)
	(&CheckoutHandler{
		Service: svc, Broker: broker, Idem: &redisx.Idempotency{Redis: rdb},
		WebhookSecret: webhookSecret, Log: log,
	}).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &api{srv: srv, svc: svc, provider: provider, now: now}
}

// do sends body as JSON and decodes the response into a generic map.
func (a *api) do(t *testing.T, method, path, user string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// seedRoom registers a hotel and a room for owner-1 through the API.
func (a *api) seedRoom(t *testing.T, price float64) string {
	t.Helper()
	code, body := a.do(t, http.MethodPost, "/api/hotels", "owner-1", map[string]any{
		"name": "Sea Breeze", "address": "1 Beach Rd", "contact": "+1 555 0100", "city": "Lisbon",
	})
	if code != http.StatusCreated {
		t.Fatalf("create hotel: %d %v", code, body)
	}
	hotelID := body["hotel"].(map[string]any)["_id"].(string)

	code, body = a.do(t, http.MethodPost, "/api/rooms", "owner-1", map[string]any{
		"hotelId": hotelID, "roomType": "Double Bed", "pricePerNight": price,
		"amenities": []string{"Free WiFi", "Pool Access", "Free WiFi"},
	})
	if code != http.StatusCreated {
		t.Fatalf("create room: %d %v", code, body)
	}
	return body["room"].(map[string]any)["_id"].(string)
}

func (a *api) checkAvailability(t *testing.T, room, in, out string) bool {
	t.Helper()
	code, body := a.do(t, http.MethodPost, "/api/bookings/check-availability", "", map[string]any{
		"room": room, "checkInDate": in, "checkOutDate": out,
	})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("check-availability: %d %v", code, body)
	}
	return body["isAvailable"].(bool)
}

func (a *api) signedWebhook(t *testing.T, ev checkout.Event) (int, map[string]any) {
	t.Helper()
	raw, _ := json.Marshal(ev)
	return a.do(t, http.MethodPost, "/api/checkout/webhook", "", raw, checkout.SignatureHeader, checkout.Sign(webhookSecret, raw))
}

func TestEndToEndBooking(t *testing.T) {
	a := newAPI(t)
	a.provider.mu.Lock()
	a.provider.next = []string{"abc"}
	a.provider.mu.Unlock()
	room := a.seedRoom(t, 150)

	if !a.checkAvailability(t, room, "2024-07-10", "2024-07-12") {
		t.Fatal("empty room reported unavailable")
	}

	code, body := a.do(t, http.MethodPost, "/api/checkout/create-session", "guest-1", map[string]any{
		"roomId": room, "checkInDate": "2024-07-10", "checkOutDate": "2024-07-12", "guests": 2,
	})
	if code != http.StatusOK {
		t.Fatalf("create-session: %d %v", code, body)
	}
	if body["url"] != "https://pay.example/session/abc" {
		t.Fatalf("url = %v", body["url"])
	}
	resID := body["reservationId"].(string)

	// second guest, overlapping range, before confirmation
	if a.checkAvailability(t, room, "2024-07-11", "2024-07-13") {
		t.Fatal("overlapping range reported available while awaiting payment")
	}
	if !a.checkAvailability(t, room, "2024-07-12", "2024-07-14") {
		t.Fatal("adjacent range must stay available")
	}

	code, body = a.do(t, http.MethodGet, "/api/bookings/"+resID, "guest-1", nil)
	if code != http.StatusOK || body["booking"].(map[string]any)["status"] != "awaiting-payment" {
		t.Fatalf("booking before payment: %d %v", code, body)
	}

	ev := checkout.Event{ID: "evt_1", Type: booking.EventPaymentSucceeded, SessionID: "abc", ReservationID: resID, PaymentReference: "pi_1"}
	for i := 0; i < 2; i++ {
		if code, body := a.signedWebhook(t, ev); code != http.StatusOK {
			t.Fatalf("webhook delivery %d: %d %v", i, code, body)
		}
	}

	code, body = a.do(t, http.MethodGet, "/api/bookings/"+resID, "guest-1", nil)
	b := body["booking"].(map[string]any)
	if code != http.StatusOK || b["status"] != "confirmed" || b["isPaid"] != true || b["totalPrice"] != 300.0 {
		t.Fatalf("booking after payment: %d %v", code, body)
	}

	code, body = a.do(t, http.MethodGet, "/api/bookings/hotel", "owner-1", nil)
	d := body["dashboardData"].(map[string]any)
	if code != http.StatusOK || d["totalBookings"] != 1.0 || d["totalRevenue"] != 300.0 {
		t.Fatalf("dashboard: %d %v", code, body)
	}
	entry := d["bookings"].([]any)[0].(map[string]any)
	if entry["user"].(map[string]any)["username"] != "guest-1" || entry["room"].(map[string]any)["roomType"] != "Double Bed" {
		t.Fatalf("dashboard entry = %v", entry)
	}
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t)
	room := a.seedRoom(t, 100)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
		code   string
	}{
		{"inverted range", http.MethodPost, "/api/bookings/check-availability", "",
			map[string]any{"room": room, "checkInDate": "2024-07-12", "checkOutDate": "2024-07-10"}, 400, booking.CodeInvalidRange},
		{"past check-in", http.MethodPost, "/api/bookings/check-availability", "",
			map[string]any{"room": room, "checkInDate": "2024-06-30", "checkOutDate": "2024-07-02"}, 400, booking.CodeInvalidRange},
		{"malformed date", http.MethodPost, "/api/bookings/check-availability", "",
			map[string]any{"room": room, "checkInDate": "10/07/2024", "checkOutDate": "2024-07-12"}, 400, booking.CodeInvalidRange},
		{"unknown room", http.MethodPost, "/api/bookings/check-availability", "",
			map[string]any{"room": "nope", "checkInDate": "2024-07-10", "checkOutDate": "2024-07-12"}, 404, booking.CodeNotFound},
		{"missing room field", http.MethodPost, "/api/bookings/check-availability", "",
			map[string]any{"checkInDate": "2024-07-10", "checkOutDate": "2024-07-12"}, 400, booking.CodeInvalidInput},
		{"anonymous checkout", http.MethodPost, "/api/checkout/create-session", "",
			map[string]any{"roomId": room, "checkInDate": "2024-07-10", "checkOutDate": "2024-07-12", "guests": 1}, 401, booking.CodeUnauthenticated},
		{"zero price room", http.MethodPost, "/api/rooms", "owner-1",
			map[string]any{"hotelId": "h", "roomType": "Double Bed", "pricePerNight": 0}, 400, booking.CodeInvalidInput},
		{"foreign hotel room", http.MethodPatch, "/api/rooms/" + room + "/availability", "owner-2",
			map[string]any{"isAvailable": false}, 403, booking.CodeForbidden},
		{"bad webhook signature", http.MethodPost, "/api/checkout/webhook", "",
			[]byte(`{"event_id":"e","type":"PaymentSucceeded","reservation_id":"r"}`), 403, booking.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do(t, tt.method, tt.path, tt.user, tt.body)
			if status != tt.status || body["code"] != tt.code || body["success"] != false {
				t.Fatalf("got %d %v, want %d %s", status, body, tt.status, tt.code)
			}
			if msg, _ := body["message"].(string); msg == "" {
				t.Fatal("error body without message")
			}
		})
	}
}

func TestCreateSessionConflict(t *testing.T) {
	a := newAPI(t)
	room := a.seedRoom(t, 100)
	req := map[string]any{"roomId": room, "checkInDate": "2024-07-10", "checkOutDate": "2024-07-12", "guests": 1}

	if code, body := a.do(t, http.MethodPost, "/api/checkout/create-session", "guest-1", req); code != http.StatusOK {
		t.Fatalf("first: %d %v", code, body)
	}
	req["checkInDate"], req["checkOutDate"] = "2024-07-11", "2024-07-13"
	code, body := a.do(t, http.MethodPost, "/api/checkout/create-session", "guest-2", req)
	if code != http.StatusConflict || body["code"] != booking.CodeRoomUnavailable {
		t.Fatalf("second: %d %v", code, body)
	}
}

func TestCreateSessionIdempotencyKey(t *testing.T) {
	a := newAPI(t)
	room := a.seedRoom(t, 100)
	req := map[string]any{"roomId": room, "checkInDate": "2024-07-10", "checkOutDate": "2024-07-12", "guests": 1}

	_, first := a.do(t, http.MethodPost, "/api/checkout/create-session", "guest-1", req, IdempotencyHeader, "click-1")
	code, second := a.do(t, http.MethodPost, "/api/checkout/create-session", "guest-1", req, IdempotencyHeader, "click-1")
	if code != http.StatusOK {
		t.Fatalf("replay: %d %v", code, second)
	}
	if first["reservationId"] != second["reservationId"] {
		t.Fatalf("double click created two reservations: %v vs %v", first["reservationId"], second["reservationId"])
	}
	list, _ := a.svc.GuestReservations(context.Background(), "guest-1")
	if len(list) != 1 {
		t.Fatalf("reservations = %d", len(list))
	}

	// repeats arriving together map to the same reservation, none sees a conflict
	raw, _ := json.Marshal(map[string]any{"roomId": room, "checkInDate": "2024-07-20", "checkOutDate": "2024-07-22", "guests": 1})
	const n = 5
	type result struct {
		code int
		body map[string]any
		err  error
	}
	results := make([]result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/api/checkout/create-session", bytes.NewReader(raw))
			if err != nil {
				results[i].err = err
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(UserHeader, "guest-1")
			req.Header.Set(IdempotencyHeader, "click-2")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				results[i].err = err
				return
			}
			defer resp.Body.Close()
			results[i].code = resp.StatusCode
			results[i].err = json.NewDecoder(resp.Body).Decode(&results[i].body)
		}(i)
	}
	wg.Wait()
	for i, r := range results {
		if r.err != nil || r.code != http.StatusOK {
			t.Fatalf("concurrent repeat %d: %d %v %v", i, r.code, r.body, r.err)
		}
		if r.body["reservationId"] != results[0].body["reservationId"] {
			t.Fatalf("concurrent repeats split: %v vs %v", r.body["reservationId"], results[0].body["reservationId"])
		}
	}
	list, _ = a.svc.GuestReservations(context.Background(), "guest-1")
	if len(list) != 2 {
		t.Fatalf("reservations after concurrent repeats = %d", len(list))
	}
}

func TestCreateSessionRetryAfterProviderFailure(t *testing.T) {
	a := newAPI(t)
	room := a.seedRoom(t, 100)

	a.provider.setFailing(true)
	code, body := a.do(t, http.MethodPost, "/api/checkout/create-session", "guest-1", map[string]any{
		"roomId": room, "checkInDate": "2024-07-10", "checkOutDate": "2024-07-12", "guests": 1,
	})
	if code != http.StatusBadGateway || body["code"] != booking.CodeSessionCreationFailed {
		t.Fatalf("failure: %d %v", code, body)
	}
	list, _ := a.svc.GuestReservations(context.Background(), "guest-1")
	if len(list) != 1 || list[0].Status != booking.StatusAwaitingPayment {
		t.Fatalf("reservations after failure = %+v", list)
	}

	a.provider.setFailing(false)
	code, body = a.do(t, http.MethodPost, "/api/checkout/create-session", "guest-1", map[string]any{"reservationId": list[0].ID})
	if code != http.StatusOK || body["reservationId"] != list[0].ID {
		t.Fatalf("retry: %d %v", code, body)
	}

	// someone else's reservation is invisible
	code, _ = a.do(t, http.MethodPost, "/api/checkout/create-session", "guest-2", map[string]any{"reservationId": list[0].ID})
	if code != http.StatusNotFound {
		t.Fatalf("foreign retry status = %d", code)
	}
}

func TestCancelAndRebook(t *testing.T) {
	a := newAPI(t)
	room := a.seedRoom(t, 100)
	_, body := a.do(t, http.MethodPost, "/api/checkout/create-session", "guest-1", map[string]any{
		"roomId": room, "checkInDate": "2024-07-10", "checkOutDate": "2024-07-12", "guests": 1,
	})
	resID := body["reservationId"].(string)

	if code, _ := a.do(t, http.MethodPost, "/api/bookings/"+resID+"/cancel", "guest-2", nil); code != http.StatusForbidden {
		t.Fatalf("foreign cancel status = %d", code)
	}
	code, body := a.do(t, http.MethodPost, "/api/bookings/"+resID+"/cancel", "guest-1", nil)
	if code != http.StatusOK || body["booking"].(map[string]any)["status"] != "abandoned" {
		t.Fatalf("cancel: %d %v", code, body)
	}
	code, body = a.do(t, http.MethodPost, "/api/bookings/"+resID+"/cancel", "guest-1", nil)
	if code != http.StatusConflict || body["code"] != booking.CodeInvalidTransition {
		t.Fatalf("second cancel: %d %v", code, body)
	}
	if !a.checkAvailability(t, room, "2024-07-10", "2024-07-12") {
		t.Fatal("abandoned reservation still blocks the room")
	}
}

func TestRoomsCatalogue(t *testing.T) {
	a := newAPI(t)
	room := a.seedRoom(t, 99.5)

	code, body := a.do(t, http.MethodGet, "/api/rooms/"+room, "", nil)
	r := body["room"].(map[string]any)
	if code != http.StatusOK || r["pricePerNight"] != 99.5 || len(r["amenities"].([]any)) != 2 {
		t.Fatalf("room: %d %v", code, body)
	}
	if r["hotel"].(map[string]any)["name"] != "Sea Breeze" {
		t.Fatalf("hotel not populated: %v", r["hotel"])
	}

	if code, _ := a.do(t, http.MethodPatch, "/api/rooms/"+room+"/availability", "owner-1", map[string]any{"isAvailable": false}); code != http.StatusOK {
		t.Fatalf("toggle status = %d", code)
	}
	_, body = a.do(t, http.MethodGet, "/api/rooms", "", nil)
	if n := len(body["rooms"].([]any)); n != 0 {
		t.Fatalf("public rooms = %d, want 0", n)
	}
	_, body = a.do(t, http.MethodGet, "/api/rooms/owner", "owner-1", nil)
	if n := len(body["rooms"].([]any)); n != 1 {
		t.Fatalf("owner rooms = %d, want 1", n)
	}
	if a.checkAvailability(t, room, "2024-07-10", "2024-07-12") {
		t.Fatal("disabled room reported available")
	}
	_, body = a.do(t, http.MethodGet, "/api/hotels/me", "owner-1", nil)
	if n := len(body["hotels"].([]any)); n != 1 {
		t.Fatalf("hotels = %d", n)
	}
}

func TestDashboardExport(t *testing.T) {
	a := newAPI(t)
	room := a.seedRoom(t, 100)
	_, body := a.do(t, http.MethodPost, "/api/checkout/create-session", "guest-1", map[string]any{
		"roomId": room, "checkInDate": "2024-07-10", "checkOutDate": "2024-07-13", "guests": 2,
	})
	if code, _ := a.signedWebhook(t, checkout.Event{
		ID: "evt_x", Type: booking.EventPaymentSucceeded, ReservationID: body["reservationId"].(string), PaymentReference: "pi_x",
	}); code != http.StatusOK {
		t.Fatalf("webhook status = %d", code)
	}

	req, _ := http.NewRequest(http.MethodGet, a.srv.URL+"/api/bookings/hotel/export", nil)
	req.Header.Set(UserHeader, "owner-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != xlsxContentType {
		t.Fatalf("export: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(bookingsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) < 2 || rows[0][0] != "Reservation" {
		t.Fatalf("rows = %v", rows)
	}
	got := rows[1]
	if got[1] != "guest-1" || got[6] != "3" || got[8] != "300" || got[9] != "confirmed" || got[10] != "TRUE" {
		t.Fatalf("row = %v", got)
	}
	last := rows[len(rows)-1]
	if last[0] != "Total bookings" || last[1] != "1" || last[3] != "300" {
		t.Fatalf("totals = %v", last)
	}
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	resp, err := http.Get(fmt.Sprintf("%s/healthz", a.srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

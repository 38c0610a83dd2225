package bookingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
)

var (
	ErrNetwork    = errors.New("network error")
	ErrBusy       = errors.New("a request for this action is already in flight")
	ErrNotChecked = errors.New("availability must be confirmed for the selected dates before checkout")
)

// APIError is a non-2xx or success:false answer. It unwraps to the booking
// sentinel named by Code, when there is one.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d", e.Status)
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return booking.ErrorForCode(e.Code) }

// Client speaks the booking HTTP contract.
type Client struct {
	BaseURL string
	UserID  string
	HTTP    *http.Client
}

func New(baseURL, userID string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		UserID:  userID,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (c *Client) call(ctx context.Context, method, path string, in any, out any, headers map[string]string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.UserID != "" {
		req.Header.Set("X-User-Id", c.UserID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
		if decodeErr != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, decodeErr)
	}
	if env.Success != nil && !*env.Success {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) CheckAvailability(ctx context.Context, roomID string, r booking.DateRange) (bool, error) {
	var out struct {
		IsAvailable bool `json:"isAvailable"`
	}
	err := c.call(ctx, http.MethodPost, "/api/bookings/check-availability", map[string]string{
		"room":         roomID,
		"checkInDate":  r.CheckIn.String(),
		"checkOutDate": r.CheckOut.String(),
	}, &out, nil)
	return out.IsAvailable, err
}

// Redirect is where the guest goes to pay: URL when the provider hosts one,
// otherwise SessionID for the provider's client-side redirect.
type Redirect struct {
	URL           string
	SessionID     string
	ReservationID string
	ExpiresAt     time.Time
}

type CheckoutRequest struct {
	RoomID         string
	Range          booking.DateRange
	Guests         int
	IdempotencyKey string
}

func (c *Client) CreateSession(ctx context.Context, in CheckoutRequest) (Redirect, error) {
	var out struct {
		URL           string    `json:"url"`
		ID            string    `json:"id"`
		ReservationID string    `json:"reservationId"`
		ExpiresAt     time.Time `json:"expiresAt"`
	}
	var headers map[string]string
	if in.IdempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": in.IdempotencyKey}
	}
	err := c.call(ctx, http.MethodPost, "/api/checkout/create-session", map[string]any{
		"roomId":       in.RoomID,
		"checkInDate":  in.Range.CheckIn.String(),
		"checkOutDate": in.Range.CheckOut.String(),
		"guests":       in.Guests,
	}, &out, headers)
	if err != nil {
		return Redirect{}, err
	}
	if out.URL == "" && out.ID == "" {
		return Redirect{}, fmt.Errorf("%w: response carried neither url nor id", booking.ErrSessionCreationFailed)
	}
	return Redirect{URL: out.URL, SessionID: out.ID, ReservationID: out.ReservationID, ExpiresAt: out.ExpiresAt}, nil
}

type RoomSummary struct {
	ID            string   `json:"_id"`
	RoomType      string   `json:"roomType"`
	PricePerNight float64  `json:"pricePerNight"`
	Amenities     []string `json:"amenities"`
	IsAvailable   bool     `json:"isAvailable"`
}

func (c *Client) Rooms(ctx context.Context) ([]RoomSummary, error) {
	var out struct {
		Rooms []RoomSummary `json:"rooms"`
	}
	err := c.call(ctx, http.MethodGet, "/api/rooms", nil, &out, nil)
	return out.Rooms, err
}

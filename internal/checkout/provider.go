package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionRequest is what the broker asks the payment provider to host.
type SessionRequest struct {
	ReservationID string    `json:"reservation_id"`
	AmountCents   int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description"`
	SuccessURL    string    `json:"success_url"`
	CancelURL     string    `json:"cancel_url"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ProviderSession is the provider's answer. At least one of ID and URL is set.
type ProviderSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (ProviderSession, error)
}

// HTTPProvider talks to a hosted-checkout API:
// POST {BaseURL}/v1/checkout/sessions with a bearer key.
type HTTPProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) CreateSession(ctx context.Context, in SessionRequest) (ProviderSession, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return ProviderSession{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return ProviderSession{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return ProviderSession{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ProviderSession{}, err
	}
	if resp.StatusCode/100 != 2 {
		return ProviderSession{}, fmt.Errorf("provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out ProviderSession
	if err := json.Unmarshal(raw, &out); err != nil {
		return ProviderSession{}, fmt.Errorf("decode provider response: %w", err)
	}
	if out.ID == "" && out.URL == "" {
		return ProviderSession{}, fmt.Errorf("provider returned neither id nor url")
	}
	return out, nil
}

// PlaceholderProvider is the dev-mode provider: no external call, the URL
// points at {BaseURL}/session/{id}.
type PlaceholderProvider struct {
	BaseURL string
	NewID   func() string
}

func (p *PlaceholderProvider) CreateSession(_ context.Context, _ SessionRequest) (ProviderSession, error) {
	id := "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if p.NewID != nil {
		id = p.NewID()
	}
	return ProviderSession{ID: id, URL: strings.TrimRight(p.BaseURL, "/") + "/session/" + id}, nil
}

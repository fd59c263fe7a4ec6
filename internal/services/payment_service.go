package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// PaymentService wraps the hosted checkout provider. The provider owns the
// whole payment flow; we only open checkout sessions and poll their status
// (the provider exposes no webhooks on our plan).
type PaymentService interface {
	CreateCheckout(ctx context.Context, planID string, tenantID uuid.UUID, customerEmail string) (*CheckoutSession, error)
	GetCheckoutStatus(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

type paymentService struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

type CheckoutSession struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url"`
	PlanID      string `json:"plan_id"`
	ExpiresAt   int64  `json:"expires_at"`
}

type createCheckoutRequest struct {
	PlanID        string `json:"plan_id"`
	CustomerEmail string `json:"customer_email"`
	ClientRef     string `json:"client_reference_id"`
}

func NewPaymentService(apiKey, baseURL string) PaymentService {
	return &paymentService{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *paymentService) CreateCheckout(ctx context.Context, planID string, tenantID uuid.UUID, customerEmail string) (*CheckoutSession, error) {
	payload := createCheckoutRequest{
		PlanID:        planID,
		CustomerEmail: customerEmail,
		ClientRef:     tenantID.String(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("create checkout session: provider returned %d: %s", resp.StatusCode, string(data))
	}

	session := &CheckoutSession{}
	if err := json.NewDecoder(resp.Body).Decode(session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return session, nil
}

func (s *paymentService) GetCheckoutStatus(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/checkout/sessions/"+sessionID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get checkout status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get checkout status: provider returned %d: %s", resp.StatusCode, string(data))
	}

	session := &CheckoutSession{}
	if err := json.NewDecoder(resp.Body).Decode(session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return session, nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"pipecrm/internal/models"
	"pipecrm/internal/repositories"

	"github.com/google/uuid"
)

// SubscriptionService handles subscription business logic around the hosted
// checkout provider.
type SubscriptionService interface {
	Create(ctx context.Context, tenantID uuid.UUID, planID string, customerEmail string) (*models.Subscription, *CheckoutSession, error)
	GetByID(ctx context.Context, tenantID, subscriptionID uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Subscription, error)
	// SyncStatus polls the provider for the checkout outcome and updates
	// the local record.
	SyncStatus(ctx context.Context, tenantID, subscriptionID uuid.UUID) (*models.Subscription, error)
	GetAvailablePlans() map[string]PlanConfig
}

type subscriptionService struct {
	subscriptionRepo repositories.SubscriptionRepository
	paymentSvc       PaymentService
}

// PlanConfig represents a subscription plan configuration
type PlanConfig struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`
	Currency    string   `json:"currency"`
	Interval    string   `json:"interval"`
	Features    []string `json:"features"`
}

var availablePlans = map[string]PlanConfig{
	"starter": {
		ID:          "starter",
		Name:        "Starter",
		Description: "Pipeline et agenda pour les petites equipes",
		Amount:      29.0,
		Currency:    "EUR",
		Interval:    "monthly",
		Features: []string{
			"100 fiches prospects par mois",
			"Agenda partage",
			"Rapports pipeline",
		},
	},
	"pro": {
		ID:          "pro",
		Name:        "Pro",
		Description: "Pour les equipes commerciales en croissance",
		Amount:      79.0,
		Currency:    "EUR",
		Interval:    "monthly",
		Features: []string{
			"Fiches prospects illimitees",
			"Extraction automatique de cartes de visite",
			"Exports PDF",
			"Support prioritaire",
		},
	},
}

func NewSubscriptionService(subscriptionRepo repositories.SubscriptionRepository, paymentSvc PaymentService) SubscriptionService {
	return &subscriptionService{
		subscriptionRepo: subscriptionRepo,
		paymentSvc:       paymentSvc,
	}
}

func (s *subscriptionService) Create(ctx context.Context, tenantID uuid.UUID, planID string, customerEmail string) (*models.Subscription, *CheckoutSession, error) {
	plan, exists := availablePlans[planID]
	if !exists {
		return nil, nil, fmt.Errorf("invalid plan: %s", planID)
	}

	session, err := s.paymentSvc.CreateCheckout(ctx, plan.ID, tenantID, customerEmail)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open checkout: %w", err)
	}

	now := time.Now()
	endDate := now.AddDate(0, 1, 0)
	subscription := &models.Subscription{
		ID:                uuid.New(),
		TenantID:          tenantID,
		CheckoutSessionID: &session.ID,
		PlanName:          plan.Name,
		Amount:            plan.Amount,
		Currency:          plan.Currency,
		Status:            session.Status,
		StartDate:         now,
		EndDate:           &endDate,
	}
	if err := s.subscriptionRepo.Create(ctx, subscription); err != nil {
		return nil, nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return subscription, session, nil
}

func (s *subscriptionService) GetByID(ctx context.Context, tenantID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	return s.subscriptionRepo.GetByID(ctx, tenantID, subscriptionID)
}

func (s *subscriptionService) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Subscription, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.subscriptionRepo.List(ctx, tenantID, limit, offset)
}

func (s *subscriptionService) SyncStatus(ctx context.Context, tenantID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.subscriptionRepo.GetByID(ctx, tenantID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if subscription.CheckoutSessionID == nil {
		return subscription, nil
	}
	session, err := s.paymentSvc.GetCheckoutStatus(ctx, *subscription.CheckoutSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to poll checkout status: %w", err)
	}
	if session.Status != subscription.Status {
		subscription.Status = session.Status
		if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
			return nil, fmt.Errorf("failed to update subscription: %w", err)
		}
	}
	return subscription, nil
}

func (s *subscriptionService) GetAvailablePlans() map[string]PlanConfig {
	return availablePlans
}

package handlers

import (
	"net/http"

	"pipecrm/internal/common"
	"pipecrm/internal/services"

	"github.com/labstack/echo/v4"
)

// SubscriptionHandlers handles subscription and checkout HTTP requests.
type SubscriptionHandlers struct {
	subscriptionService services.SubscriptionService
}

func NewSubscriptionHandlers(subscriptionService services.SubscriptionService) *SubscriptionHandlers {
	return &SubscriptionHandlers{subscriptionService: subscriptionService}
}

func (h *SubscriptionHandlers) ListPlans(c echo.Context) error {
	return c.JSON(http.StatusOK, h.subscriptionService.GetAvailablePlans())
}

// CreateSubscriptionRequest represents the checkout opening payload
type CreateSubscriptionRequest struct {
	PlanID        string `json:"plan_id"`
	CustomerEmail string `json:"customer_email"`
}

func (h *SubscriptionHandlers) CreateSubscription(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req CreateSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.PlanID, "plan_id"); err != nil {
		return common.SendValidationError(c, "plan_id", err.Error())
	}
	if err := common.ValidateRequiredString(req.CustomerEmail, "customer_email"); err != nil {
		return common.SendValidationError(c, "customer_email", err.Error())
	}

	subscription, session, err := h.subscriptionService.Create(c.Request().Context(), tenantID, req.PlanID, req.CustomerEmail)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"subscription": subscription,
		"checkout_url": session.CheckoutURL,
	})
}

// ListSubscriptionsRequest represents query parameters for listing
type ListSubscriptionsRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (h *SubscriptionHandlers) ListSubscriptions(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req ListSubscriptionsRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid query parameters")
	}
	limit, offset := common.ValidatePaginationParams(req.Limit, req.Offset)

	subscriptions, err := h.subscriptionService.List(c.Request().Context(), tenantID, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list subscriptions")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"subscriptions": subscriptions,
		"limit":         limit,
		"offset":        offset,
	})
}

// GetSubscriptionStatus polls the checkout provider and returns the
// refreshed subscription.
func (h *SubscriptionHandlers) GetSubscriptionStatus(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "subscription id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	subscription, err := h.subscriptionService.SyncStatus(c.Request().Context(), tenantID, id)
	if err != nil {
		return common.SendServerError(c, "Failed to refresh subscription status")
	}
	return c.JSON(http.StatusOK, subscription)
}

package handlers

import (
	"net/http"

	"pipecrm/internal/common"
	"pipecrm/internal/repositories"

	"github.com/labstack/echo/v4"
)

// TenantHandlers handles tenant profile HTTP requests.
type TenantHandlers struct {
	tenantRepo repositories.TenantRepository
}

func NewTenantHandlers(tenantRepo repositories.TenantRepository) *TenantHandlers {
	return &TenantHandlers{tenantRepo: tenantRepo}
}

// GetTenant returns the caller's own tenant profile.
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	tenant, err := h.tenantRepo.GetByID(c.Request().Context(), tenantID)
	if err != nil {
		return common.SendNotFoundError(c, "Tenant")
	}
	return c.JSON(http.StatusOK, tenant)
}

// UpdateTenantRequest represents the tenant update payload
type UpdateTenantRequest struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
}

func (h *TenantHandlers) UpdateTenant(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req UpdateTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.Name, "name"); err != nil {
		return common.SendValidationError(c, "name", err.Error())
	}

	tenant, err := h.tenantRepo.GetByID(c.Request().Context(), tenantID)
	if err != nil {
		return common.SendNotFoundError(c, "Tenant")
	}
	tenant.Name = req.Name
	if req.Subdomain != "" {
		tenant.Subdomain = req.Subdomain
	}
	if err := h.tenantRepo.Update(c.Request().Context(), tenant); err != nil {
		return common.SendServerError(c, "Failed to update tenant")
	}
	return c.JSON(http.StatusOK, tenant)
}

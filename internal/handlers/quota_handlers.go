package handlers

import (
	"net/http"

	"pipecrm/internal/common"
	"pipecrm/internal/services"

	"github.com/labstack/echo/v4"
)

// QuotaHandlers exposes the tenant's monthly creation allowance.
type QuotaHandlers struct {
	quotaService services.QuotaService
}

func NewQuotaHandlers(quotaService services.QuotaService) *QuotaHandlers {
	return &QuotaHandlers{quotaService: quotaService}
}

// GetQuota returns the current quota record for the caller's tenant,
// after lazy creation and period rollover.
func (h *QuotaHandlers) GetQuota(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	record, err := h.quotaService.Get(c.Request().Context(), tenantID)
	if err != nil {
		return common.SendServiceUnavailableError(c, "Une erreur temporaire est survenue, veuillez réessayer.")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"tokens_remaining": record.TokensRemaining,
		"tokens_total":     record.TokensTotal,
		"tokens_used":      record.TokensUsed(),
		"period_key":       record.PeriodKey,
	})
}

package handlers

import (
	"net/http"

	"pipecrm/internal/common"
	"pipecrm/internal/services"

	"github.com/labstack/echo/v4"
)

// ReportHandlers handles commercial reporting HTTP requests.
type ReportHandlers struct {
	reportingService services.ReportingService
}

func NewReportHandlers(reportingService services.ReportingService) *ReportHandlers {
	return &ReportHandlers{reportingService: reportingService}
}

// GetPipelineSummary returns per-stage lead counts and deal values.
func (h *ReportHandlers) GetPipelineSummary(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	summaries, err := h.reportingService.PipelineSummary(c.Request().Context(), tenantID)
	if err != nil {
		return common.SendServerError(c, "Failed to build pipeline summary")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"stages": summaries})
}

// ExportPipelinePDF renders the summary to PDF and returns a download link.
func (h *ReportHandlers) ExportPipelinePDF(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	export, err := h.reportingService.ExportPDF(c.Request().Context(), tenantID)
	if err != nil {
		return common.SendServerError(c, "Failed to export pipeline report")
	}
	return c.JSON(http.StatusOK, export)
}

package handlers

import (
	"errors"
	"net/http"

	"pipecrm/internal/common"
	"pipecrm/internal/models"
	"pipecrm/internal/services"

	"github.com/labstack/echo/v4"
)

// LeadHandlers handles prospect pipeline HTTP requests.
type LeadHandlers struct {
	leadService       services.LeadService
	extractionService services.ExtractionService
}

func NewLeadHandlers(leadService services.LeadService, extractionService services.ExtractionService) *LeadHandlers {
	return &LeadHandlers{
		leadService:       leadService,
		extractionService: extractionService,
	}
}

// sendLeadError maps service failures onto user-distinguishable responses:
// an exhausted quota, a transient infrastructure fault, or a plain client
// error. The distinction rides on the error kind, never on message text.
func sendLeadError(c echo.Context, err error) error {
	var qe *services.QuotaError
	if errors.As(err, &qe) {
		switch qe.Kind {
		case services.QuotaExceeded:
			return common.SendQuotaExceededError(c, qe.Message)
		default:
			return common.SendServiceUnavailableError(c, "Une erreur temporaire est survenue, veuillez réessayer.")
		}
	}
	if errors.Is(err, services.ErrSubmissionInFlight) {
		return c.JSON(http.StatusConflict, common.CreateErrorResponse("IN_FLIGHT", "Une création est déjà en cours, veuillez patienter.", nil))
	}
	return common.SendClientError(c, err.Error())
}

// CreateLead creates a quota-gated prospect.
func (h *LeadHandlers) CreateLead(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	userID, ok := common.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req services.CreateLeadRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	lead, err := h.leadService.Create(c.Request().Context(), tenantID, userID, &req)
	if err != nil {
		return sendLeadError(c, err)
	}
	return c.JSON(http.StatusCreated, lead)
}

// ExtractLead runs the vision-language extraction on a card image or text
// block and creates the resulting prospect through the same quota gate.
func (h *LeadHandlers) ExtractLead(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	userID, ok := common.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var input services.ExtractionInput
	if err := c.Bind(&input); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	draft, err := h.extractionService.ExtractLead(c.Request().Context(), input)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	lead, err := h.leadService.Create(c.Request().Context(), tenantID, userID, draft)
	if err != nil {
		return sendLeadError(c, err)
	}
	return c.JSON(http.StatusCreated, lead)
}

// ImportLeads ingests a CSV body of prospects.
func (h *LeadHandlers) ImportLeads(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	userID, ok := common.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	result, err := h.leadService.ImportCSV(c.Request().Context(), tenantID, userID, c.Request().Body)
	if err != nil {
		return sendLeadError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListLeadsRequest represents query parameters for listing leads
type ListLeadsRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (h *LeadHandlers) ListLeads(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req ListLeadsRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid query parameters")
	}
	limit, offset := common.ValidatePaginationParams(req.Limit, req.Offset)

	leads, err := h.leadService.List(c.Request().Context(), tenantID, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list leads")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"leads":  leads,
		"limit":  limit,
		"offset": offset,
	})
}

// GetBoard returns the pipeline grouped by stage for the drag-and-drop view.
func (h *LeadHandlers) GetBoard(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	board, err := h.leadService.Board(c.Request().Context(), tenantID)
	if err != nil {
		return common.SendServerError(c, "Failed to load pipeline board")
	}
	return c.JSON(http.StatusOK, board)
}

func (h *LeadHandlers) GetLead(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "lead id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	lead, err := h.leadService.Get(c.Request().Context(), tenantID, id)
	if err != nil {
		return common.SendNotFoundError(c, "Lead")
	}
	return c.JSON(http.StatusOK, lead)
}

// UpdateLeadRequest represents the lead update payload
type UpdateLeadRequest struct {
	Name    string  `json:"name"`
	Company *string `json:"company"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Stage   string  `json:"stage"`
	Value   float64 `json:"value"`
	Source  *string `json:"source"`
	Notes   *string `json:"notes"`
}

func (h *LeadHandlers) UpdateLead(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "lead id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req UpdateLeadRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.Name, "name"); err != nil {
		return common.SendValidationError(c, "name", err.Error())
	}

	lead, err := h.leadService.Get(c.Request().Context(), tenantID, id)
	if err != nil {
		return common.SendNotFoundError(c, "Lead")
	}
	lead.Name = req.Name
	lead.Company = req.Company
	lead.Email = req.Email
	lead.Phone = req.Phone
	if req.Stage != "" {
		lead.Stage = req.Stage
	}
	lead.Value = req.Value
	lead.Source = req.Source
	lead.Notes = req.Notes

	if err := h.leadService.Update(c.Request().Context(), tenantID, lead); err != nil {
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, lead)
}

// MoveStageRequest represents a board drag-and-drop move
type MoveStageRequest struct {
	Stage    string `json:"stage"`
	Position int    `json:"position"`
}

func (h *LeadHandlers) MoveStage(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "lead id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req MoveStageRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := h.leadService.MoveStage(c.Request().Context(), tenantID, id, req.Stage, req.Position); err != nil {
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id.String(), "stage": req.Stage})
}

func (h *LeadHandlers) DeleteLead(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "lead id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	if err := h.leadService.Delete(c.Request().Context(), tenantID, id); err != nil {
		return common.SendServerError(c, "Failed to delete lead")
	}
	return c.NoContent(http.StatusNoContent)
}

// Stages lists the valid pipeline stages in board order.
func (h *LeadHandlers) Stages(c echo.Context) error {
	return c.JSON(http.StatusOK, []string{
		models.StageNew, models.StageContacted, models.StageQualified,
		models.StageProposal, models.StageWon, models.StageLost,
	})
}

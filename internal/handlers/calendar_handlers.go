package handlers

import (
	"net/http"
	"time"

	"pipecrm/internal/common"
	"pipecrm/internal/services"

	"github.com/labstack/echo/v4"
)

// CalendarHandlers handles calendar event HTTP requests.
type CalendarHandlers struct {
	calendarService services.CalendarService
}

func NewCalendarHandlers(calendarService services.CalendarService) *CalendarHandlers {
	return &CalendarHandlers{calendarService: calendarService}
}

func (h *CalendarHandlers) CreateEvent(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	userID, ok := common.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req services.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	event, err := h.calendarService.Create(c.Request().Context(), tenantID, userID, &req)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusCreated, event)
}

// ListEventsRequest represents the calendar range query
type ListEventsRequest struct {
	From string `query:"from"`
	To   string `query:"to"`
}

func (h *CalendarHandlers) ListEvents(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req ListEventsRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid query parameters")
	}

	// Default to the current month when no range is given.
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	if req.From != "" {
		parsed, err := common.ValidateDateFormat(req.From, "from")
		if err != nil {
			return common.SendValidationError(c, "from", err.Error())
		}
		from = parsed
	}
	if req.To != "" {
		parsed, err := common.ValidateDateFormat(req.To, "to")
		if err != nil {
			return common.SendValidationError(c, "to", err.Error())
		}
		to = parsed
	}

	events, err := h.calendarService.ListRange(c.Request().Context(), tenantID, from, to)
	if err != nil {
		return common.SendServerError(c, "Failed to list events")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
		"from":   from,
		"to":     to,
	})
}

func (h *CalendarHandlers) GetEvent(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "event id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	event, err := h.calendarService.Get(c.Request().Context(), tenantID, id)
	if err != nil {
		return common.SendNotFoundError(c, "Event")
	}
	return c.JSON(http.StatusOK, event)
}

func (h *CalendarHandlers) UpdateEvent(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "event id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	event, err := h.calendarService.Get(c.Request().Context(), tenantID, id)
	if err != nil {
		return common.SendNotFoundError(c, "Event")
	}

	var req services.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	event.LeadID = req.LeadID
	event.Title = req.Title
	event.Location = req.Location
	event.StartsAt = req.StartsAt
	event.EndsAt = req.EndsAt
	event.AllDay = req.AllDay
	event.Notes = req.Notes

	if err := h.calendarService.Update(c.Request().Context(), tenantID, event); err != nil {
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, event)
}

func (h *CalendarHandlers) DeleteEvent(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "event id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	if err := h.calendarService.Delete(c.Request().Context(), tenantID, id); err != nil {
		return common.SendServerError(c, "Failed to delete event")
	}
	return c.NoContent(http.StatusNoContent)
}

package handlers

import (
	"net/http"

	"pipecrm/internal/common"
	"pipecrm/internal/models"
	"pipecrm/internal/repositories"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UserHandlers handles team member HTTP requests. Identities come from the
// external provider; these records only carry CRM-side profile data.
type UserHandlers struct {
	userRepo repositories.UserRepository
}

func NewUserHandlers(userRepo repositories.UserRepository) *UserHandlers {
	return &UserHandlers{userRepo: userRepo}
}

// Me returns the caller's profile.
func (h *UserHandlers) Me(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	userID, ok := common.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	user, err := h.userRepo.GetByID(c.Request().Context(), tenantID, userID)
	if err != nil {
		return common.SendNotFoundError(c, "User")
	}
	return c.JSON(http.StatusOK, user)
}

// ListUsersRequest represents query parameters for listing users
type ListUsersRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (h *UserHandlers) ListUsers(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req ListUsersRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid query parameters")
	}
	limit, offset := common.ValidatePaginationParams(req.Limit, req.Offset)

	users, err := h.userRepo.List(c.Request().Context(), tenantID, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list users")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}

// CreateUserRequest represents the team member creation payload
type CreateUserRequest struct {
	Email     string  `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      string  `json:"role"`
}

func (h *UserHandlers) CreateUser(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.Email, "email"); err != nil {
		return common.SendValidationError(c, "email", err.Error())
	}
	role := req.Role
	if role == "" {
		role = "member"
	}

	user := &models.User{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
		Status:    "active",
	}
	if err := h.userRepo.Create(c.Request().Context(), user); err != nil {
		return common.SendServerError(c, "Failed to create user")
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *UserHandlers) DeleteUser(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	if err := h.userRepo.Delete(c.Request().Context(), tenantID, id); err != nil {
		return common.SendServerError(c, "Failed to delete user")
	}
	return c.NoContent(http.StatusNoContent)
}

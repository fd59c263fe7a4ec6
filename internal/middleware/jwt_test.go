package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pipecrm/internal/common"
	"pipecrm/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret"

// stubUserRepo only needs tenant resolution; the other methods are never
// reached from the middleware.
type stubUserRepo struct {
	tenantByUser map[uuid.UUID]uuid.UUID
}

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	return errors.New("not implemented")
}

func (s *stubUserRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (s *stubUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (s *stubUserRepo) GetTenantIDByUserID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	tenantID, ok := s.tenantByUser[userID]
	if !ok {
		return uuid.Nil, errors.New("user not found")
	}
	return tenantID, nil
}

func (s *stubUserRepo) Update(ctx context.Context, user *models.User) error {
	return errors.New("not implemented")
}

func (s *stubUserRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return errors.New("not implemented")
}

func (s *stubUserRepo) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.User, error) {
	return nil, errors.New("not implemented")
}

func signToken(t *testing.T, secret, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	assert.NoError(t, err)
	return signed
}

// newProtectedServer mirrors the production wiring: the echo-jwt middleware
// in front, tenant resolution behind it.
func newProtectedServer(t *testing.T, repo *stubUserRepo, handler echo.HandlerFunc) *echo.Echo {
	t.Helper()
	m, err := NewAuthMiddleware(repo, testSecret, "")
	assert.NoError(t, err)

	e := echo.New()
	v1 := e.Group("/v1")
	v1.Use(echojwt.WithConfig(m.JWTConfig()))
	v1.Use(m.ResolveTenant)
	v1.GET("/me", handler)
	return e
}

func TestResolveTenant_ValidToken(t *testing.T) {
	userID := uuid.New()
	tenantID := uuid.New()
	repo := &stubUserRepo{tenantByUser: map[uuid.UUID]uuid.UUID{userID: tenantID}}

	e := newProtectedServer(t, repo, func(c echo.Context) error {
		gotUser, ok := common.GetUserIDFromContext(c.Request().Context())
		assert.True(t, ok)
		assert.Equal(t, userID, gotUser)

		gotTenant, ok := common.GetTenantIDFromContext(c.Request().Context())
		assert.True(t, ok)
		assert.Equal(t, tenantID, gotTenant)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signToken(t, testSecret, userID.String()))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveTenant_MissingToken(t *testing.T) {
	e := newProtectedServer(t, &stubUserRepo{}, func(c echo.Context) error {
		t.Fatal("handler must not run without a token")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResolveTenant_BadSignature(t *testing.T) {
	userID := uuid.New()
	e := newProtectedServer(t, &stubUserRepo{}, func(c echo.Context) error {
		t.Fatal("handler must not run with a forged token")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signToken(t, "other-secret", userID.String()))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResolveTenant_UnknownUser(t *testing.T) {
	e := newProtectedServer(t, &stubUserRepo{}, func(c echo.Context) error {
		t.Fatal("handler must not run for an unknown subject")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signToken(t, testSecret, uuid.New().String()))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResolveTenant_NonUUIDSubject(t *testing.T) {
	e := newProtectedServer(t, &stubUserRepo{}, func(c echo.Context) error {
		t.Fatal("handler must not run with a malformed subject")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signToken(t, testSecret, "not-a-uuid"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

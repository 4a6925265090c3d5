package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eventhub/internal/auth"
	"eventhub/internal/errors"
	"eventhub/internal/handler"
	"eventhub/internal/model"
)

type fakeTokenStore struct {
	blacklisted map[string]bool
}

func (s *fakeTokenStore) StoreRefreshToken(context.Context, string, string, time.Duration) error {
	return nil
}
func (s *fakeTokenStore) GetRefreshToken(context.Context, string) (string, error) { return "", nil }
func (s *fakeTokenStore) DeleteRefreshToken(context.Context, string) error        { return nil }
func (s *fakeTokenStore) BlacklistAccessToken(_ context.Context, id string, _ time.Duration) error {
	s.blacklisted[id] = true
	return nil
}
func (s *fakeTokenStore) IsAccessTokenBlacklisted(_ context.Context, id string) (bool, error) {
	return s.blacklisted[id], nil
}

func whoAmI(c echo.Context) error {
	actor, ok := c.Get(handler.ContextActorKey).(model.Actor)
	if !ok {
		return c.String(http.StatusOK, "anonymous")
	}
	return c.String(http.StatusOK, actor.Name)
}

func newTestServer(jwtService *auth.JWTService, store auth.TokenStoreInterface) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
	e.GET("/required", whoAmI, echojwt.WithConfig(jwtConfig(jwtService, false)), loadActor(store, true))
	e.GET("/optional", whoAmI, echojwt.WithConfig(jwtConfig(jwtService, true)), loadActor(store, false))
	e.GET("/admin", whoAmI, echojwt.WithConfig(jwtConfig(jwtService, false)), loadActor(store, true), RequireRole(model.RoleAdmin))
	return e
}

func doRequest(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errors.ErrorResponse {
	t.Helper()
	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret")
	store := &fakeTokenStore{blacklisted: map[string]bool{}}
	e := newTestServer(jwtService, store)

	attendee := &model.User{ID: uuid.New(), Name: "Ann", Role: model.RoleAttendee}
	token, err := jwtService.GenerateAccessToken(attendee)
	require.NoError(t, err)

	t.Run("missing token is rejected", func(t *testing.T) {
		rec := doRequest(e, "/required", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeError(t, rec)
		assert.False(t, body.Success)
		assert.Equal(t, "UNAUTHORIZED", body.Code)
	})

	t.Run("valid token yields actor", func(t *testing.T) {
		rec := doRequest(e, "/required", token)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Ann", rec.Body.String())
	})

	t.Run("optional route without token is anonymous", func(t *testing.T) {
		rec := doRequest(e, "/optional", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("optional route with garbage token is anonymous", func(t *testing.T) {
		rec := doRequest(e, "/optional", "garbage")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("role check", func(t *testing.T) {
		rec := doRequest(e, "/admin", token)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "ROLE_REQUIRED", decodeError(t, rec).Code)
	})

	t.Run("blacklisted token is rejected", func(t *testing.T) {
		claims, err := jwtService.ValidateToken(token)
		require.NoError(t, err)
		store.blacklisted[claims.ID] = true

		rec := doRequest(e, "/required", token)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("optional route with blacklisted token is anonymous", func(t *testing.T) {
		revoked, err := jwtService.GenerateAccessToken(attendee)
		require.NoError(t, err)
		claims, err := jwtService.ValidateToken(revoked)
		require.NoError(t, err)
		store.blacklisted[claims.ID] = true

		rec := doRequest(e, "/optional", revoked)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
	e.GET("/boom", func(c echo.Context) error {
		return assert.AnError
	})
	e.GET("/sold-out", func(c echo.Context) error {
		return errors.ErrSoldOut
	})

	rec := doRequest(e, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "internal server error", body.Message)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())

	rec = doRequest(e, "/sold-out", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SOLD_OUT", decodeError(t, rec).Code)

	rec = doRequest(e, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

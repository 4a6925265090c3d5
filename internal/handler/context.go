package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"eventhub/internal/auth"
	"eventhub/internal/errors"
	"eventhub/internal/model"
)

// Context keys populated by the router's auth middleware.
const (
	ContextActorKey  = "actor"
	ContextClaimsKey = "claims"
)

// ListResponse is the envelope for paginated collections.
type ListResponse struct {
	Success     bool        `json:"success"`
	Count       int         `json:"count"`
	Total       int64       `json:"total,omitempty"`
	TotalPages  int         `json:"totalPages,omitempty"`
	CurrentPage int         `json:"currentPage,omitempty"`
	Data        interface{} `json:"data"`
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, errors.Response{Success: true, Data: data})
}

func respondMessage(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, errors.Response{Success: true, Message: message, Data: data})
}

// fail converts a service error into an echo error carrying the envelope.
func fail(err error) *echo.HTTPError {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func badRequest(message string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Message: message,
		Code:    "VALIDATION_ERROR",
	})
}

// bindAndValidate binds the request body into req and runs struct validation.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return badRequest(err.Error())
	}
	return nil
}

// actorFrom returns the authenticated caller or a 401.
func actorFrom(c echo.Context) (model.Actor, error) {
	actor, ok := c.Get(ContextActorKey).(model.Actor)
	if !ok {
		return model.Actor{}, fail(errors.ErrUnauthorized)
	}
	return actor, nil
}

// optionalActor returns the caller when the request carried a valid token.
func optionalActor(c echo.Context) *model.Actor {
	if actor, ok := c.Get(ContextActorKey).(model.Actor); ok {
		return &actor
	}
	return nil
}

func claimsFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(ContextClaimsKey).(*auth.Claims)
	return claims
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, badRequest("invalid " + name)
	}
	return id, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate accepts RFC 3339 timestamps and plain calendar dates.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.NewValidationError(field, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}

package router

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"eventhub/internal/auth"
	"eventhub/internal/errors"
	"eventhub/internal/handler"
	"eventhub/internal/model"
)

// jwtContextKey is where echo-jwt stores the parsed token.
const jwtContextKey = "user"

// loadActor turns a verified token into the caller identity. Blacklisted
// (logged out) access tokens are rejected. When required is false a request
// whose token is missing, unusable or revoked passes through anonymously.
func loadActor(tokens auth.TokenStoreInterface, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			anonymous := func() error {
				if required {
					return errors.ErrUnauthorized
				}
				return next(c)
			}

			token, ok := c.Get(jwtContextKey).(*jwt.Token)
			if !ok {
				return anonymous()
			}

			claims, ok := token.Claims.(*auth.Claims)
			if !ok {
				return anonymous()
			}
			if claims.ID != "" {
				if revoked, _ := tokens.IsAccessTokenBlacklisted(c.Request().Context(), claims.ID); revoked {
					return anonymous()
				}
			}

			actor, err := claims.Actor()
			if err != nil {
				return anonymous()
			}
			c.Set(handler.ContextActorKey, actor)
			c.Set(handler.ContextClaimsKey, claims)
			return next(c)
		}
	}
}

// RequireRole rejects callers whose role is not in roles.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := c.Get(handler.ContextActorKey).(model.Actor)
			if !ok {
				return errors.ErrUnauthorized
			}
			for _, role := range roles {
				if actor.Role == role {
					return next(c)
				}
			}
			return errors.ErrRoleRequired
		}
	}
}

// RequestLogger logs request details at a level chosen by status class.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				// let the error handler write the response so the status is final
				c.Error(err)
			}

			res := c.Response()
			fields := []zap.Field{
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				zap.Int("status", res.Status),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("query", req.URL.RawQuery),
				zap.String("ip", c.RealIP()),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("body_size", res.Size),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			switch status := res.Status; {
			case status >= 500:
				log.Error("Server error", fields...)
			case status >= 400:
				log.Warn("Client error", fields...)
			default:
				log.Info("Request completed", fields...)
			}
			return nil
		}
	}
}

// ErrorHandler renders every error in the response envelope. Raw store
// errors never reach the client.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := http.StatusInternalServerError, errors.ErrorResponse{}
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			switch msg := he.Message.(type) {
			case errors.ErrorResponse:
				body = msg
			case string:
				body = errors.ErrorResponse{Message: msg, Code: codeForStatus(status)}
			default:
				body = errors.ErrorResponse{Message: http.StatusText(status), Code: codeForStatus(status)}
			}
			if status >= 500 && he.Internal != nil {
				log.Error("request failed", zap.Error(he.Internal))
			}
		} else {
			mapped := errors.MapErrorToHTTP(err)
			status, body = mapped.StatusCode, mapped.ToErrorResponse()
			if status >= 500 {
				log.Error("request failed", zap.Error(err))
			}
		}
		body.Success = false

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		if status >= 500 {
			return "INTERNAL_ERROR"
		}
		return "ERROR"
	}
}

package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"eventhub/internal/auth"
	"eventhub/internal/errors"
	"eventhub/internal/handler"
	"eventhub/internal/model"
	"eventhub/internal/telemetry"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Events *handler.EventHandler
	Auth   *handler.AuthHandler
	Users  *handler.UserHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	log *zap.Logger,
	jwtService *auth.JWTService,
	tokens auth.TokenStoreInterface,
	h Handlers,
) {
	e.HTTPErrorHandler = ErrorHandler(log)
	e.Use(middleware.RequestID())
	e.Use(telemetry.Middleware())
	e.Use(RequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit("1M"))

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	authRequired := []echo.MiddlewareFunc{
		echojwt.WithConfig(jwtConfig(jwtService, false)),
		loadActor(tokens, true),
	}
	authOptional := []echo.MiddlewareFunc{
		echojwt.WithConfig(jwtConfig(jwtService, true)),
		loadActor(tokens, false),
	}
	adminOnly := append(authRequired[:len(authRequired):len(authRequired)], RequireRole(model.RoleAdmin))
	organizerOnly := append(authRequired[:len(authRequired):len(authRequired)], RequireRole(model.RoleOrganizer, model.RoleAdmin))

	api := e.Group("/api")

	// Auth routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.POST("/auth/logout", h.Auth.Logout, authOptional...)
	api.GET("/auth/me", h.Auth.Me, authRequired...)
	api.PUT("/auth/me", h.Auth.UpdateProfile, authRequired...)
	api.PUT("/auth/changepassword", h.Auth.ChangePassword, authRequired...)

	// Event routes
	api.GET("/events", h.Events.ListEvents, authOptional...)
	api.GET("/events/user/me", h.Events.UserEvents, authRequired...)
	api.GET("/events/:id", h.Events.GetEvent, authOptional...)
	api.POST("/events", h.Events.CreateEvent, organizerOnly...)
	api.PUT("/events/:id", h.Events.UpdateEvent, authRequired...)
	api.PATCH("/events/:id/status", h.Events.SetStatus, authRequired...)
	api.DELETE("/events/:id", h.Events.DeleteEvent, authRequired...)
	api.POST("/events/:id/register", h.Events.Register, authRequired...)
	api.DELETE("/events/:id/register", h.Events.Unregister, authRequired...)

	// User administration routes
	api.GET("/users", h.Users.ListUsers, adminOnly...)
	api.GET("/users/stats/overview", h.Users.Stats, adminOnly...)
	api.GET("/users/:id", h.Users.GetUser, authRequired...)
	api.PUT("/users/:id", h.Users.UpdateUser, adminOnly...)
	api.DELETE("/users/:id", h.Users.DeleteUser, adminOnly...)
}

// jwtConfig parses bearer tokens into auth.Claims. With optional set, a
// missing or invalid token lets the request continue anonymously.
func jwtConfig(jwtService *auth.JWTService, optional bool) echojwt.Config {
	return echojwt.Config{
		SigningKey:    jwtService.Secret(),
		ContextKey:    jwtContextKey,
		TokenLookup:   "header:" + echo.HeaderAuthorization + ":Bearer ",
		NewClaimsFunc: func(c echo.Context) jwt.Claims { return new(auth.Claims) },
		ErrorHandler: func(c echo.Context, err error) error {
			if optional {
				return nil
			}
			return errors.ErrUnauthorized
		},
		ContinueOnIgnoredError: optional,
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

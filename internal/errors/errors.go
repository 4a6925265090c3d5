package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrEventNotFound is returned when an event does not exist.
	ErrEventNotFound = errors.New("event not found")
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrForbidden is returned when the actor may not mutate the resource.
	ErrForbidden = errors.New("not authorized to modify this event")
	// ErrRoleRequired is returned when the actor lacks the role for an operation.
	ErrRoleRequired = errors.New("insufficient role for this operation")

	// ErrEventNotActive is returned when registering for a non-active event.
	ErrEventNotActive = errors.New("event is not available for registration")
	// ErrSoldOut is returned when no tickets remain.
	ErrSoldOut = errors.New("event is sold out")
	// ErrAlreadyRegistered is returned on duplicate registration.
	ErrAlreadyRegistered = errors.New("you are already registered for this event")
	// ErrNotRegistered is returned when unregistering a user who is not an attendee.
	ErrNotRegistered = errors.New("you are not registered for this event")
	// ErrDeadlinePassed is returned once the registration deadline is over.
	ErrDeadlinePassed = errors.New("registration deadline has passed")
	// ErrOrganizerCannotRegister is returned when the organizer registers for their own event.
	ErrOrganizerCannotRegister = errors.New("organizers cannot register for their own event")

	// ErrInvalidTicketLimit is returned when the ticket limit is below 1 or below tickets sold.
	ErrInvalidTicketLimit = errors.New("invalid ticket limit")
	// ErrInvalidPrice is returned when the price is negative.
	ErrInvalidPrice = errors.New("price cannot be negative")
	// ErrInvalidCategory is returned for an unknown category.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidStatus is returned for an unknown or disallowed status.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvariantViolated is returned when the capacity invariant does not hold.
	ErrInvariantViolated = errors.New("capacity invariant violated")

	// ErrUnauthorized is returned when a request carries no usable session.
	ErrUnauthorized = errors.New("not authorized to access this route")
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserAlreadyExists is returned when trying to register an existing user.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrWrongPassword is returned when the current password does not match.
	ErrWrongPassword = errors.New("current password is incorrect")
)

// ValidationError describes a missing or out-of-range field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewValidationError creates a new validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Success: false,
		Message: e.Message,
		Code:    e.Code,
	}
}

var badRequestCodes = []struct {
	err  error
	code string
}{
	{ErrEventNotActive, "EVENT_NOT_ACTIVE"},
	{ErrSoldOut, "SOLD_OUT"},
	{ErrAlreadyRegistered, "ALREADY_REGISTERED"},
	{ErrNotRegistered, "NOT_REGISTERED"},
	{ErrDeadlinePassed, "DEADLINE_PASSED"},
	{ErrOrganizerCannotRegister, "ORGANIZER_CANNOT_REGISTER"},
	{ErrInvalidTicketLimit, "INVALID_TICKET_LIMIT"},
	{ErrInvalidPrice, "INVALID_PRICE"},
	{ErrInvalidCategory, "INVALID_CATEGORY"},
	{ErrInvalidStatus, "INVALID_STATUS"},
	{ErrWrongPassword, "WRONG_PASSWORD"},
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return NewHTTPError(http.StatusBadRequest, validationErr.Error(), "VALIDATION_ERROR")
	}

	switch {
	case errors.Is(err, ErrEventNotFound):
		return NewHTTPError(http.StatusNotFound, ErrEventNotFound.Error(), "EVENT_NOT_FOUND")
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, ErrUserNotFound.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrForbidden):
		// Ownership failures answer 401.
		return NewHTTPError(http.StatusUnauthorized, ErrForbidden.Error(), "FORBIDDEN")
	case errors.Is(err, ErrRoleRequired):
		return NewHTTPError(http.StatusForbidden, ErrRoleRequired.Error(), "ROLE_REQUIRED")
	case errors.Is(err, ErrUnauthorized):
		return NewHTTPError(http.StatusUnauthorized, ErrUnauthorized.Error(), "UNAUTHORIZED")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrInvalidRefreshToken):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidRefreshToken.Error(), "INVALID_REFRESH_TOKEN")
	case errors.Is(err, ErrUserAlreadyExists):
		return NewHTTPError(http.StatusConflict, ErrUserAlreadyExists.Error(), "USER_ALREADY_EXISTS")
	}

	for _, m := range badRequestCodes {
		if errors.Is(err, m.err) {
			return NewHTTPError(http.StatusBadRequest, m.err.Error(), m.code)
		}
	}

	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

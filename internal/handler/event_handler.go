package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"eventhub/internal/model"
	"eventhub/internal/repository"
	"eventhub/internal/rules"
	"eventhub/internal/service"
)

// EventHandler handles event endpoints.
type EventHandler struct {
	events service.EventService
}

// NewEventHandler creates a new event handler.
func NewEventHandler(events service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// CreateEventRequest represents an event creation request.
type CreateEventRequest struct {
	Title                string          `json:"title" validate:"required,max=100"`
	Description          string          `json:"description" validate:"required,max=2000"`
	Category             string          `json:"category" validate:"required"`
	Date                 string          `json:"date" validate:"required"`
	Time                 string          `json:"time" validate:"required"`
	Location             string          `json:"location" validate:"required,max=200"`
	Image                string          `json:"image,omitempty"`
	TicketLimit          int             `json:"ticketLimit" validate:"required"`
	Price                decimal.Decimal `json:"price"`
	Status               string          `json:"status,omitempty" validate:"omitempty,oneof=active draft"`
	Tags                 []string        `json:"tags,omitempty"`
	Featured             bool            `json:"featured,omitempty"`
	RegistrationDeadline string          `json:"registrationDeadline,omitempty"`
	RefundPolicy         string          `json:"refundPolicy,omitempty" validate:"max=500"`
	ContactEmail         string          `json:"contactEmail,omitempty" validate:"omitempty,email"`
	ContactPhone         string          `json:"contactPhone,omitempty"`
	VenueDetails         string          `json:"venueDetails,omitempty" validate:"max=1000"`
	Requirements         string          `json:"requirements,omitempty" validate:"max=1000"`
}

// UpdateEventRequest represents a partial event update. An empty
// registrationDeadline clears the deadline.
type UpdateEventRequest struct {
	Title                *string          `json:"title,omitempty"`
	Description          *string          `json:"description,omitempty"`
	Category             *string          `json:"category,omitempty"`
	Date                 *string          `json:"date,omitempty"`
	Time                 *string          `json:"time,omitempty"`
	Location             *string          `json:"location,omitempty"`
	Image                *string          `json:"image,omitempty"`
	TicketLimit          *int             `json:"ticketLimit,omitempty"`
	Price                *decimal.Decimal `json:"price,omitempty"`
	Status               *string          `json:"status,omitempty" validate:"omitempty,oneof=active cancelled completed draft"`
	Tags                 []string         `json:"tags,omitempty"`
	Featured             *bool            `json:"featured,omitempty"`
	RegistrationDeadline *string          `json:"registrationDeadline,omitempty"`
	RefundPolicy         *string          `json:"refundPolicy,omitempty"`
	ContactEmail         *string          `json:"contactEmail,omitempty" validate:"omitempty,email"`
	ContactPhone         *string          `json:"contactPhone,omitempty"`
	VenueDetails         *string          `json:"venueDetails,omitempty"`
	Requirements         *string          `json:"requirements,omitempty"`
}

// StatusRequest represents an event status change.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active cancelled completed draft"`
}

// ListEvents godoc
// @Summary List events
// @Tags events
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(10)
// @Param category query string false "Category, or all"
// @Param location query string false "Location substring"
// @Param search query string false "Search in title, description and location"
// @Param date query string false "Calendar day (YYYY-MM-DD)"
// @Param featured query bool false "Only featured events"
// @Param status query string false "Status" default(active)
// @Param sort query string false "date, date-desc, price, price-desc or created"
// @Success 200 {object} ListResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /events [get]
func (h *EventHandler) ListEvents(c echo.Context) error {
	var q service.ListQuery
	err := echo.QueryParamsBinder(c).
		Int("page", &q.Page).
		Int("limit", &q.Limit).
		String("category", &q.Category).
		String("location", &q.Location).
		String("search", &q.Search).
		String("status", &q.Status).
		String("sort", &q.Sort).
		BindError()
	if err != nil {
		return badRequest("invalid query parameters")
	}

	if raw := c.QueryParam("date"); raw != "" {
		date, err := parseDate("date", raw)
		if err != nil {
			return fail(err)
		}
		q.Date = &date
	}
	if raw := c.QueryParam("featured"); raw != "" {
		featured := raw == "true" || raw == "1"
		q.Featured = &featured
	}

	page, err := h.events.ListEvents(c.Request().Context(), q)
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusOK, ListResponse{
		Success:     true,
		Count:       page.Count,
		Total:       page.Total,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		Data:        page.Events,
	})
}

// GetEvent godoc
// @Summary Get event by id
// @Tags events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} errors.Response
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetEvent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	view, err := h.events.GetEvent(c.Request().Context(), id, optionalActor(c))
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, view)
}

// CreateEvent godoc
// @Summary Create event
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateEventRequest true "Event data"
// @Success 201 {object} errors.Response
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /events [post]
func (h *EventHandler) CreateEvent(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req CreateEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	in, err := req.toInput()
	if err != nil {
		return fail(err)
	}

	event, err := h.events.CreateEvent(c.Request().Context(), actor, in)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusCreated, event)
}

func (r CreateEventRequest) toInput() (rules.CreateInput, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return rules.CreateInput{}, err
	}

	in := rules.CreateInput{
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		Date:         date,
		Time:         r.Time,
		Location:     r.Location,
		Image:        r.Image,
		TicketLimit:  r.TicketLimit,
		Price:        r.Price,
		Status:       model.EventStatus(r.Status),
		Tags:         r.Tags,
		Featured:     r.Featured,
		RefundPolicy: r.RefundPolicy,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
		VenueDetails: r.VenueDetails,
		Requirements: r.Requirements,
	}
	if strings.TrimSpace(r.RegistrationDeadline) != "" {
		deadline, err := parseDate("registrationDeadline", r.RegistrationDeadline)
		if err != nil {
			return rules.CreateInput{}, err
		}
		in.RegistrationDeadline = &deadline
	}
	return in, nil
}

// UpdateEvent godoc
// @Summary Update event
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Param request body UpdateEventRequest true "Fields to change"
// @Success 200 {object} errors.Response
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /events/{id} [put]
func (h *EventHandler) UpdateEvent(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	in, err := req.toInput()
	if err != nil {
		return fail(err)
	}

	event, err := h.events.UpdateEvent(c.Request().Context(), actor, id, in)
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, event)
}

func (r UpdateEventRequest) toInput() (rules.UpdateInput, error) {
	in := rules.UpdateInput{
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		Time:         r.Time,
		Location:     r.Location,
		Image:        r.Image,
		TicketLimit:  r.TicketLimit,
		Price:        r.Price,
		Tags:         r.Tags,
		Featured:     r.Featured,
		RefundPolicy: r.RefundPolicy,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
		VenueDetails: r.VenueDetails,
		Requirements: r.Requirements,
	}
	if r.Date != nil {
		date, err := parseDate("date", *r.Date)
		if err != nil {
			return rules.UpdateInput{}, err
		}
		in.Date = &date
	}
	if r.Status != nil {
		status := model.EventStatus(*r.Status)
		in.Status = &status
	}
	if r.RegistrationDeadline != nil {
		if strings.TrimSpace(*r.RegistrationDeadline) == "" {
			in.ClearDeadline = true
		} else {
			deadline, err := parseDate("registrationDeadline", *r.RegistrationDeadline)
			if err != nil {
				return rules.UpdateInput{}, err
			}
			in.RegistrationDeadline = &deadline
		}
	}
	return in, nil
}

// SetStatus godoc
// @Summary Change event status
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Param request body StatusRequest true "New status"
// @Success 200 {object} errors.Response
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /events/{id}/status [patch]
func (h *EventHandler) SetStatus(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req StatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	event, err := h.events.SetStatus(c.Request().Context(), actor, id, model.EventStatus(req.Status))
	if err != nil {
		return fail(err)
	}
	return respond(c, http.StatusOK, event)
}

// DeleteEvent godoc
// @Summary Delete event
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} errors.Response
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /events/{id} [delete]
func (h *EventHandler) DeleteEvent(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.events.DeleteEvent(c.Request().Context(), actor, id); err != nil {
		return fail(err)
	}
	return respondMessage(c, http.StatusOK, "Event deleted successfully", nil)
}

// Register godoc
// @Summary Register for event
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} errors.Response
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /events/{id}/register [post]
func (h *EventHandler) Register(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	event, err := h.events.Register(c.Request().Context(), actor, id)
	if err != nil {
		return fail(err)
	}
	return respondMessage(c, http.StatusOK, "Successfully registered for event", event)
}

// Unregister godoc
// @Summary Cancel event registration
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} errors.Response
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /events/{id}/register [delete]
func (h *EventHandler) Unregister(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	event, err := h.events.Unregister(c.Request().Context(), actor, id)
	if err != nil {
		return fail(err)
	}
	return respondMessage(c, http.StatusOK, "Successfully unregistered from event", event)
}

// UserEvents godoc
// @Summary List the caller's events
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param type query string false "all, created or registered" default(all)
// @Success 200 {object} ListResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /events/user/me [get]
func (h *EventHandler) UserEvents(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	kind := repository.UserEventsType(c.QueryParam("type"))
	events, err := h.events.UserEvents(c.Request().Context(), actor, kind)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, ListResponse{Success: true, Count: len(events), Data: events})
}

// Package rules holds the capacity and registration rules applied whenever an
// event is created, edited, registered for or unregistered from.
//
// Every function here is pure: callers load the event, run the rule and persist
// the result inside their own per-event critical section.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"eventhub/internal/errors"
	"eventhub/internal/model"
)

const (
	maxTitleLen        = 100
	maxDescriptionLen  = 2000
	maxLocationLen     = 200
	maxRefundPolicyLen = 500
	maxDetailsLen      = 1000
)

// CreateInput carries the fields accepted when creating an event.
type CreateInput struct {
	Title                string
	Description          string
	Category             string
	Date                 time.Time
	Time                 string
	Location             string
	Image                string
	TicketLimit          int
	Price                decimal.Decimal
	Status               model.EventStatus
	Tags                 []string
	Featured             bool
	RegistrationDeadline *time.Time
	RefundPolicy         string
	ContactEmail         string
	ContactPhone         string
	VenueDetails         string
	Requirements         string
}

// UpdateInput is a partial replacement; nil fields are left untouched.
type UpdateInput struct {
	Title                *string
	Description          *string
	Category             *string
	Date                 *time.Time
	Time                 *string
	Location             *string
	Image                *string
	TicketLimit          *int
	Price                *decimal.Decimal
	Status               *model.EventStatus
	Tags                 []string
	Featured             *bool
	RegistrationDeadline *time.Time
	ClearDeadline        bool
	RefundPolicy         *string
	ContactEmail         *string
	ContactPhone         *string
	VenueDetails         *string
	Requirements         *string
}

// TryRegister adds userID to the event's attendees and sells one ticket.
// The first failing precondition decides the error; on failure the event is
// left untouched.
func TryRegister(event *model.Event, userID uuid.UUID, now time.Time) error {
	if userID == event.OrganizerID {
		return errors.ErrOrganizerCannotRegister
	}
	if event.Status != model.EventStatusActive {
		return errors.ErrEventNotActive
	}
	if event.TicketsSold >= event.TicketLimit {
		return errors.ErrSoldOut
	}
	if event.HasAttendee(userID) {
		return errors.ErrAlreadyRegistered
	}
	if event.RegistrationDeadline != nil && now.After(*event.RegistrationDeadline) {
		return errors.ErrDeadlinePassed
	}

	event.Attendees = append(event.Attendees, model.EventAttendee{
		EventID:   event.ID,
		UserID:    userID,
		CreatedAt: now,
	})
	event.TicketsSold++
	return nil
}

// TryUnregister removes userID from the event's attendees and releases one
// ticket. Cancellation is allowed regardless of status or deadline.
func TryUnregister(event *model.Event, userID uuid.UUID) error {
	idx := -1
	for i, a := range event.Attendees {
		if a.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.ErrNotRegistered
	}

	event.Attendees = append(event.Attendees[:idx:idx], event.Attendees[idx+1:]...)
	if event.TicketsSold > 0 {
		event.TicketsSold--
	}
	return nil
}

// ValidateCreation checks a creation request and returns the initialized event.
// The date may lie in the past.
func ValidateCreation(in CreateInput, organizer model.Actor) (*model.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Time = strings.TrimSpace(in.Time)

	if err := requireText("title", in.Title, maxTitleLen); err != nil {
		return nil, err
	}
	if err := requireText("description", in.Description, maxDescriptionLen); err != nil {
		return nil, err
	}
	if err := requireText("location", in.Location, maxLocationLen); err != nil {
		return nil, err
	}
	if err := requireText("time", in.Time, 20); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, errors.NewValidationError("date", "is required")
	}
	if !model.IsKnownCategory(in.Category) {
		return nil, errors.ErrInvalidCategory
	}
	if in.TicketLimit < 1 {
		return nil, errors.ErrInvalidTicketLimit
	}
	if in.Price.IsNegative() {
		return nil, errors.ErrInvalidPrice
	}

	status := in.Status
	if status == "" {
		status = model.EventStatusActive
	}
	if status != model.EventStatusActive && status != model.EventStatusDraft {
		return nil, errors.ErrInvalidStatus
	}
	if err := checkOptional(in.RefundPolicy, in.VenueDetails, in.Requirements); err != nil {
		return nil, err
	}

	event := &model.Event{
		Title:                in.Title,
		Description:          in.Description,
		Category:             in.Category,
		Date:                 in.Date,
		Time:                 in.Time,
		Location:             in.Location,
		Image:                in.Image,
		TicketLimit:          in.TicketLimit,
		TicketsSold:          0,
		Price:                in.Price,
		OrganizerID:          organizer.ID,
		OrganizerName:        organizer.Name,
		Status:               status,
		Tags:                 in.Tags,
		Featured:             in.Featured,
		RegistrationDeadline: in.RegistrationDeadline,
		MaxAttendeesPerUser:  1,
		RefundPolicy:         in.RefundPolicy,
		ContactEmail:         in.ContactEmail,
		ContactPhone:         in.ContactPhone,
		VenueDetails:         in.VenueDetails,
		Requirements:         in.Requirements,
		Attendees:            []model.EventAttendee{},
	}
	return event, nil
}

// ApplyUpdate validates a partial update and applies it to a copy of event.
// Ownership, ticketsSold and the attendee set are never touched by an update.
func ApplyUpdate(event *model.Event, in UpdateInput) (*model.Event, error) {
	next := event.Clone()

	if in.Title != nil {
		v := strings.TrimSpace(*in.Title)
		if err := requireText("title", v, maxTitleLen); err != nil {
			return nil, err
		}
		next.Title = v
	}
	if in.Description != nil {
		v := strings.TrimSpace(*in.Description)
		if err := requireText("description", v, maxDescriptionLen); err != nil {
			return nil, err
		}
		next.Description = v
	}
	if in.Location != nil {
		v := strings.TrimSpace(*in.Location)
		if err := requireText("location", v, maxLocationLen); err != nil {
			return nil, err
		}
		next.Location = v
	}
	if in.Time != nil {
		v := strings.TrimSpace(*in.Time)
		if err := requireText("time", v, 20); err != nil {
			return nil, err
		}
		next.Time = v
	}
	if in.Category != nil {
		if !model.IsKnownCategory(*in.Category) {
			return nil, errors.ErrInvalidCategory
		}
		next.Category = *in.Category
	}
	if in.Date != nil {
		if in.Date.IsZero() {
			return nil, errors.NewValidationError("date", "is required")
		}
		next.Date = *in.Date
	}
	if in.TicketLimit != nil {
		if *in.TicketLimit < 1 || *in.TicketLimit < next.TicketsSold {
			return nil, errors.ErrInvalidTicketLimit
		}
		next.TicketLimit = *in.TicketLimit
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return nil, errors.ErrInvalidPrice
		}
		next.Price = *in.Price
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, errors.ErrInvalidStatus
		}
		next.Status = *in.Status
	}
	if in.Image != nil {
		next.Image = *in.Image
	}
	if in.Tags != nil {
		next.Tags = append([]string(nil), in.Tags...)
	}
	if in.Featured != nil {
		next.Featured = *in.Featured
	}
	if in.ClearDeadline {
		next.RegistrationDeadline = nil
	} else if in.RegistrationDeadline != nil {
		d := *in.RegistrationDeadline
		next.RegistrationDeadline = &d
	}
	if in.RefundPolicy != nil {
		next.RefundPolicy = *in.RefundPolicy
	}
	if in.ContactEmail != nil {
		next.ContactEmail = *in.ContactEmail
	}
	if in.ContactPhone != nil {
		next.ContactPhone = *in.ContactPhone
	}
	if in.VenueDetails != nil {
		next.VenueDetails = *in.VenueDetails
	}
	if in.Requirements != nil {
		next.Requirements = *in.Requirements
	}
	if err := checkOptional(next.RefundPolicy, next.VenueDetails, next.Requirements); err != nil {
		return nil, err
	}
	if err := next.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvariantViolated, err)
	}
	return next, nil
}

// AuthorizeMutation permits the organizer of the event or an admin.
func AuthorizeMutation(event *model.Event, actor model.Actor) error {
	if actor.ID == event.OrganizerID || actor.IsAdmin() {
		return nil
	}
	return errors.ErrForbidden
}

func requireText(field, value string, max int) error {
	if value == "" {
		return errors.NewValidationError(field, "is required")
	}
	if len(value) > max {
		return errors.NewValidationError(field, fmt.Sprintf("cannot be more than %d characters", max))
	}
	return nil
}

func checkOptional(refundPolicy, venueDetails, requirements string) error {
	if len(refundPolicy) > maxRefundPolicyLen {
		return errors.NewValidationError("refundPolicy", fmt.Sprintf("cannot be more than %d characters", maxRefundPolicyLen))
	}
	if len(venueDetails) > maxDetailsLen {
		return errors.NewValidationError("venueDetails", fmt.Sprintf("cannot be more than %d characters", maxDetailsLen))
	}
	if len(requirements) > maxDetailsLen {
		return errors.NewValidationError("requirements", fmt.Sprintf("cannot be more than %d characters", maxDetailsLen))
	}
	return nil
}

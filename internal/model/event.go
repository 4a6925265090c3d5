package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EventStatus represents the lifecycle status of an event.
type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
	EventStatusDraft     EventStatus = "draft"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusActive, EventStatusCancelled, EventStatusCompleted, EventStatusDraft:
		return true
	}
	return false
}

// Categories lists the accepted event categories.
var Categories = []string{
	"Technology",
	"Music",
	"Food",
	"Sports",
	"Business",
	"Education",
	"Health & Wellness",
	"Arts & Culture",
	"Networking",
	"Other",
}

// IsKnownCategory reports whether c is one of Categories.
func IsKnownCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Event represents a schedulable activity with finite ticket capacity.
type Event struct {
	ID                   uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	Title                string          `json:"title" gorm:"size:100;not null"`
	Description          string          `json:"description" gorm:"size:2000;not null"`
	Category             string          `json:"category" gorm:"size:50;not null;index"`
	Date                 time.Time       `json:"date" gorm:"not null;index:idx_events_date_status"`
	Time                 string          `json:"time" gorm:"size:20;not null"`
	Location             string          `json:"location" gorm:"size:200;not null"`
	Image                string          `json:"image" gorm:"size:500"`
	TicketLimit          int             `json:"ticketLimit" gorm:"not null"`
	TicketsSold          int             `json:"ticketsSold" gorm:"not null;default:0"`
	Price                decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null;default:0"`
	OrganizerID          uuid.UUID       `json:"organizerId" gorm:"type:char(36);not null;index"`
	OrganizerName        string          `json:"organizerName" gorm:"size:255;not null"`
	Status               EventStatus     `json:"status" gorm:"type:varchar(20);not null;default:'active';index:idx_events_date_status"`
	Tags                 []string        `json:"tags,omitempty" gorm:"serializer:json;type:text"`
	Featured             bool            `json:"featured" gorm:"default:false;index"`
	RegistrationDeadline *time.Time      `json:"registrationDeadline,omitempty"`
	MaxAttendeesPerUser  int             `json:"maxAttendeesPerUser" gorm:"not null;default:1"`
	RefundPolicy         string          `json:"refundPolicy,omitempty" gorm:"size:500"`
	ContactEmail         string          `json:"contactEmail,omitempty" gorm:"size:255"`
	ContactPhone         string          `json:"contactPhone,omitempty" gorm:"size:50"`
	VenueDetails         string          `json:"venueDetails,omitempty" gorm:"size:1000"`
	Requirements         string          `json:"requirements,omitempty" gorm:"size:1000"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`

	// Relations
	Attendees []EventAttendee `json:"attendees" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

// EventAttendee is a single membership of a user in an event's attendee set.
type EventAttendee struct {
	EventID   uuid.UUID `json:"-" gorm:"type:char(36);primaryKey"`
	UserID    uuid.UUID `json:"userId" gorm:"type:char(36);primaryKey;index"`
	CreatedAt time.Time `json:"registeredAt"`
}

// BeforeCreate sets UUID before creating the record.
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// AvailableTickets returns the number of tickets still on sale.
func (e *Event) AvailableTickets() int {
	return e.TicketLimit - e.TicketsSold
}

// IsSoldOut returns true when no tickets remain.
func (e *Event) IsSoldOut() bool {
	return e.TicketsSold >= e.TicketLimit
}

// IsUpcoming reports whether the event date is after now.
func (e *Event) IsUpcoming(now time.Time) bool {
	return e.Date.After(now)
}

// HasAttendee reports whether userID is in the attendee set.
func (e *Event) HasAttendee(userID uuid.UUID) bool {
	for _, a := range e.Attendees {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// CheckInvariants verifies 0 <= ticketsSold <= ticketLimit, ticketsSold == |attendees|
// and that no user appears twice in the attendee set.
func (e *Event) CheckInvariants() error {
	if e.TicketsSold < 0 || e.TicketsSold > e.TicketLimit {
		return fmt.Errorf("tickets sold %d outside [0, %d]", e.TicketsSold, e.TicketLimit)
	}
	if e.TicketsSold != len(e.Attendees) {
		return fmt.Errorf("tickets sold %d does not match %d attendees", e.TicketsSold, len(e.Attendees))
	}
	seen := make(map[uuid.UUID]struct{}, len(e.Attendees))
	for _, a := range e.Attendees {
		if _, dup := seen[a.UserID]; dup {
			return fmt.Errorf("user %s appears twice in attendees", a.UserID)
		}
		seen[a.UserID] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	c := *e
	if e.Attendees != nil {
		c.Attendees = append([]EventAttendee(nil), e.Attendees...)
	}
	if e.Tags != nil {
		c.Tags = append([]string(nil), e.Tags...)
	}
	if e.RegistrationDeadline != nil {
		d := *e.RegistrationDeadline
		c.RegistrationDeadline = &d
	}
	return &c
}

// MarshalJSON adds the derived capacity fields to the serialized event.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	attendees := e.Attendees
	if attendees == nil {
		attendees = []EventAttendee{}
	}
	return json.Marshal(struct {
		alias
		Attendees        []EventAttendee `json:"attendees"`
		AvailableTickets int             `json:"availableTickets"`
		IsSoldOut        bool            `json:"isSoldOut"`
		IsUpcoming       bool            `json:"isUpcoming"`
	}{
		alias:            alias(e),
		Attendees:        attendees,
		AvailableTickets: e.AvailableTickets(),
		IsSoldOut:        e.IsSoldOut(),
		IsUpcoming:       e.IsUpcoming(time.Now()),
	})
}

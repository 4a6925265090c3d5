package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role gates which operations a user may perform.
type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAttendee || r == RoleOrganizer || r == RoleAdmin
}

// User represents an authenticated user in the system.
type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Name         string     `json:"name" gorm:"size:255;not null;index"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string     `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Role         Role       `json:"role" gorm:"type:varchar(20);not null;default:'attendee';index"`
	Avatar       string     `json:"avatar,omitempty" gorm:"size:500"`
	Bio          string     `json:"bio,omitempty" gorm:"size:500"`
	Phone        string     `json:"phone,omitempty" gorm:"size:50"`
	IsVerified   bool       `json:"isVerified" gorm:"default:false;index"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Name string
	Role Role
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanOrganize reports whether the actor may create events.
func (a Actor) CanOrganize() bool {
	return a.Role == RoleOrganizer || a.Role == RoleAdmin
}

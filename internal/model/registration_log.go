package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegistrationAction is the kind of attendee-set change that was attempted.
type RegistrationAction string

const (
	RegistrationActionRegister   RegistrationAction = "register"
	RegistrationActionUnregister RegistrationAction = "unregister"
)

// RegistrationOutcome is the result of a registration attempt.
type RegistrationOutcome string

const (
	RegistrationOutcomeAccepted RegistrationOutcome = "accepted"
	RegistrationOutcomeRejected RegistrationOutcome = "rejected"
	RegistrationOutcomeFailed   RegistrationOutcome = "failed"
)

// RegistrationLog represents a log entry for a registration attempt.
// All attempts are logged regardless of outcome.
type RegistrationLog struct {
	ID        uuid.UUID           `json:"id" gorm:"type:char(36);primaryKey"`
	EventID   uuid.UUID           `json:"eventId" gorm:"type:char(36);not null;index"`
	UserID    uuid.UUID           `json:"userId" gorm:"type:char(36);not null;index"`
	Action    RegistrationAction  `json:"action" gorm:"type:varchar(20);not null"`
	Outcome   RegistrationOutcome `json:"outcome" gorm:"type:varchar(20);not null;index"`
	ErrorCode string              `json:"errorCode,omitempty" gorm:"size:50"`
	CreatedAt time.Time           `json:"createdAt"`
}

// BeforeCreate sets UUID before creating the record.
func (l *RegistrationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"eventhub/internal/model"
)

// newTestDB opens a private in-memory SQLite database with the schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Event{}, &model.EventAttendee{}))
	return db
}

var baseDate = time.Date(2030, time.May, 10, 9, 0, 0, 0, time.UTC)

func newEvent(organizer uuid.UUID, title string) *model.Event {
	return &model.Event{
		ID:            uuid.New(),
		Title:         title,
		Description:   "An event",
		Category:      "Technology",
		Date:          baseDate,
		Time:          "09:00",
		Location:      "Berlin",
		TicketLimit:   10,
		Price:         decimal.NewFromInt(10),
		OrganizerID:   organizer,
		OrganizerName: "Org",
		Status:        model.EventStatusActive,
	}
}

func withAttendees(e *model.Event, users ...uuid.UUID) *model.Event {
	for _, u := range users {
		e.Attendees = append(e.Attendees, model.EventAttendee{EventID: e.ID, UserID: u})
	}
	e.TicketsSold = len(e.Attendees)
	return e
}

func attendeeIDs(e *model.Event) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		ids = append(ids, a.UserID)
	}
	return ids
}

func titles(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Title)
	}
	return out
}

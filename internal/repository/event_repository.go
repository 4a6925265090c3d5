package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eventhub/internal/model"
)

// EventSort selects the ordering of event listings.
type EventSort string

const (
	SortDate      EventSort = "date"
	SortDateDesc  EventSort = "date-desc"
	SortPrice     EventSort = "price"
	SortPriceDesc EventSort = "price-desc"
	SortCreated   EventSort = "created"
)

func (s EventSort) orderClause() string {
	switch s {
	case SortDateDesc:
		return "date DESC"
	case SortPrice:
		return "price ASC"
	case SortPriceDesc:
		return "price DESC"
	case SortCreated:
		return "created_at DESC"
	default:
		return "date ASC"
	}
}

// UserEventsType selects which of a user's events are returned.
type UserEventsType string

const (
	UserEventsAll        UserEventsType = "all"
	UserEventsCreated    UserEventsType = "created"
	UserEventsRegistered UserEventsType = "registered"
)

// EventFilter narrows event listings. Zero values mean "no filter".
type EventFilter struct {
	Status   model.EventStatus
	Category string
	Location string
	Search   string
	Date     *time.Time
	Featured *bool
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// EventRepository defines event persistence operations.
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Event, error)
	Save(ctx context.Context, event *model.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindMany(ctx context.Context, filter EventFilter, sort EventSort, page Page) ([]model.Event, int64, error)
	FindForUser(ctx context.Context, userID uuid.UUID, kind UserEventsType) ([]model.Event, error)
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo EventRepository) error) error
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Create inserts a new event together with its (normally empty) attendee set.
func (r *eventRepository) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// FindByID finds an event by ID with its attendees.
func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	var event model.Event
	err := r.db.WithContext(ctx).
		Preload("Attendees", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// FindByIDForUpdate finds an event by ID with a row-level lock held until the
// surrounding transaction ends.
func (r *eventRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	var event model.Event
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("event_id = ?", id).
		Order("created_at ASC").Find(&event.Attendees).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// Save replaces the whole event document, attendee set included.
func (r *eventRepository) Save(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(event).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", event.ID).Delete(&model.EventAttendee{}).Error; err != nil {
			return err
		}
		if len(event.Attendees) == 0 {
			return nil
		}
		for i := range event.Attendees {
			event.Attendees[i].EventID = event.ID
		}
		return tx.Create(&event.Attendees).Error
	})
}

// Delete hard-deletes an event and its attendee set.
func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&model.EventAttendee{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Event{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// FindMany returns one page of events matching filter plus the total match count.
func (r *eventRepository) FindMany(ctx context.Context, filter EventFilter, sort EventSort, page Page) ([]model.Event, int64, error) {
	var total int64
	if err := applyEventFilter(r.db.WithContext(ctx).Model(&model.Event{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []model.Event
	err := applyEventFilter(r.db.WithContext(ctx).Model(&model.Event{}), filter).
		Preload("Attendees").
		Order(sort.orderClause()).
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func applyEventFilter(query *gorm.DB, filter EventFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Location != "" {
		query = query.Where("LOWER(location) LIKE ? ESCAPE '!'", likePattern(filter.Location))
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where("LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!' OR LOWER(location) LIKE ? ESCAPE '!'",
			pattern, pattern, pattern)
	}
	if filter.Date != nil {
		start := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, filter.Date.Location())
		query = query.Where("date >= ? AND date < ?", start, start.AddDate(0, 0, 1))
	}
	if filter.Featured != nil {
		query = query.Where("featured = ?", *filter.Featured)
	}
	return query
}

// likeEscaper escapes LIKE wildcards for use with ESCAPE '!', which MySQL,
// PostgreSQL and SQLite all read the same way.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

// FindForUser returns events the user organizes, attends, or both, ordered by date.
// Registered-only excludes events the user organizes.
func (r *eventRepository) FindForUser(ctx context.Context, userID uuid.UUID, kind UserEventsType) ([]model.Event, error) {
	attending := r.db.Model(&model.EventAttendee{}).Select("event_id").Where("user_id = ?", userID)

	query := r.db.WithContext(ctx).Model(&model.Event{})
	switch kind {
	case UserEventsCreated:
		query = query.Where("organizer_id = ?", userID)
	case UserEventsRegistered:
		query = query.Where("id IN (?)", attending).Where("organizer_id <> ?", userID)
	default:
		query = query.Where("organizer_id = ? OR id IN (?)", userID, attending)
	}

	var events []model.Event
	if err := query.Preload("Attendees").Order("date ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// WithTransaction executes a function within a database transaction.
func (r *eventRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo EventRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &eventRepository{db: tx}
		return fn(ctx, txRepo)
	})
}

package service

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"eventhub/internal/cache"
	"eventhub/internal/errors"
	"eventhub/internal/logger"
	"eventhub/internal/messaging"
	"eventhub/internal/model"
	"eventhub/internal/repository"
	"eventhub/internal/rules"
)

const (
	eventCacheTTL     = 5 * time.Minute
	eventListCacheTTL = 30 * time.Second
	listGenerationKey = "events:list:gen"

	defaultPageLimit = 10
	maxPageLimit     = 100

	eventLockStripes = 256
)

var tracer = otel.Tracer("eventhub/service")

// ListQuery holds the raw listing parameters accepted by ListEvents.
type ListQuery struct {
	Page     int
	Limit    int
	Status   string
	Category string
	Location string
	Search   string
	Date     *time.Time
	Featured *bool
	Sort     string
}

// EventPage is one page of a listing plus its pagination metadata.
type EventPage struct {
	Events      []model.Event `json:"data"`
	Count       int           `json:"count"`
	Total       int64         `json:"total"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
}

// EventView is an event as seen by a specific viewer.
type EventView struct {
	*model.Event
	IsRegistered bool
}

// MarshalJSON renders the event document with the viewer's isRegistered flag.
func (v EventView) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(v.Event)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["isRegistered"], _ = json.Marshal(v.IsRegistered)
	return json.Marshal(fields)
}

// EventService exposes event operations.
type EventService interface {
	ListEvents(ctx context.Context, q ListQuery) (*EventPage, error)
	GetEvent(ctx context.Context, id uuid.UUID, viewer *model.Actor) (*EventView, error)
	CreateEvent(ctx context.Context, actor model.Actor, in rules.CreateInput) (*model.Event, error)
	UpdateEvent(ctx context.Context, actor model.Actor, id uuid.UUID, in rules.UpdateInput) (*model.Event, error)
	SetStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status model.EventStatus) (*model.Event, error)
	DeleteEvent(ctx context.Context, actor model.Actor, id uuid.UUID) error
	Register(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Event, error)
	Unregister(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Event, error)
	UserEvents(ctx context.Context, actor model.Actor, kind repository.UserEventsType) ([]model.Event, error)
}

type eventService struct {
	events    repository.EventRepository
	recorder  *RegistrationRecorder
	publisher messaging.Publisher
	cache     *cache.Client
	log       *zap.Logger
	now       func() time.Time
	locks     [eventLockStripes]sync.Mutex
}

// NewEventService creates a new event service.
func NewEventService(
	events repository.EventRepository,
	recorder *RegistrationRecorder,
	publisher messaging.Publisher,
	cache *cache.Client,
	log *zap.Logger,
) EventService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &eventService{
		events:    events,
		recorder:  recorder,
		publisher: publisher,
		cache:     cache,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// getMutex returns the stripe guarding one event's read-check-write cycle.
// Events hashing to the same stripe serialize with each other.
func (s *eventService) getMutex(id uuid.UUID) *sync.Mutex {
	return &s.locks[binary.BigEndian.Uint32(id[12:])%eventLockStripes]
}

func eventGenerationKey(id uuid.UUID) string {
	return "event:" + id.String() + ":gen"
}

// eventCacheKey scopes the cached document by the event's generation. Read it
// before loading from the database: a load that overlaps a write then lands
// under a generation the write has already retired.
func eventCacheKey(ctx context.Context, c *cache.Client, id uuid.UUID) string {
	return fmt.Sprintf("event:%s:%d", id, c.Counter(ctx, eventGenerationKey(id)))
}

// invalidateEvent retires every cached copy of one event.
func invalidateEvent(ctx context.Context, c *cache.Client, id uuid.UUID) {
	c.Incr(ctx, eventGenerationKey(id))
}

func (s *eventService) ListEvents(ctx context.Context, q ListQuery) (*EventPage, error) {
	filter, sort, page, err := normalizeListQuery(q)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "event.list")
	defer span.End()
	span.SetAttributes(
		attribute.String("filter.status", string(filter.Status)),
		attribute.Int("page.number", page.Number),
		attribute.Int("page.limit", page.Limit),
	)

	key := s.listCacheKey(ctx, filter, sort, page)
	var cached EventPage
	if s.cache.GetJSON(ctx, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}

	events, total, err := s.events.FindMany(ctx, filter, sort, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list events")
		return nil, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []model.Event{}
	}

	result := &EventPage{
		Events:      events,
		Count:       len(events),
		Total:       total,
		TotalPages:  int((total + int64(page.Limit) - 1) / int64(page.Limit)),
		CurrentPage: page.Number,
	}
	s.cache.SetJSON(ctx, key, result, eventListCacheTTL)
	return result, nil
}

func normalizeListQuery(q ListQuery) (repository.EventFilter, repository.EventSort, repository.Page, error) {
	page := repository.Page{Number: q.Page, Limit: q.Limit}
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Limit < 1 {
		page.Limit = defaultPageLimit
	}
	if page.Limit > maxPageLimit {
		page.Limit = maxPageLimit
	}

	status := model.EventStatus(strings.TrimSpace(q.Status))
	if status == "" {
		status = model.EventStatusActive
	}
	if !status.Valid() {
		return repository.EventFilter{}, "", page, errors.ErrInvalidStatus
	}

	category := strings.TrimSpace(q.Category)
	if category == "all" {
		category = ""
	}

	sort := repository.EventSort(q.Sort)
	switch sort {
	case repository.SortDate, repository.SortDateDesc, repository.SortPrice,
		repository.SortPriceDesc, repository.SortCreated:
	default:
		sort = repository.SortDate
	}

	filter := repository.EventFilter{
		Status:   status,
		Category: category,
		Location: strings.TrimSpace(q.Location),
		Search:   strings.TrimSpace(q.Search),
		Date:     q.Date,
		Featured: q.Featured,
	}
	return filter, sort, page, nil
}

// listCacheKey scopes the key by the current generation so a single Incr
// invalidates every cached page.
func (s *eventService) listCacheKey(ctx context.Context, f repository.EventFilter, sort repository.EventSort, p repository.Page) string {
	date := ""
	if f.Date != nil {
		date = f.Date.Format("2006-01-02")
	}
	featured := ""
	if f.Featured != nil {
		featured = fmt.Sprint(*f.Featured)
	}
	return fmt.Sprintf("events:list:%d:%s|%s|%s|%s|%s|%s|%s|%d|%d",
		s.cache.Counter(ctx, listGenerationKey),
		f.Status, f.Category, strings.ToLower(f.Location), strings.ToLower(f.Search),
		date, featured, sort, p.Number, p.Limit)
}

func (s *eventService) GetEvent(ctx context.Context, id uuid.UUID, viewer *model.Actor) (*EventView, error) {
	key := eventCacheKey(ctx, s.cache, id)
	var event model.Event
	if !s.cache.GetJSON(ctx, key, &event) {
		found, err := s.events.FindByID(ctx, id)
		if err != nil {
			return nil, mapEventLookupError(err)
		}
		event = *found
		s.cache.SetJSON(ctx, key, found, eventCacheTTL)
	}

	view := &EventView{Event: &event}
	if viewer != nil {
		view.IsRegistered = event.HasAttendee(viewer.ID)
	}
	return view, nil
}

func (s *eventService) CreateEvent(ctx context.Context, actor model.Actor, in rules.CreateInput) (*model.Event, error) {
	if !actor.CanOrganize() {
		return nil, errors.ErrRoleRequired
	}

	event, err := rules.ValidateCreation(in, actor)
	if err != nil {
		return nil, err
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.log.Info("event created",
		zap.String("event_id", event.ID.String()),
		zap.String("organizer_id", actor.ID.String()))
	s.afterMutation(ctx, messaging.KeyEventCreated, event, actor)
	return event, nil
}

func (s *eventService) UpdateEvent(ctx context.Context, actor model.Actor, id uuid.UUID, in rules.UpdateInput) (*model.Event, error) {
	event, err := s.mutate(ctx, id, func(current *model.Event) (*model.Event, error) {
		if err := rules.AuthorizeMutation(current, actor); err != nil {
			return nil, err
		}
		return rules.ApplyUpdate(current, in)
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, messaging.KeyEventUpdated, event, actor)
	return event, nil
}

func (s *eventService) SetStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status model.EventStatus) (*model.Event, error) {
	if !status.Valid() {
		return nil, errors.ErrInvalidStatus
	}
	return s.UpdateEvent(ctx, actor, id, rules.UpdateInput{Status: &status})
}

func (s *eventService) DeleteEvent(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	mu := s.getMutex(id)
	mu.Lock()
	defer mu.Unlock()

	var deleted *model.Event
	err := s.events.WithTransaction(ctx, func(ctx context.Context, tx repository.EventRepository) error {
		event, err := tx.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapEventLookupError(err)
		}
		if err := rules.AuthorizeMutation(event, actor); err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return mapEventLookupError(err)
		}
		deleted = event
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("event deleted",
		zap.String("event_id", id.String()),
		zap.String("actor_id", actor.ID.String()))
	s.afterMutation(ctx, messaging.KeyEventDeleted, deleted, actor)
	return nil
}

func (s *eventService) Register(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Event, error) {
	event, err := s.mutate(ctx, id, func(current *model.Event) (*model.Event, error) {
		next := current.Clone()
		if err := rules.TryRegister(next, actor.ID, s.now()); err != nil {
			return nil, err
		}
		return next, nil
	})
	s.record(ctx, model.RegistrationActionRegister, id, actor.ID, err)
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, messaging.KeyEventRegistered, event, actor)
	return event, nil
}

func (s *eventService) Unregister(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Event, error) {
	event, err := s.mutate(ctx, id, func(current *model.Event) (*model.Event, error) {
		next := current.Clone()
		if err := rules.TryUnregister(next, actor.ID); err != nil {
			return nil, err
		}
		return next, nil
	})
	s.record(ctx, model.RegistrationActionUnregister, id, actor.ID, err)
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, messaging.KeyEventUnregistered, event, actor)
	return event, nil
}

func (s *eventService) UserEvents(ctx context.Context, actor model.Actor, kind repository.UserEventsType) ([]model.Event, error) {
	switch kind {
	case repository.UserEventsCreated, repository.UserEventsRegistered:
	default:
		kind = repository.UserEventsAll
	}

	events, err := s.events.FindForUser(ctx, actor.ID, kind)
	if err != nil {
		return nil, fmt.Errorf("list user events: %w", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// mutate runs one read-check-write cycle on an event. The in-process mutex
// serializes callers on this instance; the row lock serializes instances
// sharing the database. The stored event is only replaced when fn succeeds
// and the result satisfies the capacity invariant.
func (s *eventService) mutate(ctx context.Context, id uuid.UUID, fn func(current *model.Event) (*model.Event, error)) (result *model.Event, err error) {
	ctx, span := tracer.Start(ctx, "event.mutate")
	span.SetAttributes(attribute.String("event.id", id.String()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, errors.MapErrorToHTTP(err).Code)
		}
		span.End()
	}()

	mu := s.getMutex(id)
	mu.Lock()
	defer mu.Unlock()

	err = s.events.WithTransaction(ctx, func(ctx context.Context, tx repository.EventRepository) error {
		current, err := tx.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapEventLookupError(err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if err := next.CheckInvariants(); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvariantViolated, err)
		}
		if err := tx.Save(ctx, next); err != nil {
			return fmt.Errorf("save event: %w", err)
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("event.tickets_sold", result.TicketsSold))
	return result, nil
}

func (s *eventService) afterMutation(ctx context.Context, key string, event *model.Event, actor model.Actor) {
	invalidateEvent(ctx, s.cache, event.ID)
	s.cache.Incr(ctx, listGenerationKey)

	note := messaging.Notification{
		Type:        key,
		EventID:     event.ID.String(),
		ActorID:     actor.ID.String(),
		TicketsSold: event.TicketsSold,
		TicketLimit: event.TicketLimit,
		OccurredAt:  s.now(),
	}
	if err := s.publisher.Publish(ctx, key, note); err != nil {
		s.log.Warn("publish notification failed",
			zap.String("routing_key", key),
			zap.String("event_id", note.EventID),
			zap.Error(err))
	}
}

func (s *eventService) record(ctx context.Context, action model.RegistrationAction, eventID, userID uuid.UUID, err error) {
	entry := model.RegistrationLog{
		EventID:   eventID,
		UserID:    userID,
		Action:    action,
		Outcome:   model.RegistrationOutcomeAccepted,
		CreatedAt: s.now(),
	}
	if err != nil {
		httpErr := errors.MapErrorToHTTP(err)
		entry.ErrorCode = httpErr.Code
		entry.Outcome = model.RegistrationOutcomeRejected
		if httpErr.StatusCode >= 500 {
			entry.Outcome = model.RegistrationOutcomeFailed
			s.log.Error("registration failed",
				zap.String("action", string(action)),
				zap.String("event_id", eventID.String()),
				zap.Error(err))
		}
	}
	s.recorder.Record(ctx, entry)
}

func mapEventLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.ErrEventNotFound
	}
	if errors.Is(err, errors.ErrEventNotFound) {
		return err
	}
	return fmt.Errorf("load event: %w", err)
}

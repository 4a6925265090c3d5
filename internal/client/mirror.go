package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventhub/internal/errors"
	"eventhub/internal/handler"
	"eventhub/internal/model"
	"eventhub/internal/rules"
)

// Backend is the subset of API the mirror talks to.
type Backend interface {
	ListEvents(ctx context.Context, params EventParams) (*EventList, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
	CreateEvent(ctx context.Context, req handler.CreateEventRequest) (*model.Event, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, req handler.UpdateEventRequest) (*model.Event, error)
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	Register(ctx context.Context, id uuid.UUID) (*model.Event, error)
	Unregister(ctx context.Context, id uuid.UUID) (*model.Event, error)
	UserEvents(ctx context.Context, kind string) ([]model.Event, error)
}

// Filters are the listing filters applied by FetchEvents.
type Filters struct {
	Category string
	Date     string
	Location string
	Search   string
	Status   string
	Featured *bool
	Sort     string
}

// DefaultFilters lists active events by date.
var DefaultFilters = Filters{Status: string(model.EventStatusActive), Sort: "date"}

// Pagination is the metadata of the last fetched page.
type Pagination struct {
	CurrentPage int
	TotalPages  int
	Total       int64
	Limit       int
}

const defaultMirrorLimit = 10

// Mirror keeps a local copy of server state for one viewer. Every
// successful mutation replaces the matching record in all collections so
// the copies never disagree. Failures are kept in LastError and returned.
type Mirror struct {
	api    Backend
	retry  RetryPolicy
	viewer uuid.UUID

	mu         sync.RWMutex
	events     []model.Event
	current    *model.Event
	userEvents []model.Event
	filters    Filters
	pagination Pagination
	lastError  error
}

// NewMirror creates an empty mirror. viewer may be uuid.Nil for an
// anonymous session.
func NewMirror(api Backend, viewer uuid.UUID) *Mirror {
	return &Mirror{
		api:        api,
		retry:      DefaultRetryPolicy,
		viewer:     viewer,
		events:     []model.Event{},
		userEvents: []model.Event{},
		filters:    DefaultFilters,
		pagination: Pagination{CurrentPage: 1, Limit: defaultMirrorLimit},
	}
}

// SetRetryPolicy changes how reads are retried.
func (m *Mirror) SetRetryPolicy(p RetryPolicy) {
	m.mu.Lock()
	m.retry = p
	m.mu.Unlock()
}

// SetViewer changes the identity used by IsRegistered and Eligibility.
func (m *Mirror) SetViewer(id uuid.UUID) {
	m.mu.Lock()
	m.viewer = id
	m.mu.Unlock()
}

// FetchEvents loads the given page with the current filters.
func (m *Mirror) FetchEvents(ctx context.Context, page int) error {
	m.mu.RLock()
	f, limit, policy := m.filters, m.pagination.Limit, m.retry
	m.mu.RUnlock()

	params := EventParams{
		Page:     page,
		Limit:    limit,
		Category: f.Category,
		Location: f.Location,
		Search:   f.Search,
		Date:     f.Date,
		Status:   f.Status,
		Featured: f.Featured,
		Sort:     f.Sort,
	}
	list, err := Retry(ctx, policy, func(ctx context.Context) (*EventList, error) {
		return m.api.ListEvents(ctx, params)
	})
	if err != nil {
		return m.fail(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = list.Events
	m.pagination = Pagination{
		CurrentPage: list.CurrentPage,
		TotalPages:  list.TotalPages,
		Total:       list.Total,
		Limit:       limit,
	}
	m.lastError = nil
	return nil
}

// FetchEvent loads one event as the current record.
func (m *Mirror) FetchEvent(ctx context.Context, id uuid.UUID) error {
	event, err := Retry(ctx, m.retryPolicy(), func(ctx context.Context) (*model.Event, error) {
		return m.api.GetEvent(ctx, id)
	})
	if err != nil {
		return m.fail(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = event
	m.lastError = nil
	return nil
}

// FetchUserEvents loads the viewer's events; kind is all, created or
// registered.
func (m *Mirror) FetchUserEvents(ctx context.Context, kind string) error {
	events, err := Retry(ctx, m.retryPolicy(), func(ctx context.Context) ([]model.Event, error) {
		return m.api.UserEvents(ctx, kind)
	})
	if err != nil {
		return m.fail(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.userEvents = events
	m.lastError = nil
	return nil
}

// Create submits a new event and prepends it to the listing.
func (m *Mirror) Create(ctx context.Context, req handler.CreateEventRequest) (*model.Event, error) {
	event, err := m.api.CreateEvent(ctx, req)
	if err != nil {
		return nil, m.fail(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append([]model.Event{*event}, m.events...)
	m.lastError = nil
	return event.Clone(), nil
}

func (m *Mirror) Update(ctx context.Context, id uuid.UUID, req handler.UpdateEventRequest) (*model.Event, error) {
	return m.mutation(m.api.UpdateEvent(ctx, id, req))
}

func (m *Mirror) Register(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	return m.mutation(m.api.Register(ctx, id))
}

func (m *Mirror) Unregister(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	return m.mutation(m.api.Unregister(ctx, id))
}

// Delete removes the event on the server and from every local collection.
func (m *Mirror) Delete(ctx context.Context, id uuid.UUID) error {
	if err := m.api.DeleteEvent(ctx, id); err != nil {
		return m.fail(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = without(m.events, id)
	m.userEvents = without(m.userEvents, id)
	if m.current != nil && m.current.ID == id {
		m.current = nil
	}
	m.lastError = nil
	return nil
}

func (m *Mirror) mutation(event *model.Event, err error) (*model.Event, error) {
	if err != nil {
		return nil, m.fail(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.replace(event)
	m.lastError = nil
	return event.Clone(), nil
}

// replace swaps in the server's copy of the event wherever it is held.
func (m *Mirror) replace(event *model.Event) {
	for i := range m.events {
		if m.events[i].ID == event.ID {
			m.events[i] = *event.Clone()
		}
	}
	for i := range m.userEvents {
		if m.userEvents[i].ID == event.ID {
			m.userEvents[i] = *event.Clone()
		}
	}
	if m.current != nil && m.current.ID == event.ID {
		m.current = event.Clone()
	}
}

func (m *Mirror) fail(err error) error {
	m.mu.Lock()
	m.lastError = err
	m.mu.Unlock()
	return err
}

func (m *Mirror) retryPolicy() RetryPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retry
}

// SetFilters merges the non-empty fields of patch into the filters.
func (m *Mirror) SetFilters(patch Filters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	merge := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	merge(&m.filters.Category, patch.Category)
	merge(&m.filters.Date, patch.Date)
	merge(&m.filters.Location, patch.Location)
	merge(&m.filters.Search, patch.Search)
	merge(&m.filters.Status, patch.Status)
	merge(&m.filters.Sort, patch.Sort)
	if patch.Featured != nil {
		featured := *patch.Featured
		m.filters.Featured = &featured
	}
}

// ClearFilters restores DefaultFilters.
func (m *Mirror) ClearFilters() {
	m.mu.Lock()
	m.filters = DefaultFilters
	m.mu.Unlock()
}

func (m *Mirror) ClearError() {
	m.mu.Lock()
	m.lastError = nil
	m.mu.Unlock()
}

func (m *Mirror) ClearCurrent() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// Events returns a copy of the listed events.
func (m *Mirror) Events() []model.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.events)
}

// UserEvents returns a copy of the viewer's events.
func (m *Mirror) UserEvents() []model.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.userEvents)
}

// Current returns a copy of the current event, or nil.
func (m *Mirror) Current() *model.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	return m.current.Clone()
}

func (m *Mirror) Filters() Filters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filters
}

func (m *Mirror) Pagination() Pagination {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pagination
}

// LastError returns the error of the last failed operation, or nil.
func (m *Mirror) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// IsRegistered reports whether the viewer is an attendee of the locally
// known event.
func (m *Mirror) IsRegistered(eventID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	event := m.lookup(eventID)
	return event != nil && m.viewer != uuid.Nil && event.HasAttendee(m.viewer)
}

// Eligibility predicts the outcome of registering the viewer for eventID
// from local state. Nothing is changed locally or on the server.
func (m *Mirror) Eligibility(eventID uuid.UUID, now time.Time) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.viewer == uuid.Nil {
		return errors.ErrUnauthorized
	}
	event := m.lookup(eventID)
	if event == nil {
		return errors.ErrEventNotFound
	}
	return rules.TryRegister(event.Clone(), m.viewer, now)
}

// lookup prefers the current record, then the listing, then the user's
// events. Callers hold mu.
func (m *Mirror) lookup(id uuid.UUID) *model.Event {
	if m.current != nil && m.current.ID == id {
		return m.current
	}
	for i := range m.events {
		if m.events[i].ID == id {
			return &m.events[i]
		}
	}
	for i := range m.userEvents {
		if m.userEvents[i].ID == id {
			return &m.userEvents[i]
		}
	}
	return nil
}

func without(events []model.Event, id uuid.UUID) []model.Event {
	kept := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	return kept
}

func cloneAll(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	for i := range events {
		out[i] = *events[i].Clone()
	}
	return out
}

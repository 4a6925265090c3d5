package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"eventhub/internal/model"
	"eventhub/internal/repository"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, filter repository.UserFilter, sort repository.UserSort, page repository.Page) ([]model.User, int64, error) {
	args := m.Called(ctx, filter, sort, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	args := m.Called(ctx, role)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) CountVerified(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID string, userID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, userID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (string, error) {
	args := m.Called(ctx, tokenID)
	return args.String(0), args.Error(1)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

// MockPublisher records published routing keys.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}

func (m *MockPublisher) Close() {}

// memoryLogRepository collects registration log entries.
type memoryLogRepository struct {
	mu      sync.Mutex
	entries []model.RegistrationLog
}

func (r *memoryLogRepository) Create(_ context.Context, log *model.RegistrationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *log)
	return nil
}

func (r *memoryLogRepository) CreateBatch(_ context.Context, logs []model.RegistrationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logs...)
	return nil
}

func (r *memoryLogRepository) snapshot() []model.RegistrationLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.RegistrationLog(nil), r.entries...)
}

// fakeEventRepository is an in-memory EventRepository. It hands out copies
// and takes no row locks, so any serialization observed in tests comes from
// the service.
type fakeEventRepository struct {
	mu      sync.Mutex
	events  map[uuid.UUID]*model.Event
	saveErr error
	saves   int
}

func newFakeEventRepository(events ...*model.Event) *fakeEventRepository {
	r := &fakeEventRepository{events: make(map[uuid.UUID]*model.Event)}
	for _, e := range events {
		r.events[e.ID] = e.Clone()
	}
	return r
}

func (r *fakeEventRepository) get(id uuid.UUID) *model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[id]; ok {
		return e.Clone()
	}
	return nil
}

func (r *fakeEventRepository) Create(_ context.Context, event *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	r.events[event.ID] = event.Clone()
	return nil
}

func (r *fakeEventRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Event, error) {
	if e := r.get(id); e != nil {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeEventRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeEventRepository) Save(_ context.Context, event *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.events[event.ID] = event.Clone()
	return nil
}

func (r *fakeEventRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *fakeEventRepository) FindMany(_ context.Context, filter repository.EventFilter, _ repository.EventSort, page repository.Page) ([]model.Event, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []model.Event
	for _, e := range r.events {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		matched = append(matched, *e.Clone())
	}
	total := int64(len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *fakeEventRepository) FindForUser(_ context.Context, userID uuid.UUID, kind repository.UserEventsType) ([]model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, e := range r.events {
		created := e.OrganizerID == userID
		attending := e.HasAttendee(userID)
		switch {
		case kind == repository.UserEventsCreated && created,
			kind == repository.UserEventsRegistered && attending && !created,
			kind == repository.UserEventsAll && (created || attending):
			out = append(out, *e.Clone())
		}
	}
	return out, nil
}

func (r *fakeEventRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.EventRepository) error) error {
	return fn(ctx, r)
}

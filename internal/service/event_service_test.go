package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eventhub/internal/errors"
	"eventhub/internal/messaging"
	"eventhub/internal/model"
	"eventhub/internal/repository"
	"eventhub/internal/rules"
)

func newTestEvent(organizer uuid.UUID, limit int) *model.Event {
	return &model.Event{
		ID:            uuid.New(),
		Title:         "Go Meetup",
		Description:   "Monthly meetup",
		Category:      "Technology",
		Date:          time.Now().Add(48 * time.Hour),
		Time:          "18:00",
		Location:      "Berlin",
		TicketLimit:   limit,
		Price:         decimal.NewFromInt(10),
		OrganizerID:   organizer,
		OrganizerName: "Org",
		Status:        model.EventStatusActive,
		Attendees:     []model.EventAttendee{},
	}
}

func newTestEventService(repo repository.EventRepository, publisher messaging.Publisher, recorder *RegistrationRecorder) *eventService {
	return NewEventService(repo, recorder, publisher, nil, zap.NewNop()).(*eventService)
}

func attendee() model.Actor {
	return model.Actor{ID: uuid.New(), Name: "Attendee", Role: model.RoleAttendee}
}

func TestEventService_CreateEvent(t *testing.T) {
	in := rules.CreateInput{
		Title:       "Launch",
		Description: "Product launch",
		Category:    "Business",
		Date:        time.Now().Add(24 * time.Hour),
		Time:        "10:00",
		Location:    "Paris",
		TicketLimit: 50,
		Price:       decimal.NewFromInt(25),
	}

	t.Run("attendee lacks role", func(t *testing.T) {
		svc := newTestEventService(newFakeEventRepository(), messaging.NopPublisher{}, nil)

		event, err := svc.CreateEvent(context.Background(), attendee(), in)

		assert.ErrorIs(t, err, errors.ErrRoleRequired)
		assert.Nil(t, event)
	})

	t.Run("organizer creates and notification is published", func(t *testing.T) {
		repo := newFakeEventRepository()
		pub := new(MockPublisher)
		pub.On("Publish", mock.Anything, messaging.KeyEventCreated, mock.AnythingOfType("messaging.Notification")).Return(nil)
		svc := newTestEventService(repo, pub, nil)
		organizer := model.Actor{ID: uuid.New(), Name: "Olga", Role: model.RoleOrganizer}

		event, err := svc.CreateEvent(context.Background(), organizer, in)

		require.NoError(t, err)
		assert.Equal(t, organizer.ID, event.OrganizerID)
		assert.Equal(t, "Olga", event.OrganizerName)
		assert.Equal(t, 0, event.TicketsSold)
		assert.NotNil(t, repo.get(event.ID))
		pub.AssertExpectations(t)
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		pub := new(MockPublisher)
		pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(stderrors.New("broker down"))
		svc := newTestEventService(newFakeEventRepository(), pub, nil)

		_, err := svc.CreateEvent(context.Background(), model.Actor{ID: uuid.New(), Role: model.RoleAdmin}, in)

		assert.NoError(t, err)
	})
}

func TestEventService_RegisterAndUnregister(t *testing.T) {
	ctx := context.Background()
	event := newTestEvent(uuid.New(), 2)
	repo := newFakeEventRepository(event)
	svc := newTestEventService(repo, messaging.NopPublisher{}, nil)
	user := attendee()

	registered, err := svc.Register(ctx, user, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, registered.TicketsSold)
	assert.True(t, registered.HasAttendee(user.ID))

	_, err = svc.Register(ctx, user, event.ID)
	assert.ErrorIs(t, err, errors.ErrAlreadyRegistered)

	stored := repo.get(event.ID)
	assert.Equal(t, 1, stored.TicketsSold)
	assert.NoError(t, stored.CheckInvariants())

	unregistered, err := svc.Unregister(ctx, user, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unregistered.TicketsSold)
	assert.False(t, unregistered.HasAttendee(user.ID))

	_, err = svc.Unregister(ctx, user, event.ID)
	assert.ErrorIs(t, err, errors.ErrNotRegistered)

	stored = repo.get(event.ID)
	assert.Equal(t, 0, stored.TicketsSold)
	assert.Empty(t, stored.Attendees)
}

func TestEventService_RegisterRejections(t *testing.T) {
	ctx := context.Background()
	organizer := model.Actor{ID: uuid.New(), Role: model.RoleOrganizer}

	t.Run("sold out", func(t *testing.T) {
		event := newTestEvent(organizer.ID, 1)
		repo := newFakeEventRepository(event)
		svc := newTestEventService(repo, messaging.NopPublisher{}, nil)

		_, err := svc.Register(ctx, attendee(), event.ID)
		require.NoError(t, err)
		_, err = svc.Register(ctx, attendee(), event.ID)

		assert.ErrorIs(t, err, errors.ErrSoldOut)
		assert.Equal(t, 1, repo.get(event.ID).TicketsSold)
	})

	t.Run("organizer cannot register", func(t *testing.T) {
		event := newTestEvent(organizer.ID, 5)
		svc := newTestEventService(newFakeEventRepository(event), messaging.NopPublisher{}, nil)

		_, err := svc.Register(ctx, organizer, event.ID)

		assert.ErrorIs(t, err, errors.ErrOrganizerCannotRegister)
	})

	t.Run("deadline passed", func(t *testing.T) {
		event := newTestEvent(organizer.ID, 5)
		deadline := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		event.RegistrationDeadline = &deadline
		svc := newTestEventService(newFakeEventRepository(event), messaging.NopPublisher{}, nil)
		svc.now = func() time.Time { return deadline.Add(time.Minute) }

		_, err := svc.Register(ctx, attendee(), event.ID)

		assert.ErrorIs(t, err, errors.ErrDeadlinePassed)
	})

	t.Run("unknown event", func(t *testing.T) {
		svc := newTestEventService(newFakeEventRepository(), messaging.NopPublisher{}, nil)

		_, err := svc.Register(ctx, attendee(), uuid.New())

		assert.ErrorIs(t, err, errors.ErrEventNotFound)
	})

	t.Run("store failure leaves event untouched", func(t *testing.T) {
		event := newTestEvent(organizer.ID, 5)
		repo := newFakeEventRepository(event)
		repo.saveErr = stderrors.New("connection reset")
		svc := newTestEventService(repo, messaging.NopPublisher{}, nil)

		_, err := svc.Register(ctx, attendee(), event.ID)

		require.Error(t, err)
		assert.Equal(t, 500, errors.MapErrorToHTTP(err).StatusCode)
		assert.Equal(t, 0, repo.get(event.ID).TicketsSold)
	})
}

func TestEventService_ConcurrentRegistrationForLastTicket(t *testing.T) {
	event := newTestEvent(uuid.New(), 1)
	repo := newFakeEventRepository(event)
	svc := newTestEventService(repo, messaging.NopPublisher{}, nil)

	const callers = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		soldOut   int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Register(context.Background(), attendee(), event.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errors.ErrSoldOut):
				soldOut++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, soldOut)

	stored := repo.get(event.ID)
	assert.Equal(t, 1, stored.TicketsSold)
	assert.Len(t, stored.Attendees, 1)
	assert.NoError(t, stored.CheckInvariants())
}

func TestEventService_ConcurrentRegistrationsFillCapacity(t *testing.T) {
	event := newTestEvent(uuid.New(), 10)
	repo := newFakeEventRepository(event)
	svc := newTestEventService(repo, messaging.NopPublisher{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Register(context.Background(), attendee(), event.ID)
		}()
	}
	wg.Wait()

	stored := repo.get(event.ID)
	assert.Equal(t, 10, stored.TicketsSold)
	assert.NoError(t, stored.CheckInvariants())
}

func TestEventService_SingleTicketScenario(t *testing.T) {
	ctx := context.Background()
	event := newTestEvent(uuid.New(), 1)
	repo := newFakeEventRepository(event)
	svc := newTestEventService(repo, messaging.NopPublisher{}, nil)
	a, b := attendee(), attendee()

	_, err := svc.Register(ctx, a, event.ID)
	require.NoError(t, err)

	_, err = svc.Register(ctx, b, event.ID)
	assert.ErrorIs(t, err, errors.ErrSoldOut)

	_, err = svc.Unregister(ctx, a, event.ID)
	require.NoError(t, err)

	got, err := svc.Register(ctx, b, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TicketsSold)
	assert.True(t, got.HasAttendee(b.ID))
	assert.False(t, got.HasAttendee(a.ID))
}

func TestEventService_UpdateEvent(t *testing.T) {
	ctx := context.Background()
	organizer := model.Actor{ID: uuid.New(), Role: model.RoleOrganizer}

	t.Run("non-owner is forbidden", func(t *testing.T) {
		event := newTestEvent(organizer.ID, 5)
		repo := newFakeEventRepository(event)
		svc := newTestEventService(repo, messaging.NopPublisher{}, nil)
		title := "Hijacked"

		_, err := svc.UpdateEvent(ctx, model.Actor{ID: uuid.New(), Role: model.RoleOrganizer}, event.ID, rules.UpdateInput{Title: &title})

		assert.ErrorIs(t, err, errors.ErrForbidden)
		assert.Equal(t, "Go Meetup", repo.get(event.ID).Title)
	})

	t.Run("admin may edit any event", func(t *testing.T) {
		event := newTestEvent(organizer.ID, 5)
		svc := newTestEventService(newFakeEventRepository(event), messaging.NopPublisher{}, nil)
		title := "Renamed"

		got, err := svc.UpdateEvent(ctx, model.Actor{ID: uuid.New(), Role: model.RoleAdmin}, event.ID, rules.UpdateInput{Title: &title})

		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
	})

	t.Run("limit below tickets sold is rejected", func(t *testing.T) {
		event := newTestEvent(organizer.ID, 5)
		repo := newFakeEventRepository(event)
		svc := newTestEventService(repo, messaging.NopPublisher{}, nil)
		for i := 0; i < 3; i++ {
			_, err := svc.Register(ctx, attendee(), event.ID)
			require.NoError(t, err)
		}
		limit := 2

		_, err := svc.UpdateEvent(ctx, organizer, event.ID, rules.UpdateInput{TicketLimit: &limit})

		assert.ErrorIs(t, err, errors.ErrInvalidTicketLimit)
		assert.Equal(t, 5, repo.get(event.ID).TicketLimit)
	})

	t.Run("status change blocks registration", func(t *testing.T) {
		event := newTestEvent(organizer.ID, 5)
		svc := newTestEventService(newFakeEventRepository(event), messaging.NopPublisher{}, nil)

		got, err := svc.SetStatus(ctx, organizer, event.ID, model.EventStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, model.EventStatusCancelled, got.Status)

		_, err = svc.Register(ctx, attendee(), event.ID)
		assert.ErrorIs(t, err, errors.ErrEventNotActive)
	})

	t.Run("unknown status", func(t *testing.T) {
		event := newTestEvent(organizer.ID, 5)
		svc := newTestEventService(newFakeEventRepository(event), messaging.NopPublisher{}, nil)

		_, err := svc.SetStatus(ctx, organizer, event.ID, "archived")

		assert.ErrorIs(t, err, errors.ErrInvalidStatus)
	})
}

func TestEventService_DeleteEvent(t *testing.T) {
	ctx := context.Background()
	organizer := model.Actor{ID: uuid.New(), Role: model.RoleOrganizer}
	event := newTestEvent(organizer.ID, 5)
	repo := newFakeEventRepository(event)
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, messaging.KeyEventDeleted, mock.Anything).Return(nil).Once()
	svc := newTestEventService(repo, pub, nil)

	err := svc.DeleteEvent(ctx, attendee(), event.ID)
	assert.ErrorIs(t, err, errors.ErrForbidden)

	require.NoError(t, svc.DeleteEvent(ctx, organizer, event.ID))
	assert.Nil(t, repo.get(event.ID))

	_, err = svc.GetEvent(ctx, event.ID, nil)
	assert.ErrorIs(t, err, errors.ErrEventNotFound)
	assert.ErrorIs(t, svc.DeleteEvent(ctx, organizer, event.ID), errors.ErrEventNotFound)
	pub.AssertExpectations(t)
}

func TestEventService_GetEvent(t *testing.T) {
	ctx := context.Background()
	event := newTestEvent(uuid.New(), 5)
	svc := newTestEventService(newFakeEventRepository(event), messaging.NopPublisher{}, nil)
	user := attendee()

	_, err := svc.Register(ctx, user, event.ID)
	require.NoError(t, err)

	view, err := svc.GetEvent(ctx, event.ID, &user)
	require.NoError(t, err)
	assert.True(t, view.IsRegistered)

	stranger := attendee()
	view, err = svc.GetEvent(ctx, event.ID, &stranger)
	require.NoError(t, err)
	assert.False(t, view.IsRegistered)

	anonymous, err := svc.GetEvent(ctx, event.ID, nil)
	require.NoError(t, err)
	body, err := json.Marshal(anonymous)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, false, doc["isRegistered"])
	assert.Equal(t, float64(4), doc["availableTickets"])
	assert.Equal(t, event.ID.String(), doc["id"])
}

func TestEventService_ListEvents(t *testing.T) {
	ctx := context.Background()
	var events []*model.Event
	for i := 0; i < 12; i++ {
		events = append(events, newTestEvent(uuid.New(), 5))
	}
	draft := newTestEvent(uuid.New(), 5)
	draft.Status = model.EventStatusDraft
	events = append(events, draft)
	svc := newTestEventService(newFakeEventRepository(events...), messaging.NopPublisher{}, nil)

	page, err := svc.ListEvents(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 10, page.Count)
	assert.Equal(t, int64(12), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)

	page, err = svc.ListEvents(ctx, ListQuery{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)

	page, err = svc.ListEvents(ctx, ListQuery{Status: "draft"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, err = svc.ListEvents(ctx, ListQuery{Status: "bogus"})
	assert.ErrorIs(t, err, errors.ErrInvalidStatus)
}

func TestEventService_UserEvents(t *testing.T) {
	ctx := context.Background()
	organizer := model.Actor{ID: uuid.New(), Role: model.RoleOrganizer}
	own := newTestEvent(organizer.ID, 5)
	other := newTestEvent(uuid.New(), 5)
	svc := newTestEventService(newFakeEventRepository(own, other), messaging.NopPublisher{}, nil)

	_, err := svc.Register(ctx, organizer, other.ID)
	require.NoError(t, err)

	created, err := svc.UserEvents(ctx, organizer, repository.UserEventsCreated)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, own.ID, created[0].ID)

	registered, err := svc.UserEvents(ctx, organizer, repository.UserEventsRegistered)
	require.NoError(t, err)
	require.Len(t, registered, 1)
	assert.Equal(t, other.ID, registered[0].ID)

	all, err := svc.UserEvents(ctx, organizer, "whatever")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEventService_RecordsRegistrationAttempts(t *testing.T) {
	ctx := context.Background()
	event := newTestEvent(uuid.New(), 1)
	logs := &memoryLogRepository{}
	recorder := NewRegistrationRecorder(logs, zap.NewNop())
	svc := newTestEventService(newFakeEventRepository(event), messaging.NopPublisher{}, recorder)
	user := attendee()

	_, err := svc.Register(ctx, user, event.ID)
	require.NoError(t, err)
	_, err = svc.Register(ctx, attendee(), event.ID)
	require.ErrorIs(t, err, errors.ErrSoldOut)
	_, err = svc.Unregister(ctx, user, event.ID)
	require.NoError(t, err)

	recorder.Close()

	entries := logs.snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, model.RegistrationOutcomeAccepted, entries[0].Outcome)
	assert.Equal(t, model.RegistrationOutcomeRejected, entries[1].Outcome)
	assert.Equal(t, "SOLD_OUT", entries[1].ErrorCode)
	assert.Equal(t, model.RegistrationActionUnregister, entries[2].Action)
}

func TestEventService_LockStripes(t *testing.T) {
	svc := newTestEventService(newFakeEventRepository(), messaging.NopPublisher{}, nil)
	id := uuid.New()

	assert.Same(t, svc.getMutex(id), svc.getMutex(id))

	// arbitrary ids never allocate new locks
	for i := 0; i < 1000; i++ {
		assert.True(t, isStripe(svc, svc.getMutex(uuid.New())))
	}
}

func isStripe(svc *eventService, mu *sync.Mutex) bool {
	for i := range svc.locks {
		if mu == &svc.locks[i] {
			return true
		}
	}
	return false
}

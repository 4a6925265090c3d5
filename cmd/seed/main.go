package main

import (
	"context"
	stdlog "log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"eventhub/internal/config"
	"eventhub/internal/db"
	"eventhub/internal/errors"
	"eventhub/internal/logger"
	"eventhub/internal/model"
	"eventhub/internal/repository"
	"eventhub/internal/rules"
)

const demoPassword = "password123"

type seedUser struct {
	Name  string
	Email string
	Role  model.Role
}

var demoUsers = []seedUser{
	{Name: "Admin User", Email: "admin@eventhub.local", Role: model.RoleAdmin},
	{Name: "Olivia Organizer", Email: "organizer@eventhub.local", Role: model.RoleOrganizer},
	{Name: "Aaron Attendee", Email: "attendee@eventhub.local", Role: model.RoleAttendee},
}

func demoEvents(now time.Time) []rules.CreateInput {
	day := func(n int) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day()+n, 0, 0, 0, 0, time.UTC)
	}
	deadline := day(13)
	return []rules.CreateInput{
		{
			Title:        "Go Systems Summit",
			Description:  "Talks and workshops on building reliable backend services in Go.",
			Category:     "Technology",
			Date:         day(30),
			Time:         "09:00",
			Location:     "Berlin Congress Center",
			TicketLimit:  250,
			Price:        decimal.NewFromInt(149),
			Status:       model.EventStatusActive,
			Tags:         []string{"go", "backend"},
			Featured:     true,
			RefundPolicy: "Full refund up to 7 days before the event.",
		},
		{
			Title:                "Jazz by the River",
			Description:          "An evening of live jazz with local bands.",
			Category:             "Music",
			Date:                 day(14),
			Time:                 "19:30",
			Location:             "Riverside Park",
			TicketLimit:          2,
			Price:                decimal.RequireFromString("25.50"),
			Status:               model.EventStatusActive,
			RegistrationDeadline: &deadline,
		},
		{
			Title:       "Startup Networking Breakfast",
			Description: "Meet founders and investors over coffee.",
			Category:    "Networking",
			Date:        day(7),
			Time:        "08:00",
			Location:    "Innovation Hub",
			TicketLimit: 40,
			Price:       decimal.Zero,
			Status:      model.EventStatusDraft,
		},
	}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		stdlog.Fatalf("logger init: %v", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting seed script")

	gormDB, err := db.Open(cfg.DBDriver, cfg.MySQLDSN, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := gormDB.AutoMigrate(&model.User{}, &model.Event{}, &model.EventAttendee{}, &model.RegistrationLog{}); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	ctx := context.Background()
	userRepo := repository.NewUserRepository(gormDB)
	eventRepo := repository.NewEventRepository(gormDB)

	users, err := seedUsers(ctx, userRepo, log)
	if err != nil {
		log.Fatal("Failed to seed users", zap.Error(err))
	}

	if err := seedEvents(ctx, eventRepo, users, log); err != nil {
		log.Fatal("Failed to seed events", zap.Error(err))
	}

	log.Info("Seed completed", zap.String("password", demoPassword))
}

// seedUsers inserts the demo users that do not exist yet and returns all of
// them keyed by role.
func seedUsers(ctx context.Context, repo repository.UserRepository, log *zap.Logger) (map[model.Role]*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	byRole := make(map[model.Role]*model.User, len(demoUsers))
	for _, u := range demoUsers {
		existing, err := repo.FindByEmail(ctx, u.Email)
		if err == nil {
			log.Info("User already exists, skipping", zap.String("email", u.Email))
			byRole[u.Role] = existing
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		user := &model.User{
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: string(hash),
			Role:         u.Role,
			IsVerified:   true,
		}
		if err := repo.Create(ctx, user); err != nil {
			return nil, err
		}
		log.Info("Created user", zap.String("email", u.Email), zap.String("role", string(u.Role)))
		byRole[u.Role] = user
	}
	return byRole, nil
}

// seedEvents creates the demo events once and registers the demo attendee
// for the first of them.
func seedEvents(ctx context.Context, repo repository.EventRepository, users map[model.Role]*model.User, log *zap.Logger) error {
	organizer := users[model.RoleOrganizer]
	attendee := users[model.RoleAttendee]

	existing, err := repo.FindForUser(ctx, organizer.ID, repository.UserEventsCreated)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Info("Events already seeded, skipping", zap.Int("count", len(existing)))
		return nil
	}

	actor := model.Actor{ID: organizer.ID, Name: organizer.Name, Role: organizer.Role}
	now := time.Now().UTC()

	var first *model.Event
	for _, in := range demoEvents(now) {
		event, err := rules.ValidateCreation(in, actor)
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, event); err != nil {
			return err
		}
		log.Info("Created event", zap.String("title", event.Title), zap.String("id", event.ID.String()))
		if first == nil {
			first = event
		}
	}

	return repo.WithTransaction(ctx, func(ctx context.Context, tx repository.EventRepository) error {
		event, err := tx.FindByIDForUpdate(ctx, first.ID)
		if err != nil {
			return err
		}
		if err := rules.TryRegister(event, attendee.ID, now); err != nil {
			return err
		}
		if err := event.CheckInvariants(); err != nil {
			return err
		}
		log.Info("Registered attendee", zap.String("email", attendee.Email), zap.String("event", event.Title))
		return tx.Save(ctx, event)
	})
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"eventhub/internal/cache"
	"eventhub/internal/errors"
	"eventhub/internal/logger"
	"eventhub/internal/model"
	"eventhub/internal/repository"
)

const (
	userCacheTTL     = 5 * time.Minute
	recentUserWindow = 30 * 24 * time.Hour
)

// UserListQuery holds the raw parameters of an admin user listing.
type UserListQuery struct {
	Page   int
	Limit  int
	Role   string
	Search string
	Sort   string
}

// UserPage is one page of users plus pagination metadata.
type UserPage struct {
	Users       []model.User `json:"data"`
	Count       int          `json:"count"`
	Total       int64        `json:"total"`
	TotalPages  int          `json:"totalPages"`
	CurrentPage int          `json:"currentPage"`
}

// UserPatch is an admin edit of a user; nil fields are left untouched.
type UserPatch struct {
	Name       *string
	Role       *model.Role
	IsVerified *bool
}

// UserStats summarizes the user base for the admin dashboard.
type UserStats struct {
	Total      int64                `json:"total"`
	ByRole     map[model.Role]int64 `json:"byRole"`
	Verified   int64                `json:"verified"`
	RecentJoin int64                `json:"recentRegistrations"`
}

// UserService exposes user administration operations.
type UserService interface {
	ListUsers(ctx context.Context, q UserListQuery) (*UserPage, error)
	GetUser(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, patch UserPatch) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*UserStats, error)
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
	log   *zap.Logger
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client, log *zap.Logger) UserService {
	if log == nil {
		log = logger.Nop()
	}
	return &userService{repo: repo, cache: cache, log: log}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return "user:" + id.String()
}

func (s *userService) ListUsers(ctx context.Context, q UserListQuery) (*UserPage, error) {
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

	filter := repository.UserFilter{Search: strings.TrimSpace(q.Search)}
	if q.Role != "" && q.Role != "all" {
		role := model.Role(q.Role)
		if !role.Valid() {
			return nil, errors.NewValidationError("role", "unknown role")
		}
		filter.Role = role
	}

	users, total, err := s.repo.List(ctx, filter, repository.UserSort(q.Sort), page)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}

	return &UserPage{
		Users:       users,
		Count:       len(users),
		Total:       total,
		TotalPages:  int((total + int64(page.Limit) - 1) / int64(page.Limit)),
		CurrentPage: page.Number,
	}, nil
}

// GetUser returns a user profile to the user themself or to an admin.
func (s *userService) GetUser(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.User, error) {
	if actor.ID != id && !actor.IsAdmin() {
		return nil, errors.ErrRoleRequired
	}

	var cached model.User
	if s.cache.GetJSON(ctx, s.cacheKey(id), &cached) {
		return &cached, nil
	}

	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, s.cacheKey(id), user, userCacheTTL)
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, patch UserPatch) (*model.User, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, errors.NewValidationError("name", "is required")
		}
		user.Name = name
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, errors.NewValidationError("role", "unknown role")
		}
		user.Role = *patch.Role
	}
	if patch.IsVerified != nil {
		user.IsVerified = *patch.IsVerified
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))

	s.log.Info("user updated", zap.String("user_id", id.String()), zap.String("role", string(user.Role)))
	return user, nil
}

// DeleteUser removes the user and releases every ticket they held.
func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	released, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	for _, eventID := range released {
		invalidateEvent(ctx, s.cache, eventID)
	}
	s.cache.Incr(ctx, listGenerationKey)

	s.log.Info("user deleted",
		zap.String("user_id", id.String()),
		zap.Int("tickets_released", len(released)))
	return nil
}

func (s *userService) Stats(ctx context.Context) (*UserStats, error) {
	stats := &UserStats{ByRole: make(map[model.Role]int64, 3)}

	for _, role := range []model.Role{model.RoleAttendee, model.RoleOrganizer, model.RoleAdmin} {
		n, err := s.repo.CountByRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("count %s users: %w", role, err)
		}
		stats.ByRole[role] = n
		stats.Total += n
	}

	verified, err := s.repo.CountVerified(ctx)
	if err != nil {
		return nil, fmt.Errorf("count verified users: %w", err)
	}
	stats.Verified = verified

	recent, err := s.repo.CountCreatedSince(ctx, time.Now().UTC().Add(-recentUserWindow))
	if err != nil {
		return nil, fmt.Errorf("count recent users: %w", err)
	}
	stats.RecentJoin = recent

	return stats, nil
}

func (s *userService) find(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

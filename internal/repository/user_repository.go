package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eventhub/internal/model"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Role   model.Role
	Search string
}

// UserSort selects the ordering of user listings.
type UserSort string

const (
	UserSortName      UserSort = "name"
	UserSortEmail     UserSort = "email"
	UserSortRole      UserSort = "role"
	UserSortLastLogin UserSort = "lastLogin"
	UserSortCreated   UserSort = "createdAt"
)

func (s UserSort) orderClause() string {
	switch s {
	case UserSortName:
		return "name ASC"
	case UserSortEmail:
		return "email ASC"
	case UserSortRole:
		return "role ASC"
	case UserSortLastLogin:
		return "last_login DESC"
	default:
		return "created_at DESC"
	}
}

// UserRepository defines persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, filter UserFilter, sort UserSort, page Page) ([]model.User, int64, error)
	CountByRole(ctx context.Context, role model.Role) (int64, error)
	CountVerified(ctx context.Context) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// Delete removes the user and every attendee membership it held, keeping
// ticketsSold in step with the attendee sets it leaves behind. It returns the
// IDs of the events whose attendee sets changed. Event rows are locked before
// their attendee rows, the same order registration takes them in.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var released []uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for {
			var eventIDs []uuid.UUID
			if err := tx.Model(&model.EventAttendee{}).Where("user_id = ?", id).
				Pluck("event_id", &eventIDs).Error; err != nil {
				return err
			}
			if len(eventIDs) == 0 {
				break
			}

			var locked []uuid.UUID
			if err := tx.Model(&model.Event{}).Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id IN ?", eventIDs).Order("id").
				Pluck("id", &locked).Error; err != nil {
				return err
			}
			if len(locked) == 0 {
				// orphaned memberships
				if err := tx.Where("user_id = ? AND event_id IN ?", id, eventIDs).
					Delete(&model.EventAttendee{}).Error; err != nil {
					return err
				}
				continue
			}

			if err := tx.Where("user_id = ? AND event_id IN ?", id, locked).
				Delete(&model.EventAttendee{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.Event{}).Where("id IN ? AND tickets_sold > 0", locked).
				UpdateColumn("tickets_sold", gorm.Expr("tickets_sold - 1")).Error; err != nil {
				return err
			}
			released = append(released, locked...)
		}

		res := tx.Where("id = ?", id).Delete(&model.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter, sort UserSort, page Page) ([]model.User, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Role != "" {
			db = db.Where("role = ?", filter.Role)
		}
		if filter.Search != "" {
			pattern := likePattern(filter.Search)
			db = db.Where("LOWER(name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!'", pattern, pattern)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	if err := r.db.WithContext(ctx).Scopes(scope).
		Order(sort.orderClause()).
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("role = ?", role).Count(&n).Error
	return n, err
}

func (r *userRepository) CountVerified(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("is_verified = ?", true).Count(&n).Error
	return n, err
}

func (r *userRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("created_at >= ?", since).Count(&n).Error
	return n, err
}

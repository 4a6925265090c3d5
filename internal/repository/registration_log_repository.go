package repository

import (
	"context"

	"gorm.io/gorm"

	"eventhub/internal/model"
)

// RegistrationLogRepository defines registration log persistence operations.
type RegistrationLogRepository interface {
	Create(ctx context.Context, log *model.RegistrationLog) error
	CreateBatch(ctx context.Context, logs []model.RegistrationLog) error
}

type registrationLogRepository struct {
	db *gorm.DB
}

// NewRegistrationLogRepository creates a new registration log repository.
func NewRegistrationLogRepository(db *gorm.DB) RegistrationLogRepository {
	return &registrationLogRepository{db: db}
}

// Create creates a new registration log entry.
func (r *registrationLogRepository) Create(ctx context.Context, log *model.RegistrationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// CreateBatch creates multiple registration log entries in a single statement.
func (r *registrationLogRepository) CreateBatch(ctx context.Context, logs []model.RegistrationLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(logs, 100).Error
}

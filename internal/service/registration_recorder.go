package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"eventhub/internal/logger"
	"eventhub/internal/model"
	"eventhub/internal/repository"
)

const (
	recorderQueueSize  = 100
	recorderBatchSize  = 10
	recorderFlushEvery = 1 * time.Second
)

// RegistrationRecorder writes registration attempts to the audit log
// asynchronously, in batches. A nil recorder drops everything.
type RegistrationRecorder struct {
	repo repository.RegistrationLogRepository
	log  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	entries chan model.RegistrationLog
	done    chan struct{}
}

// NewRegistrationRecorder starts the background flush worker.
func NewRegistrationRecorder(repo repository.RegistrationLogRepository, log *zap.Logger) *RegistrationRecorder {
	if log == nil {
		log = logger.Nop()
	}
	r := &RegistrationRecorder{
		repo:    repo,
		log:     log,
		entries: make(chan model.RegistrationLog, recorderQueueSize),
		done:    make(chan struct{}),
	}
	go r.worker()
	return r
}

// Record queues an entry. When the queue is full the entry is written synchronously.
func (r *RegistrationRecorder) Record(ctx context.Context, entry model.RegistrationLog) {
	if r == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.entries <- entry:
	default:
		// Channel full, log synchronously as fallback
		if err := r.repo.Create(ctx, &entry); err != nil {
			r.log.Warn("registration log write failed", zap.Error(err))
		}
	}
}

// Close stops accepting entries and waits for the pending batch to be flushed.
func (r *RegistrationRecorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.entries)
	r.mu.Unlock()
	<-r.done
}

func (r *RegistrationRecorder) worker() {
	defer close(r.done)

	ctx := context.Background()
	batch := make([]model.RegistrationLog, 0, recorderBatchSize)
	ticker := time.NewTicker(recorderFlushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.repo.CreateBatch(ctx, batch); err != nil {
			r.log.Warn("registration log batch write failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-r.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= recorderBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"eventhub/internal/model"
)

func TestRegistrationRecorder_FlushesOnTick(t *testing.T) {
	logs := &memoryLogRepository{}
	recorder := NewRegistrationRecorder(logs, zap.NewNop())
	defer recorder.Close()

	recorder.Record(context.Background(), model.RegistrationLog{
		EventID: uuid.New(),
		UserID:  uuid.New(),
		Action:  model.RegistrationActionRegister,
		Outcome: model.RegistrationOutcomeAccepted,
	})

	assert.Eventually(t, func() bool {
		return len(logs.snapshot()) == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRegistrationRecorder_FlushesFullBatches(t *testing.T) {
	logs := &memoryLogRepository{}
	recorder := NewRegistrationRecorder(logs, zap.NewNop())

	for i := 0; i < 25; i++ {
		recorder.Record(context.Background(), model.RegistrationLog{
			EventID: uuid.New(),
			UserID:  uuid.New(),
			Action:  model.RegistrationActionUnregister,
			Outcome: model.RegistrationOutcomeRejected,
		})
	}
	recorder.Close()

	entries := logs.snapshot()
	assert.Len(t, entries, 25)
	for _, e := range entries {
		assert.False(t, e.CreatedAt.IsZero())
	}
}

func TestRegistrationRecorder_DropsAfterClose(t *testing.T) {
	logs := &memoryLogRepository{}
	recorder := NewRegistrationRecorder(logs, zap.NewNop())
	recorder.Close()
	recorder.Close()

	recorder.Record(context.Background(), model.RegistrationLog{EventID: uuid.New()})

	assert.Empty(t, logs.snapshot())
}

func TestRegistrationRecorder_NilIsSafe(t *testing.T) {
	var recorder *RegistrationRecorder

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), model.RegistrationLog{})
		recorder.Close()
	})
}

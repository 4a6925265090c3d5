package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = RetryPolicy{
	MaxTries:        4,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	MaxElapsed:      time.Second,
}

func TestRetry(t *testing.T) {
	errTransport := errors.New("connection reset by peer")

	tests := []struct {
		name      string
		failures  []error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "server errors are retried until success",
			failures:  []error{&APIError{Status: http.StatusServiceUnavailable}, &APIError{Status: http.StatusInternalServerError}},
			wantCalls: 3,
		},
		{
			name:      "transport errors are retried",
			failures:  []error{errTransport},
			wantCalls: 2,
		},
		{
			name:      "business rejection is returned immediately",
			failures:  []error{&APIError{Status: http.StatusBadRequest, Code: "SOLD_OUT"}},
			wantCalls: 1,
			wantErr:   &APIError{Status: http.StatusBadRequest, Code: "SOLD_OUT"},
		},
		{
			name:      "cancellation is not retried",
			failures:  []error{context.Canceled},
			wantCalls: 1,
			wantErr:   context.Canceled,
		},
		{
			name: "gives up after max tries",
			failures: []error{
				errTransport, errTransport, errTransport, errTransport, errTransport,
			},
			wantCalls: 4,
			wantErr:   errTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := Retry(context.Background(), fastPolicy, func(ctx context.Context) (string, error) {
				calls++
				if calls <= len(tt.failures) {
					return "", tt.failures[calls-1]
				}
				return "ok", nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr.Error(), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", got)
		})
	}
}

func TestRetry_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Retry(ctx, RetryPolicy{InitialInterval: 50 * time.Millisecond, MaxTries: 10}, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("temporary")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireOnce(t *testing.T) {
	client, mock := redismock.NewClientMock()
	r := &Redis{Client: client}

	mock.ExpectSetNX("lock:assign:org-1", "1", 30*time.Second).SetVal(true)
	mock.ExpectSetNX("lock:assign:org-1", "1", 30*time.Second).SetVal(false)

	won, err := r.AcquireOnce(context.Background(), "lock:assign:org-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = r.AcquireOnce(context.Background(), "lock:assign:org-1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, won)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseLetsKeyBeAcquiredAgain(t *testing.T) {
	client, mock := redismock.NewClientMock()
	r := &Redis{Client: client}
	ctx := context.Background()

	mock.ExpectSetNX("sla-alert:t-1:breached", "1", time.Hour).SetVal(true)
	mock.ExpectDel("sla-alert:t-1:breached").SetVal(1)
	mock.ExpectSetNX("sla-alert:t-1:breached", "1", time.Hour).SetVal(true)

	won, err := r.AcquireOnce(ctx, "sla-alert:t-1:breached", time.Hour)
	require.NoError(t, err)
	assert.True(t, won)
	require.NoError(t, r.Release(ctx, "sla-alert:t-1:breached"))
	won, err = r.AcquireOnce(ctx, "sla-alert:t-1:breached", time.Hour)
	require.NoError(t, err)
	assert.True(t, won)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish(t *testing.T) {
	client, mock := redismock.NewClientMock()
	r := &Redis{Client: client}

	mock.ExpectPublish("tickets:org-1", `{"type":"ticket_created"}`).SetVal(1)
	mock.ExpectPublish("tickets:org-1", "x").SetErr(errors.New("down"))

	require.NoError(t, r.Publish(context.Background(), "tickets:org-1", []byte(`{"type":"ticket_created"}`)))
	assert.Error(t, r.Publish(context.Background(), "tickets:org-1", []byte("x")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilRedisIsNoop(t *testing.T) {
	var r *Redis
	won, err := r.AcquireOnce(context.Background(), "k", time.Second)
	assert.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, r.Publish(context.Background(), "c", nil))
	assert.NoError(t, r.Release(context.Background(), "k"))
	assert.Error(t, r.Ping(context.Background()))
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilClient_BehavesLikeEmptyCache(t *testing.T) {
	var c *Client
	ctx := context.Background()

	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	data, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, data)

	assert.NoError(t, c.Delete(ctx, "k"))
	assert.Equal(t, int64(0), c.Incr(ctx, "gen"))
	assert.Equal(t, int64(0), c.Counter(ctx, "gen"))
	assert.NoError(t, c.Close())

	var dst map[string]string
	c.SetJSON(ctx, "j", map[string]string{"a": "b"}, time.Minute)
	assert.False(t, c.GetJSON(ctx, "j", &dst))
}

func TestUnreachableRedis_FailsSafe(t *testing.T) {
	c := New("127.0.0.1:1", "", 0)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Error(t, c.Ping(ctx))

	data, err := c.Get(ctx, "event:1")
	assert.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, c.Set(ctx, "event:1", []byte("{}"), time.Minute))
	assert.Equal(t, int64(0), c.Incr(ctx, "events:list:gen"))
}

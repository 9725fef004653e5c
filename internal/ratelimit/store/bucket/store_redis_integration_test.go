//go:build integration

package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitlist/pkg/testutil/containers"
)

func TestRedisBucketStoreSlidingWindow(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	clock := &fakeClock{t: time.Now()}
	s := NewRedis(rc.Client, WithRedisClock(clock.now))
	ctx := context.Background()

	for i := range 2 {
		res, err := s.Allow(ctx, "ip:10.0.0.1:submit", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
	}

	res, err := s.Allow(ctx, "ip:10.0.0.1:submit", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	ttl, err := rc.Client.PTTL(ctx, keyPrefix+"ip:10.0.0.1:submit").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	clock.advance(61 * time.Second)
	res, err = s.Allow(ctx, "ip:10.0.0.1:submit", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	require.NoError(t, s.Reset(ctx, "ip:10.0.0.1:submit"))
	n, err := rc.Client.Exists(ctx, keyPrefix+"ip:10.0.0.1:submit").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisBucketStoreUnreachable(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	s := NewRedis(rc.Client)
	require.NoError(t, rc.Client.Close())

	_, err := s.Allow(context.Background(), "k", 1, time.Minute)
	require.Error(t, err)
}

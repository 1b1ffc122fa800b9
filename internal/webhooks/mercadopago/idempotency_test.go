package mercadopagowebhook

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIdempotencyStore struct {
	keys map[string]string
}

func (s *stubIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := s.keys[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (s *stubIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.keys == nil {
		s.keys = map[string]string{}
	}
	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = "1"
	return true, nil
}

func (s *stubIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "lj:idempotency:" + scope + ":" + id
}

func (s *stubIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func TestIdempotencyGuardMarksAndReleases(t *testing.T) {
	store := &stubIdempotencyStore{}
	guard, err := NewIdempotencyGuard(store, time.Minute, "mercadopago")
	require.NoError(t, err)

	already, err := guard.CheckAndMark(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, already)

	already, err = guard.CheckAndMark(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, already)

	// Releasing lets the gateway's retry land after a processing failure.
	require.NoError(t, guard.Delete(context.Background(), "evt-1"))
	already, err = guard.CheckAndMark(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, already)
}

func TestIdempotencyGuardSeenDoesNotMark(t *testing.T) {
	store := &stubIdempotencyStore{}
	guard, err := NewIdempotencyGuard(store, time.Minute, "mercadopago")
	require.NoError(t, err)

	// Reads never claim the key.
	for i := 0; i < 2; i++ {
		seen, err := guard.Seen(context.Background(), "evt-1")
		require.NoError(t, err)
		assert.False(t, seen)
	}

	already, err := guard.CheckAndMark(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, already)

	seen, err := guard.Seen(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedis(client)
	ctx := context.Background()

	mock.ExpectGet("k").SetVal("v")
	value, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)

	mock.ExpectGet("missing").RedisNil()
	_, found, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedis(client)

	mock.ExpectSet("k", "v", time.Minute).SetVal("OK")
	require.NoError(t, store.Set(context.Background(), "k", "v", time.Minute))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisIncrementSetsTTLOnFirst(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedis(client)
	ctx := context.Background()

	mock.ExpectIncr("counter").SetVal(1)
	mock.ExpectExpire("counter", time.Minute).SetVal(true)
	count, err := store.Increment(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// Subsequent increments must not reset the TTL.
	mock.ExpectIncr("counter").SetVal(2)
	count, err = store.Increment(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisDelete(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedis(client)

	mock.ExpectDel("k").SetVal(1)
	require.NoError(t, store.Delete(context.Background(), "k"))
	require.NoError(t, mock.ExpectationsWereMet())
}

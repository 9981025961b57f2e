package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, "cadmium:")
	ctx := context.Background()

	mock.ExpectGet("cadmium:admin_blocked_ip:203.0.113.9").SetVal("1")
	mock.ExpectGet("cadmium:admin_blocked_ip:198.51.100.1").RedisNil()

	got, err := s.Get(ctx, "admin_blocked_ip:203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	_, err = s.Get(ctx, "admin_blocked_ip:198.51.100.1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SetAndDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, "cadmium:")
	ctx := context.Background()

	mock.ExpectSet("cadmium:admin_blocked_ip:203.0.113.9", "1", 900*time.Second).SetVal("OK")
	mock.ExpectDel("cadmium:admin_login_attempts:203.0.113.9").SetVal(1)

	require.NoError(t, s.Set(ctx, "admin_blocked_ip:203.0.113.9", []byte("1"), 900*time.Second))
	require.NoError(t, s.Delete(ctx, "admin_login_attempts:203.0.113.9"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Increment(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, "cadmium:")
	ctx := context.Background()

	mock.ExpectIncr("cadmium:admin_login_attempts:203.0.113.9").SetVal(3)
	mock.ExpectExpire("cadmium:admin_login_attempts:203.0.113.9", 900*time.Second).SetVal(true)

	n, err := s.Increment(ctx, "admin_login_attempts:203.0.113.9", 900*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_ErrorsAreWrapped(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, "")
	ctx := context.Background()

	boom := errors.New("connection refused")
	mock.ExpectGet("k").SetErr(boom)

	_, err := s.Get(ctx, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func TestConnectDbWithRetry_SucceedsAfterFailures(t *testing.T) {
	orig := newPool
	t.Cleanup(func() { newPool = orig })

	pool := &pgxpool.Pool{}
	attempts := 0
	newPool = func(context.Context, string) (*pgxpool.Pool, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("refused")
		}
		return pool, nil
	}

	got, err := connectDbWithRetry(context.Background(), "dsn", 5, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, pool, got)
	require.Equal(t, 3, attempts)
}

func TestConnectDbWithRetry_ExhaustsRetries(t *testing.T) {
	orig := newPool
	t.Cleanup(func() { newPool = orig })

	sentinel := errors.New("refused")
	newPool = func(context.Context, string) (*pgxpool.Pool, error) {
		return nil, sentinel
	}

	_, err := connectDbWithRetry(context.Background(), "dsn", 3, time.Millisecond)
	require.ErrorIs(t, err, sentinel)
	require.Contains(t, err.Error(), "after 3 attempts")
}

func TestConnectDbWithRetry_StopsOnCancel(t *testing.T) {
	orig := newPool
	t.Cleanup(func() { newPool = orig })

	ctx, cancel := context.WithCancel(context.Background())
	newPool = func(context.Context, string) (*pgxpool.Pool, error) {
		cancel()
		return nil, errors.New("refused")
	}

	_, err := connectDbWithRetry(ctx, "dsn", 5, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

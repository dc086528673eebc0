package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, "cc", time.Minute), mr
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return []string{"monsoon", "diwali"}, nil
	}

	var first []string
	require.NoError(t, store.FetchJSON(ctx, "active_promotions", &first, loader))
	var second []string
	require.NoError(t, store.FetchJSON(ctx, "active_promotions", &second, loader))

	require.Equal(t, 1, calls)
	require.Equal(t, first, second)
	require.True(t, mr.Exists("cc:active_promotions"))
}

func TestInvalidateForcesReload(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	var got int
	require.NoError(t, store.FetchJSON(ctx, Key("supplier_discounts", "SUP-1"), &got, loader))
	require.NoError(t, store.Invalidate(ctx, Key("supplier_discounts", "SUP-1")))
	require.False(t, mr.Exists("cc:supplier_discounts:SUP-1"))

	require.NoError(t, store.FetchJSON(ctx, Key("supplier_discounts", "SUP-1"), &got, loader))
	require.Equal(t, 2, got)
}

func TestFetchJSONLoaderErrorIsNotCached(t *testing.T) {
	store, mr := newTestStore(t)
	boom := errors.New("boom")

	var got int
	err := store.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("cc:k"))
}

func TestNilStoreCallsLoader(t *testing.T) {
	var store *Store
	var got string
	err := store.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) {
		return "direct", nil
	})
	require.NoError(t, err)
	require.Equal(t, "direct", got)
	require.NoError(t, store.Invalidate(context.Background(), "k"))
}

func TestFetchJSONServesLoaderWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	store := NewStore(client, "cc", time.Minute)
	mr.Close()

	calls := 0
	var got []string
	err := store.FetchJSON(context.Background(), "active_promotions", &got, func(context.Context) (any, error) {
		calls++
		return []string{"monsoon"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"monsoon"}, got)
	require.Equal(t, 1, calls)
}

func TestFetchJSONServesLoaderOnRedisErrorReply(t *testing.T) {
	store, mr := newTestStore(t)
	mr.SetError("READONLY replica")

	var got int
	err := store.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type cachedThing struct {
	Name string `json:"name"`
}

func TestAside_FetchesOnceThenHits(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			dest.Name = "alice"
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, rdb, UserKey("u1"), &first, UserTTL, fetch(&first)))
	assert.Equal(t, "alice", first.Name)
	assert.True(t, mr.Exists("user:u1"))

	var second cachedThing
	require.NoError(t, Aside(ctx, rdb, UserKey("u1"), &second, UserTTL, fetch(&second)))
	assert.Equal(t, "alice", second.Name)
	assert.Equal(t, 1, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	ctx := context.Background()

	var dest cachedThing
	err := Aside(ctx, rdb, UserKey("u2"), &dest, UserTTL, func() error { return errors.New("db down") })
	assert.Error(t, err)
	assert.False(t, mr.Exists("user:u2"))
}

func TestAside_WithoutRedis(t *testing.T) {
	var dest cachedThing
	err := Aside(context.Background(), nil, UserKey("u3"), &dest, UserTTL, func() error {
		dest.Name = "bob"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", dest.Name)
}

func TestInvalidateUser(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, rdb, UserKey("a"), cachedThing{Name: "a"}, UserTTL))
	require.NoError(t, SetJSON(ctx, rdb, UserKey("b"), cachedThing{Name: "b"}, UserTTL))

	InvalidateUser(ctx, rdb, "a", "b")
	assert.False(t, mr.Exists("user:a"))
	assert.False(t, mr.Exists("user:b"))
}

func TestSessionStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	store := NewSessionStorage(rdb)

	val, err := store.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, store.Set("abc", []byte("payload"), time.Hour))
	assert.True(t, mr.Exists("session:abc"))
	assert.True(t, mr.TTL("session:abc") > 0)

	val, err = store.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), val)

	require.NoError(t, store.Delete("abc"))
	assert.False(t, mr.Exists("session:abc"))

	require.NoError(t, store.Set("s1", []byte("1"), time.Hour))
	require.NoError(t, store.Set("s2", []byte("2"), time.Hour))
	require.NoError(t, mr.Set("user:keep", "x"))
	require.NoError(t, store.Reset())
	assert.False(t, mr.Exists("session:s1"))
	assert.False(t, mr.Exists("session:s2"))
	assert.True(t, mr.Exists("user:keep"))
	assert.NoError(t, store.Close())
}

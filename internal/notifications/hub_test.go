package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func receive(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.Send:
		return string(msg)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("timed out waiting for message")
		return ""
	}
}

func TestHub_BroadcastTargetsUser(t *testing.T) {
	hub := NewHub(nil)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	alice, err := hub.Register("alice", nil)
	require.NoError(t, err)
	bob, err := hub.Register("bob", nil)
	require.NoError(t, err)

	hub.Broadcast("alice", "hello")
	assert.Equal(t, "hello", receive(t, alice))
	assert.Empty(t, bob.Send)

	hub.BroadcastAll("everyone")
	assert.Equal(t, "everyone", receive(t, alice))
	assert.Equal(t, "everyone", receive(t, bob))
}

func TestHub_ShutdownClosesSendChannels(t *testing.T) {
	hub := NewHub(nil)

	alice, err := hub.Register("alice", nil)
	require.NoError(t, err)
	bob, err := hub.Register("bob", nil)
	require.NoError(t, err)
	hub.Broadcast("bob", "pending")

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.ConnectionCount())

	_, ok := <-alice.Send
	assert.False(t, ok, "alice's send channel should be closed")

	// Queued messages drain before the close is observed.
	assert.Equal(t, "pending", receive(t, bob))
	_, ok = <-bob.Send
	assert.False(t, ok)

	// The pump's deferred unregister after shutdown must not close twice.
	assert.NotPanics(t, func() { hub.UnregisterClient(alice) })
	assert.NoError(t, hub.Shutdown(context.Background()))

	_, err = hub.Register("carol", nil)
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub(nil)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	for range maxConnsPerUser {
		_, err := hub.Register("u1", nil)
		require.NoError(t, err)
	}
	_, err := hub.Register("u1", nil)
	assert.ErrorIs(t, err, ErrUserFull)
	assert.Equal(t, maxConnsPerUser, hub.ConnectionCount())
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	c, err := hub.Register("u1", nil)
	require.NoError(t, err)

	hub.UnregisterClient(c)
	hub.UnregisterClient(c)
	assert.Zero(t, hub.ConnectionCount())

	// Sending to a closed client must not panic.
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func TestHub_GracePeriodKeepsUserOnline(t *testing.T) {
	hub := NewHub(nil)
	hub.presence.offlineGrace = 40 * time.Millisecond
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	c, err := hub.Register("u1", nil)
	require.NoError(t, err)
	hub.UnregisterClient(c)

	assert.True(t, hub.IsOnline("u1"))
	assert.Eventually(t, func() bool {
		return !hub.IsOnline("u1")
	}, testEventuallyTimeout, testPollInterval)
}

func TestHub_MultiConnectionStaysOnline(t *testing.T) {
	hub := NewHub(nil)
	hub.presence.offlineGrace = 20 * time.Millisecond
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	a, err := hub.Register("u1", nil)
	require.NoError(t, err)
	_, err = hub.Register("u1", nil)
	require.NoError(t, err)

	hub.UnregisterClient(a)
	assert.Never(t, func() bool {
		return !hub.IsOnline("u1")
	}, 10*testPollInterval, testPollInterval)
}

func TestHub_PresenceMirroredInRedis(t *testing.T) {
	_, rdb := newTestRedis(t)
	hub := NewHub(rdb)
	hub.presence.offlineGrace = 20 * time.Millisecond
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	ctx := context.Background()

	c, err := hub.Register("u1", nil)
	require.NoError(t, err)

	member, err := rdb.SIsMember(ctx, defaultOnlineSetKey, "u1").Result()
	require.NoError(t, err)
	assert.True(t, member)

	// Another instance sees the user through Redis alone.
	other := NewConnectionManager(rdb, ConnectionManagerConfig{})
	t.Cleanup(other.Stop)
	assert.True(t, other.IsOnline(ctx, "u1"))

	hub.UnregisterClient(c)
	assert.Eventually(t, func() bool {
		return !other.IsOnline(ctx, "u1")
	}, testEventuallyTimeout, testPollInterval)
}

func TestConnectionManager_ReaperRemovesStalePresence(t *testing.T) {
	_, rdb := newTestRedis(t)
	m := NewConnectionManager(rdb, ConnectionManagerConfig{})
	t.Cleanup(m.Stop)
	ctx := context.Background()

	require.NoError(t, rdb.SAdd(ctx, defaultOnlineSetKey, "stale", "fresh").Err())
	require.NoError(t, rdb.Set(ctx, defaultLastSeenPrefix+"fresh", "1", time.Minute).Err())

	assert.Equal(t, 1, m.reapOnce(ctx))

	members, err := rdb.SMembers(ctx, defaultOnlineSetKey).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, members)
}

func TestHub_StartWiringDispatches(t *testing.T) {
	_, rdb := newTestRedis(t)
	hub := NewHub(rdb)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	alice, err := hub.Register("alice", nil)
	require.NoError(t, err)
	bob, err := hub.Register("bob", nil)
	require.NoError(t, err)

	require.NoError(t, n.PublishUser(ctx, "alice", `{"type":"user_followed"}`))
	assert.Equal(t, `{"type":"user_followed"}`, receive(t, alice))

	require.NoError(t, n.PublishBroadcast(ctx, `{"type":"post_created"}`))
	assert.Equal(t, `{"type":"post_created"}`, receive(t, alice))
	assert.Equal(t, `{"type":"post_created"}`, receive(t, bob))
}

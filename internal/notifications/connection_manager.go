package notifications

import (
	"context"
	"sync"
	"time"

	"chirp/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	defaultOnlineSetKey   = "ws:online_users"
	defaultLastSeenPrefix = "ws:last_seen:"
	defaultLastSeenTTL    = 90 * time.Second
	defaultOfflineGrace   = 5 * time.Second
	defaultReaperInterval = 60 * time.Second
)

// ConnectionManagerConfig overrides presence keys and timings. Zero values
// keep the defaults.
type ConnectionManagerConfig struct {
	OnlineSetKey       string
	LastSeenKeyPrefix  string
	LastSeenTTL        time.Duration
	OfflineGracePeriod time.Duration
	ReaperInterval     time.Duration
}

// ConnectionManager tracks which users hold a websocket connection. Local
// counts are authoritative for this process; Redis mirrors presence so other
// instances see it too. A user stays online for a grace period after their
// last connection closes so quick reconnects do not flap.
type ConnectionManager struct {
	rdb *redis.Client

	mu            sync.RWMutex
	localCounts   map[string]int
	offlineTimers map[string]*time.Timer

	onlineSetKey   string
	lastSeenPrefix string
	lastSeenTTL    time.Duration
	offlineGrace   time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewConnectionManager creates a manager and starts the Redis reaper when a
// client is given.
func NewConnectionManager(rdb *redis.Client, cfg ConnectionManagerConfig) *ConnectionManager {
	m := &ConnectionManager{
		rdb:            rdb,
		localCounts:    make(map[string]int),
		offlineTimers:  make(map[string]*time.Timer),
		onlineSetKey:   defaultOnlineSetKey,
		lastSeenPrefix: defaultLastSeenPrefix,
		lastSeenTTL:    defaultLastSeenTTL,
		offlineGrace:   defaultOfflineGrace,
		stopCh:         make(chan struct{}),
	}
	if cfg.OnlineSetKey != "" {
		m.onlineSetKey = cfg.OnlineSetKey
	}
	if cfg.LastSeenKeyPrefix != "" {
		m.lastSeenPrefix = cfg.LastSeenKeyPrefix
	}
	if cfg.LastSeenTTL > 0 {
		m.lastSeenTTL = cfg.LastSeenTTL
	}
	if cfg.OfflineGracePeriod > 0 {
		m.offlineGrace = cfg.OfflineGracePeriod
	}

	interval := defaultReaperInterval
	if cfg.ReaperInterval > 0 {
		interval = cfg.ReaperInterval
	}
	if m.rdb != nil {
		go m.reaperLoop(interval)
	}
	return m
}

// Stop ends the reaper and cancels pending offline transitions.
func (m *ConnectionManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.mu.Lock()
		for userID, timer := range m.offlineTimers {
			timer.Stop()
			delete(m.offlineTimers, userID)
		}
		m.mu.Unlock()
	})
}

// Register records a new connection for userID.
func (m *ConnectionManager) Register(ctx context.Context, userID string) {
	m.mu.Lock()
	if t, ok := m.offlineTimers[userID]; ok {
		t.Stop()
		delete(m.offlineTimers, userID)
	}
	m.localCounts[userID]++
	m.mu.Unlock()

	m.Touch(ctx, userID)
}

// Touch refreshes the user's last-seen key in Redis.
func (m *ConnectionManager) Touch(ctx context.Context, userID string) {
	if m.rdb == nil {
		return
	}
	pipe := m.rdb.Pipeline()
	pipe.SAdd(ctx, m.onlineSetKey, userID)
	pipe.Set(ctx, m.lastSeenKey(userID), time.Now().Unix(), m.lastSeenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		middleware.Logger.WarnContext(ctx, "presence touch failed", "user_id", userID, "error", err)
	}
}

// Unregister records a closed connection. When it was the user's last one the
// user goes offline after the grace period.
func (m *ConnectionManager) Unregister(_ context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := m.localCounts[userID]; n > 1 {
		m.localCounts[userID] = n - 1
		return
	}
	delete(m.localCounts, userID)

	if t, ok := m.offlineTimers[userID]; ok {
		t.Stop()
	}
	m.offlineTimers[userID] = time.AfterFunc(m.offlineGrace, func() {
		m.finalizeOffline(context.Background(), userID)
	})
}

// IsOnline reports whether the user has a connection here, is within the
// offline grace period, or was recently seen by another instance.
func (m *ConnectionManager) IsOnline(ctx context.Context, userID string) bool {
	m.mu.RLock()
	_, pending := m.offlineTimers[userID]
	local := m.localCounts[userID] > 0
	m.mu.RUnlock()
	if local || pending {
		return true
	}

	if m.rdb == nil {
		return false
	}
	n, err := m.rdb.Exists(ctx, m.lastSeenKey(userID)).Result()
	return err == nil && n > 0
}

func (m *ConnectionManager) finalizeOffline(ctx context.Context, userID string) {
	m.mu.Lock()
	delete(m.offlineTimers, userID)
	reconnected := m.localCounts[userID] > 0
	m.mu.Unlock()
	if reconnected || m.rdb == nil {
		return
	}

	if err := m.rdb.Del(ctx, m.lastSeenKey(userID)).Err(); err != nil {
		middleware.Logger.Warn("presence clear failed", "user_id", userID, "error", err)
	}
	_ = m.rdb.SRem(ctx, m.onlineSetKey, userID).Err()
}

// reapOnce drops set members whose last-seen key has expired.
func (m *ConnectionManager) reapOnce(ctx context.Context) int {
	if m.rdb == nil {
		return 0
	}
	members, err := m.rdb.SMembers(ctx, m.onlineSetKey).Result()
	if err != nil {
		return 0
	}

	reaped := 0
	for _, userID := range members {
		n, err := m.rdb.Exists(ctx, m.lastSeenKey(userID)).Result()
		if err != nil || n > 0 {
			continue
		}
		if err := m.rdb.SRem(ctx, m.onlineSetKey, userID).Err(); err == nil {
			reaped++
		}
	}
	return reaped
}

func (m *ConnectionManager) reaperLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.reapOnce(context.Background())
		}
	}
}

func (m *ConnectionManager) lastSeenKey(userID string) string {
	return m.lastSeenPrefix + userID
}

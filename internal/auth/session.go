package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/imagehoster/server/config"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	SessionCookie     = "session_id"

	sessionKeyPrefix = "session:"
)

// Identity is the snapshot of the signed-in user kept in a session.
type Identity struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// SessionStore keeps server-side sessions keyed by an opaque ID.
type SessionStore interface {
	Create(ctx context.Context, identity Identity) (string, error)
	// Get reports false when the session does not exist or has expired.
	Get(ctx context.Context, sessionID string) (Identity, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

// NewRedisClient creates and pings a Redis client.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// RedisSessionStore wraps Redis for session management.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (s *RedisSessionStore) Create(ctx context.Context, identity Identity) (string, error) {
	data, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}
	sid := uuid.New().String()
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sid, data, s.ttl).Err(); err != nil {
		return "", err
	}
	return sid, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (Identity, bool, error) {
	data, err := s.rdb.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, err
	}
	var identity Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return Identity{}, false, err
	}
	return identity, true, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

// MemorySessionStore keeps sessions in process memory. Sessions are lost
// on restart and not shared between instances.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memorySession
}

type memorySession struct {
	identity  Identity
	expiresAt time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memorySession),
	}
}

func (s *MemorySessionStore) Create(ctx context.Context, identity Identity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, session := range s.sessions {
		if !now.Before(session.expiresAt) {
			delete(s.sessions, id)
		}
	}

	sid := uuid.New().String()
	s.sessions[sid] = memorySession{identity: identity, expiresAt: now.Add(s.ttl)}
	return sid, nil
}

func (s *MemorySessionStore) Get(ctx context.Context, sessionID string) (Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return Identity{}, false, nil
	}
	if !s.now().Before(session.expiresAt) {
		delete(s.sessions, sessionID)
		return Identity{}, false, nil
	}
	return session.identity, true, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

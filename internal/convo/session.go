package convo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"woo-export-bot/internal/cache"
)

// State is the pending step of a chat.
type State string

const (
	StateIdle     State = "idle"
	StateComplete State = "complete"

	// onboarding
	StateAwaitingURL    State = "awaiting_url"
	StateAwaitingKey    State = "awaiting_key"
	StateAwaitingSecret State = "awaiting_secret"

	// price update and search
	StateAwaitingProductID State = "awaiting_product_id"
	StateAwaitingPrice     State = "awaiting_price"
	StateAwaitingSearch    State = "awaiting_search"

	// market pricing
	StateAwaitingTorobKey State = "awaiting_torob_key"
	StateAwaitingDiscount State = "awaiting_discount"
)

// Pending reports whether the state expects a reply.
func (s State) Pending() bool {
	switch s {
	case "", StateIdle, StateComplete:
		return false
	default:
		return true
	}
}

// Session is the per-chat conversation state.
type Session struct {
	State     State     `json:"state"`
	ProductID int64     `json:"product_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore persists sessions keyed by chat. Get returns an idle session
// when nothing is stored.
type SessionStore interface {
	Get(ctx context.Context, chatID int64) (Session, error)
	Put(ctx context.Context, chatID int64, s Session) error
	Clear(ctx context.Context, chatID int64) error
}

// MemorySessionStore keeps sessions in process.
type MemorySessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[int64]Session
}

// NewMemorySessionStore drops sessions untouched for longer than ttl.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]Session),
	}
}

func (m *MemorySessionStore) Get(_ context.Context, chatID int64) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		return Session{State: StateIdle}, nil
	}
	if m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl {
		delete(m.sessions, chatID)
		return Session{State: StateIdle}, nil
	}
	return s, nil
}

func (m *MemorySessionStore) Put(_ context.Context, chatID int64, s Session) error {
	s.UpdatedAt = m.now()
	m.mu.Lock()
	m.sessions[chatID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	delete(m.sessions, chatID)
	m.mu.Unlock()
	return nil
}

// RedisSessionStore shares sessions between instances.
type RedisSessionStore struct {
	redis *cache.Redis
	ttl   time.Duration
}

// NewRedisSessionStore expires sessions after ttl.
func NewRedisSessionStore(redis *cache.Redis, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{redis: redis, ttl: ttl}
}

func (r *RedisSessionStore) Get(ctx context.Context, chatID int64) (Session, error) {
	var s Session
	ok, err := r.redis.GetJSON(ctx, sessionKey(chatID), &s)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return Session{State: StateIdle}, nil
	}
	return s, nil
}

func (r *RedisSessionStore) Put(ctx context.Context, chatID int64, s Session) error {
	s.UpdatedAt = time.Now()
	if err := r.redis.SetJSON(ctx, sessionKey(chatID), s, r.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Clear(ctx context.Context, chatID int64) error {
	return r.redis.Delete(ctx, sessionKey(chatID))
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("convo:session:%d", chatID)
}

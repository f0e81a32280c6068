package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plantomart/plantomart-backend/pkg/enums"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	pmredis "github.com/plantomart/plantomart-backend/pkg/redis"
)

// SessionStore persists sessions. Update only succeeds while the stored state still
// equals expected, so two callers racing on one session cannot both advance it.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Update(ctx context.Context, expected enums.CheckoutState, session *Session) error
}

func sessionNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "checkout not found")
}

func stateConflict(current enums.CheckoutState) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("checkout is %s", current)).
		WithDetails(map[string]any{"state": current})
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[uuid.UUID]*Session{}}
}

func (m *MemoryStore) Create(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "checkout already exists")
	}
	m.sessions[session.ID] = session.clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sessionNotFound()
	}
	return s.clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, expected enums.CheckoutState, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[session.ID]
	if !ok {
		return sessionNotFound()
	}
	if current.State != expected {
		return stateConflict(current.State)
	}
	m.sessions[session.ID] = session.clone()
	return nil
}

type casStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	CompareAndSwap(ctx context.Context, key string, check func(current string) error, next string, ttl time.Duration) error
	CheckoutKey(id string) string
}

// RedisStore keeps sessions as JSON under pm:checkout:<id>.
type RedisStore struct {
	redis casStore
	ttl   time.Duration
}

func NewRedisStore(redis casStore, ttl time.Duration) (*RedisStore, error) {
	if redis == nil {
		return nil, errors.New("redis client required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{redis: redis, ttl: ttl}, nil
}

func (r *RedisStore) Create(ctx context.Context, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout session")
	}
	ok, err := r.redis.SetNX(ctx, r.redis.CheckoutKey(session.ID.String()), string(payload), r.ttl)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout session")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "checkout already exists")
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	raw, err := r.redis.Get(ctx, r.redis.CheckoutKey(id.String()))
	if err != nil {
		if errors.Is(err, pmredis.Nil) {
			return nil, sessionNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode checkout session")
	}
	return &session, nil
}

func (r *RedisStore) Update(ctx context.Context, expected enums.CheckoutState, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout session")
	}
	check := func(current string) error {
		if current == "" {
			return sessionNotFound()
		}
		var stored struct {
			State enums.CheckoutState `json:"state"`
		}
		if err := json.Unmarshal([]byte(current), &stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode checkout session")
		}
		if stored.State != expected {
			return stateConflict(stored.State)
		}
		return nil
	}
	err = r.redis.CompareAndSwap(ctx, r.redis.CheckoutKey(session.ID.String()), check, string(payload), r.ttl)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pmredis.ErrConflict):
		return pkgerrors.New(pkgerrors.CodeConflict, "checkout changed concurrently")
	case pkgerrors.As(err) != nil:
		return err
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update checkout session")
	}
}

package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plantomart/plantomart-backend/internal/orders"
	pmredis "github.com/plantomart/plantomart-backend/pkg/redis"
)

const (
	pendingList = "orders"
	deadList    = "dead"
)

// Entry is a paid checkout whose order still has to be recorded.
type Entry struct {
	Reference      string             `json:"reference"`
	CheckoutID     uuid.UUID          `json:"checkout_id"`
	PaymentOrderID string             `json:"payment_order_id"`
	PaymentID      string             `json:"payment_id"`
	Order          orders.CreateInput `json:"order"`
	Reason         string             `json:"reason"`
	Attempts       int                `json:"attempts"`
	FirstSeenAt    time.Time          `json:"first_seen_at"`
	EnqueuedAt     time.Time          `json:"enqueued_at"`
}

// MalformedEntryError carries a payload that could not be decoded.
type MalformedEntryError struct {
	Raw string
	Err error
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("malformed reconciliation entry: %v", e.Err)
}

func (e *MalformedEntryError) Unwrap() error { return e.Err }

// Queue is a pair of Redis lists: pending entries and dead letters.
type Queue struct {
	store   pmredis.Queue
	pending string
	dead    string
	now     func() time.Time
}

func NewQueue(store pmredis.Queue) (*Queue, error) {
	if store == nil {
		return nil, errors.New("redis queue required")
	}
	return &Queue{
		store:   store,
		pending: store.ReconciliationKey(pendingList),
		dead:    store.ReconciliationKey(deadList),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Enqueue appends entry to the pending list.
func (q *Queue) Enqueue(ctx context.Context, entry Entry) error {
	now := q.now()
	if entry.FirstSeenAt.IsZero() {
		entry.FirstSeenAt = now
	}
	entry.EnqueuedAt = now
	return q.push(ctx, q.pending, entry)
}

// Bury moves entry to the dead-letter list.
func (q *Queue) Bury(ctx context.Context, entry Entry) error {
	entry.EnqueuedAt = q.now()
	return q.push(ctx, q.dead, entry)
}

func (q *Queue) buryRaw(ctx context.Context, raw string) error {
	return q.store.LPush(ctx, q.dead, raw)
}

func (q *Queue) push(ctx context.Context, key string, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode reconciliation entry: %w", err)
	}
	return q.store.LPush(ctx, key, string(payload))
}

type lengther interface {
	LLen(ctx context.Context, key string) (int64, error)
}

// Depth reports how many entries are pending and how many were buried.
func (q *Queue) Depth(ctx context.Context) (pending, dead int64, err error) {
	l, ok := q.store.(lengther)
	if !ok {
		return 0, 0, errors.New("queue store cannot report length")
	}
	if pending, err = l.LLen(ctx, q.pending); err != nil {
		return 0, 0, fmt.Errorf("pending length: %w", err)
	}
	if dead, err = l.LLen(ctx, q.dead); err != nil {
		return 0, 0, fmt.Errorf("dead-letter length: %w", err)
	}
	return pending, dead, nil
}

// Dequeue blocks up to timeout for the oldest pending entry. It returns (nil, nil) when
// nothing arrived in time.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Entry, error) {
	raw, err := q.store.BRPop(ctx, timeout, q.pending)
	if err != nil {
		if errors.Is(err, pmredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, &MalformedEntryError{Raw: raw, Err: err}
	}
	return &entry, nil
}

package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/plantomart/plantomart-backend/internal/orders"
	dbpkg "github.com/plantomart/plantomart-backend/pkg/db"
	"github.com/plantomart/plantomart-backend/pkg/db/models"
	"github.com/plantomart/plantomart-backend/pkg/enums"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	"github.com/plantomart/plantomart-backend/pkg/outbox"
	pmredis "github.com/plantomart/plantomart-backend/pkg/redis"
)

type memoryLists struct {
	mu    sync.Mutex
	lists map[string][]string
}

func newMemoryLists() *memoryLists {
	return &memoryLists{lists: map[string][]string{}}
}

func (m *memoryLists) LPush(_ context.Context, key string, values ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.lists[key] = append([]string{fmt.Sprint(v)}, m.lists[key]...)
	}
	return nil
}

func (m *memoryLists) BRPop(_ context.Context, _ time.Duration, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	if len(list) == 0 {
		return "", pmredis.Nil
	}
	last := list[len(list)-1]
	m.lists[key] = list[:len(list)-1]
	return last, nil
}

func (m *memoryLists) ReconciliationKey(name string) string {
	return "pm:reconciliation:" + name
}

func (m *memoryLists) LLen(_ context.Context, key string) (int64, error) {
	return int64(m.len(key)), nil
}

func (m *memoryLists) len(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lists[key])
}

type scriptedOrders struct {
	errs  []error
	calls int
	got   []orders.CreateInput
}

func (s *scriptedOrders) Create(_ context.Context, input orders.CreateInput) (*orders.CreateResult, error) {
	s.got = append(s.got, input)
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	return &orders.CreateResult{Order: orders.OrderDTO{ID: uuid.New()}}, nil
}

type harness struct {
	lists  *memoryLists
	queue  *Queue
	orders *scriptedOrders
	worker *Worker
	db     *gorm.DB
}

func newHarness(t *testing.T, maxAttempts int, errs ...error) *harness {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))

	lists := newMemoryLists()
	queue, err := NewQueue(lists)
	require.NoError(t, err)
	creator := &scriptedOrders{errs: errs}
	worker, err := NewWorker(WorkerParams{
		Queue:        queue,
		Orders:       creator,
		Tx:           dbpkg.NewFromGorm(conn),
		Outbox:       outbox.NewService(outbox.NewRepository(conn), nil),
		MaxAttempts:  maxAttempts,
		BlockTimeout: time.Millisecond,
	})
	require.NoError(t, err)
	return &harness{lists: lists, queue: queue, orders: creator, worker: worker, db: conn}
}

func sampleEntry() Entry {
	return Entry{
		Reference:      "PM-1A2B3C4D",
		CheckoutID:     uuid.New(),
		PaymentOrderID: "order_1",
		PaymentID:      "pay_1",
		Order:          orders.CreateInput{UserID: uuid.NewString(), VendorID: uuid.NewString(), PaymentID: "pay_1"},
		Reason:         "order service unavailable",
	}
}

func (h *harness) reconciliationEvents(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, h.db.Where("event_type = ?", enums.EventOrderReconciliationRequired).Find(&rows).Error)
	return rows
}

func TestQueueIsFIFOAndStampsTimes(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	first := sampleEntry()
	second := sampleEntry()
	require.NoError(t, h.queue.Enqueue(ctx, first))
	require.NoError(t, h.queue.Enqueue(ctx, second))

	got, err := h.queue.Dequeue(ctx, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, first.CheckoutID, got.CheckoutID)
	require.False(t, got.FirstSeenAt.IsZero())
	require.False(t, got.EnqueuedAt.IsZero())

	got, err = h.queue.Dequeue(ctx, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, second.CheckoutID, got.CheckoutID)

	got, err = h.queue.Dequeue(ctx, time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestWorkerRecordsOrder(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	require.NoError(t, h.queue.Enqueue(ctx, sampleEntry()))

	processed, err := h.worker.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.Equal(t, 1, h.orders.calls)
	require.Equal(t, "pay_1", h.orders.got[0].PaymentID)
	require.Zero(t, h.lists.len("pm:reconciliation:dead"))
}

func TestWorkerRetriesThenBuries(t *testing.T) {
	unavailable := pkgerrors.New(pkgerrors.CodeDependency, "db down")
	h := newHarness(t, 3, unavailable, unavailable, unavailable)
	ctx := context.Background()
	entry := sampleEntry()
	require.NoError(t, h.queue.Enqueue(ctx, entry))

	processed, err := h.worker.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, processed)
	require.Equal(t, 3, h.orders.calls)
	require.Zero(t, h.lists.len("pm:reconciliation:orders"))
	require.Equal(t, 1, h.lists.len("pm:reconciliation:dead"))

	events := h.reconciliationEvents(t)
	require.Len(t, events, 1)
	require.Equal(t, entry.CheckoutID, events[0].AggregateID)
	require.Equal(t, enums.AggregateCheckout, events[0].AggregateType)
}

func TestWorkerBuriesPermanentFailuresImmediately(t *testing.T) {
	h := newHarness(t, 5, pkgerrors.New(pkgerrors.CodeNotFound, "User not found"))
	ctx := context.Background()
	require.NoError(t, h.queue.Enqueue(ctx, sampleEntry()))

	_, err := h.worker.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, h.orders.calls)
	require.Equal(t, 1, h.lists.len("pm:reconciliation:dead"))
	require.Len(t, h.reconciliationEvents(t), 1)
}

func TestWorkerDeadLettersMalformedPayloads(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	require.NoError(t, h.lists.LPush(ctx, "pm:reconciliation:orders", "{garbage"))

	_, err := h.worker.Drain(ctx)
	var malformed *MalformedEntryError
	require.True(t, errors.As(err, &malformed))
	require.Equal(t, 1, h.lists.len("pm:reconciliation:dead"))
	require.Zero(t, h.orders.calls)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
}

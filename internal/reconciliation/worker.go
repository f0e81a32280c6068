package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/plantomart/plantomart-backend/internal/orders"
	"github.com/plantomart/plantomart-backend/pkg/enums"
	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	"github.com/plantomart/plantomart-backend/pkg/logger"
	"github.com/plantomart/plantomart-backend/pkg/metrics"
	"github.com/plantomart/plantomart-backend/pkg/outbox"
)

const jobName = "order_reconciliation"

type orderCreator interface {
	Create(ctx context.Context, input orders.CreateInput) (*orders.CreateResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type WorkerParams struct {
	Queue        *Queue
	Orders       orderCreator
	Tx           txRunner
	Outbox       outbox.Emitter
	Logger       *logger.Logger
	Metrics      *metrics.JobMetrics
	MaxAttempts  int
	BlockTimeout time.Duration
	RetryDelay   time.Duration
}

// Worker re-submits recorded-payment orders. Payment is never re-attempted; only the
// order write is retried.
type Worker struct {
	queue        *Queue
	orders       orderCreator
	tx           txRunner
	outbox       outbox.Emitter
	logg         *logger.Logger
	metrics      *metrics.JobMetrics
	maxAttempts  int
	blockTimeout time.Duration
	retryDelay   time.Duration
}

func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Queue == nil {
		return nil, fmt.Errorf("queue required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Tx == nil || params.Outbox == nil {
		return nil, fmt.Errorf("transaction runner and outbox required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	block := params.BlockTimeout
	if block <= 0 {
		block = 5 * time.Second
	}
	return &Worker{
		queue:        params.Queue,
		orders:       params.Orders,
		tx:           params.Tx,
		outbox:       params.Outbox,
		logg:         logg,
		metrics:      params.Metrics,
		maxAttempts:  maxAttempts,
		blockTimeout: block,
		retryDelay:   params.RetryDelay,
	}, nil
}

// Run processes entries until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logg.Info(ctx, "reconciliation worker started")
	for {
		if ctx.Err() != nil {
			w.logg.Info(ctx, "reconciliation worker stopping")
			return nil
		}
		_, retry, err := w.ProcessOne(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logg.Error(ctx, "reconciliation iteration failed", err)
			retry = true
		}
		if retry && w.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.retryDelay):
			}
		}
	}
}

// Drain processes until the pending list is empty and returns every error it met.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	var (
		processed int
		errs      error
	)
	for {
		ok, _, err := w.ProcessOne(ctx)
		if err != nil {
			errs = multierr.Append(errs, err)
			if ctx.Err() != nil {
				return processed, errs
			}
			continue
		}
		if !ok {
			return processed, errs
		}
		processed++
	}
}

// ProcessOne pops at most one entry. processed is false when the queue stayed empty for
// the block timeout; retry is true when the entry went back on the queue.
func (w *Worker) ProcessOne(ctx context.Context) (processed bool, retry bool, err error) {
	entry, err := w.queue.Dequeue(ctx, w.blockTimeout)
	if err != nil {
		var malformed *MalformedEntryError
		if errors.As(err, &malformed) {
			w.metrics.IncFailure(jobName)
			if buryErr := w.queue.buryRaw(ctx, malformed.Raw); buryErr != nil {
				return true, false, multierr.Combine(err, buryErr)
			}
			return true, false, err
		}
		return false, false, err
	}
	if entry == nil {
		return false, false, nil
	}
	retry, err = w.handle(ctx, *entry)
	return true, retry, err
}

func (w *Worker) handle(ctx context.Context, entry Entry) (bool, error) {
	start := time.Now()
	defer func() { w.metrics.ObserveDuration(jobName, time.Since(start)) }()

	logCtx := w.logg.WithFields(w.logg.WithCheckoutID(ctx, entry.CheckoutID.String()), map[string]any{
		"reference":  entry.Reference,
		"payment_id": entry.PaymentID,
		"attempts":   entry.Attempts,
	})

	res, err := w.orders.Create(ctx, entry.Order)
	if err == nil {
		w.metrics.IncSuccess(jobName)
		w.logg.Info(w.logg.WithFields(logCtx, map[string]any{
			"order_id": res.Order.ID.String(),
			"replayed": res.Replayed,
		}), "reconciled order recorded")
		return false, nil
	}

	w.metrics.IncFailure(jobName)
	entry.Attempts++
	entry.Reason = err.Error()

	if permanent(err) || entry.Attempts >= w.maxAttempts {
		w.logg.Error(logCtx, "order reconciliation gave up", err)
		return false, w.giveUp(ctx, entry)
	}
	w.logg.Warn(logCtx, "order reconciliation attempt failed, requeueing")
	if err := w.queue.Enqueue(ctx, entry); err != nil {
		return false, fmt.Errorf("requeue reconciliation entry: %w", err)
	}
	return true, nil
}

func (w *Worker) giveUp(ctx context.Context, entry Entry) error {
	var errs error
	if err := w.queue.Bury(ctx, entry); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("bury reconciliation entry: %w", err))
	}
	err := w.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return w.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderReconciliationRequired,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   entry.CheckoutID,
			Actor:         &outbox.ActorRef{Source: "reconciliation"},
			Data: outbox.OrderReconciliationRequiredEvent{
				Reference:      entry.Reference,
				CheckoutID:     entry.CheckoutID.String(),
				PaymentOrderID: entry.PaymentOrderID,
				PaymentID:      entry.PaymentID,
				UserID:         entry.Order.UserID,
				Reason:         entry.Reason,
				Attempts:       entry.Attempts,
				FirstSeenAt:    entry.FirstSeenAt,
			},
		})
	})
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("emit reconciliation event: %w", err))
	}
	return errs
}

// permanent reports failures another attempt cannot fix.
func permanent(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeConflict:
		return true
	}
	return false
}

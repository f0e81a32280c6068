package maintenance

import (
	"context"
	"fmt"

	"github.com/plantomart/plantomart-backend/pkg/logger"
)

type queueDepth interface {
	Depth(ctx context.Context) (pending, dead int64, err error)
}

// ReconciliationBacklogJob reports the reconciliation queue. Buried entries are paid
// checkouts with no order and need an operator.
type ReconciliationBacklogJob struct {
	logg         *logger.Logger
	queue        queueDepth
	pendingAlert int64
}

func NewReconciliationBacklogJob(logg *logger.Logger, queue queueDepth, pendingAlert int64) (*ReconciliationBacklogJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if queue == nil {
		return nil, fmt.Errorf("reconciliation queue required")
	}
	return &ReconciliationBacklogJob{logg: logg, queue: queue, pendingAlert: pendingAlert}, nil
}

func (j *ReconciliationBacklogJob) Name() string { return "reconciliation_backlog" }

func (j *ReconciliationBacklogJob) Run(ctx context.Context) error {
	pending, dead, err := j.queue.Depth(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation depth: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"pending": pending, "dead": dead})
	switch {
	case dead > 0:
		j.logg.Warn(logCtx, "reconciliation dead letters need manual review")
	case j.pendingAlert > 0 && pending >= j.pendingAlert:
		j.logg.Warn(logCtx, "reconciliation backlog above threshold")
	default:
		j.logg.Info(logCtx, "reconciliation backlog checked")
	}
	return nil
}

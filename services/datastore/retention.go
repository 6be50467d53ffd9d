package datastore

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/repositories"
	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
)

// RetentionSweeper permanently removes soft-deleted rows once they age past
// the retention window. It runs as a background loop and sweeps every
// registered table inside one transaction per table.
type RetentionSweeper struct {
	service  *Service
	registry *accesscontrol.Registry
	txMgr    repositories.TransactionManager
	interval time.Duration
	keepFor  time.Duration
	logger   *zap.Logger
}

// NewRetentionSweeper creates a sweeper. interval is how often to sweep,
// keepFor how long soft-deleted rows are retained before removal.
func NewRetentionSweeper(service *Service, registry *accesscontrol.Registry, txMgr repositories.TransactionManager, interval, keepFor time.Duration, logger *zap.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		service:  service,
		registry: registry,
		txMgr:    txMgr,
		interval: interval,
		keepFor:  keepFor,
		logger:   logger,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (r *RetentionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			if err := r.SweepOnce(ctx); err != nil {
				r.logger.Error("retention sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce removes expired soft-deleted rows from every registered table.
// A failure on one table does not stop the others.
func (r *RetentionSweeper) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.keepFor)

	var lastErr error
	for _, table := range r.registry.Tables() {
		err := r.txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
			removed, err := r.service.HardDeleteBy(txCtx, table, accesscontrol.RawQuery{
				"deleted_at": map[string]interface{}{"_type": "LessThan", "value": cutoff},
			})
			if err != nil {
				return err
			}
			if removed > 0 {
				r.logger.Info("expired rows removed",
					zap.String("table", table), zap.Int64("count", removed))
			}
			return nil
		})
		if err != nil {
			r.logger.Error("failed to sweep table",
				zap.String("table", table), zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

package workers

import (
	"context"

	"disaster_backend/internal/logger"
	"disaster_backend/internal/services"

	"gorm.io/gorm"
)

// maxBatchesPerRun - сколько полных пачек разбирается за один тик
const maxBatchesPerRun = 10

// OutboxWorker разбирает задачи fan-out, записанные вместе с изменением отчета
type OutboxWorker struct {
	db          *gorm.DB
	outbox      services.OutboxService
	claimLimit  int
	maxAttempts int
}

func NewOutboxWorker(db *gorm.DB, outbox services.OutboxService, claimLimit, maxAttempts int) *OutboxWorker {
	return &OutboxWorker{
		db:          db,
		outbox:      outbox,
		claimLimit:  claimLimit,
		maxAttempts: maxAttempts,
	}
}

func (w *OutboxWorker) Name() string { return "outbox" }

// Run забирает пачки, пока они приходят полными и без сбоев.
// Упавшие задачи повторяются на следующих тиках, одна попытка за тик.
func (w *OutboxWorker) Run(ctx context.Context) error {
	var totalDone, totalFailed int
	for i := 0; i < maxBatchesPerRun; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, failed, err := w.outbox.ProcessBatch(withContext(w.db, ctx), w.claimLimit, w.maxAttempts)
		if err != nil {
			return err
		}
		totalDone += done
		totalFailed += failed

		if failed > 0 || done < w.claimLimit {
			break
		}
	}

	if totalDone+totalFailed > 0 {
		logger.Info("Outbox jobs processed", "worker", w.Name(), "done", totalDone, "failed", totalFailed)
	}
	return nil
}

func withContext(db *gorm.DB, ctx context.Context) *gorm.DB {
	if db == nil {
		return nil
	}
	return db.WithContext(ctx)
}

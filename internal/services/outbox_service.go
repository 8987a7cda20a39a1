package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"disaster_backend/internal/logger"
	"disaster_backend/internal/metrics"
	"disaster_backend/internal/models"
	"disaster_backend/internal/repositories"

	"gorm.io/gorm"
)

// OutboxService выполняет fan-out, отложенный в таблицу fanout_jobs
type OutboxService interface {
	// ProcessBatch забирает до limit задач (SKIP LOCKED) и выполняет их в одной транзакции.
	// Каждая задача под своим savepoint, сбой одной не откатывает остальные.
	ProcessBatch(db *gorm.DB, limit, maxAttempts int) (done int, failed int, err error)
	ProcessJob(db *gorm.DB, job *models.FanoutJob) error
}

type OutboxServiceImpl struct {
	outboxRepo          repositories.OutboxRepository
	reportRepo          repositories.ReportRepository
	notificationService NotificationService
}

func NewOutboxService(
	outboxRepo repositories.OutboxRepository,
	reportRepo repositories.ReportRepository,
	notificationService NotificationService,
) OutboxService {
	return &OutboxServiceImpl{
		outboxRepo:          outboxRepo,
		reportRepo:          reportRepo,
		notificationService: notificationService,
	}
}

func (s *OutboxServiceImpl) ProcessBatch(db *gorm.DB, limit, maxAttempts int) (int, int, error) {
	var done, failed int

	err := db.Transaction(func(tx *gorm.DB) error {
		jobs, err := s.outboxRepo.ClaimPending(tx, limit)
		if err != nil {
			return fmt.Errorf("claim outbox jobs: %w", err)
		}

		for i := range jobs {
			job := &jobs[i]
			savepoint := fmt.Sprintf("fanout_job_%d", i)
			if err := tx.SavePoint(savepoint).Error; err != nil {
				return err
			}

			if procErr := s.ProcessJob(tx, job); procErr != nil {
				if err := tx.RollbackTo(savepoint).Error; err != nil {
					return err
				}
				metrics.FanoutFailures.WithLabelValues(string(job.Kind)).Inc()
				logger.WorkerLog("outbox", "process_job", procErr, "job_id", job.ID, "attempt", job.Attempts+1)
				if err := s.outboxRepo.MarkFailed(tx, job, procErr, maxAttempts); err != nil {
					return err
				}
				failed++
				continue
			}

			if err := s.outboxRepo.MarkDone(tx, job.ID); err != nil {
				return err
			}
			done++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return done, failed, nil
}

// ProcessJob - отчет мог быть удален после постановки задачи, тогда делать нечего
func (s *OutboxServiceImpl) ProcessJob(db *gorm.DB, job *models.FanoutJob) error {
	report, err := s.reportRepo.FindByID(db, job.ReportID)
	if errors.Is(err, repositories.ErrReportNotFound) {
		logger.WorkerLog("outbox", "skip_missing_report", nil, "job_id", job.ID, "report_id", job.ReportID)
		return nil
	}
	if err != nil {
		return err
	}

	switch job.Kind {
	case models.FanoutKindReportCreated:
		_, err = s.notificationService.NotifyAllUsers(db, report)
		return err

	case models.FanoutKindStatusChanged:
		var payload models.StatusChangePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode status change payload: %w", err)
		}
		_, err = s.notificationService.NotifyStatusChange(db, report, payload.Change, payload.DeclinedBy)
		return err

	default:
		return fmt.Errorf("unknown fanout job kind %q", job.Kind)
	}
}

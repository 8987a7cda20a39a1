package repositories

import (
	"time"

	"disaster_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	retryBaseDelay = 30 * time.Second
	retryMaxDelay  = 30 * time.Minute
)

// RetryDelay - пауза перед следующей попыткой: 30s, 1m, 2m ... не больше 30m
func RetryDelay(attempts int) time.Duration {
	delay := retryBaseDelay
	for i := 1; i < attempts && delay < retryMaxDelay; i++ {
		delay *= 2
	}
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

type OutboxRepository interface {
	Enqueue(db *gorm.DB, job *models.FanoutJob) error
	// ClaimPending блокирует задачи до конца транзакции; вызывать внутри db.Transaction
	ClaimPending(db *gorm.DB, limit int) ([]models.FanoutJob, error)
	MarkDone(db *gorm.DB, id string) error
	MarkFailed(db *gorm.DB, job *models.FanoutJob, cause error, maxAttempts int) error
}

type OutboxRepositoryImpl struct{}

func NewOutboxRepository() OutboxRepository {
	return &OutboxRepositoryImpl{}
}

func (r *OutboxRepositoryImpl) Enqueue(db *gorm.DB, job *models.FanoutJob) error {
	if job.Status == "" {
		job.Status = models.FanoutStatusPending
	}
	return db.Create(job).Error
}

// ClaimPending - FOR UPDATE SKIP LOCKED, чтобы несколько инстансов не брали одну задачу.
// Упавшие задачи ждут next_attempt_at.
func (r *OutboxRepositoryImpl) ClaimPending(db *gorm.DB, limit int) ([]models.FanoutJob, error) {
	var jobs []models.FanoutJob
	err := db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.FanoutStatusPending).
		Where("(next_attempt_at IS NULL OR next_attempt_at <= ?)", time.Now().UTC()).
		Order("created_at").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *OutboxRepositoryImpl) MarkDone(db *gorm.DB, id string) error {
	now := time.Now().UTC()
	return db.Model(&models.FanoutJob{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       models.FanoutStatusDone,
		"processed_at": now,
		"updated_at":   now,
	}).Error
}

// MarkFailed увеличивает attempts и откладывает задачу на RetryDelay.
// После maxAttempts задача больше не берется.
func (r *OutboxRepositoryImpl) MarkFailed(db *gorm.DB, job *models.FanoutJob, cause error, maxAttempts int) error {
	now := time.Now().UTC()
	job.Attempts++
	job.LastError = cause.Error()

	updates := map[string]interface{}{
		"attempts":   job.Attempts,
		"last_error": job.LastError,
		"updated_at": now,
	}
	if job.Attempts >= maxAttempts {
		job.Status = models.FanoutStatusFailed
		updates["status"] = job.Status
		updates["processed_at"] = now
	} else {
		next := now.Add(RetryDelay(job.Attempts))
		job.NextAttemptAt = &next
		updates["next_attempt_at"] = next
	}

	return db.Model(&models.FanoutJob{}).Where("id = ?", job.ID).Updates(updates).Error
}

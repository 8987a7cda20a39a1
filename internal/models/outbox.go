package models

import (
	"time"

	"gorm.io/datatypes"
)

// FanoutJob - строка outbox. Пишется в одной транзакции с отчетом,
// обрабатывается воркером минимум один раз.
type FanoutJob struct {
	BaseModel
	ReportID    string         `gorm:"type:uuid;not null;index"`
	Category    Category       `gorm:"type:varchar(20);not null"`
	Kind        FanoutKind     `gorm:"type:varchar(32);not null"`
	Payload     datatypes.JSON `gorm:"type:jsonb"`
	Status      FanoutStatus   `gorm:"type:varchar(16);not null;default:'pending';index"`
	Attempts    int            `gorm:"not null;default:0"`
	LastError   string
	// NextAttemptAt - раньше этого времени задача не берется повторно
	NextAttemptAt *time.Time
	ProcessedAt   *time.Time
}

func (FanoutJob) TableName() string {
	return "fanout_jobs"
}

// StatusChangePayload - payload задачи status_changed
type StatusChangePayload struct {
	Change     StatusChange `json:"change"`
	DeclinedBy string       `json:"declinedBy,omitempty"`
}

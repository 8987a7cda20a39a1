package models

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	BaseModel
	UserID  string         `gorm:"type:uuid;not null;index" json:"userId"`
	Type    string         `gorm:"not null" json:"type"` // "disaster", "report_status"
	Title   string         `gorm:"not null" json:"title"`
	Message string         `json:"message"`
	Data    datatypes.JSON `gorm:"type:jsonb" json:"data"` // {"reportId": "...", "category": "..."}
	IsRead  bool           `gorm:"column:is_read;default:false" json:"read"`
	ReadAt  *time.Time     `json:"readAt,omitempty"`
}

// DisasterNotificationData - payload уведомления о новом отчете
type DisasterNotificationData struct {
	ReportID    string   `json:"reportId"`
	Category    Category `json:"category"`
	Location    Location `json:"location"`
	DangerLevel int      `json:"dangerLevel"`
}

type StatusNotificationData struct {
	ReportID string        `json:"reportId"`
	Category Category      `json:"category"`
	Status   ReportStatus  `json:"status"`
	Action   HistoryAction `json:"action"`
	ActorID  string        `json:"actorId"`
	Note     string        `json:"note,omitempty"`
}

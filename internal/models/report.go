package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MinDangerLevel = 1
	MaxDangerLevel = 10
)

// Report - один инцидент любой категории. Категория - дискриминант,
// таблица и обработчики общие для всех категорий.
type Report struct {
	BaseModel
	Category           Category                          `gorm:"type:varchar(20);not null" json:"category"`
	Name               string                            `gorm:"not null" json:"name"`
	Description        string                            `json:"description,omitempty"`
	Latitude           float64                           `gorm:"not null" json:"latitude"`
	Longitude          float64                           `gorm:"not null" json:"longitude"`
	DangerLevel        int                               `gorm:"not null" json:"dangerLevel"`
	Status             ReportStatus                      `gorm:"type:varchar(20);not null" json:"status"`
	Visible            bool                              `gorm:"not null" json:"visible"`
	AssignedResponders datatypes.JSONSlice[Assignment]   `gorm:"type:jsonb;not null" json:"assignedResponders"`
	StatusHistory      datatypes.JSONSlice[StatusChange] `gorm:"type:jsonb;not null" json:"statusHistory"`
	CreatedBy          string                            `json:"createdBy,omitempty"`
	Version            int                               `gorm:"not null" json:"version"`
	Source             ReportSource                      `gorm:"type:varchar(20);not null" json:"source"`
	ExternalID         *string                           `json:"externalId,omitempty"`
	Tags               pq.StringArray                    `gorm:"type:text[]" json:"tags"`
}

// Assignment - связь отчета с назначенным спасателем
type Assignment struct {
	ResponderID          string    `json:"responderId"`
	ResponderRole        UserRole  `json:"responderRole"`
	DisplayName          string    `json:"displayName"`
	ContactInfo          string    `json:"contactInfo"`
	DistanceAtAssignment *float64  `json:"distanceAtAssignment,omitempty"`
	AssignedAt           time.Time `json:"assignedAt"`
}

// StatusChange - запись истории. История только дописывается.
type StatusChange struct {
	Status        ReportStatus  `json:"status"`
	Action        HistoryAction `json:"action"`
	ChangedBy     string        `json:"changedBy"`
	ChangedByRole UserRole      `json:"changedByRole"`
	Note          string        `json:"note,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// BeforeCreate выставляет значения, которые не должны зависеть от вызывающего кода
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ReportStatusPending
	}
	if r.Source == "" {
		r.Source = ReportSourceUser
	}
	if r.Version == 0 {
		r.Version = 1
	}
	if r.AssignedResponders == nil {
		r.AssignedResponders = datatypes.JSONSlice[Assignment]{}
	}
	if r.StatusHistory == nil {
		r.StatusHistory = datatypes.JSONSlice[StatusChange]{}
	}
	if r.Tags == nil {
		r.Tags = pq.StringArray{}
	}
	return nil
}

func (r *Report) Location() Location {
	return Location{Latitude: r.Latitude, Longitude: r.Longitude}
}

func (r *Report) IsResolved() bool {
	return r.Status == ReportStatusResolved
}

func (r *Report) assignmentIndex(responderID string) int {
	for i, a := range r.AssignedResponders {
		if a.ResponderID == responderID {
			return i
		}
	}
	return -1
}

func (r *Report) IsAssigned(responderID string) bool {
	return r.assignmentIndex(responderID) >= 0
}

func (r *Report) ResponderIDs() []string {
	ids := make([]string, 0, len(r.AssignedResponders))
	for _, a := range r.AssignedResponders {
		ids = append(ids, a.ResponderID)
	}
	return ids
}

// FieldErrors - ошибки валидации по полям (поле -> сообщение)
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Validate проверяет отчет вне HTTP слоя (ингест, тесты)
func (r *Report) Validate() error {
	errs := FieldErrors{}

	if !r.Category.IsValid() {
		errs["category"] = "Unknown disaster category"
	}
	if strings.TrimSpace(r.Name) == "" {
		errs["name"] = "This field is required"
	}
	if r.DangerLevel < MinDangerLevel || r.DangerLevel > MaxDangerLevel {
		errs["dangerLevel"] = fmt.Sprintf("Must be between %d and %d", MinDangerLevel, MaxDangerLevel)
	}
	if r.Latitude < -90 || r.Latitude > 90 {
		errs["latitude"] = "Must be a valid latitude"
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		errs["longitude"] = "Must be a valid longitude"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

package dto

import (
	"disaster_backend/internal/models"
)

// ---------------- Requests ----------------

type LocationInput struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

type CreateReportRequest struct {
	Name        string         `json:"name" validate:"required,max=200"`
	Description string         `json:"description" validate:"omitempty,max=5000"`
	Location    *LocationInput `json:"location" validate:"required"`
	DangerLevel *int           `json:"dangerLevel" validate:"required,min=1,max=10"`
	Visible     *bool          `json:"visible,omitempty"`
	Tags        []string       `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50"`
}

// UpdateReportRequest - PUT, полный набор полей.
// AssignedResponders: nil - назначения не трогаем, иначе должен содержать всех текущих.
type UpdateReportRequest struct {
	Name               string         `json:"name" validate:"required,max=200"`
	Description        string         `json:"description" validate:"omitempty,max=5000"`
	Location           *LocationInput `json:"location" validate:"required"`
	DangerLevel        *int           `json:"dangerLevel" validate:"required,min=1,max=10"`
	Visible            *bool          `json:"visible,omitempty"`
	Tags               []string       `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50"`
	AssignedResponders *[]string      `json:"assignedResponders,omitempty" validate:"omitempty,dive,uuid"`
}

type ListReportsQuery struct {
	IncludeHidden bool   `form:"includeHidden"`
	Tag           string `form:"tag" validate:"omitempty,max=50"`
}

// ---------------- Responses ----------------

// ReportResult - отчет плюс предупреждения о неудавшихся побочных эффектах
type ReportResult struct {
	Report   *models.Report
	Warnings []string
}

func (r *ReportResult) Warn(code string) {
	for _, w := range r.Warnings {
		if w == code {
			return
		}
	}
	r.Warnings = append(r.Warnings, code)
}

type ReportListResponse struct {
	Reports  []models.Report `json:"reports"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// IngestResult - итог одного прохода внешней ленты
type IngestResult struct {
	Created    []*models.Report
	Duplicates int
	Invalid    int
	Warnings   []string
}

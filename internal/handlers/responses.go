package handlers

import (
	"disaster_backend/internal/models"
	"disaster_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

// DataResponse - успешный ответ. Warnings - побочные эффекты, которые не удались.
type DataResponse struct {
	Success  bool     `json:"success"`
	Data     any      `json:"data,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type ReportResponse struct {
	Success  bool           `json:"success"`
	Data     *models.Report `json:"data"`
	Warnings []string       `json:"warnings,omitempty"`
}

type ReportListResponse struct {
	Success  bool            `json:"success"`
	Data     []models.Report `json:"data"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type NearbyRespondersResponse struct {
	Success    bool                  `json:"success"`
	Responders []dto.NearbyResponder `json:"responders"`
}

type NotificationListResponse struct {
	Success  bool                  `json:"success"`
	Data     []models.Notification `json:"data"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

type ModifiedResponse struct {
	Success       bool  `json:"success"`
	ModifiedCount int64 `json:"modifiedCount"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

func respondReport(c *gin.Context, status int, result *dto.ReportResult) {
	c.JSON(status, ReportResponse{Success: true, Data: result.Report, Warnings: result.Warnings})
}

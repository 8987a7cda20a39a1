package dto

import "disaster_backend/internal/models"

type AssignRequest struct {
	ResponderIDs []string `json:"responderIds" validate:"required,min=1,dive,uuid"`
}

type AutoAssignRequest struct {
	Limit       int     `json:"limit" validate:"omitempty,min=1,max=50"`
	MaxDistance float64 `json:"maxDistance" validate:"omitempty,min=1"`
}

type NearbyQuery struct {
	Latitude    *float64 `form:"latitude" validate:"required,latitude"`
	Longitude   *float64 `form:"longitude" validate:"required,longitude"`
	Limit       int      `form:"limit" validate:"omitempty,min=1,max=50"`
	MaxDistance float64  `form:"maxDistance" validate:"omitempty,min=1"`
}

type NearbyResponder struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Role        models.UserRole `json:"role"`
	ContactInfo string          `json:"contactInfo"`
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
	Distance    float64         `json:"distance"`
}

type ResponderStatusRequest struct {
	Status models.ResponderAction `json:"status" validate:"required,is-responder-action"`
	Note   string                 `json:"note" validate:"omitempty,max=1000"`
}

// ResponderStatusResponse - урезанное представление отчета для спасателя
type ResponderStatusResponse struct {
	ID                 string              `json:"id"`
	Status             models.ReportStatus `json:"status"`
	AssignedResponders []models.Assignment `json:"assignedResponders"`
}

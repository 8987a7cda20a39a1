package dto

import "disaster_backend/internal/models"

type NotificationListQuery struct {
	UnreadOnly bool `form:"unread_only"`
}

type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	Page          int                   `json:"page"`
	PageSize      int                   `json:"page_size"`
}

type UnreadCountResponse struct {
	UnreadCount int64 `json:"unreadCount"`
}

package handlers

import (
	"net/http"

	"disaster_backend/internal/auth"
	"disaster_backend/internal/middleware"
	"disaster_backend/internal/repositories"
	"disaster_backend/internal/services"
	"disaster_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	*BaseHandler
	notificationService services.NotificationService
}

func NewNotificationHandler(base *BaseHandler, notificationService services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		BaseHandler:         base,
		notificationService: notificationService,
	}
}

func (h *NotificationHandler) RegisterRoutes(r *gin.RouterGroup) {
	// Protected routes - только свои уведомления
	notifications := r.Group("/notifications")
	notifications.Use(h.RequireAuth(), middleware.RequireCapability(auth.CapNotificationReadOwn))
	{
		notifications.GET("", h.GetUserNotifications)
		notifications.GET("/unread-count", h.GetUnreadCount)
		notifications.PATCH("/mark-all-read", h.MarkAllAsRead)
		notifications.PATCH("/:notificationId/read", h.MarkAsRead)
	}
}

// GetUserNotifications godoc
// @Summary Мои уведомления
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param unread_only query bool false "Только непрочитанные"
// @Param page query int false "Страница" default(1)
// @Param page_size query int false "Размер страницы" default(20)
// @Success 200 {object} NotificationListResponse
// @Failure 401 {object} apperrors.ErrorResponse
// @Router /notifications [get]
func (h *NotificationHandler) GetUserNotifications(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}

	var query dto.NotificationListQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}
	page, pageSize := ParsePagination(c)

	response, err := h.notificationService.GetUserNotifications(h.GetDB(c), actor.ID, repositories.NotificationCriteria{
		UnreadOnly: query.UnreadOnly,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, NotificationListResponse{
		Success:  true,
		Data:     response.Notifications,
		Total:    response.Total,
		Page:     response.Page,
		PageSize: response.PageSize,
	})
}

// GetUnreadCount godoc
// @Summary Количество непрочитанных
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DataResponse{data=dto.UnreadCountResponse}
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}

	count, err := h.notificationService.GetUnreadCount(h.GetDB(c), actor.ID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, DataResponse{Success: true, Data: dto.UnreadCountResponse{UnreadCount: count}})
}

// MarkAsRead godoc
// @Summary Отметить уведомление прочитанным
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param notificationId path string true "ID уведомления"
// @Success 200 {object} DataResponse{data=models.Notification}
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /notifications/{notificationId}/read [patch]
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}

	notification, err := h.notificationService.MarkAsRead(h.GetDB(c), actor.ID, c.Param("notificationId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, DataResponse{Success: true, Data: notification})
}

// MarkAllAsRead godoc
// @Summary Отметить все прочитанными
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ModifiedResponse
// @Router /notifications/mark-all-read [patch]
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	actor, ok := h.GetActor(c)
	if !ok {
		return
	}

	modified, err := h.notificationService.MarkAllAsRead(h.GetDB(c), actor.ID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ModifiedResponse{Success: true, ModifiedCount: modified})
}

package services

import (
	"encoding/json"
	"fmt"

	"disaster_backend/internal/auth"
	"disaster_backend/internal/logger"
	"disaster_backend/internal/metrics"
	"disaster_backend/internal/models"
	"disaster_backend/internal/repositories"
	"disaster_backend/internal/services/dto"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultNotificationBatchSize = 100

type NotificationService interface {
	// Fan-out
	NotifyAllUsers(db *gorm.DB, report *models.Report) (int, error)
	NotifyStatusChange(db *gorm.DB, report *models.Report, change models.StatusChange, declinedBy string) (int, error)

	// Own notifications
	GetUserNotifications(db *gorm.DB, userID string, criteria repositories.NotificationCriteria) (*dto.NotificationListResponse, error)
	GetUnreadCount(db *gorm.DB, userID string) (int64, error)
	MarkAsRead(db *gorm.DB, userID, notificationID string) (*models.Notification, error)
	MarkAllAsRead(db *gorm.DB, userID string) (int64, error)
}

type NotificationServiceImpl struct {
	notificationRepo repositories.NotificationRepository
	userRepo         repositories.UserRepository
	batchSize        int
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	userRepo repositories.UserRepository,
	batchSize int,
) NotificationService {
	if batchSize <= 0 {
		batchSize = DefaultNotificationBatchSize
	}
	return &NotificationServiceImpl{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		batchSize:        batchSize,
	}
}

// ---------------- Fan-out ----------------

// NotifyAllUsers создает по одному уведомлению на каждого активного пользователя.
// Частичный сбой не откатывает уже записанные пачки.
func (s *NotificationServiceImpl) NotifyAllUsers(db *gorm.DB, report *models.Report) (int, error) {
	userIDs, err := s.userRepo.FindActiveUserIDs(db)
	if err != nil {
		return 0, fmt.Errorf("load active users: %w", err)
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	data, err := json.Marshal(models.DisasterNotificationData{
		ReportID:    report.ID,
		Category:    report.Category,
		Location:    report.Location(),
		DangerLevel: report.DangerLevel,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal notification data: %w", err)
	}

	info := report.Category.Info()
	notifications := make([]*models.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		notifications = append(notifications, &models.Notification{
			UserID:  userID,
			Type:    models.NotificationTypeDisaster,
			Title:   info.Title,
			Message: info.Message,
			Data:    datatypes.JSON(data),
		})
	}

	if err := s.notificationRepo.CreateBulk(db, notifications, s.batchSize); err != nil {
		return 0, fmt.Errorf("create %d notifications: %w", len(notifications), err)
	}

	metrics.NotificationsCreated.WithLabelValues(models.NotificationTypeDisaster).Add(float64(len(notifications)))
	logger.CtxInfo(ctxOf(db), "Disaster notifications created",
		"report_id", report.ID,
		"category", report.Category,
		"count", len(notifications),
	)
	return len(notifications), nil
}

// NotifyStatusChange - автор отчета, назначенные спасатели и отказавшийся спасатель.
// Сам актор уведомление не получает.
func (s *NotificationServiceImpl) NotifyStatusChange(db *gorm.DB, report *models.Report, change models.StatusChange, declinedBy string) (int, error) {
	recipients := statusChangeRecipients(report, change.ChangedBy, declinedBy)
	if len(recipients) == 0 {
		return 0, nil
	}

	data, err := json.Marshal(models.StatusNotificationData{
		ReportID: report.ID,
		Category: report.Category,
		Status:   change.Status,
		Action:   change.Action,
		ActorID:  change.ChangedBy,
		Note:     change.Note,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal notification data: %w", err)
	}

	title, message := statusChangeText(report, change)
	notifications := make([]*models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		notifications = append(notifications, &models.Notification{
			UserID:  userID,
			Type:    models.NotificationTypeReportStatus,
			Title:   title,
			Message: message,
			Data:    datatypes.JSON(data),
		})
	}

	if err := s.notificationRepo.CreateBulk(db, notifications, s.batchSize); err != nil {
		return 0, fmt.Errorf("create %d status notifications: %w", len(notifications), err)
	}
	metrics.NotificationsCreated.WithLabelValues(models.NotificationTypeReportStatus).Add(float64(len(notifications)))
	return len(notifications), nil
}

func statusChangeRecipients(report *models.Report, actorID, declinedBy string) []string {
	candidates := make([]string, 0, len(report.AssignedResponders)+2)
	candidates = append(candidates, report.CreatedBy)
	candidates = append(candidates, report.ResponderIDs()...)
	candidates = append(candidates, declinedBy)

	seen := make(map[string]struct{}, len(candidates))
	recipients := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if id == "" || id == actorID || id == auth.SystemActor.ID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}
	return recipients
}

func statusChangeText(report *models.Report, change models.StatusChange) (string, string) {
	switch change.Action {
	case models.HistoryActionAssign:
		return "Responders assigned", fmt.Sprintf("Responders were assigned to \"%s\".", report.Name)
	case models.HistoryActionAccept:
		return "Assignment accepted", fmt.Sprintf("A responder accepted \"%s\".", report.Name)
	case models.HistoryActionDecline:
		return "Assignment declined", fmt.Sprintf("A responder declined \"%s\". Current status: %s.", report.Name, change.Status)
	case models.HistoryActionResolve:
		return "Report resolved", fmt.Sprintf("\"%s\" has been resolved.", report.Name)
	default:
		return "Report updated", fmt.Sprintf("\"%s\" is now %s.", report.Name, change.Status)
	}
}

// ---------------- Own notifications ----------------

func (s *NotificationServiceImpl) GetUserNotifications(db *gorm.DB, userID string, criteria repositories.NotificationCriteria) (*dto.NotificationListResponse, error) {
	notifications, total, err := s.notificationRepo.FindUserNotifications(db, userID, criteria)
	if err != nil {
		return nil, handleNotificationError(err)
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return &dto.NotificationListResponse{
		Notifications: notifications,
		Total:         total,
		Page:          criteria.Page,
		PageSize:      criteria.PageSize,
	}, nil
}

func (s *NotificationServiceImpl) GetUnreadCount(db *gorm.DB, userID string) (int64, error) {
	count, err := s.notificationRepo.GetUnreadCount(db, userID)
	if err != nil {
		return 0, handleNotificationError(err)
	}
	return count, nil
}

// MarkAsRead - NotFound и для чужого уведомления
func (s *NotificationServiceImpl) MarkAsRead(db *gorm.DB, userID, notificationID string) (*models.Notification, error) {
	notification, err := s.notificationRepo.MarkAsRead(db, userID, notificationID)
	if err != nil {
		return nil, handleNotificationError(err)
	}
	return notification, nil
}

func (s *NotificationServiceImpl) MarkAllAsRead(db *gorm.DB, userID string) (int64, error) {
	modified, err := s.notificationRepo.MarkAllAsRead(db, userID)
	if err != nil {
		return 0, handleNotificationError(err)
	}
	return modified, nil
}

package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"disaster_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound    = errors.New("notification not found")
	ErrInvalidNotificationData = errors.New("invalid notification data")
)

type NotificationCriteria struct {
	UnreadOnly bool
	Page       int
	PageSize   int
}

type NotificationRepository interface {
	CreateBulk(db *gorm.DB, notifications []*models.Notification, batchSize int) error
	FindUserNotifications(db *gorm.DB, userID string, criteria NotificationCriteria) ([]models.Notification, int64, error)
	MarkAsRead(db *gorm.DB, userID, notificationID string) (*models.Notification, error)
	MarkAllAsRead(db *gorm.DB, userID string) (int64, error)
	GetUnreadCount(db *gorm.DB, userID string) (int64, error)
}

type NotificationRepositoryImpl struct{}

func NewNotificationRepository() NotificationRepository {
	return &NotificationRepositoryImpl{}
}

func (r *NotificationRepositoryImpl) CreateBulk(db *gorm.DB, notifications []*models.Notification, batchSize int) error {
	if len(notifications) == 0 {
		return nil
	}
	for _, n := range notifications {
		if err := validateNotification(n); err != nil {
			return err
		}
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return db.CreateInBatches(notifications, batchSize).Error
}

func (r *NotificationRepositoryImpl) FindUserNotifications(db *gorm.DB, userID string, criteria NotificationCriteria) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	query := db.Model(&models.Notification{}).Where("user_id = ?", userID)

	if criteria.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if criteria.Page < 1 {
		criteria.Page = 1
	}
	if criteria.PageSize < 1 {
		criteria.PageSize = 20
	}
	offset := (criteria.Page - 1) * criteria.PageSize

	err := query.Order("created_at DESC").Order("id").
		Limit(criteria.PageSize).Offset(offset).
		Find(&notifications).Error

	return notifications, total, err
}

// MarkAsRead - чужое уведомление неотличимо от несуществующего
func (r *NotificationRepositoryImpl) MarkAsRead(db *gorm.DB, userID, notificationID string) (*models.Notification, error) {
	var notification models.Notification
	err := db.Where("user_id = ?", userID).First(&notification, "id = ?", notificationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	if notification.IsRead {
		return &notification, nil
	}

	now := time.Now().UTC()
	err = db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		}).Error
	if err != nil {
		return nil, err
	}

	notification.IsRead = true
	notification.ReadAt = &now
	return &notification, nil
}

func (r *NotificationRepositoryImpl) MarkAllAsRead(db *gorm.DB, userID string) (int64, error) {
	result := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *NotificationRepositoryImpl) GetUnreadCount(db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func validateNotification(notification *models.Notification) error {
	if notification.UserID == "" {
		return errors.New("user ID is required")
	}
	if notification.Title == "" {
		return errors.New("notification title is required")
	}

	switch notification.Type {
	case models.NotificationTypeDisaster, models.NotificationTypeReportStatus:
	default:
		return fmt.Errorf("invalid notification type: %s", notification.Type)
	}

	if len(notification.Data) > 0 && !json.Valid(notification.Data) {
		return ErrInvalidNotificationData
	}
	return nil
}

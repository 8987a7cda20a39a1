package repositories

import (
	"errors"

	"disaster_backend/internal/models"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository - только чтение справочника пользователей
type UserRepository interface {
	FindByID(db *gorm.DB, id string) (*models.User, error)
	FindActiveByIDs(db *gorm.DB, ids []string) ([]models.User, error)
	FindActiveResponders(db *gorm.DB) ([]models.User, error)
	FindActiveUserIDs(db *gorm.DB) ([]string, error)
}

type UserRepositoryImpl struct{}

func NewUserRepository() UserRepository {
	return &UserRepositoryImpl{}
}

func (r *UserRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) FindActiveByIDs(db *gorm.DB, ids []string) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := db.Where("id IN ? AND status = ?", ids, models.UserStatusActive).Find(&users).Error
	return users, err
}

// FindActiveResponders - пожарные и НКО со статусом active
func (r *UserRepositoryImpl) FindActiveResponders(db *gorm.DB) ([]models.User, error) {
	var users []models.User
	err := db.Where("role IN ? AND status = ?",
		[]models.UserRole{models.UserRoleFirefighter, models.UserRoleNGO},
		models.UserStatusActive,
	).Order("id").Find(&users).Error
	return users, err
}

func (r *UserRepositoryImpl) FindActiveUserIDs(db *gorm.DB) ([]string, error) {
	var ids []string
	err := db.Model(&models.User{}).
		Where("status = ?", models.UserStatusActive).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

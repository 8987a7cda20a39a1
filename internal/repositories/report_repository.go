package repositories

import (
	"errors"
	"time"

	"disaster_backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrReportNotFound          = errors.New("report not found")
	ErrStaleReport             = errors.New("report version changed")
	ErrDuplicateExternalReport = errors.New("report with this external id already exists")
)

// pgUniqueViolation - SQLSTATE unique_violation
const pgUniqueViolation = "23505"

type ReportCriteria struct {
	IncludeHidden bool
	Tag           string
	Page          int
	PageSize      int
}

type ReportRepository interface {
	Create(db *gorm.DB, report *models.Report) error
	CreateWithOutbox(db *gorm.DB, report *models.Report, job *models.FanoutJob) error
	FindByID(db *gorm.DB, id string) (*models.Report, error)
	FindByCategoryAndID(db *gorm.DB, category models.Category, id string) (*models.Report, error)
	FindByCategory(db *gorm.DB, category models.Category, criteria ReportCriteria) ([]models.Report, int64, error)
	UpdateFields(db *gorm.DB, report *models.Report, expectedVersion int) error
	SaveTransition(db *gorm.DB, report *models.Report, expectedVersion int) error
	SaveTransitionWithOutbox(db *gorm.DB, report *models.Report, expectedVersion int, job *models.FanoutJob) error
	Delete(db *gorm.DB, category models.Category, id string) error
	ExistsByExternalID(db *gorm.DB, source models.ReportSource, externalID string) (bool, error)
}

type ReportRepositoryImpl struct{}

func NewReportRepository() ReportRepository {
	return &ReportRepositoryImpl{}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (r *ReportRepositoryImpl) Create(db *gorm.DB, report *models.Report) error {
	if err := db.Create(report).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateExternalReport
		}
		return err
	}
	return nil
}

// CreateWithOutbox - отчет и задача outbox в одной транзакции
func (r *ReportRepositoryImpl) CreateWithOutbox(db *gorm.DB, report *models.Report, job *models.FanoutJob) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := r.Create(tx, report); err != nil {
			return err
		}
		job.ReportID = report.ID
		return tx.Create(job).Error
	})
}

func (r *ReportRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Report, error) {
	var report models.Report
	if err := db.First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepositoryImpl) FindByCategoryAndID(db *gorm.DB, category models.Category, id string) (*models.Report, error) {
	var report models.Report
	if err := db.Where("category = ?", category).First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepositoryImpl) FindByCategory(db *gorm.DB, category models.Category, criteria ReportCriteria) ([]models.Report, int64, error) {
	var reports []models.Report
	query := db.Model(&models.Report{}).Where("category = ?", category)

	if !criteria.IncludeHidden {
		query = query.Where("visible = ?", true)
	}
	if criteria.Tag != "" {
		query = query.Where("? = ANY(tags)", criteria.Tag)
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
		Find(&reports).Error

	return reports, total, err
}

// UpdateFields пишет описательные поля. Статус и назначения меняются только через SaveTransition.
func (r *ReportRepositoryImpl) UpdateFields(db *gorm.DB, report *models.Report, expectedVersion int) error {
	now := time.Now().UTC()
	result := db.Model(&models.Report{}).
		Where("id = ? AND category = ? AND version = ?", report.ID, report.Category, expectedVersion).
		Updates(map[string]interface{}{
			"name":         report.Name,
			"description":  report.Description,
			"latitude":     report.Latitude,
			"longitude":    report.Longitude,
			"danger_level": report.DangerLevel,
			"visible":      report.Visible,
			"tags":         report.Tags,
			"version":      expectedVersion + 1,
			"updated_at":   now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleReport
	}
	report.Version = expectedVersion + 1
	report.UpdatedAt = now
	return nil
}

// SaveTransition - один условный UPDATE по версии.
// Пишет и описательные поля, так что правка PUT и назначение уходят одной записью.
// ErrStaleReport значит, что отчет успели изменить, нужно перечитать.
func (r *ReportRepositoryImpl) SaveTransition(db *gorm.DB, report *models.Report, expectedVersion int) error {
	now := time.Now().UTC()
	result := db.Model(&models.Report{}).
		Where("id = ? AND version = ?", report.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":                report.Name,
			"description":         report.Description,
			"latitude":            report.Latitude,
			"longitude":           report.Longitude,
			"danger_level":        report.DangerLevel,
			"visible":             report.Visible,
			"tags":                report.Tags,
			"status":              report.Status,
			"assigned_responders": report.AssignedResponders,
			"status_history":      report.StatusHistory,
			"version":             expectedVersion + 1,
			"updated_at":          now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleReport
	}
	report.Version = expectedVersion + 1
	report.UpdatedAt = now
	return nil
}

func (r *ReportRepositoryImpl) SaveTransitionWithOutbox(db *gorm.DB, report *models.Report, expectedVersion int, job *models.FanoutJob) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := r.SaveTransition(tx, report, expectedVersion); err != nil {
			return err
		}
		job.ReportID = report.ID
		return tx.Create(job).Error
	})
}

func (r *ReportRepositoryImpl) Delete(db *gorm.DB, category models.Category, id string) error {
	result := db.Where("id = ? AND category = ?", id, category).Delete(&models.Report{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (r *ReportRepositoryImpl) ExistsByExternalID(db *gorm.DB, source models.ReportSource, externalID string) (bool, error) {
	var count int64
	err := db.Model(&models.Report{}).
		Where("source = ? AND external_id = ?", source, externalID).
		Count(&count).Error
	return count > 0, err
}

package services

import (
	"errors"
	"sort"
	"strings"
	"time"

	"disaster_backend/internal/auth"
	"disaster_backend/internal/cache"
	"disaster_backend/internal/events"
	"disaster_backend/internal/logger"
	"disaster_backend/internal/metrics"
	"disaster_backend/internal/models"
	"disaster_backend/internal/repositories"
	"disaster_backend/internal/services/dto"
	"disaster_backend/pkg/apperrors"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DefaultIngestDedupeTTL - сколько помним внешний id после первого успешного ингеста
const DefaultIngestDedupeTTL = 7 * 24 * time.Hour

type ReportService interface {
	CreateReport(db *gorm.DB, actor *auth.Actor, category models.Category, req *dto.CreateReportRequest) (*dto.ReportResult, error)
	GetReport(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string) (*models.Report, error)
	ListReports(db *gorm.DB, actor *auth.Actor, category models.Category, query dto.ListReportsQuery, page, pageSize int) (*dto.ReportListResponse, error)
	UpdateReport(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string, req *dto.UpdateReportRequest) (*dto.ReportResult, error)
	DeleteReport(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string) error

	// IngestReports создает отчеты внешней ленты от имени системного актора.
	// Одно событие new_<category> на категорию.
	IngestReports(db *gorm.DB, reports []*models.Report) (*dto.IngestResult, error)
}

type ReportServiceImpl struct {
	reportRepo          repositories.ReportRepository
	notificationService NotificationService
	assignmentService   AssignmentService
	alertService        AlertService
	publisher           events.Publisher
	dedupe              cache.Store
	dedupeTTL           time.Duration
	outbox              bool
}

func NewReportService(
	reportRepo repositories.ReportRepository,
	notificationService NotificationService,
	assignmentService AssignmentService,
	alertService AlertService,
	publisher events.Publisher,
	dedupe cache.Store,
	outbox bool,
) ReportService {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &ReportServiceImpl{
		reportRepo:          reportRepo,
		notificationService: notificationService,
		assignmentService:   assignmentService,
		alertService:        alertService,
		publisher:           publisher,
		dedupe:              dedupe,
		dedupeTTL:           DefaultIngestDedupeTTL,
		outbox:              outbox,
	}
}

// ---------------- Create ----------------

func (s *ReportServiceImpl) CreateReport(db *gorm.DB, actor *auth.Actor, category models.Category, req *dto.CreateReportRequest) (*dto.ReportResult, error) {
	if err := actor.Require(auth.CapReportCreate); err != nil {
		return nil, err
	}
	if !category.IsValid() {
		return nil, apperrors.ErrUnknownCategory
	}

	report := &models.Report{
		Category:    category,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Visible:     true,
		Source:      models.ReportSourceUser,
		Tags:        normalizeTags(req.Tags),
	}
	if req.Location == nil || req.Location.Latitude == nil || req.Location.Longitude == nil {
		return nil, apperrors.ValidationError(map[string]string{"location": "This field is required"})
	}
	if req.DangerLevel == nil {
		return nil, apperrors.ValidationError(map[string]string{"dangerLevel": "This field is required"})
	}
	report.Latitude = *req.Location.Latitude
	report.Longitude = *req.Location.Longitude
	report.DangerLevel = *req.DangerLevel
	if req.Visible != nil {
		report.Visible = *req.Visible
	}

	result, err := s.create(db, actor, report)
	if err != nil {
		return nil, err
	}

	ctx := ctxOf(db)
	if err := s.publisher.Publish(ctx, category.EventName(), events.NewReportEvent(report)); err != nil {
		logger.CtxWithError(ctx, "New report event failed", err, "report_id", report.ID)
		result.Warn(apperrors.WarningEventPublish)
	}
	return result, nil
}

// create - общий путь для пользователей и ингеста: запись, fan-out, письмо.
// Событие публикует вызывающий.
func (s *ReportServiceImpl) create(db *gorm.DB, actor *auth.Actor, report *models.Report) (*dto.ReportResult, error) {
	if err := report.Validate(); err != nil {
		return nil, handleReportError(err)
	}
	report.RecordCreation(actor.TransitionActor(), time.Now())

	var err error
	if s.outbox {
		job := &models.FanoutJob{
			Category: report.Category,
			Kind:     models.FanoutKindReportCreated,
			Status:   models.FanoutStatusPending,
		}
		err = s.reportRepo.CreateWithOutbox(db, report, job)
	} else {
		err = s.reportRepo.Create(db, report)
	}
	if err != nil {
		return nil, handleReportError(err)
	}

	ctx := ctxOf(db)
	metrics.ReportsCreated.WithLabelValues(string(report.Category), string(report.Source)).Inc()
	logger.CtxInfo(ctx, "Report created",
		"report_id", report.ID,
		"category", report.Category,
		"source", report.Source,
		"danger_level", report.DangerLevel,
	)

	result := &dto.ReportResult{Report: report}

	if !s.outbox {
		if _, err := s.notificationService.NotifyAllUsers(db, report); err != nil {
			metrics.FanoutFailures.WithLabelValues(string(models.FanoutKindReportCreated)).Inc()
			logger.CtxWithError(ctx, "Disaster fan-out failed", err, "report_id", report.ID)
			result.Warn(apperrors.WarningNotificationFanout)
		}
	}

	if s.alertService != nil {
		if _, err := s.alertService.NotifyIfSevere(ctx, report); err != nil {
			metrics.FanoutFailures.WithLabelValues("alert_mail").Inc()
			logger.CtxWithError(ctx, "Authority alert failed", err, "report_id", report.ID)
			result.Warn(apperrors.WarningAlertMail)
		}
	}

	return result, nil
}

// ---------------- Read ----------------

// GetReport - скрытый отчет без права report:read_hidden выглядит как несуществующий
func (s *ReportServiceImpl) GetReport(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string) (*models.Report, error) {
	if !category.IsValid() {
		return nil, apperrors.ErrUnknownCategory
	}
	report, err := s.reportRepo.FindByCategoryAndID(db, category, reportID)
	if err != nil {
		return nil, handleReportError(err)
	}
	if !report.Visible && !actor.Can(auth.CapReportReadHidden) {
		return nil, apperrors.ErrReportNotFound
	}
	return report, nil
}

func (s *ReportServiceImpl) ListReports(db *gorm.DB, actor *auth.Actor, category models.Category, query dto.ListReportsQuery, page, pageSize int) (*dto.ReportListResponse, error) {
	if !category.IsValid() {
		return nil, apperrors.ErrUnknownCategory
	}
	if query.IncludeHidden {
		if err := actor.Require(auth.CapReportReadHidden); err != nil {
			return nil, err
		}
	}

	reports, total, err := s.reportRepo.FindByCategory(db, category, repositories.ReportCriteria{
		IncludeHidden: query.IncludeHidden,
		Tag:           query.Tag,
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		return nil, handleReportError(err)
	}
	if reports == nil {
		reports = []models.Report{}
	}

	return &dto.ReportListResponse{
		Reports:  reports,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ---------------- Update / Delete ----------------

// UpdateReport - PUT с полным набором полей. Новые id в assignedResponders
// назначаются вместе с правкой полей одной записью; убрать спасателя так нельзя.
func (s *ReportServiceImpl) UpdateReport(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string, req *dto.UpdateReportRequest) (*dto.ReportResult, error) {
	if err := actor.Require(auth.CapReportUpdate); err != nil {
		return nil, err
	}
	if !category.IsValid() {
		return nil, apperrors.ErrUnknownCategory
	}
	if req.Location == nil || req.Location.Latitude == nil || req.Location.Longitude == nil {
		return nil, apperrors.ValidationError(map[string]string{"location": "This field is required"})
	}
	if req.DangerLevel == nil {
		return nil, apperrors.ValidationError(map[string]string{"dangerLevel": "This field is required"})
	}

	applyFields := func(report *models.Report) error {
		report.Name = strings.TrimSpace(req.Name)
		report.Description = req.Description
		report.Latitude = *req.Location.Latitude
		report.Longitude = *req.Location.Longitude
		report.DangerLevel = *req.DangerLevel
		if req.Visible != nil {
			report.Visible = *req.Visible
		}
		if req.Tags != nil {
			report.Tags = normalizeTags(req.Tags)
		}
		return report.Validate()
	}

	for attempt := 1; attempt <= MaxTransitionAttempts; attempt++ {
		current, err := s.reportRepo.FindByCategoryAndID(db, category, reportID)
		if err != nil {
			return nil, handleReportError(err)
		}

		if req.AssignedResponders != nil {
			newIDs, err := newResponderIDs(current, *req.AssignedResponders)
			if err != nil {
				return nil, err
			}
			if len(newIDs) > 0 {
				if current.IsResolved() {
					return nil, apperrors.ErrReportResolved
				}
				// отчет перечитывается внутри перехода, проверки повторяются на свежей версии
				return s.assignmentService.AssignWithPatch(db, actor, category, reportID, newIDs, func(report *models.Report) error {
					if _, err := newResponderIDs(report, *req.AssignedResponders); err != nil {
						return err
					}
					return applyFields(report)
				})
			}
		}

		expected := current.Version
		if err := applyFields(current); err != nil {
			return nil, handleReportError(err)
		}

		err = s.reportRepo.UpdateFields(db, current, expected)
		if errors.Is(err, repositories.ErrStaleReport) {
			continue
		}
		if err != nil {
			return nil, handleReportError(err)
		}

		logger.CtxInfo(ctxOf(db), "Report updated", "report_id", current.ID, "version", current.Version)
		return &dto.ReportResult{Report: current}, nil
	}
	return nil, apperrors.ErrReportBusy
}

// newResponderIDs - id из запроса, которых еще нет в назначениях.
// Каждый текущий спасатель обязан остаться в списке.
func newResponderIDs(report *models.Report, requested []string) ([]string, error) {
	want := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		want[id] = struct{}{}
	}
	for _, id := range report.ResponderIDs() {
		if _, ok := want[id]; !ok {
			return nil, apperrors.ErrUnassignViaUpdate.WithDetails(map[string]string{"responderId": id})
		}
	}

	var fresh []string
	seen := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		if _, dup := seen[id]; dup || report.IsAssigned(id) {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh, nil
}

func (s *ReportServiceImpl) DeleteReport(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string) error {
	if err := actor.Require(auth.CapReportDelete); err != nil {
		return err
	}
	if !category.IsValid() {
		return apperrors.ErrUnknownCategory
	}
	if err := s.reportRepo.Delete(db, category, reportID); err != nil {
		return handleReportError(err)
	}
	logger.CtxInfo(ctxOf(db), "Report deleted", "report_id", reportID, "category", category)
	return nil
}

// ---------------- Ingestion ----------------

func (s *ReportServiceImpl) IngestReports(db *gorm.DB, reports []*models.Report) (*dto.IngestResult, error) {
	ctx := ctxOf(db)
	result := &dto.IngestResult{}
	byCategory := make(map[models.Category][]*models.Report)

	for _, report := range reports {
		key := ""
		if report.ExternalID != nil && *report.ExternalID != "" {
			key = string(report.Source) + ":" + *report.ExternalID

			if s.dedupe != nil {
				claimed, err := s.dedupe.SetNX(ctx, key, []byte("1"), s.dedupeTTL)
				if err != nil {
					logger.CtxWithError(ctx, "Ingest dedupe store failed", err, "key", key)
				} else if !claimed {
					result.Duplicates++
					continue
				}
			}

			exists, err := s.reportRepo.ExistsByExternalID(db, report.Source, *report.ExternalID)
			if err != nil {
				s.release(db, key)
				return result, apperrors.InternalError(err)
			}
			if exists {
				result.Duplicates++
				continue
			}
		}

		created, err := s.create(db, auth.SystemActor, report)
		switch {
		case err == nil:
			result.Created = append(result.Created, created.Report)
			for _, w := range created.Warnings {
				appendWarning(&result.Warnings, w)
			}
			byCategory[report.Category] = append(byCategory[report.Category], created.Report)
		case apperrors.Is(err, apperrors.ErrDuplicateExternalReport):
			result.Duplicates++
		default:
			s.release(db, key)
			if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.CodeValidationFailed {
				result.Invalid++
				logger.CtxWarn(ctx, "Ingested report rejected", "key", key, "details", appErr.Details)
				continue
			}
			return result, err
		}
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	for _, c := range categories {
		category := models.Category(c)
		if err := s.publisher.Publish(ctx, category.EventName(), events.NewReportEvent(byCategory[category]...)); err != nil {
			logger.CtxWithError(ctx, "Ingest event failed", err, "category", category)
			appendWarning(&result.Warnings, apperrors.WarningEventPublish)
		}
	}

	return result, nil
}

// release снимает ключ дедупликации, чтобы следующий проход повторил попытку
func (s *ReportServiceImpl) release(db *gorm.DB, key string) {
	if s.dedupe == nil || key == "" {
		return
	}
	if err := s.dedupe.Delete(ctxOf(db), key); err != nil {
		logger.CtxWithError(ctxOf(db), "Ingest dedupe release failed", err, "key", key)
	}
}

func appendWarning(warnings *[]string, code string) {
	for _, w := range *warnings {
		if w == code {
			return
		}
	}
	*warnings = append(*warnings, code)
}

func normalizeTags(tags []string) pq.StringArray {
	out := pq.StringArray{}
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

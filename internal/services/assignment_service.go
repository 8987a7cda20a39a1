package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"disaster_backend/internal/algorithms"
	"disaster_backend/internal/auth"
	"disaster_backend/internal/events"
	"disaster_backend/internal/logger"
	"disaster_backend/internal/metrics"
	"disaster_backend/internal/models"
	"disaster_backend/internal/repositories"
	"disaster_backend/internal/services/dto"
	"disaster_backend/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxTransitionAttempts - сколько раз перечитываем отчет при конфликте версий
const MaxTransitionAttempts = 5

type AssignmentService interface {
	Assign(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string, req *dto.AssignRequest) (*dto.ReportResult, error)
	AutoAssign(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string, req *dto.AutoAssignRequest) (*dto.ReportResult, error)
	Respond(db *gorm.DB, actor *auth.Actor, reportID string, req *dto.ResponderStatusRequest) (*dto.ReportResult, error)

	// AssignWithPatch назначает спасателей и применяет patch к тому же отчету.
	// Поля и назначение сохраняются одним условным UPDATE.
	AssignWithPatch(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string, responderIDs []string, patch func(*models.Report) error) (*dto.ReportResult, error)

	// ResolveResponders проверяет, что все id - активные спасатели
	ResolveResponders(db *gorm.DB, ids []string) ([]models.User, error)
}

type AssignmentServiceImpl struct {
	reportRepo          repositories.ReportRepository
	userRepo            repositories.UserRepository
	responderService    ResponderService
	notificationService NotificationService
	publisher           events.Publisher
	outbox              bool
}

func NewAssignmentService(
	reportRepo repositories.ReportRepository,
	userRepo repositories.UserRepository,
	responderService ResponderService,
	notificationService NotificationService,
	publisher events.Publisher,
	outbox bool,
) AssignmentService {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &AssignmentServiceImpl{
		reportRepo:          reportRepo,
		userRepo:            userRepo,
		responderService:    responderService,
		notificationService: notificationService,
		publisher:           publisher,
		outbox:              outbox,
	}
}

// transition - результат одного применения перехода к отчету в памяти
type transition struct {
	change     models.StatusChange
	declinedBy string
}

// ---------------- Operations ----------------

func (s *AssignmentServiceImpl) Assign(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string, req *dto.AssignRequest) (*dto.ReportResult, error) {
	return s.AssignWithPatch(db, actor, category, reportID, req.ResponderIDs, nil)
}

func (s *AssignmentServiceImpl) AssignWithPatch(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string, responderIDs []string, patch func(*models.Report) error) (*dto.ReportResult, error) {
	if err := actor.Require(auth.CapReportAssign); err != nil {
		return nil, err
	}
	if !category.IsValid() {
		return nil, apperrors.ErrUnknownCategory
	}
	if len(responderIDs) == 0 {
		return nil, apperrors.ErrNoRespondersGiven
	}

	responders, err := s.ResolveResponders(db, responderIDs)
	if err != nil {
		return nil, err
	}

	load := func() (*models.Report, error) {
		return s.reportRepo.FindByCategoryAndID(db, category, reportID)
	}
	apply := func(report *models.Report, now time.Time) (transition, error) {
		if patch != nil {
			if err := patch(report); err != nil {
				return transition{}, err
			}
		}
		assignments := make([]models.Assignment, 0, len(responders))
		for _, u := range responders {
			assignments = append(assignments, newAssignment(report, u, now))
		}
		change, err := report.Assign(assignments, actor.TransitionActor(), now)
		return transition{change: change}, err
	}

	return s.run(db, models.HistoryActionAssign, load, apply)
}

// AutoAssign - N ближайших активных спасателей, еще не назначенных на отчет
func (s *AssignmentServiceImpl) AutoAssign(db *gorm.DB, actor *auth.Actor, category models.Category, reportID string, req *dto.AutoAssignRequest) (*dto.ReportResult, error) {
	if err := actor.Require(auth.CapReportAssign); err != nil {
		return nil, err
	}
	if !category.IsValid() {
		return nil, apperrors.ErrUnknownCategory
	}

	snapshot, err := s.responderService.ActiveResponders(db)
	if err != nil {
		return nil, err
	}
	opts := algorithms.Options{Limit: req.Limit, MaxDistanceMeters: req.MaxDistance}

	load := func() (*models.Report, error) {
		return s.reportRepo.FindByCategoryAndID(db, category, reportID)
	}
	apply := func(report *models.Report, now time.Time) (transition, error) {
		free := make([]ResponderSnapshot, 0, len(snapshot))
		for _, r := range snapshot {
			if !report.IsAssigned(r.ID) {
				free = append(free, r)
			}
		}

		var nearest []dto.NearbyResponder
		for {
			nearest = s.responderService.Rank(report.Latitude, report.Longitude, free, opts)
			if len(nearest) == 0 {
				if report.IsResolved() {
					return transition{}, models.ErrTransitionOnResolved
				}
				return transition{}, apperrors.ErrNoNearbyResponders
			}

			// снимок кэша может отставать: выбранных сверяем со справочником
			stale, err := s.inactiveResponders(db, nearest)
			if err != nil {
				return transition{}, err
			}
			if len(stale) == 0 {
				break
			}
			s.responderService.Invalidate(db)
			free = withoutIDs(free, stale)
		}

		assignments := make([]models.Assignment, 0, len(nearest))
		for _, n := range nearest {
			distance := n.Distance
			assignments = append(assignments, models.Assignment{
				ResponderID:          n.ID,
				ResponderRole:        n.Role,
				DisplayName:          n.Name,
				ContactInfo:          n.ContactInfo,
				DistanceAtAssignment: &distance,
				AssignedAt:           now.UTC(),
			})
		}
		change, err := report.Assign(assignments, actor.TransitionActor(), now)
		return transition{change: change}, err
	}

	return s.run(db, models.HistoryActionAssign, load, apply)
}

// Respond - accept/decline/resolve от назначенного спасателя
func (s *AssignmentServiceImpl) Respond(db *gorm.DB, actor *auth.Actor, reportID string, req *dto.ResponderStatusRequest) (*dto.ReportResult, error) {
	if err := actor.Require(auth.CapReportRespond); err != nil {
		return nil, err
	}
	if !req.Status.IsValid() {
		return nil, apperrors.ErrUnknownResponderAction
	}

	load := func() (*models.Report, error) {
		return s.reportRepo.FindByID(db, reportID)
	}
	apply := func(report *models.Report, now time.Time) (transition, error) {
		change, err := report.ApplyResponderAction(req.Status, actor.TransitionActor(), req.Note, now)
		t := transition{change: change}
		if req.Status == models.ResponderActionDeclined {
			t.declinedBy = actor.ID
		}
		return t, err
	}

	return s.run(db, req.Status.HistoryAction(), load, apply)
}

func (s *AssignmentServiceImpl) ResolveResponders(db *gorm.DB, ids []string) ([]models.User, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, apperrors.ErrResponderAlreadyAssigned.WithDetails(map[string]string{"responderId": id})
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	users, err := s.userRepo.FindActiveByIDs(db, unique)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		if u.Role.IsResponder() && u.IsActive() {
			byID[u.ID] = u
		}
	}

	// порядок как в запросе
	result := make([]models.User, 0, len(unique))
	for _, id := range unique {
		u, ok := byID[id]
		if !ok {
			return nil, apperrors.ErrResponderNotFound.WithDetails(map[string]string{"responderId": id})
		}
		result = append(result, u)
	}
	return result, nil
}

// inactiveResponders - id из выборки, которые уже не активные спасатели
func (s *AssignmentServiceImpl) inactiveResponders(db *gorm.DB, nearest []dto.NearbyResponder) (map[string]struct{}, error) {
	ids := make([]string, 0, len(nearest))
	for _, n := range nearest {
		ids = append(ids, n.ID)
	}
	users, err := s.userRepo.FindActiveByIDs(db, ids)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	active := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u.Role.IsResponder() && u.IsActive() {
			active[u.ID] = struct{}{}
		}
	}
	stale := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := active[id]; !ok {
			stale[id] = struct{}{}
		}
	}
	return stale, nil
}

func withoutIDs(responders []ResponderSnapshot, drop map[string]struct{}) []ResponderSnapshot {
	out := responders[:0:0]
	for _, r := range responders {
		if _, ok := drop[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// ---------------- Transition loop ----------------

// run читает отчет, применяет переход в памяти и сохраняет его условным UPDATE.
// При конфликте версий перечитывает отчет, после MaxTransitionAttempts - ErrReportBusy.
func (s *AssignmentServiceImpl) run(
	db *gorm.DB,
	action models.HistoryAction,
	load func() (*models.Report, error),
	apply func(report *models.Report, now time.Time) (transition, error),
) (*dto.ReportResult, error) {
	ctx := ctxOf(db)

	for attempt := 1; attempt <= MaxTransitionAttempts; attempt++ {
		report, err := load()
		if err != nil {
			return nil, s.fail(action, err)
		}

		expected := report.Version
		t, err := apply(report, time.Now())
		if err != nil {
			return nil, s.fail(action, err)
		}

		result := &dto.ReportResult{Report: report}
		if s.outbox {
			job, jobErr := statusChangeJob(report, t)
			if jobErr != nil {
				return nil, s.fail(action, jobErr)
			}
			err = s.reportRepo.SaveTransitionWithOutbox(db, report, expected, job)
		} else {
			err = s.reportRepo.SaveTransition(db, report, expected)
		}

		if errors.Is(err, repositories.ErrStaleReport) {
			metrics.Transitions.WithLabelValues(string(action), metrics.ResultRetry).Inc()
			logger.CtxDebug(ctx, "Report version conflict, retrying", "report_id", report.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, s.fail(action, err)
		}

		metrics.Transitions.WithLabelValues(string(action), metrics.ResultOK).Inc()
		logger.CtxInfo(ctx, "Report transition applied",
			"report_id", report.ID,
			"action", t.change.Action,
			"status", report.Status,
			"version", report.Version,
		)
		s.afterTransition(db, result, t)
		return result, nil
	}

	metrics.Transitions.WithLabelValues(string(action), metrics.ResultConflict).Inc()
	return nil, apperrors.ErrReportBusy
}

func (s *AssignmentServiceImpl) fail(action models.HistoryAction, err error) error {
	mapped := handleReportError(err)
	result := metrics.ResultError
	if appErr, ok := apperrors.AsAppError(mapped); ok && appErr.HTTPCode == http.StatusConflict {
		result = metrics.ResultConflict
	}
	metrics.Transitions.WithLabelValues(string(action), result).Inc()
	return mapped
}

// afterTransition - уведомления и событие. Ошибки только в warnings.
func (s *AssignmentServiceImpl) afterTransition(db *gorm.DB, result *dto.ReportResult, t transition) {
	ctx := ctxOf(db)
	report := result.Report

	if !s.outbox {
		if _, err := s.notificationService.NotifyStatusChange(db, report, t.change, t.declinedBy); err != nil {
			metrics.FanoutFailures.WithLabelValues(string(models.FanoutKindStatusChanged)).Inc()
			logger.CtxWithError(ctx, "Status change fan-out failed", err, "report_id", report.ID)
			result.Warn(apperrors.WarningNotificationFanout)
		}
	}

	if err := s.publisher.Publish(ctx, events.EventReportStatusChanged, events.NewReportEvent(report)); err != nil {
		logger.CtxWithError(ctx, "Status change event failed", err, "report_id", report.ID)
		result.Warn(apperrors.WarningEventPublish)
	}
}

func newAssignment(report *models.Report, u models.User, now time.Time) models.Assignment {
	a := models.Assignment{
		ResponderID:   u.ID,
		ResponderRole: u.Role,
		DisplayName:   u.Name,
		ContactInfo:   u.ContactInfo(),
		AssignedAt:    now.UTC(),
	}
	if loc := u.Location(); loc != nil {
		d := algorithms.Haversine(report.Latitude, report.Longitude, loc.Latitude, loc.Longitude)
		a.DistanceAtAssignment = &d
	}
	return a
}

func statusChangeJob(report *models.Report, t transition) (*models.FanoutJob, error) {
	payload, err := json.Marshal(models.StatusChangePayload{Change: t.change, DeclinedBy: t.declinedBy})
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return &models.FanoutJob{
		ReportID: report.ID,
		Category: report.Category,
		Kind:     models.FanoutKindStatusChanged,
		Payload:  datatypes.JSON(payload),
		Status:   models.FanoutStatusPending,
	}, nil
}

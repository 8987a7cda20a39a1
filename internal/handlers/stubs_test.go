package handlers

import (
	"disaster_backend/internal/algorithms"
	"disaster_backend/internal/auth"
	"disaster_backend/internal/models"
	"disaster_backend/internal/repositories"
	"disaster_backend/internal/services"
	"disaster_backend/internal/services/dto"

	"gorm.io/gorm"
)

// Заглушки сервисов: запоминают аргументы и возвращают заданный результат.

type stubReportService struct {
	services.ReportService

	actor    *auth.Actor
	category models.Category
	id       string
	create   *dto.CreateReportRequest
	update   *dto.UpdateReportRequest
	query    dto.ListReportsQuery
	page     int
	pageSize int

	result *dto.ReportResult
	list   *dto.ReportListResponse
	report *models.Report
	err    error
}

func (s *stubReportService) CreateReport(_ *gorm.DB, actor *auth.Actor, category models.Category, req *dto.CreateReportRequest) (*dto.ReportResult, error) {
	s.actor, s.category, s.create = actor, category, req
	return s.result, s.err
}

func (s *stubReportService) GetReport(_ *gorm.DB, actor *auth.Actor, category models.Category, id string) (*models.Report, error) {
	s.actor, s.category, s.id = actor, category, id
	return s.report, s.err
}

func (s *stubReportService) ListReports(_ *gorm.DB, actor *auth.Actor, category models.Category, query dto.ListReportsQuery, page, pageSize int) (*dto.ReportListResponse, error) {
	s.actor, s.category, s.query, s.page, s.pageSize = actor, category, query, page, pageSize
	return s.list, s.err
}

func (s *stubReportService) UpdateReport(_ *gorm.DB, actor *auth.Actor, category models.Category, id string, req *dto.UpdateReportRequest) (*dto.ReportResult, error) {
	s.actor, s.category, s.id, s.update = actor, category, id, req
	return s.result, s.err
}

func (s *stubReportService) DeleteReport(_ *gorm.DB, actor *auth.Actor, category models.Category, id string) error {
	s.actor, s.category, s.id = actor, category, id
	return s.err
}

type stubAssignmentService struct {
	services.AssignmentService

	actor    *auth.Actor
	reportID string
	assign   *dto.AssignRequest
	auto     *dto.AutoAssignRequest
	respond  *dto.ResponderStatusRequest

	result *dto.ReportResult
	err    error
}

func (s *stubAssignmentService) Assign(_ *gorm.DB, actor *auth.Actor, _ models.Category, reportID string, req *dto.AssignRequest) (*dto.ReportResult, error) {
	s.actor, s.reportID, s.assign = actor, reportID, req
	return s.result, s.err
}

func (s *stubAssignmentService) AutoAssign(_ *gorm.DB, actor *auth.Actor, _ models.Category, reportID string, req *dto.AutoAssignRequest) (*dto.ReportResult, error) {
	s.actor, s.reportID, s.auto = actor, reportID, req
	return s.result, s.err
}

func (s *stubAssignmentService) Respond(_ *gorm.DB, actor *auth.Actor, reportID string, req *dto.ResponderStatusRequest) (*dto.ReportResult, error) {
	s.actor, s.reportID, s.respond = actor, reportID, req
	return s.result, s.err
}

type stubResponderService struct {
	services.ResponderService

	lat, lon float64
	opts     algorithms.Options
	nearby   []dto.NearbyResponder
}

func (s *stubResponderService) FindNearby(_ *gorm.DB, lat, lon float64, opts algorithms.Options) ([]dto.NearbyResponder, error) {
	s.lat, s.lon, s.opts = lat, lon, opts
	return s.nearby, nil
}

type stubNotificationService struct {
	services.NotificationService

	userID   string
	criteria repositories.NotificationCriteria
	err      error
}

func (s *stubNotificationService) GetUserNotifications(_ *gorm.DB, userID string, criteria repositories.NotificationCriteria) (*dto.NotificationListResponse, error) {
	s.userID, s.criteria = userID, criteria
	return &dto.NotificationListResponse{Notifications: []models.Notification{}, Page: criteria.Page, PageSize: criteria.PageSize}, s.err
}

func (s *stubNotificationService) GetUnreadCount(_ *gorm.DB, userID string) (int64, error) {
	s.userID = userID
	return 3, s.err
}

func (s *stubNotificationService) MarkAsRead(_ *gorm.DB, userID, id string) (*models.Notification, error) {
	s.userID = userID
	if s.err != nil {
		return nil, s.err
	}
	n := &models.Notification{UserID: userID, IsRead: true}
	n.ID = id
	return n, nil
}

func (s *stubNotificationService) MarkAllAsRead(_ *gorm.DB, userID string) (int64, error) {
	s.userID = userID
	return 2, s.err
}

package services

import (
	"time"

	"disaster_backend/internal/algorithms"
	"disaster_backend/internal/cache"
	"disaster_backend/internal/email"
	"disaster_backend/internal/events"
	"disaster_backend/internal/repositories"
)

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	ReportService       ReportService
	AssignmentService   AssignmentService
	ResponderService    ResponderService
	NotificationService NotificationService
	AlertService        AlertService
	OutboxService       OutboxService
	EmailService        email.Provider
}

// Settings - то, что сервисы берут из конфигурации
type Settings struct {
	Outbox          bool
	BatchSize       int
	ResponderTTL    time.Duration
	Matching        algorithms.Options
	AlertRecipients []string
	AlertThreshold  int
}

// Repositories - набор репозиториев, на которых строятся сервисы
type Repositories struct {
	Reports       repositories.ReportRepository
	Users         repositories.UserRepository
	Notifications repositories.NotificationRepository
	Outbox        repositories.OutboxRepository
}

func NewRepositories() Repositories {
	return Repositories{
		Reports:       repositories.NewReportRepository(),
		Users:         repositories.NewUserRepository(),
		Notifications: repositories.NewNotificationRepository(),
		Outbox:        repositories.NewOutboxRepository(),
	}
}

func NewServiceContainer(
	repos Repositories,
	store cache.Store,
	publisher events.Publisher,
	mailer email.Provider,
	settings Settings,
) *ServiceContainer {
	notificationService := NewNotificationService(repos.Notifications, repos.Users, settings.BatchSize)
	responderService := NewResponderService(repos.Users, store, settings.ResponderTTL, settings.Matching)
	assignmentService := NewAssignmentService(repos.Reports, repos.Users, responderService, notificationService, publisher, settings.Outbox)
	alertService := NewAlertService(mailer, settings.AlertRecipients, settings.AlertThreshold)
	reportService := NewReportService(repos.Reports, notificationService, assignmentService, alertService, publisher, store, settings.Outbox)
	outboxService := NewOutboxService(repos.Outbox, repos.Reports, notificationService)

	return &ServiceContainer{
		ReportService:       reportService,
		AssignmentService:   assignmentService,
		ResponderService:    responderService,
		NotificationService: notificationService,
		AlertService:        alertService,
		OutboxService:       outboxService,
		EmailService:        mailer,
	}
}

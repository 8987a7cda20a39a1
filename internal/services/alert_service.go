package services

import (
	"context"
	"fmt"
	"time"

	"disaster_backend/internal/email"
	"disaster_backend/internal/logger"
	"disaster_backend/internal/models"
)

// AlertService - письмо властям о серьезном инциденте
type AlertService interface {
	// NotifyIfSevere возвращает true, если письмо отправлено
	NotifyIfSevere(ctx context.Context, report *models.Report) (bool, error)
}

type AlertServiceImpl struct {
	provider   email.Provider
	recipients []string
	threshold  int
}

func NewAlertService(provider email.Provider, recipients []string, threshold int) AlertService {
	return &AlertServiceImpl{
		provider:   provider,
		recipients: recipients,
		threshold:  threshold,
	}
}

func (s *AlertServiceImpl) NotifyIfSevere(ctx context.Context, report *models.Report) (bool, error) {
	if s.provider == nil || len(s.recipients) == 0 || s.threshold <= 0 {
		return false, nil
	}
	if report.DangerLevel < s.threshold {
		return false, nil
	}

	info := report.Category.Info()
	subject := fmt.Sprintf("[Danger %d] %s: %s", report.DangerLevel, info.Title, report.Name)
	data := email.TemplateData{
		"Title":       info.Title,
		"Name":        report.Name,
		"Description": report.Description,
		"Category":    string(report.Category),
		"DangerLevel": report.DangerLevel,
		"Latitude":    report.Latitude,
		"Longitude":   report.Longitude,
		"Source":      string(report.Source),
		"ReportID":    report.ID,
		"CreatedAt":   report.CreatedAt.UTC().Format(time.RFC3339),
	}

	if err := s.provider.SendTemplate(ctx, s.recipients, subject, email.TemplateReportAlert, data); err != nil {
		return false, fmt.Errorf("send alert for report %s: %w", report.ID, err)
	}
	logger.CtxInfo(ctx, "Authority alert sent", "report_id", report.ID, "danger_level", report.DangerLevel, "recipients", len(s.recipients))
	return true, nil
}

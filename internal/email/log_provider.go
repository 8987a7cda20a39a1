package email

import (
	"context"

	"disaster_backend/internal/logger"
)

// LogProvider используется для локальной разработки, когда SMTP не настроен:
// письмо не уходит, а пишется в лог.
type LogProvider struct{}

func (LogProvider) Send(ctx context.Context, email *Email) error {
	logger.CtxInfo(ctx, "Email suppressed (SMTP disabled)", "to", email.To, "subject", email.Subject)
	return nil
}

func (LogProvider) SendTemplate(ctx context.Context, to []string, subject, templateName string, data TemplateData) error {
	logger.CtxInfo(ctx, "Email suppressed (SMTP disabled)", "to", to, "subject", subject, "template", templateName)
	return nil
}

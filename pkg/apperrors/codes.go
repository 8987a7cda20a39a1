package apperrors

// ErrorCode - машинно-читаемый код ошибки, уходит клиенту в поле "code"
type ErrorCode string

const (
	// System
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// Business logic
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeInvalidStatus    ErrorCode = "INVALID_STATUS"
	CodeLimitExceeded    ErrorCode = "LIMIT_EXCEEDED"

	// Auth
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeInvalidToken ErrorCode = "INVALID_TOKEN"
	CodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
)

// Коды warnings: успешный ответ, но побочный эффект (уведомления, события, письмо) не выполнился
const (
	WarningNotificationFanout = "notification_fanout_failed"
	WarningEventPublish       = "event_publish_failed"
	WarningAlertMail          = "alert_mail_failed"
	WarningOutboxEnqueue      = "outbox_enqueue_failed"
)

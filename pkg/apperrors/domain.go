package apperrors

import (
	"net/http"
)

// =========================================================================
// Фабрики
// =========================================================================

// ErrNotFound - фабрика для ошибки "не найдено" (404)
func ErrNotFound(err error, domain, message string) *AppError {
	return Wrap(err, CodeNotFound, domain, message, http.StatusNotFound)
}

// ErrConflict - общая фабрика для конфликтов (409)
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// ErrInvalidStatus - переход недопустим из текущего статуса (409)
func ErrInvalidStatus(domain, message string) *AppError {
	return New(CodeInvalidStatus, domain, message, http.StatusConflict)
}

// =========================================================================
// Predefined errors
// =========================================================================

// --- Auth ---

var ErrMissingToken = New(
	CodeUnauthorized,
	"auth",
	"Authorization header missing or invalid",
	http.StatusUnauthorized,
)

var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized,
)

var ErrInsufficientPermissions = New(
	CodeForbidden,
	"auth",
	"Insufficient permissions",
	http.StatusForbidden,
)

var ErrActorInactive = New(
	CodeForbidden,
	"auth",
	"Account is not active",
	http.StatusForbidden,
)

// --- Reports ---

var ErrUnknownCategory = New(
	CodeValidationFailed,
	"report",
	"Unknown disaster category",
	http.StatusBadRequest,
)

var ErrReportNotFound = New(
	CodeNotFound,
	"report",
	"Report not found",
	http.StatusNotFound,
)

// ErrReportResolved - любой переход на решённом отчёте запрещён
var ErrReportResolved = New(
	CodeInvalidStatus,
	"report",
	"Report is resolved, no further transitions are allowed",
	http.StatusConflict,
)

var ErrReportBusy = New(
	CodeConflict,
	"report",
	"Report was modified concurrently, retry the request",
	http.StatusConflict,
)

var ErrDuplicateExternalReport = New(
	CodeAlreadyExists,
	"report",
	"Report from this source already exists",
	http.StatusConflict,
)

// --- Assignments ---

var ErrResponderNotFound = New(
	CodeNotFound,
	"assignment",
	"Responder not found or inactive",
	http.StatusNotFound,
)

var ErrResponderAlreadyAssigned = New(
	CodeConflict,
	"assignment",
	"Responder is already assigned to this report",
	http.StatusConflict,
)

var ErrResponderNotAssigned = New(
	CodeForbidden,
	"assignment",
	"Responder is not assigned to this report",
	http.StatusForbidden,
)

var ErrNoNearbyResponders = New(
	CodeNotFound,
	"assignment",
	"No available responders within range",
	http.StatusNotFound,
)

var ErrNoRespondersGiven = New(
	CodeValidationFailed,
	"assignment",
	"At least one responder is required",
	http.StatusBadRequest,
)

var ErrUnassignViaUpdate = New(
	CodeValidationFailed,
	"assignment",
	"Assigned responders can only leave a report by declining it",
	http.StatusBadRequest,
)

var ErrUnknownResponderAction = New(
	CodeValidationFailed,
	"assignment",
	"Status must be one of: accepted, declined, resolved",
	http.StatusBadRequest,
)

// --- Notifications ---

var ErrNotificationNotFound = New(
	CodeNotFound,
	"notification",
	"Notification not found",
	http.StatusNotFound,
)

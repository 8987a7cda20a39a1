package services

import (
	"context"
	"errors"

	"disaster_backend/internal/models"
	"disaster_backend/internal/repositories"
	"disaster_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// handleReportError переводит ошибки репозитория и машины состояний в AppError
func handleReportError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}

	var fieldErrs models.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		return apperrors.ValidationError(map[string]string(fieldErrs))
	case errors.Is(err, repositories.ErrReportNotFound):
		return apperrors.ErrReportNotFound
	case errors.Is(err, repositories.ErrDuplicateExternalReport):
		return apperrors.ErrDuplicateExternalReport
	case errors.Is(err, repositories.ErrStaleReport):
		return apperrors.ErrReportBusy
	case errors.Is(err, models.ErrTransitionOnResolved):
		return apperrors.ErrReportResolved
	case errors.Is(err, models.ErrNoAssignments):
		return apperrors.ErrNoRespondersGiven
	case errors.Is(err, models.ErrAlreadyAssigned):
		return apperrors.ErrResponderAlreadyAssigned
	case errors.Is(err, models.ErrNotAssigned):
		return apperrors.ErrResponderNotAssigned
	case errors.Is(err, models.ErrUnknownAction):
		return apperrors.ErrUnknownResponderAction
	default:
		return apperrors.InternalError(err)
	}
}

func handleNotificationError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrNotificationNotFound) {
		return apperrors.ErrNotificationNotFound
	}
	return apperrors.InternalError(err)
}

// ctxOf - контекст запроса, привязанный к сессии gorm в DBMiddleware
func ctxOf(db *gorm.DB) context.Context {
	if db == nil || db.Statement == nil || db.Statement.Context == nil {
		return context.Background()
	}
	return db.Statement.Context
}

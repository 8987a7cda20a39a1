package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

var (
	ErrTransitionOnResolved = errors.New("report is resolved")
	ErrNoAssignments        = errors.New("no responders given")
	ErrAlreadyAssigned      = errors.New("responder already assigned")
	ErrNotAssigned          = errors.New("responder not assigned")
	ErrUnknownAction        = errors.New("unknown responder action")
)

// TransitionActor - кто применяет переход.
// CanResolveAny дает право закрыть отчет без назначения.
type TransitionActor struct {
	ID            string
	Role          UserRole
	CanResolveAny bool
}

func (r *Report) appendHistory(action HistoryAction, by TransitionActor, note string, now time.Time) StatusChange {
	change := StatusChange{
		Status:        r.Status,
		Action:        action,
		ChangedBy:     by.ID,
		ChangedByRole: by.Role,
		Note:          note,
		Timestamp:     now.UTC(),
	}
	r.StatusHistory = append(r.StatusHistory, change)
	return change
}

// RecordCreation выставляет начальное состояние и первую запись истории
func (r *Report) RecordCreation(by TransitionActor, now time.Time) StatusChange {
	r.Status = ReportStatusPending
	r.AssignedResponders = datatypes.JSONSlice[Assignment]{}
	r.StatusHistory = datatypes.JSONSlice[StatusChange]{}
	r.CreatedBy = by.ID
	return r.appendHistory(HistoryActionCreate, by, "", now)
}

// Assign прикрепляет спасателей и переводит отчет в processing.
// Допустимо из pending, processing и declined.
func (r *Report) Assign(assignments []Assignment, by TransitionActor, now time.Time) (StatusChange, error) {
	if r.IsResolved() {
		return StatusChange{}, ErrTransitionOnResolved
	}
	if len(assignments) == 0 {
		return StatusChange{}, ErrNoAssignments
	}

	seen := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		if _, dup := seen[a.ResponderID]; dup || r.IsAssigned(a.ResponderID) {
			return StatusChange{}, ErrAlreadyAssigned
		}
		seen[a.ResponderID] = struct{}{}
	}

	for _, a := range assignments {
		if a.AssignedAt.IsZero() {
			a.AssignedAt = now.UTC()
		}
		r.AssignedResponders = append(r.AssignedResponders, a)
	}
	r.Status = ReportStatusProcessing

	return r.appendHistory(HistoryActionAssign, by, "", now), nil
}

// ApplyResponderAction - accept/decline/resolve от спасателя.
//
// accept: статус не меняется, только запись в истории.
// decline: спасатель снимается; пустой список -> pending, иначе -> declined.
// resolve: терминальный статус.
func (r *Report) ApplyResponderAction(action ResponderAction, by TransitionActor, note string, now time.Time) (StatusChange, error) {
	if !action.IsValid() {
		return StatusChange{}, ErrUnknownAction
	}
	if r.IsResolved() {
		return StatusChange{}, ErrTransitionOnResolved
	}

	idx := r.assignmentIndex(by.ID)
	if idx < 0 && !(action == ResponderActionResolved && by.CanResolveAny) {
		return StatusChange{}, ErrNotAssigned
	}

	switch action {
	case ResponderActionAccepted:
		return r.appendHistory(HistoryActionAccept, by, note, now), nil

	case ResponderActionDeclined:
		remaining := make([]Assignment, 0, len(r.AssignedResponders)-1)
		remaining = append(remaining, r.AssignedResponders[:idx]...)
		remaining = append(remaining, r.AssignedResponders[idx+1:]...)
		r.AssignedResponders = remaining

		if len(remaining) == 0 {
			r.Status = ReportStatusPending
		} else {
			r.Status = ReportStatusDeclined
		}
		return r.appendHistory(HistoryActionDecline, by, note, now), nil

	default:
		r.Status = ReportStatusResolved
		return r.appendHistory(HistoryActionResolve, by, note, now), nil
	}
}

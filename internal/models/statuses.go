package models

type UserStatus string
type UserRole string
type ReportStatus string
type ReportSource string
type HistoryAction string
type ResponderAction string
type FanoutKind string
type FanoutStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"

	UserRoleCitizen     UserRole = "citizen"
	UserRoleFirefighter UserRole = "firefighter"
	UserRoleNGO         UserRole = "ngo"
	UserRoleAuthority   UserRole = "authority"
	UserRoleAdmin       UserRole = "admin"
	// UserRoleSystem - внутренний актор для ингеста и воркеров, в users не хранится
	UserRoleSystem UserRole = "system"

	ReportStatusPending    ReportStatus = "pending"
	ReportStatusProcessing ReportStatus = "processing"
	ReportStatusResolved   ReportStatus = "resolved"
	ReportStatusDeclined   ReportStatus = "declined"

	ReportSourceUser  ReportSource = "user"
	ReportSourceGDACS ReportSource = "gdacs"

	HistoryActionCreate  HistoryAction = "create"
	HistoryActionAssign  HistoryAction = "assign"
	HistoryActionAccept  HistoryAction = "accept"
	HistoryActionDecline HistoryAction = "decline"
	HistoryActionResolve HistoryAction = "resolve"

	ResponderActionAccepted ResponderAction = "accepted"
	ResponderActionDeclined ResponderAction = "declined"
	ResponderActionResolved ResponderAction = "resolved"

	FanoutKindReportCreated FanoutKind = "report_created"
	FanoutKindStatusChanged FanoutKind = "status_changed"

	FanoutStatusPending FanoutStatus = "pending"
	FanoutStatusDone    FanoutStatus = "done"
	FanoutStatusFailed  FanoutStatus = "failed"

	NotificationTypeDisaster     = "disaster"
	NotificationTypeReportStatus = "report_status"
)

// UserRoles - роли, которые может нести токен
var UserRoles = []UserRole{UserRoleCitizen, UserRoleFirefighter, UserRoleNGO, UserRoleAuthority, UserRoleAdmin}

func (r UserRole) IsValid() bool {
	for _, role := range UserRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsResponder - только пожарные и НКО могут быть назначены на отчет
func (r UserRole) IsResponder() bool {
	return r == UserRoleFirefighter || r == UserRoleNGO
}

func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportStatusPending, ReportStatusProcessing, ReportStatusResolved, ReportStatusDeclined:
		return true
	}
	return false
}

func (a ResponderAction) IsValid() bool {
	switch a {
	case ResponderActionAccepted, ResponderActionDeclined, ResponderActionResolved:
		return true
	}
	return false
}

// HistoryAction - запись истории, которую порождает действие спасателя
func (a ResponderAction) HistoryAction() HistoryAction {
	switch a {
	case ResponderActionAccepted:
		return HistoryActionAccept
	case ResponderActionDeclined:
		return HistoryActionDecline
	case ResponderActionResolved:
		return HistoryActionResolve
	}
	return HistoryAction(a)
}

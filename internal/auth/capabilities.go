package auth

import (
	"disaster_backend/internal/models"
	"disaster_backend/pkg/apperrors"
)

type Capability string

const (
	CapReportCreate        Capability = "report:create"
	CapReportUpdate        Capability = "report:update"
	CapReportDelete        Capability = "report:delete"
	CapReportReadHidden    Capability = "report:read_hidden"
	CapReportAssign        Capability = "report:assign"
	CapReportRespond       Capability = "report:respond"
	CapReportResolveAny    Capability = "report:resolve_any"
	CapResponderSearch     Capability = "responder:search"
	CapNotificationReadOwn Capability = "notification:read_own"
)

// Capabilities - единственная таблица прав: capability -> роли
var Capabilities = map[Capability][]models.UserRole{
	CapReportCreate:        {models.UserRoleCitizen, models.UserRoleAuthority, models.UserRoleAdmin, models.UserRoleSystem},
	CapReportUpdate:        {models.UserRoleAuthority, models.UserRoleAdmin},
	CapReportDelete:        {models.UserRoleAuthority, models.UserRoleAdmin},
	CapReportReadHidden:    {models.UserRoleAuthority, models.UserRoleAdmin},
	CapReportAssign:        {models.UserRoleAuthority, models.UserRoleAdmin},
	CapReportRespond:       {models.UserRoleFirefighter, models.UserRoleNGO, models.UserRoleAuthority, models.UserRoleAdmin},
	CapReportResolveAny:    {models.UserRoleAuthority, models.UserRoleAdmin},
	CapResponderSearch:     {models.UserRoleAuthority, models.UserRoleAdmin, models.UserRoleFirefighter, models.UserRoleNGO},
	CapNotificationReadOwn: models.UserRoles,
}

// HasCapability проверяет есть ли у роли указанное право
func HasCapability(role models.UserRole, capability Capability) bool {
	for _, r := range Capabilities[capability] {
		if r == role {
			return true
		}
	}
	return false
}

// Actor - аутентифицированный вызывающий, один тип для всех ролей
type Actor struct {
	ID     string
	Role   models.UserRole
	Status models.UserStatus
}

// SystemActor - от его имени создаются отчеты из внешних лент
var SystemActor = &Actor{
	ID:     "00000000-0000-0000-0000-000000000000",
	Role:   models.UserRoleSystem,
	Status: models.UserStatusActive,
}

func (a *Actor) IsActive() bool {
	return a != nil && a.Status == models.UserStatusActive
}

func (a *Actor) Can(capability Capability) bool {
	return a.IsActive() && HasCapability(a.Role, capability)
}

// Require возвращает Forbidden, если актор неактивен или у роли нет права
func (a *Actor) Require(capability Capability) error {
	if a == nil {
		return apperrors.ErrMissingToken
	}
	if !a.IsActive() {
		return apperrors.ErrActorInactive
	}
	if !HasCapability(a.Role, capability) {
		return apperrors.ErrInsufficientPermissions.WithDetails(map[string]string{"capability": string(capability)})
	}
	return nil
}

// TransitionActor - представление актора для машины состояний отчета
func (a *Actor) TransitionActor() models.TransitionActor {
	return models.TransitionActor{
		ID:            a.ID,
		Role:          a.Role,
		CanResolveAny: a.Can(CapReportResolveAny),
	}
}

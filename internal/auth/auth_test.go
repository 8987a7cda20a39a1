package auth

import (
	"testing"
	"time"

	"disaster_backend/internal/models"
	"disaster_backend/pkg/apperrors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestCapabilityTable(t *testing.T) {
	cases := []struct {
		role    models.UserRole
		allowed []Capability
	}{
		{models.UserRoleCitizen, []Capability{CapReportCreate, CapNotificationReadOwn}},
		{models.UserRoleFirefighter, []Capability{CapReportRespond, CapResponderSearch, CapNotificationReadOwn}},
		{models.UserRoleNGO, []Capability{CapReportRespond, CapResponderSearch, CapNotificationReadOwn}},
		{models.UserRoleAuthority, []Capability{CapReportCreate, CapReportUpdate, CapReportDelete, CapReportReadHidden, CapReportAssign, CapReportRespond, CapReportResolveAny, CapResponderSearch, CapNotificationReadOwn}},
		{models.UserRoleAdmin, []Capability{CapReportCreate, CapReportUpdate, CapReportDelete, CapReportReadHidden, CapReportAssign, CapReportRespond, CapReportResolveAny, CapResponderSearch, CapNotificationReadOwn}},
	}

	for _, tc := range cases {
		allowed := map[Capability]bool{}
		for _, c := range tc.allowed {
			allowed[c] = true
		}
		for capability := range Capabilities {
			assert.Equal(t, allowed[capability], HasCapability(tc.role, capability), "%s -> %s", tc.role, capability)
		}
	}
}

func TestActorRequire(t *testing.T) {
	active := &Actor{ID: "u1", Role: models.UserRoleCitizen, Status: models.UserStatusActive}
	assert.NoError(t, active.Require(CapReportCreate))
	assert.ErrorIs(t, active.Require(CapReportAssign), apperrors.ErrInsufficientPermissions)

	suspended := &Actor{ID: "u2", Role: models.UserRoleAdmin, Status: models.UserStatusSuspended}
	assert.ErrorIs(t, suspended.Require(CapReportCreate), apperrors.ErrActorInactive)
	assert.False(t, suspended.Can(CapReportCreate))

	var nobody *Actor
	assert.ErrorIs(t, nobody.Require(CapNotificationReadOwn), apperrors.ErrMissingToken)
}

func TestTransitionActor(t *testing.T) {
	authority := &Actor{ID: "a1", Role: models.UserRoleAuthority, Status: models.UserStatusActive}
	assert.True(t, authority.TransitionActor().CanResolveAny)

	ff := &Actor{ID: "f1", Role: models.UserRoleFirefighter, Status: models.UserStatusActive}
	assert.False(t, ff.TransitionActor().CanResolveAny)
}

func TestParseToken_RoundTrip(t *testing.T) {
	token, err := IssueToken(secret, "user-1", models.UserRoleFirefighter, models.UserStatusActive, time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	actor := claims.Actor()
	assert.Equal(t, "user-1", actor.ID)
	assert.Equal(t, models.UserRoleFirefighter, actor.Role)
	assert.True(t, actor.IsActive())
}

func TestParseToken_Rejects(t *testing.T) {
	expired, err := IssueToken(secret, "user-1", models.UserRoleCitizen, models.UserStatusActive, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, secret)
	assert.Error(t, err)

	valid, err := IssueToken(secret, "user-1", models.UserRoleCitizen, models.UserStatusActive, time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(valid, "other-secret")
	assert.Error(t, err)

	unknownRole, err := IssueToken(secret, "user-1", models.UserRole("model"), models.UserStatusActive, time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(unknownRole, secret)
	assert.ErrorIs(t, err, ErrMalformedClaims)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             models.UserRoleCitizen,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	signed, err := noExp.SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ParseToken(signed, secret)
	assert.Error(t, err)
}

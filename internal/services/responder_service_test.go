package services

import (
	"testing"
	"time"

	"disaster_backend/internal/algorithms"
	"disaster_backend/internal/cache"
	"disaster_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindNearby(t *testing.T) {
	users := &fakeUserRepo{users: []models.User{
		user(responder1ID, models.UserRoleFirefighter, models.UserStatusActive, ptr(23.82), ptr(90.42)),
		user(farNgoID, models.UserRoleNGO, models.UserStatusActive, ptr(23.90), ptr(90.50)),
		user(inactiveID, models.UserRoleFirefighter, models.UserStatusSuspended, ptr(23.81), ptr(90.41)),
		user(responder2ID, models.UserRoleNGO, models.UserStatusActive, nil, nil),
	}}
	svc := NewResponderService(users, cache.NewMemoryStore(time.Minute), time.Minute, algorithms.Options{MaxDistanceMeters: 10000, Limit: 5})

	nearby, err := svc.FindNearby(nil, 23.81, 90.41, algorithms.Options{MaxDistanceMeters: 5000})
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, responder1ID, nearby[0].ID)
	assert.Equal(t, models.UserRoleFirefighter, nearby[0].Role)
	assert.InDelta(t, 1507, nearby[0].Distance, 2)
	assert.Equal(t, 23.82, nearby[0].Latitude)

	t.Run("wider radius sorted by distance", func(t *testing.T) {
		nearby, err := svc.FindNearby(nil, 23.81, 90.41, algorithms.Options{MaxDistanceMeters: 20000})
		require.NoError(t, err)
		require.Len(t, nearby, 2)
		assert.Equal(t, responder1ID, nearby[0].ID)
		assert.Equal(t, farNgoID, nearby[1].ID)
		assert.InDelta(t, 13562, nearby[1].Distance, 5)
	})

	t.Run("limit", func(t *testing.T) {
		nearby, err := svc.FindNearby(nil, 23.81, 90.41, algorithms.Options{MaxDistanceMeters: 20000, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, nearby, 1)
	})

	t.Run("defaults apply to zero options", func(t *testing.T) {
		nearby, err := svc.FindNearby(nil, 23.81, 90.41, algorithms.Options{})
		require.NoError(t, err)
		require.Len(t, nearby, 1, "far responder is beyond the default 10 km")
	})

	t.Run("snapshot is cached", func(t *testing.T) {
		assert.Equal(t, 1, users.responderCalls)

		svc.Invalidate(nil)
		_, err := svc.ActiveResponders(nil)
		require.NoError(t, err)
		assert.Equal(t, 2, users.responderCalls)
	})
}

func TestActiveResponders_WithoutCache(t *testing.T) {
	users := &fakeUserRepo{users: []models.User{
		user(responder1ID, models.UserRoleFirefighter, models.UserStatusActive, ptr(23.82), ptr(90.42)),
		user(citizenID, models.UserRoleCitizen, models.UserStatusActive, ptr(23.82), ptr(90.42)),
	}}
	svc := NewResponderService(users, nil, time.Minute, algorithms.Options{})

	for i := 0; i < 2; i++ {
		snapshot, err := svc.ActiveResponders(nil)
		require.NoError(t, err)
		require.Len(t, snapshot, 1)
		assert.Equal(t, responder1ID+"@example.org", snapshot[0].ContactInfo)
	}
	assert.Equal(t, 2, users.responderCalls)
	svc.Invalidate(nil)
}

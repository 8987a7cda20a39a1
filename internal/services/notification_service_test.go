package services

import (
	"testing"

	"disaster_backend/internal/auth"
	"disaster_backend/internal/models"
	"disaster_backend/internal/repositories"
	"disaster_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestStatusChangeRecipients(t *testing.T) {
	report := &models.Report{
		CreatedBy: citizenID,
		AssignedResponders: datatypes.JSONSlice[models.Assignment]{
			{ResponderID: responder1ID},
			{ResponderID: responder2ID},
		},
	}

	tests := []struct {
		name       string
		report     *models.Report
		actorID    string
		declinedBy string
		want       []string
	}{
		{"actor excluded", report, responder1ID, "", []string{citizenID, responder2ID}},
		{"decliner kept when someone else acts", report, authorityID, farNgoID, []string{citizenID, responder1ID, responder2ID, farNgoID}},
		{"creator acting on own report", report, citizenID, "", []string{responder1ID, responder2ID}},
		{"system creator skipped", &models.Report{CreatedBy: auth.SystemActor.ID}, authorityID, "", []string{}},
		{"dedupe", &models.Report{CreatedBy: responder1ID, AssignedResponders: datatypes.JSONSlice[models.Assignment]{{ResponderID: responder1ID}}}, authorityID, responder1ID, []string{responder1ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusChangeRecipients(tt.report, tt.actorID, tt.declinedBy))
		})
	}
}

func TestNotificationService_OwnNotifications(t *testing.T) {
	f := newFixture(false)
	report := f.createFlood(t)
	_, err := f.svc.NotificationService.NotifyAllUsers(nil, report)
	require.NoError(t, err)

	svc := f.svc.NotificationService

	count, err := svc.GetUnreadCount(nil, responder1ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	list, err := svc.GetUserNotifications(nil, responder1ID, repositories.NotificationCriteria{UnreadOnly: true, Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, list.Notifications, 1)
	own := list.Notifications[0]

	t.Run("foreign notification is not found", func(t *testing.T) {
		_, err := svc.MarkAsRead(nil, responder2ID, own.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)
	})

	t.Run("mark as read is idempotent", func(t *testing.T) {
		first, err := svc.MarkAsRead(nil, responder1ID, own.ID)
		require.NoError(t, err)
		assert.True(t, first.IsRead)
		require.NotNil(t, first.ReadAt)

		second, err := svc.MarkAsRead(nil, responder1ID, own.ID)
		require.NoError(t, err)
		assert.Equal(t, *first.ReadAt, *second.ReadAt)

		count, err := svc.GetUnreadCount(nil, responder1ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("mark all", func(t *testing.T) {
		modified, err := svc.MarkAllAsRead(nil, citizenID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, modified)

		modified, err = svc.MarkAllAsRead(nil, citizenID)
		require.NoError(t, err)
		assert.Zero(t, modified)
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		list, err := svc.GetUserNotifications(nil, inactiveID, repositories.NotificationCriteria{Page: 1, PageSize: 20})
		require.NoError(t, err)
		assert.NotNil(t, list.Notifications)
		assert.Empty(t, list.Notifications)
	})
}

func TestNotifyAllUsers_NoUsers(t *testing.T) {
	notifications := &fakeNotificationRepo{}
	svc := NewNotificationService(notifications, &fakeUserRepo{}, 0)

	n, err := svc.NotifyAllUsers(nil, &models.Report{Category: models.CategoryFire})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, notifications.batches)
}

package services

import (
	"encoding/json"
	"testing"

	"disaster_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestProcessJob(t *testing.T) {
	f := newFixture(true)
	report := f.createFlood(t)

	t.Run("report_created notifies everyone", func(t *testing.T) {
		job := &models.FanoutJob{ReportID: report.ID, Category: report.Category, Kind: models.FanoutKindReportCreated}
		require.NoError(t, f.svc.OutboxService.ProcessJob(nil, job))
		assert.Len(t, f.notifications.forReport(report.ID), 5)
	})

	t.Run("status_changed notifies participants", func(t *testing.T) {
		f.notifications.notifications = nil
		payload, err := json.Marshal(models.StatusChangePayload{Change: models.StatusChange{
			Status:    models.ReportStatusProcessing,
			Action:    models.HistoryActionAssign,
			ChangedBy: authorityID,
		}})
		require.NoError(t, err)

		job := &models.FanoutJob{ReportID: report.ID, Kind: models.FanoutKindStatusChanged, Payload: datatypes.JSON(payload)}
		require.NoError(t, f.svc.OutboxService.ProcessJob(nil, job))

		notes := f.notifications.forReport(report.ID)
		require.Len(t, notes, 1)
		assert.Equal(t, citizenID, notes[0].UserID)
	})

	t.Run("deleted report is skipped", func(t *testing.T) {
		job := &models.FanoutJob{ReportID: "0b6c2f1e-8888-4000-8000-000000000008", Kind: models.FanoutKindReportCreated}
		assert.NoError(t, f.svc.OutboxService.ProcessJob(nil, job))
	})

	t.Run("bad payload", func(t *testing.T) {
		job := &models.FanoutJob{ReportID: report.ID, Kind: models.FanoutKindStatusChanged, Payload: datatypes.JSON(`{`)}
		assert.Error(t, f.svc.OutboxService.ProcessJob(nil, job))
	})

	t.Run("unknown kind", func(t *testing.T) {
		job := &models.FanoutJob{ReportID: report.ID, Kind: models.FanoutKind("digest")}
		err := f.svc.OutboxService.ProcessJob(nil, job)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "digest")
	})

	t.Run("notification failure surfaces", func(t *testing.T) {
		f.notifications.err = errBoom
		defer func() { f.notifications.err = nil }()

		job := &models.FanoutJob{ReportID: report.ID, Kind: models.FanoutKindReportCreated}
		assert.ErrorIs(t, f.svc.OutboxService.ProcessJob(nil, job), errBoom)
	})
}

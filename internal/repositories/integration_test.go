package repositories

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"disaster_backend/internal/database"
	"disaster_backend/internal/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupPostgres поднимает PostgreSQL в контейнере и применяет миграции
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() || os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run repository tests against PostgreSQL")
	}

	ctx := context.Background()
	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("disaster_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(connStr, migrationsPath))

	db, err := gorm.Open(gormpostgres.Open(connStr), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	return db.WithContext(ctx)
}

func seedUser(t *testing.T, db *gorm.DB, email string, role models.UserRole, status models.UserStatus) *models.User {
	t.Helper()
	lat, lon := 23.82, 90.42
	user := &models.User{Email: email, Name: email, Role: role, Status: status, Latitude: &lat, Longitude: &lon}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newReport(category models.Category) *models.Report {
	r := &models.Report{
		Category:    category,
		Name:        "River overflow",
		Latitude:    23.81,
		Longitude:   90.41,
		DangerLevel: 7,
		Visible:     true,
		Tags:        pq.StringArray{"river"},
	}
	r.RecordCreation(models.TransitionActor{ID: "citizen", Role: models.UserRoleCitizen}, time.Now())
	return r
}

func TestRepositories_Integration(t *testing.T) {
	db := setupPostgres(t)
	reports := NewReportRepository()
	users := NewUserRepository()
	notifications := NewNotificationRepository()
	outbox := NewOutboxRepository()

	t.Run("report create, list and hidden filter", func(t *testing.T) {
		visible := newReport(models.CategoryFlood)
		require.NoError(t, reports.Create(db, visible))
		assert.NotEmpty(t, visible.ID)
		assert.Equal(t, 1, visible.Version)

		hidden := newReport(models.CategoryFlood)
		hidden.Visible = false
		require.NoError(t, reports.Create(db, hidden))

		got, total, err := reports.FindByCategory(db, models.CategoryFlood, ReportCriteria{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, got, 1)
		assert.Equal(t, visible.ID, got[0].ID)
		assert.Empty(t, got[0].AssignedResponders)
		assert.Equal(t, pq.StringArray{"river"}, got[0].Tags)

		_, total, err = reports.FindByCategory(db, models.CategoryFlood, ReportCriteria{IncludeHidden: true})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)

		_, total, err = reports.FindByCategory(db, models.CategoryFlood, ReportCriteria{Tag: "coast"})
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)

		_, err = reports.FindByCategoryAndID(db, models.CategoryFire, visible.ID)
		assert.ErrorIs(t, err, ErrReportNotFound)
	})

	t.Run("save transition is version guarded", func(t *testing.T) {
		report := newReport(models.CategoryFire)
		require.NoError(t, reports.Create(db, report))

		stale := *report
		_, err := report.Assign([]models.Assignment{{ResponderID: "r1", ResponderRole: models.UserRoleFirefighter}},
			models.TransitionActor{ID: "a", Role: models.UserRoleAuthority}, time.Now())
		require.NoError(t, err)
		require.NoError(t, reports.SaveTransition(db, report, 1))
		assert.Equal(t, 2, report.Version)

		assert.ErrorIs(t, reports.SaveTransition(db, &stale, 1), ErrStaleReport)

		reloaded, err := reports.FindByID(db, report.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReportStatusProcessing, reloaded.Status)
		assert.Equal(t, []string{"r1"}, reloaded.ResponderIDs())
		assert.Len(t, reloaded.StatusHistory, 2)
	})

	t.Run("concurrent transitions: exactly one wins per version", func(t *testing.T) {
		report := newReport(models.CategoryCyclone)
		require.NoError(t, reports.Create(db, report))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				cp := *report
				_, _ = cp.Assign([]models.Assignment{{ResponderID: string(rune('a' + i))}},
					models.TransitionActor{ID: "a"}, time.Now())
				if err := reports.SaveTransition(db, &cp, 1); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("external id is unique per source", func(t *testing.T) {
		id := "EQ-1001"
		first := newReport(models.CategoryEarthquake)
		first.Source = models.ReportSourceGDACS
		first.ExternalID = &id
		require.NoError(t, reports.Create(db, first))

		dup := newReport(models.CategoryEarthquake)
		dup.Source = models.ReportSourceGDACS
		dup.ExternalID = &id
		assert.ErrorIs(t, reports.Create(db, dup), ErrDuplicateExternalReport)

		exists, err := reports.ExistsByExternalID(db, models.ReportSourceGDACS, id)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("failed job waits for its retry delay", func(t *testing.T) {
		report := newReport(models.CategoryLandslide)
		job := &models.FanoutJob{Category: models.CategoryLandslide, Kind: models.FanoutKindReportCreated}
		require.NoError(t, reports.CreateWithOutbox(db, report, job))

		err := db.Transaction(func(tx *gorm.DB) error {
			claimed, err := outbox.ClaimPending(tx, 10)
			require.NoError(t, err)
			require.Len(t, claimed, 1)

			failing := claimed[0]
			require.NoError(t, outbox.MarkFailed(tx, &failing, assert.AnError, 5))
			assert.Equal(t, models.FanoutStatusPending, failing.Status)
			require.NotNil(t, failing.NextAttemptAt)
			return nil
		})
		require.NoError(t, err)

		err = db.Transaction(func(tx *gorm.DB) error {
			claimed, err := outbox.ClaimPending(tx, 10)
			require.NoError(t, err)
			assert.Empty(t, claimed)
			return nil
		})
		require.NoError(t, err)

		// следующий прогон после паузы снова берет задачу
		require.NoError(t, db.Model(&models.FanoutJob{}).Where("id = ?", job.ID).
			Update("next_attempt_at", time.Now().Add(-time.Second)).Error)
		err = db.Transaction(func(tx *gorm.DB) error {
			claimed, err := outbox.ClaimPending(tx, 10)
			require.NoError(t, err)
			require.Len(t, claimed, 1)
			assert.Equal(t, 1, claimed[0].Attempts)
			return outbox.MarkDone(tx, claimed[0].ID)
		})
		require.NoError(t, err)
	})

	t.Run("create with outbox is atomic", func(t *testing.T) {
		report := newReport(models.CategoryTsunami)
		job := &models.FanoutJob{Category: models.CategoryTsunami, Kind: models.FanoutKindReportCreated}
		require.NoError(t, reports.CreateWithOutbox(db, report, job))
		assert.Equal(t, report.ID, job.ReportID)

		err := db.Transaction(func(tx *gorm.DB) error {
			claimed, err := outbox.ClaimPending(tx, 10)
			require.NoError(t, err)
			require.NotEmpty(t, claimed)
			assert.Equal(t, report.ID, claimed[0].ReportID)

			failing := claimed[0]
			require.NoError(t, outbox.MarkFailed(tx, &failing, assert.AnError, 1))
			assert.Equal(t, models.FanoutStatusFailed, failing.Status)
			return nil
		})
		require.NoError(t, err)

		err = db.Transaction(func(tx *gorm.DB) error {
			claimed, err := outbox.ClaimPending(tx, 10)
			require.NoError(t, err)
			assert.Empty(t, claimed)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("users and notifications", func(t *testing.T) {
		ff := seedUser(t, db, "ff@example.com", models.UserRoleFirefighter, models.UserStatusActive)
		seedUser(t, db, "ngo@example.com", models.UserRoleNGO, models.UserStatusSuspended)
		citizen := seedUser(t, db, "c@example.com", models.UserRoleCitizen, models.UserStatusActive)

		responders, err := users.FindActiveResponders(db)
		require.NoError(t, err)
		require.Len(t, responders, 1)
		assert.Equal(t, ff.ID, responders[0].ID)

		ids, err := users.FindActiveUserIDs(db)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{ff.ID, citizen.ID}, ids)

		batch := []*models.Notification{
			{UserID: citizen.ID, Type: models.NotificationTypeDisaster, Title: "Flood alert", Data: []byte(`{"reportId":"x"}`)},
			{UserID: citizen.ID, Type: models.NotificationTypeDisaster, Title: "Fire alert"},
			{UserID: ff.ID, Type: models.NotificationTypeDisaster, Title: "Fire alert"},
		}
		require.NoError(t, notifications.CreateBulk(db, batch, 2))

		count, err := notifications.GetUnreadCount(db, citizen.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		_, err = notifications.MarkAsRead(db, ff.ID, batch[0].ID)
		assert.ErrorIs(t, err, ErrNotificationNotFound, "foreign notification must look missing")

		read, err := notifications.MarkAsRead(db, citizen.ID, batch[0].ID)
		require.NoError(t, err)
		assert.True(t, read.IsRead)
		assert.NotNil(t, read.ReadAt)

		modified, err := notifications.MarkAllAsRead(db, citizen.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, modified)

		list, total, err := notifications.FindUserNotifications(db, citizen.ID, NotificationCriteria{UnreadOnly: true})
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)
		assert.Empty(t, list)
	})
}

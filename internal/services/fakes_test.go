package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"disaster_backend/internal/algorithms"
	"disaster_backend/internal/auth"
	"disaster_backend/internal/cache"
	"disaster_backend/internal/email"
	"disaster_backend/internal/events"
	"disaster_backend/internal/models"
	"disaster_backend/internal/repositories"
	"disaster_backend/internal/services/dto"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ---------------- Reports ----------------

type fakeReportRepo struct {
	mu          sync.Mutex
	reports     map[string]*models.Report
	jobs        []*models.FanoutJob
	staleWrites int
	createErr   error
	saves       int
	// beforeWrite срабатывает один раз перед записью, имитирует конкурентный запрос
	beforeWrite func(stored *models.Report)
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: map[string]*models.Report{}}
}

func cloneReport(r *models.Report) *models.Report {
	cp := *r
	cp.AssignedResponders = append(datatypes.JSONSlice[models.Assignment]{}, r.AssignedResponders...)
	cp.StatusHistory = append(datatypes.JSONSlice[models.StatusChange]{}, r.StatusHistory...)
	cp.Tags = append(pq.StringArray{}, r.Tags...)
	return &cp
}

func (f *fakeReportRepo) Create(_ *gorm.DB, report *models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if report.ExternalID != nil {
		for _, r := range f.reports {
			if r.ExternalID != nil && *r.ExternalID == *report.ExternalID && r.Source == report.Source {
				return repositories.ErrDuplicateExternalReport
			}
		}
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Version == 0 {
		report.Version = 1
	}
	now := time.Now()
	report.CreatedAt = now.Add(time.Duration(len(f.reports)) * time.Millisecond)
	report.UpdatedAt = report.CreatedAt
	f.reports[report.ID] = cloneReport(report)
	return nil
}

func (f *fakeReportRepo) CreateWithOutbox(db *gorm.DB, report *models.Report, job *models.FanoutJob) error {
	if err := f.Create(db, report); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	job.ReportID = report.ID
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeReportRepo) FindByID(_ *gorm.DB, id string) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, repositories.ErrReportNotFound
	}
	return cloneReport(r), nil
}

func (f *fakeReportRepo) FindByCategoryAndID(db *gorm.DB, category models.Category, id string) (*models.Report, error) {
	r, err := f.FindByID(db, id)
	if err != nil {
		return nil, err
	}
	if r.Category != category {
		return nil, repositories.ErrReportNotFound
	}
	return r, nil
}

func (f *fakeReportRepo) FindByCategory(_ *gorm.DB, category models.Category, criteria repositories.ReportCriteria) ([]models.Report, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Report
	for _, r := range f.reports {
		if r.Category != category || (!criteria.IncludeHidden && !r.Visible) {
			continue
		}
		if criteria.Tag != "" {
			found := false
			for _, t := range r.Tags {
				found = found || t == criteria.Tag
			}
			if !found {
				continue
			}
		}
		out = append(out, *cloneReport(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (f *fakeReportRepo) write(report *models.Report, expectedVersion int) error {
	f.saves++
	if hook := f.beforeWrite; hook != nil {
		f.beforeWrite = nil
		if stored, ok := f.reports[report.ID]; ok {
			hook(stored)
		}
	}
	if f.staleWrites > 0 {
		f.staleWrites--
		return repositories.ErrStaleReport
	}
	stored, ok := f.reports[report.ID]
	if !ok || stored.Version != expectedVersion {
		return repositories.ErrStaleReport
	}
	report.Version = expectedVersion + 1
	report.UpdatedAt = time.Now()
	f.reports[report.ID] = cloneReport(report)
	return nil
}

func (f *fakeReportRepo) UpdateFields(_ *gorm.DB, report *models.Report, expectedVersion int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(report, expectedVersion)
}

func (f *fakeReportRepo) SaveTransition(_ *gorm.DB, report *models.Report, expectedVersion int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(report, expectedVersion)
}

func (f *fakeReportRepo) SaveTransitionWithOutbox(db *gorm.DB, report *models.Report, expectedVersion int, job *models.FanoutJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(report, expectedVersion); err != nil {
		return err
	}
	job.ReportID = report.ID
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeReportRepo) Delete(_ *gorm.DB, category models.Category, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok || r.Category != category {
		return repositories.ErrReportNotFound
	}
	delete(f.reports, id)
	return nil
}

func (f *fakeReportRepo) ExistsByExternalID(_ *gorm.DB, source models.ReportSource, externalID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reports {
		if r.Source == source && r.ExternalID != nil && *r.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReportRepo) stored(id string) *models.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneReport(f.reports[id])
}

// ---------------- Users ----------------

type fakeUserRepo struct {
	users          []models.User
	responderCalls int
}

func (f *fakeUserRepo) FindByID(_ *gorm.DB, id string) (*models.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) FindActiveByIDs(_ *gorm.DB, ids []string) ([]models.User, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.User
	for _, u := range f.users {
		if want[u.ID] && u.IsActive() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) FindActiveResponders(_ *gorm.DB) ([]models.User, error) {
	f.responderCalls++
	var out []models.User
	for _, u := range f.users {
		if u.Role.IsResponder() && u.IsActive() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) FindActiveUserIDs(_ *gorm.DB) ([]string, error) {
	var out []string
	for _, u := range f.users {
		if u.IsActive() {
			out = append(out, u.ID)
		}
	}
	return out, nil
}

// ---------------- Notifications ----------------

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []*models.Notification
	err           error
	batches       int
}

func (f *fakeNotificationRepo) CreateBulk(_ *gorm.DB, notifications []*models.Notification, batchSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, n := range notifications {
		n.ID = uuid.NewString()
		f.notifications = append(f.notifications, n)
	}
	f.batches += (len(notifications) + batchSize - 1) / batchSize
	return nil
}

func (f *fakeNotificationRepo) FindUserNotifications(_ *gorm.DB, userID string, criteria repositories.NotificationCriteria) ([]models.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID == userID && (!criteria.UnreadOnly || !n.IsRead) {
			out = append(out, *n)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotificationRepo) MarkAsRead(_ *gorm.DB, userID, notificationID string) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == notificationID && n.UserID == userID {
			if !n.IsRead {
				now := time.Now()
				n.IsRead = true
				n.ReadAt = &now
			}
			cp := *n
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotificationNotFound
}

func (f *fakeNotificationRepo) MarkAllAsRead(_ *gorm.DB, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, item := range f.notifications {
		if item.UserID == userID && !item.IsRead {
			item.IsRead = true
			n++
		}
	}
	return n, nil
}

func (f *fakeNotificationRepo) GetUnreadCount(_ *gorm.DB, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, item := range f.notifications {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotificationRepo) forReport(reportID string) []*models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Notification
	for _, n := range f.notifications {
		if containsReportID(n.Data, reportID) {
			out = append(out, n)
		}
	}
	return out
}

func containsReportID(data datatypes.JSON, reportID string) bool {
	return reportID != "" && strings.Contains(string(data), `"reportId":"`+reportID+`"`)
}

// ---------------- Mail ----------------

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *fakeMailer) Send(_ context.Context, e *email.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, e.Subject)
	return nil
}

func (m *fakeMailer) SendTemplate(_ context.Context, _ []string, subject, _ string, _ email.TemplateData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, subject)
	return nil
}

// ---------------- Fixture ----------------

var errBoom = errors.New("boom")

const (
	citizenID    = "0b6c2f1e-1111-4000-8000-000000000001"
	authorityID  = "0b6c2f1e-2222-4000-8000-000000000002"
	responder1ID = "0b6c2f1e-3333-4000-8000-000000000003"
	responder2ID = "0b6c2f1e-4444-4000-8000-000000000004"
	farNgoID     = "0b6c2f1e-5555-4000-8000-000000000005"
	inactiveID   = "0b6c2f1e-6666-4000-8000-000000000006"
)

func ptr[T any](v T) *T { return &v }

func user(id string, role models.UserRole, status models.UserStatus, lat, lon *float64) models.User {
	u := models.User{Name: string(role) + "-" + id[len(id)-1:], Email: id + "@example.org", Role: role, Status: status, Latitude: lat, Longitude: lon}
	u.ID = id
	return u
}

func actor(id string, role models.UserRole) *auth.Actor {
	return &auth.Actor{ID: id, Role: role, Status: models.UserStatusActive}
}

var (
	citizen   = actor(citizenID, models.UserRoleCitizen)
	authority = actor(authorityID, models.UserRoleAuthority)
	r1        = actor(responder1ID, models.UserRoleFirefighter)
	r2        = actor(responder2ID, models.UserRoleNGO)
)

type fixture struct {
	reports       *fakeReportRepo
	users         *fakeUserRepo
	notifications *fakeNotificationRepo
	mailer        *fakeMailer
	events        *events.Recorder
	store         cache.Store
	svc           *ServiceContainer
}

func newFixture(outbox bool) *fixture {
	f := &fixture{
		reports: newFakeReportRepo(),
		users: &fakeUserRepo{users: []models.User{
			user(citizenID, models.UserRoleCitizen, models.UserStatusActive, nil, nil),
			user(authorityID, models.UserRoleAuthority, models.UserStatusActive, nil, nil),
			user(responder1ID, models.UserRoleFirefighter, models.UserStatusActive, ptr(23.82), ptr(90.42)),
			user(responder2ID, models.UserRoleNGO, models.UserStatusActive, ptr(23.815), ptr(90.43)),
			user(farNgoID, models.UserRoleNGO, models.UserStatusActive, ptr(23.90), ptr(90.50)),
			user(inactiveID, models.UserRoleFirefighter, models.UserStatusSuspended, ptr(23.81), ptr(90.41)),
		}},
		notifications: &fakeNotificationRepo{},
		mailer:        &fakeMailer{},
		events:        &events.Recorder{},
		store:         cache.NewMemoryStore(time.Minute),
	}

	repos := Repositories{
		Reports:       f.reports,
		Users:         f.users,
		Notifications: f.notifications,
	}
	f.svc = NewServiceContainer(repos, f.store, f.events, f.mailer, Settings{
		Outbox:          outbox,
		BatchSize:       2,
		ResponderTTL:    time.Minute,
		Matching:        algorithms.Options{MaxDistanceMeters: algorithms.DefaultMaxDistanceMeters, Limit: algorithms.DefaultLimit},
		AlertRecipients: []string{"ops@example.org"},
		AlertThreshold:  8,
	})
	return f
}

func floodRequest() *dto.CreateReportRequest {
	return &dto.CreateReportRequest{
		Name:        "River overflow",
		Description: "Water over the embankment",
		Location:    &dto.LocationInput{Latitude: ptr(23.81), Longitude: ptr(90.41)},
		DangerLevel: ptr(7),
		Tags:        []string{" Urgent ", "urgent", "river"},
	}
}

// createFlood создает отчет от имени гражданина и сбрасывает записанные побочные эффекты
func (f *fixture) createFlood(t *testing.T) *models.Report {
	t.Helper()
	result, err := f.svc.ReportService.CreateReport(nil, citizen, models.CategoryFlood, floodRequest())
	require.NoError(t, err)
	f.notifications.mu.Lock()
	f.notifications.notifications = nil
	f.notifications.mu.Unlock()
	return result.Report
}

package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"disaster_backend/internal/models"
	"disaster_backend/internal/services"
	"disaster_backend/internal/services/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errFeed = errors.New("feed down")

type stubOutbox struct {
	services.OutboxService

	mu      sync.Mutex
	batches [][2]int
	calls   int
	err     error
}

func (s *stubOutbox) ProcessBatch(_ *gorm.DB, limit, maxAttempts int) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, 0, s.err
	}
	if len(s.batches) == 0 {
		return 0, 0, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b[0], b[1], nil
}

type stubFeed struct {
	reports []*models.Report
	err     error
}

func (f *stubFeed) Fetch(context.Context) ([]*models.Report, error) {
	return f.reports, f.err
}

type stubReports struct {
	services.ReportService

	ingested []*models.Report
	calls    int
}

func (s *stubReports) IngestReports(_ *gorm.DB, reports []*models.Report) (*dto.IngestResult, error) {
	s.calls++
	s.ingested = reports
	return &dto.IngestResult{Created: reports[:1], Duplicates: len(reports) - 1}, nil
}

func TestOutboxWorker_DrainsFullBatches(t *testing.T) {
	outbox := &stubOutbox{batches: [][2]int{{3, 0}, {3, 0}, {1, 0}, {3, 0}}}
	worker := NewOutboxWorker(nil, outbox, 3, 5)

	require.NoError(t, worker.Run(context.Background()))
	// третья пачка неполная, четвертая остается на следующий тик
	assert.Equal(t, 3, outbox.calls)
	assert.Len(t, outbox.batches, 1)
}

func TestOutboxWorker_StopsTickOnFailures(t *testing.T) {
	outbox := &stubOutbox{batches: [][2]int{{3, 0}, {2, 1}, {3, 0}}}

	require.NoError(t, NewOutboxWorker(nil, outbox, 3, 5).Run(context.Background()))
	assert.Equal(t, 2, outbox.calls)
	assert.Len(t, outbox.batches, 1)
}

// failingOutbox отдает самые старые pending задачи и всегда падает,
// attempts и статус меняются как в OutboxRepository.MarkFailed
type failingOutbox struct {
	services.OutboxService

	attempts []int
	failed   []bool
	calls    int
}

func newFailingOutbox(jobs int) *failingOutbox {
	return &failingOutbox{attempts: make([]int, jobs), failed: make([]bool, jobs)}
}

func (o *failingOutbox) ProcessBatch(_ *gorm.DB, limit, maxAttempts int) (int, int, error) {
	o.calls++
	failed := 0
	for i := range o.attempts {
		if failed == limit {
			break
		}
		if o.failed[i] {
			continue
		}
		o.attempts[i]++
		o.failed[i] = o.attempts[i] >= maxAttempts
		failed++
	}
	return 0, failed, nil
}

func (o *failingOutbox) permanentlyFailed() int {
	n := 0
	for _, f := range o.failed {
		if f {
			n++
		}
	}
	return n
}

func TestOutboxWorker_RetryBudgetSpansTicks(t *testing.T) {
	const maxAttempts = 5
	outbox := newFailingOutbox(40)
	worker := NewOutboxWorker(nil, outbox, 20, maxAttempts)

	require.NoError(t, worker.Run(context.Background()))
	assert.Equal(t, 1, outbox.calls)
	assert.Zero(t, outbox.permanentlyFailed())
	assert.Equal(t, 1, outbox.attempts[0])

	for tick := 2; tick <= maxAttempts; tick++ {
		require.NoError(t, worker.Run(context.Background()))
	}
	assert.Equal(t, maxAttempts, outbox.calls)
	assert.Equal(t, maxAttempts, outbox.attempts[0])
	assert.Equal(t, 20, outbox.permanentlyFailed())
}

func TestOutboxWorker_StopsAtBatchCap(t *testing.T) {
	batches := make([][2]int, 0, maxBatchesPerRun+2)
	for i := 0; i < maxBatchesPerRun+2; i++ {
		batches = append(batches, [2]int{1, 0})
	}
	outbox := &stubOutbox{batches: batches}

	require.NoError(t, NewOutboxWorker(nil, outbox, 1, 5).Run(context.Background()))
	assert.Equal(t, maxBatchesPerRun, outbox.calls)
}

func TestOutboxWorker_Errors(t *testing.T) {
	outbox := &stubOutbox{err: errFeed}
	assert.ErrorIs(t, NewOutboxWorker(nil, outbox, 3, 5).Run(context.Background()), errFeed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idle := &stubOutbox{}
	assert.ErrorIs(t, NewOutboxWorker(nil, idle, 3, 5).Run(ctx), context.Canceled)
	assert.Zero(t, idle.calls)
}

func TestIngestionWorker_Run(t *testing.T) {
	reports := []*models.Report{{Name: "a"}, {Name: "b"}}
	svc := &stubReports{}

	require.NoError(t, NewIngestionWorker(nil, &stubFeed{reports: reports}, svc).Run(context.Background()))
	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, reports, svc.ingested)
}

func TestIngestionWorker_EmptyAndFailingFeed(t *testing.T) {
	svc := &stubReports{}

	require.NoError(t, NewIngestionWorker(nil, &stubFeed{}, svc).Run(context.Background()))
	assert.Zero(t, svc.calls)

	err := NewIngestionWorker(nil, &stubFeed{err: errFeed}, svc).Run(context.Background())
	assert.ErrorIs(t, err, errFeed)
	assert.Zero(t, svc.calls)
}

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func TestScheduler_RunsJob(t *testing.T) {
	scheduler := NewScheduler(time.Second)
	ran := make(chan struct{}, 10)

	require.NoError(t, scheduler.Add("@every 1s", funcJob{name: "tick", run: func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		ran <- struct{}{}
		return nil
	}}))
	scheduler.Start()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, scheduler.Stop(ctx))
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	err := NewScheduler(0).Add("every now and then", funcJob{name: "bad"})
	assert.ErrorContains(t, err, "bad")
}

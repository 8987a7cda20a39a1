package workers

import (
	"context"
	"fmt"
	"time"

	"disaster_backend/internal/logger"

	"github.com/robfig/cron/v3"
)

// Job - периодическая фоновая задача
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler запускает задачи по cron-расписанию ("@every 5s", "0 */10 * * * *").
// Пока задача выполняется, следующий тик для нее пропускается.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

func NewScheduler(timeout time.Duration) *Scheduler {
	log := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// Add регистрирует задачу. Ошибка означает некорректное расписание.
func (s *Scheduler) Add(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.execute(job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name(), schedule, err)
	}
	logger.Info("Worker scheduled", "worker", job.Name(), "schedule", schedule)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop отменяет текущие задачи и ждет их завершения, но не дольше ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) execute(job Job) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		logger.WorkerLog(job.Name(), "run", err, "duration", time.Since(start))
		return
	}
	logger.Debug("Worker run finished", "worker", job.Name(), "duration", time.Since(start))
}

// cronLogger направляет служебные сообщения cron в slog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

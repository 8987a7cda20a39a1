package events

import (
	"context"
	"sync"
	"time"

	"disaster_backend/internal/logger"
	"disaster_backend/internal/metrics"
	"disaster_backend/internal/models"
)

// EventReportStatusChanged публикуется после каждого перехода отчета
const EventReportStatusChanged = "report_status_changed"

const defaultPublishTimeout = 5 * time.Second

// Publisher - контракт доставки событий клиентам
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// Sink - именованный приемник, имя идет в метку метрики
type Sink interface {
	Publisher
	Name() string
}

// ReportEvent - полезная нагрузка new_<category> и report_status_changed
type ReportEvent struct {
	Count int              `json:"count"`
	Data  []*models.Report `json:"data"`
}

func NewReportEvent(reports ...*models.Report) ReportEvent {
	if reports == nil {
		reports = []*models.Report{}
	}
	return ReportEvent{Count: len(reports), Data: reports}
}

// Message - то, что получает клиент websocket
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Multi рассылает событие во все приемники асинхронно.
// Publish никогда не возвращает ошибку и не ждет приемников.
type Multi struct {
	sinks   []Sink
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewMulti(timeout time.Duration, sinks ...Sink) *Multi {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	m := &Multi{timeout: timeout}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Publish(ctx context.Context, event string, payload any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// запрос может завершиться раньше приемника
	base := context.WithoutCancel(ctx)

	for _, sink := range m.sinks {
		m.wg.Add(1)
		go func(s Sink) {
			defer m.wg.Done()

			sinkCtx, cancel := context.WithTimeout(base, m.timeout)
			defer cancel()

			if err := s.Publish(sinkCtx, event, payload); err != nil {
				metrics.EventsPublished.WithLabelValues(s.Name(), metrics.ResultError).Inc()
				logger.CtxWithError(base, "event publish failed", err, "sink", s.Name(), "event", event)
				return
			}
			metrics.EventsPublished.WithLabelValues(s.Name(), metrics.ResultOK).Inc()
		}(sink)
	}
	return nil
}

// Wait дожидается отправок, начатых до вызова. Нужен при остановке.
func (m *Multi) Wait() {
	m.wg.Wait()
}

// Discard - публикатор по умолчанию, когда приемники не настроены
type Discard struct{}

func (Discard) Publish(context.Context, string, any) error { return nil }

package events

import (
	"context"
	"sync"
)

// Published - одно записанное событие
type Published struct {
	Event   string
	Payload any
}

// Recorder запоминает события синхронно. Используется в тестах сервисов
// и хендлеров вместо реальных приемников.
type Recorder struct {
	mu     sync.Mutex
	events []Published
	Err    error
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Publish(_ context.Context, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Published{Event: event, Payload: payload})
	return r.Err
}

func (r *Recorder) Events() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Published, len(r.events))
	copy(out, r.events)
	return out
}

// Named возвращает события с данным именем
func (r *Recorder) Named(event string) []Published {
	var out []Published
	for _, p := range r.Events() {
		if p.Event == event {
			out = append(out, p)
		}
	}
	return out
}

package events

import "context"

// Broadcaster - локальный websocket hub. Топик совпадает с именем события.
type Broadcaster interface {
	BroadcastToTopic(topic string, message any)
}

type HubSink struct {
	hub Broadcaster
}

func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "ws" }

func (s *HubSink) Publish(_ context.Context, event string, payload any) error {
	s.hub.BroadcastToTopic(event, Message{Event: event, Data: payload})
	return nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"disaster_backend/internal/logger"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "realtime:"

// envelope - формат сообщения в канале realtime:<event>.
// Origin нужен, чтобы инстанс не переотправлял собственные события.
type envelope struct {
	Origin  string          `json:"origin"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// RedisPublisher публикует события для других инстансов сервиса
type RedisPublisher struct {
	client *redis.Client
	origin string
}

func NewRedisPublisher(client *redis.Client, origin string) *RedisPublisher {
	return &RedisPublisher{client: client, origin: origin}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	msg, err := json.Marshal(envelope{Origin: p.origin, Event: event, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return p.client.Publish(ctx, redisChannelPrefix+event, msg).Err()
}

// RedisRelay слушает realtime:* и передает чужие события в локальный hub
type RedisRelay struct {
	client *redis.Client
	origin string
	target Broadcaster
}

func NewRedisRelay(client *redis.Client, origin string, target Broadcaster) *RedisRelay {
	return &RedisRelay{client: client, origin: origin, target: target}
}

// Run блокируется до отмены ctx
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", redisChannelPrefix, err)
	}
	logger.Info("Redis relay subscribed", "pattern", redisChannelPrefix+"*", "origin", r.origin)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Channel, msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(channel, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		logger.Warn("Redis relay: malformed message", "channel", channel, "error", err)
		return
	}
	if env.Origin == r.origin {
		return
	}
	event := env.Event
	if event == "" {
		event = strings.TrimPrefix(channel, redisChannelPrefix)
	}
	r.target.BroadcastToTopic(event, Message{Event: event, Data: env.Payload})
}

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisHub fans changes out through Redis pub/sub so every API instance sees
// writes made by any other instance.
type RedisHub struct {
	client *redis.Client
	buffer int
	logger *zap.Logger
}

// NewRedisHub builds a hub on an existing client.
func NewRedisHub(client *redis.Client, buffer int, logger *zap.Logger) *RedisHub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &RedisHub{client: client, buffer: buffer, logger: logger}
}

// Publish sends the change to the table topic and each key topic in one round trip.
func (h *RedisHub) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	pipe := h.client.Pipeline()
	for _, topic := range topicsFor(change) {
		pipe.Publish(ctx, topic, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s change: %w", change.Table, err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription.
func (h *RedisHub) Subscribe(ctx context.Context, table string, filter Filter) (Subscription, error) {
	topic := Topic(table, filter)
	ps := h.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	sub := &redisSubscription{
		ps:     ps,
		topic:  topic,
		ch:     make(chan Change, h.buffer),
		logger: h.logger,
	}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	ps     *redis.PubSub
	topic  string
	ch     chan Change
	logger *zap.Logger
	once   sync.Once
}

func (s *redisSubscription) Events() <-chan Change {
	return s.ch
}

// pump forwards messages until the PubSub closes or reconnects. go-redis
// resubscribes silently after a connection error; the new subscribe
// confirmation closes Events so the consumer resubscribes and refetches.
func (s *redisSubscription) pump() {
	s.forward(s.ps.ChannelWithSubscriptions())
	if err := s.Close(); err != nil {
		s.logger.Debug("close pubsub", zap.String("topic", s.topic), zap.Error(err))
	}
}

func (s *redisSubscription) forward(in <-chan interface{}) {
	defer close(s.ch)
	for item := range in {
		switch msg := item.(type) {
		case *redis.Subscription:
			if msg.Kind == "subscribe" {
				s.logger.Info("redis subscription re-established; closing stream", zap.String("topic", s.topic))
				return
			}
		case *redis.Message:
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				s.logger.Warn("dropping malformed change", zap.String("topic", s.topic), zap.Error(err))
				continue
			}
			select {
			case s.ch <- change:
			default:
				s.logger.Warn("subscriber queue full; change dropped", zap.String("topic", s.topic))
			}
		}
	}
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ps.Close()
	})
	return err
}

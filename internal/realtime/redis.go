package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/emergency_tracker/internal/channel"
	"github.com/sirupsen/logrus"
)

// RedisStream - realtime-канал поверх Redis pub/sub; событие name живет в канале prefix+name
type RedisStream struct {
	client *redis.Client
	codec  topicCodec
	logger *logrus.Logger
}

// NewRedisStream создает канал с префиксом имен каналов prefix
func NewRedisStream(client *redis.Client, prefix string, logger *logrus.Logger) *RedisStream {
	return &RedisStream{
		client: client,
		codec:  topicCodec{prefix: prefix},
		logger: logger,
	}
}

// Subscribe подписывается на каналы событий names
func (s *RedisStream) Subscribe(ctx context.Context, names []string, handler func(name string, payload []byte)) (channel.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, s.codec.topics(names)...)
	// Receive дожидается подтверждения подписки
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("realtime: could not subscribe to redis channels: %w", err)
	}

	log := s.logger.WithField("transport", "redis")
	set := newNameSet(names)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			name, ok := s.codec.event(msg.Channel)
			if !ok || !set.has(name) {
				log.WithField("channel", msg.Channel).Debug("Message from unexpected channel skipped")
				continue
			}
			handler(name, []byte(msg.Payload))
		}
	}()

	// go-redis сам восстанавливает соединение pub/sub; канал сообщений закрывается только при Close
	return &subscription{done: done, fn: func() error {
		err := pubsub.Close()
		<-done
		if err != nil {
			return fmt.Errorf("realtime: could not close redis subscription: %w", err)
		}
		return nil
	}}, nil
}

// Emit публикует событие в канал prefix+name
func (s *RedisStream) Emit(ctx context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: could not marshal %s payload: %w", name, err)
	}
	if err := s.client.Publish(ctx, s.codec.topic(name), data).Err(); err != nil {
		return fmt.Errorf("realtime: could not publish %s to redis: %w", name, err)
	}
	return nil
}

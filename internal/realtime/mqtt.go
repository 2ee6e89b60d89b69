package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/shenikar/emergency_tracker/internal/channel"
	"github.com/sirupsen/logrus"
)

const mqttQoS byte = 1

// MQTTStream - realtime-канал поверх MQTT; событие name публикуется в топик prefix+name
type MQTTStream struct {
	client paho.Client
	codec  topicCodec
	logger *logrus.Logger
}

// NewMQTTStream создает канал поверх подключенного клиента
func NewMQTTStream(client paho.Client, prefix string, logger *logrus.Logger) *MQTTStream {
	return &MQTTStream{
		client: client,
		codec:  topicCodec{prefix: prefix},
		logger: logger,
	}
}

// Subscribe подписывается на топики событий names
func (s *MQTTStream) Subscribe(ctx context.Context, names []string, handler func(name string, payload []byte)) (channel.Subscription, error) {
	topics := s.codec.topics(names)
	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = mqttQoS
	}

	log := s.logger.WithField("transport", "mqtt")
	token := s.client.SubscribeMultiple(filters, func(_ paho.Client, msg paho.Message) {
		name, ok := s.codec.event(msg.Topic())
		if !ok {
			log.WithField("topic", msg.Topic()).Debug("Message from unexpected topic skipped")
			return
		}
		handler(name, msg.Payload())
	})
	if err := waitToken(ctx, token); err != nil {
		return nil, fmt.Errorf("realtime: could not subscribe to mqtt topics: %w", err)
	}

	// paho переподключается сам, брокер сохраняет подписки сессии
	done := make(chan struct{})
	return &subscription{done: done, fn: func() error {
		defer close(done)
		if err := waitToken(context.Background(), s.client.Unsubscribe(topics...)); err != nil {
			return fmt.Errorf("realtime: could not unsubscribe from mqtt topics: %w", err)
		}
		return nil
	}}, nil
}

// Emit публикует событие в топик prefix+name
func (s *MQTTStream) Emit(ctx context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: could not marshal %s payload: %w", name, err)
	}
	if err := waitToken(ctx, s.client.Publish(s.codec.topic(name), mqttQoS, false, data)); err != nil {
		return fmt.Errorf("realtime: could not publish %s to mqtt: %w", name, err)
	}
	return nil
}

// waitToken ждет завершения операции paho с учетом контекста
func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

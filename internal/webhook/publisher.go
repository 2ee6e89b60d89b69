package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/emergency_tracker/internal/models"
)

//go:generate mockgen -source=publisher.go -destination=mocks/mock_publisher.go -package=mocks

const (
	webhookQueueKey = "snapshot_webhook_events"
)

// SnapshotEvent - структура для данных вебхука об изменении снимка
type SnapshotEvent struct {
	UserID      string          `json:"user_id"`
	EmergencyID string          `json:"emergency_id,omitempty"`
	Status      models.Status   `json:"status"`
	Terminal    bool            `json:"terminal"`
	Version     uint64          `json:"version"`
	Timestamp   time.Time       `json:"timestamp"`
	Snapshot    models.Snapshot `json:"snapshot"`
}

// WebhookPublisher - интерфейс для публикации вебхуков
type WebhookPublisher interface {
	Publish(ctx context.Context, event SnapshotEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event SnapshotEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// LPUSH в голову очереди, воркер забирает с хвоста
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}

// Notifier превращает снимки сессии в события вебхука
type Notifier struct {
	publisher WebhookPublisher
}

// NewNotifier создает Notifier поверх publisher
func NewNotifier(publisher WebhookPublisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// Notify ставит снимок в очередь доставки
func (n *Notifier) Notify(ctx context.Context, userID string, snap models.Snapshot) error {
	return n.publisher.Publish(ctx, SnapshotEvent{
		UserID:      userID,
		EmergencyID: snap.EmergencyID,
		Status:      snap.Status,
		Terminal:    snap.Terminal,
		Version:     snap.Version,
		Timestamp:   time.Now().UTC(),
		Snapshot:    snap,
	})
}

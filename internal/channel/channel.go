package channel

import (
	"context"
	"time"

	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/shenikar/emergency_tracker/internal/tracking"
)

//go:generate mockgen -source=channel.go -destination=mocks/mock_channel.go -package=mocks

// RecordFetcher определяет авторитетное чтение записи вызова и ее истории
type RecordFetcher interface {
	GetEmergency(ctx context.Context, id string) (map[string]any, error)
	GetHistory(ctx context.Context, id string) ([]map[string]any, error)
}

// LocationWriter определяет отправку позиции ответчика в бэкенд
type LocationWriter interface {
	PostResponderLocation(ctx context.Context, report models.LocationReport) error
}

// EventStream - realtime-транспорт с именованными событиями
type EventStream interface {
	// Subscribe доставляет сырые нагрузки событий из списка names в handler до закрытия подписки
	Subscribe(ctx context.Context, names []string, handler func(name string, payload []byte)) (Subscription, error)
	Emit(ctx context.Context, name string, payload any) error
}

// Subscription - активная подписка на EventStream
type Subscription interface {
	// Done закрывается, когда подписка перестала доставлять события (обрыв транспорта или Close)
	Done() <-chan struct{}
	Close() error
}

// PositionSampler возвращает текущую позицию устройства
type PositionSampler interface {
	Sample(ctx context.Context) (models.Location, error)
}

// Sink принимает нормализованные события от адаптеров
type Sink interface {
	Ingest(ev models.NormalizedEvent) tracking.Outcome
	IngestHistory(emergencyID string, history []models.NormalizedEvent, fetchedAt time.Time) bool
}

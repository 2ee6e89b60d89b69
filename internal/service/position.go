package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shenikar/emergency_tracker/internal/models"
)

// ErrNoPosition - устройство еще не сообщило позицию
var ErrNoPosition = errors.New("service: device position unknown")

// PositionStore хранит последнюю позицию устройства и отдает ее публикатору позиции
type PositionStore struct {
	mu        sync.RWMutex
	location  models.Location
	updatedAt time.Time
}

// NewPositionStore создает пустое хранилище позиции
func NewPositionStore() *PositionStore {
	return &PositionStore{}
}

// Set запоминает позицию устройства
func (p *PositionStore) Set(loc models.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = loc
	p.updatedAt = time.Now()
}

// Sample возвращает последнюю известную позицию
func (p *PositionStore) Sample(ctx context.Context) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.updatedAt.IsZero() {
		return models.Location{}, ErrNoPosition
	}
	return p.location, nil
}

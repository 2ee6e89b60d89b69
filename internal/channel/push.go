package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shenikar/emergency_tracker/internal/tracking"
	"github.com/sirupsen/logrus"
)

const (
	defaultReconnectMin = time.Second
	defaultReconnectMax = 30 * time.Second
	subscribeTimeout    = 10 * time.Second
)

// PushSubscription подписывается на фиксированный набор событий и передает их в Sink.
// Живет, пока жива сессия: после обрыва транспорта переподключается с экспоненциальной
// задержкой. Start и Stop идемпотентны.
type PushSubscription struct {
	stream       EventStream
	normalizer   *tracking.Normalizer
	sink         Sink
	logger       *logrus.Logger
	reconnectMin time.Duration
	reconnectMax time.Duration

	mu     sync.Mutex
	sub    Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPushSubscription создает push-адаптер. Нулевые задержки заменяются значениями по умолчанию.
func NewPushSubscription(stream EventStream, normalizer *tracking.Normalizer, sink Sink, logger *logrus.Logger, reconnectMin, reconnectMax time.Duration) *PushSubscription {
	if reconnectMin <= 0 {
		reconnectMin = defaultReconnectMin
	}
	if reconnectMax < reconnectMin {
		reconnectMax = max(defaultReconnectMax, reconnectMin)
	}
	return &PushSubscription{
		stream:       stream,
		normalizer:   normalizer,
		sink:         sink,
		logger:       logger,
		reconnectMin: reconnectMin,
		reconnectMax: reconnectMax,
	}
}

// Start подписывается на tracking.PushEvents, если адаптер еще не запущен.
// Ошибка первой подписки возвращается, но адаптер продолжает переподключаться до Stop.
func (p *PushSubscription) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}

	life, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel

	sub, err := p.stream.Subscribe(ctx, tracking.PushEvents, p.handle)
	p.wg.Add(1)
	go p.run(life, sub)
	if err != nil {
		return fmt.Errorf("channel: could not subscribe to push events: %w", err)
	}
	p.sub = sub
	p.logger.WithFields(logrus.Fields{
		"adapter": "push",
		"events":  len(tracking.PushEvents),
	}).Info("Push subscription started")
	return nil
}

// Stop закрывает подписку и прекращает переподключение; повторный вызов ничего не делает
func (p *PushSubscription) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.sub = nil
	if cancel != nil {
		cancel()
	}
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	p.wg.Wait()
	p.logger.WithField("adapter", "push").Info("Push subscription stopped")
}

// Active сообщает, есть ли подключенная подписка
func (p *PushSubscription) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sub != nil
}

// run держит подписку до отмены ctx. sub может быть nil, если первая подписка не удалась.
func (p *PushSubscription) run(ctx context.Context, sub Subscription) {
	defer p.wg.Done()
	log := p.logger.WithField("adapter", "push")
	delay := p.reconnectMin

	for {
		if sub == nil {
			if !waitWithContext(ctx, delay) {
				return
			}
			var err error
			sub, err = p.subscribe(ctx)
			if err != nil {
				delay = min(delay*2, p.reconnectMax)
				log.WithError(err).WithField("retry_in", delay).Warn("Push reconnect failed")
				continue
			}
			if !p.attach(ctx, sub) {
				p.close(sub, log)
				return
			}
			delay = p.reconnectMin
			log.Info("Push subscription restored")
		}

		select {
		case <-ctx.Done():
			p.close(sub, log)
			return
		case <-sub.Done():
			p.detach(sub)
			p.close(sub, log)
			sub = nil
			log.WithField("retry_in", delay).Warn("Push transport dropped, reconnecting")
		}
	}
}

func (p *PushSubscription) subscribe(ctx context.Context) (Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel()
	return p.stream.Subscribe(ctx, tracking.PushEvents, p.handle)
}

// attach публикует подписку, если адаптер еще не остановлен
func (p *PushSubscription) attach(ctx context.Context, sub Subscription) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	p.sub = sub
	return true
}

func (p *PushSubscription) detach(sub Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sub == sub {
		p.sub = nil
	}
}

func (p *PushSubscription) close(sub Subscription, log *logrus.Entry) {
	if err := sub.Close(); err != nil {
		log.WithError(err).Warn("Failed to close push subscription")
	}
}

func (p *PushSubscription) handle(name string, raw []byte) {
	payload, err := tracking.DecodeObject(raw)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"adapter": "push",
			"event":   name,
		}).Warn("Malformed push payload dropped")
		return
	}
	p.sink.Ingest(p.normalizer.Push(name, payload))
}

// waitWithContext ждет d либо отмены ctx; false означает отмену
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package channel

import (
	"context"
	"sync"
	"time"

	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/shenikar/emergency_tracker/internal/tracking"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// LocationPublisher отправляет позицию ответчика сразу после старта и далее с интервалом.
// Каждая позиция уходит и в realtime-канал, и в бэкенд; сбой одного пути не влияет на другой.
type LocationPublisher struct {
	sampler  PositionSampler
	writer   LocationWriter
	stream   EventStream
	logger   *logrus.Logger
	interval time.Duration
	timeout  time.Duration

	mu          sync.Mutex
	emergencyID string
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewLocationPublisher создает адаптер публикации позиции
func NewLocationPublisher(sampler PositionSampler, writer LocationWriter, stream EventStream, logger *logrus.Logger, interval, timeout time.Duration) *LocationPublisher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LocationPublisher{
		sampler:  sampler,
		writer:   writer,
		stream:   stream,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// Start начинает публикацию для записи emergencyID; повторный Start для той же записи ничего не делает
func (l *LocationPublisher) Start(emergencyID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		if l.emergencyID == emergencyID {
			return
		}
		l.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.emergencyID = emergencyID
	l.cancel = cancel
	l.done = done

	go func() {
		defer close(done)
		l.run(ctx, emergencyID)
	}()
}

// Stop прекращает публикацию; идемпотентен
func (l *LocationPublisher) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	l.emergencyID = ""
}

// EmergencyID возвращает id записи, для которой идет публикация
func (l *LocationPublisher) EmergencyID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.emergencyID
}

// Wait ждет завершения последнего запущенного цикла
func (l *LocationPublisher) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (l *LocationPublisher) run(ctx context.Context, emergencyID string) {
	log := l.logger.WithFields(logrus.Fields{
		"adapter":      "location",
		"emergency_id": emergencyID,
	})
	log.WithField("interval", l.interval).Info("Location publishing started")
	defer log.Info("Location publishing stopped")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		l.publish(ctx, emergencyID, log)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (l *LocationPublisher) publish(ctx context.Context, emergencyID string, log *logrus.Entry) {
	sampleCtx, cancel := context.WithTimeout(ctx, l.timeout)
	loc, err := l.sampler.Sample(sampleCtx)
	cancel()
	if err != nil {
		log.WithError(err).Warn("Failed to sample device position")
		return
	}
	if ctx.Err() != nil {
		return
	}

	report := models.LocationReport{EmergencyID: emergencyID, Location: loc}
	reqCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		if err := l.stream.Emit(reqCtx, tracking.EventLocationEmit, report); err != nil {
			log.WithError(err).Warn("Failed to emit responder location")
		}
		return nil
	})
	g.Go(func() error {
		if err := l.writer.PostResponderLocation(reqCtx, report); err != nil {
			log.WithError(err).Warn("Failed to post responder location")
		}
		return nil
	})
	_ = g.Wait()
	log.WithFields(logrus.Fields{"lat": loc.Lat, "lng": loc.Lng}).Debug("Responder location published")
}

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

// Poller периодически запрашивает авторитетную запись и историю отслеживаемого вызова.
// Один Poller обслуживает одну запись; смена id требует Stop и нового Start.
type Poller struct {
	fetcher    RecordFetcher
	normalizer *tracking.Normalizer
	sink       Sink
	logger     *logrus.Logger
	interval   time.Duration
	timeout    time.Duration

	mu          sync.Mutex
	emergencyID string
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewPoller создает адаптер опроса
func NewPoller(fetcher RecordFetcher, normalizer *tracking.Normalizer, sink Sink, logger *logrus.Logger, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if timeout <= 0 {
		timeout = interval
	}
	return &Poller{
		fetcher:    fetcher,
		normalizer: normalizer,
		sink:       sink,
		logger:     logger,
		interval:   interval,
		timeout:    timeout,
	}
}

// Start запускает опрос записи emergencyID. Если опрос этой записи уже идет, ничего не делает,
// если идет опрос другой записи - он останавливается.
func (p *Poller) Start(emergencyID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		if p.emergencyID == emergencyID {
			return
		}
		p.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.emergencyID = emergencyID
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		p.run(ctx, emergencyID)
	}()
}

// Stop отменяет опрос и не ждет завершения запроса в полете
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.emergencyID = ""
}

// EmergencyID возвращает id опрашиваемой записи или пустую строку
func (p *Poller) EmergencyID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.emergencyID
}

// Wait ждет завершения последнего запущенного цикла опроса
func (p *Poller) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Poller) run(ctx context.Context, emergencyID string) {
	log := p.logger.WithFields(logrus.Fields{
		"adapter":      "poll",
		"emergency_id": emergencyID,
	})
	log.WithField("interval", p.interval).Info("Polling started")
	defer log.Info("Polling stopped")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.tick(ctx, emergencyID, log)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick выполняет один цикл: запись и история запрашиваются параллельно
func (p *Poller) tick(ctx context.Context, emergencyID string, log *logrus.Entry) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var (
		record  map[string]any
		history []map[string]any
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		record, err = p.fetcher.GetEmergency(reqCtx, emergencyID)
		if err != nil {
			log.WithError(err).Warn("Failed to poll emergency record")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		history, err = p.fetcher.GetHistory(reqCtx, emergencyID)
		if err != nil {
			log.WithError(err).Debug("Failed to poll emergency history")
		}
		return nil
	})
	_ = g.Wait()

	fetchedAt := time.Now()
	if record != nil {
		p.sink.Ingest(p.normalizer.Record(models.SourcePoll, record))
	}
	if history != nil {
		p.sink.IngestHistory(emergencyID, p.normalizer.History(history), fetchedAt)
	}
}

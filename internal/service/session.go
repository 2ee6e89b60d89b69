package service

import (
	"context"
	"sync"
	"time"

	"github.com/shenikar/emergency_tracker/internal/channel"
	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/shenikar/emergency_tracker/internal/tracking"
	"github.com/sirupsen/logrus"
)

const (
	notifyTimeout = 2 * time.Second
	// notifyBuffer - сколько снимков ждут отправки в SnapshotNotifier; при переполнении
	// вытесняется самый старый, последний снимок доставляется всегда
	notifyBuffer = 32
)

// tokenSetter реализуют транспорты, которым нужен токен сессии
type tokenSetter interface {
	SetToken(token string)
}

// trackerSession - состояние одной сессии: Engine и адаптеры, которые его питают.
// Служит Sink для адаптеров: переключение на новый вызов и остановка адаптеров
// выполняются здесь, а не в наблюдателях Engine.
type trackerSession struct {
	svc     *trackerService
	session models.Session
	engine  *tracking.Engine
	push    *channel.PushSubscription
	poller  *channel.Poller
	locator *channel.LocationPublisher
	logger  *logrus.Entry

	unsubscribe   func()
	notifications chan models.Snapshot
	done          chan struct{}
	wg            sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func (s *trackerService) newSession(session models.Session) *trackerSession {
	engine := tracking.NewEngine(session, s.logger, tracking.EngineOptions{
		LocationPolicy: tracking.LocationPolicy(s.cfg.LocationPolicy),
		LocationCap:    s.cfg.TimelineLocationCap,
		EchoGrace:      s.cfg.LocalEchoGrace,
	})
	sess := &trackerSession{
		svc:     s,
		session: session,
		engine:  engine,
		logger: s.logger.WithFields(logrus.Fields{
			"service": "tracker",
			"user_id": session.UserID,
			"role":    session.Role,
		}),
	}
	sess.push = channel.NewPushSubscription(s.stream, s.normalizer, sess, s.logger, s.cfg.PushReconnectMin, s.cfg.PushReconnectMax)
	sess.poller = channel.NewPoller(s.backend, s.normalizer, sess, s.logger, s.cfg.PollInterval, s.cfg.PollTimeout)
	sess.locator = channel.NewLocationPublisher(s.positions, s.backend, s.stream, s.logger, s.cfg.LocationInterval, s.cfg.LocationTimeout)

	engine.OnIndeterminate(sess.confirm)
	if s.notifier != nil {
		// наблюдатель только ставит снимок в очередь: ввод-вывод идет в отдельной горутине
		sess.notifications = make(chan models.Snapshot, notifyBuffer)
		sess.done = make(chan struct{})
		sess.wg.Add(1)
		go sess.deliver()
		sess.unsubscribe = engine.Subscribe(sess.enqueue)
	}
	return sess
}

func (sess *trackerSession) isClosed() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.closed
}

// Ingest принимает событие от push- или poll-адаптера
func (sess *trackerSession) Ingest(ev models.NormalizedEvent) tracking.Outcome {
	if sess.isClosed() {
		return tracking.Outcome{Reason: "session closed"}
	}
	if ev.Source == models.SourcePush {
		snap := sess.engine.Snapshot()
		if snap.Terminal && (ev.EmergencyID == "" || ev.EmergencyID == snap.EmergencyID) {
			sess.logger.WithFields(logrus.Fields{
				"emergency_id": snap.EmergencyID,
				"event":        ev.Name,
			}).Debug("Push event for terminal emergency dropped")
			return tracking.Outcome{Reason: "terminal"}
		}
	}
	return sess.settle(ev, sess.engine.Ingest(ev))
}

// IngestHistory принимает авторитетную историю от адаптера опроса
func (sess *trackerSession) IngestHistory(emergencyID string, history []models.NormalizedEvent, fetchedAt time.Time) bool {
	if sess.isClosed() {
		return false
	}
	return sess.engine.IngestHistory(emergencyID, history, fetchedAt)
}

// settle доводит последствия входа: переключение на новый вызов и состав адаптеров
func (sess *trackerSession) settle(ev models.NormalizedEvent, out tracking.Outcome) tracking.Outcome {
	if out.Retarget != "" {
		sess.logger.WithFields(logrus.Fields{
			"from": sess.engine.TrackedID(),
			"to":   out.Retarget,
		}).Info("Switching to new emergency of session")
		sess.engine.Track(out.Retarget)
		out = sess.engine.Ingest(ev)
		sess.reconcile()
		return out
	}
	if out.Changed {
		sess.reconcile()
	}
	return out
}

// retarget начинает отслеживать вызов id без начальной записи
func (sess *trackerSession) retarget(id string) {
	sess.engine.Track(id)
	sess.reconcile()
}

// adopt начинает отслеживать вызов id с начальной авторитетной записью
func (sess *trackerSession) adopt(record models.NormalizedEvent, id string) models.Snapshot {
	sess.engine.Track(id)
	sess.engine.Ingest(record)
	sess.reconcile()
	return sess.engine.Snapshot()
}

// reconcile приводит адаптеры в соответствие с текущим снимком: опрос идет, пока
// вызов не терминален; позиция публикуется ответчиком только в статусе ACCEPTED.
func (sess *trackerSession) reconcile() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}

	snap := sess.engine.Snapshot()
	if snap.EmergencyID == "" || snap.Terminal {
		sess.poller.Stop()
		sess.locator.Stop()
		return
	}
	sess.poller.Start(snap.EmergencyID)
	if sess.session.Role == models.RoleResponder && snap.Status == models.StatusAccepted {
		sess.locator.Start(snap.EmergencyID)
		return
	}
	sess.locator.Stop()
}

// confirm запрашивает авторитетную запись для события с неопределенной принадлежностью.
// Одновременные запросы одной записи объединяются; при сбое событие отбрасывается.
func (sess *trackerSession) confirm(ev models.NormalizedEvent) {
	timeout := sess.svc.cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	go func() {
		log := sess.logger.WithFields(logrus.Fields{
			"method":       "confirm",
			"emergency_id": ev.EmergencyID,
			"event":        ev.Name,
		})
		v, err, _ := sess.svc.confirmations.Do(ev.EmergencyID, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return sess.svc.backend.GetEmergency(ctx, ev.EmergencyID)
		})
		if err != nil {
			log.WithError(err).Debug("Ownership confirmation failed, event dropped")
			return
		}
		if sess.isClosed() {
			return
		}
		raw, _ := v.(map[string]any)
		record := sess.svc.normalizer.Record(models.SourcePoll, raw)
		sess.settle(ev, sess.engine.ResolveIndeterminate(ev, record))
	}()
}

// enqueue ставит снимок в очередь уведомлений не блокируясь. Вызывается движком
// последовательно, поэтому вытеснение старого снимка не гоняется с другими отправителями.
func (sess *trackerSession) enqueue(snap models.Snapshot) {
	for {
		select {
		case sess.notifications <- snap:
			return
		default:
		}
		select {
		case old := <-sess.notifications:
			sess.logger.WithField("version", old.Version).Debug("Notification queue full, oldest snapshot dropped")
		default:
		}
	}
}

// deliver отправляет снимки из очереди до закрытия сессии
func (sess *trackerSession) deliver() {
	defer sess.wg.Done()
	for {
		select {
		case <-sess.done:
			return
		case snap := <-sess.notifications:
			sess.notify(snap)
		}
	}
}

// notify передает снимок в SnapshotNotifier
func (sess *trackerSession) notify(snap models.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := sess.svc.notifier.Notify(ctx, sess.session.UserID, snap); err != nil {
		sess.logger.WithError(err).WithField("version", snap.Version).Warn("Failed to notify snapshot")
	}
}

// close останавливает адаптеры; повторный вызов ничего не делает
func (sess *trackerSession) close() {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return
	}
	sess.closed = true
	sess.mu.Unlock()

	sess.push.Stop()
	sess.poller.Stop()
	sess.locator.Stop()
	if sess.unsubscribe != nil {
		sess.unsubscribe()
		close(sess.done)
		sess.wg.Wait()
	}
}

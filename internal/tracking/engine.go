package tracking

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/sirupsen/logrus"
)

// LocationPolicy - правило для позиций ответчика, пришедших не по порядку
type LocationPolicy string

const (
	// LocationMonotonic отбрасывает позицию старше последней примененной из того же источника;
	// при равенстве побеждает последняя. Источники сравниваются только между собой:
	// push без времени несет локальное время получения, опрос - серверное updatedAt.
	LocationMonotonic LocationPolicy = "monotonic"
	// LocationLastWrite применяет позиции в порядке обработки
	LocationLastWrite LocationPolicy = "last-write"
)

// EngineOptions - настройки Engine
type EngineOptions struct {
	LocationPolicy LocationPolicy
	LocationCap    int
	EchoGrace      time.Duration
	Now            func() time.Time
}

// Outcome - результат обработки одного входа
type Outcome struct {
	Verdict Verdict
	// Changed - снимок изменился
	Changed bool
	Status  *Decision
	// Retarget - id другого вызова пользователя, на который следует переключиться
	Retarget string
	Reason   string
}

type localLock struct {
	status      models.Status
	responderID string
}

// Engine - единственная точка изменения EmergencyRecord и его хронологии.
// Все входы сериализуются мьютексом; ввода-вывода Engine не выполняет.
type Engine struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	logger   *logrus.Logger
	resolver *OwnershipResolver
	machine  *StatusMachine
	timeline *TimelineMerger
	policy   LocationPolicy
	now      func() time.Time

	record  models.EmergencyRecord
	lock    localLock
	version uint64
	// locationMarks - время последней примененной позиции по источникам
	locationMarks map[models.Source]time.Time

	observers       map[uuid.UUID]func(models.Snapshot)
	onIndeterminate func(models.NormalizedEvent)
}

// NewEngine создает Engine для пользователя сессии
func NewEngine(session models.Session, logger *logrus.Logger, opts EngineOptions) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LocationPolicy == "" {
		opts.LocationPolicy = LocationMonotonic
	}
	return &Engine{
		logger:    logger,
		resolver:  NewOwnershipResolver(session.UserID, session.Role),
		machine:   NewStatusMachine(),
		timeline:  NewTimelineMerger(opts.LocationCap, opts.EchoGrace),
		policy:    opts.LocationPolicy,
		now:       opts.Now,
		record:        models.EmergencyRecord{Status: models.StatusPending},
		locationMarks: make(map[models.Source]time.Time),
		observers:     make(map[uuid.UUID]func(models.Snapshot)),
	}
}

// OnIndeterminate задает обработчик событий, принадлежность которых требует
// авторитетного запроса. Обработчик вызывается вне блокировки.
func (e *Engine) OnIndeterminate(fn func(models.NormalizedEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onIndeterminate = fn
}

// Resolver возвращает резолвер принадлежности сессии
func (e *Engine) Resolver() *OwnershipResolver {
	return e.resolver
}

// TrackedID возвращает id отслеживаемой записи
func (e *Engine) TrackedID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.ID
}

// Track переключает Engine на другую запись; хронология и статус сбрасываются
func (e *Engine) Track(id string) bool {
	e.mu.Lock()
	if id == e.record.ID {
		e.mu.Unlock()
		return false
	}
	e.logger.WithFields(logrus.Fields{
		"component": "engine",
		"method":    "Track",
		"from":      e.record.ID,
		"to":        id,
	}).Info("Tracked emergency changed")

	e.record = models.EmergencyRecord{ID: id, Status: models.StatusPending}
	e.machine.Reset()
	e.timeline.Reset()
	e.lock = localLock{}
	e.locationMarks = make(map[models.Source]time.Time)
	e.commitAndNotify()
	return true
}

// Ingest применяет нормализованное событие из push- или poll-канала
func (e *Engine) Ingest(ev models.NormalizedEvent) Outcome {
	e.mu.Lock()
	log := e.logger.WithFields(logrus.Fields{
		"component":    "engine",
		"method":       "Ingest",
		"source":       ev.Source,
		"kind":         ev.Kind,
		"emergency_id": ev.EmergencyID,
	})

	out := Outcome{Verdict: e.resolver.Resolve(ev, e.record.ID)}
	switch out.Verdict {
	case VerdictNotMine:
		e.mu.Unlock()
		log.Debug("Event does not belong to session, dropped")
		out.Reason = "not mine"
		return out
	case VerdictUnknown:
		confirm := e.onIndeterminate
		e.mu.Unlock()
		if ev.EmergencyID == "" || confirm == nil {
			log.Debug("Event ownership is indeterminate and cannot be confirmed, dropped")
			out.Reason = "indeterminate"
			return out
		}
		log.Debug("Event ownership is indeterminate, requesting confirmation")
		out.Reason = "awaiting confirmation"
		confirm(ev)
		return out
	}

	if ev.EmergencyID != "" && e.record.ID == "" {
		e.record.ID = ev.EmergencyID
		out.Changed = true
	}
	if ev.EmergencyID != "" && ev.EmergencyID != e.record.ID {
		if (ev.Kind == models.EventCreated || ev.Kind == models.EventAssigned) && e.record.Status.IsTerminal() {
			out.Retarget = ev.EmergencyID
			out.Reason = "new emergency"
		} else {
			out.Reason = "other emergency"
		}
		tracked := e.record.ID
		e.mu.Unlock()
		log.WithField("tracked_id", tracked).Debug("Event refers to another emergency of the session")
		return out
	}

	if e.applyAuthoritativeFields(ev) {
		out.Changed = true
	}
	if ev.Location != nil && e.applyLocation(ev, log) {
		out.Changed = true
	}

	statusAccepted := true
	candidate := ev.Status
	if candidate == models.StatusUnknown {
		candidate = ev.Kind.ImpliedStatus()
	}
	if candidate != models.StatusUnknown {
		d := e.machine.Apply(candidate, ev.Source)
		out.Status = &d
		statusAccepted = d.Applied
		if !d.Applied {
			log.WithFields(logrus.Fields{
				"candidate": candidate,
				"current":   e.machine.Current(),
				"reason":    d.Reason,
			}).Debug("Status transition rejected")
		} else if d.Changed {
			e.record.Status = e.machine.Current()
			out.Changed = true
		}
	}

	if statusAccepted && ev.ResponderID != "" && ev.ResponderID != e.record.ResponderID {
		if e.lockHolds() && ev.Source != models.SourceLocal {
			log.WithField("responder_id", ev.ResponderID).Debug("Responder differs from locally confirmed write, discarded")
		} else {
			e.record.ResponderID = ev.ResponderID
			out.Changed = true
		}
	}

	if ev.Source == models.SourcePush && e.timeline.Live(ev) {
		out.Changed = true
	}

	if out.Changed {
		if out.Status != nil && out.Status.Changed && e.record.Status.IsTerminal() {
			log.WithField("status", e.record.Status).Info("Emergency reached terminal status")
		}
		e.commitAndNotify()
		return out
	}
	e.mu.Unlock()
	return out
}

// ResolveIndeterminate повторно применяет событие с владельцем из авторитетной записи
func (e *Engine) ResolveIndeterminate(ev, record models.NormalizedEvent) Outcome {
	owner := e.resolver.OwnerOf(record)
	if owner == "" {
		e.logger.WithFields(logrus.Fields{
			"component":    "engine",
			"method":       "ResolveIndeterminate",
			"emergency_id": ev.EmergencyID,
		}).Debug("Authoritative record has no owner, event dropped")
		return Outcome{Verdict: VerdictNotMine, Reason: "owner unknown"}
	}
	return e.Ingest(e.resolver.WithResolvedOwner(ev, owner))
}

// IngestHistory заменяет хронологию авторитетной историей записи emergencyID
func (e *Engine) IngestHistory(emergencyID string, history []models.NormalizedEvent, fetchedAt time.Time) bool {
	e.mu.Lock()
	if emergencyID == "" || emergencyID != e.record.ID {
		e.mu.Unlock()
		return false
	}
	if !e.timeline.Authoritative(history, fetchedAt) {
		e.mu.Unlock()
		return false
	}
	e.commitAndNotify()
	return true
}

// ConfirmLocalAction фиксирует успешно подтвержденное бэкендом действие пользователя.
// result - нормализованный ответ на запись (может быть пустым).
func (e *Engine) ConfirmLocalAction(action models.Action, result models.NormalizedEvent) Outcome {
	e.mu.Lock()
	log := e.logger.WithFields(logrus.Fields{
		"component":    "engine",
		"method":       "ConfirmLocalAction",
		"action":       action,
		"emergency_id": e.record.ID,
	})

	out := Outcome{Verdict: VerdictMine}
	if result.EmergencyID != "" {
		switch e.record.ID {
		case "":
			e.record.ID = result.EmergencyID
		case result.EmergencyID:
		default:
			e.mu.Unlock()
			log.WithField("result_id", result.EmergencyID).Warn("Write response refers to another emergency, ignored")
			out.Reason = "other emergency"
			return out
		}
	}

	target := action.TargetStatus()
	d := e.machine.Apply(target, models.SourceLocal)
	out.Status = &d
	if !d.Applied {
		e.mu.Unlock()
		log.WithFields(logrus.Fields{
			"candidate": target,
			"current":   d.Previous,
			"reason":    d.Reason,
		}).Info("Confirmed action does not advance status")
		out.Reason = d.Reason
		return out
	}

	now := e.now()
	e.record.Status = e.machine.Current()
	e.lock = localLock{status: target, responderID: result.ResponderID}
	if result.ResponderID != "" {
		e.record.ResponderID = result.ResponderID
	}
	e.applyAuthoritativeFields(result)
	if result.Location != nil {
		e.applyLocation(result, log)
	}

	payload := result.Payload
	if len(payload) == 0 {
		payload = map[string]any{"status": string(target)}
	}
	entry := models.TimelineEntry{
		EventType:   action.TimelineEvent(),
		Payload:     payload,
		OccurredAt:  result.OccurredAt,
		ConfirmedAt: now,
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = now
		entry.Estimated = true
	}
	e.timeline.Local(entry)

	out.Changed = true
	log.WithField("status", e.record.Status).Info("Local action confirmed")
	e.commitAndNotify()
	return out
}

// Snapshot возвращает текущий снимок для слоя представления
func (e *Engine) Snapshot() models.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe регистрирует наблюдателя изменений снимка. Наблюдатель вызывается
// последовательно в порядке версий, не должен блокироваться и синхронно вызывать Ingest.
func (e *Engine) Subscribe(fn func(models.Snapshot)) (unsubscribe func()) {
	id := uuid.New()
	e.mu.Lock()
	e.observers[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}
}

// applyAuthoritativeFields заполняет владельца и время создания из авторитетных источников
func (e *Engine) applyAuthoritativeFields(ev models.NormalizedEvent) bool {
	if ev.Source != models.SourcePoll && ev.Source != models.SourceLocal {
		return false
	}
	changed := false
	if e.record.OwnerUserID == "" {
		if owner := ev.Identity.Owner(); owner != "" {
			e.record.OwnerUserID = owner
			changed = true
		}
	}
	if e.record.CreatedAt.IsZero() && !ev.CreatedAt.IsZero() {
		e.record.CreatedAt = ev.CreatedAt
		changed = true
	}
	return changed
}

// applyLocation обновляет позицию ответчика без учета ранга статуса
func (e *Engine) applyLocation(ev models.NormalizedEvent, log *logrus.Entry) bool {
	at := ev.EffectiveTime()
	mark, seen := e.locationMarks[ev.Source]
	if e.policy == LocationMonotonic && seen && at.Before(mark) {
		log.WithFields(logrus.Fields{
			"location_at": at,
			"current_at":  mark,
		}).Debug("Older responder location ignored")
		return false
	}
	e.locationMarks[ev.Source] = at
	loc := *ev.Location
	if e.record.ResponderLocation != nil && *e.record.ResponderLocation == loc && e.record.LastResponderLocationAt.Equal(at) {
		return false
	}
	e.record.ResponderLocation = &loc
	e.record.LastResponderLocationAt = at
	return true
}

// lockHolds - локально подтвержденная запись еще определяет подполя текущего ранга
func (e *Engine) lockHolds() bool {
	return e.lock.status != models.StatusUnknown && Rank(e.lock.status) == Rank(e.machine.Current())
}

func (e *Engine) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{
		EmergencyID:             e.record.ID,
		Status:                  e.record.Status,
		ResponderID:             e.record.ResponderID,
		LastResponderLocationAt: e.record.LastResponderLocationAt,
		Timeline:                e.timeline.Entries(),
		Terminal:                e.record.Status.IsTerminal(),
		Version:                 e.version,
	}
	if e.record.ResponderLocation != nil {
		loc := *e.record.ResponderLocation
		snap.ResponderLocation = &loc
	}
	return snap
}

// commitAndNotify увеличивает версию, снимает e.mu и уведомляет наблюдателей.
// notifyMu берется до снятия e.mu, чтобы наблюдатели видели версии по порядку.
func (e *Engine) commitAndNotify() {
	e.version++
	snap := e.snapshotLocked()
	observers := make([]func(models.Snapshot), 0, len(e.observers))
	for _, fn := range e.observers {
		observers = append(observers, fn)
	}
	e.notifyMu.Lock()
	e.mu.Unlock()
	defer e.notifyMu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

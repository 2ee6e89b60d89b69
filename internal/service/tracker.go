package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shenikar/emergency_tracker/internal/channel"
	"github.com/shenikar/emergency_tracker/internal/config"
	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/shenikar/emergency_tracker/internal/tracking"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

//go:generate mockgen -source=tracker.go -destination=mocks/mock_tracker.go -package=mocks

var (
	// ErrNoSession - операция требует активной сессии
	ErrNoSession = errors.New("service: no active session")
	// ErrNoEmergency - нет отслеживаемого вызова
	ErrNoEmergency = errors.New("service: no tracked emergency")
	// ErrActionNotAllowed - действие недоступно роли сессии
	ErrActionNotAllowed = errors.New("service: action not allowed for role")
	// ErrTerminal - вызов уже в терминальном статусе
	ErrTerminal = errors.New("service: emergency is in terminal status")
	// ErrInvalidSession - неполные данные для входа
	ErrInvalidSession = errors.New("service: invalid session")
)

// EmergencyBackend определяет контракт REST-бэкенда вызовов
type EmergencyBackend interface {
	SetToken(token string)
	GetEmergency(ctx context.Context, id string) (map[string]any, error)
	GetLatest(ctx context.Context) (map[string]any, error)
	GetHistory(ctx context.Context, id string) ([]map[string]any, error)
	ListEmergencies(ctx context.Context) ([]map[string]any, error)
	PerformAction(ctx context.Context, action models.Action, emergencyID string) (map[string]any, error)
	CreateSOS(ctx context.Context, req models.SOSRequest) (map[string]any, error)
	PostResponderLocation(ctx context.Context, report models.LocationReport) error
	Health(ctx context.Context) error
}

// SnapshotNotifier получает каждый новый снимок сессии
type SnapshotNotifier interface {
	Notify(ctx context.Context, userID string, snap models.Snapshot) error
}

// TrackerService определяет контракт контроллера жизненного цикла вызова
type TrackerService interface {
	Login(ctx context.Context, session models.Session) error
	Logout(ctx context.Context) error
	CurrentSession() (models.Session, bool)
	Track(ctx context.Context, emergencyID string) (models.Snapshot, error)
	TriggerSOS(ctx context.Context, req models.SOSRequest) (models.Snapshot, error)
	PerformAction(ctx context.Context, action models.Action) (models.Snapshot, error)
	Snapshot() (models.Snapshot, error)
	Subscribe(fn func(models.Snapshot)) (func(), error)
	UpdatePosition(loc models.Location)
	Health(ctx context.Context) error
}

type trackerService struct {
	backend    EmergencyBackend
	stream     channel.EventStream
	notifier   SnapshotNotifier
	positions  *PositionStore
	normalizer *tracking.Normalizer
	logger     *logrus.Logger
	cfg        *config.Config

	confirmations singleflight.Group

	mu      sync.Mutex
	current *trackerSession
}

// NewTrackerService создает контроллер. notifier может быть nil.
func NewTrackerService(backend EmergencyBackend, stream channel.EventStream, notifier SnapshotNotifier, logger *logrus.Logger, cfg *config.Config) TrackerService {
	return &trackerService{
		backend:    backend,
		stream:     stream,
		notifier:   notifier,
		positions:  NewPositionStore(),
		normalizer: tracking.NewNormalizer(nil),
		logger:     logger,
		cfg:        cfg,
	}
}

// Login открывает сессию: задает токен, поднимает push-подписку и находит вызов пользователя
func (s *trackerService) Login(ctx context.Context, session models.Session) error {
	log := s.logger.WithFields(logrus.Fields{
		"service": "tracker",
		"method":  "Login",
		"user_id": session.UserID,
		"role":    session.Role,
	})
	if session.UserID == "" || session.Token == "" {
		return ErrInvalidSession
	}
	if session.Role != models.RoleResident && session.Role != models.RoleResponder {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidSession, session.Role)
	}

	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()
	if prev != nil {
		log.Info("Replacing active session")
		prev.close()
	}

	s.backend.SetToken(session.Token)
	if ts, ok := s.stream.(tokenSetter); ok {
		ts.SetToken(session.Token)
	}

	sess := s.newSession(session)
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	if err := sess.push.Start(ctx); err != nil {
		// адаптер переподключается сам; до этого страхует опрос
		log.WithError(err).Warn("Push subscription unavailable, retrying in background")
	}
	log.Info("Session opened")

	if _, err := s.discover(ctx, sess); err != nil && !errors.Is(err, ErrNoEmergency) {
		log.WithError(err).Warn("Could not discover emergency for session")
	}
	return nil
}

// Logout закрывает сессию и останавливает все адаптеры; повторный вызов ничего не делает
func (s *trackerService) Logout(ctx context.Context) error {
	s.mu.Lock()
	sess := s.current
	s.current = nil
	s.mu.Unlock()
	if sess == nil {
		return nil
	}

	sess.close()
	s.backend.SetToken("")
	if ts, ok := s.stream.(tokenSetter); ok {
		ts.SetToken("")
	}
	s.logger.WithFields(logrus.Fields{
		"service": "tracker",
		"method":  "Logout",
		"user_id": sess.session.UserID,
	}).Info("Session closed")
	return nil
}

// CurrentSession возвращает активную сессию
func (s *trackerService) CurrentSession() (models.Session, bool) {
	sess, err := s.active()
	if err != nil {
		return models.Session{}, false
	}
	return sess.session, true
}

// Track начинает отслеживать вызов. Пустой id означает поиск вызова пользователя.
func (s *trackerService) Track(ctx context.Context, emergencyID string) (models.Snapshot, error) {
	sess, err := s.active()
	if err != nil {
		return models.Snapshot{}, err
	}
	if emergencyID == "" {
		return s.discover(ctx, sess)
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":      "tracker",
		"method":       "Track",
		"emergency_id": emergencyID,
	})

	raw, err := s.backend.GetEmergency(ctx, emergencyID)
	switch {
	case errors.Is(err, models.ErrNotFound) && sess.session.Role == models.RoleResident:
		log.Info("Emergency not found, falling back to latest")
		raw, err = s.backend.GetLatest(ctx)
		if errors.Is(err, models.ErrNotFound) {
			return models.Snapshot{}, ErrNoEmergency
		}
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("service: could not fetch latest emergency: %w", err)
		}
		latest := s.normalizer.Record(models.SourcePoll, raw)
		if latest.EmergencyID == "" {
			return models.Snapshot{}, ErrNoEmergency
		}
		return sess.adopt(latest, latest.EmergencyID), nil
	case errors.Is(err, models.ErrNotFound):
		return models.Snapshot{}, fmt.Errorf("%w: %s", ErrNoEmergency, emergencyID)
	case err != nil:
		// запись подтянет опрос
		log.WithError(err).Warn("Initial fetch failed, tracking by id")
		sess.retarget(emergencyID)
		return sess.engine.Snapshot(), nil
	}

	record := s.normalizer.Record(models.SourcePoll, raw)
	if sess.engine.Resolver().Resolve(record, "") == tracking.VerdictNotMine {
		log.Warn("Emergency belongs to another user")
		return models.Snapshot{}, fmt.Errorf("%w: %s", ErrNoEmergency, emergencyID)
	}
	return sess.adopt(record, emergencyID), nil
}

// TriggerSOS создает вызов и начинает его отслеживать
func (s *trackerService) TriggerSOS(ctx context.Context, req models.SOSRequest) (models.Snapshot, error) {
	sess, err := s.active()
	if err != nil {
		return models.Snapshot{}, err
	}
	log := s.logger.WithFields(logrus.Fields{
		"service": "tracker",
		"method":  "TriggerSOS",
		"user_id": sess.session.UserID,
	})
	if sess.session.Role != models.RoleResident {
		return models.Snapshot{}, ErrActionNotAllowed
	}
	if req.Description == "" {
		req.Description = "Emergency SOS Alert"
		if req.Type != "" {
			req.Description = req.Type + " reported via SOS"
		}
	}
	if req.Type == "" {
		req.Type = "SOS"
	}

	log.Info("Attempting to create emergency")
	raw, err := s.backend.CreateSOS(ctx, req)
	if err != nil {
		log.WithError(err).Error("Failed to create emergency in backend")
		return models.Snapshot{}, fmt.Errorf("service: could not create emergency: %w", err)
	}
	result := s.normalizer.Record(models.SourceLocal, raw)
	if result.EmergencyID == "" {
		return models.Snapshot{}, fmt.Errorf("service: could not create emergency: response has no id")
	}

	sess.engine.Track(result.EmergencyID)
	sess.engine.ConfirmLocalAction(models.ActionCreate, result)
	sess.reconcile()

	emitted := map[string]any{
		"emergencyId": result.EmergencyID,
		"location":    req.Location,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.stream.Emit(ctx, tracking.EventSOSTriggered, emitted); err != nil {
		log.WithError(err).Warn("Failed to emit sos event")
	}

	log.WithField("emergency_id", result.EmergencyID).Info("Emergency created successfully")
	return sess.engine.Snapshot(), nil
}

// PerformAction выполняет действие пользователя; статус меняется только после ответа бэкенда
func (s *trackerService) PerformAction(ctx context.Context, action models.Action) (models.Snapshot, error) {
	sess, err := s.active()
	if err != nil {
		return models.Snapshot{}, err
	}
	if !allowed(sess.session.Role, action) {
		return models.Snapshot{}, ErrActionNotAllowed
	}
	snap := sess.engine.Snapshot()
	if snap.EmergencyID == "" {
		return models.Snapshot{}, ErrNoEmergency
	}
	if snap.Terminal {
		return snap, ErrTerminal
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":      "tracker",
		"method":       "PerformAction",
		"action":       action,
		"emergency_id": snap.EmergencyID,
	})
	raw, err := s.backend.PerformAction(ctx, action, snap.EmergencyID)
	if err != nil {
		log.WithError(err).Error("Backend rejected action")
		return snap, fmt.Errorf("service: could not %s emergency: %w", action, err)
	}

	result := s.normalizer.Record(models.SourceLocal, raw)
	if result.EmergencyID == "" {
		result.EmergencyID = snap.EmergencyID
	}
	if result.ResponderID == "" && action == models.ActionAccept {
		result.ResponderID = sess.session.UserID
	}
	sess.engine.ConfirmLocalAction(action, result)
	sess.reconcile()

	log.Info("Action confirmed")
	return sess.engine.Snapshot(), nil
}

// Snapshot возвращает снимок отслеживаемого вызова
func (s *trackerService) Snapshot() (models.Snapshot, error) {
	sess, err := s.active()
	if err != nil {
		return models.Snapshot{}, err
	}
	return sess.engine.Snapshot(), nil
}

// Subscribe подписывает на снимки текущей сессии
func (s *trackerService) Subscribe(fn func(models.Snapshot)) (func(), error) {
	sess, err := s.active()
	if err != nil {
		return nil, err
	}
	return sess.engine.Subscribe(fn), nil
}

// UpdatePosition принимает позицию устройства для публикации ответчиком
func (s *trackerService) UpdatePosition(loc models.Location) {
	s.positions.Set(loc)
}

// Health проверяет доступность бэкенда
func (s *trackerService) Health(ctx context.Context) error {
	if err := s.backend.Health(ctx); err != nil {
		return fmt.Errorf("service: backend unavailable: %w", err)
	}
	return nil
}

func (s *trackerService) active() (*trackerSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoSession
	}
	return s.current, nil
}

// discover находит вызов пользователя: последний для жителя, назначенный для ответчика
func (s *trackerService) discover(ctx context.Context, sess *trackerSession) (models.Snapshot, error) {
	if sess.session.Role == models.RoleResponder {
		items, err := s.backend.ListEmergencies(ctx)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("service: could not list emergencies: %w", err)
		}
		for _, item := range items {
			ev := s.normalizer.Record(models.SourcePoll, item)
			if ev.ResponderID == sess.session.UserID && !ev.Status.IsTerminal() && ev.EmergencyID != "" {
				return sess.adopt(ev, ev.EmergencyID), nil
			}
		}
		return models.Snapshot{}, ErrNoEmergency
	}

	raw, err := s.backend.GetLatest(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return models.Snapshot{}, ErrNoEmergency
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("service: could not fetch latest emergency: %w", err)
	}
	ev := s.normalizer.Record(models.SourcePoll, raw)
	if ev.EmergencyID == "" {
		return models.Snapshot{}, ErrNoEmergency
	}
	return sess.adopt(ev, ev.EmergencyID), nil
}

func allowed(role models.Role, action models.Action) bool {
	switch action {
	case models.ActionAccept, models.ActionArrive, models.ActionResolve, models.ActionMarkFraud:
		return role == models.RoleResponder
	}
	return false
}

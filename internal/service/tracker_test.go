package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shenikar/emergency_tracker/internal/channel"
	channel_mocks "github.com/shenikar/emergency_tracker/internal/channel/mocks"
	"github.com/shenikar/emergency_tracker/internal/config"
	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/shenikar/emergency_tracker/internal/service/mocks"
	"github.com/shenikar/emergency_tracker/internal/tracking"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var errUnavailable = errors.New("connection refused")

type trackerFixture struct {
	svc      *trackerService
	backend  *mocks.MockEmergencyBackend
	stream   *channel_mocks.MockEventStream
	notifier *mocks.MockSnapshotNotifier

	mu      sync.Mutex
	handler func(string, []byte)
}

// newTrackerFixture — вспомогательная функция для создания сервиса с моками бэкенда и realtime-канала.
// Интервалы адаптеров большие: за время теста опрос и публикация выполняются по одному разу.
func newTrackerFixture(t *testing.T, withNotifier bool) *trackerFixture {
	ctrl := gomock.NewController(t)
	f := &trackerFixture{
		backend:  mocks.NewMockEmergencyBackend(ctrl),
		stream:   channel_mocks.NewMockEventStream(ctrl),
		notifier: mocks.NewMockSnapshotNotifier(ctrl),
	}
	sub := channel_mocks.NewMockSubscription(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		PollInterval:        time.Hour,
		PollTimeout:         time.Second,
		LocationInterval:    time.Hour,
		LocationTimeout:     time.Second,
		LocationPolicy:      "monotonic",
		TimelineLocationCap: 1,
		LocalEchoGrace:      30 * time.Second,
		ConfirmTimeout:      time.Second,
	}
	var notifier SnapshotNotifier
	if withNotifier {
		notifier = f.notifier
	}
	f.svc = NewTrackerService(f.backend, f.stream, notifier, logger, cfg).(*trackerService)

	f.backend.EXPECT().SetToken(gomock.Any()).AnyTimes()
	f.stream.EXPECT().
		Subscribe(gomock.Any(), tracking.PushEvents, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []string, h func(string, []byte)) (channel.Subscription, error) {
			f.mu.Lock()
			f.handler = h
			f.mu.Unlock()
			return sub, nil
		}).
		AnyTimes()
	sub.EXPECT().Done().Return(nil).AnyTimes()
	sub.EXPECT().Close().Return(nil).AnyTimes()

	t.Cleanup(f.shutdown)
	return f
}

// push доставляет событие так, как его доставил бы транспорт
func (f *trackerFixture) push(t *testing.T, name, payload string) {
	t.Helper()
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	require.NotNil(t, h, "push subscription is not active")
	h(name, []byte(payload))
}

// polls задает ответы адаптера опроса для записи id
func (f *trackerFixture) polls(id string, record map[string]any, err error) {
	f.backend.EXPECT().GetEmergency(gomock.Any(), id).Return(record, err).AnyTimes()
	f.backend.EXPECT().GetHistory(gomock.Any(), id).Return(nil, err).AnyTimes()
}

func (f *trackerFixture) shutdown() {
	f.svc.mu.Lock()
	sess := f.svc.current
	f.svc.mu.Unlock()
	_ = f.svc.Logout(context.Background())
	if sess != nil {
		sess.poller.Wait()
		sess.locator.Wait()
	}
}

func (f *trackerFixture) session() *trackerSession {
	f.svc.mu.Lock()
	defer f.svc.mu.Unlock()
	return f.svc.current
}

func residentSession() models.Session {
	return models.Session{UserID: "u1", Token: "tok", Role: models.RoleResident}
}

func responderSession() models.Session {
	return models.Session{UserID: "r1", Token: "tok", Role: models.RoleResponder}
}

func entryTypes(snap models.Snapshot) []models.EventType {
	out := make([]models.EventType, 0, len(snap.Timeline))
	for _, e := range snap.Timeline {
		out = append(out, e.EventType)
	}
	return out
}

func TestLogin_ResidentDiscoversLatest(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	ctx := context.Background()
	record := map[string]any{"id": "E1", "userId": "u1", "status": "ACCEPTED", "responderId": "r7"}

	// Ожидания
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(record, nil).Times(1)
	f.polls("E1", record, nil)

	// Действие
	err := f.svc.Login(ctx, residentSession())

	// Проверки
	require.NoError(t, err)
	snap, err := f.svc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "E1", snap.EmergencyID)
	assert.Equal(t, models.StatusAccepted, snap.Status)
	assert.Equal(t, "r7", snap.ResponderID)
	assert.Equal(t, "E1", f.session().poller.EmergencyID())
	assert.Empty(t, f.session().locator.EmergencyID())

	current, ok := f.svc.CurrentSession()
	assert.True(t, ok)
	assert.Equal(t, residentSession(), current)
}

func TestLogin_InvalidSession(t *testing.T) {
	tests := []struct {
		name    string
		session models.Session
	}{
		{name: "no user", session: models.Session{Token: "tok", Role: models.RoleResident}},
		{name: "no token", session: models.Session{UserID: "u1", Role: models.RoleResident}},
		{name: "unknown role", session: models.Session{UserID: "u1", Token: "tok", Role: "dispatcher"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTrackerFixture(t, false)

			err := f.svc.Login(context.Background(), tt.session)

			assert.True(t, errors.Is(err, ErrInvalidSession))
			_, ok := f.svc.CurrentSession()
			assert.False(t, ok)
		})
	}
}

func TestLogin_ResponderDiscoversAssignment(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	assigned := map[string]any{"id": "E3", "responderId": "r1", "status": "ASSIGNED"}

	// Ожидания
	f.backend.EXPECT().
		ListEmergencies(gomock.Any()).
		Return([]map[string]any{
			{"id": "E1", "responderId": "r2", "status": "ASSIGNED"},
			{"id": "E2", "responderId": "r1", "status": "RESOLVED"},
			assigned,
		}, nil).
		Times(1)
	f.polls("E3", assigned, nil)

	// Действие
	err := f.svc.Login(context.Background(), responderSession())

	// Проверки
	require.NoError(t, err)
	snap, _ := f.svc.Snapshot()
	assert.Equal(t, "E3", snap.EmergencyID)
	assert.Equal(t, models.StatusAssigned, snap.Status)
}

func TestLogin_DiscoveryFailureKeepsSession(t *testing.T) {
	f := newTrackerFixture(t, false)

	f.backend.EXPECT().GetLatest(gomock.Any()).Return(nil, errUnavailable).Times(1)

	err := f.svc.Login(context.Background(), residentSession())

	require.NoError(t, err)
	snap, err := f.svc.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.EmergencyID)
	assert.Equal(t, models.StatusPending, snap.Status)
}

func TestTrack_NotFoundFallsBackToLatest(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	ctx := context.Background()
	latest := map[string]any{"id": "E2", "userId": "u1", "status": "PENDING"}

	// Ожидания
	// 1. При входе вызова еще нет
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(nil, models.ErrNotFound).Times(1)
	// 2. Запрошенный вызов не найден, берется последний
	f.backend.EXPECT().GetEmergency(gomock.Any(), "E9").Return(nil, models.ErrNotFound).Times(1)
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(latest, nil).Times(1)
	f.polls("E2", latest, nil)

	require.NoError(t, f.svc.Login(ctx, residentSession()))

	// Действие
	snap, err := f.svc.Track(ctx, "E9")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "E2", snap.EmergencyID)
	assert.Equal(t, models.StatusPending, snap.Status)
}

func TestTrack_ResponderNotFound(t *testing.T) {
	f := newTrackerFixture(t, false)
	ctx := context.Background()

	f.backend.EXPECT().ListEmergencies(gomock.Any()).Return([]map[string]any{}, nil).Times(1)
	f.backend.EXPECT().GetEmergency(gomock.Any(), "E9").Return(nil, models.ErrNotFound).Times(1)
	require.NoError(t, f.svc.Login(ctx, responderSession()))

	_, err := f.svc.Track(ctx, "E9")

	assert.True(t, errors.Is(err, ErrNoEmergency))
}

func TestTrack_TransportErrorTracksByID(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	ctx := context.Background()

	// Ожидания
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(nil, models.ErrNotFound).Times(1)
	f.polls("E3", nil, errUnavailable)

	require.NoError(t, f.svc.Login(ctx, residentSession()))

	// Действие
	snap, err := f.svc.Track(ctx, "E3")

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "E3", snap.EmergencyID)
	assert.Equal(t, models.StatusPending, snap.Status)
	assert.Equal(t, "E3", f.session().poller.EmergencyID())
}

func TestTrack_ForeignEmergencyRejected(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	ctx := context.Background()
	record := map[string]any{"id": "E1", "userId": "u1", "status": "PENDING"}

	// Ожидания
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(record, nil).Times(1)
	f.polls("E1", record, nil)
	f.backend.EXPECT().
		GetEmergency(gomock.Any(), "E8").
		Return(map[string]any{"id": "E8", "userId": "u9", "status": "ACCEPTED"}, nil).
		Times(1)

	require.NoError(t, f.svc.Login(ctx, residentSession()))
	before, _ := f.svc.Snapshot()

	// Действие
	_, err := f.svc.Track(ctx, "E8")

	// Проверки
	assert.True(t, errors.Is(err, ErrNoEmergency))
	after, _ := f.svc.Snapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, "E1", f.session().poller.EmergencyID())
}

func TestTrack_NoSession(t *testing.T) {
	f := newTrackerFixture(t, false)

	_, err := f.svc.Track(context.Background(), "E1")

	assert.True(t, errors.Is(err, ErrNoSession))
}

func TestPerformAction_Accept(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	ctx := context.Background()
	assigned := map[string]any{"id": "E3", "responderId": "r1", "status": "ASSIGNED"}

	// Ожидания
	f.backend.EXPECT().ListEmergencies(gomock.Any()).Return([]map[string]any{assigned}, nil).Times(1)
	f.polls("E3", assigned, nil)
	f.backend.EXPECT().
		PerformAction(gomock.Any(), models.ActionAccept, "E3").
		Return(map[string]any{}, nil).
		Times(1)

	require.NoError(t, f.svc.Login(ctx, responderSession()))

	// Действие
	snap, err := f.svc.PerformAction(ctx, models.ActionAccept)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, snap.Status)
	assert.Equal(t, "r1", snap.ResponderID)
	assert.Equal(t, []models.EventType{models.EventAccepted}, entryTypes(snap))
	assert.Equal(t, "E3", f.session().locator.EmergencyID())
}

func TestPerformAction_FailureLeavesRecordUnchanged(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	ctx := context.Background()
	assigned := map[string]any{"id": "E3", "responderId": "r1", "status": "ASSIGNED"}

	// Ожидания
	f.backend.EXPECT().ListEmergencies(gomock.Any()).Return([]map[string]any{assigned}, nil).Times(1)
	f.polls("E3", assigned, nil)
	f.backend.EXPECT().
		PerformAction(gomock.Any(), models.ActionArrive, "E3").
		Return(nil, errUnavailable).
		Times(1)

	require.NoError(t, f.svc.Login(ctx, responderSession()))
	before, _ := f.svc.Snapshot()

	// Действие
	_, err := f.svc.PerformAction(ctx, models.ActionArrive)

	// Проверки
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUnavailable))
	after, _ := f.svc.Snapshot()
	assert.Equal(t, models.StatusAssigned, after.Status)
	assert.Equal(t, before.Timeline, after.Timeline)
	assert.Empty(t, f.session().locator.EmergencyID())
}

func TestPerformAction_Rejected(t *testing.T) {
	t.Run("resident cannot accept", func(t *testing.T) {
		f := newTrackerFixture(t, false)
		f.backend.EXPECT().GetLatest(gomock.Any()).Return(nil, models.ErrNotFound).Times(1)
		require.NoError(t, f.svc.Login(context.Background(), residentSession()))

		_, err := f.svc.PerformAction(context.Background(), models.ActionAccept)

		assert.True(t, errors.Is(err, ErrActionNotAllowed))
	})

	t.Run("nothing tracked", func(t *testing.T) {
		f := newTrackerFixture(t, false)
		f.backend.EXPECT().ListEmergencies(gomock.Any()).Return(nil, nil).Times(1)
		require.NoError(t, f.svc.Login(context.Background(), responderSession()))

		_, err := f.svc.PerformAction(context.Background(), models.ActionAccept)

		assert.True(t, errors.Is(err, ErrNoEmergency))
	})

	t.Run("terminal", func(t *testing.T) {
		f := newTrackerFixture(t, false)
		resolved := map[string]any{"id": "E4", "responderId": "r1", "status": "RESOLVED"}
		f.backend.EXPECT().ListEmergencies(gomock.Any()).Return(nil, nil).Times(1)
		f.backend.EXPECT().GetEmergency(gomock.Any(), "E4").Return(resolved, nil).Times(1)
		require.NoError(t, f.svc.Login(context.Background(), responderSession()))
		_, err := f.svc.Track(context.Background(), "E4")
		require.NoError(t, err)

		_, err = f.svc.PerformAction(context.Background(), models.ActionResolve)

		assert.True(t, errors.Is(err, ErrTerminal))
	})
}

func TestPerformAction_PublishesPositionAfterAccept(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	ctx := context.Background()
	assigned := map[string]any{"id": "E3", "responderId": "r1", "status": "ASSIGNED"}
	position := models.Location{Lat: 55.75, Lng: 37.61}
	report := models.LocationReport{EmergencyID: "E3", Location: position}
	emitted := make(chan struct{}, 1)
	posted := make(chan struct{}, 1)

	// Ожидания
	f.backend.EXPECT().ListEmergencies(gomock.Any()).Return([]map[string]any{assigned}, nil).Times(1)
	f.polls("E3", assigned, nil)
	f.backend.EXPECT().PerformAction(gomock.Any(), models.ActionAccept, "E3").Return(map[string]any{}, nil).Times(1)
	f.stream.EXPECT().
		Emit(gomock.Any(), tracking.EventLocationEmit, report).
		DoAndReturn(func(context.Context, string, any) error {
			emitted <- struct{}{}
			return nil
		}).
		Times(1)
	f.backend.EXPECT().
		PostResponderLocation(gomock.Any(), report).
		DoAndReturn(func(context.Context, models.LocationReport) error {
			posted <- struct{}{}
			return errUnavailable
		}).
		Times(1)

	require.NoError(t, f.svc.Login(ctx, responderSession()))
	f.svc.UpdatePosition(position)

	// Действие
	_, err := f.svc.PerformAction(ctx, models.ActionAccept)

	// Проверки
	require.NoError(t, err)
	for _, ch := range []chan struct{}{emitted, posted} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("position was not published")
		}
	}
}

func TestPerformAction_ArriveStopsPositionPublishing(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	ctx := context.Background()
	assigned := map[string]any{"id": "E3", "responderId": "r1", "status": "ASSIGNED"}

	// Ожидания
	f.backend.EXPECT().ListEmergencies(gomock.Any()).Return([]map[string]any{assigned}, nil).Times(1)
	f.polls("E3", assigned, nil)
	f.backend.EXPECT().PerformAction(gomock.Any(), models.ActionAccept, "E3").Return(map[string]any{}, nil).Times(1)
	f.backend.EXPECT().PerformAction(gomock.Any(), models.ActionArrive, "E3").Return(map[string]any{}, nil).Times(1)

	require.NoError(t, f.svc.Login(ctx, responderSession()))
	_, err := f.svc.PerformAction(ctx, models.ActionAccept)
	require.NoError(t, err)
	require.Equal(t, "E3", f.session().locator.EmergencyID())

	// Действие
	snap, err := f.svc.PerformAction(ctx, models.ActionArrive)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusArrived, snap.Status)
	assert.Empty(t, f.session().locator.EmergencyID())
	assert.Equal(t, "E3", f.session().poller.EmergencyID())
}

func TestPushEvents_ResolvedStopsPositionPublishing(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	ctx := context.Background()
	assigned := map[string]any{"id": "E3", "responderId": "r1", "status": "ASSIGNED"}

	// Ожидания
	f.backend.EXPECT().ListEmergencies(gomock.Any()).Return([]map[string]any{assigned}, nil).Times(1)
	f.polls("E3", assigned, nil)
	f.backend.EXPECT().PerformAction(gomock.Any(), models.ActionAccept, "E3").Return(map[string]any{}, nil).Times(1)

	require.NoError(t, f.svc.Login(ctx, responderSession()))
	_, err := f.svc.PerformAction(ctx, models.ActionAccept)
	require.NoError(t, err)
	require.Equal(t, "E3", f.session().locator.EmergencyID())

	// Действие
	f.push(t, tracking.EventEmergencyResolved, `{"emergencyId":"E3","responderId":"r1"}`)

	// Проверки
	snap, _ := f.svc.Snapshot()
	assert.Equal(t, models.StatusResolved, snap.Status)
	assert.Empty(t, f.session().locator.EmergencyID())
	assert.Empty(t, f.session().poller.EmergencyID())
}

func TestTriggerSOS(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	ctx := context.Background()
	location := models.Location{Lat: 1.5, Lng: 2.5}

	// Ожидания
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(nil, models.ErrNotFound).Times(1)
	f.backend.EXPECT().
		CreateSOS(gomock.Any(), models.SOSRequest{Type: "SOS", Description: "Emergency SOS Alert", Location: location}).
		Return(map[string]any{"id": "E5", "status": "PENDING", "userId": "u1"}, nil).
		Times(1)
	f.stream.EXPECT().Emit(gomock.Any(), tracking.EventSOSTriggered, gomock.Any()).Return(errUnavailable).Times(1)
	f.polls("E5", nil, errUnavailable)

	require.NoError(t, f.svc.Login(ctx, residentSession()))

	// Действие
	snap, err := f.svc.TriggerSOS(ctx, models.SOSRequest{Location: location})

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, "E5", snap.EmergencyID)
	assert.Equal(t, models.StatusPending, snap.Status)
	require.Len(t, snap.Timeline, 1)
	assert.Equal(t, models.EventCreated, snap.Timeline[0].EventType)
	assert.Equal(t, models.SourceLocal, snap.Timeline[0].Origin)
}

func TestTriggerSOS_TypedDescription(t *testing.T) {
	f := newTrackerFixture(t, false)
	ctx := context.Background()

	f.backend.EXPECT().GetLatest(gomock.Any()).Return(nil, models.ErrNotFound).Times(1)
	f.backend.EXPECT().
		CreateSOS(gomock.Any(), models.SOSRequest{Type: "FIRE", Description: "FIRE reported via SOS"}).
		Return(nil, errUnavailable).
		Times(1)
	require.NoError(t, f.svc.Login(ctx, residentSession()))

	_, err := f.svc.TriggerSOS(ctx, models.SOSRequest{Type: "FIRE"})

	assert.True(t, errors.Is(err, errUnavailable))
	snap, _ := f.svc.Snapshot()
	assert.Empty(t, snap.EmergencyID)
}

func TestPushEvents_TerminalStopsTracking(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	record := map[string]any{"id": "E1", "userId": "u1", "status": "ACCEPTED"}

	// Ожидания
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(record, nil).Times(1)
	f.polls("E1", nil, errUnavailable)

	require.NoError(t, f.svc.Login(context.Background(), residentSession()))

	// Действие
	f.push(t, tracking.EventEmergencyArrived, `{"emergencyId":"E1","arrivedAt":"2026-01-01T12:05:00Z"}`)
	f.push(t, tracking.EventEmergencyUpdated, `{"emergencyId":"E1","userId":"u2","status":"RESOLVED"}`)
	arrived, _ := f.svc.Snapshot()
	f.push(t, tracking.EventEmergencyResolved, `{"emergencyId":"E1"}`)
	resolved, _ := f.svc.Snapshot()
	f.push(t, tracking.EventEmergencyUpdated, `{"id":"E1","status":"ARRIVED"}`)
	f.push(t, tracking.EventEmergencyArrived, `not json`)
	final, _ := f.svc.Snapshot()

	// Проверки
	assert.Equal(t, models.StatusArrived, arrived.Status)
	assert.Equal(t, models.StatusResolved, resolved.Status)
	assert.True(t, resolved.Terminal)
	assert.Equal(t, resolved.Version, final.Version)
	assert.Equal(t, []models.EventType{models.EventArrived, models.EventResolved}, entryTypes(final))
	assert.Empty(t, f.session().poller.EmergencyID())
}

func TestPushEvents_ConfirmedNewEmergencyRetargets(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	resolved := map[string]any{"id": "E1", "userId": "u1", "status": "RESOLVED"}
	created := map[string]any{"id": "E2", "userId": "u1", "status": "PENDING"}

	// Ожидания
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(resolved, nil).Times(1)
	f.polls("E2", created, nil)

	require.NoError(t, f.svc.Login(context.Background(), residentSession()))

	// Действие
	f.push(t, tracking.EventEmergencyCreated, `{"id":"E2","createdAt":"2026-01-01T12:00:00Z"}`)

	// Проверки
	assert.Eventually(t, func() bool {
		snap, err := f.svc.Snapshot()
		return err == nil && snap.EmergencyID == "E2"
	}, 2*time.Second, 10*time.Millisecond)
	snap, _ := f.svc.Snapshot()
	assert.Equal(t, models.StatusPending, snap.Status)
	assert.False(t, snap.Terminal)
	assert.Contains(t, entryTypes(snap), models.EventCreated)
}

func TestPushEvents_ForeignConfirmationDropped(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	resolved := map[string]any{"id": "E1", "userId": "u1", "status": "RESOLVED"}
	confirmed := make(chan struct{}, 1)

	// Ожидания
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(resolved, nil).Times(1)
	f.backend.EXPECT().
		GetEmergency(gomock.Any(), "E7").
		DoAndReturn(func(context.Context, string) (map[string]any, error) {
			defer func() { confirmed <- struct{}{} }()
			return map[string]any{"id": "E7", "userId": "u9"}, nil
		}).
		Times(1)

	require.NoError(t, f.svc.Login(context.Background(), residentSession()))
	before, _ := f.svc.Snapshot()

	// Действие
	f.push(t, tracking.EventEmergencyCreated, `{"id":"E7"}`)

	// Проверки
	select {
	case <-confirmed:
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation fetch was not made")
	}
	assert.Never(t, func() bool {
		snap, _ := f.svc.Snapshot()
		return snap.Version != before.Version
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestPushEvents_FailedConfirmationDropped(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	resolved := map[string]any{"id": "E1", "userId": "u1", "status": "RESOLVED"}
	confirmed := make(chan struct{}, 1)

	// Ожидания
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(resolved, nil).Times(1)
	f.backend.EXPECT().
		GetEmergency(gomock.Any(), "E7").
		DoAndReturn(func(context.Context, string) (map[string]any, error) {
			defer func() { confirmed <- struct{}{} }()
			return nil, errUnavailable
		}).
		Times(1)

	require.NoError(t, f.svc.Login(context.Background(), residentSession()))
	before, _ := f.svc.Snapshot()

	// Действие
	f.push(t, tracking.EventEmergencyCreated, `{"id":"E7"}`)

	// Проверки
	select {
	case <-confirmed:
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation fetch was not made")
	}
	assert.Never(t, func() bool {
		snap, _ := f.svc.Snapshot()
		return snap.Version != before.Version
	}, 100*time.Millisecond, 10*time.Millisecond)
	snap, _ := f.svc.Snapshot()
	assert.Equal(t, "E1", snap.EmergencyID)
}

func TestLogout_StopsSession(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, false)
	ctx := context.Background()
	record := map[string]any{"id": "E1", "userId": "u1", "status": "PENDING"}

	// Ожидания
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(record, nil).Times(1)
	f.polls("E1", record, nil)

	require.NoError(t, f.svc.Login(ctx, residentSession()))
	sess := f.session()

	// Действие
	require.NoError(t, f.svc.Logout(ctx))
	require.NoError(t, f.svc.Logout(ctx))

	// Проверки
	_, err := f.svc.Snapshot()
	assert.True(t, errors.Is(err, ErrNoSession))
	_, err = f.svc.Subscribe(func(models.Snapshot) {})
	assert.True(t, errors.Is(err, ErrNoSession))
	assert.False(t, sess.push.Active())
	assert.Empty(t, sess.poller.EmergencyID())
	assert.Equal(t, "session closed", sess.Ingest(models.NormalizedEvent{Source: models.SourcePush}).Reason)
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	f := newTrackerFixture(t, false)
	ctx := context.Background()

	f.backend.EXPECT().GetLatest(gomock.Any()).Return(nil, models.ErrNotFound).Times(1)
	f.backend.EXPECT().ListEmergencies(gomock.Any()).Return(nil, nil).Times(1)

	require.NoError(t, f.svc.Login(ctx, residentSession()))
	first := f.session()
	require.NoError(t, f.svc.Login(ctx, responderSession()))

	assert.False(t, first.push.Active())
	current, ok := f.svc.CurrentSession()
	assert.True(t, ok)
	assert.Equal(t, models.RoleResponder, current.Role)
}

func TestSubscribe_NotifiesSnapshots(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, true)
	ctx := context.Background()
	var (
		mu       sync.Mutex
		observed []models.Status
	)
	notified := make(chan struct{}, 1)

	// Ожидания
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(nil, models.ErrNotFound).Times(1)
	f.backend.EXPECT().GetEmergency(gomock.Any(), "E1").Return(map[string]any{"id": "E1", "userId": "u1"}, nil).Times(1)
	f.polls("E1", nil, errUnavailable)
	f.notifier.EXPECT().
		Notify(gomock.Any(), "u1", gomock.Any()).
		DoAndReturn(func(context.Context, string, models.Snapshot) error {
			select {
			case notified <- struct{}{}:
			default:
			}
			return errUnavailable
		}).
		MinTimes(1)

	require.NoError(t, f.svc.Login(ctx, residentSession()))
	unsubscribe, err := f.svc.Subscribe(func(snap models.Snapshot) {
		mu.Lock()
		observed = append(observed, snap.Status)
		mu.Unlock()
	})
	require.NoError(t, err)

	// Действие
	_, err = f.svc.Track(ctx, "E1")
	require.NoError(t, err)
	f.push(t, tracking.EventEmergencyAccepted, `{"emergencyId":"E1"}`)
	unsubscribe()
	f.push(t, tracking.EventEmergencyArrived, `{"emergencyId":"E1"}`)

	// Проверки
	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was not passed to notifier")
	}
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, observed)
	assert.Equal(t, models.StatusAccepted, observed[len(observed)-1])
}

func TestSubscribe_SlowNotifierDoesNotBlockEngine(t *testing.T) {
	// Подготовка
	f := newTrackerFixture(t, true)
	record := map[string]any{"id": "E1", "userId": "u1", "status": "PENDING"}
	release := make(chan struct{})
	releaseAll := sync.OnceFunc(func() { close(release) })
	t.Cleanup(releaseAll)
	started := make(chan struct{}, 1)
	var (
		mu        sync.Mutex
		delivered []uint64
	)

	// Ожидания
	f.backend.EXPECT().GetLatest(gomock.Any()).Return(record, nil).Times(1)
	f.polls("E1", nil, errUnavailable)
	f.notifier.EXPECT().
		Notify(gomock.Any(), "u1", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, snap models.Snapshot) error {
			select {
			case started <- struct{}{}:
			default:
			}
			select {
			case <-release:
			case <-ctx.Done():
			}
			mu.Lock()
			delivered = append(delivered, snap.Version)
			mu.Unlock()
			return nil
		}).
		AnyTimes()

	require.NoError(t, f.svc.Login(context.Background(), residentSession()))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called")
	}

	// Действие
	begin := time.Now()
	f.push(t, tracking.EventEmergencyAccepted, `{"emergencyId":"E1","responderId":"r1"}`)
	f.push(t, tracking.EventEmergencyArrived, `{"emergencyId":"E1"}`)
	snap, err := f.svc.Snapshot()
	elapsed := time.Since(begin)

	// Проверки
	require.NoError(t, err)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.Equal(t, models.StatusArrived, snap.Status)

	releaseAll()
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) > 0 && delivered[len(delivered)-1] == snap.Version
	}, 3*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	f := newTrackerFixture(t, false)

	f.backend.EXPECT().Health(gomock.Any()).Return(nil).Times(1)
	f.backend.EXPECT().Health(gomock.Any()).Return(errUnavailable).Times(1)

	assert.NoError(t, f.svc.Health(context.Background()))
	assert.True(t, errors.Is(f.svc.Health(context.Background()), errUnavailable))
}

func TestPositionStore(t *testing.T) {
	store := NewPositionStore()

	_, err := store.Sample(context.Background())
	assert.True(t, errors.Is(err, ErrNoPosition))

	store.Set(models.Location{Lat: 1, Lng: 2})
	loc, err := store.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Location{Lat: 1, Lng: 2}, loc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Sample(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

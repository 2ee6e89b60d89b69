package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shenikar/emergency_tracker/internal/channel"
	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/shenikar/emergency_tracker/internal/tracking"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах
	return logger
}

type pushed struct {
	name    string
	payload []byte
}

func TestWebSocketStream_SubscribeAndEmit(t *testing.T) {
	// Подготовка
	authHeaders := make(chan string, 1)
	subscribed := make(chan Frame, 1)
	emitted := make(chan Frame, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaders <- r.Header.Get("Authorization")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()

		var sub Frame
		if err := wsjson.Read(ctx, conn, &sub); err != nil {
			return
		}
		subscribed <- sub

		_ = wsjson.Write(ctx, conn, Frame{Event: "chat:message", Data: json.RawMessage(`{}`)})
		_ = wsjson.Write(ctx, conn, Frame{Event: "emergency:accepted", Data: json.RawMessage(`{"emergencyId":"E1"}`)})

		var frame Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return
		}
		emitted <- frame

		// ждем закрытия со стороны клиента
		_, _, _ = conn.Read(ctx)
	}))
	defer server.Close()

	stream := NewWebSocketStream("ws"+strings.TrimPrefix(server.URL, "http"), newTestLogger())
	stream.SetToken("secret-token")
	received := make(chan pushed, 4)

	// Действие
	sub, err := stream.Subscribe(context.Background(), []string{"emergency:accepted"}, func(name string, payload []byte) {
		received <- pushed{name: name, payload: payload}
	})
	require.NoError(t, err)

	// Проверки
	assert.Equal(t, "Bearer secret-token", <-authHeaders)

	subFrame := <-subscribed
	assert.Equal(t, subscribeEvent, subFrame.Event)
	assert.JSONEq(t, `{"events":["emergency:accepted"]}`, string(subFrame.Data))

	select {
	case msg := <-received:
		assert.Equal(t, "emergency:accepted", msg.name)
		assert.JSONEq(t, `{"emergencyId":"E1"}`, string(msg.payload))
	case <-time.After(2 * time.Second):
		t.Fatal("push event was not delivered")
	}

	report := models.LocationReport{EmergencyID: "E1", Location: models.Location{Lat: 1, Lng: 2}}
	require.NoError(t, stream.Emit(context.Background(), "responder:location", report))
	select {
	case frame := <-emitted:
		assert.Equal(t, "responder:location", frame.Event)
		assert.JSONEq(t, `{"emergencyId":"E1","location":{"lat":1,"lng":2}}`, string(frame.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("emitted frame was not received")
	}

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.ErrorIs(t, stream.Emit(context.Background(), "responder:location", report), ErrNotConnected)
	assert.Empty(t, received)
}

// recordingSink запоминает события, пришедшие от push-адаптера
type recordingSink struct {
	mu     sync.Mutex
	events []models.NormalizedEvent
}

func (s *recordingSink) Ingest(ev models.NormalizedEvent) tracking.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return tracking.Outcome{Verdict: tracking.VerdictMine}
}

func (s *recordingSink) IngestHistory(string, []models.NormalizedEvent, time.Time) bool {
	return false
}

func (s *recordingSink) received() []models.NormalizedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.NormalizedEvent(nil), s.events...)
}

// dropFirstServer обрывает первое соединение сразу после кадра подписки,
// а последующим отправляет emergency:accepted
func dropFirstServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var connections atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := connections.Add(1)
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()

		var sub Frame
		if err := wsjson.Read(ctx, conn, &sub); err != nil {
			conn.CloseNow()
			return
		}
		if n == 1 {
			conn.CloseNow()
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		_ = wsjson.Write(ctx, conn, Frame{Event: "emergency:accepted", Data: json.RawMessage(`{"emergencyId":"E1"}`)})
		_, _, _ = conn.Read(ctx)
	}))
	t.Cleanup(server.Close)
	return server, &connections
}

func TestWebSocketStream_DroppedConnectionEndsSubscription(t *testing.T) {
	// Подготовка
	server, _ := dropFirstServer(t)
	stream := NewWebSocketStream("ws"+strings.TrimPrefix(server.URL, "http"), newTestLogger())

	// Действие
	sub, err := stream.Subscribe(context.Background(), []string{"emergency:accepted"}, func(string, []byte) {})
	require.NoError(t, err)

	// Проверки
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not report dropped connection")
	}
	assert.ErrorIs(t, stream.Emit(context.Background(), "responder:location", map[string]any{}), ErrNotConnected)
	require.NoError(t, sub.Close())
}

func TestPushSubscription_ReconnectsAfterTransportDrop(t *testing.T) {
	// Подготовка
	server, connections := dropFirstServer(t)
	stream := NewWebSocketStream("ws"+strings.TrimPrefix(server.URL, "http"), newTestLogger())
	sink := &recordingSink{}
	push := channel.NewPushSubscription(stream, tracking.NewNormalizer(nil), sink, newTestLogger(), 10*time.Millisecond, 50*time.Millisecond)

	// Действие
	require.NoError(t, push.Start(context.Background()))
	defer push.Stop()

	// Проверки
	require.Eventually(t, func() bool {
		return len(sink.received()) == 1
	}, 3*time.Second, 10*time.Millisecond, "no event after transport drop")
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
	assert.True(t, push.Active())

	ev := sink.received()[0]
	assert.Equal(t, models.EventAccepted, ev.Kind)
	assert.Equal(t, "E1", ev.EmergencyID)
}

func TestWebSocketStream_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	stream := NewWebSocketStream("ws"+strings.TrimPrefix(server.URL, "http"), newTestLogger())

	_, err := stream.Subscribe(context.Background(), []string{"emergency:accepted"}, func(string, []byte) {})

	require.Error(t, err)
	assert.ErrorIs(t, stream.Emit(context.Background(), "x", nil), ErrNotConnected)
}

func TestTopicCodec(t *testing.T) {
	codec := topicCodec{prefix: "tracker/"}

	assert.Equal(t, "tracker/emergency:arrived", codec.topic("emergency:arrived"))
	assert.Equal(t, []string{"tracker/a", "tracker/b"}, codec.topics([]string{"a", "b"}))

	name, ok := codec.event("tracker/emergency:arrived")
	assert.True(t, ok)
	assert.Equal(t, "emergency:arrived", name)

	_, ok = codec.event("other/emergency:arrived")
	assert.False(t, ok)
}

func TestNewFrame(t *testing.T) {
	frame, err := NewFrame("sos:triggered", map[string]any{"id": "E1"})
	require.NoError(t, err)
	assert.Equal(t, "sos:triggered", frame.Event)
	assert.JSONEq(t, `{"id":"E1"}`, string(frame.Data))

	_, err = NewFrame("bad", make(chan int))
	assert.Error(t, err)
}

package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/shenikar/emergency_tracker/internal/channel"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// subscribeEvent - служебный кадр со списком событий подписки
const subscribeEvent = "subscribe"

// WebSocketStream - realtime-канал поверх одного websocket-соединения.
// Кадры имеют вид {"event": ..., "data": ...}.
type WebSocketStream struct {
	url    string
	logger *logrus.Logger

	mu    sync.Mutex
	token string
	conn  *websocket.Conn
}

// NewWebSocketStream создает канал для адреса url (ws:// или wss://)
func NewWebSocketStream(url string, logger *logrus.Logger) *WebSocketStream {
	return &WebSocketStream{url: url, logger: logger}
}

// SetToken задает bearer-токен для следующих подключений
func (s *WebSocketStream) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Subscribe подключается и доставляет события names в handler до закрытия подписки
func (s *WebSocketStream) Subscribe(ctx context.Context, names []string, handler func(name string, payload []byte)) (channel.Subscription, error) {
	s.mu.Lock()
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	s.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("realtime: could not dial %s: %w", s.url, err)
	}

	frame, err := NewFrame(subscribeEvent, map[string]any{"events": names})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, err
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, fmt.Errorf("realtime: could not send subscribe frame: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	readCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readLoop(readCtx, conn, newNameSet(names), handler)
		// мертвое соединение больше не годится для Emit
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
	}()

	return &subscription{done: done, fn: func() error {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		err := conn.Close(websocket.StatusNormalClosure, "")
		cancel()
		<-done
		if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
			s.logger.WithError(err).WithField("transport", "websocket").Debug("Websocket close handshake incomplete")
		}
		return nil
	}}, nil
}

// Emit отправляет событие по активному соединению
func (s *WebSocketStream) Emit(ctx context.Context, name string, payload any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame, err := NewFrame(name, payload)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		return fmt.Errorf("realtime: could not emit %s: %w", name, err)
	}
	return nil
}

func (s *WebSocketStream) readLoop(ctx context.Context, conn *websocket.Conn, names nameSet, handler func(string, []byte)) {
	log := s.logger.WithFields(logrus.Fields{
		"transport": "websocket",
		"url":       s.url,
	})
	for {
		var frame Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return
			}
			log.WithError(err).Warn("Websocket read failed, connection dropped")
			return
		}
		if !names.has(frame.Event) {
			continue
		}
		handler(frame.Event, frame.Data)
	}
}

package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotConnected - нет активного соединения для отправки события
var ErrNotConnected = errors.New("realtime: not connected")

// Frame - конверт события в websocket-канале
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame упаковывает нагрузку в конверт
func NewFrame(event string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("realtime: could not marshal %s payload: %w", event, err)
	}
	return Frame{Event: event, Data: data}, nil
}

// nameSet - множество событий подписки
type nameSet map[string]struct{}

func newNameSet(names []string) nameSet {
	set := make(nameSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// topicCodec переводит имя события в имя канала брокера и обратно
type topicCodec struct {
	prefix string
}

func (c topicCodec) topic(event string) string {
	return c.prefix + event
}

func (c topicCodec) event(topic string) (string, bool) {
	if !strings.HasPrefix(topic, c.prefix) {
		return "", false
	}
	return strings.TrimPrefix(topic, c.prefix), true
}

func (c topicCodec) topics(events []string) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, c.topic(e))
	}
	return out
}

// subscription - подписка транспорта с идемпотентным Close.
// done закрывается, когда транспорт перестал доставлять события.
type subscription struct {
	once sync.Once
	fn   func() error
	err  error
	done <-chan struct{}
}

func (s *subscription) Done() <-chan struct{} {
	return s.done
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.err = s.fn()
	})
	return s.err
}

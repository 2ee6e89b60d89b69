package models

import "time"

// EventType - вид наблюдаемого факта жизненного цикла
type EventType string

const (
	EventCreated           EventType = "CREATED"
	EventAssigned          EventType = "ASSIGNED"
	EventAccepted          EventType = "ACCEPTED"
	EventArrived           EventType = "ARRIVED"
	EventResolved          EventType = "RESOLVED"
	EventResponderLocation EventType = "RESPONDER_LOCATION"
	EventUpdate            EventType = "UPDATE"
	// EventUnknown - событие с нераспознанным именем; статус из него не выводится
	EventUnknown EventType = "UNKNOWN"
)

// IsSingleton - не более одной записи такого типа на вызов
func (t EventType) IsSingleton() bool {
	switch t {
	case EventCreated, EventAccepted, EventArrived, EventResolved:
		return true
	}
	return false
}

// ImpliedStatus возвращает статус, следующий из самого типа события
func (t EventType) ImpliedStatus() Status {
	switch t {
	case EventAssigned:
		return StatusAssigned
	case EventAccepted:
		return StatusAccepted
	case EventArrived:
		return StatusArrived
	case EventResolved:
		return StatusResolved
	}
	return StatusUnknown
}

// Source - канал, по которому пришло событие
type Source string

const (
	SourcePush    Source = "push"
	SourcePoll    Source = "poll"
	SourceHistory Source = "history"
	SourceLocal   Source = "local"
)

// Identity - все поля, по которым полезная нагрузка может указывать владельца.
// Пустая строка означает, что поле отсутствовало.
type Identity struct {
	UserID       string `json:"user_id,omitempty"`
	ResidentID   string `json:"resident_id,omitempty"`
	CreatedBy    string `json:"created_by,omitempty"`
	NestedUserID string `json:"nested_user_id,omitempty"`
	ResolvedFor  string `json:"resolved_for,omitempty"`
}

// Owner возвращает первое присутствующее поле владельца
func (i Identity) Owner() string {
	for _, v := range []string{i.UserID, i.ResidentID, i.CreatedBy, i.NestedUserID, i.ResolvedFor} {
		if v != "" {
			return v
		}
	}
	return ""
}

// NormalizedEvent - каноническая форма входящей нагрузки, не зависящая от источника
type NormalizedEvent struct {
	Source      Source
	Kind        EventType
	Name        string
	EmergencyID string
	Identity    Identity
	ResponderID string
	Location    *Location
	Status      Status
	// OccurredAt пуст, если нагрузка не несла времени события
	OccurredAt time.Time
	ReceivedAt time.Time
	CreatedAt  time.Time
	Payload    map[string]any
}

// EffectiveTime - время события, либо время получения, если первого нет
func (e NormalizedEvent) EffectiveTime() time.Time {
	if !e.OccurredAt.IsZero() {
		return e.OccurredAt
	}
	return e.ReceivedAt
}

// TimelineEntry - один зафиксированный факт в хронологии вызова
type TimelineEntry struct {
	EventType  EventType      `json:"event_type"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	// Estimated - OccurredAt взят из времени получения и может быть уточнен
	Estimated bool   `json:"estimated,omitempty"`
	Origin    Source `json:"origin"`
	// ConfirmedAt заполняется только для записей, синтезированных локальным действием
	ConfirmedAt time.Time `json:"confirmed_at,omitempty"`
}

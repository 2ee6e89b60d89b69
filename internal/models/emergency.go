package models

import (
	"time"
)

// Status - стадия жизненного цикла экстренного вызова
type Status string

const (
	StatusUnknown      Status = ""
	StatusPending      Status = "PENDING"
	StatusAssigned     Status = "ASSIGNED"
	StatusInProgress   Status = "IN_PROGRESS"
	StatusAccepted     Status = "ACCEPTED"
	StatusArrived      Status = "ARRIVED"
	StatusResolved     Status = "RESOLVED"
	StatusFraudFlagged Status = "FRAUD_FLAGGED"
)

// IsTerminal сообщает, прекращается ли отслеживание записи в этом статусе
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusFraudFlagged
}

// Location - координаты в формате {lat, lng}
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EmergencyRecord - авторитетное клиентское представление одного вызова.
// ID может быть пустым до первого авторитетного запроса.
type EmergencyRecord struct {
	ID                      string    `json:"id,omitempty"`
	Status                  Status    `json:"status"`
	OwnerUserID             string    `json:"owner_user_id,omitempty"`
	ResponderID             string    `json:"responder_id,omitempty"`
	ResponderLocation       *Location `json:"responder_location,omitempty"`
	LastResponderLocationAt time.Time `json:"last_responder_location_at,omitempty"`
	CreatedAt               time.Time `json:"created_at,omitempty"`
}

// Action - действие пользователя, подтверждаемое ответом бэкенда
type Action string

const (
	ActionCreate    Action = "create"
	ActionAccept    Action = "accept"
	ActionArrive    Action = "arrive"
	ActionResolve   Action = "resolve"
	ActionMarkFraud Action = "mark-fraud"
)

// TargetStatus возвращает статус, который устанавливает успешное действие
func (a Action) TargetStatus() Status {
	switch a {
	case ActionCreate:
		return StatusPending
	case ActionAccept:
		return StatusAccepted
	case ActionArrive:
		return StatusArrived
	case ActionResolve:
		return StatusResolved
	case ActionMarkFraud:
		return StatusFraudFlagged
	}
	return StatusUnknown
}

// TimelineEvent возвращает тип записи хронологии, синтезируемой для действия
func (a Action) TimelineEvent() EventType {
	switch a {
	case ActionCreate:
		return EventCreated
	case ActionAccept:
		return EventAccepted
	case ActionArrive:
		return EventArrived
	case ActionResolve:
		return EventResolved
	}
	return EventUpdate
}

// LocationReport - позиция ответчика, отправляемая по realtime-каналу и в бэкенд
type LocationReport struct {
	EmergencyID string   `json:"emergencyId"`
	Location    Location `json:"location"`
}

// SOSRequest - тело запроса на создание вызова
type SOSRequest struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Location    Location `json:"location"`
}

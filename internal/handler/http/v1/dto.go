package v1

import (
	"time"
)

// LoginRequest DTO для открытия сессии
// @Description DTO для открытия сессии
type LoginRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Token  string `json:"token" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=resident responder"`
}

// SessionResponse DTO для ответа с информацией о сессии
// @Description DTO для ответа с информацией о сессии
type SessionResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// TrackRequest DTO для выбора отслеживаемого вызова; пустой id - поиск вызова пользователя
// @Description DTO для выбора отслеживаемого вызова
type TrackRequest struct {
	EmergencyID string `json:"emergency_id,omitempty" validate:"omitempty,max=128"`
}

// SOSRequest DTO для создания вызова
// @Description DTO для создания вызова
type SOSRequest struct {
	Latitude    *float64 `json:"latitude" validate:"required,latitude"`
	Longitude   *float64 `json:"longitude" validate:"required,longitude"`
	Type        string   `json:"type,omitempty" validate:"omitempty,max=64"`
	Description string   `json:"description,omitempty" validate:"omitempty,max=1024"`
}

// PositionRequest DTO для передачи позиции устройства
// @Description DTO для передачи позиции устройства
type PositionRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

// LocationResponse DTO координат
// @Description DTO координат
type LocationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TimelineEntryResponse DTO записи хронологии
// @Description DTO записи хронологии
type TimelineEntryResponse struct {
	EventType  string         `json:"event_type"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Estimated  bool           `json:"estimated,omitempty"`
	Origin     string         `json:"origin"`
}

// SnapshotResponse DTO для ответа со снимком отслеживаемого вызова
// @Description DTO для ответа со снимком отслеживаемого вызова
type SnapshotResponse struct {
	EmergencyID             string                  `json:"emergency_id,omitempty"`
	Status                  string                  `json:"status"`
	ResponderID             string                  `json:"responder_id,omitempty"`
	ResponderLocation       *LocationResponse       `json:"responder_location,omitempty"`
	LastResponderLocationAt *time.Time              `json:"last_responder_location_at,omitempty"`
	Timeline                []TimelineEntryResponse `json:"timeline"`
	Terminal                bool                    `json:"terminal"`
	Version                 uint64                  `json:"version"`
}

// HealthResponse DTO для ответа о состоянии
// @Description DTO для ответа о состоянии
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

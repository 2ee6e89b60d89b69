package models

import "time"

// Role - роль пользователя в сессии
type Role string

const (
	RoleResident  Role = "resident"
	RoleResponder Role = "responder"
)

// Session - процессная сессия: пользователь, токен и роль.
// Создается при входе и очищается при выходе.
type Session struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
	Role   Role   `json:"role"`
}

// Snapshot - неизменяемый снимок для слоя представления
type Snapshot struct {
	EmergencyID             string          `json:"emergency_id,omitempty"`
	Status                  Status          `json:"status"`
	ResponderID             string          `json:"responder_id,omitempty"`
	ResponderLocation       *Location       `json:"responder_location,omitempty"`
	LastResponderLocationAt time.Time       `json:"last_responder_location_at,omitempty"`
	Timeline                []TimelineEntry `json:"timeline"`
	Terminal                bool            `json:"terminal"`
	Version                 uint64          `json:"version"`
}

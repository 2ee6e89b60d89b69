package v1

import "github.com/shenikar/emergency_tracker/internal/models"

// DTOToSession преобразует запрос входа в доменную сессию
func DTOToSession(dto LoginRequest) models.Session {
	return models.Session{
		UserID: dto.UserID,
		Token:  dto.Token,
		Role:   models.Role(dto.Role),
	}
}

// DTOToSOSRequest преобразует DTO создания вызова в запрос бэкенду.
// Координаты уже проверены валидатором.
func DTOToSOSRequest(dto SOSRequest) models.SOSRequest {
	return models.SOSRequest{
		Type:        dto.Type,
		Description: dto.Description,
		Location:    models.Location{Lat: *dto.Latitude, Lng: *dto.Longitude},
	}
}

// DTOToLocation преобразует позицию устройства в доменные координаты
func DTOToLocation(dto PositionRequest) models.Location {
	return models.Location{Lat: *dto.Latitude, Lng: *dto.Longitude}
}

// ModelToSessionResponse преобразует сессию в DTO для ответа; токен не возвращается
func ModelToSessionResponse(session models.Session) SessionResponse {
	return SessionResponse{UserID: session.UserID, Role: string(session.Role)}
}

// ModelToSnapshotResponse преобразует снимок в DTO для ответа
func ModelToSnapshotResponse(snap models.Snapshot) SnapshotResponse {
	resp := SnapshotResponse{
		EmergencyID: snap.EmergencyID,
		Status:      string(snap.Status),
		ResponderID: snap.ResponderID,
		Timeline:    make([]TimelineEntryResponse, len(snap.Timeline)),
		Terminal:    snap.Terminal,
		Version:     snap.Version,
	}
	if snap.ResponderLocation != nil {
		resp.ResponderLocation = &LocationResponse{
			Latitude:  snap.ResponderLocation.Lat,
			Longitude: snap.ResponderLocation.Lng,
		}
	}
	if !snap.LastResponderLocationAt.IsZero() {
		at := snap.LastResponderLocationAt
		resp.LastResponderLocationAt = &at
	}
	for i, entry := range snap.Timeline {
		resp.Timeline[i] = TimelineEntryResponse{
			EventType:  string(entry.EventType),
			Payload:    entry.Payload,
			OccurredAt: entry.OccurredAt,
			Estimated:  entry.Estimated,
			Origin:     string(entry.Origin),
		}
	}
	return resp
}

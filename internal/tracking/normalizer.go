package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shenikar/emergency_tracker/internal/models"
)

// ErrNotObject - нагрузка не является JSON-объектом
var ErrNotObject = errors.New("payload is not a JSON object")

// Имена событий realtime-канала
const (
	EventSOSTriggered      = "sos:triggered"
	EventEmergencyCreated  = "emergency:created"
	EventEmergencyAssigned = "emergency:assigned"
	EventEmergencyAccepted = "emergency:accepted"
	EventEmergencyUpdated  = "emergency:updated"
	EventEmergencyArrived  = "emergency:arrived"
	EventEmergencyResolved = "emergency:resolved"
	EventResponderLocation = "emergency:responderLocation"
	EventLocationEmit      = "responder:location"
)

// PushEvents - фиксированный набор событий, на которые подписывается push-адаптер
var PushEvents = []string{
	EventSOSTriggered,
	EventEmergencyCreated,
	EventEmergencyAssigned,
	EventEmergencyAccepted,
	EventEmergencyUpdated,
	EventEmergencyArrived,
	EventEmergencyResolved,
	EventResponderLocation,
}

var pushKinds = map[string]models.EventType{
	EventSOSTriggered:      models.EventCreated,
	EventEmergencyCreated:  models.EventCreated,
	EventEmergencyAssigned: models.EventAssigned,
	EventEmergencyAccepted: models.EventAccepted,
	EventEmergencyUpdated:  models.EventUpdate,
	EventEmergencyArrived:  models.EventArrived,
	EventEmergencyResolved: models.EventResolved,
	EventResponderLocation: models.EventResponderLocation,
}

// события, нагрузка которых является самой записью вызова (поле id - его идентификатор)
var recordShaped = map[string]bool{
	EventSOSTriggered:      true,
	EventEmergencyCreated:  true,
	EventEmergencyAssigned: true,
	EventEmergencyUpdated:  true,
}

var knownKinds = map[models.EventType]bool{
	models.EventCreated:           true,
	models.EventAssigned:          true,
	models.EventAccepted:          true,
	models.EventArrived:           true,
	models.EventResolved:          true,
	models.EventResponderLocation: true,
	models.EventUpdate:            true,
}

var knownStatuses = map[models.Status]bool{
	models.StatusPending:      true,
	models.StatusAssigned:     true,
	models.StatusInProgress:   true,
	models.StatusAccepted:     true,
	models.StatusArrived:      true,
	models.StatusResolved:     true,
	models.StatusFraudFlagged: true,
}

// Таблица синонимов полей
var (
	emergencyIDKeys = []string{"emergencyId", "emergency_id"}
	userIDKeys      = []string{"userId", "user_id"}
	residentIDKeys  = []string{"residentId", "resident_id"}
	createdByKeys   = []string{"createdBy", "created_by"}
	resolvedForKeys = []string{"resolvedFor", "resolved_for"}
	responderIDKeys = []string{"responderId", "responder_id"}
	latKeys         = []string{"lat", "latitude"}
	lngKeys         = []string{"lng", "longitude", "lon"}
	occurredAtKeys  = []string{"occurredAt", "occurred_at", "ts", "timestamp"}
	createdAtKeys   = []string{"createdAt", "created_at"}
	locationAtKeys  = []string{"lastResponderLocationAt", "responderLocationUpdatedAt", "updatedAt", "updated_at"}
	eventTypeKeys   = []string{"eventType", "event_type"}
)

var kindTimeKeys = map[models.EventType][]string{
	models.EventCreated:  createdAtKeys,
	models.EventAccepted: {"acceptedAt", "accepted_at"},
	models.EventArrived:  {"arrivedAt", "arrived_at"},
	models.EventResolved: {"resolvedAt", "resolved_at"},
}

// Normalizer приводит разнородные нагрузки к models.NormalizedEvent
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer создает нормализатор; now задает время получения событий
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// DecodeObject разбирает JSON-объект
func DecodeObject(raw []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if out == nil {
		return nil, ErrNotObject
	}
	return out, nil
}

// Push нормализует событие realtime-канала
func (n *Normalizer) Push(name string, payload map[string]any) models.NormalizedEvent {
	kind, ok := pushKinds[name]
	if !ok {
		kind = models.EventUnknown
	}
	// явный eventType в нагрузке важнее имени события
	if explicit := models.EventType(strings.ToUpper(stringField(payload, eventTypeKeys...))); knownKinds[explicit] {
		kind = explicit
	} else if kind == models.EventResponderLocation && hasAny(payload, "arrivedAt", "arrived_at") {
		kind = models.EventArrived
	}

	ev := n.base(models.SourcePush, kind, payload)
	ev.Name = name
	ev.EmergencyID = stringField(payload, emergencyIDKeys...)
	if ev.EmergencyID == "" && recordShaped[name] {
		ev.EmergencyID = stringField(payload, "id")
	}
	if name == EventResponderLocation || kind == models.EventResponderLocation {
		ev.Location = parseLocation(payload["location"])
	}
	if ev.Location == nil {
		ev.Location = responderLocation(payload)
	}
	return ev
}

// Record нормализует авторитетную запись вызова (ответ опроса или ответ на запись)
func (n *Normalizer) Record(source models.Source, payload map[string]any) models.NormalizedEvent {
	ev := n.base(source, models.EventUpdate, payload)
	ev.EmergencyID = stringField(payload, "id")
	if ev.EmergencyID == "" {
		ev.EmergencyID = stringField(payload, emergencyIDKeys...)
	}
	ev.Location = responderLocation(payload)
	ev.OccurredAt = timeField(payload, locationAtKeys...)
	return ev
}

// History нормализует авторитетную историю [{event_type, payload, created_at}]
func (n *Normalizer) History(items []map[string]any) []models.NormalizedEvent {
	out := make([]models.NormalizedEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		kind := models.EventType(strings.ToUpper(stringField(item, eventTypeKeys...)))
		if kind == "" {
			kind = models.EventUpdate
		}
		payload, _ := item["payload"].(map[string]any)
		if payload == nil {
			payload = map[string]any{}
			if v, ok := item["payload"]; ok && v != nil {
				payload["value"] = v
			}
		}
		ev := n.base(models.SourceHistory, kind, payload)
		if at := timeField(item, createdAtKeys...); !at.IsZero() {
			ev.OccurredAt = at
		}
		ev.EmergencyID = stringField(item, emergencyIDKeys...)
		if ev.EmergencyID == "" {
			ev.EmergencyID = stringField(payload, emergencyIDKeys...)
		}
		if kind == models.EventResponderLocation {
			ev.Location = parseLocation(payload["location"])
			if ev.Location == nil {
				ev.Location = parseLocation(payload)
			}
		}
		out = append(out, ev)
	}
	return out
}

func (n *Normalizer) base(source models.Source, kind models.EventType, payload map[string]any) models.NormalizedEvent {
	ev := models.NormalizedEvent{
		Source:      source,
		Kind:        kind,
		Identity:    identity(payload),
		ResponderID: stringField(payload, responderIDKeys...),
		Status:      ParseStatus(stringField(payload, "status")),
		ReceivedAt:  n.now(),
		CreatedAt:   timeField(payload, createdAtKeys...),
		Payload:     payload,
	}
	if ev.ResponderID == "" {
		if responder, ok := payload["responder"].(map[string]any); ok {
			ev.ResponderID = stringField(responder, "id")
		}
	}
	keys := append(append([]string{}, kindTimeKeys[kind]...), occurredAtKeys...)
	ev.OccurredAt = timeField(payload, keys...)
	return ev
}

// ParseStatus разбирает статус; нераспознанное значение дает StatusUnknown
func ParseStatus(raw string) models.Status {
	s := models.Status(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), " ", "_"))
	if knownStatuses[s] {
		return s
	}
	return models.StatusUnknown
}

func identity(payload map[string]any) models.Identity {
	id := models.Identity{
		UserID:      stringField(payload, userIDKeys...),
		ResidentID:  stringField(payload, residentIDKeys...),
		CreatedBy:   stringField(payload, createdByKeys...),
		ResolvedFor: stringField(payload, resolvedForKeys...),
	}
	if user, ok := payload["user"].(map[string]any); ok {
		id.NestedUserID = stringField(user, "id")
	}
	return id
}

// responderLocation ищет responderLocation либо User_*_responderLocation
func responderLocation(payload map[string]any) *models.Location {
	if loc := parseLocation(payload["responderLocation"]); loc != nil {
		return loc
	}
	keys := make([]string, 0)
	for k := range payload {
		if strings.HasPrefix(k, "User_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasSuffix(k, "_responderLocation") {
			if loc := parseLocation(payload[k]); loc != nil {
				return loc
			}
		}
		if nested, ok := payload[k].(map[string]any); ok {
			if loc := parseLocation(nested["responderLocation"]); loc != nil {
				return loc
			}
		}
	}
	return nil
}

func parseLocation(v any) *models.Location {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if coords, ok := m["coords"].(map[string]any); ok {
		m = coords
	}
	lat, okLat := numberField(m, latKeys...)
	lng, okLng := numberField(m, lngKeys...)
	if !okLat || !okLng {
		return nil
	}
	return &models.Location{Lat: lat, Lng: lng}
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return true
		}
	}
	return false
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func numberField(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// timeField принимает RFC3339 или unix-время (секунды или миллисекунды)
func timeField(m map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v)); err == nil {
				return t.UTC()
			}
		case float64:
			if v <= 0 {
				continue
			}
			if v > 1e12 {
				return time.UnixMilli(int64(v)).UTC()
			}
			return time.Unix(int64(v), 0).UTC()
		}
	}
	return time.Time{}
}

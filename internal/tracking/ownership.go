package tracking

import "github.com/shenikar/emergency_tracker/internal/models"

// Verdict - результат проверки принадлежности события
type Verdict int

const (
	// VerdictUnknown - решение требует авторитетного запроса записи по id
	VerdictUnknown Verdict = iota
	VerdictMine
	VerdictNotMine
)

func (v Verdict) String() string {
	switch v {
	case VerdictMine:
		return "mine"
	case VerdictNotMine:
		return "not_mine"
	}
	return "unknown"
}

// OwnershipResolver решает, относится ли событие к вызову текущей сессии
type OwnershipResolver struct {
	userID string
	role   models.Role
}

// NewOwnershipResolver создает резолвер для пользователя сессии
func NewOwnershipResolver(userID string, role models.Role) *OwnershipResolver {
	return &OwnershipResolver{userID: userID, role: role}
}

// Resolve проверяет идентифицирующие поля по порядку, затем совпадение id отслеживаемой записи
func (r *OwnershipResolver) Resolve(ev models.NormalizedEvent, trackedID string) Verdict {
	present := 0
	for _, candidate := range r.identifying(ev) {
		if candidate == "" {
			continue
		}
		present++
		if candidate == r.userID {
			return VerdictMine
		}
	}
	if present > 0 {
		return VerdictNotMine
	}
	if ev.EmergencyID != "" && trackedID != "" && ev.EmergencyID == trackedID {
		// принадлежность записи уже установлена авторитетно
		return VerdictMine
	}
	return VerdictUnknown
}

// identifying возвращает поля, по которым роль сессии узнает свой вызов
func (r *OwnershipResolver) identifying(ev models.NormalizedEvent) []string {
	if r.role == models.RoleResponder {
		return []string{ev.ResponderID}
	}
	id := ev.Identity
	return []string{id.UserID, id.ResidentID, id.CreatedBy, id.NestedUserID, id.ResolvedFor}
}

// OwnerOf возвращает владельца авторитетной записи с точки зрения роли
func (r *OwnershipResolver) OwnerOf(record models.NormalizedEvent) string {
	if r.role == models.RoleResponder {
		return record.ResponderID
	}
	return record.Identity.Owner()
}

// WithResolvedOwner дописывает в событие владельца, полученного из авторитетной записи
func (r *OwnershipResolver) WithResolvedOwner(ev models.NormalizedEvent, owner string) models.NormalizedEvent {
	if r.role == models.RoleResponder {
		ev.ResponderID = owner
		return ev
	}
	ev.Identity.UserID = owner
	return ev
}

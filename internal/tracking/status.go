package tracking

import "github.com/shenikar/emergency_tracker/internal/models"

var ranks = map[models.Status]int{
	models.StatusPending:      0,
	models.StatusAssigned:     1,
	models.StatusInProgress:   1,
	models.StatusAccepted:     2,
	models.StatusArrived:      3,
	models.StatusResolved:     4,
	models.StatusFraudFlagged: 4,
}

// Rank возвращает ранг статуса, -1 для неизвестного
func Rank(s models.Status) int {
	if r, ok := ranks[s]; ok {
		return r
	}
	return -1
}

// Decision - итог попытки применить статус
type Decision struct {
	Applied bool
	// Changed - статус действительно сменился (а не применен повторно)
	Changed  bool
	Previous models.Status
	Reason   string
}

// StatusMachine хранит канонический статус и пропускает только монотонные переходы.
// Не потокобезопасна: вызывается только под блокировкой Engine.
type StatusMachine struct {
	current models.Status
}

// NewStatusMachine создает автомат в начальном статусе PENDING
func NewStatusMachine() *StatusMachine {
	return &StatusMachine{current: models.StatusPending}
}

// Current возвращает текущий статус
func (m *StatusMachine) Current() models.Status {
	return m.current
}

// Apply применяет кандидата, если rank(candidate) >= rank(current).
// Из терминального статуса принимается только тот же статус.
func (m *StatusMachine) Apply(candidate models.Status, source models.Source) Decision {
	d := Decision{Previous: m.current}
	switch {
	case Rank(candidate) < 0:
		d.Reason = "unknown status"
	case m.current.IsTerminal() && candidate != m.current:
		d.Reason = "record is terminal"
	case Rank(candidate) < Rank(m.current):
		d.Reason = "regressive transition from " + string(source)
	default:
		d.Applied = true
		d.Changed = candidate != m.current
		m.current = candidate
	}
	return d
}

// Reset возвращает автомат в PENDING при смене отслеживаемой записи
func (m *StatusMachine) Reset() {
	m.current = models.StatusPending
}

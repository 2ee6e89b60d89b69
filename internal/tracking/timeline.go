package tracking

import (
	"reflect"
	"sort"
	"time"

	"github.com/shenikar/emergency_tracker/internal/models"
)

const (
	defaultLocationCap = 1
	defaultEchoGrace   = 30 * time.Second
	dedupBucket        = time.Second
)

// TimelineMerger ведет упорядоченную (от старых к новым) хронологию вызова,
// объединяя живые события с авторитетной историей.
// Не потокобезопасен: вызывается только под блокировкой Engine.
type TimelineMerger struct {
	entries     []models.TimelineEntry
	locationCap int
	echoGrace   time.Duration
}

// NewTimelineMerger создает мерджер. locationCap - сколько живых RESPONDER_LOCATION
// хранить между авторитетными обновлениями, echoGrace - сколько локально
// подтвержденная запись переживает историю, в которой ее еще нет.
func NewTimelineMerger(locationCap int, echoGrace time.Duration) *TimelineMerger {
	if locationCap < 1 {
		locationCap = defaultLocationCap
	}
	if echoGrace <= 0 {
		echoGrace = defaultEchoGrace
	}
	return &TimelineMerger{locationCap: locationCap, echoGrace: echoGrace}
}

// Entries возвращает копию хронологии
func (m *TimelineMerger) Entries() []models.TimelineEntry {
	out := make([]models.TimelineEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Reset очищает хронологию при смене отслеживаемой записи
func (m *TimelineMerger) Reset() {
	m.entries = nil
}

// Live применяет одно живое событие. Возвращает true, если хронология изменилась.
func (m *TimelineMerger) Live(ev models.NormalizedEvent) bool {
	if ev.Kind == models.EventUnknown || ev.Kind == "" {
		return false
	}
	entry := entryFromEvent(ev)
	if entry.EventType.IsSingleton() {
		if idx := m.indexOf(entry.EventType); idx >= 0 {
			return m.refine(idx, entry)
		}
		m.insert(entry)
		return true
	}
	if m.hasDuplicate(entry) {
		return false
	}
	m.insert(entry)
	if entry.EventType == models.EventResponderLocation {
		m.capLiveLocations()
	}
	return true
}

// Local добавляет запись, синтезированную подтвержденным локальным действием
func (m *TimelineMerger) Local(entry models.TimelineEntry) bool {
	entry.Origin = models.SourceLocal
	if entry.EventType.IsSingleton() {
		if m.indexOf(entry.EventType) >= 0 {
			return false
		}
		m.insert(entry)
		return true
	}
	if m.hasDuplicate(entry) {
		return false
	}
	m.insert(entry)
	return true
}

// Authoritative заменяет хронологию серверной историей, сохраняя локально
// подтвержденные singleton-записи, до которых история еще не догнала.
func (m *TimelineMerger) Authoritative(history []models.NormalizedEvent, fetchedAt time.Time) bool {
	next := make([]models.TimelineEntry, 0, len(history))
	seen := make(map[models.EventType]bool)
	for _, ev := range history {
		entry := entryFromEvent(ev)
		if entry.EventType.IsSingleton() {
			if seen[entry.EventType] {
				continue
			}
			seen[entry.EventType] = true
		}
		next = append(next, entry)
	}
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].OccurredAt.Before(next[j].OccurredAt)
	})

	for _, e := range m.entries {
		if e.Origin != models.SourceLocal || !e.EventType.IsSingleton() || seen[e.EventType] {
			continue
		}
		if fetchedAt.Sub(e.ConfirmedAt) < m.echoGrace {
			next = insertSorted(next, e)
		}
	}

	if reflect.DeepEqual(next, m.entries) {
		return false
	}
	m.entries = next
	return true
}

func (m *TimelineMerger) indexOf(t models.EventType) int {
	for i, e := range m.entries {
		if e.EventType == t {
			return i
		}
	}
	return -1
}

// refine уточняет существующую singleton-запись, не меняя ее позиции
func (m *TimelineMerger) refine(idx int, incoming models.TimelineEntry) bool {
	existing := &m.entries[idx]
	changed := false
	if existing.Estimated && !incoming.Estimated {
		existing.OccurredAt = incoming.OccurredAt
		existing.Estimated = false
		changed = true
	}
	// payload может разделяться с выданными снимками, поэтому копируем перед записью
	cloned := false
	for k, v := range incoming.Payload {
		if _, ok := existing.Payload[k]; ok {
			continue
		}
		if !cloned {
			existing.Payload = clonePayload(existing.Payload)
			cloned = true
		}
		existing.Payload[k] = v
		changed = true
	}
	return changed
}

func (m *TimelineMerger) hasDuplicate(entry models.TimelineEntry) bool {
	bucket := entry.OccurredAt.Truncate(dedupBucket)
	for _, e := range m.entries {
		if e.EventType != entry.EventType || !e.OccurredAt.Truncate(dedupBucket).Equal(bucket) {
			continue
		}
		if entry.EventType == models.EventResponderLocation && !reflect.DeepEqual(e.Payload["location"], entry.Payload["location"]) {
			continue
		}
		return true
	}
	return false
}

func (m *TimelineMerger) insert(entry models.TimelineEntry) {
	m.entries = insertSorted(m.entries, entry)
}

// capLiveLocations удаляет самые старые живые RESPONDER_LOCATION сверх лимита
func (m *TimelineMerger) capLiveLocations() {
	live := 0
	for _, e := range m.entries {
		if e.EventType == models.EventResponderLocation && e.Origin != models.SourceHistory {
			live++
		}
	}
	excess := live - m.locationCap
	if excess <= 0 {
		return
	}
	kept := m.entries[:0:0]
	for _, e := range m.entries {
		if excess > 0 && e.EventType == models.EventResponderLocation && e.Origin != models.SourceHistory {
			excess--
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
}

func insertSorted(entries []models.TimelineEntry, entry models.TimelineEntry) []models.TimelineEntry {
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].OccurredAt.After(entry.OccurredAt)
	})
	entries = append(entries, models.TimelineEntry{})
	copy(entries[idx+1:], entries[idx:])
	entries[idx] = entry
	return entries
}

func entryFromEvent(ev models.NormalizedEvent) models.TimelineEntry {
	entry := models.TimelineEntry{
		EventType:  ev.Kind,
		Payload:    ev.Payload,
		OccurredAt: ev.OccurredAt,
		Origin:     ev.Source,
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = ev.ReceivedAt
		entry.Estimated = true
	}
	if entry.EventType == models.EventResponderLocation && ev.Location != nil {
		entry.Payload = clonePayload(ev.Payload)
		entry.Payload["location"] = map[string]any{"lat": ev.Location.Lat, "lng": ev.Location.Lng}
	}
	return entry
}

func clonePayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

package tracking

import (
	"sync"
	"time"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

// MilestoneDetector отслеживает пересечение порогов прогресса и генерирует
// контрольные события. Каждая пара (порог, тип) срабатывает не более одного
// раза за сеанс: повторное пересечение из-за GPS-шума события не дает.
// Пороги независимы друг от друга — пропущенные измерения не мешают
// срабатыванию старших порогов.
type MilestoneDetector struct {
	mu         sync.Mutex
	journeyID  uint
	thresholds []MilestoneThreshold
	fired      map[models.MilestoneKind]bool
}

// NewMilestoneDetector создает детектор для нового сеанса: все пороги не сработавшие
func NewMilestoneDetector(journeyID uint, thresholds []MilestoneThreshold) *MilestoneDetector {
	return &MilestoneDetector{
		journeyID:  journeyID,
		thresholds: thresholds,
		fired:      make(map[models.MilestoneKind]bool),
	}
}

// Observe проверяет очередной снимок прогресса и возвращает события
// для всех еще не сработавших порогов, которые он пересек
func (d *MilestoneDetector) Observe(snapshot models.ProgressSnapshot, now time.Time) []models.MilestoneEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	var events []models.MilestoneEvent
	for _, t := range d.thresholds {
		if d.fired[t.Kind] || t.Percentage > snapshot.ProgressPercentage {
			continue
		}
		d.fired[t.Kind] = true
		events = append(events, models.MilestoneEvent{
			JourneyID: d.journeyID,
			Kind:      t.Kind,
			FiredAt:   now,
		})
	}
	return events
}

// Fire генерирует контрольное событие вручную (диспетчер отметил "груз забран").
// Ручной и автоматический пути разделяют один контракт: событие типа,
// который уже срабатывал, повторно не генерируется.
func (d *MilestoneDetector) Fire(kind models.MilestoneKind, now time.Time) (models.MilestoneEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fired[kind] {
		return models.MilestoneEvent{}, false
	}
	d.fired[kind] = true
	return models.MilestoneEvent{
		JourneyID: d.journeyID,
		Kind:      kind,
		FiredAt:   now,
	}, true
}

// Fired сообщает, срабатывало ли событие данного типа в этом сеансе
func (d *MilestoneDetector) Fired(kind models.MilestoneKind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fired[kind]
}

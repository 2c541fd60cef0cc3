package tracking

import (
	"time"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/geo"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

// IntervalGate ограничивает частоту публикаций числового прогресса:
// не чаще одной публикации за minInterval, независимо от частоты опроса.
type IntervalGate struct {
	minInterval time.Duration
}

// NewIntervalGate создает ограничитель по времени
func NewIntervalGate(minInterval time.Duration) *IntervalGate {
	return &IntervalGate{minInterval: minInterval}
}

// ShouldPropagate возвращает true, если с последней публикации прошло не меньше minInterval.
// Нулевое lastSentAt означает, что публикаций еще не было.
func (g *IntervalGate) ShouldPropagate(lastSentAt, now time.Time) bool {
	if lastSentAt.IsZero() {
		return true
	}
	return now.Sub(lastSentAt) >= g.minInterval
}

// DisplacementGate ограничивает запись точек пройденного пути: новая точка
// полилинии добавляется только при смещении больше минимального.
// Это отдельный ограничитель для отдельного потребителя (полилиния на карте),
// он не связан с временным ограничителем числового прогресса.
type DisplacementGate struct {
	minDisplacementKm float64
}

// NewDisplacementGate создает ограничитель по смещению
func NewDisplacementGate(minDisplacementKm float64) *DisplacementGate {
	return &DisplacementGate{minDisplacementKm: minDisplacementKm}
}

// ShouldRecord возвращает true, если кандидат сместился от последней записанной
// точки не меньше чем на минимальный порог. Первый фикс записывается всегда.
func (g *DisplacementGate) ShouldRecord(lastRecorded *models.PositionFix, candidate models.PositionFix) bool {
	if lastRecorded == nil {
		return true
	}
	return geo.HaversineKm(lastRecorded.Location(), candidate.Location()) >= g.minDisplacementKm
}

package tracking

import (
	"testing"
	"time"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

func TestIntervalGate(t *testing.T) {
	gate := NewIntervalGate(5 * time.Second)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		lastSentAt time.Time
		now        time.Time
		want       bool
	}{
		{"первая публикация", time.Time{}, base, true},
		{"внутри интервала", base, base.Add(2 * time.Second), false},
		{"ровно на границе", base, base.Add(5 * time.Second), true},
		{"после интервала", base, base.Add(7 * time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.ShouldPropagate(tt.lastSentAt, tt.now); got != tt.want {
				t.Errorf("ShouldPropagate = %v, ожидалось %v", got, tt.want)
			}
		})
	}
}

func TestIntervalGateTwoCallsWithinInterval(t *testing.T) {
	gate := NewIntervalGate(5 * time.Second)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// Две проверки внутри одного интервала от последней отправки: обе false
	if gate.ShouldPropagate(base, base.Add(time.Second)) {
		t.Error("публикация через 1с после отправки должна быть отклонена")
	}
	if gate.ShouldPropagate(base, base.Add(4*time.Second)) {
		t.Error("публикация через 4с после отправки должна быть отклонена")
	}
	if !gate.ShouldPropagate(base, base.Add(5*time.Second)) {
		t.Error("публикация после истечения интервала должна пройти")
	}
}

func TestDisplacementGate(t *testing.T) {
	gate := NewDisplacementGate(0.1) // 100 метров

	origin := models.PositionFix{Latitude: 40.7128, Longitude: -74.0060, CapturedAt: time.Now()}

	// Первый фикс записывается всегда
	if !gate.ShouldRecord(nil, origin) {
		t.Error("первый фикс должен записываться")
	}

	// Смещение в несколько метров не проходит порог
	near := origin
	near.Latitude += 0.00001
	if gate.ShouldRecord(&origin, near) {
		t.Error("смещение меньше порога не должно давать точку пути")
	}

	// Смещение около 1.1 км проходит порог
	far := origin
	far.Latitude += 0.01
	if !gate.ShouldRecord(&origin, far) {
		t.Error("смещение больше порога должно давать точку пути")
	}
}

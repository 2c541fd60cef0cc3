package geo

import (
	"math"
	"testing"
	"time"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

var (
	newYork = models.Location{Latitude: 40.7128, Longitude: -74.0060}
	boston  = models.Location{Latitude: 42.3601, Longitude: -71.0589}
)

func fixAt(loc models.Location) models.PositionFix {
	return models.PositionFix{
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		CapturedAt: time.Now(),
	}
}

func TestHaversineKmNewYorkBoston(t *testing.T) {
	got := HaversineKm(newYork, boston)
	if got < 300 || got > 312 {
		t.Errorf("HaversineKm(Нью-Йорк, Бостон) = %v, ожидалось около 306 км", got)
	}
}

func TestHaversineKmZeroDistance(t *testing.T) {
	if got := HaversineKm(newYork, newYork); got != 0 {
		t.Errorf("HaversineKm для совпадающих точек = %v, ожидалось 0", got)
	}
}

func TestBearingDegreesRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to models.Location
	}{
		{"север", models.Location{Latitude: 0, Longitude: 0}, models.Location{Latitude: 1, Longitude: 0}},
		{"восток", models.Location{Latitude: 0, Longitude: 0}, models.Location{Latitude: 0, Longitude: 1}},
		{"юг", models.Location{Latitude: 1, Longitude: 0}, models.Location{Latitude: 0, Longitude: 0}},
		{"запад", models.Location{Latitude: 0, Longitude: 1}, models.Location{Latitude: 0, Longitude: 0}},
	}
	want := []float64{0, 90, 180, 270}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BearingDegrees(tt.from, tt.to)
			if math.Abs(got-want[i]) > 0.5 {
				t.Errorf("BearingDegrees = %v, ожидалось %v", got, want[i])
			}
		})
	}
}

func TestComputeProgressMidpoint(t *testing.T) {
	route := models.JourneyRoute{JourneyID: 1, Origin: newYork, Destination: boston}
	startFix := fixAt(newYork)
	// Середина дуги между Нью-Йорком и Бостоном
	midpoint := models.Location{Latitude: 41.5403, Longitude: -72.5574}

	snapshot := ComputeProgress(route, startFix, fixAt(midpoint), 60)

	if math.Abs(snapshot.ProgressPercentage-50) > 2 {
		t.Errorf("ProgressPercentage = %v, ожидалось около 50", snapshot.ProgressPercentage)
	}
	if math.Abs(snapshot.RemainingDistanceKm-153) > 5 {
		t.Errorf("RemainingDistanceKm = %v, ожидалось около 153", snapshot.RemainingDistanceKm)
	}
}

func TestComputeProgressOriginEqualsDestination(t *testing.T) {
	route := models.JourneyRoute{JourneyID: 1, Origin: newYork, Destination: newYork}
	snapshot := ComputeProgress(route, fixAt(newYork), fixAt(newYork), 60)

	if snapshot.ProgressPercentage != 100 {
		t.Errorf("ProgressPercentage = %v, ожидалось 100 при совпадении старта и финиша", snapshot.ProgressPercentage)
	}
	if snapshot.EstimatedHoursRemaining != 0 {
		t.Errorf("EstimatedHoursRemaining = %v, ожидалось 0", snapshot.EstimatedHoursRemaining)
	}
}

func TestComputeProgressClamped(t *testing.T) {
	route := models.JourneyRoute{JourneyID: 1, Origin: newYork, Destination: boston}
	startFix := fixAt(newYork)

	// Перелет за пункт назначения: GPS-шум может дать больше 100%
	overshoot := models.Location{Latitude: 42.5, Longitude: -70.8}
	snapshot := ComputeProgress(route, startFix, fixAt(overshoot), 60)
	if snapshot.ProgressPercentage < 0 || snapshot.ProgressPercentage > 100 {
		t.Errorf("ProgressPercentage = %v, значение должно быть в [0, 100]", snapshot.ProgressPercentage)
	}

	// Откат назад за точку старта
	behind := models.Location{Latitude: 40.0, Longitude: -74.5}
	snapshot = ComputeProgress(route, startFix, fixAt(behind), 60)
	if snapshot.ProgressPercentage != 0 {
		t.Errorf("ProgressPercentage = %v, ожидалось 0 при откате за старт", snapshot.ProgressPercentage)
	}
	if snapshot.TraveledDistanceKm != 0 {
		t.Errorf("TraveledDistanceKm = %v, пройденное расстояние не может быть отрицательным", snapshot.TraveledDistanceKm)
	}
}

func TestComputeProgressSpeed(t *testing.T) {
	route := models.JourneyRoute{JourneyID: 1, Origin: newYork, Destination: boston}
	startFix := fixAt(newYork)
	midpoint := models.Location{Latitude: 41.5403, Longitude: -72.5574}

	// Без скорости в фиксе используется настроенная средняя скорость
	snapshot := ComputeProgress(route, startFix, fixAt(midpoint), 60)
	wantHours := snapshot.RemainingDistanceKm / 60
	if math.Abs(snapshot.EstimatedHoursRemaining-wantHours) > 0.01 {
		t.Errorf("EstimatedHoursRemaining = %v, ожидалось %v", snapshot.EstimatedHoursRemaining, wantHours)
	}

	// Скорость из фикса имеет приоритет: 25 м/с = 90 км/ч
	speed := 25.0
	fix := fixAt(midpoint)
	fix.SpeedMetersPerSecond = &speed
	snapshot = ComputeProgress(route, startFix, fix, 60)
	wantHours = snapshot.RemainingDistanceKm / 90
	if math.Abs(snapshot.EstimatedHoursRemaining-wantHours) > 0.01 {
		t.Errorf("EstimatedHoursRemaining = %v, ожидалось %v", snapshot.EstimatedHoursRemaining, wantHours)
	}

	// Нулевая и отрицательная скорость в фиксе игнорируются — деления на ноль нет
	zero := 0.0
	fix.SpeedMetersPerSecond = &zero
	snapshot = ComputeProgress(route, startFix, fix, 60)
	if math.IsInf(snapshot.EstimatedHoursRemaining, 0) || math.IsNaN(snapshot.EstimatedHoursRemaining) {
		t.Errorf("EstimatedHoursRemaining = %v при нулевой скорости", snapshot.EstimatedHoursRemaining)
	}
}

package geo

import (
	"math"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

// EarthRadiusKm радиус Земли в километрах
const EarthRadiusKm = 6371.0

// HaversineKm вычисляет расстояние по дуге большого круга между двумя точками.
// Используем формулу гаверсинуса, как и для приближенных расстояний в оптимизаторе маршрутов.
func HaversineKm(from, to models.Location) float64 {
	φ1 := from.Latitude * math.Pi / 180
	φ2 := to.Latitude * math.Pi / 180
	dφ := (to.Latitude - from.Latitude) * math.Pi / 180
	dλ := (to.Longitude - from.Longitude) * math.Pi / 180

	a := math.Sin(dφ/2)*math.Sin(dφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// BearingDegrees вычисляет начальный азимут от точки from к точке to в градусах [0, 360)
func BearingDegrees(from, to models.Location) float64 {
	φ1 := from.Latitude * math.Pi / 180
	φ2 := to.Latitude * math.Pi / 180
	dλ := (to.Longitude - from.Longitude) * math.Pi / 180

	y := math.Sin(dλ) * math.Cos(φ2)
	x := math.Cos(φ1)*math.Sin(φ2) - math.Sin(φ1)*math.Cos(φ2)*math.Cos(dλ)

	θ := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(θ+360, 360)
}

// clampPercent ограничивает процент прогресса диапазоном [0, 100].
// GPS-шум может давать небольшие откаты и перелеты за пункт назначения,
// поэтому монотонность не предполагается, а значение просто обрезается.
func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ComputeProgress вычисляет прогресс по маршруту из текущего фикса и концов маршрута.
// Чистая функция без ввода-вывода: пройденное и оставшееся расстояние считаются
// независимо как гаверсинусы до текущей точки, поэтому при отклонении от маршрута
// их сумма не обязана совпадать с расстоянием старт-финиш.
// defaultSpeedKmh используется для оценки времени, когда фикс не содержит скорости.
func ComputeProgress(route models.JourneyRoute, startFix, currentFix models.PositionFix, defaultSpeedKmh float64) models.ProgressSnapshot {
	totalDistance := HaversineKm(startFix.Location(), route.Destination)
	remainingDistance := HaversineKm(currentFix.Location(), route.Destination)

	// Старт совпадает с пунктом назначения: рейс считается завершенным сразу
	if totalDistance == 0 {
		return models.ProgressSnapshot{
			TraveledDistanceKm:      0,
			RemainingDistanceKm:     0,
			ProgressPercentage:      100,
			EstimatedHoursRemaining: 0,
			BearingDegrees:          BearingDegrees(currentFix.Location(), route.Destination),
		}
	}

	traveledDistance := math.Max(0, totalDistance-remainingDistance)
	percentage := clampPercent(traveledDistance / totalDistance * 100)

	// Скорость из фикса, если она есть и положительна, иначе настроенная средняя скорость
	effectiveSpeedKmh := defaultSpeedKmh
	if currentFix.SpeedMetersPerSecond != nil && *currentFix.SpeedMetersPerSecond > 0 {
		effectiveSpeedKmh = *currentFix.SpeedMetersPerSecond * 3.6
	}

	estimatedHours := 0.0
	if effectiveSpeedKmh > 0 {
		estimatedHours = remainingDistance / effectiveSpeedKmh
	}

	return models.ProgressSnapshot{
		TraveledDistanceKm:      traveledDistance,
		RemainingDistanceKm:     remainingDistance,
		ProgressPercentage:      percentage,
		EstimatedHoursRemaining: estimatedHours,
		BearingDegrees:          BearingDegrees(currentFix.Location(), route.Destination),
	}
}

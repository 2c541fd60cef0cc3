package tracking

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

// MilestoneThreshold связывает порог прогресса с типом контрольного события
type MilestoneThreshold struct {
	Percentage float64
	Kind       models.MilestoneKind
}

// Config содержит параметры развертывания движка отслеживания.
// Пороги контрольных событий и интервал публикации — параметры развертывания,
// а не часть контракта: в тестах используются короткие значения.
type Config struct {
	ForegroundInterval  time.Duration        // Интервал опроса в активном режиме
	BackgroundInterval  time.Duration        // Интервал опроса в фоновом режиме
	PropagationInterval time.Duration        // Минимальный интервал между публикациями прогресса
	MinDisplacementKm   float64              // Минимальное смещение для точки пройденного пути
	DefaultSpeedKmh     float64              // Средняя скорость для оценки времени без данных о скорости
	ProviderRetries     int                  // Количество попыток получения фикса у провайдера
	ProviderRetryDelay  time.Duration        // Пауза между попытками
	Thresholds          []MilestoneThreshold // Пороги контрольных событий
}

// DefaultThresholds пороги контрольных событий по умолчанию
func DefaultThresholds() []MilestoneThreshold {
	return []MilestoneThreshold{
		{Percentage: 5, Kind: models.MilestoneDeparted},
		{Percentage: 25, Kind: models.MilestonePickedUp},
		{Percentage: 50, Kind: models.MilestoneCheckpoint},
		{Percentage: 75, Kind: models.MilestoneFuelStop},
		{Percentage: 90, Kind: models.MilestoneArriving},
		{Percentage: 100, Kind: models.MilestoneDelivered},
	}
}

// LoadConfig читает конфигурацию движка из переменных окружения
func LoadConfig() Config {
	cfg := Config{
		ForegroundInterval:  10 * time.Second,
		BackgroundInterval:  5 * time.Minute,
		PropagationInterval: 5 * time.Minute,
		MinDisplacementKm:   0.1,
		DefaultSpeedKmh:     60,
		ProviderRetries:     3,
		ProviderRetryDelay:  5 * time.Second,
		Thresholds:          DefaultThresholds(),
	}

	if val, err := strconv.Atoi(os.Getenv("TRACKING_FOREGROUND_INTERVAL_SECONDS")); err == nil && val > 0 {
		cfg.ForegroundInterval = time.Duration(val) * time.Second
	}
	if val, err := strconv.Atoi(os.Getenv("TRACKING_BACKGROUND_INTERVAL_SECONDS")); err == nil && val > 0 {
		cfg.BackgroundInterval = time.Duration(val) * time.Second
	}
	if val, err := strconv.Atoi(os.Getenv("TRACKING_PROPAGATION_INTERVAL_SECONDS")); err == nil && val > 0 {
		cfg.PropagationInterval = time.Duration(val) * time.Second
	}
	if val, err := strconv.ParseFloat(os.Getenv("TRACKING_MIN_DISPLACEMENT_KM"), 64); err == nil && val > 0 {
		cfg.MinDisplacementKm = val
	}
	if val, err := strconv.ParseFloat(os.Getenv("TRACKING_DEFAULT_SPEED_KMH"), 64); err == nil && val > 0 {
		cfg.DefaultSpeedKmh = val
	}

	if raw := os.Getenv("TRACKING_MILESTONE_THRESHOLDS"); raw != "" {
		if parsed := parseThresholds(raw); len(parsed) > 0 {
			cfg.Thresholds = parsed
		}
	}

	return cfg
}

// parseThresholds парсит строку вида "5:departed,50:checkpoint,100:delivered".
// Некорректные пары пропускаются с предупреждением в лог.
func parseThresholds(raw string) []MilestoneThreshold {
	var thresholds []MilestoneThreshold
	for _, part := range strings.Split(raw, ",") {
		pieces := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(pieces) != 2 {
			log.Printf("Некорректный порог контрольного события: %q", part)
			continue
		}
		pct, err := strconv.ParseFloat(pieces[0], 64)
		if err != nil || pct < 0 || pct > 100 || pieces[1] == "" {
			log.Printf("Некорректный порог контрольного события: %q", part)
			continue
		}
		thresholds = append(thresholds, MilestoneThreshold{
			Percentage: pct,
			Kind:       models.MilestoneKind(pieces[1]),
		})
	}
	return thresholds
}

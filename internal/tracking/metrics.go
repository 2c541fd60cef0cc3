package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FixesProcessedTotal - общее количество обработанных фиксов позиции
	FixesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracking_fixes_processed_total",
			Help: "Общее количество обработанных фиксов позиции",
		},
	)

	// PropagationsTotal - общее количество публикаций обновлений по приемникам
	PropagationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_propagations_total",
			Help: "Общее количество публикаций обновлений отслеживания",
		},
		[]string{"sink", "status"},
	)

	// MilestonesFiredTotal - количество сработавших контрольных событий
	MilestonesFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_milestones_fired_total",
			Help: "Количество сработавших контрольных событий рейса",
		},
		[]string{"kind"},
	)

	// ActiveSessions - количество активных сеансов отслеживания
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_active_sessions",
			Help: "Текущее количество активных сеансов отслеживания",
		},
	)
)

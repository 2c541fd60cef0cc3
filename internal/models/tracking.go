package models

import (
	"time"
)

// SessionState представляет состояние сеанса отслеживания рейса
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"      // Рейс не отслеживается
	SessionStateActive    SessionState = "active"    // Идет отслеживание, фиксы поступают
	SessionStateCompleted SessionState = "completed" // Отслеживание завершено
)

// MilestoneKind представляет тип контрольного события рейса.
// Набор расширяемый: диспетчер может завести собственные типы.
type MilestoneKind string

const (
	MilestoneDeparted   MilestoneKind = "departed"   // Выезд
	MilestonePickedUp   MilestoneKind = "pickedUp"   // Груз забран
	MilestoneCheckpoint MilestoneKind = "checkpoint" // Контрольная точка
	MilestoneFuelStop   MilestoneKind = "fuelStop"   // Заправка
	MilestoneArriving   MilestoneKind = "arriving"   // Подъезжает
	MilestoneDelivered  MilestoneKind = "delivered"  // Доставлено
)

// MilestoneEvent представляет однократное контрольное событие рейса
type MilestoneEvent struct {
	JourneyID uint          `json:"journey_id"`
	Kind      MilestoneKind `json:"kind"`
	FiredAt   time.Time     `json:"fired_at"`
}

// JourneyTracking модель для отслеживания текущего состояния рейса.
// Одна запись на рейс, обновляется при каждой пропускаемой ограничителем публикации.
type JourneyTracking struct {
	ID                  uint     `gorm:"primaryKey"`
	JourneyID           uint     `gorm:"uniqueIndex;not null"`
	CurrentLocation     Location `gorm:"embedded;embeddedPrefix:current_"`
	ProgressPercentage  float64
	TraveledDistanceKm  float64
	RemainingDistanceKm float64
	EstimatedHours      float64
	BearingDegrees      float64
	State               SessionState `gorm:"type:varchar(20);default:'active'"`
	UpdatedAt           time.Time
}

// JourneyPathPoint представляет точку пройденного пути (полилиния для карты).
// Записывается только при смещении больше минимального порога.
type JourneyPathPoint struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	JourneyID  uint      `gorm:"index;not null" json:"journey_id"`
	Location   Location  `gorm:"embedded" json:"location"`
	CapturedAt time.Time `json:"captured_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// JourneyMilestone представляет сохраненное контрольное событие рейса
type JourneyMilestone struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	JourneyID uint          `gorm:"index;not null" json:"journey_id"`
	Kind      MilestoneKind `gorm:"type:varchar(32);not null" json:"kind"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	FiredAt   time.Time     `json:"fired_at"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

package models

import (
	"errors"
	"math"
	"time"
)

// Location представляет географическую точку
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid проверяет, что координаты находятся в допустимых пределах
func (l Location) Valid() bool {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// JourneyRoute представляет маршрут рейса: откуда и куда едет водитель.
// Создается при запуске отслеживания и после этого не изменяется.
type JourneyRoute struct {
	JourneyID        uint     `json:"journey_id"`
	Origin           Location `json:"origin"`
	Destination      Location `json:"destination"`
	OriginLabel      string   `json:"origin_label,omitempty"`
	DestinationLabel string   `json:"destination_label,omitempty"`
}

// ErrInvalidRoute возвращается, если маршрут содержит некорректные координаты
var ErrInvalidRoute = errors.New("некорректный маршрут: координаты вне допустимых пределов")

// Validate проверяет маршрут перед запуском отслеживания
func (r JourneyRoute) Validate() error {
	if r.JourneyID == 0 {
		return ErrInvalidRoute
	}
	if !r.Origin.Valid() || !r.Destination.Valid() {
		return ErrInvalidRoute
	}
	return nil
}

// PositionFix представляет одно измерение позиции от провайдера геолокации.
// После создания не изменяется.
type PositionFix struct {
	Latitude             float64   `json:"latitude"`
	Longitude            float64   `json:"longitude"`
	AccuracyMeters       float64   `json:"accuracy_meters"`
	SpeedMetersPerSecond *float64  `json:"speed_mps,omitempty"`
	HeadingDegrees       *float64  `json:"heading_degrees,omitempty"`
	CapturedAt           time.Time `json:"captured_at"`
}

// Location возвращает координаты фикса
func (f PositionFix) Location() Location {
	return Location{Latitude: f.Latitude, Longitude: f.Longitude}
}

// Valid проверяет корректность фикса
func (f PositionFix) Valid() bool {
	if !f.Location().Valid() {
		return false
	}
	if f.CapturedAt.IsZero() {
		return false
	}
	if f.SpeedMetersPerSecond != nil && *f.SpeedMetersPerSecond < 0 {
		return false
	}
	return true
}

// JourneyStatus представляет статус рейса
type JourneyStatus string

const (
	JourneyStatusAssigned  JourneyStatus = "assigned"   // Рейс назначен водителю
	JourneyStatusInTransit JourneyStatus = "in_transit" // Рейс в пути
	JourneyStatusCompleted JourneyStatus = "completed"  // Рейс завершен
)

// Journey модель рейса: заявка брокера, назначенная водителю
type Journey struct {
	ID                 uint          `json:"id" gorm:"primaryKey"`
	BrokerID           uint          `json:"broker_id" gorm:"not null"`
	DriverID           uint          `json:"driver_id" gorm:"not null"`
	OriginAddress      string        `json:"origin_address" gorm:"not null"`
	DestinationAddress string        `json:"destination_address" gorm:"not null"`
	OriginLat          float64       `json:"origin_lat" gorm:"not null"`
	OriginLng          float64       `json:"origin_lng" gorm:"not null"`
	DestinationLat     float64       `json:"destination_lat" gorm:"not null"`
	DestinationLng     float64       `json:"destination_lng" gorm:"not null"`
	Status             JourneyStatus `json:"status" gorm:"type:varchar(20);default:'assigned'"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Route собирает неизменяемый маршрут отслеживания из записи рейса
func (j *Journey) Route() JourneyRoute {
	return JourneyRoute{
		JourneyID:        j.ID,
		Origin:           Location{Latitude: j.OriginLat, Longitude: j.OriginLng},
		Destination:      Location{Latitude: j.DestinationLat, Longitude: j.DestinationLng},
		OriginLabel:      j.OriginAddress,
		DestinationLabel: j.DestinationAddress,
	}
}

// ProgressSnapshot представляет расчетный прогресс по маршруту.
// Производная величина: вычисляется из текущего фикса и концов маршрута, отдельно не хранится.
type ProgressSnapshot struct {
	TraveledDistanceKm      float64 `json:"traveled_distance_km"`
	RemainingDistanceKm     float64 `json:"remaining_distance_km"`
	ProgressPercentage      float64 `json:"progress_percentage"`
	EstimatedHoursRemaining float64 `json:"estimated_hours_remaining"`
	BearingDegrees          float64 `json:"bearing_degrees"`
}

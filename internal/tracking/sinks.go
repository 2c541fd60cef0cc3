package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

// RemoteSink отправляет обновления на удаленный эндпоинт приема:
// панель диспетчера или страницу отслеживания клиента. Формат ответа
// не разбирается — важен только статус. Отправка fire-and-forget,
// идемпотентная на стороне приемника.
type RemoteSink struct {
	name         string
	locationURL  string
	milestoneURL string
	httpClient   *http.Client
}

// NewRemoteSink создает удаленный приемник обновлений
func NewRemoteSink(name, locationURL, milestoneURL string) *RemoteSink {
	return &RemoteSink{
		name:         name,
		locationURL:  locationURL,
		milestoneURL: milestoneURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *RemoteSink) Name() string {
	return s.name
}

// Publish отправляет обновление позиции и, если есть, контрольное событие
func (s *RemoteSink) Publish(ctx context.Context, update Update) error {
	if err := s.post(ctx, s.locationURL, update); err != nil {
		return err
	}
	if update.Milestone != nil && s.milestoneURL != "" {
		if err := s.post(ctx, s.milestoneURL, update.Milestone); err != nil {
			return err
		}
	}
	return nil
}

func (s *RemoteSink) post(ctx context.Context, url string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации обновления: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки обновления: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("приемник вернул ошибку: %v", resp.Status)
	}

	return nil
}

// ObserverSink доставляет обновления внутрипроцессному наблюдателю
// (экран приложения в том же процессе) через обычный вызов функции
type ObserverSink struct {
	name     string
	callback func(Update)
}

// NewObserverSink создает внутрипроцессный приемник
func NewObserverSink(name string, callback func(Update)) *ObserverSink {
	return &ObserverSink{name: name, callback: callback}
}

func (s *ObserverSink) Name() string {
	return s.name
}

func (s *ObserverSink) Publish(ctx context.Context, update Update) error {
	s.callback(update)
	return nil
}

// StoreSink сохраняет обновления в базу данных: текущее состояние рейса
// обновляется на каждую публикацию, контрольные события записываются отдельно
type StoreSink struct {
	db *gorm.DB
}

// NewStoreSink создает приемник, пишущий в базу данных
func NewStoreSink(db *gorm.DB) *StoreSink {
	return &StoreSink{db: db}
}

func (s *StoreSink) Name() string {
	return "store"
}

// Publish обновляет запись отслеживания рейса и сохраняет контрольное событие
func (s *StoreSink) Publish(ctx context.Context, update Update) error {
	state := models.SessionStateActive
	if update.Final {
		state = models.SessionStateCompleted
	}

	tracking := models.JourneyTracking{
		JourneyID:           update.JourneyID,
		CurrentLocation:     update.Fix.Location(),
		ProgressPercentage:  update.Snapshot.ProgressPercentage,
		TraveledDistanceKm:  update.Snapshot.TraveledDistanceKm,
		RemainingDistanceKm: update.Snapshot.RemainingDistanceKm,
		EstimatedHours:      update.Snapshot.EstimatedHoursRemaining,
		BearingDegrees:      update.Snapshot.BearingDegrees,
		State:               state,
		UpdatedAt:           time.Now(),
	}

	// Одна запись на рейс: вставка либо обновление по journey_id
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "journey_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"current_latitude", "current_longitude", "progress_percentage",
			"traveled_distance_km", "remaining_distance_km", "estimated_hours",
			"bearing_degrees", "state", "updated_at",
		}),
	}).Create(&tracking).Error
	if err != nil {
		return fmt.Errorf("ошибка при сохранении состояния отслеживания: %w", err)
	}

	if update.Milestone != nil {
		milestone := models.JourneyMilestone{
			JourneyID: update.JourneyID,
			Kind:      update.Milestone.Kind,
			Latitude:  update.Fix.Latitude,
			Longitude: update.Fix.Longitude,
			FiredAt:   update.Milestone.FiredAt,
		}
		if err := s.db.WithContext(ctx).Create(&milestone).Error; err != nil {
			return fmt.Errorf("ошибка при сохранении контрольного события: %w", err)
		}
	}

	return nil
}

// RecordPathPoint добавляет точку пройденного пути. Вызывается менеджером сеанса
// независимо от временного ограничителя публикаций: у полилинии свой порог по смещению.
func (s *StoreSink) RecordPathPoint(ctx context.Context, journeyID uint, fix models.PositionFix) error {
	point := models.JourneyPathPoint{
		JourneyID:  journeyID,
		Location:   fix.Location(),
		CapturedAt: fix.CapturedAt,
	}
	if err := s.db.WithContext(ctx).Create(&point).Error; err != nil {
		return fmt.Errorf("ошибка при сохранении точки пути: %w", err)
	}
	return nil
}

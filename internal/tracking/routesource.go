package tracking

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

// GormRouteSource восстанавливает маршрут рейса из базы данных.
// Нужен менеджеру при возобновлении после перезапуска: слот хранит только
// идентификатор рейса, концы маршрута лежат в записи рейса.
type GormRouteSource struct {
	db *gorm.DB
}

// NewGormRouteSource создает источник маршрутов поверх базы данных
func NewGormRouteSource(db *gorm.DB) *GormRouteSource {
	return &GormRouteSource{db: db}
}

// RouteForJourney возвращает маршрут рейса по его идентификатору
func (s *GormRouteSource) RouteForJourney(ctx context.Context, journeyID uint) (models.JourneyRoute, error) {
	var journey models.Journey
	if err := s.db.WithContext(ctx).First(&journey, journeyID).Error; err != nil {
		return models.JourneyRoute{}, fmt.Errorf("рейс %d не найден: %w", journeyID, err)
	}
	return journey.Route(), nil
}

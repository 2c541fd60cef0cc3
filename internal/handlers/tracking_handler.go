package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/tracking"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/utils"
)

func journeyIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный идентификатор рейса"})
		return 0, false
	}
	return uint(id), true
}

// TrackingStart запускает отслеживание рейса
func TrackingStart(db *gorm.DB, manager *tracking.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		journeyID, ok := journeyIDParam(c)
		if !ok {
			return
		}

		var journey models.Journey
		if err := db.First(&journey, journeyID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Рейс не найден"})
			return
		}

		view, err := manager.Start(c.Request.Context(), journey.Route())
		if errors.Is(err, models.ErrInvalidRoute) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный маршрут рейса"})
			return
		}
		if errors.Is(err, tracking.ErrPermissionRequired) {
			// Восстановимая ситуация: приложение повторно запросит разрешение
			c.JSON(http.StatusConflict, gin.H{"error": "Требуется разрешение на геолокацию"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось запустить отслеживание"})
			return
		}

		if err := db.Model(&journey).Update("status", models.JourneyStatusInTransit).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при обновлении статуса рейса"})
			return
		}

		c.JSON(http.StatusOK, view)
	}
}

// TrackingStop завершает отслеживание рейса
func TrackingStop(db *gorm.DB, manager *tracking.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		journeyID, ok := journeyIDParam(c)
		if !ok {
			return
		}

		if view, active := manager.Snapshot(); active && view.JourneyID != journeyID {
			c.JSON(http.StatusConflict, gin.H{"error": "Отслеживается другой рейс"})
			return
		}

		if err := manager.Stop(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось завершить отслеживание"})
			return
		}

		if err := db.Model(&models.Journey{}).Where("id = ?", journeyID).
			Update("status", models.JourneyStatusCompleted).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при обновлении статуса рейса"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "completed"})
	}
}

// TrackingFixIngest принимает фикс позиции от приложения водителя
func TrackingFixIngest(manager *tracking.Manager, provider *tracking.IngestProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		journeyID, ok := journeyIDParam(c)
		if !ok {
			return
		}

		view, active := manager.Snapshot()
		if !active || view.JourneyID != journeyID {
			c.JSON(http.StatusConflict, gin.H{"error": "Отслеживание этого рейса не активно"})
			return
		}

		var fix models.PositionFix
		if err := c.ShouldBindJSON(&fix); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !fix.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный фикс позиции"})
			return
		}

		provider.Ingest(fix)
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}
}

// TrackingGet возвращает текущее состояние отслеживания рейса: живой сеанс,
// если он активен, иначе последнее сохраненное состояние из базы
func TrackingGet(db *gorm.DB, manager *tracking.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		journeyID, ok := journeyIDParam(c)
		if !ok {
			return
		}

		if view, active := manager.Snapshot(); active && view.JourneyID == journeyID {
			c.JSON(http.StatusOK, view)
			return
		}

		var trackingRow models.JourneyTracking
		if err := db.Where("journey_id = ?", journeyID).First(&trackingRow).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Информация об отслеживании не найдена"})
			return
		}

		c.JSON(http.StatusOK, trackingRow)
	}
}

// TrackingPathGet возвращает пройденный путь рейса (полилиния для карты)
func TrackingPathGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		journeyID, ok := journeyIDParam(c)
		if !ok {
			return
		}

		var points []models.JourneyPathPoint
		if err := db.Where("journey_id = ?", journeyID).
			Order("captured_at asc").
			Find(&points).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при получении пути рейса"})
			return
		}

		c.JSON(http.StatusOK, points)
	}
}

// MilestonesGet возвращает контрольные события рейса
func MilestonesGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		journeyID, ok := journeyIDParam(c)
		if !ok {
			return
		}

		var milestones []models.JourneyMilestone
		if err := db.Where("journey_id = ?", journeyID).
			Order("fired_at asc").
			Find(&milestones).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при получении контрольных событий"})
			return
		}

		c.JSON(http.StatusOK, milestones)
	}
}

// MilestoneFireRequest тело запроса ручной отметки контрольного события
type MilestoneFireRequest struct {
	Kind models.MilestoneKind `json:"kind" binding:"required"`
}

// MilestoneFire вручную отмечает контрольное событие рейса ("груз забран").
// Повторная отметка уже сработавшего события — не ошибка, просто no-op.
func MilestoneFire(manager *tracking.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		journeyID, ok := journeyIDParam(c)
		if !ok {
			return
		}

		view, active := manager.Snapshot()
		if !active || view.JourneyID != journeyID {
			c.JSON(http.StatusConflict, gin.H{"error": "Отслеживание этого рейса не активно"})
			return
		}

		var req MilestoneFireRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		event, fired, err := manager.FireMilestone(c.Request.Context(), req.Kind)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Нет активного сеанса отслеживания"})
			return
		}
		if !fired {
			c.JSON(http.StatusOK, gin.H{"status": "already_fired"})
			return
		}

		c.JSON(http.StatusOK, event)
	}
}

// ShareTokenCreate выдает публичный токен ссылки отслеживания для клиента
func ShareTokenCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		journeyID, ok := journeyIDParam(c)
		if !ok {
			return
		}

		token, err := utils.GenerateTrackingToken(journeyID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать токен отслеживания"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

// PublicTrackingGet отдает страницу отслеживания клиента по токену ссылки:
// последнее состояние, путь и контрольные события того рейса, что зашит в токен
func PublicTrackingGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := utils.ValidateToken(c.Param("token"))
		if err != nil || claims.Role != "tracking" || claims.JourneyID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Недействительная ссылка отслеживания"})
			return
		}

		var trackingRow models.JourneyTracking
		if err := db.Where("journey_id = ?", claims.JourneyID).First(&trackingRow).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Информация об отслеживании не найдена"})
			return
		}

		var points []models.JourneyPathPoint
		db.Where("journey_id = ?", claims.JourneyID).Order("captured_at asc").Find(&points)

		var milestones []models.JourneyMilestone
		db.Where("journey_id = ?", claims.JourneyID).Order("fired_at asc").Find(&milestones)

		c.JSON(http.StatusOK, gin.H{
			"tracking":   trackingRow,
			"path":       points,
			"milestones": milestones,
		})
	}
}

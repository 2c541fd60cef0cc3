package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/handlers"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/middleware"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/tracking"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/websocket"
)

// SetupRoutes настраивает маршруты отслеживания рейсов
func SetupRoutes(api *gin.RouterGroup, db *gorm.DB, manager *tracking.Manager, provider *tracking.IngestProvider) {
	// Публичная страница отслеживания клиента: доступ по токену ссылки
	api.GET("/track/:token", handlers.PublicTrackingGet(db))

	// Защищенные маршруты (требуют токен диспетчера)
	protected := api.Group("")
	protected.Use(middleware.JWTAuth())
	{
		// Жизненный цикл отслеживания рейса
		protected.PUT("/journeys/:id/tracking/start", handlers.TrackingStart(db, manager))
		protected.PUT("/journeys/:id/tracking/stop", handlers.TrackingStop(db, manager))
		protected.POST("/journeys/:id/tracking/fixes", handlers.TrackingFixIngest(manager, provider))

		// Состояние отслеживания для панели диспетчера
		protected.GET("/journeys/:id/tracking", handlers.TrackingGet(db, manager))
		protected.GET("/journeys/:id/tracking/path", handlers.TrackingPathGet(db))

		// Контрольные события: чтение и ручная отметка
		protected.GET("/journeys/:id/milestones", handlers.MilestonesGet(db))
		protected.POST("/journeys/:id/milestones", handlers.MilestoneFire(manager))

		// Ссылка отслеживания для клиента
		protected.POST("/journeys/:id/tracking/share", handlers.ShareTokenCreate())

		// WebSocket подписка на обновления рейса в реальном времени
		protected.GET("/ws", websocket.Handler())
	}
}

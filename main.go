package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/db"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/middleware"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/routes"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/tracking"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/websocket"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*gorm.DB, error) {
	var database *gorm.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		database, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})
		if err == nil {
			// Настройка пула соединений с БД
			sqlDB, err := database.DB()
			if err != nil {
				return nil, fmt.Errorf("не удалось получить доступ к sql.DB: %w", err)
			}

			maxOpenConns := 100
			maxIdleConns := 25
			connMaxLifetime := 60

			if val, err := strconv.Atoi(os.Getenv("DB_MAX_OPEN_CONNS")); err == nil && val > 0 {
				maxOpenConns = val
			}
			if val, err := strconv.Atoi(os.Getenv("DB_MAX_IDLE_CONNS")); err == nil && val > 0 {
				maxIdleConns = val
			}
			if val, err := strconv.Atoi(os.Getenv("DB_CONN_MAX_LIFETIME_MINUTES")); err == nil && val > 0 {
				connMaxLifetime = val
			}

			sqlDB.SetMaxOpenConns(maxOpenConns)
			sqlDB.SetMaxIdleConns(maxIdleConns)
			sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Minute)

			return database, nil
		}
		log.Printf("Попытка подключения к БД %d из %d не удалась: %v\n", i+1, maxAttempts, err)
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("не удалось подключиться к базе данных после %d попыток: %v", maxAttempts, err)
}

// buildTrackingEngine собирает движок отслеживания: провайдер фиксов,
// хранилище слота, приемники обновлений и менеджер сеанса
func buildTrackingEngine(database *gorm.DB, slotStore *tracking.RedisSlotStore, provider *tracking.IngestProvider) *tracking.Manager {
	cfg := tracking.LoadConfig()

	storeSink := tracking.NewStoreSink(database)
	fanout := tracking.NewFanout(storeSink, websocket.NewSink())

	// Удаленные приемники: панель диспетчера и страница отслеживания клиента.
	// Отсутствующий адрес означает, что приемник не развернут.
	if url := os.Getenv("DASHBOARD_INGEST_URL"); url != "" {
		fanout.AddSink(tracking.NewRemoteSink("dashboard", url, os.Getenv("DASHBOARD_MILESTONE_URL")))
	}
	if url := os.Getenv("CLIENT_TRACKING_INGEST_URL"); url != "" {
		fanout.AddSink(tracking.NewRemoteSink("client-tracking", url, os.Getenv("CLIENT_TRACKING_MILESTONE_URL")))
	}

	return tracking.NewManager(
		cfg,
		provider,
		tracking.NoopScheduler{},
		slotStore,
		tracking.NewGormRouteSource(database),
		fanout,
		storeSink,
	)
}

func main() {
	// Устанавливаем режим релиза для продакшена
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	// Подключение к базе данных
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
	)

	database, err := connectWithRetry(dsn, 5, 5*time.Second)
	if err != nil {
		log.Fatal("Ошибка подключения к базе данных:", err)
	}

	// Подключение к Redis: без него слот текущего рейса не переживет перезапуск
	redisClient, err := db.NewRedisClient()
	if err != nil {
		log.Fatal("Ошибка подключения к Redis:", err)
	}
	defer redisClient.Close()

	// Автоматическая миграция моделей
	if err := database.AutoMigrate(
		&models.Journey{},
		&models.JourneyTracking{},
		&models.JourneyPathPoint{},
		&models.JourneyMilestone{},
	); err != nil {
		log.Fatal("Ошибка миграции базы данных:", err)
	}

	// Запускаем WebSocket менеджер
	websocket.StartManager()

	// Собираем движок отслеживания
	provider := tracking.NewIngestProvider()
	slotStore := tracking.NewRedisSlotStore(redisClient)
	manager := buildTrackingEngine(database, slotStore, provider)

	// Возобновляем отслеживание, если процесс перезапустился посреди рейса
	resumeCtx, cancelResume := context.WithTimeout(context.Background(), 30*time.Second)
	resumed, err := manager.Resume(resumeCtx)
	cancelResume()
	if err != nil {
		log.Printf("Предупреждение: не удалось возобновить отслеживание: %v", err)
	} else if resumed {
		log.Println("Отслеживание рейса возобновлено после перезапуска")
	}

	// Создаем Gin роутер
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.PrometheusMiddleware())

	r.SetTrustedProxies([]string{"127.0.0.1"})

	// Настройка CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Эндпоинт для метрик Prometheus
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Проверка работоспособности системы
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// API группа
	api := r.Group("/api")
	routes.SetupRoutes(api, database, manager, provider)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Сервер запущен на порту %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка запуска сервера: %s", err)
		}
	}()

	// Ожидаем сигнал для graceful shutdown. Слот текущего рейса не очищается:
	// после перезапуска Resume продолжит отслеживание с того же места.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Получен сигнал завершения, закрываем соединения...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Ошибка при graceful shutdown: %s", err)
	}

	log.Println("Сервер корректно завершил работу")
}

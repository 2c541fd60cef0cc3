package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

// Ошибки получения позиции. Обе восстановимые: отказ в разрешении устраняется
// повторным запросом у пользователя, недоступность провайдера — повтором с паузой.
var (
	ErrPermissionDenied    = errors.New("доступ к геолокации не предоставлен")
	ErrProviderUnavailable = errors.New("провайдер геолокации недоступен")
)

// SampleMode режим опроса позиции
type SampleMode string

const (
	SampleModeForeground SampleMode = "foreground" // Частый опрос с высокой точностью
	SampleModeBackground SampleMode = "background" // Редкий опрос, переживает выгрузку процесса
)

// Accuracy запрашиваемая точность позиционирования
type Accuracy string

const (
	AccuracyHigh     Accuracy = "high"
	AccuracyBalanced Accuracy = "balanced"
)

// LocationProvider абстрагирует платформенный провайдер геолокации.
// Реализации: системный провайдер на устройстве, фейковый провайдер в тестах.
type LocationProvider interface {
	// RequestForegroundPermission запрашивает разрешение на геолокацию в активном режиме
	RequestForegroundPermission(ctx context.Context) (bool, error)
	// RequestBackgroundPermission запрашивает разрешение на фоновую геолокацию
	RequestBackgroundPermission(ctx context.Context) (bool, error)
	// Watch открывает поток фиксов с заданным интервалом и точностью.
	// Возвращает ErrPermissionDenied, если разрешение отозвано.
	Watch(ctx context.Context, interval time.Duration, accuracy Accuracy) (<-chan models.PositionFix, error)
	// CurrentFix возвращает одиночный фикс или ErrProviderUnavailable по таймауту
	CurrentFix(ctx context.Context) (models.PositionFix, error)
}

// BackgroundScheduler абстрагирует долговременный планировщик задач ОС.
// Фоновый опрос обязан переживать выгрузку процесса, поэтому таймер в памяти
// не годится: регистрация делегируется платформенному планировщику.
type BackgroundScheduler interface {
	// Schedule регистрирует периодическую фоновую задачу опроса для рейса
	Schedule(journeyID uint, interval time.Duration) error
	// Cancel снимает фоновую задачу рейса
	Cancel(journeyID uint) error
}

// GeoSampler получает поток фиксов от провайдера и передает их обработчику.
// Поддерживает активный режим (частый опрос) и фоновый (редкий, через планировщик ОС).
type GeoSampler struct {
	provider   LocationProvider
	scheduler  BackgroundScheduler
	retries    int
	retryDelay time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewGeoSampler создает новый источник фиксов
func NewGeoSampler(provider LocationProvider, scheduler BackgroundScheduler, cfg Config) *GeoSampler {
	return &GeoSampler{
		provider:   provider,
		scheduler:  scheduler,
		retries:    cfg.ProviderRetries,
		retryDelay: cfg.ProviderRetryDelay,
	}
}

// Start запускает опрос позиции и возвращает канал фиксов.
// В фоновом режиме дополнительно регистрирует задачу у планировщика ОС,
// чтобы опрос пережил выгрузку процесса.
func (s *GeoSampler) Start(ctx context.Context, journeyID uint, mode SampleMode, interval time.Duration) (<-chan models.PositionFix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil, fmt.Errorf("опрос позиции уже запущен")
	}

	accuracy := AccuracyHigh
	if mode == SampleModeBackground {
		accuracy = AccuracyBalanced
		if s.scheduler != nil {
			if err := s.scheduler.Schedule(journeyID, interval); err != nil {
				return nil, fmt.Errorf("не удалось зарегистрировать фоновую задачу: %w", err)
			}
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	stream, err := s.provider.Watch(watchCtx, interval, accuracy)
	if err != nil {
		cancel()
		if mode == SampleModeBackground && s.scheduler != nil {
			s.scheduler.Cancel(journeyID)
		}
		return nil, err
	}

	out := make(chan models.PositionFix)
	stopped := make(chan struct{})
	s.cancel = cancel
	s.stopped = stopped

	go func() {
		// stopped закрывается после out: к возврату из Stop канал фиксов уже закрыт
		defer close(stopped)
		defer close(out)
		for {
			select {
			case <-watchCtx.Done():
				return
			case fix, ok := <-stream:
				if !ok {
					return
				}
				if !fix.Valid() {
					log.Printf("Пропущен некорректный фикс для рейса %d: %+v", journeyID, fix)
					continue
				}
				select {
				case out <- fix:
				case <-watchCtx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Stop останавливает опрос позиции. Возвращается только после того,
// как цикл опроса действительно завершился.
func (s *GeoSampler) Stop(journeyID uint) {
	s.mu.Lock()
	cancel := s.cancel
	stopped := s.stopped
	s.cancel = nil
	s.stopped = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped

	if s.scheduler != nil {
		if err := s.scheduler.Cancel(journeyID); err != nil {
			log.Printf("Не удалось снять фоновую задачу для рейса %d: %v", journeyID, err)
		}
	}
}

// CurrentFix возвращает одиночный фикс, повторяя запрос при временной
// недоступности провайдера. Отказ в разрешении не повторяется.
func (s *GeoSampler) CurrentFix(ctx context.Context) (models.PositionFix, error) {
	var lastErr error
	for i := 0; i < s.retries; i++ {
		fix, err := s.provider.CurrentFix(ctx)
		if err == nil {
			return fix, nil
		}
		if errors.Is(err, ErrPermissionDenied) {
			return models.PositionFix{}, err
		}
		lastErr = err
		log.Printf("Попытка получения позиции %d из %d не удалась: %v", i+1, s.retries, err)
		select {
		case <-ctx.Done():
			return models.PositionFix{}, ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
	return models.PositionFix{}, fmt.Errorf("не удалось получить позицию после %d попыток: %w", s.retries, lastErr)
}

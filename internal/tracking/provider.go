package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

// IngestProvider реализует LocationProvider поверх фиксов, поступающих от
// приложения водителя по HTTP. Разрешениями на геолокацию управляет само
// устройство: сюда фиксы приходят уже после того, как ОС их выдала, поэтому
// запросы разрешений всегда успешны. Интервалы опроса задает устройство,
// движок только принимает поток.
type IngestProvider struct {
	mu      sync.Mutex
	streams []chan models.PositionFix
	lastFix *models.PositionFix
}

// NewIngestProvider создает провайдер, питаемый входящими фиксами
func NewIngestProvider() *IngestProvider {
	return &IngestProvider{}
}

func (p *IngestProvider) RequestForegroundPermission(ctx context.Context) (bool, error) {
	return true, nil
}

func (p *IngestProvider) RequestBackgroundPermission(ctx context.Context) (bool, error) {
	return true, nil
}

// Watch открывает поток фиксов. Закрывается при отмене контекста.
func (p *IngestProvider) Watch(ctx context.Context, interval time.Duration, accuracy Accuracy) (<-chan models.PositionFix, error) {
	stream := make(chan models.PositionFix, 16)

	p.mu.Lock()
	p.streams = append(p.streams, stream)
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		for i, s := range p.streams {
			if s == stream {
				p.streams = append(p.streams[:i], p.streams[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
		close(stream)
	}()

	return stream, nil
}

// CurrentFix возвращает последний принятый фикс
func (p *IngestProvider) CurrentFix(ctx context.Context) (models.PositionFix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastFix == nil {
		return models.PositionFix{}, ErrProviderUnavailable
	}
	return *p.lastFix, nil
}

// Ingest принимает фикс от приложения водителя и передает его открытым потокам.
// Переполненный поток пропускает фикс: следующий все равно его вытеснит.
func (p *IngestProvider) Ingest(fix models.PositionFix) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := fix
	p.lastFix = &f

	for _, stream := range p.streams {
		select {
		case stream <- fix:
		default:
		}
	}
}

// NoopScheduler заглушка планировщика фоновых задач для серверного развертывания:
// долговременным фоновым расписанием управляет устройство водителя
type NoopScheduler struct{}

func (NoopScheduler) Schedule(journeyID uint, interval time.Duration) error { return nil }
func (NoopScheduler) Cancel(journeyID uint) error                           { return nil }

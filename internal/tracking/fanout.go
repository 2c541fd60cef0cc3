package tracking

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

// Update представляет одно обновление отслеживания, доставляемое приемникам
type Update struct {
	JourneyID uint                    `json:"journey_id"`
	Fix       models.PositionFix      `json:"fix"`
	Snapshot  models.ProgressSnapshot `json:"snapshot"`
	Milestone *models.MilestoneEvent  `json:"milestone,omitempty"`
	Final     bool                    `json:"final,omitempty"` // Принудительная финальная публикация при завершении рейса
}

// Sink представляет приемник обновлений отслеживания: панель диспетчера,
// страница отслеживания клиента, внутрипроцессные наблюдатели, база данных.
type Sink interface {
	Name() string
	Publish(ctx context.Context, update Update) error
}

// Fanout доставляет каждое обновление всем зарегистрированным приемникам.
// Доставки изолированы: отказ одного приемника (таймаут, не-2xx, офлайн)
// не блокирует и не отменяет доставку остальным. Ошибка приемника логируется
// и учитывается в метриках, но никогда не возвращается циклу опроса.
// Очереди повторов нет: потерянное обновление вытесняется следующим тиком.
type Fanout struct {
	mu      sync.RWMutex
	sinks   []Sink
	timeout time.Duration
}

// NewFanout создает рассыльщик обновлений
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{
		sinks:   sinks,
		timeout: 10 * time.Second,
	}
}

// AddSink регистрирует дополнительный приемник
func (f *Fanout) AddSink(sink Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sink)
}

// Publish доставляет обновление всем приемникам, каждому в своей горутине.
// Возвращается сразу: цикл опроса никогда не ждет медленный приемник.
func (f *Fanout) Publish(update Update) {
	f.mu.RLock()
	sinks := make([]Sink, len(f.sinks))
	copy(sinks, f.sinks)
	f.mu.RUnlock()
	log.Printf("DEBUG fanout.Publish: sinks=%d update=%+v", len(sinks), update)

	for _, sink := range sinks {
		go func(s Sink) {
			log.Printf("DEBUG fanout delivery goroutine start: sink=%s", s.Name())
			ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
			defer cancel()

			err := s.Publish(ctx, update)
			log.Printf("DEBUG fanout delivery done: sink=%s err=%v", s.Name(), err)
			if err != nil {
				log.Printf("Ошибка доставки обновления рейса %d в приемник %s: %v", update.JourneyID, s.Name(), err)
				PropagationsTotal.WithLabelValues(s.Name(), "error").Inc()
				return
			}
			PropagationsTotal.WithLabelValues(s.Name(), "ok").Inc()
		}(sink)
	}
}

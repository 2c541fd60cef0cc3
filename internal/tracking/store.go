package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// SlotRecord содержимое единственного долговременного слота "текущий рейс".
// Слот позволяет после перезапуска процесса понять, что отслеживание было
// активно, и возобновить его без участия пользователя.
type SlotRecord struct {
	JourneyID        uint      `json:"journey_id"`
	StartedAt        time.Time `json:"started_at"`
	LastPropagatedAt time.Time `json:"last_propagated_at,omitempty"`
}

// SlotStore абстрагирует долговременное хранилище слота текущего рейса.
// Слотом владеет исключительно менеджер сеанса: другие компоненты к нему
// не обращаются. Запись — last-writer-wins, конкурентных писателей нет.
type SlotStore interface {
	// Load возвращает сохраненный слот; ok == false, если слот пуст
	Load(ctx context.Context) (SlotRecord, bool, error)
	// Save сохраняет слот
	Save(ctx context.Context, record SlotRecord) error
	// Clear очищает слот (явная остановка или завершение рейса)
	Clear(ctx context.Context) error
}

const slotKey = "tracking:current_journey"

// RedisSlotStore хранит слот текущего рейса в Redis
type RedisSlotStore struct {
	client *redis.Client
}

// NewRedisSlotStore создает хранилище слота поверх Redis
func NewRedisSlotStore(client *redis.Client) *RedisSlotStore {
	return &RedisSlotStore{client: client}
}

// Load получает слот из Redis
func (s *RedisSlotStore) Load(ctx context.Context) (SlotRecord, bool, error) {
	val, err := s.client.Get(ctx, slotKey).Result()
	if err == redis.Nil {
		// Слот пуст — отслеживание не было активно
		return SlotRecord{}, false, nil
	} else if err != nil {
		return SlotRecord{}, false, fmt.Errorf("ошибка при чтении слота отслеживания: %w", err)
	}

	var record SlotRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return SlotRecord{}, false, fmt.Errorf("ошибка при десериализации слота отслеживания: %w", err)
	}

	return record, true, nil
}

// Save сохраняет слот в Redis. Слот живет без TTL до явной очистки.
func (s *RedisSlotStore) Save(ctx context.Context, record SlotRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("ошибка при сериализации слота отслеживания: %w", err)
	}

	if err := s.client.Set(ctx, slotKey, data, 0).Err(); err != nil {
		return fmt.Errorf("ошибка при сохранении слота отслеживания: %w", err)
	}

	return nil
}

// Clear удаляет слот из Redis
func (s *RedisSlotStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, slotKey).Err(); err != nil {
		return fmt.Errorf("ошибка при очистке слота отслеживания: %w", err)
	}
	return nil
}

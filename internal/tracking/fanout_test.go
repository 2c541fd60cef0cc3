package tracking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

// captureSink записывает доставленные обновления в канал
type captureSink struct {
	name    string
	updates chan Update
}

func newCaptureSink(name string) *captureSink {
	return &captureSink{name: name, updates: make(chan Update, 32)}
}

func (s *captureSink) Name() string { return s.name }

func (s *captureSink) Publish(ctx context.Context, update Update) error {
	fmt.Printf("DEBUG captureSink.Publish: sink=%p chan=%v len=%d\n", s, s.updates, len(s.updates))
	s.updates <- update
	return nil
}

// failingSink всегда возвращает ошибку доставки
type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Publish(ctx context.Context, update Update) error {
	return errors.New("приемник недоступен")
}

// blockingSink имитирует зависший приемник
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Publish(ctx context.Context, update Update) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func testUpdate(journeyID uint) Update {
	return Update{
		JourneyID: journeyID,
		Fix: models.PositionFix{
			Latitude:   40.7128,
			Longitude:  -74.0060,
			CapturedAt: time.Now(),
		},
		Snapshot: models.ProgressSnapshot{ProgressPercentage: 42},
	}
}

func waitForUpdate(t *testing.T, sink *captureSink) Update {
	t.Helper()
	fmt.Printf("DEBUG waitForUpdate: sink=%p chan=%v len=%d\n", sink, sink.updates, len(sink.updates))
	select {
	case update := <-sink.updates:
		return update
	case <-time.After(2 * time.Second):
		t.Fatal("обновление не доставлено приемнику")
		return Update{}
	}
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	first := newCaptureSink("first")
	second := newCaptureSink("second")
	fanout := NewFanout(first, second)

	fanout.Publish(testUpdate(7))

	if got := waitForUpdate(t, first); got.JourneyID != 7 {
		t.Errorf("первый приемник получил обновление рейса %d, ожидался 7", got.JourneyID)
	}
	if got := waitForUpdate(t, second); got.JourneyID != 7 {
		t.Errorf("второй приемник получил обновление рейса %d, ожидался 7", got.JourneyID)
	}
}

func TestFanoutFailingSinkDoesNotStarveHealthySink(t *testing.T) {
	healthy := newCaptureSink("healthy")
	fanout := NewFanout(failingSink{}, healthy)

	// Постоянно падающий приемник не должен мешать здоровому получать каждое обновление
	for i := 1; i <= 5; i++ {
		fanout.Publish(testUpdate(uint(i)))
	}

	received := map[uint]bool{}
	for i := 0; i < 5; i++ {
		update := waitForUpdate(t, healthy)
		received[update.JourneyID] = true
	}
	for i := uint(1); i <= 5; i++ {
		if !received[i] {
			t.Errorf("здоровый приемник не получил обновление %d", i)
		}
	}
}

func TestFanoutBlockingSinkDoesNotBlockPublish(t *testing.T) {
	blocking := &blockingSink{release: make(chan struct{})}
	healthy := newCaptureSink("healthy")
	fanout := NewFanout(blocking, healthy)

	done := make(chan struct{})
	go func() {
		fanout.Publish(testUpdate(1))
		close(done)
	}()

	// Publish возвращается сразу, не дожидаясь зависшего приемника
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish заблокировался на зависшем приемнике")
	}

	waitForUpdate(t, healthy)
	close(blocking.release)
}

func TestFanoutAddSink(t *testing.T) {
	fanout := NewFanout()
	late := newCaptureSink("late")
	fanout.AddSink(late)

	fanout.Publish(testUpdate(3))
	if got := waitForUpdate(t, late); got.JourneyID != 3 {
		t.Errorf("добавленный приемник получил обновление рейса %d, ожидался 3", got.JourneyID)
	}
}

package tracking

import (
	"testing"
	"time"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

func snapshotAt(pct float64) models.ProgressSnapshot {
	return models.ProgressSnapshot{ProgressPercentage: pct}
}

func TestMilestoneDetectorFiresOnce(t *testing.T) {
	detector := NewMilestoneDetector(1, DefaultThresholds())
	now := time.Now()

	events := detector.Observe(snapshotAt(6), now)
	if len(events) != 1 || events[0].Kind != models.MilestoneDeparted {
		t.Fatalf("ожидалось одно событие departed, получено %v", events)
	}

	// Повторное пересечение порога из-за GPS-шума события не дает
	if events := detector.Observe(snapshotAt(4), now); len(events) != 0 {
		t.Errorf("откат прогресса дал события: %v", events)
	}
	if events := detector.Observe(snapshotAt(7), now); len(events) != 0 {
		t.Errorf("повторное пересечение дало события: %v", events)
	}
}

func TestMilestoneDetectorSkippedSamples(t *testing.T) {
	detector := NewMilestoneDetector(1, DefaultThresholds())
	now := time.Now()

	// Прыжок сразу к 60%: все пропущенные пороги срабатывают за один вызов
	events := detector.Observe(snapshotAt(60), now)
	if len(events) != 3 {
		t.Fatalf("ожидалось 3 события (departed, pickedUp, checkpoint), получено %d", len(events))
	}

	kinds := map[models.MilestoneKind]bool{}
	for _, e := range events {
		kinds[e.Kind] = true
	}
	for _, want := range []models.MilestoneKind{models.MilestoneDeparted, models.MilestonePickedUp, models.MilestoneCheckpoint} {
		if !kinds[want] {
			t.Errorf("не сработало событие %s", want)
		}
	}
}

func TestMilestoneDetectorCompletion(t *testing.T) {
	detector := NewMilestoneDetector(1, DefaultThresholds())
	events := detector.Observe(snapshotAt(100), time.Now())
	if len(events) != len(DefaultThresholds()) {
		t.Errorf("при 100%% должны сработать все пороги: получено %d из %d", len(events), len(DefaultThresholds()))
	}
}

func TestMilestoneDetectorManualFire(t *testing.T) {
	detector := NewMilestoneDetector(1, DefaultThresholds())
	now := time.Now()

	event, fired := detector.Fire(models.MilestonePickedUp, now)
	if !fired {
		t.Fatal("ручная отметка не сработала")
	}
	if event.Kind != models.MilestonePickedUp || event.JourneyID != 1 {
		t.Errorf("некорректное событие: %+v", event)
	}

	// Повторная ручная отметка идемпотентна
	if _, fired := detector.Fire(models.MilestonePickedUp, now); fired {
		t.Error("повторная ручная отметка сработала второй раз")
	}

	// Автоматический путь разделяет контракт с ручным: порог pickedUp уже сработал
	events := detector.Observe(snapshotAt(30), now)
	for _, e := range events {
		if e.Kind == models.MilestonePickedUp {
			t.Error("порог pickedUp сработал после ручной отметки")
		}
	}
}

func TestMilestoneDetectorIndependentSessions(t *testing.T) {
	first := NewMilestoneDetector(1, DefaultThresholds())
	first.Observe(snapshotAt(100), time.Now())

	// Новый сеанс начинается с чистыми порогами
	second := NewMilestoneDetector(2, DefaultThresholds())
	events := second.Observe(snapshotAt(10), time.Now())
	if len(events) != 1 {
		t.Errorf("новый сеанс должен сработать заново: получено %d событий", len(events))
	}
}

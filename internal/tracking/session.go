package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asadzgit/cargo360-driver-app-sub000/internal/geo"
	"github.com/asadzgit/cargo360-driver-app-sub000/internal/models"
)

// ErrPermissionRequired возвращается из Start, если пользователь не предоставил
// разрешение на геолокацию. Ошибка восстановимая: вызывающая сторона повторно
// запрашивает разрешение и вызывает Start снова.
var ErrPermissionRequired = errors.New("требуется разрешение на геолокацию")

// RouteSource возвращает маршрут рейса по его идентификатору.
// Нужен при возобновлении после перезапуска: слот хранит только journeyID.
type RouteSource interface {
	RouteForJourney(ctx context.Context, journeyID uint) (models.JourneyRoute, error)
}

// PathRecorder принимает точки пройденного пути (полилиния для карты)
type PathRecorder interface {
	RecordPathPoint(ctx context.Context, journeyID uint, fix models.PositionFix) error
}

// session внутреннее состояние активного сеанса отслеживания
type session struct {
	id        string
	route     models.JourneyRoute
	state     models.SessionState
	mode      SampleMode
	startedAt time.Time
	startFix  models.PositionFix

	detector     *MilestoneDetector
	lastSentAt   time.Time
	lastSentFix  *models.PositionFix
	lastPathFix  *models.PositionFix
	lastFix      *models.PositionFix
	lastSnapshot models.ProgressSnapshot

	done chan struct{}
}

// SessionView снимок состояния сеанса для вызывающей стороны (экранов приложения)
type SessionView struct {
	SessionID    string                  `json:"session_id"`
	JourneyID    uint                    `json:"journey_id"`
	State        models.SessionState     `json:"state"`
	Mode         SampleMode              `json:"mode"`
	StartedAt    time.Time               `json:"started_at"`
	Route        models.JourneyRoute     `json:"route"`
	LastFix      *models.PositionFix     `json:"last_fix,omitempty"`
	LastSnapshot models.ProgressSnapshot `json:"last_snapshot"`
}

// Manager владеет жизненным циклом сеанса отслеживания: Idle -> Active -> Completed.
// Одновременно активен не более одного сеанса (одно устройство — один водитель).
// Единственный компонент с долговременным состоянием: слот текущего рейса.
type Manager struct {
	mu sync.Mutex

	cfg      Config
	provider LocationProvider
	sampler  *GeoSampler
	slots    SlotStore
	routes   RouteSource
	fanout   *Fanout
	recorder PathRecorder

	active       *session
	intervalGate *IntervalGate
	pathGate     *DisplacementGate
}

// NewManager создает менеджер сеансов отслеживания
func NewManager(cfg Config, provider LocationProvider, scheduler BackgroundScheduler, slots SlotStore, routes RouteSource, fanout *Fanout, recorder PathRecorder) *Manager {
	return &Manager{
		cfg:          cfg,
		provider:     provider,
		sampler:      NewGeoSampler(provider, scheduler, cfg),
		slots:        slots,
		routes:       routes,
		fanout:       fanout,
		recorder:     recorder,
		intervalGate: NewIntervalGate(cfg.PropagationInterval),
		pathGate:     NewDisplacementGate(cfg.MinDisplacementKm),
	}
}

// Start запускает отслеживание рейса: Idle -> Active.
// Повторный вызов при активном сеансе — no-op: возвращается уже работающий сеанс,
// второй цикл опроса не запускается. Слот сохраняется до запуска опроса, чтобы
// падение между выдачей разрешения и первым фиксом оставило возобновляемую запись.
func (m *Manager) Start(ctx context.Context, route models.JourneyRoute) (SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		if m.active.route.JourneyID != route.JourneyID {
			log.Printf("Start для рейса %d при активном рейсе %d: возвращаем работающий сеанс", route.JourneyID, m.active.route.JourneyID)
		}
		return m.viewLocked(), nil
	}

	// Маршрут проверяется до любой работы с опросом позиции
	if err := route.Validate(); err != nil {
		return SessionView{}, err
	}

	granted, err := m.provider.RequestForegroundPermission(ctx)
	if err != nil {
		return SessionView{}, fmt.Errorf("ошибка запроса разрешения на геолокацию: %w", err)
	}
	if !granted {
		return SessionView{}, ErrPermissionRequired
	}

	startedAt := time.Now()
	if err := m.slots.Save(ctx, SlotRecord{JourneyID: route.JourneyID, StartedAt: startedAt}); err != nil {
		return SessionView{}, fmt.Errorf("не удалось сохранить слот текущего рейса: %w", err)
	}

	if err := m.startLocked(ctx, route, startedAt, SampleModeForeground); err != nil {
		return SessionView{}, err
	}

	return m.viewLocked(), nil
}

// startLocked запускает опрос и цикл обработки. Вызывается под мьютексом.
func (m *Manager) startLocked(ctx context.Context, route models.JourneyRoute, startedAt time.Time, mode SampleMode) error {
	interval := m.cfg.ForegroundInterval
	if mode == SampleModeBackground {
		interval = m.cfg.BackgroundInterval
	}

	// Опрос живет дольше вызова Start: его жизненным циклом управляет
	// только Stop, поэтому контекст вызывающей стороны сюда не передается
	stream, err := m.sampler.Start(context.Background(), route.JourneyID, mode, interval)
	if err != nil {
		return fmt.Errorf("не удалось запустить опрос позиции: %w", err)
	}

	// Стартовый фикс нужен для расчета полной дистанции; если провайдер
	// еще не готов, считаем от начала маршрута
	startFix := models.PositionFix{
		Latitude:   route.Origin.Latitude,
		Longitude:  route.Origin.Longitude,
		CapturedAt: startedAt,
	}
	if fix, err := m.sampler.CurrentFix(ctx); err == nil {
		startFix = fix
	} else {
		log.Printf("Стартовый фикс недоступен для рейса %d, считаем от начала маршрута: %v", route.JourneyID, err)
	}

	s := &session{
		id:        uuid.New().String(),
		route:     route,
		state:     models.SessionStateActive,
		mode:      mode,
		startedAt: startedAt,
		startFix:  startFix,
		detector:  NewMilestoneDetector(route.JourneyID, m.cfg.Thresholds),
		done:      make(chan struct{}),
	}
	m.active = s
	ActiveSessions.Inc()

	go m.processLoop(s, stream)

	log.Printf("Отслеживание рейса %d запущено (сеанс %s, режим %s)", route.JourneyID, s.id, mode)
	return nil
}

// processLoop обрабатывает фиксы в порядке поступления до закрытия потока
func (m *Manager) processLoop(s *session, stream <-chan models.PositionFix) {
	defer close(s.done)
	for fix := range stream {
		m.processFix(s, fix)
	}
}

// processFix выполняет один цикл обработки: прогресс, контрольные события,
// точка пути, публикация через ограничитель
func (m *Manager) processFix(s *session, fix models.PositionFix) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != s || s.state != models.SessionStateActive {
		// Stop обогнал обработку этого фикса
		return
	}

	FixesProcessedTotal.Inc()

	now := time.Now()
	snapshot := geo.ComputeProgress(s.route, s.startFix, fix, m.cfg.DefaultSpeedKmh)
	s.lastFix = &fix
	s.lastSnapshot = snapshot

	// Контрольные события: боковой канал, публикуются сразу, без ограничителя
	events := s.detector.Observe(snapshot, now)
	for i := range events {
		MilestonesFiredTotal.WithLabelValues(string(events[i].Kind)).Inc()
	}

	// Точка пройденного пути: свой порог по смещению, независимый от
	// временного ограничителя числового прогресса
	if m.recorder != nil && m.pathGate.ShouldRecord(s.lastPathFix, fix) {
		pathCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.recorder.RecordPathPoint(pathCtx, s.route.JourneyID, fix); err != nil {
			log.Printf("Ошибка записи точки пути рейса %d: %v", s.route.JourneyID, err)
		} else {
			f := fix
			s.lastPathFix = &f
		}
		cancel()
	}

	// Числовой прогресс проходит через временной ограничитель; сработавшее
	// контрольное событие публикуется вне очереди вместе с текущим снимком
	if len(events) == 0 && !m.intervalGate.ShouldPropagate(s.lastSentAt, now) {
		return
	}

	update := Update{
		JourneyID: s.route.JourneyID,
		Fix:       fix,
		Snapshot:  snapshot,
	}
	if len(events) > 0 {
		update.Milestone = &events[0]
	}
	m.fanout.Publish(update)
	// Несколько порогов за один фикс: каждое событие уходит отдельным обновлением
	for i := 1; i < len(events); i++ {
		m.fanout.Publish(Update{
			JourneyID: s.route.JourneyID,
			Fix:       fix,
			Snapshot:  snapshot,
			Milestone: &events[i],
		})
	}

	s.lastSentAt = now
	f := fix
	s.lastSentFix = &f
	m.persistLastPropagatedLocked(s, now)
}

// persistLastPropagatedLocked обновляет lastPropagatedAt в слоте, best-effort
func (m *Manager) persistLastPropagatedLocked(s *session, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	record := SlotRecord{
		JourneyID:        s.route.JourneyID,
		StartedAt:        s.startedAt,
		LastPropagatedAt: at,
	}
	if err := m.slots.Save(ctx, record); err != nil {
		log.Printf("Не удалось обновить слот рейса %d: %v", s.route.JourneyID, err)
	}
}

// Resume вызывается при старте процесса. Если в слоте есть рейс и сеанс не
// активен, отслеживание возобновляется без участия пользователя.
// Возвращает true, если сеанс возобновлен. Отозванное разрешение — не ошибка:
// менеджер остается в Idle и пишет предупреждение.
func (m *Manager) Resume(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return false, nil
	}

	record, ok, err := m.slots.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("не удалось прочитать слот текущего рейса: %w", err)
	}
	if !ok {
		return false, nil
	}

	route, err := m.routes.RouteForJourney(ctx, record.JourneyID)
	if err != nil {
		return false, fmt.Errorf("не удалось получить маршрут рейса %d: %w", record.JourneyID, err)
	}

	// Фоновое разрешение могли отозвать с прошлого запуска: тихо запрашиваем снова
	mode := SampleModeBackground
	granted, err := m.provider.RequestBackgroundPermission(ctx)
	if err != nil || !granted {
		log.Printf("Фоновая геолокация недоступна для рейса %d, пробуем активный режим: granted=%v err=%v", record.JourneyID, granted, err)
		fgGranted, fgErr := m.provider.RequestForegroundPermission(ctx)
		if fgErr != nil || !fgGranted {
			// Разрешений нет совсем: остаемся в Idle, слот не трогаем —
			// пользователь сможет восстановить отслеживание позже
			log.Printf("Предупреждение: отслеживание рейса %d не возобновлено, разрешение на геолокацию отозвано", record.JourneyID)
			return false, nil
		}
		mode = SampleModeForeground
		log.Printf("Предупреждение: отслеживание рейса %d возобновлено только в активном режиме", record.JourneyID)
	}

	if err := m.startLocked(ctx, route, record.StartedAt, mode); err != nil {
		return false, err
	}

	log.Printf("Отслеживание рейса %d возобновлено после перезапуска", record.JourneyID)
	return true, nil
}

// EnterBackground переводит активный сеанс на редкий фоновый опрос через
// долговременный планировщик ОС (приложение свернуто)
func (m *Manager) EnterBackground(ctx context.Context) error {
	return m.switchMode(ctx, SampleModeBackground)
}

// EnterForeground возвращает активный сеанс к частому опросу (приложение развернуто)
func (m *Manager) EnterForeground(ctx context.Context) error {
	return m.switchMode(ctx, SampleModeForeground)
}

func (m *Manager) switchMode(ctx context.Context, mode SampleMode) error {
	m.mu.Lock()
	s := m.active
	if s == nil || s.mode == mode {
		m.mu.Unlock()
		return nil
	}
	journeyID := s.route.JourneyID
	m.mu.Unlock()

	// Остановка опроса вне мьютекса: Stop ждет завершения цикла,
	// который берет тот же мьютекс на обработку фикса
	m.sampler.Stop(journeyID)
	<-s.done

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != s {
		return nil
	}

	interval := m.cfg.ForegroundInterval
	if mode == SampleModeBackground {
		interval = m.cfg.BackgroundInterval
	}
	stream, err := m.sampler.Start(context.Background(), journeyID, mode, interval)
	if err != nil {
		return fmt.Errorf("не удалось переключить режим опроса: %w", err)
	}
	s.mode = mode
	s.done = make(chan struct{})
	go m.processLoop(s, stream)

	log.Printf("Рейс %d переключен в режим %s", journeyID, mode)
	return nil
}

// Stop завершает отслеживание: Active -> Completed. Опрос останавливается до
// возврата из функции, слот очищается, наблюдателям уходит принудительная
// финальная публикация в обход ограничителя — последняя известная позиция.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()

	if s == nil {
		return nil
	}

	// Синхронная остановка: к моменту возврата опрос гарантированно прекращен.
	// Уже начатая доставка приемникам может завершиться позже — это допустимо.
	m.sampler.Stop(s.route.JourneyID)
	<-s.done

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != s {
		return nil
	}

	s.state = models.SessionStateCompleted
	m.active = nil
	ActiveSessions.Dec()

	if s.lastFix != nil {
		m.fanout.Publish(Update{
			JourneyID: s.route.JourneyID,
			Fix:       *s.lastFix,
			Snapshot:  s.lastSnapshot,
			Final:     true,
		})
	}

	if err := m.slots.Clear(ctx); err != nil {
		return fmt.Errorf("не удалось очистить слот текущего рейса: %w", err)
	}

	log.Printf("Отслеживание рейса %d завершено (сеанс %s)", s.route.JourneyID, s.id)
	return nil
}

// Complete синоним Stop: завершение рейса и явная остановка проходят один путь
func (m *Manager) Complete(ctx context.Context) error {
	return m.Stop(ctx)
}

// FireMilestone вручную генерирует контрольное событие (диспетчер отметил этап).
// Идемпотентно: событие уже сработавшего типа повторно не публикуется.
func (m *Manager) FireMilestone(ctx context.Context, kind models.MilestoneKind) (models.MilestoneEvent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.active
	if s == nil {
		return models.MilestoneEvent{}, false, fmt.Errorf("нет активного сеанса отслеживания")
	}

	event, fired := s.detector.Fire(kind, time.Now())
	if !fired {
		return models.MilestoneEvent{}, false, nil
	}
	MilestonesFiredTotal.WithLabelValues(string(kind)).Inc()

	update := Update{
		JourneyID: s.route.JourneyID,
		Snapshot:  s.lastSnapshot,
		Milestone: &event,
	}
	if s.lastFix != nil {
		update.Fix = *s.lastFix
	}
	m.fanout.Publish(update)

	return event, true, nil
}

// Snapshot возвращает снимок активного сеанса; ok == false, если сеанса нет.
// Локальный расчет прогресса работает и офлайн: экран водителя показывает
// актуальные цифры, даже когда удаленные наблюдатели отстают.
func (m *Manager) Snapshot() (SessionView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return SessionView{}, false
	}
	return m.viewLocked(), true
}

// viewLocked собирает SessionView активного сеанса. Вызывается под мьютексом.
func (m *Manager) viewLocked() SessionView {
	s := m.active
	view := SessionView{
		SessionID:    s.id,
		JourneyID:    s.route.JourneyID,
		State:        s.state,
		Mode:         s.mode,
		StartedAt:    s.startedAt,
		Route:        s.route,
		LastSnapshot: s.lastSnapshot,
	}
	if s.lastFix != nil {
		f := *s.lastFix
		view.LastFix = &f
	}
	return view
}

package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cyberaware/internal/domain"
	"cyberaware/internal/infra/metrics"
)

const (
	// BatchSize задаёт число заголовков, слайдов и вопросов в одном цикле.
	BatchSize = 5

	defaultInterval        = 4 * time.Hour
	defaultRetentionAge    = 24 * time.Hour
	defaultCycleAttempts   = 3
	defaultCycleRetryDelay = 5 * time.Second
	defaultLockTTL         = 30 * time.Minute
)

// Deps содержит зависимости оркестратора. Lock, Cache и Events необязательны.
type Deps struct {
	Fetcher   domain.FeedFetcher
	Generator domain.ContentGenerator
	Headlines domain.HeadlineRepo
	Content   domain.ContentRepo
	Retention domain.RetentionRepo
	Lock      domain.RefreshLock
	Cache     domain.ContentCache
	Events    domain.BusinessMetricRepo
}

// Options настраивает расписание и правила хранения.
type Options struct {
	Sources         []domain.FeedSource
	Interval        time.Duration
	CheckEvery      time.Duration
	RetentionAge    time.Duration
	CycleAttempts   int
	CycleRetryDelay time.Duration
	LockTTL         time.Duration
	Now             func() time.Time
}

// Report описывает результат одного цикла.
type Report struct {
	CycleID      string
	Cause        domain.RefreshCause
	FetchSkipped bool
	HeadlineIDs  []int64
	SlideIDs     []int64
	QuizIDs      []int64
	Pruned       domain.PruneResult
	Attempts     int
}

// Orchestrator запускает циклы обновления по таймеру и по запросу.
// Одновременно выполняется не больше одного цикла.
type Orchestrator struct {
	deps Deps
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	running bool
	state   State
	// onState вызывается при каждой смене стадии.
	onState func(State)
}

// New создаёт оркестратор.
func New(deps Deps, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.CheckEvery <= 0 {
		opts.CheckEvery = opts.Interval / 8
	}
	if opts.RetentionAge <= 0 {
		opts.RetentionAge = defaultRetentionAge
	}
	if opts.CycleAttempts <= 0 {
		opts.CycleAttempts = defaultCycleAttempts
	}
	if opts.CycleRetryDelay <= 0 {
		opts.CycleRetryDelay = defaultCycleRetryDelay
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{deps: deps, opts: opts, log: logger, state: StateIdle}
}

// State возвращает текущую стадию.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	hook := o.onState
	o.mu.Unlock()
	metrics.SetRefreshState(int(s))
	if hook != nil {
		hook(s)
	}
}

// ShouldRefresh сообщает, что самый свежий заголовок старше интервала обновления
// или заголовков ещё нет.
func (o *Orchestrator) ShouldRefresh(ctx context.Context) (bool, error) {
	latest, err := o.deps.Headlines.LatestHeadlineTimestamp(ctx)
	if err != nil {
		return false, fmt.Errorf("последнее обновление: %w", err)
	}
	if latest == nil {
		return true, nil
	}
	return o.opts.Now().Sub(*latest) >= o.opts.Interval, nil
}

// Start проверяет необходимость обновления при запуске и затем по таймеру.
// Блокируется до отмены ctx.
func (o *Orchestrator) Start(ctx context.Context) {
	o.tick(ctx, domain.RefreshCauseStartup)
	ticker := time.NewTicker(o.opts.CheckEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx, domain.RefreshCauseTimer)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context, cause domain.RefreshCause) {
	due, err := o.ShouldRefresh(ctx)
	if err != nil {
		o.log.Error().Err(err).Msg("refresh: не удалось проверить необходимость обновления")
		return
	}
	if !due {
		o.log.Debug().Str("cause", string(cause)).Msg("refresh: обновление не требуется")
		return
	}
	if _, err := o.TriggerNow(ctx, cause); err != nil {
		if errors.Is(err, domain.ErrRefreshInProgress) {
			o.log.Info().Str("cause", string(cause)).Msg("refresh: цикл уже выполняется, запуск пропущен")
			return
		}
		o.log.Error().Err(err).Str("cause", string(cause)).Msg("refresh: цикл завершился ошибкой")
	}
}

// TriggerNow немедленно выполняет цикл. Если цикл уже идёт в этом или другом
// процессе, возвращает domain.ErrRefreshInProgress.
func (o *Orchestrator) TriggerNow(ctx context.Context, cause domain.RefreshCause) (Report, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return Report{}, domain.ErrRefreshInProgress
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	if o.deps.Lock != nil {
		release, ok, err := o.deps.Lock.TryLock(ctx, o.opts.LockTTL)
		if err != nil {
			return Report{}, fmt.Errorf("блокировка обновления: %w", err)
		}
		if !ok {
			return Report{}, domain.ErrRefreshInProgress
		}
		defer release()
	}

	report := Report{CycleID: uuid.NewString(), Cause: cause}
	logger := o.log.With().Str("cycle", report.CycleID).Str("cause", string(cause)).Logger()
	logger.Info().Msg("refresh: цикл начат")
	start := time.Now()

	var err error
	for attempt := 1; attempt <= o.opts.CycleAttempts; attempt++ {
		report.Attempts = attempt
		var committed bool
		committed, err = o.cycle(ctx, logger, &report)
		if err == nil || !o.retryable(err, committed) || attempt == o.opts.CycleAttempts {
			break
		}
		logger.Warn().Err(err).Int("attempt", attempt).Int("max", o.opts.CycleAttempts).Msg("refresh: ошибка БД, цикл будет повторён")
		if sleepErr := sleepCtx(ctx, o.opts.CycleRetryDelay); sleepErr != nil {
			err = sleepErr
			break
		}
	}
	metrics.ObserveStage("cycle", start)

	if err != nil {
		o.setState(StateFailed)
		metrics.IncRefreshCycle("failed")
		logger.Error().Err(err).Int("attempts", report.Attempts).Msg("refresh: цикл не удался, остаются прежние слайды")
		o.recordEvent(ctx, domain.BusinessMetricEventRefreshFailed, report, err)
		o.setState(StateIdle)
		return report, err
	}

	o.setState(StateIdle)
	metrics.IncRefreshCycle("success")
	o.invalidateCache(ctx, logger)
	o.recordEvent(ctx, domain.BusinessMetricEventRefreshCompleted, report, nil)
	logger.Info().
		Int("headlines", len(report.HeadlineIDs)).
		Int("slides", len(report.SlideIDs)).
		Int("quiz", len(report.QuizIDs)).
		Int("pruned", report.Pruned.Total()).
		Bool("fetch_skipped", report.FetchSkipped).
		Msg("refresh: цикл завершён")
	return report, nil
}

// retryable: повторяется только сбой БД до записи слайдов.
func (o *Orchestrator) retryable(err error, committed bool) bool {
	var persistErr *domain.PersistenceError
	return !committed && errors.As(err, &persistErr)
}

// cycle выполняет одну попытку. committed сообщает, что слайды уже записаны.
func (o *Orchestrator) cycle(ctx context.Context, logger zerolog.Logger, report *Report) (committed bool, err error) {
	o.setState(StateFetching)
	stageStart := time.Now()
	headlines, ids, skipped, err := o.collectHeadlines(ctx, logger)
	metrics.ObserveStage("fetch", stageStart)
	if err != nil {
		return false, err
	}
	report.FetchSkipped = skipped
	report.HeadlineIDs = ids

	o.setState(StateGenerating)
	stageStart = time.Now()
	titles := make([]string, len(headlines))
	for i, h := range headlines {
		titles[i] = h.Title
	}
	slidesRes, err := o.deps.Generator.GenerateSlides(ctx, titles)
	if err != nil {
		return false, err
	}
	if err := slidesRes.Err("slides"); err != nil {
		return false, err
	}
	slides := slidesRes.Records
	quizRes, err := o.deps.Generator.GenerateQuiz(ctx, slides)
	if err != nil {
		return false, err
	}
	if err := quizRes.Err("quiz"); err != nil {
		return false, err
	}
	quiz := quizRes.Records
	metrics.ObserveStage("generate", stageStart)

	o.setState(StatePersisting)
	stageStart = time.Now()
	now := o.opts.Now()
	for i := range slides {
		slides[i].CreatedAt = now
		if i < len(ids) {
			id := ids[i]
			slides[i].HeadlineID = &id
		}
	}
	slideIDs, err := o.deps.Content.SaveSlides(ctx, slides)
	if err != nil {
		return false, fmt.Errorf("сохранение слайдов: %w", err)
	}
	report.SlideIDs = slideIDs
	for i := range quiz {
		quiz[i].CreatedAt = now
		if i < len(slideIDs) {
			id := slideIDs[i]
			quiz[i].SlideID = &id
		}
	}
	quizIDs, err := o.deps.Content.SaveQuiz(ctx, quiz)
	if err != nil {
		return true, fmt.Errorf("сохранение викторины: %w", err)
	}
	report.QuizIDs = quizIDs
	metrics.ObserveStage("persist", stageStart)

	o.setState(StateCleaning)
	stageStart = time.Now()
	pruned, err := o.deps.Retention.Prune(ctx, now.Add(-o.opts.RetentionAge), BatchSize)
	metrics.ObserveStage("clean", stageStart)
	if err != nil {
		return true, fmt.Errorf("очистка: %w", err)
	}
	report.Pruned = pruned
	logger.Debug().
		Ints64("quiz", pruned.QuizIDs).
		Ints64("slides", pruned.SlideIDs).
		Ints64("headlines", pruned.HeadlineIDs).
		Msg("refresh: устаревшие записи удалены")
	return true, nil
}

// collectHeadlines возвращает ровно BatchSize сохранённых заголовков и их id.
// Если за половину интервала уже сохранено достаточно заголовков, ленты не опрашиваются.
func (o *Orchestrator) collectHeadlines(ctx context.Context, logger zerolog.Logger) ([]domain.Headline, []int64, bool, error) {
	now := o.opts.Now()
	recentCount, err := o.deps.Headlines.CountHeadlinesSince(ctx, now.Add(-o.opts.Interval/2))
	if err != nil {
		return nil, nil, false, &domain.PersistenceError{Op: "count_headlines", Err: err}
	}
	if recentCount >= BatchSize {
		recent, err := o.deps.Headlines.ListRecentHeadlines(ctx, BatchSize)
		if err != nil {
			return nil, nil, false, &domain.PersistenceError{Op: "list_headlines", Err: err}
		}
		if len(recent) >= BatchSize {
			logger.Info().Int("recent", recentCount).Msg("refresh: свежие заголовки уже есть, ленты не опрашиваются")
			ids := make([]int64, len(recent))
			for i, h := range recent {
				ids[i] = h.ID
			}
			return recent, ids, true, nil
		}
	}

	fetched, err := o.deps.Fetcher.FetchHeadlines(ctx, o.opts.Sources)
	if err != nil {
		return nil, nil, false, fmt.Errorf("получение лент: %w", err)
	}
	if len(fetched) > BatchSize {
		fetched = fetched[:BatchSize]
	}
	headlines, err := o.supplement(ctx, logger, fetched, now)
	if err != nil {
		return nil, nil, false, err
	}

	ids, err := o.deps.Headlines.SaveHeadlines(ctx, headlines)
	if err != nil {
		return nil, nil, false, fmt.Errorf("сохранение заголовков: %w", err)
	}
	return headlines, ids, false, nil
}

// supplement дополняет выборку последними заголовками из БД, а затем встроенными.
func (o *Orchestrator) supplement(ctx context.Context, logger zerolog.Logger, fetched []domain.Headline, now time.Time) ([]domain.Headline, error) {
	headlines := append([]domain.Headline(nil), fetched...)
	seen := make(map[string]struct{}, BatchSize)
	for _, h := range headlines {
		seen[h.Title] = struct{}{}
	}
	if len(headlines) < BatchSize {
		logger.Warn().Int("fetched", len(headlines)).Msg("refresh: мало заголовков, добавляем из БД")
		existing, err := o.deps.Headlines.ListRecentHeadlines(ctx, BatchSize)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "list_headlines", Err: err}
		}
		for _, h := range existing {
			if len(headlines) >= BatchSize {
				break
			}
			if _, dup := seen[h.Title]; dup {
				continue
			}
			seen[h.Title] = struct{}{}
			headlines = append(headlines, h)
		}
	}
	if len(headlines) < BatchSize {
		logger.Warn().Int("have", len(headlines)).Msg("refresh: используем встроенные заголовки")
		headlines = append(headlines, fallbackHeadlines(BatchSize-len(headlines), seen, now)...)
	}
	return headlines, nil
}

func (o *Orchestrator) invalidateCache(ctx context.Context, logger zerolog.Logger) {
	if o.deps.Cache == nil {
		return
	}
	if err := o.deps.Cache.Invalidate(ctx, domain.ContentCacheKeys...); err != nil {
		logger.Warn().Err(err).Msg("refresh: не удалось сбросить кэш")
	}
}

func (o *Orchestrator) recordEvent(ctx context.Context, event string, report Report, cycleErr error) {
	if o.deps.Events == nil {
		return
	}
	meta := map[string]any{
		"cycle_id":      report.CycleID,
		"cause":         string(report.Cause),
		"attempts":      report.Attempts,
		"fetch_skipped": report.FetchSkipped,
		"slides":        len(report.SlideIDs),
		"quiz":          len(report.QuizIDs),
		"pruned":        report.Pruned.Total(),
	}
	if cycleErr != nil {
		meta["error"] = cycleErr.Error()
	}
	// Контекст мог быть отменён, а событие всё равно нужно записать.
	eventCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.deps.Events.RecordBusinessMetric(eventCtx, domain.BusinessMetric{Event: event, Metadata: meta, OccurredAt: o.opts.Now()}); err != nil {
		o.log.Warn().Err(err).Str("event", event).Msg("refresh: не удалось записать бизнес-метрику")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

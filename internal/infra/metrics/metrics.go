package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	RefreshCyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_cycles_total",
		Help: "Количество циклов обновления контента по результату",
	}, []string{"outcome"})

	RefreshStageSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refresh_stage_seconds",
		Help:    "Длительность стадий цикла обновления",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 20, 30, 60, 90, 120, 180, 240, 300, 400, 600},
	}, []string{"stage"})

	RefreshState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "refresh_state",
		Help: "Текущее состояние оркестратора (0 — idle)",
	})

	FeedErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_errors_total",
		Help: "Ошибки получения RSS-лент после всех попыток",
	}, []string{"source"})

	PrunedRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pruned_rows_total",
		Help: "Удалённые при очистке строки",
	}, []string{"table"})

	SocialPostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "social_posts_total",
		Help: "Публикации в соцсети по результату",
	}, []string{"status"})

	ScoresSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scores_submitted_total",
		Help: "Отправленные результаты викторины",
	}, []string{"status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120, 150},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RefreshCyclesTotal,
		RefreshStageSeconds,
		RefreshState,
		FeedErrors,
		PrunedRowsTotal,
		SocialPostsTotal,
		ScoresSubmittedTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// ObserveStage записывает длительность стадии обновления.
func ObserveStage(stage string, start time.Time) {
	RefreshStageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// IncRefreshCycle увеличивает счётчик циклов по результату.
func IncRefreshCycle(outcome string) {
	RefreshCyclesTotal.WithLabelValues(outcome).Inc()
}

// SetRefreshState публикует номер текущего состояния оркестратора.
func SetRefreshState(state int) {
	RefreshState.Set(float64(state))
}

// AddPruned учитывает удалённые строки по таблицам.
func AddPruned(table string, n int) {
	if n > 0 {
		PrunedRowsTotal.WithLabelValues(table).Add(float64(n))
	}
}

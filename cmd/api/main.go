package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"cyberaware/internal/adapters/generator"
	"cyberaware/internal/adapters/repo"
	"cyberaware/internal/adapters/telegram"
	"cyberaware/internal/domain"
	"cyberaware/internal/infra/cache"
	"cyberaware/internal/infra/config"
	"cyberaware/internal/infra/db"
	httpinfra "cyberaware/internal/infra/http"
	applog "cyberaware/internal/infra/log"
	"cyberaware/internal/infra/metrics"
	"cyberaware/internal/infra/openai"
	"cyberaware/internal/infra/queue"
	quizusecase "cyberaware/internal/usecase/quiz"
	socialusecase "cyberaware/internal/usecase/social"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось подготовить схему")
	}

	repoAdapter := repo.NewPostgres(pool)
	deps := httpinfra.APIDeps{
		Headlines: repoAdapter,
		Content:   repoAdapter,
		Scores: quizusecase.NewService(repoAdapter, repoAdapter,
			domain.NewScoring(domain.ParsePerfectScores(cfg.Scoring.PerfectScores)),
			applog.Component(logger, "quiz")),
		Counter: repoAdapter,
	}

	if cfg.XAI.APIKey != "" {
		llm := openai.NewClient(cfg.XAI.APIKey, cfg.XAI.BaseURL, cfg.XAI.Timeout)
		deps.Phish = generator.NewOpenAI(llm, generator.Options{
			Model:     cfg.XAI.Model,
			RetryBase: cfg.XAI.RetryBase,
		}, applog.Component(logger, "generator"))
	} else {
		logger.Warn().Msg("api: XAI_API_KEY не задан, фишинговые симуляции отключены")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		deps.Cache = cache.NewRedis(redisClient, "content:")
	} else {
		logger.Warn().Msg("api: REDIS_ADDR не задан, кэш отключён")
	}

	refreshQueue, closeQueue, err := queue.Open(cfg.Queues.Backend, redisClient, cfg.RabbitURL, cfg.Queues.Refresh)
	if err != nil {
		logger.Warn().Err(err).Msg("api: очередь обновлений недоступна, ручной запуск отключён")
	} else {
		defer closeQueue()
		deps.Queue = refreshQueue
	}

	if cfg.Social.Token != "" && cfg.Social.Channel != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Social.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось создать бота")
		}
		deps.Publisher = socialusecase.NewService(repoAdapter, telegram.NewChannelPoster(botAPI, cfg.Social.Channel),
			repoAdapter, cfg.Social.SiteLine, applog.Component(logger, "social"))
	}

	server := httpinfra.NewServer(applog.Component(logger, "http"))
	server.Router.Group(func(r chi.Router) {
		r.Use(httpinfra.IdentityMiddleware(cfg.Auth.IdentitySecret))
		httpinfra.NewAPI(deps, cfg.Refresh.CacheTTL, cfg.Auth.ManualSecret, applog.Component(logger, "api")).Routes(r)
	})

	go func() {
		logger.Info().Msg("api: старт")
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cyberaware/internal/adapters/feed"
	"cyberaware/internal/adapters/generator"
	"cyberaware/internal/adapters/repo"
	"cyberaware/internal/adapters/telegram"
	"cyberaware/internal/infra/cache"
	"cyberaware/internal/infra/config"
	"cyberaware/internal/infra/db"
	applog "cyberaware/internal/infra/log"
	"cyberaware/internal/infra/metrics"
	"cyberaware/internal/infra/openai"
	"cyberaware/internal/infra/queue"
	"cyberaware/internal/usecase/refresh"
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
		logger.Fatal().Err(err).Msg("refresher: нет подключения к БД")
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("refresher: не удалось подготовить схему")
	}
	repoAdapter := repo.NewPostgres(pool)

	if cfg.XAI.APIKey == "" {
		logger.Warn().Msg("refresher: не указан ключ XAI_API_KEY, генерация будет завершаться ошибкой")
	}
	llm := openai.NewClient(cfg.XAI.APIKey, cfg.XAI.BaseURL, cfg.XAI.Timeout)

	deps := refresh.Deps{
		Fetcher: feed.NewFetcher(feed.Options{
			UserAgent:  cfg.Feeds.UserAgent,
			Timeout:    cfg.Feeds.Timeout,
			RetryDelay: cfg.Feeds.RetryDelay,
		}, applog.Component(logger, "feed")),
		Generator: generator.NewOpenAI(llm, generator.Options{
			Model:     cfg.XAI.Model,
			RetryBase: cfg.XAI.RetryBase,
		}, applog.Component(logger, "generator")),
		Headlines: repoAdapter,
		Content:   repoAdapter,
		Retention: repoAdapter,
		Events:    repoAdapter,
	}

	var redisClient *redis.Client
	var contentCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		contentCache = cache.NewRedis(redisClient, "content:")
		deps.Cache = contentCache
		deps.Lock = cache.NewRedisLock(redisClient, "refresh:lock")
	} else {
		logger.Warn().Msg("refresher: REDIS_ADDR не задан, межпроцессная блокировка и кэш отключены")
	}

	orchestrator := refresh.New(deps, refresh.Options{
		Sources:      feed.DefaultSources,
		Interval:     cfg.Refresh.Interval,
		RetentionAge: cfg.Refresh.RetentionAge,
		LockTTL:      cfg.Refresh.LockTTL,
	}, applog.Component(logger, "refresh"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Dur("interval", cfg.Refresh.Interval).Msg("refresher: запуск таймера обновлений")
		orchestrator.Start(ctx)
	}()

	refreshQueue, closeQueue, err := queue.Open(cfg.Queues.Backend, redisClient, cfg.RabbitURL, cfg.Queues.Refresh)
	if err != nil {
		logger.Warn().Err(err).Msg("refresher: очередь обновлений недоступна, ручной запуск отключён")
	} else {
		defer closeQueue()
		worker := &jobWorker{log: logger, queue: refreshQueue, trigger: orchestrator}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info().Msg("refresher: запуск обработки очереди")
			worker.Run(ctx)
		}()
	}

	if svc := newSocialService(cfg, repoAdapter, contentCache, logger); svc != nil {
		hour, minute, err := socialusecase.ParseClock(cfg.Social.PostTime)
		if err != nil {
			logger.Fatal().Err(err).Msg("refresher: некорректный SOCIAL_POST_TIME")
		}
		loc, err := socialusecase.LoadLocation(cfg.Social.PostTZ)
		if err != nil {
			logger.Fatal().Err(err).Str("tz", cfg.Social.PostTZ).Msg("refresher: некорректный SOCIAL_POST_TZ")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.RunDaily(ctx, hour, minute, loc)
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("refresher: остановка")
	wg.Wait()
}

func newSocialService(cfg config.AppConfig, repoAdapter *repo.Postgres, guard *cache.RedisCache, logger zerolog.Logger) *socialusecase.Service {
	if cfg.Social.Token == "" || cfg.Social.Channel == "" {
		logger.Warn().Msg("refresher: TG_BOT_TOKEN или TG_CHANNEL не заданы, ежедневная публикация отключена")
		return nil
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Social.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("refresher: не удалось создать бота")
	}
	svc := socialusecase.NewService(repoAdapter, telegram.NewChannelPoster(botAPI, cfg.Social.Channel),
		repoAdapter, cfg.Social.SiteLine, applog.Component(logger, "social"))
	if guard != nil {
		svc.WithGuard(guard)
	}
	return svc
}

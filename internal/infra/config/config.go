package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Backend string `envconfig:"REFRESH_QUEUE_BACKEND" default:"redis"`
		Refresh string `envconfig:"REFRESH_QUEUE_KEY" default:"refresh_jobs"`
	} `envconfig:""`

	XAI struct {
		APIKey    string        `envconfig:"XAI_API_KEY"`
		BaseURL   string        `envconfig:"XAI_BASE_URL" default:"https://api.x.ai/v1"`
		Model     string        `envconfig:"XAI_MODEL" default:"grok-3-mini"`
		Timeout   time.Duration `envconfig:"XAI_TIMEOUT" default:"120s"`
		RetryBase time.Duration `envconfig:"XAI_RETRY_BASE" default:"10s"`
	} `envconfig:""`

	Feeds struct {
		Timeout    time.Duration `envconfig:"FEED_TIMEOUT" default:"15s"`
		RetryDelay time.Duration `envconfig:"FEED_RETRY_DELAY" default:"5s"`
		UserAgent  string        `envconfig:"FEED_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"`
	} `envconfig:""`

	Refresh struct {
		Interval     time.Duration `envconfig:"REFRESH_INTERVAL" default:"4h"`
		RetentionAge time.Duration `envconfig:"RETENTION_AGE" default:"24h"`
		LockTTL      time.Duration `envconfig:"REFRESH_LOCK_TTL" default:"30m"`
		CacheTTL     time.Duration `envconfig:"CONTENT_CACHE_TTL" default:"60s"`
	} `envconfig:""`

	Scoring struct {
		PerfectScores string `envconfig:"PERFECT_SCORES" default:"69,100"`
	} `envconfig:""`

	Social struct {
		Token    string `envconfig:"TG_BOT_TOKEN"`
		Channel  string `envconfig:"TG_CHANNEL"`
		PostTime string `envconfig:"SOCIAL_POST_TIME" default:"11:11"`
		PostTZ   string `envconfig:"SOCIAL_POST_TZ" default:"US/Eastern"`
		SiteLine string `envconfig:"SOCIAL_SITE_LINE" default:"Become cyber-aware on dilag3nt[.]com"`
	} `envconfig:""`

	Auth struct {
		IdentitySecret string `envconfig:"IDENTITY_SECRET"`
		ManualSecret   string `envconfig:"MANUAL_TRIGGER_SECRET"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

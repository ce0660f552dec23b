package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Config содержит конфигурацию API-сервера и воркера генерации.
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	ServerPort  string `envconfig:"SERVER_PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	// Pushgateway для воркера; пусто = только pull через /metrics
	PushgatewayURL string        `envconfig:"PUSHGATEWAY_URL" default:""`
	PushInterval   time.Duration `envconfig:"PUSH_INTERVAL" default:"15s"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_IDLE_TIMEOUT" default:"5m"`
	RunMigrations bool          `envconfig:"RUN_MIGRATIONS" default:"true"`
	// Секрет, без envconfig тега
	DBPassword string `ignored:"true"`

	// Настройки RabbitMQ
	RabbitMQURL          string `envconfig:"RABBITMQ_URL" required:"true"`
	NegotiationTaskQueue string `envconfig:"NEGOTIATION_TASKS_QUEUE" default:"negotiation_tasks"`
	EnrichmentTaskQueue  string `envconfig:"ENRICHMENT_TASKS_QUEUE" default:"enrichment_tasks"`
	SessionUpdatesQueue  string `envconfig:"SESSION_UPDATES_QUEUE" default:"session_updates"`
	ConsumerConcurrency  int    `envconfig:"CONSUMER_CONCURRENCY" default:"4"`

	// Настройки Redis
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Настройки генерации
	AIProvider        string        `envconfig:"AI_PROVIDER" default:"gemini"`
	AIModel           string        `envconfig:"AI_MODEL" default:"gemini-2.5-flash"`
	AIBaseURL         string        `envconfig:"AI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	AITimeout         time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	AIMaxOutputTokens int           `envconfig:"AI_MAX_OUTPUT_TOKENS" default:"2048"`
	AITemperature     float32       `envconfig:"AI_TEMPERATURE" default:"0.9"`
	AIAPIKey          string        `ignored:"true"`

	// Игровые правила
	InitialTickets     int           `envconfig:"INITIAL_TICKETS" default:"10"`
	SubmitCooldown     time.Duration `envconfig:"SUBMIT_COOLDOWN" default:"3s"`
	MaxInputLength     int           `envconfig:"MAX_INPUT_LENGTH" default:"500"`
	StaleTurnAfter     time.Duration `envconfig:"STALE_TURN_AFTER" default:"2m"`
	SweepSchedule      string        `envconfig:"SWEEP_SCHEDULE" default:"@every 30s"`
	TurnLockTTL        time.Duration `envconfig:"TURN_LOCK_TTL" default:"5m"`
	RateLimitPerMinute uint          `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Секрет для проверки токенов игроков
	JWTSecret string `ignored:"true"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// AllowedOrigins разбирает список CORS origin через запятую.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// LoadConfig загружает .env (если есть), переменные окружения и секреты.
func LoadConfig(envPath string) (*Config, error) {
	if envPath != "" {
		// Отсутствие .env не ошибка: в контейнере переменные приходят из окружения
		_ = godotenv.Load(envPath)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	var err error
	if cfg.DBPassword, err = ReadSecret("db_password", "DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.JWTSecret, err = ReadSecret("jwt_secret", "JWT_SECRET"); err != nil {
		return nil, err
	}
	// Ключ провайдера нужен только облачным провайдерам
	if strings.ToLower(cfg.AIProvider) != "ollama" {
		if cfg.AIAPIKey, err = ReadSecret("ai_api_key", "AI_API_KEY"); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// LogSummary пишет в лог несекретную часть конфигурации.
func (c *Config) LogSummary(logger *zap.Logger) {
	logger.Info("Configuration loaded",
		zap.String("env", c.Env),
		zap.String("db", fmt.Sprintf("postgres://%s:***@%s:%s/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)),
		zap.Int("dbMaxConns", c.DBMaxConns),
		zap.String("negotiationQueue", c.NegotiationTaskQueue),
		zap.String("enrichmentQueue", c.EnrichmentTaskQueue),
		zap.String("sessionUpdatesQueue", c.SessionUpdatesQueue),
		zap.String("redis", c.RedisAddr),
		zap.String("aiProvider", c.AIProvider),
		zap.String("aiModel", c.AIModel),
		zap.Duration("submitCooldown", c.SubmitCooldown),
		zap.Int("initialTickets", c.InitialTickets),
	)
}

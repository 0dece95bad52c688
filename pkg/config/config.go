package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Chat      ChatConfig
	Approvals ApprovalsConfig
	Realtime  RealtimeConfig
	Workflows WorkflowsConfig
	Reconcile ReconcileConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig configures token validation. Tokens are issued elsewhere.
type JWTConfig struct {
	Enabled bool
	Secret  string
	Issuer  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ChatConfig tunes message deduplication and the legacy Redis message cache.
type ChatConfig struct {
	DedupWindow        time.Duration
	MergeWindow        time.Duration
	LegacyCacheEnabled bool
	LegacyCacheKey     string
	LegacyCacheMax     int64
}

// ApprovalsConfig holds SLA defaults and the admin reset guard.
type ApprovalsConfig struct {
	DefaultSLA   time.Duration
	WarnWindow   time.Duration
	AllowReset   bool
	ResetKeyHash string
}

// RealtimeConfig controls push channel reclamation and the optional Kafka fan-out.
type RealtimeConfig struct {
	IdleTimeout       time.Duration
	SweepInterval     time.Duration
	HeartbeatInterval time.Duration
	KafkaBrokers      []string
	KafkaTopic        string
}

// WorkflowsConfig points at the static workflow rule seed.
type WorkflowsConfig struct {
	SeedFile string
}

// ReconcileConfig sizes the fallback reconciliation workers.
type ReconcileConfig struct {
	Workers  int
	Retries  int
	Interval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Enabled: v.GetBool("ENABLE_AUTH"),
		Secret:  v.GetString("JWT_SECRET"),
		Issuer:  v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	legacyMax := v.GetInt64("CHAT_LEGACY_CACHE_MAX")
	if legacyMax <= 0 {
		legacyMax = 5000
	}
	cfg.Chat = ChatConfig{
		DedupWindow:        parseDuration(v.GetString("CHAT_DEDUP_WINDOW"), 5*time.Second),
		MergeWindow:        parseDuration(v.GetString("CHAT_MERGE_WINDOW"), time.Second),
		LegacyCacheEnabled: v.GetBool("CHAT_LEGACY_CACHE_ENABLED"),
		LegacyCacheKey:     v.GetString("CHAT_LEGACY_CACHE_KEY"),
		LegacyCacheMax:     legacyMax,
	}

	cfg.Approvals = ApprovalsConfig{
		DefaultSLA:   parseDuration(v.GetString("APPROVALS_DEFAULT_SLA"), 24*time.Hour),
		WarnWindow:   parseDuration(v.GetString("APPROVALS_WARN_WINDOW"), 4*time.Hour),
		AllowReset:   v.GetBool("APPROVALS_ALLOW_RESET"),
		ResetKeyHash: v.GetString("APPROVALS_RESET_KEY_HASH"),
	}

	cfg.Realtime = RealtimeConfig{
		IdleTimeout:       parseDuration(v.GetString("REALTIME_IDLE_TIMEOUT"), 5*time.Minute),
		SweepInterval:     parseDuration(v.GetString("REALTIME_SWEEP_INTERVAL"), 30*time.Second),
		HeartbeatInterval: parseDuration(v.GetString("REALTIME_HEARTBEAT_INTERVAL"), 25*time.Second),
		KafkaBrokers:      splitAndTrim(v.GetString("REALTIME_KAFKA_BROKERS")),
		KafkaTopic:        v.GetString("REALTIME_KAFKA_TOPIC"),
	}

	cfg.Workflows = WorkflowsConfig{
		SeedFile: v.GetString("WORKFLOWS_SEED_FILE"),
	}

	cfg.Reconcile = ReconcileConfig{
		Workers:  v.GetInt("RECONCILE_WORKERS"),
		Retries:  v.GetInt("RECONCILE_RETRIES"),
		Interval: parseDuration(v.GetString("RECONCILE_INTERVAL"), time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "loan_queries")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_AUTH", false)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CHAT_DEDUP_WINDOW", "5s")
	v.SetDefault("CHAT_MERGE_WINDOW", "1s")
	v.SetDefault("CHAT_LEGACY_CACHE_ENABLED", false)
	v.SetDefault("CHAT_LEGACY_CACHE_KEY", "chat:messages")
	v.SetDefault("CHAT_LEGACY_CACHE_MAX", 5000)

	v.SetDefault("APPROVALS_DEFAULT_SLA", "24h")
	v.SetDefault("APPROVALS_WARN_WINDOW", "4h")
	v.SetDefault("APPROVALS_ALLOW_RESET", false)
	v.SetDefault("APPROVALS_RESET_KEY_HASH", "")

	v.SetDefault("REALTIME_IDLE_TIMEOUT", "5m")
	v.SetDefault("REALTIME_SWEEP_INTERVAL", "30s")
	v.SetDefault("REALTIME_HEARTBEAT_INTERVAL", "25s")
	v.SetDefault("REALTIME_KAFKA_BROKERS", "")
	v.SetDefault("REALTIME_KAFKA_TOPIC", "")

	v.SetDefault("WORKFLOWS_SEED_FILE", "./config/workflows.yaml")

	v.SetDefault("RECONCILE_WORKERS", 1)
	v.SetDefault("RECONCILE_RETRIES", 3)
	v.SetDefault("RECONCILE_INTERVAL", "1m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

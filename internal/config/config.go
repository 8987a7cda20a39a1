package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host            string   `yaml:"host"`
		Port            int      `yaml:"port"`
		Env             string   `yaml:"env"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
		ShutdownTimeout int      `yaml:"shutdown_timeout"` // seconds
	} `yaml:"server"`

	Database struct {
		DSN            string `yaml:"url"`
		MigrationsPath string `yaml:"migrations_path"`
		AutoMigrate    bool   `yaml:"auto_migrate"`
		MaxOpenConns   int    `yaml:"max_open_conns"`
		MaxIdleConns   int    `yaml:"max_idle_conns"`
		SlowQueryMs    int    `yaml:"slow_query_ms"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		// TTL используется только для выпуска сервисных токенов (dev/тесты)
		TTL int `yaml:"ttl"`
	} `yaml:"jwt"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		Driver              string `yaml:"driver"` // memory | redis
		ResponderTTLSeconds int    `yaml:"responder_ttl_seconds"`
	} `yaml:"cache"`

	Matching struct {
		MaxDistanceMeters float64 `yaml:"max_distance_meters"`
		Limit             int     `yaml:"limit"`
	} `yaml:"matching"`

	Fanout struct {
		Mode        string `yaml:"mode"` // sync | outbox
		BatchSize   int    `yaml:"batch_size"`
		Schedule    string `yaml:"schedule"`
		MaxAttempts int    `yaml:"max_attempts"`
		ClaimLimit  int    `yaml:"claim_limit"`
	} `yaml:"fanout"`

	Realtime struct {
		RedisRelay   bool     `yaml:"redis_relay"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic"`
	} `yaml:"realtime"`

	Ingestion struct {
		Enabled  bool   `yaml:"enabled"`
		Schedule string `yaml:"schedule"`
		FeedURL  string `yaml:"feed_url"`
		// Timeout в секундах для HTTP запроса к ленте
		Timeout int `yaml:"timeout"`
	} `yaml:"ingestion"`

	Email struct {
		SMTPHost       string   `yaml:"smtp_host"`
		SMTPPort       int      `yaml:"smtp_port"`
		SMTPUsername   string   `yaml:"smtp_user"`
		SMTPPassword   string   `yaml:"smtp_password"`
		FromEmail      string   `yaml:"from_email"`
		FromName       string   `yaml:"from_name"`
		AlertTo        []string `yaml:"alert_to"`
		AlertThreshold int      `yaml:"alert_threshold"`
	} `yaml:"email"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

var AppConfig *Config

// LoadFromFile читает YAML и заполняет значения по умолчанию
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, cfg.validate()
}

// LoadFromEnv - режим контейнеров и тестов, включается при DATABASE_URL
func LoadFromEnv() (*Config, error) {
	var cfg Config

	cfg.Database.DSN = os.Getenv("DATABASE_URL")
	cfg.Database.AutoMigrate = envBool("AUTO_MIGRATE", true)
	cfg.Database.MigrationsPath = os.Getenv("MIGRATIONS_PATH")
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")

	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Cache.Driver = os.Getenv("CACHE_DRIVER")
	cfg.Fanout.Mode = os.Getenv("FANOUT_MODE")
	cfg.Realtime.RedisRelay = envBool("REDIS_RELAY", false)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Realtime.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.Ingestion.Enabled = envBool("INGESTION_ENABLED", false)
	cfg.Ingestion.FeedURL = os.Getenv("INGESTION_FEED_URL")

	cfg.Email.SMTPHost = os.Getenv("SMTP_HOST")
	if to := os.Getenv("ALERT_EMAILS"); to != "" {
		cfg.Email.AlertTo = strings.Split(to, ",")
	}

	cfg.applyDefaults()
	return &cfg, cfg.validate()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10
	}

	if c.Database.MigrationsPath == "" {
		c.Database.MigrationsPath = "migrations"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.SlowQueryMs == 0 {
		c.Database.SlowQueryMs = 200
	}

	if c.JWT.TTL == 0 {
		c.JWT.TTL = 60
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.ResponderTTLSeconds == 0 {
		c.Cache.ResponderTTLSeconds = 30
	}

	if c.Matching.MaxDistanceMeters == 0 {
		c.Matching.MaxDistanceMeters = 10000
	}
	if c.Matching.Limit == 0 {
		c.Matching.Limit = 5
	}

	if c.Fanout.Mode == "" {
		c.Fanout.Mode = FanoutSync
	}
	if c.Fanout.BatchSize == 0 {
		c.Fanout.BatchSize = 100
	}
	if c.Fanout.Schedule == "" {
		c.Fanout.Schedule = "@every 5s"
	}
	if c.Fanout.MaxAttempts == 0 {
		c.Fanout.MaxAttempts = 5
	}
	if c.Fanout.ClaimLimit == 0 {
		c.Fanout.ClaimLimit = 20
	}

	if c.Realtime.KafkaTopic == "" {
		c.Realtime.KafkaTopic = "disaster-events"
	}

	if c.Ingestion.Schedule == "" {
		c.Ingestion.Schedule = "@every 10m"
	}
	if c.Ingestion.FeedURL == "" {
		c.Ingestion.FeedURL = "https://www.gdacs.org/gdacsapi/api/events/geteventlist/EVENTS4APP"
	}
	if c.Ingestion.Timeout == 0 {
		c.Ingestion.Timeout = 15
	}

	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Email.FromEmail == "" {
		c.Email.FromEmail = "alerts@disaster.local"
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "Disaster Response"
	}
	if c.Email.AlertThreshold == 0 {
		c.Email.AlertThreshold = 8
	}

	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
}

const (
	FanoutSync   = "sync"
	FanoutOutbox = "outbox"
)

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Fanout.Mode != FanoutSync && c.Fanout.Mode != FanoutOutbox {
		return fmt.Errorf("fanout.mode must be %q or %q, got %q", FanoutSync, FanoutOutbox, c.Fanout.Mode)
	}
	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("cache.driver must be memory or redis, got %q", c.Cache.Driver)
	}
	if c.Cache.Driver == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for the redis cache driver")
	}
	if c.Realtime.RedisRelay && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when realtime.redis_relay is on")
	}
	return nil
}

// IsDevelopment - детали 5xx отдаются в ответе только в этом режиме
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) ResponderTTL() time.Duration {
	return time.Duration(c.Cache.ResponderTTLSeconds) * time.Second
}

func LoadConfig() {
	var (
		cfg *Config
		err error
	)

	if os.Getenv("DATABASE_URL") == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}
		log.Printf("Загрузка конфигурации из %s", configPath)
		cfg, err = LoadFromFile(configPath)
	} else {
		log.Println("Загрузка конфигурации из переменных окружения")
		cfg, err = LoadFromEnv()
	}
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	AppConfig = cfg
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

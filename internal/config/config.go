package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort string
	Debug      bool
	Env        string // development / production

	// Upstream API
	APIBaseURL string
	APITimeout time.Duration

	// Circuit breaker
	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64

	// Polling
	PollIntervalActiveSession time.Duration
	PollIntervalHealth        time.Duration
	PollBackoffFactor         float64
	PollBackoffMax            time.Duration

	// 开始行程后的确认轮询
	SessionVerifyDelay time.Duration
	SessionVerifyRetry time.Duration

	// 油价表（YAML，可选）
	FuelPricesFile string

	// Database（可选，为空时不记录行程账本）
	DatabaseURL string

	// Redis（可选，为空时降级查询不使用缓存）
	RedisAddr       string
	RedisPassword   string
	SessionCacheTTL time.Duration

	// MQTT（可选，broker 为空时禁用）
	MQTTBrokerURL  string
	MQTTClientID   string
	MQTTUsername   string
	MQTTPassword   string
	MQTTStartTopic string
	MQTTStopTopic  string
}

func Load() (*Config, error) {
	// 尝试加载 .env 文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:                getEnv("PORT", "4000"),
		Debug:                     getEnvBool("DEBUG", false),
		Env:                       getEnv("ENV", "development"),
		APIBaseURL:                strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:3001"), "/"),
		APITimeout:                getEnvDuration("API_TIMEOUT", 10*time.Second),
		BreakerMaxRequests:        uint32(getEnvInt("BREAKER_MAX_REQUESTS", 3)),
		BreakerInterval:           getEnvDuration("BREAKER_INTERVAL", time.Minute),
		BreakerTimeout:            getEnvDuration("BREAKER_TIMEOUT", 30*time.Second),
		BreakerMinRequests:        uint32(getEnvInt("BREAKER_MIN_REQUESTS", 10)),
		BreakerFailureRatio:       getEnvFloat("BREAKER_FAILURE_RATIO", 0.6),
		PollIntervalActiveSession: getEnvDuration("POLL_INTERVAL_ACTIVE_SESSION", 15*time.Second),
		PollIntervalHealth:        getEnvDuration("POLL_INTERVAL_HEALTH", 10*time.Second),
		PollBackoffFactor:         getEnvFloat("POLL_BACKOFF_FACTOR", 2),
		PollBackoffMax:            getEnvDuration("POLL_BACKOFF_MAX", 2*time.Minute),
		SessionVerifyDelay:        getEnvDuration("SESSION_VERIFY_DELAY", 2*time.Second),
		SessionVerifyRetry:        getEnvDuration("SESSION_VERIFY_RETRY", 5*time.Second),
		FuelPricesFile:            getEnv("FUEL_PRICES_FILE", ""),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		RedisAddr:                 getEnv("REDIS_ADDR", ""),
		RedisPassword:             getEnv("REDIS_PASSWORD", ""),
		SessionCacheTTL:           getEnvDuration("SESSION_CACHE_TTL", 10*time.Second),
		MQTTBrokerURL:             getEnv("MQTT_BROKER_URL", ""),
		MQTTClientID:              getEnv("MQTT_CLIENT_ID", ""),
		MQTTUsername:              getEnv("MQTT_USERNAME", ""),
		MQTTPassword:              getEnv("MQTT_PASSWORD", ""),
		MQTTStartTopic:            getEnv("MQTT_TOPIC_SESSION_START", "carshare/inel00/session/start"),
		MQTTStopTopic:             getEnv("MQTT_TOPIC_SESSION_STOP", "carshare/inel00/session/stop"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API_BASE_URL %q", c.APIBaseURL)
	}
	if c.PollIntervalActiveSession <= 0 || c.PollIntervalHealth <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.PollBackoffFactor < 1 {
		return fmt.Errorf("POLL_BACKOFF_FACTOR must be >= 1, got %v", c.PollBackoffFactor)
	}
	if c.PollBackoffMax < c.PollIntervalActiveSession || c.PollBackoffMax < c.PollIntervalHealth {
		return fmt.Errorf("POLL_BACKOFF_MAX must not be shorter than the poll intervals")
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.BreakerFailureRatio)
	}
	return nil
}

// IsProduction 生产环境（Cookie 加 Secure）
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil && i >= 0 {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}

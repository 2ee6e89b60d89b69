package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Транспорты realtime-канала
const (
	TransportWebSocket = "websocket"
	TransportRedis     = "redis"
	TransportMQTT      = "mqtt"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	HTTPPort  string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Backend Config
	BackendURL     string        `env:"BACKEND_URL"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"15s"`
	BackendRetries int           `env:"BACKEND_RETRIES" envDefault:"3"`

	// Realtime Config
	PushTransport      string `env:"PUSH_TRANSPORT" envDefault:"websocket"`
	RealtimeURL        string `env:"REALTIME_URL"`
	MQTTBroker         string `env:"MQTT_BROKER"`
	MQTTClientID       string `env:"MQTT_CLIENT_ID" envDefault:"emergency-tracker"`
	MQTTUsername       string `env:"MQTT_USERNAME"`
	MQTTPassword       string `env:"MQTT_PASSWORD"`
	MQTTTopicPrefix    string `env:"MQTT_TOPIC_PREFIX" envDefault:"emergency-tracker/"`
	RedisChannelPrefix string `env:"REDIS_CHANNEL_PREFIX" envDefault:"realtime:"`

	PushReconnectMin time.Duration `env:"PUSH_RECONNECT_MIN" envDefault:"1s"`
	PushReconnectMax time.Duration `env:"PUSH_RECONNECT_MAX" envDefault:"30s"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Tracking Config
	PollInterval        time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`
	PollTimeout         time.Duration `env:"POLL_TIMEOUT" envDefault:"5s"`
	LocationInterval    time.Duration `env:"LOCATION_INTERVAL" envDefault:"10s"`
	LocationTimeout     time.Duration `env:"LOCATION_TIMEOUT" envDefault:"5s"`
	LocationPolicy      string        `env:"LOCATION_POLICY" envDefault:"monotonic"`
	TimelineLocationCap int           `env:"TIMELINE_LOCATION_CAP" envDefault:"1"`
	LocalEchoGrace      time.Duration `env:"LOCAL_ECHO_GRACE" envDefault:"30s"`
	ConfirmTimeout      time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"5s"`
	AuthFile            string        `env:"AUTH_FILE"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"500ms"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
		BackendURL:          strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		BackendTimeout:      getEnvAsDuration("BACKEND_TIMEOUT", 15*time.Second),
		BackendRetries:      getEnvAsInt("BACKEND_RETRIES", 3),
		PushTransport:       strings.ToLower(getEnv("PUSH_TRANSPORT", TransportWebSocket)),
		RealtimeURL:         os.Getenv("REALTIME_URL"),
		MQTTBroker:          os.Getenv("MQTT_BROKER"),
		MQTTClientID:        getEnv("MQTT_CLIENT_ID", "emergency-tracker"),
		MQTTUsername:        os.Getenv("MQTT_USERNAME"),
		MQTTPassword:        os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix:     getEnv("MQTT_TOPIC_PREFIX", "emergency-tracker/"),
		RedisChannelPrefix:  getEnv("REDIS_CHANNEL_PREFIX", "realtime:"),
		PushReconnectMin:    getEnvAsDuration("PUSH_RECONNECT_MIN", time.Second),
		PushReconnectMax:    getEnvAsDuration("PUSH_RECONNECT_MAX", 30*time.Second),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvAsInt("REDIS_DB", 0),
		PollInterval:        getEnvAsDuration("POLL_INTERVAL", 3*time.Second),
		PollTimeout:         getEnvAsDuration("POLL_TIMEOUT", 5*time.Second),
		LocationInterval:    getEnvAsDuration("LOCATION_INTERVAL", 10*time.Second),
		LocationTimeout:     getEnvAsDuration("LOCATION_TIMEOUT", 5*time.Second),
		LocationPolicy:      getEnv("LOCATION_POLICY", "monotonic"),
		TimelineLocationCap: getEnvAsInt("TIMELINE_LOCATION_CAP", 1),
		LocalEchoGrace:      getEnvAsDuration("LOCAL_ECHO_GRACE", 30*time.Second),
		ConfirmTimeout:      getEnvAsDuration("CONFIRM_TIMEOUT", 5*time.Second),
		AuthFile:            os.Getenv("AUTH_FILE"),
		WebhookURL:          os.Getenv("WEBHOOK_URL"),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:      getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:   getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:    getEnvAsDuration("WEBHOOK_BASE_DELAY", 500*time.Millisecond),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL environment variable is required")
	}
	switch c.PushTransport {
	case TransportWebSocket:
		if c.RealtimeURL == "" {
			return fmt.Errorf("REALTIME_URL is required for %s transport", TransportWebSocket)
		}
	case TransportMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required for %s transport", TransportMQTT)
		}
	case TransportRedis:
	default:
		return fmt.Errorf("unsupported PUSH_TRANSPORT %q", c.PushTransport)
	}
	switch c.LocationPolicy {
	case "monotonic", "last-write":
	default:
		return fmt.Errorf("unsupported LOCATION_POLICY %q", c.LocationPolicy)
	}
	if c.PollInterval <= 0 || c.LocationInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL and LOCATION_INTERVAL must be positive")
	}
	return nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

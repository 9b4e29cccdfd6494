// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	Auth      AuthConfig      `koanf:"auth"`
	Mirror    MirrorConfig    `koanf:"mirror"`
	Sync      SyncConfig      `koanf:"sync"`
	Identity  IdentityConfig  `koanf:"identity"`
	MQTT      MQTTConfig      `koanf:"mqtt"`
	IDs       IDConfig        `koanf:"ids"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	ConnectAttempts int           `koanf:"connect_attempts"`
}

type RedisConfig struct {
	URL             string `koanf:"url"`
	PoolSize        int    `koanf:"pool_size"`
	MinIdleConns    int    `koanf:"min_idle_conns"`
	ConnectAttempts int    `koanf:"connect_attempts"`
}

// JWTConfig carries the HMAC secret explicitly so each environment can use
// its own key.
type JWTConfig struct {
	Secret            string        `koanf:"secret"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type AuthConfig struct {
	MaxFailedAttempts int `koanf:"max_failed_attempts"`
	LoginRateLimit    int `koanf:"login_rate_limit"`
}

type MirrorConfig struct {
	Backend      string        `koanf:"backend"`
	URI          string        `koanf:"uri"`
	Database     string        `koanf:"database"`
	Collection   string        `koanf:"collection"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
	PushTimeout  time.Duration `koanf:"push_timeout"`
}

type SyncConfig struct {
	CheckpointTTL  time.Duration `koanf:"checkpoint_ttl"`
	BatchesPerHour int           `koanf:"batches_per_hour"`
}

type IdentityConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

type MQTTConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Broker      string `koanf:"broker"`
	ClientID    string `koanf:"client_id"`
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
	TopicPrefix string `koanf:"topic_prefix"`
	QoS         int    `koanf:"qos"`
}

type IDConfig struct {
	SnowflakeNode int64 `koanf:"snowflake_node"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

const (
	MirrorBackendMongo  = "mongo"
	MirrorBackendMemory = "memory"
)

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "roadwatch",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "60s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.connect_attempts":   5,

		"redis.pool_size":        10,
		"redis.min_idle_conns":   5,
		"redis.connect_attempts": 5,

		"jwt.access_token_expire": "24h",
		"jwt.issuer":              "roadwatch",
		"jwt.audience":            "roadwatch-api",

		"auth.max_failed_attempts": 3,
		"auth.login_rate_limit":    10,

		"mirror.backend":       MirrorBackendMongo,
		"mirror.database":      "roadwatch",
		"mirror.collection":    "signalements",
		"mirror.probe_timeout": "3s",
		"mirror.push_timeout":  "10s",

		"sync.checkpoint_ttl":   "24h",
		"sync.batches_per_hour": 30,

		"identity.enabled": false,
		"identity.timeout": "10s",

		"mqtt.enabled":      false,
		"mqtt.client_id":    "roadwatch-api",
		"mqtt.topic_prefix": "roadwatch",
		"mqtt.qos":          1,

		"ids.snowflake_node": 1,

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{"http://localhost:5173"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "roadwatch",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_SECRET":                  "jwt.secret",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"AUTH_MAX_FAILED_ATTEMPTS":    "auth.max_failed_attempts",
	"MIRROR_BACKEND":              "mirror.backend",
	"MIRROR_URI":                  "mirror.uri",
	"MIRROR_DATABASE":             "mirror.database",
	"MIRROR_COLLECTION":           "mirror.collection",
	"MIRROR_PROBE_TIMEOUT":        "mirror.probe_timeout",
	"IDENTITY_ENABLED":            "identity.enabled",
	"IDENTITY_BASE_URL":           "identity.base_url",
	"IDENTITY_API_KEY":            "identity.api_key",
	"MQTT_ENABLED":                "mqtt.enabled",
	"MQTT_BROKER":                 "mqtt.broker",
	"MQTT_USERNAME":               "mqtt.username",
	"MQTT_PASSWORD":               "mqtt.password",
	"SNOWFLAKE_NODE":              "ids.snowflake_node",
	"SYNC_BATCHES_PER_HOUR":       "sync.batches_per_hour",
	"DATABASE_CONNECT_ATTEMPTS":   "database.connect_attempts",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

const minSecretLength = 32

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.JWT.Secret) < minSecretLength {
		return fmt.Errorf(
			"JWT_SECRET is required and must be at least %d bytes",
			minSecretLength,
		)
	}

	if c.JWT.AccessTokenExpire <= 0 {
		return fmt.Errorf("jwt.access_token_expire must be positive")
	}

	if c.Auth.MaxFailedAttempts < 1 {
		return fmt.Errorf("auth.max_failed_attempts must be at least 1")
	}

	switch c.Mirror.Backend {
	case MirrorBackendMongo:
		if c.Mirror.URI == "" {
			return fmt.Errorf("MIRROR_URI is required for the mongo backend")
		}
	case MirrorBackendMemory:
	default:
		return fmt.Errorf("unknown mirror backend %q", c.Mirror.Backend)
	}

	if c.Mirror.ProbeTimeout <= 0 {
		return fmt.Errorf("mirror.probe_timeout must be positive")
	}

	if c.Sync.BatchesPerHour < 1 {
		return fmt.Errorf("sync.batches_per_hour must be at least 1")
	}

	if c.Identity.Enabled && c.Identity.BaseURL == "" {
		return fmt.Errorf("IDENTITY_BASE_URL is required when identity sync is enabled")
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("MQTT_BROKER is required when mqtt is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if c.Mirror.Backend == MirrorBackendMemory {
			return fmt.Errorf("the memory mirror backend is not allowed in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

package config

import (
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgconfig "github.com/weiawesome/wes-io-live/overlay-service/pkg/config"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Session   SessionConfig
	Registry  RegistryConfig
	Redis     RedisConfig
	PubSub    PubSubConfig `mapstructure:"pubsub"`
	Database  DatabaseConfig
	Auth      AuthConfig
	Metrics   MetricsConfig
	WebSocket WebSocketConfig
	ID        IDConfig `mapstructure:"id"`
}

type ServerConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type SessionConfig struct {
	DefaultShow      string        `mapstructure:"default_show"`
	TickerRotation   []string      `mapstructure:"ticker_rotation"`
	RotationInterval time.Duration `mapstructure:"rotation_interval"`
}

type RegistryConfig struct {
	Driver            string // memory or redis
	Prefix            string
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	InstanceID        string        `mapstructure:"instance_id"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type PubSubConfig struct {
	Enabled        bool
	Driver         string // redis or kafka
	ChannelPrefix  string `mapstructure:"channel_prefix"`
	IngestPattern  string `mapstructure:"ingest_pattern"`
	RelaySnapshots bool   `mapstructure:"relay_snapshots"`
	RelayBuffer    int    `mapstructure:"relay_buffer"`
	Kafka          KafkaConfig
}

type KafkaConfig struct {
	Brokers string
	GroupID string `mapstructure:"group_id"`
}

type DatabaseConfig struct {
	Driver   string // memory, sqlite, postgres or mysql
	Host     string
	Port     int
	User     string
	Password string
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string
}

type AuthConfig struct {
	Enabled  bool
	Secret   string
	Issuer   string
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type MetricsConfig struct {
	Enabled  bool
	Endpoint string
	Insecure bool
	Interval time.Duration
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type IDConfig struct {
	Strategy string
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("session.default_show", "variety")
	v.SetDefault("session.ticker_rotation", []string{"ticker", "emote_stats"})
	v.SetDefault("session.rotation_interval", "30s")
	v.SetDefault("registry.driver", "memory")
	v.SetDefault("registry.prefix", "overlay:registry")
	v.SetDefault("registry.key_ttl", "30s")
	v.SetDefault("registry.heartbeat_interval", "10s")
	v.SetDefault("registry.instance_id", "")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.channel_prefix", "overlay")
	v.SetDefault("pubsub.ingest_pattern", "overlay:session:*:events")
	v.SetDefault("pubsub.relay_snapshots", true)
	v.SetDefault("pubsub.relay_buffer", 64)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "overlay-service")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "overlay")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "./data/overlay.db")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "overlay-service")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.endpoint", "localhost:4317")
	v.SetDefault("metrics.insecure", true)
	v.SetDefault("metrics.interval", "15s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_buffer", 16)
	v.SetDefault("id.strategy", "uuid")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("session.default_show", "DEFAULT_SHOW")
	v.BindEnv("registry.driver", "REGISTRY_DRIVER")
	v.BindEnv("registry.instance_id", "INSTANCE_ID")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.enabled", "PUBSUB_ENABLED")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.path", "DB_PATH")
	v.BindEnv("auth.enabled", "AUTH_ENABLED")
	v.BindEnv("auth.secret", "JWT_SECRET")
	v.BindEnv("metrics.enabled", "METRICS_ENABLED")
	v.BindEnv("metrics.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("id.strategy", "ID_STRATEGY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Session.RotationInterval = pkgconfig.Duration(v, "session.rotation_interval", 30*time.Second)
	cfg.Registry.KeyTTL = pkgconfig.Duration(v, "registry.key_ttl", 30*time.Second)
	cfg.Registry.HeartbeatInterval = pkgconfig.Duration(v, "registry.heartbeat_interval", 10*time.Second)
	cfg.Auth.TokenTTL = pkgconfig.Duration(v, "auth.token_ttl", 12*time.Hour)
	cfg.Metrics.Interval = pkgconfig.Duration(v, "metrics.interval", 15*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)

	// Environment lists arrive as one comma separated string.
	if raw := os.Getenv("TICKER_ROTATION"); raw != "" {
		cfg.Session.TickerRotation = splitList(raw)
	}

	if cfg.Registry.InstanceID == "" {
		host, _ := os.Hostname()
		cfg.Registry.InstanceID = host + "-" + uuid.NewString()[:8]
	}

	return &cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package pubsub

import (
	"errors"
	"fmt"
	"time"
)

// Drivers accepted by NewPubSub.
const (
	DriverRedis = "redis"
	DriverKafka = "kafka"
)

var ErrUnknownDriver = errors.New("unknown pubsub driver")

// Config selects and configures the bus backing session ingest and relay.
type Config struct {
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	GroupID    string `mapstructure:"group_id"`
	Partitions int    `mapstructure:"partitions"`
	// TopicPrefix is the channel prefix whose events and snapshots topics
	// are created at startup.
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// normalize fills unset tuning knobs. Addresses are left alone.
func (c Config) normalize() Config {
	if c.Driver == "" {
		c.Driver = DriverRedis
	}
	if c.Redis.PoolSize <= 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.ReadTimeout <= 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout <= 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Kafka.Partitions <= 0 {
		c.Kafka.Partitions = 1
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "overlay-service"
	}
	return c
}

// NewPubSub connects the configured driver. An empty driver selects Redis.
func NewPubSub(cfg Config) (PubSub, error) {
	cfg = cfg.normalize()
	switch cfg.Driver {
	case DriverRedis:
		return NewRedisPubSub(cfg.Redis)
	case DriverKafka:
		return NewKafkaPubSub(cfg.Kafka)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}

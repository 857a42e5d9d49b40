package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source kinds selectable through INVITEGATE_EVENT_SOURCE.
const (
	SourceGateway = "gateway"
	SourceKafka   = "kafka"
	SourceRedis   = "redis"
)

// Errors for the settings the process cannot start without.
var (
	ErrMissingToken   = errors.New("INVITEGATE_BOT_TOKEN is required")
	ErrMissingGuildID = errors.New("INVITEGATE_GUILD_ID is required")
)

type Config struct {
	Server   ServerConfig
	Platform PlatformConfig
	Webhook  WebhookConfig
	Refresh  RefreshConfig
	Source   SourceConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Logging  LoggingConfig
	Workers  WorkerPoolConfig
}

type ServerConfig struct {
	Port int
}

type PlatformConfig struct {
	Token      string
	GuildID    string
	APIURL     string
	GatewayURL string
}

type WebhookConfig struct {
	BaseURL string
	Secret  string
	Timeout time.Duration
}

type RefreshConfig struct {
	Interval time.Duration
}

// SourceConfig selects where membership events come from.
type SourceConfig struct {
	Kind string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// Load reads the configuration from INVITEGATE_-prefixed environment
// variables, applying defaults for everything optional.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INVITEGATE")
	v.AutomaticEnv()

	v.SetDefault("port", 3000)
	v.SetDefault("api_base_url", "http://localhost:8000")
	v.SetDefault("event_source", SourceGateway)
	v.SetDefault("platform_api_url", "https://discord.com/api/v10")
	v.SetDefault("platform_gateway_url", "wss://gateway.discord.gg")
	v.SetDefault("refresh_interval", "5m")
	v.SetDefault("notify_timeout", "10s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("workers", 4)
	v.SetDefault("queue_size", 64)
	v.SetDefault("redis_db", 0)

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetInt("port"),
		},
		Platform: PlatformConfig{
			Token:      v.GetString("bot_token"),
			GuildID:    v.GetString("guild_id"),
			APIURL:     v.GetString("platform_api_url"),
			GatewayURL: v.GetString("platform_gateway_url"),
		},
		Webhook: WebhookConfig{
			BaseURL: v.GetString("api_base_url"),
			Secret:  v.GetString("webhook_secret"),
			Timeout: v.GetDuration("notify_timeout"),
		},
		Refresh: RefreshConfig{
			Interval: v.GetDuration("refresh_interval"),
		},
		Source: SourceConfig{
			Kind: v.GetString("event_source"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka_brokers")),
			Topic:   v.GetString("kafka_topic"),
			GroupID: v.GetString("kafka_group_id"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
			Channel:  v.GetString("redis_channel"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
		Workers: WorkerPoolConfig{
			Size:      v.GetInt("workers"),
			QueueSize: v.GetInt("queue_size"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Platform.Token == "" {
		return ErrMissingToken
	}
	if c.Platform.GuildID == "" {
		return ErrMissingGuildID
	}

	switch c.Source.Kind {
	case SourceGateway:
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("INVITEGATE_KAFKA_BROKERS is required when the event source is kafka")
		}
		if c.Kafka.Topic == "" {
			return errors.New("INVITEGATE_KAFKA_TOPIC is required when the event source is kafka")
		}
		if c.Kafka.GroupID == "" {
			return errors.New("INVITEGATE_KAFKA_GROUP_ID is required when the event source is kafka")
		}
	case SourceRedis:
		if c.Redis.Addr == "" {
			return errors.New("INVITEGATE_REDIS_ADDR is required when the event source is redis")
		}
		if c.Redis.Channel == "" {
			return errors.New("INVITEGATE_REDIS_CHANNEL is required when the event source is redis")
		}
	default:
		return fmt.Errorf("unknown event source %q", c.Source.Kind)
	}

	return nil
}

// splitList turns a comma-separated value into its trimmed, nonempty
// parts.
func splitList(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

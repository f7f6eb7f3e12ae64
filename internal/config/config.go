package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendNATS     = "nats"
	BackendKafka    = "kafka"
	BackendMemory   = "memory"

	AuthJWT    = "jwt"
	AuthHeader = "header"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"chat-relay"`
	InstanceID  string `env:"INSTANCE_ID"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	HTTPAddr    string `env:"HTTP_PORT" envDefault:":8080"`
	ObsHTTPAddr string `env:"HTTP_ADDR" envDefault:":8090"`
	GRPCAddr    string `env:"GRPC_ADDR" envDefault:":9090"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"redis"`
	DatabaseURL  string `env:"DATABASE_URL"`
	StreamMaxLen int64  `env:"STREAM_MAX_LEN" envDefault:"0"`

	BrokerBackend string   `env:"BROKER_BACKEND" envDefault:"redis"`
	NATSURL       string   `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic    string   `env:"KAFKA_TOPIC" envDefault:"chat-room-events"`

	AuthMode    string `env:"AUTH_MODE" envDefault:"jwt"`
	JWTSecret   string `env:"JWT_SECRET"`
	JWTIssuer   string `env:"JWT_ISSUER"`
	JWTAudience string `env:"JWT_AUDIENCE"`

	SendLimit         int           `env:"SEND_LIMIT" envDefault:"20"`
	SendWindow        time.Duration `env:"SEND_WINDOW" envDefault:"60s"`
	HTTPRateLimit     int           `env:"HTTP_RATE_LIMIT" envDefault:"100"`
	PresenceTTL       time.Duration `env:"PRESENCE_TTL" envDefault:"30s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"10s"`
	TypingTimeout     time.Duration `env:"TYPING_TIMEOUT" envDefault:"3s"`
	IOTimeout         time.Duration `env:"IO_TIMEOUT" envDefault:"3s"`
	HealthInterval    time.Duration `env:"HEALTH_INTERVAL" envDefault:"5s"`
	DedupWindow       int           `env:"DEDUP_WINDOW" envDefault:"256"`
	MaxMessageLength  int           `env:"MAX_MESSAGE_LENGTH" envDefault:"1000"`
	HistoryLimit      int           `env:"HISTORY_LIMIT" envDefault:"50"`
	SendQueueSize     int           `env:"SEND_QUEUE_SIZE" envDefault:"128"`

	TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"http://localhost:4318"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.HTTPAddr = fixPort(cfg.HTTPAddr)
	cfg.ObsHTTPAddr = fixPort(cfg.ObsHTTPAddr)
	cfg.GRPCAddr = fixPort(cfg.GRPCAddr)
	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)
	cfg.BrokerBackend = strings.ToLower(cfg.BrokerBackend)
	cfg.AuthMode = strings.ToLower(cfg.AuthMode)
	cfg.InstanceID = instanceID(cfg.InstanceID)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case BackendRedis, BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("STORE_BACKEND=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.BrokerBackend {
	case BackendRedis, BackendNATS, BackendMemory:
	case BackendKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			errs = append(errs, errors.New("BROKER_BACKEND=kafka requires KAFKA_BROKERS and KAFKA_TOPIC"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BROKER_BACKEND %q", c.BrokerBackend))
	}

	switch c.AuthMode {
	case AuthJWT:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("AUTH_MODE=jwt requires JWT_SECRET"))
		}
	case AuthHeader:
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode))
	}

	if c.SendLimit <= 0 || c.SendWindow <= 0 {
		errs = append(errs, errors.New("SEND_LIMIT and SEND_WINDOW must be positive"))
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatInterval >= c.PresenceTTL {
		errs = append(errs, errors.New("HEARTBEAT_INTERVAL must be positive and shorter than PRESENCE_TTL"))
	}
	if c.DedupWindow <= 0 {
		errs = append(errs, errors.New("DEDUP_WINDOW must be positive"))
	}

	return errors.Join(errs...)
}

// NeedsRedis reports whether the relay talks to Redis. Presence and rate
// limits live there unless the whole relay runs in memory.
func (c *Config) NeedsRedis() bool {
	return c.StoreBackend != BackendMemory || c.BrokerBackend != BackendMemory
}

func instanceID(id string) string {
	if id != "" {
		return id
	}
	if host := os.Getenv("HOSTNAME"); host != "" {
		return host
	}
	return uuid.NewString()
}

func fixPort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

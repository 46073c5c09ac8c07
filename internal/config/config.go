package config

import (
	"fmt"
	"strconv"
	"time"
)

// Environment keys read at startup.
const (
	KeyEnv              = "ENV"
	KeyPort             = "PORT"
	KeyServiceName      = "SERVICE_NAME"
	KeyRedisAddr        = "REDIS_ADDR"
	KeyRedisInitTimeout = "REDIS_INIT_TIMEOUT"
	KeyExportType       = "EXPORT_TYPE"
	KeyDisableTracing   = "DISABLE_TRACING"

	KeyOTLPSpanEndpoint = "OTEL_EXPORTER_OTLP_SPAN_ENDPOINT"
	KeyOTLPEndpoint     = "OTEL_EXPORTER_OTLP_ENDPOINT"
	KeyOTLPHeaders      = "OTEL_EXPORTER_OTLP_HEADERS"
	KeyOTLPProtocol     = "OTEL_EXPORTER_OTLP_PROTOCOL"

	KeyJaegerEndpoint  = "OTEL_EXPORTER_JAEGER_ENDPOINT"
	KeyJaegerAgentHost = "OTEL_EXPORTER_JAEGER_AGENT_HOST"
	KeyJaegerAgentPort = "OTEL_EXPORTER_JAEGER_AGENT_PORT"
	KeyJaegerUser      = "OTEL_EXPORTER_JAEGER_USER"
	KeyJaegerPassword  = "OTEL_EXPORTER_JAEGER_PASSWORD"

	KeyNewRelicAPIKey = "NEW_RELIC_API_KEY"
)

const (
	DefaultEnv         = "development"
	DefaultPort        = "7070"
	DefaultServiceName = "CartService"
)

type Config struct {
	Env         string
	ServiceName string
	Port        string

	RedisAddr string
	// RedisInitTimeout bounds backend initialization. Zero means wait for
	// as long as the initialization takes.
	RedisInitTimeout time.Duration

	ExportType     string
	DisableTracing bool

	// Source is the raw environment the typed fields were read from.
	Source Source
}

func Load(src Source) (*Config, error) {
	cfg := &Config{
		Env:            src.Get(KeyEnv),
		ServiceName:    src.Get(KeyServiceName),
		Port:           src.Get(KeyPort),
		RedisAddr:      src.Get(KeyRedisAddr),
		ExportType:     src.Get(KeyExportType),
		DisableTracing: src.Get(KeyDisableTracing) != "",
		Source:         src,
	}

	if raw := src.Get(KeyRedisInitTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", KeyRedisInitTimeout, raw, err)
		}
		cfg.RedisInitTimeout = d
	}

	// Set defaults
	if cfg.Env == "" {
		cfg.Env = DefaultEnv
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load(FromEnv())
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func (c *Config) validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be a TCP port, got %q", KeyPort, c.Port)
	}
	if c.RedisInitTimeout < 0 {
		return fmt.Errorf("%s must not be negative", KeyRedisInitTimeout)
	}
	return nil
}

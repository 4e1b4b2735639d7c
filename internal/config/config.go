package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oriys/rift/internal/domain"
)

// ListenConfig describes the fault-injection proxy listener.
type ListenConfig struct {
	Port     int        `yaml:"port"`
	Protocol string     `yaml:"protocol"` // http, https
	TLS      TLSConfig  `yaml:"tls"`
}

// TLSConfig names cert/key files for the fault-injection listener.
type TLSConfig struct {
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
}

// RouteConfig selects an upstream by request shape, first-match-wins.
type RouteConfig struct {
	Upstream    string            `yaml:"upstream"`
	PathPrefix  string            `yaml:"path_prefix,omitempty"`
	PathExact   string            `yaml:"path_exact,omitempty"`
	PathRegex   string            `yaml:"path_regex,omitempty"`
	Host        string            `yaml:"host,omitempty"` // exact or "*.suffix"
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// ScriptEngineConfig selects the default engine for script_rules that don't
// name one explicitly.
type ScriptEngineConfig struct {
	Engine string `yaml:"engine"` // rhai, lua, javascript, js
}

// RedisFlowStateConfig configures the optional remote flow-state backend.
type RedisFlowStateConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// FlowStateConfig selects and configures the flow-state backend.
type FlowStateConfig struct {
	Backend    string               `yaml:"backend"` // memory, noop, redis
	TTLSeconds int                  `yaml:"ttl_seconds"`
	Redis      RedisFlowStateConfig `yaml:"redis"`
}

// ScriptPoolConfig sizes the bounded worker pool executing compiled scripts.
type ScriptPoolConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
	TimeoutMs int `yaml:"timeout_ms"`
}

// DecisionCacheConfig configures the fault-decision memoization cache.
type DecisionCacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxSize    int  `yaml:"max_size"`
	TTLSeconds int  `yaml:"ttl_seconds"`
}

// RecordingConfig configures the record/replay store behind the
// fault-injection proxy.
type RecordingConfig struct {
	Mode               string                      `yaml:"mode"` // proxyTransparent, proxyOnce, proxyAlways
	PredicateGenerators []domain.PredicateGenerator `yaml:"predicate_generators,omitempty"`
	PersistPath        string                      `yaml:"persist_path,omitempty"`
}

// ConnectionPoolConfig sizes the HTTP client used to reach upstreams.
type ConnectionPoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
	DialTimeout         time.Duration `yaml:"dial_timeout"`
	ResponseTimeout     time.Duration `yaml:"response_timeout"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"` // OTLP/HTTP collector, e.g. localhost:4318
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ObservabilityConfig groups the ambient, cross-cutting settings.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// AdminConfig describes the admin REST surface's bind address.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the runtime configuration model: everything the core reads at
// startup and on POST /admin/reload.
type Config struct {
	Listen         ListenConfig           `yaml:"listen"`
	Admin          AdminConfig            `yaml:"admin"`
	Upstream       string                 `yaml:"upstream,omitempty"`
	Upstreams      map[string]string      `yaml:"upstreams,omitempty"`
	Routing        []RouteConfig          `yaml:"routing,omitempty"`
	Rules          []domain.Rule          `yaml:"rules,omitempty"`
	ScriptRules    []domain.ScriptRule    `yaml:"script_rules,omitempty"`
	ScriptEngine   ScriptEngineConfig     `yaml:"script_engine"`
	FlowState      FlowStateConfig        `yaml:"flow_state"`
	ScriptPool     ScriptPoolConfig       `yaml:"script_pool"`
	DecisionCache  DecisionCacheConfig    `yaml:"decision_cache"`
	Recording      RecordingConfig        `yaml:"recording"`
	ConnectionPool ConnectionPoolConfig   `yaml:"connection_pool"`
	Observability  ObservabilityConfig    `yaml:"observability"`
}

// DefaultConfig returns a Config with sensible defaults for local use.
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			Port:     4546,
			Protocol: "http",
		},
		Admin: AdminConfig{
			Addr: ":2525",
		},
		ScriptEngine: ScriptEngineConfig{
			Engine: "javascript",
		},
		FlowState: FlowStateConfig{
			Backend:    "memory",
			TTLSeconds: 300,
		},
		ScriptPool: ScriptPoolConfig{
			Workers:   8,
			QueueSize: 256,
			TimeoutMs: 2000,
		},
		DecisionCache: DecisionCacheConfig{
			Enabled:    true,
			MaxSize:    10000,
			TTLSeconds: 60,
		},
		Recording: RecordingConfig{
			Mode: "proxyTransparent",
		},
		ConnectionPool: ConnectionPoolConfig{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DialTimeout:         5 * time.Second,
			ResponseTimeout:     30 * time.Second,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:     false,
				Endpoint:    "localhost:4318",
				ServiceName: "riftd",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "rift",
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// Load reads YAML configuration from path, layering it over DefaultConfig.
// A missing file is not an error: the loader returns the defaults, since
// riftd must be runnable with zero config for local smoke testing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			LoadFromEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	LoadFromEnv(cfg)
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides, matching the
// precedence every riftd subcommand expects: file, then environment.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("RIFT_LISTEN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Listen.Port = n
		}
	}
	if v := os.Getenv("RIFT_LISTEN_PROTOCOL"); v != "" {
		cfg.Listen.Protocol = v
	}
	if v := os.Getenv("RIFT_ADMIN_ADDR"); v != "" {
		cfg.Admin.Addr = v
	}
	if v := os.Getenv("RIFT_UPSTREAM"); v != "" {
		cfg.Upstream = v
	}
	if v := os.Getenv("RIFT_SCRIPT_ENGINE"); v != "" {
		cfg.ScriptEngine.Engine = v
	}
	if v := os.Getenv("RIFT_FLOW_STATE_BACKEND"); v != "" {
		cfg.FlowState.Backend = v
	}
	if v := os.Getenv("RIFT_FLOW_STATE_REDIS_ADDR"); v != "" {
		cfg.FlowState.Redis.Addr = v
		cfg.FlowState.Backend = "redis"
	}
	if v := os.Getenv("RIFT_SCRIPT_POOL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ScriptPool.Workers = n
		}
	}
	if v := os.Getenv("RIFT_DECISION_CACHE_ENABLED"); v != "" {
		cfg.DecisionCache.Enabled = parseBool(v)
	}
	if v := os.Getenv("RIFT_RECORDING_MODE"); v != "" {
		cfg.Recording.Mode = v
	}
	if v := os.Getenv("RIFT_RECORDING_PERSIST_PATH"); v != "" {
		cfg.Recording.PersistPath = v
	}
	if v := os.Getenv("RIFT_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("RIFT_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("RIFT_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("RIFT_LOG_LEVEL"); v != "" {
		cfg.Observability.Logging.Level = v
	}
	if v := os.Getenv("RIFT_LOG_FORMAT"); v != "" {
		cfg.Observability.Logging.Format = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}

package flowstore

import (
	"fmt"
	"time"

	"github.com/oriys/rift/internal/config"
)

// New builds the configured flow-state backend.
func New(cfg config.FlowStateConfig) (Store, error) {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	switch cfg.Backend {
	case "", "noop":
		return NewNoopStore(), nil
	case "memory":
		return NewMemoryStore(ttl), nil
	case "redis":
		return NewRedisStore(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, ttl)
	default:
		return nil, fmt.Errorf("flowstore: unknown backend %q", cfg.Backend)
	}
}

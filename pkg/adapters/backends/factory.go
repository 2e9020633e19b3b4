package backends

import (
	"fmt"
	"time"

	eventsmemory "github.com/aescanero/scriptflow/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/scriptflow/pkg/adapters/events/redis"
	storagememory "github.com/aescanero/scriptflow/pkg/adapters/storage/memory"
	storageredis "github.com/aescanero/scriptflow/pkg/adapters/storage/redis"
	"github.com/aescanero/scriptflow/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend names
const (
	Memory = "memory"
	Redis  = "redis"
)

// Config selects and configures the storage and event backends
type Config struct {
	Storage      string
	Events       string
	Redis        *redis.Client
	RunTTL       time.Duration
	StreamMaxLen int64
	Logger       *zap.Logger
}

// NewRunStorage creates the run storage named by cfg.Storage
func NewRunStorage(cfg *Config) (ports.RunStorage, error) {
	switch cfg.Storage {
	case Memory, "":
		return storagememory.NewInMemoryRunStorage(), nil
	case Redis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis storage requires a redis client")
		}
		return storageredis.NewRunStorage(cfg.Redis, cfg.RunTTL, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage)
	}
}

// NewEventBus creates the event bus named by cfg.Events
func NewEventBus(cfg *Config) (ports.EventBus, error) {
	switch cfg.Events {
	case Memory, "":
		return eventsmemory.NewInMemoryEventBus(), nil
	case Redis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis events require a redis client")
		}
		return eventsredis.NewStreamsEventBus(cfg.Redis, cfg.StreamMaxLen, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported events backend: %s", cfg.Events)
	}
}

package kv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Driver — имя адаптера Store.
type Driver string

const (
	DriverRedis    Driver = "redis"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

// Config — конфигурация выбора адаптера.
type Config struct {
	// Driver — redis | postgres | memory.
	Driver Driver

	// RedisURL — URL для DriverRedis.
	RedisURL string

	// Pool — пул соединений для DriverPostgres.
	Pool *pgxpool.Pool
}

// Open создаёт Store согласно конфигурации.
//
// Выбор происходит ровно один раз на старте процесса; дальше весь код
// работает через интерфейс Store без ветвлений по типу бэкенда.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case DriverRedis:
		return NewRedis(ctx, cfg.RedisURL)
	case DriverPostgres:
		if cfg.Pool == nil {
			return nil, fmt.Errorf("%w: postgres driver requires a pool", ErrUnknownDriver)
		}
		return NewPostgres(ctx, cfg.Pool)
	case DriverMemory:
		return NewMemory(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Package bootstrap opens the backing services shared by the api and the
// notifier binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-meatshop-orders/internal/config"
	"github.com/ariefcatur/go-meatshop-orders/internal/postgres"
	"github.com/ariefcatur/go-meatshop-orders/internal/redisx"
	"github.com/ariefcatur/go-meatshop-orders/internal/sqlite"
	"github.com/ariefcatur/go-meatshop-orders/internal/store"
	"go.uber.org/zap"
)

// OpenStore builds the repositories on the configured driver. The returned
// func releases the connection.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.Repositories, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.ServiceName)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		docs := &postgres.Documents{DB: db}
		if err := docs.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("store ready", zap.String("driver", cfg.StoreDriver))
		return store.NewRepositories(docs), db.Close, nil
	case config.DriverSQLite:
		docs, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open: %w", err)
		}
		logger.Info("store ready", zap.String("driver", cfg.StoreDriver), zap.String("path", cfg.SQLitePath))
		return store.NewRepositories(docs), func() { _ = docs.Close() }, nil
	default:
		logger.Info("store ready", zap.String("driver", config.DriverMemory))
		return store.NewMemoryRepositories(), func() {}, nil
	}
}

// OpenCache connects to redis when REDIS_ADDR is set. A nil cache is valid
// and turns every cache call into a no-op.
func OpenCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redisx.Cache, func(), error) {
	rdb, err := redisx.New(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("redis connect: %w", err)
	}
	if rdb == nil {
		logger.Info("redis disabled")
		return nil, func() {}, nil
	}
	return redisx.NewCache(rdb, logger), func() { _ = rdb.Close() }, nil
}

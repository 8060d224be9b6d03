package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"attendance-backend/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens the pool and verifies the server answers a ping.
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}

	log.Printf("[DB] Connected to %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	return pool, nil
}

// Package bootstrap builds the shared set of adapters (database pools,
// Redis client, chain client, queue, dead-letter store, token cache)
// every cmd/* binary wires up the same way, so each main.go only differs
// in which worker/poller it runs on top of them.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/csic-platform/eth-indexer/internal/chain"
	"github.com/csic-platform/eth-indexer/internal/config"
	"github.com/csic-platform/eth-indexer/internal/deadletter"
	"github.com/csic-platform/eth-indexer/internal/decode"
	"github.com/csic-platform/eth-indexer/internal/logging"
	"github.com/csic-platform/eth-indexer/internal/ports"
	"github.com/csic-platform/eth-indexer/internal/queue"
	"github.com/csic-platform/eth-indexer/internal/store"
	"github.com/csic-platform/eth-indexer/internal/tokencache"
)

// Deps bundles the adapters most cmd/* binaries need.
type Deps struct {
	Config   *config.Config
	Log      *logging.Logger
	SQL      *sql.DB
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Chain    *chain.Client
	Queue    ports.Queue
	DeadLet  ports.DeadLetterStore
	Tokens   ports.TokenCache
	Store    *store.Store
	Pools    *decode.PoolResolver
}

// ChainMode selects which configured endpoint a binary dials: workers
// and the backfill CLI only ever make request/response calls (HTTP is
// enough and cheaper to load-balance), while pollers need a
// subscription-capable transport (WS).
type ChainMode int

const (
	ChainModeHTTP ChainMode = iota
	ChainModeWS
)

// Build loads config and wires every shared adapter, dialing the chain
// endpoint appropriate for mode.
func Build(ctx context.Context, mode ChainMode) (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	chainEndpoint := cfg.Chain.HTTPEndpoint
	if mode == ChainModeWS {
		chainEndpoint = cfg.Chain.WSEndpoint
	}

	log, err := logging.New(logging.Config{Level: cfg.App.LogLevel, Environment: cfg.App.Environment})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open sql database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sql database: %w", err)
	}

	pool, err := pgxpool.New(ctx, pgxDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddress(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	chainClient, err := chain.New(ctx, chainEndpoint, cfg.Chain.MaxRetries, time.Duration(cfg.Chain.RetryBaseDelay)*time.Millisecond, log)
	if err != nil {
		return nil, fmt.Errorf("build chain client: %w", err)
	}

	q := queue.New(redisClient, queue.Config{
		BlockJobList:     cfg.Queue.BlockJobList,
		LogJobList:       cfg.Queue.LogJobList,
		PayloadKeyPrefix: cfg.Queue.PayloadKeyPrefix,
		PayloadTTL:       time.Duration(cfg.Queue.PayloadTTL) * time.Second,
	})

	deadLet := deadletter.New(sqlDB, q, log)

	tokens := tokencache.New(sqlDB, redisClient, chainClient, tokencache.Config{
		OracleURL: cfg.Price.OracleURL,
		CacheTTL:  time.Duration(cfg.Price.CacheTTL) * time.Second,
	}, log)

	st := store.New(pool)
	pools := decode.NewPoolResolver(chainClient)

	return &Deps{
		Config: cfg, Log: log, SQL: sqlDB, Pool: pool, Redis: redisClient,
		Chain: chainClient, Queue: q, DeadLet: deadLet, Tokens: tokens, Store: st, Pools: pools,
	}, nil
}

func pgxDSN(cfg *config.Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port,
		cfg.Database.Database, cfg.Database.SSLMode)
}

// Close tears down every pooled connection. Call via defer after Build
// succeeds.
func (d *Deps) Close() {
	d.Pool.Close()
	_ = d.SQL.Close()
	_ = d.Redis.Close()
}

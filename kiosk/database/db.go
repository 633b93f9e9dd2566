package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"time"

	"log/slog"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
	"github.com/smartvendoplus/smartvendo/kiosk/logger"
	"github.com/uptrace/bun"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	defaultConnTimeout   = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = time.Second
)

type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
}

type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	// Retry the initial reachability check; the kiosk often boots faster
	// than the local postgres service.
	var conn net.Conn
	var err error

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	for i := 0; i < defaultMaxRetries; i++ {
		conn, err = net.DialTimeout("tcp", addr, defaultConnTimeout)
		if err == nil {
			break
		}
		time.Sleep(defaultRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("database server unreachable after %d attempts: %w", defaultMaxRetries, err)
	}
	defer conn.Close()

	poolConfig, err := pgxpool.ParseConfig(buildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxLifetime) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{pool: pool, bunDB: newBunDB(pool)}, nil
}

func buildConnString(cfg DBConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?connect_timeout=5",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)
}

func newBunDB(pool *pgxpool.Pool) *bun.DB {
	sslMode := os.Getenv("PG_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pool.Config().ConnConfig.User,
		pool.Config().ConnConfig.Password,
		pool.Config().ConnConfig.Host,
		pool.Config().ConnConfig.Port,
		pool.Config().ConnConfig.Database,
		sslMode,
	)

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

// ExecWithLog runs raw SQL through the pgx pool, logging the statement and
// its duration.
func (db *DB) ExecWithLog(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	start := time.Now()
	result, err := db.pool.Exec(ctx, sql, args...)
	logger.LogQuery(sql, time.Since(start), err)
	return result, err
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.bunDB != nil {
		db.bunDB.Close()
	}
}

// Ping verifies both database connections are working.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pgxpool ping failed: %w", err)
	}
	if err := db.bunDB.PingContext(ctx); err != nil {
		return fmt.Errorf("bun ping failed: %w", err)
	}
	return nil
}

// InitializeSchema creates all required tables, indexes, and the default
// reward catalog.
func (db *DB) InitializeSchema(ctx context.Context) error {
	tables := []interface{}{
		(*models.Account)(nil),
		(*models.Reward)(nil),
		(*models.DepositRecord)(nil),
		(*models.RedemptionRecord)(nil),
		(*models.SystemLog)(nil),
	}

	for _, model := range tables {
		_, err := db.bunDB.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_card_uid ON accounts(card_uid);",
		"CREATE INDEX IF NOT EXISTS idx_accounts_active ON accounts(active);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_rewards_name ON rewards(name);",
		"CREATE INDEX IF NOT EXISTS idx_rewards_active_name ON rewards(name) WHERE active;",
		"CREATE INDEX IF NOT EXISTS idx_deposits_account_id ON deposits(account_id);",
		"CREATE INDEX IF NOT EXISTS idx_deposits_created_at ON deposits(created_at);",
		"CREATE INDEX IF NOT EXISTS idx_redemptions_account_id ON redemptions(account_id);",
		"CREATE INDEX IF NOT EXISTS idx_redemptions_reward_id ON redemptions(reward_id);",
		"CREATE INDEX IF NOT EXISTS idx_system_logs_event_type ON system_logs(event_type);",
		"CREATE INDEX IF NOT EXISTS idx_system_logs_created_at ON system_logs(created_at);",
	}

	for _, idx := range indexes {
		if _, err := db.ExecWithLog(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	// Balance and stock may never go negative, whatever path writes them.
	constraints := []string{
		`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'accounts_balance_non_negative') THEN
				ALTER TABLE accounts ADD CONSTRAINT accounts_balance_non_negative CHECK (balance >= 0);
			END IF;
		END $$;`,
		`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'rewards_stock_non_negative') THEN
				ALTER TABLE rewards ADD CONSTRAINT rewards_stock_non_negative CHECK (stock >= 0);
			END IF;
		END $$;`,
		`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'rewards_cost_positive') THEN
				ALTER TABLE rewards ADD CONSTRAINT rewards_cost_positive CHECK (cost > 0);
			END IF;
		END $$;`,
	}

	for _, c := range constraints {
		if _, err := db.ExecWithLog(ctx, c); err != nil {
			return fmt.Errorf("failed to add constraint: %w", err)
		}
	}

	if err := db.InitializeRewardData(ctx); err != nil {
		return fmt.Errorf("failed to initialize reward data: %w", err)
	}

	return nil
}

// InitializeRewardData seeds the default reward catalog. Existing rows are
// left untouched so admin edits survive restarts.
func (db *DB) InitializeRewardData(ctx context.Context) error {
	rewards := []struct {
		Name        string
		DisplayName string
		ImageRef    string
		Cost        int64
		Stock       int64
	}{
		{"pencil", "Pencil", "pencil.png", 100, 50},
		{"eraser", "Eraser", "eraser.png", 150, 30},
		{"ballpen", "Ballpen", "ballpen.png", 100, 40},
		{"marker", "Marker", "marker.png", 200, 20},
	}

	insertSQL := `
		INSERT INTO rewards (name, display_name, image_ref, cost, stock, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO NOTHING;
	`

	for _, r := range rewards {
		if _, err := db.ExecWithLog(ctx, insertSQL,
			r.Name, r.DisplayName, r.ImageRef, r.Cost, r.Stock); err != nil {
			return fmt.Errorf("failed to seed reward %s: %w", r.Name, err)
		}
	}

	slog.Info("Default reward catalog seeded", slog.Int("count", len(rewards)))
	return nil
}

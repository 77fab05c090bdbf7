package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aquamarinepk/aqm"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const schema = `
CREATE TABLE IF NOT EXISTS client_state (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DB owns the database/sql handle opened through the pgx driver.
type DB struct {
	db     *sql.DB
	logger aqm.Logger
	config *aqm.Config
}

func NewDB(config *aqm.Config, logger aqm.Logger) *DB {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &DB{
		logger: logger,
		config: config,
	}
}

func (d *DB) Start(ctx context.Context) error {
	connStr, _ := d.config.GetString("db.postgres.url")
	if connStr == "" {
		return fmt.Errorf("db.postgres.url not configured")
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("cannot open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("cannot ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("cannot create client_state table: %w", err)
	}

	d.db = db
	d.logger.Info("connected to postgres")
	return nil
}

func (d *DB) Stop(ctx context.Context) error {
	if d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("cannot close postgres connection: %w", err)
	}
	d.logger.Info("disconnected from postgres")
	return nil
}

func (d *DB) Handle() *sql.DB {
	return d.db
}

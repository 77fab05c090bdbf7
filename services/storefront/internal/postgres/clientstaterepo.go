package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/appetiteclub/storefront/services/storefront/internal/clientstate"
)

// ClientStateRepo implements clientstate.Store on the client_state table.
type ClientStateRepo struct {
	db *sql.DB
}

func NewClientStateRepo(db *sql.DB) *ClientStateRepo {
	return &ClientStateRepo{db: db}
}

func (r *ClientStateRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, clientstate.ErrNotFound
		}
		return nil, fmt.Errorf("cannot get client state: %w", err)
	}
	return value, nil
}

func (r *ClientStateRepo) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO client_state (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("cannot put client state: %w", err)
	}
	return nil
}

func (r *ClientStateRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = $1`, key); err != nil {
		return fmt.Errorf("cannot delete client state: %w", err)
	}
	return nil
}

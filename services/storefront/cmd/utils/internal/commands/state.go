package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/services/storefront/internal/clientstate"
)

// stateKeys lists every key the storefront persists.
var stateKeys = []string{
	clientstate.CartKey,
	clientstate.AuthTokenKey,
	clientstate.AuthUserKey,
	clientstate.ThemeKey,
}

// ResetState deletes the persisted cart, session and theme.
func ResetState(ctx context.Context, store clientstate.Store, logger aqm.Logger) error {
	logger.Info("clearing persisted client state")

	for _, key := range stateKeys {
		if err := store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		logger.Info("client state cleared", "key", key)
	}
	return nil
}

// ShowState prints each persisted key and the size of its value. The auth
// token itself is never printed.
func ShowState(ctx context.Context, store clientstate.Store, w io.Writer) error {
	for _, key := range stateKeys {
		value, err := store.Get(ctx, key)
		switch {
		case errors.Is(err, clientstate.ErrNotFound):
			fmt.Fprintf(w, "%-20s (unset)\n", key)
		case err != nil:
			return fmt.Errorf("read %s: %w", key, err)
		case key == clientstate.AuthTokenKey:
			fmt.Fprintf(w, "%-20s %d bytes\n", key, len(value))
		default:
			fmt.Fprintf(w, "%-20s %d bytes %s\n", key, len(value), value)
		}
	}
	return nil
}

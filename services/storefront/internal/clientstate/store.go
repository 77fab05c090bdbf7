package clientstate

import (
	"context"
	"errors"
)

// Keys under which the storefront keeps its durable state.
const (
	CartKey      = "dessy69-cart"
	AuthTokenKey = "dessy69-auth-token"
	AuthUserKey  = "dessy69-auth"
	ThemeKey     = "dessy69-theme"
)

var ErrNotFound = errors.New("client state not found")

// Store keeps opaque blobs by key. Put overwrites the whole value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

package realtime

import (
	"context"
	"time"

	"github.com/aquamarinepk/aqm/events"

	"github.com/appetiteclub/storefront/pkg"
)

// Transport is one live broker connection.
type Transport interface {
	events.Publisher
	events.Subscriber
	Unsubscribe(topic string) error
	IsConnected() bool
	Close() error
}

// Hooks report connection state changes of a Transport.
type Hooks struct {
	OnDisconnect func(err error)
	OnReconnect  func()
	OnClosed     func()
}

// Dialer opens a Transport. It is called once per connect attempt.
type Dialer func(ctx context.Context, hooks Hooks) (Transport, error)

// NATSDialer dials the broker at url. The NATS client retries on its own
// after a drop, with the same bounded backoff the channel uses.
func NATSDialer(url, name string, attempts int, timeout time.Duration) Dialer {
	return func(ctx context.Context, hooks Hooks) (Transport, error) {
		client, err := pkg.NewNATSClient(pkg.NATSConfig{
			URL:           url,
			Name:          name,
			MaxReconnects: attempts,
			ReconnectDelay: func(attempt int) time.Duration {
				return Backoff(attempt)
			},
			Timeout:      timeout,
			OnDisconnect: hooks.OnDisconnect,
			OnReconnect:  hooks.OnReconnect,
			OnClosed:     hooks.OnClosed,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

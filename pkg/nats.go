package pkg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm/events"
	"github.com/nats-io/nats.go"
)

// NATSConfig configures a NATSClient connection.
type NATSConfig struct {
	URL            string
	Name           string
	MaxReconnects  int                              // Bounded automatic reconnect attempts
	ReconnectDelay func(attempt int) time.Duration // Delay before each reconnect attempt
	Timeout        time.Duration                    // Dial timeout

	OnDisconnect func(err error)
	OnReconnect  func()
	OnClosed     func()
}

// NATSClient is a publisher and subscriber sharing one NATS connection.
// Subscriptions are tracked per topic so they can be released individually.
type NATSClient struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

func NewNATSClient(cfg NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, nats.Timeout(cfg.Timeout))
	}
	if cfg.ReconnectDelay != nil {
		opts = append(opts, nats.CustomReconnectDelay(cfg.ReconnectDelay))
	}
	if cfg.OnDisconnect != nil {
		opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			cfg.OnDisconnect(err)
		}))
	}
	if cfg.OnReconnect != nil {
		opts = append(opts, nats.ReconnectHandler(func(_ *nats.Conn) {
			cfg.OnReconnect()
		}))
	}
	if cfg.OnClosed != nil {
		opts = append(opts, nats.ClosedHandler(func(_ *nats.Conn) {
			cfg.OnClosed()
		}))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSClient{
		conn: conn,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

func (c *NATSClient) Publish(ctx context.Context, topic string, msg []byte) error {
	return c.conn.Publish(topic, msg)
}

// Subscribe implements events.Subscriber. A topic is subscribed at most once;
// subscribing again replaces the previous handler.
func (c *NATSClient) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.subs[topic]; ok {
		_ = existing.Unsubscribe()
		delete(c.subs, topic)
	}

	sub, err := c.conn.Subscribe(topic, func(msg *nats.Msg) {
		_ = handler(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	c.subs[topic] = sub
	return nil
}

func (c *NATSClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subs[topic]
	if !ok {
		return nil
	}
	delete(c.subs, topic)
	return sub.Unsubscribe()
}

func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

func (c *NATSClient) Close() error {
	c.mu.Lock()
	c.subs = make(map[string]*nats.Subscription)
	c.mu.Unlock()

	c.conn.Close()
	return nil
}

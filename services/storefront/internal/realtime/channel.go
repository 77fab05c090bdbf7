package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/appetiteclub/storefront/pkg/event"
)

const (
	DefaultAttempts = 5
	DefaultTimeout  = 10 * time.Second
)

var ErrNotConnected = errors.New("realtime channel not connected")

// Handler receives the data of one pushed event.
type Handler func(data json.RawMessage)

type HandlerID string

type registration struct {
	id HandlerID
	fn Handler
}

type Options struct {
	Prefix   string
	Attempts int
	Dial     Dialer
	Logger   aqm.Logger
}

// Channel is the process-wide connection to the push broker. It is created
// once and handed to every consumer.
type Channel struct {
	prefix   string
	clientID string
	attempts int
	dial     Dialer
	backoff  func(attempt int) time.Duration
	logger   aqm.Logger

	dialMu sync.Mutex

	mu           sync.Mutex
	transport    Transport
	generation   int
	disconnected bool
	connecting   bool
	handlers     map[string][]registration
	subscribed   map[string]bool

	dispatchMu sync.Mutex
}

func NewChannel(opts Options) *Channel {
	if opts.Logger == nil {
		opts.Logger = aqm.NewNoopLogger()
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Prefix == "" {
		opts.Prefix = "dessy"
	}
	clientID := uuid.NewString()
	return &Channel{
		prefix:     opts.Prefix,
		clientID:   clientID,
		attempts:   opts.Attempts,
		dial:       opts.Dial,
		backoff:    Backoff,
		logger:     opts.Logger.With("component", "realtime", "client_id", clientID),
		handlers:   make(map[string][]registration),
		subscribed: make(map[string]bool),
	}
}

func (c *Channel) ClientID() string {
	return c.clientID
}

// Start begins connecting in the background so startup is not blocked on
// the broker. It also reopens a channel closed by Disconnect.
func (c *Channel) Start(ctx context.Context) error {
	c.logger.Info("starting realtime channel")
	c.mu.Lock()
	c.disconnected = false
	c.mu.Unlock()
	c.connectAsync()
	return nil
}

func (c *Channel) Stop(ctx context.Context) error {
	c.Disconnect()
	return nil
}

// Connect dials the broker unless a connection already exists. After
// Disconnect it fails with ErrNotConnected until Start is called again.
func (c *Channel) Connect(ctx context.Context) error {
	if c.dial == nil {
		return fmt.Errorf("realtime dialer not configured")
	}

	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	if c.transport != nil {
		c.mu.Unlock()
		return nil
	}
	if c.disconnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	t, err := c.dialWithRetry(ctx, c.hooks(gen))
	if err != nil {
		c.logger.Error("realtime reconnect failed", "error", err)
		return err
	}

	c.mu.Lock()
	if c.disconnected || c.generation != gen {
		c.mu.Unlock()
		t.Close()
		return ErrNotConnected
	}
	c.transport = t
	c.subscribed = make(map[string]bool)
	pending := make([]string, 0, len(c.handlers))
	for evt := range c.handlers {
		pending = append(pending, evt)
	}
	c.mu.Unlock()

	for _, evt := range pending {
		c.subscribe(ctx, evt)
	}

	c.logger.Info("realtime connected")
	return nil
}

func (c *Channel) dialWithRetry(ctx context.Context, hooks Hooks) (Transport, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		t, err := c.dial(ctx, hooks)
		if err == nil {
			return t, nil
		}
		lastErr = err
		c.logger.Error("realtime connection error", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("connect after %d attempts: %w", c.attempts, lastErr)
}

func (c *Channel) hooks(gen int) Hooks {
	return Hooks{
		OnDisconnect: func(err error) {
			c.logger.Info("realtime disconnected", "error", err)
		},
		OnReconnect: func() {
			c.logger.Info("realtime reconnected")
		},
		OnClosed: func() {
			c.handleClosed(gen)
		},
	}
}

// handleClosed runs when the broker side ends the connection for good.
// Unless Disconnect was called the channel dials again.
func (c *Channel) handleClosed(gen int) {
	c.mu.Lock()
	if c.disconnected || c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.transport = nil
	c.subscribed = make(map[string]bool)
	c.mu.Unlock()

	c.logger.Info("realtime connection closed by server, reconnecting")
	c.connectAsync()
}

func (c *Channel) connectAsync() {
	c.mu.Lock()
	if c.connecting || c.disconnected || c.transport != nil {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.connecting = false
			c.mu.Unlock()
		}()
		_ = c.Connect(context.Background())
	}()
}

// Disconnect closes the connection and stops any reconnection, including
// the lazy one triggered by Emit and On. Registered handlers are kept for
// the next Start.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.disconnected = true
	t := c.transport
	c.transport = nil
	c.subscribed = make(map[string]bool)
	c.mu.Unlock()

	if t != nil {
		if err := t.Close(); err != nil {
			c.logger.Error("cannot close realtime transport", "error", err)
		}
		c.logger.Info("realtime disconnected manually")
	}
}

func (c *Channel) Connected() bool {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	return t != nil && t.IsConnected()
}

// Emit publishes an event. While disconnected the event is dropped.
func (c *Channel) Emit(evt string, payload interface{}) {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()

	if t == nil || !t.IsConnected() {
		c.logger.Debug("dropping event while disconnected", "event", evt)
		c.connectAsync()
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("cannot encode event", "event", evt, "error", err)
		return
	}
	msg, err := json.Marshal(event.Envelope{ClientID: c.clientID, Event: evt, Data: data})
	if err != nil {
		c.logger.Error("cannot encode envelope", "event", evt, "error", err)
		return
	}

	if err := t.Publish(context.Background(), event.ServerSubject(c.prefix, evt), msg); err != nil {
		c.logger.Error("cannot emit event", "event", evt, "error", err)
	}
}

// On registers h for evt. Handlers of one event run in registration order.
func (c *Channel) On(evt string, h Handler) HandlerID {
	id := HandlerID(uuid.NewString())

	c.mu.Lock()
	c.handlers[evt] = append(c.handlers[evt], registration{id: id, fn: h})
	t := c.transport
	needSub := t != nil && !c.subscribed[evt]
	c.mu.Unlock()

	if needSub {
		c.subscribe(context.Background(), evt)
	} else if t == nil {
		c.connectAsync()
	}
	return id
}

// Off removes the given handlers of evt, or all of them when no id is given.
func (c *Channel) Off(evt string, ids ...HandlerID) {
	c.mu.Lock()
	if len(ids) == 0 {
		delete(c.handlers, evt)
	} else {
		drop := make(map[HandlerID]bool, len(ids))
		for _, id := range ids {
			drop[id] = true
		}
		kept := c.handlers[evt][:0:0]
		for _, r := range c.handlers[evt] {
			if !drop[r.id] {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(c.handlers, evt)
		} else {
			c.handlers[evt] = kept
		}
	}

	_, stillHandled := c.handlers[evt]
	t := c.transport
	release := t != nil && !stillHandled && c.subscribed[evt]
	if release {
		delete(c.subscribed, evt)
	}
	c.mu.Unlock()

	if release {
		for _, topic := range c.topics(evt) {
			if err := t.Unsubscribe(topic); err != nil {
				c.logger.Error("cannot unsubscribe", "topic", topic, "error", err)
			}
		}
	}
}

func (c *Channel) topics(evt string) []string {
	return []string{
		event.ClientSubject(c.prefix, c.clientID, evt),
		event.BroadcastSubject(c.prefix, evt),
	}
}

func (c *Channel) subscribe(ctx context.Context, evt string) {
	c.mu.Lock()
	t := c.transport
	if t == nil || c.subscribed[evt] {
		c.mu.Unlock()
		return
	}
	c.subscribed[evt] = true
	c.mu.Unlock()

	for _, topic := range c.topics(evt) {
		err := t.Subscribe(ctx, topic, func(_ context.Context, msg []byte) error {
			var env event.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				c.logger.Error("cannot decode pushed event", "event", evt, "error", err)
				return err
			}
			c.dispatch(evt, env.Data)
			return nil
		})
		if err != nil {
			c.logger.Error("cannot subscribe", "topic", topic, "error", err)
		}
	}
}

func (c *Channel) dispatch(evt string, data json.RawMessage) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	regs := append([]registration(nil), c.handlers[evt]...)
	c.mu.Unlock()

	for _, r := range regs {
		r.fn(data)
	}
}

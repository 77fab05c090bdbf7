package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/pkg/event"
	"github.com/appetiteclub/storefront/services/storefront/internal/api"
	"github.com/appetiteclub/storefront/services/storefront/internal/realtime"
)

const DefaultTTL = 5 * time.Minute

type CategorySource interface {
	List(ctx context.Context, includeInactive bool) ([]api.Category, error)
}

type MenuSource interface {
	List(ctx context.Context, filter api.MenuFilter) ([]api.MenuItem, error)
	Get(ctx context.Context, id string) (*api.MenuItem, error)
}

type Channel interface {
	On(evt string, h realtime.Handler) realtime.HandlerID
	Off(evt string, ids ...realtime.HandlerID)
}

type entry[T any] struct {
	value   T
	expires time.Time
}

// Cache keeps category and menu listings for a TTL. Catalog push events
// drop everything.
type Cache struct {
	categories CategorySource
	menu       MenuSource
	ttl        time.Duration
	now        func() time.Time
	logger     aqm.Logger

	mu       sync.RWMutex
	cats     map[bool]entry[[]api.Category]
	lists    map[api.MenuFilter]entry[[]api.MenuItem]
	items    map[string]entry[api.MenuItem]
	handlers map[string]realtime.HandlerID
}

func NewCache(categories CategorySource, menu MenuSource, ttl time.Duration, logger aqm.Logger) *Cache {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		categories: categories,
		menu:       menu,
		ttl:        ttl,
		now:        time.Now,
		logger:     logger,
		handlers:   make(map[string]realtime.HandlerID),
	}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.cats = make(map[bool]entry[[]api.Category])
	c.lists = make(map[api.MenuFilter]entry[[]api.MenuItem])
	c.items = make(map[string]entry[api.MenuItem])
}

// Watch invalidates the cache on every catalog push event until Unwatch.
func (c *Cache) Watch(ch Channel) {
	for _, evt := range event.CatalogEvents {
		evt := evt
		id := ch.On(evt, func(json.RawMessage) {
			c.logger.Debug("catalog changed", "event", evt)
			c.Invalidate()
		})
		c.mu.Lock()
		c.handlers[evt] = id
		c.mu.Unlock()
	}
}

func (c *Cache) Unwatch(ch Channel) {
	c.mu.Lock()
	handlers := c.handlers
	c.handlers = make(map[string]realtime.HandlerID)
	c.mu.Unlock()

	for evt, id := range handlers {
		ch.Off(evt, id)
	}
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Cache) Categories(ctx context.Context, includeInactive bool) ([]api.Category, error) {
	c.mu.RLock()
	e, ok := c.cats[includeInactive]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		return append([]api.Category(nil), e.value...), nil
	}

	cats, err := c.categories.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}

	c.mu.Lock()
	c.cats[includeInactive] = entry[[]api.Category]{value: cats, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return append([]api.Category(nil), cats...), nil
}

func (c *Cache) MenuItems(ctx context.Context, filter api.MenuFilter) ([]api.MenuItem, error) {
	c.mu.RLock()
	e, ok := c.lists[filter]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		return append([]api.MenuItem(nil), e.value...), nil
	}

	items, err := c.menu.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("menu items: %w", err)
	}

	expires := c.now().Add(c.ttl)
	c.mu.Lock()
	c.lists[filter] = entry[[]api.MenuItem]{value: items, expires: expires}
	for _, item := range items {
		c.items[item.ID] = entry[api.MenuItem]{value: item, expires: expires}
	}
	c.mu.Unlock()

	return append([]api.MenuItem(nil), items...), nil
}

func (c *Cache) MenuItem(ctx context.Context, id string) (*api.MenuItem, error) {
	c.mu.RLock()
	e, ok := c.items[id]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		item := e.value
		return &item, nil
	}

	item, err := c.menu.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("menu item %s: %w", id, err)
	}

	c.mu.Lock()
	c.items[id] = entry[api.MenuItem]{value: *item, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return item, nil
}

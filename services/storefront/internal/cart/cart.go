package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/storefront/services/storefront/internal/api"
	"github.com/appetiteclub/storefront/services/storefront/internal/clientstate"
	"github.com/appetiteclub/storefront/services/storefront/internal/notice"
)

var ErrItemUnavailable = errors.New("item is not available")

// Line is one (menu item, variant) pair in the cart.
type Line struct {
	MenuItem api.MenuItem `json:"menuItem"`
	Variant  api.Variant  `json:"variant"`
	Quantity int          `json:"quantity"`
}

func (l Line) clone() Line {
	l.MenuItem = l.MenuItem.Clone()
	return l
}

// Subtotal is the line's price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Variant.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) matches(menuItemID, variantName string) bool {
	return l.MenuItem.ID == menuItemID && l.Variant.Name == variantName
}

type persisted struct {
	Items []Line `json:"items"`
}

// Cart holds the shopper's lines and writes them through to the state
// store after every mutation.
type Cart struct {
	mu      sync.RWMutex
	lines   []Line
	store   clientstate.Store
	notices notice.Notifier
	logger  aqm.Logger
}

func New(store clientstate.Store, notices notice.Notifier, logger aqm.Logger) *Cart {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if notices == nil {
		notices = notice.Discard{}
	}
	return &Cart{
		store:   store,
		notices: notices,
		logger:  logger,
	}
}

// Load restores lines saved by a previous run. A missing blob is an empty cart.
func (c *Cart) Load(ctx context.Context) error {
	raw, err := c.store.Get(ctx, clientstate.CartKey)
	if errors.Is(err, clientstate.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	var p persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decode cart: %w", err)
	}

	c.mu.Lock()
	c.lines = p.Items
	c.mu.Unlock()

	c.logger.Debug("cart restored", "lines", len(p.Items))
	return nil
}

// AddItem adds quantity units of variant, merging with an existing line.
func (c *Cart) AddItem(ctx context.Context, item api.MenuItem, variant api.Variant, quantity int) error {
	if !item.IsAvailable || !variant.IsAvailable {
		return ErrItemUnavailable
	}
	if quantity <= 0 {
		quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].matches(item.ID, variant.Name) {
			c.lines[i].Quantity += quantity
			c.notices.Success("Updated %s quantity", item.Name)
			return c.persist(ctx)
		}
	}

	c.lines = append(c.lines, Line{MenuItem: item.Clone(), Variant: variant, Quantity: quantity})
	c.notices.Success("Added %s to cart", item.Name)
	return c.persist(ctx)
}

func (c *Cart) RemoveItem(ctx context.Context, menuItemID, variantName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.remove(ctx, menuItemID, variantName)
}

func (c *Cart) remove(ctx context.Context, menuItemID, variantName string) error {
	for i := range c.lines {
		if c.lines[i].matches(menuItemID, variantName) {
			c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
			c.notices.Success("Item removed from cart")
			return c.persist(ctx)
		}
	}
	return nil
}

// UpdateQuantity sets the exact quantity. Zero or less removes the line.
func (c *Cart) UpdateQuantity(ctx context.Context, menuItemID, variantName string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity <= 0 {
		return c.remove(ctx, menuItemID, variantName)
	}

	for i := range c.lines {
		if c.lines[i].matches(menuItemID, variantName) {
			c.lines[i].Quantity = quantity
			return c.persist(ctx)
		}
	}
	return nil
}

func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	c.notices.Success("Cart cleared")
	return c.persist(ctx)
}

func (c *Cart) Total() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c *Cart) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, l := range c.lines {
		count += l.Quantity
	}
	return count
}

func (c *Cart) Item(menuItemID, variantName string) (Line, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, l := range c.lines {
		if l.matches(menuItemID, variantName) {
			return l.clone(), true
		}
	}
	return Line{}, false
}

// Lines returns a copy of the current lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Line, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, l.clone())
	}
	return out
}

func (c *Cart) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.lines) == 0
}

// persist must be called with mu held.
func (c *Cart) persist(ctx context.Context) error {
	raw, err := json.Marshal(persisted{Items: c.lines})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := c.store.Put(ctx, clientstate.CartKey, raw); err != nil {
		c.logger.Error("cannot persist cart", "error", err)
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/services/storefront/internal/clientstate"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

type Overlay string

const (
	OverlayCart       Overlay = "cart"
	OverlayCheckout   Overlay = "checkout"
	OverlayMobileMenu Overlay = "mobile-menu"
	OverlaySearch     Overlay = "search"
)

var ErrUnknownOverlay = errors.New("unknown overlay")

// ThemeApplier makes a theme change visible right away.
type ThemeApplier func(Theme)

// State is a point-in-time copy of the transient UI flags.
type State struct {
	CartOpen       bool  `json:"isCartOpen"`
	CheckoutOpen   bool  `json:"isCheckoutOpen"`
	MobileMenuOpen bool  `json:"isMobileMenuOpen"`
	SearchOpen     bool  `json:"isSearchOpen"`
	Loading        bool  `json:"isLoading"`
	Theme          Theme `json:"theme"`
}

// Store holds UI flags. Only the theme outlives the process.
type Store struct {
	mu     sync.RWMutex
	state  State
	store  clientstate.Store
	apply  ThemeApplier
	logger aqm.Logger
}

func NewStore(store clientstate.Store, apply ThemeApplier, logger aqm.Logger) *Store {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if apply == nil {
		apply = func(Theme) {}
	}
	return &Store{
		state:  State{Theme: ThemeLight},
		store:  store,
		apply:  apply,
		logger: logger,
	}
}

// Load restores the saved theme and applies it.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.store.Get(ctx, clientstate.ThemeKey)
	if err != nil && !errors.Is(err, clientstate.ErrNotFound) {
		return fmt.Errorf("load theme: %w", err)
	}

	theme := ThemeLight
	if saved := Theme(raw); saved.Valid() {
		theme = saved
	}

	s.mu.Lock()
	s.state.Theme = theme
	s.mu.Unlock()

	s.apply(theme)
	return nil
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

func (s *Store) Open(o Overlay) error {
	return s.set(o, func(bool) bool { return true })
}

func (s *Store) Close(o Overlay) error {
	return s.set(o, func(bool) bool { return false })
}

func (s *Store) Toggle(o Overlay) error {
	return s.set(o, func(open bool) bool { return !open })
}

func (s *Store) set(o Overlay, next func(bool) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch o {
	case OverlayCart:
		s.state.CartOpen = next(s.state.CartOpen)
	case OverlayCheckout:
		s.state.CheckoutOpen = next(s.state.CheckoutOpen)
		// Checkout replaces the cart drawer.
		if s.state.CheckoutOpen {
			s.state.CartOpen = false
		}
	case OverlayMobileMenu:
		s.state.MobileMenuOpen = next(s.state.MobileMenuOpen)
	case OverlaySearch:
		s.state.SearchOpen = next(s.state.SearchOpen)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOverlay, o)
	}
	return nil
}

func (s *Store) OpenCheckout() {
	s.Open(OverlayCheckout)
}

func (s *Store) CloseCheckout() {
	s.Close(OverlayCheckout)
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Loading = loading
}

func (s *Store) SetTheme(ctx context.Context, theme Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("invalid theme %q", theme)
	}

	s.mu.Lock()
	s.state.Theme = theme
	s.mu.Unlock()

	return s.applyTheme(ctx, theme)
}

func (s *Store) ToggleTheme(ctx context.Context) (Theme, error) {
	s.mu.Lock()
	theme := ThemeDark
	if s.state.Theme == ThemeDark {
		theme = ThemeLight
	}
	s.state.Theme = theme
	s.mu.Unlock()

	return theme, s.applyTheme(ctx, theme)
}

func (s *Store) applyTheme(ctx context.Context, theme Theme) error {
	s.apply(theme)
	if err := s.store.Put(ctx, clientstate.ThemeKey, []byte(theme)); err != nil {
		s.logger.Error("cannot persist theme", "error", err)
		return fmt.Errorf("persist theme: %w", err)
	}
	return nil
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/services/storefront/internal/api"
	"github.com/appetiteclub/storefront/services/storefront/internal/clientstate"
	"github.com/appetiteclub/storefront/services/storefront/internal/notice"
)

var ErrNotSignedIn = errors.New("not signed in")

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.AuthResult, error)
}

// Session holds the signed-in user and bearer token.
type Session struct {
	store   clientstate.Store
	auth    Authenticator
	notices notice.Notifier
	logger  aqm.Logger

	mu        sync.RWMutex
	token     string
	user      *api.User
	onSignOut []func(ctx context.Context)
}

func New(store clientstate.Store, auth Authenticator, notices notice.Notifier, logger aqm.Logger) *Session {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if notices == nil {
		notices = notice.Discard{}
	}
	return &Session{
		store:   store,
		auth:    auth,
		notices: notices,
		logger:  logger,
	}
}

// OnSignOut registers fn to run whenever the session ends.
func (s *Session) OnSignOut(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSignOut = append(s.onSignOut, fn)
}

// Load restores a session saved by a previous run.
func (s *Session) Load(ctx context.Context) error {
	token, err := s.store.Get(ctx, clientstate.AuthTokenKey)
	if errors.Is(err, clientstate.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session token: %w", err)
	}

	var user *api.User
	raw, err := s.store.Get(ctx, clientstate.AuthUserKey)
	switch {
	case err == nil:
		user = &api.User{}
		if err := json.Unmarshal(raw, user); err != nil {
			return fmt.Errorf("decode session user: %w", err)
		}
	case !errors.Is(err, clientstate.ErrNotFound):
		return fmt.Errorf("load session user: %w", err)
	}

	s.mu.Lock()
	s.token = string(token)
	s.user = user
	s.mu.Unlock()
	return nil
}

func (s *Session) SignIn(ctx context.Context, email, password string) (*api.User, error) {
	res, err := s.auth.Login(ctx, email, password)
	if err != nil {
		s.notices.Error("Invalid credentials")
		return nil, err
	}

	raw, err := json.Marshal(res.User)
	if err != nil {
		return nil, fmt.Errorf("encode session user: %w", err)
	}

	s.mu.Lock()
	s.token = res.Token
	user := res.User
	s.user = &user
	s.mu.Unlock()

	if err := s.store.Put(ctx, clientstate.AuthTokenKey, []byte(res.Token)); err != nil {
		return nil, fmt.Errorf("persist session token: %w", err)
	}
	if err := s.store.Put(ctx, clientstate.AuthUserKey, raw); err != nil {
		return nil, fmt.Errorf("persist session user: %w", err)
	}

	s.notices.Success("Login successful!")
	s.logger.Info("signed in", "user_id", user.ID, "role", user.Role)
	return &user, nil
}

func (s *Session) SignOut(ctx context.Context) error {
	if err := s.Clear(ctx); err != nil {
		return err
	}
	s.notices.Success("Logged out successfully")
	return nil
}

// Clear drops the token and user, locally and in the state store.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	hadToken := s.token != ""
	s.token = ""
	s.user = nil
	hooks := append([]func(context.Context){}, s.onSignOut...)
	s.mu.Unlock()

	var errs []error
	for _, key := range []string{clientstate.AuthTokenKey, clientstate.AuthUserKey} {
		if err := s.store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	if hadToken {
		for _, fn := range hooks {
			fn(ctx)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Token implements api.Credentials.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Expire implements api.Credentials. The server rejected the token.
func (s *Session) Expire(ctx context.Context) {
	s.logger.Info("session expired")
	if err := s.Clear(ctx); err != nil {
		s.logger.Error("cannot clear expired session", "error", err)
	}
}

func (s *Session) User() (api.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return api.User{}, false
	}
	return *s.user, true
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil && s.user.IsAdmin()
}

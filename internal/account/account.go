// Package account signs users in and out and gates entry to a game.
package account

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/lox/notakto/internal/api"
	"github.com/lox/notakto/internal/auth"
	"github.com/lox/notakto/internal/notify"
	"github.com/lox/notakto/internal/store"
)

// ErrSignInRequired is returned by StartGame when nobody is signed in.
var ErrSignInRequired = errors.New("account: sign in required")

// Backend exchanges a credential for the account profile.
type Backend interface {
	SignIn(ctx context.Context, token string) (*api.Profile, error)
}

// Notifier is a notify.Notifier that can also clear a notice's cooldown.
type Notifier interface {
	notify.Notifier
	Dismiss(key string)
}

// Service owns the signed-in state of the store.
type Service struct {
	backend  Backend
	store    *store.Store
	notifier Notifier
	logger   *log.Logger
}

func NewService(backend Backend, st *store.Store, notifier Notifier, logger *log.Logger) *Service {
	return &Service{
		backend:  backend,
		store:    st,
		notifier: notifier,
		logger:   logger.WithPrefix("account"),
	}
}

// SignIn verifies id with the backend and records it with its profile.
// On failure the store is left as it was.
func (s *Service) SignIn(ctx context.Context, id auth.Identity) (store.Profile, error) {
	if id == nil {
		s.failSignIn(auth.ErrNoIdentity)
		return store.Profile{}, auth.ErrNoIdentity
	}

	token, err := id.Token(ctx)
	if err != nil {
		s.failSignIn(err)
		return store.Profile{}, err
	}

	resp, err := s.backend.SignIn(ctx, token)
	if err != nil {
		s.failSignIn(err)
		return store.Profile{}, err
	}

	prof := store.Profile{
		Name:       resp.Name,
		Email:      resp.Email,
		Picture:    resp.ProfilePic,
		NewAccount: resp.NewAccount,
	}
	s.store.SignIn(id, prof)
	s.notifier.Dismiss(notify.KeySignIn)
	s.logger.Info("Signed in", "subject", id.Subject(), "name", prof.Name, "new_account", prof.NewAccount)
	return prof, nil
}

func (s *Service) failSignIn(err error) {
	s.logger.Warn("Sign in failed", "error", err)
	s.notifier.Notify(notify.Notice{Key: notify.KeySignIn, Level: notify.LevelError, Message: "Sign in failed. Please try again."})
}

// SignOut clears the identity and restores default balances.
func (s *Service) SignOut() {
	s.store.SignOut()
	s.logger.Info("Signed out")
}

// StartGame reports whether a game may be started.
func (s *Service) StartGame() error {
	if s.store.Identity() == nil {
		s.notifier.Notify(notify.Notice{Key: notify.KeySignIn, Level: notify.LevelError, Message: "Please sign in!"})
		return ErrSignInRequired
	}
	return nil
}

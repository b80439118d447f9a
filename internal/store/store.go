// Package store is the process-wide state container shared by the session
// controller, the payment flow and the balance feed. It is constructed once
// and passed explicitly to everything that needs it.
package store

import (
	"sync"

	"github.com/lox/notakto/internal/auth"
)

// Defaults applied when no balance is known or the user signs out.
const (
	DefaultCoins = 1000
	DefaultXP    = 0
)

// Balance is the economy snapshot pushed by the balance feed.
type Balance struct {
	Coins int `json:"coins"`
	XP    int `json:"xp"`
}

// Profile is the signed-in account as reported by the backend.
type Profile struct {
	Name       string
	Email      string
	Picture    string
	NewAccount bool
}

// Store holds identity, profile and balances.
type Store struct {
	mu       sync.RWMutex
	identity auth.Identity
	profile  *Profile
	balance  Balance
}

// New returns a signed-out store with default balances.
func New() *Store {
	return &Store{balance: Balance{Coins: DefaultCoins, XP: DefaultXP}}
}

// Identity returns the current identity, or nil when signed out.
func (s *Store) Identity() auth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// SignIn records the identity and its profile together.
func (s *Store) SignIn(id auth.Identity, p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
	s.profile = &p
}

// SignOut clears the identity and resets balances to their defaults.
func (s *Store) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	s.profile = nil
	s.balance = Balance{Coins: DefaultCoins, XP: DefaultXP}
}

// Profile returns the signed-in profile.
func (s *Store) Profile() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}

// Coins returns the locally cached coin balance.
func (s *Store) Coins() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance.Coins
}

// Balance returns coins and xp together.
func (s *Store) Balance() Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

// SetBalance replaces the balance wholesale.
func (s *Store) SetBalance(b Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = b
}

// Credit adds coins after a completed purchase.
func (s *Store) Credit(coins int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance.Coins += coins
}

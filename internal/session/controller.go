// Package session drives one game against the authoritative server. All
// visible state is replaced from server responses; nothing is computed
// locally. Every action is guarded per category and reports its failures
// through the notifier instead of returning them to be handled.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/lox/notakto/internal/api"
	"github.com/lox/notakto/internal/apierr"
	"github.com/lox/notakto/internal/auth"
	"github.com/lox/notakto/internal/economy"
	"github.com/lox/notakto/internal/notify"
)

var (
	// ErrBusy is returned when an action of the same category is in flight.
	ErrBusy = errors.New("session: action already in progress")

	// ErrNotActive is returned when the action is not valid in the current status.
	ErrNotActive = errors.New("session: no active game")
)

// Backend is the subset of the game backend client the controller uses.
type Backend interface {
	CreateGame(ctx context.Context, token string, cfg api.Config) (*api.CreateGameResponse, error)
	RegisterSession(ctx context.Context, token, sessionID string, boards []api.Board, cfg api.Config) error
	SubmitMove(ctx context.Context, token, sessionID string, boardIndex, cellIndex int) (*api.StateResponse, error)
	Reset(ctx context.Context, token, sessionID string) (*api.StateResponse, error)
	Undo(ctx context.Context, token, sessionID string) (*api.StateResponse, error)
	Skip(ctx context.Context, token, sessionID string) (*api.StateResponse, error)
	UpdateConfig(ctx context.Context, token, sessionID string, cfg api.Config) (*api.StateResponse, error)
}

// State is the shared identity and economy container.
type State interface {
	Identity() auth.Identity
	Coins() int
}

// Navigator moves the user back to the entry screen.
type Navigator interface {
	ToEntry()
}

// Effects plays feedback for moves and wins.
type Effects interface {
	MoveSound()
	WinSound()
}

// Converter turns create-game boards into the form the session stores.
type Converter func(raw []api.Board, numberOfBoards, boardSize int) ([]api.Board, error)

// Deps are the collaborators of a Controller. Navigator, Effects and
// Convert are optional.
type Deps struct {
	Backend   Backend
	State     State
	Notifier  notify.Notifier
	Navigator Navigator
	Effects   Effects
	Convert   Converter
	Logger    *log.Logger
}

// Controller owns the authoritative view of one game.
type Controller struct {
	backend  Backend
	state    State
	notifier notify.Notifier
	nav      Navigator
	effects  Effects
	convert  Converter
	logger   *log.Logger
	guards   map[Category]*guard

	mu            sync.RWMutex
	session       *Session
	initializing  bool
	reconfiguring int
	hasMoved      bool
	lastErr       *apierr.Error
}

// New creates a controller in the Uninitialized state.
func New(deps Deps) *Controller {
	c := &Controller{
		backend:  deps.Backend,
		state:    deps.State,
		notifier: deps.Notifier,
		nav:      deps.Navigator,
		effects:  deps.Effects,
		convert:  deps.Convert,
		logger:   deps.Logger.WithPrefix("session"),
		guards:   make(map[Category]*guard, len(Categories)),
	}
	if c.nav == nil {
		c.nav = noopNavigator{}
	}
	if c.effects == nil {
		c.effects = noopEffects{}
	}
	if c.convert == nil {
		c.convert = passthrough
	}
	for _, cat := range Categories {
		c.guards[cat] = newGuard()
	}
	return c
}

// Status returns the current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	switch {
	case c.initializing:
		return StatusInitializing
	case c.session == nil:
		return StatusUninitialized
	case c.reconfiguring > 0:
		return StatusReconfiguring
	case c.session.GameOver:
		return StatusGameOver
	default:
		return StatusActive
	}
}

// Snapshot returns a deep copy of the session, or nil when uninitialized.
func (c *Controller) Snapshot() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.clone()
}

// Busy reports whether an action of the category is in flight.
func (c *Controller) Busy(cat Category) bool {
	return c.guards[cat].busy()
}

// CanOfferReset reports whether a move has been made since the last
// successful reset or initialisation.
func (c *Controller) CanOfferReset() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasMoved
}

// LastError returns the most recent classified failure.
func (c *Controller) LastError() *apierr.Error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Initialize creates a game and registers it as the active session. State
// is committed only after both calls succeed.
func (c *Controller) Initialize(ctx context.Context, cfg api.Config) error {
	g := c.guards[CategoryInitialize]
	if !g.tryAcquire() {
		return ErrBusy
	}
	defer g.release()

	id := c.state.Identity()
	if id == nil {
		return c.requireAuth(CategoryInitialize)
	}

	c.mu.Lock()
	c.initializing = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.initializing = false
		c.mu.Unlock()
	}()

	token, err := id.Token(ctx)
	if err != nil {
		return c.abortInitialize(err)
	}

	created, err := c.backend.CreateGame(ctx, token, cfg)
	if err != nil {
		return c.failWith(CategoryInitialize, "Failed to create game", err)
	}

	boards, err := c.convert(created.Boards, created.NumberOfBoards, created.BoardSize)
	if err == nil && len(boards) == 0 {
		err = fmt.Errorf("no boards returned")
	}
	if err != nil {
		return c.fail(CategoryInitialize, "Failed to initialize game boards",
			&apierr.Error{Kind: apierr.KindSchemaMismatch, Op: "create-game", Message: err.Error(), Err: err})
	}

	token, err = id.Token(ctx)
	if err != nil {
		return c.abortInitialize(err)
	}

	if err := c.backend.RegisterSession(ctx, token, created.SessionID, boards, created.Config); err != nil {
		return c.failWith(CategoryInitialize, "Failed to register action", err)
	}

	next := &Session{
		ID:            created.SessionID,
		Config:        created.Config,
		Boards:        boards,
		CurrentPlayer: 1,
		History:       [][]api.Board{cloneBoards(boards)},
	}

	c.mu.Lock()
	c.session = next
	c.hasMoved = false
	c.mu.Unlock()

	c.logger.Info("Game initialized", "session", next.ID, "boards", next.Config.NumberOfBoards,
		"size", next.Config.BoardSize, "difficulty", next.Config.Difficulty)
	return nil
}

// abortInitialize handles a credential failure during initialisation, which
// cannot be recovered from the game screen.
func (c *Controller) abortInitialize(cause error) error {
	err := c.fail(CategoryInitialize, "Error initializing game", apierr.Credential(string(CategoryInitialize), cause))
	c.nav.ToEntry()
	return err
}

// SubmitMove plays a cell. Legality is decided by the server alone.
func (c *Controller) SubmitMove(ctx context.Context, boardIndex, cellIndex int) error {
	sess, err := c.requireStatus(CategoryMove, StatusActive)
	if err != nil {
		return err
	}

	return c.perform(ctx, action{
		cat:       CategoryMove,
		prefix:    "Error making move",
		sessionID: sess.ID,
		start: func() func() {
			c.mu.Lock()
			c.hasMoved = true
			c.mu.Unlock()
			return nil
		},
		call: func(token string) (*api.StateResponse, error) {
			return c.backend.SubmitMove(ctx, token, sess.ID, boardIndex, cellIndex)
		},
		apply: func(cur *Session, resp *api.StateResponse) *Session {
			return cur.withState(resp.GameState, resp.GameOver)
		},
		after: func(next *Session) {
			c.effects.MoveSound()
			if next.GameOver {
				c.logger.Info("Game over", "session", next.ID, "winner", next.Winner)
				c.effects.WinSound()
			}
		},
	})
}

// Reset restarts the game, leaving GameOver if it was entered.
func (c *Controller) Reset(ctx context.Context) error {
	sess, err := c.requireStatus(CategoryReset, StatusActive, StatusGameOver)
	if err != nil {
		return err
	}

	return c.perform(ctx, action{
		cat:       CategoryReset,
		prefix:    "Error resetting game",
		sessionID: sess.ID,
		call: func(token string) (*api.StateResponse, error) {
			return c.backend.Reset(ctx, token, sess.ID)
		},
		apply: func(cur *Session, resp *api.StateResponse) *Session {
			next := cur.withState(resp.GameState, false)
			next.Winner = ""
			return next
		},
		after: func(*Session) {
			c.mu.Lock()
			c.hasMoved = false
			c.mu.Unlock()
		},
	})
}

// RequestUndo reverts the last move if the cached balance covers it.
func (c *Controller) RequestUndo(ctx context.Context) error {
	return c.paid(ctx, CategoryUndo, economy.ActionUndo, "Error undoing move", c.backend.Undo)
}

// RequestSkip passes the turn if the cached balance covers it.
func (c *Controller) RequestSkip(ctx context.Context) error {
	return c.paid(ctx, CategorySkip, economy.ActionSkip, "Error skipping move", c.backend.Skip)
}

func (c *Controller) paid(ctx context.Context, cat Category, gated economy.Action, prefix string,
	call func(ctx context.Context, token, sessionID string) (*api.StateResponse, error)) error {
	sess, err := c.requireStatus(cat, StatusActive)
	if err != nil {
		return err
	}

	coins := c.state.Coins()
	if err := economy.Check(coins, gated); err != nil {
		c.logger.Debug("Insufficient coins", "action", gated, "coins", coins)
		c.notifier.Notify(notify.Notice{Level: notify.LevelError, Message: economy.InsufficientCoinsMessage})
		return err
	}

	return c.perform(ctx, action{
		cat:       cat,
		prefix:    prefix,
		sessionID: sess.ID,
		call: func(token string) (*api.StateResponse, error) {
			return call(ctx, token, sess.ID)
		},
		apply: func(cur *Session, resp *api.StateResponse) *Session {
			return cur.withState(resp.GameState, resp.GameOver)
		},
		after: func(next *Session) {
			if next.GameOver {
				c.effects.WinSound()
			}
		},
	})
}

// UpdateConfiguration changes board count and size, keeping the difficulty.
func (c *Controller) UpdateConfiguration(ctx context.Context, numberOfBoards, boardSize int) error {
	return c.reconfigure(ctx, CategoryConfigUpdate, "Error updating config", func(cfg api.Config) api.Config {
		cfg.NumberOfBoards = numberOfBoards
		cfg.BoardSize = boardSize
		return cfg
	})
}

// UpdateDifficulty changes the computer's level, keeping the board layout.
//
// It shares the remote capability with UpdateConfiguration but not its
// guard, so both can be in flight and the server keeps whichever lands last.
func (c *Controller) UpdateDifficulty(ctx context.Context, level int) error {
	return c.reconfigure(ctx, CategoryDifficultyUpdate, "Error updating difficulty", func(cfg api.Config) api.Config {
		cfg.Difficulty = level
		return cfg
	})
}

func (c *Controller) reconfigure(ctx context.Context, cat Category, prefix string, change func(api.Config) api.Config) error {
	sess, err := c.requireStatus(cat, StatusActive, StatusGameOver, StatusReconfiguring)
	if err != nil {
		return err
	}
	cfg := change(sess.Config)

	return c.perform(ctx, action{
		cat:       cat,
		prefix:    prefix,
		sessionID: sess.ID,
		start: func() func() {
			c.mu.Lock()
			c.reconfiguring++
			c.mu.Unlock()
			return func() {
				c.mu.Lock()
				c.reconfiguring--
				c.mu.Unlock()
			}
		},
		call: func(token string) (*api.StateResponse, error) {
			return c.backend.UpdateConfig(ctx, token, sess.ID, cfg)
		},
		apply: func(cur *Session, resp *api.StateResponse) *Session {
			next := cur.withState(resp.GameState, resp.GameOver)
			next.Config = cfg
			return next
		},
	})
}

// action describes one guarded remote operation.
type action struct {
	cat       Category
	prefix    string // prepended to transport-class failure messages
	sessionID string

	start func() (done func()) // after the identity check; done runs on exit
	call  func(token string) (*api.StateResponse, error)
	apply func(cur *Session, resp *api.StateResponse) *Session
	after func(next *Session)
}

// perform runs one guarded action: guard, identity, credential, request,
// commit. The guard is released on every path.
func (c *Controller) perform(ctx context.Context, a action) error {
	g := c.guards[a.cat]
	if !g.tryAcquire() {
		c.logger.Debug("Dropping action, already in flight", "action", a.cat)
		return ErrBusy
	}
	defer g.release()

	id := c.state.Identity()
	if id == nil {
		return c.requireAuth(a.cat)
	}

	if a.start != nil {
		if done := a.start(); done != nil {
			defer done()
		}
	}

	token, err := id.Token(ctx)
	if err != nil {
		return c.fail(a.cat, a.prefix, apierr.Credential(string(a.cat), err))
	}

	resp, err := a.call(token)
	if err != nil {
		return c.failWith(a.cat, a.prefix, err)
	}

	c.mu.Lock()
	cur := c.session
	if cur == nil || cur.ID != a.sessionID {
		c.mu.Unlock()
		c.logger.Warn("Discarding response for a replaced session", "action", a.cat, "session", a.sessionID)
		return nil
	}
	next := a.apply(cur, resp)
	c.session = next
	c.mu.Unlock()

	c.logger.Debug("Action committed", "action", a.cat, "session", next.ID,
		"current_player", next.CurrentPlayer, "game_over", next.GameOver)

	if a.after != nil {
		a.after(next)
	}
	return nil
}

// requireStatus returns the session when the controller is in one of the
// allowed states. Without an identity the action is treated as
// unauthenticated whatever the state.
func (c *Controller) requireStatus(cat Category, allowed ...Status) (*Session, error) {
	c.mu.RLock()
	st, sess := c.statusLocked(), c.session
	c.mu.RUnlock()
	for _, a := range allowed {
		if st == a {
			return sess, nil
		}
	}
	if c.state.Identity() == nil {
		return nil, c.requireAuth(cat)
	}
	return nil, fmt.Errorf("%w (status %s)", ErrNotActive, st)
}

func (c *Controller) requireAuth(cat Category) error {
	e := apierr.New(apierr.KindAuthenticationRequired, string(cat), "User not authenticated")
	c.record(e)
	c.logger.Warn("No identity for action", "action", cat)
	c.notifier.Notify(notify.Notice{Key: notify.KeyAuthRequired, Level: notify.LevelError, Message: e.Message})
	c.nav.ToEntry()
	return e
}

// failWith classifies err and reports it.
func (c *Controller) failWith(cat Category, prefix string, err error) error {
	return c.fail(cat, prefix, apierr.Classify(string(cat), err, prefix))
}

func (c *Controller) fail(cat Category, prefix string, e *apierr.Error) error {
	c.record(e)
	c.logger.Warn("Action failed", "action", cat, "kind", e.Kind, "error", e)

	msg := e.Message
	switch e.Kind {
	case apierr.KindApplication, apierr.KindUnexpectedShape:
		if cat == CategoryInitialize {
			msg = prefix + ": " + e.Message
		}
	default:
		msg = prefix + ": " + e.Message
	}
	c.notifier.Notify(notify.Notice{Level: notify.LevelError, Message: msg})
	return e
}

func (c *Controller) record(e *apierr.Error) {
	c.mu.Lock()
	c.lastErr = e
	c.mu.Unlock()
}

type noopNavigator struct{}

func (noopNavigator) ToEntry() {}

type noopEffects struct{}

func (noopEffects) MoveSound() {}
func (noopEffects) WinSound()  {}

func passthrough(raw []api.Board, _, _ int) ([]api.Board, error) {
	return cloneBoards(raw), nil
}

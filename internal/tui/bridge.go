package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lox/notakto/internal/api"
	"github.com/lox/notakto/internal/payment"
	"github.com/lox/notakto/internal/session"
)

// Action is a parsed user command.
type Action int

const (
	ActionNone Action = iota
	ActionMove
	ActionReset
	ActionUndo
	ActionSkip
	ActionConfig
	ActionDifficulty
	ActionNew
	ActionBuy
	ActionCancelPurchase
	ActionSignOut
	ActionHelp
	ActionQuit
)

// Command is one line of input after parsing.
type Command struct {
	Action Action
	Args   []int
}

var actionNames = map[string]Action{
	"m":          ActionMove,
	"move":       ActionMove,
	"r":          ActionReset,
	"reset":      ActionReset,
	"u":          ActionUndo,
	"undo":       ActionUndo,
	"s":          ActionSkip,
	"skip":       ActionSkip,
	"c":          ActionConfig,
	"config":     ActionConfig,
	"d":          ActionDifficulty,
	"difficulty": ActionDifficulty,
	"n":          ActionNew,
	"new":        ActionNew,
	"buy":        ActionBuy,
	"cancel":     ActionCancelPurchase,
	"logout":     ActionSignOut,
	"sign-out":   ActionSignOut,
	"signout":    ActionSignOut,
	"h":          ActionHelp,
	"help":       ActionHelp,
	"?":          ActionHelp,
	"q":          ActionQuit,
	"quit":       ActionQuit,
	"exit":       ActionQuit,
}

var arity = map[Action]int{
	ActionMove:       2,
	ActionConfig:     2,
	ActionDifficulty: 1,
}

// ParseCommand turns an input line into a Command. Two bare numbers are a
// move.
func ParseCommand(input string) (Command, error) {
	parts := strings.Fields(strings.ToLower(input))
	if len(parts) == 0 {
		return Command{Action: ActionNone}, nil
	}

	action, ok := actionNames[parts[0]]
	args := parts[1:]
	if !ok {
		if _, err := strconv.Atoi(parts[0]); err != nil {
			return Command{}, fmt.Errorf("unknown command %q, type 'help'", parts[0])
		}
		action, args = ActionMove, parts
	}

	want := arity[action]
	if len(args) != want {
		return Command{}, fmt.Errorf("%s takes %d argument(s)", parts[0], want)
	}

	cmd := Command{Action: action, Args: make([]int, 0, want)}
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return Command{}, fmt.Errorf("%q is not a number", a)
		}
		cmd.Args = append(cmd.Args, n)
	}
	return cmd, nil
}

// Controller is the session surface the bridge drives.
type Controller interface {
	Initialize(ctx context.Context, cfg api.Config) error
	SubmitMove(ctx context.Context, boardIndex, cellIndex int) error
	Reset(ctx context.Context) error
	RequestUndo(ctx context.Context) error
	RequestSkip(ctx context.Context) error
	UpdateConfiguration(ctx context.Context, numberOfBoards, boardSize int) error
	UpdateDifficulty(ctx context.Context, level int) error
	CanOfferReset() bool
	Snapshot() *session.Session
}

// Purchaser runs the coin purchase flow.
type Purchaser interface {
	Buy(ctx context.Context) (payment.Outcome, error)
	Cancel()
}

// Accounts ends the signed-in session.
type Accounts interface {
	SignOut()
}

// Bridge executes commands against the controller and purchaser. Failures
// already reach the user through the notifier, so results only carry
// information that is not reported elsewhere.
type Bridge struct {
	controller Controller
	purchaser  Purchaser
	accounts   Accounts
	defaults   api.Config
	logger     *log.Logger
}

func NewBridge(controller Controller, purchaser Purchaser, accounts Accounts, defaults api.Config, logger *log.Logger) *Bridge {
	return &Bridge{
		controller: controller,
		purchaser:  purchaser,
		accounts:   accounts,
		defaults:   defaults,
		logger:     logger.WithPrefix("bridge"),
	}
}

// Execute runs cmd and returns a line for the game log, or "" when there is
// nothing to add.
func (b *Bridge) Execute(ctx context.Context, cmd Command) string {
	b.logger.Debug("Executing command", "action", cmd.Action, "args", cmd.Args)

	var err error
	switch cmd.Action {
	case ActionMove:
		err = b.controller.SubmitMove(ctx, cmd.Args[0], cmd.Args[1])
	case ActionReset:
		if !b.controller.CanOfferReset() && b.isLive() {
			return "Nothing to reset yet"
		}
		err = b.controller.Reset(ctx)
	case ActionUndo:
		err = b.controller.RequestUndo(ctx)
	case ActionSkip:
		err = b.controller.RequestSkip(ctx)
	case ActionConfig:
		err = b.controller.UpdateConfiguration(ctx, cmd.Args[0], cmd.Args[1])
	case ActionDifficulty:
		err = b.controller.UpdateDifficulty(ctx, cmd.Args[0])
	case ActionNew:
		cfg := b.defaults
		if snap := b.controller.Snapshot(); snap != nil {
			cfg = snap.Config
		}
		err = b.controller.Initialize(ctx, cfg)
	case ActionBuy:
		return b.buy(ctx)
	case ActionCancelPurchase:
		b.purchaser.Cancel()
		return ""
	case ActionSignOut:
		b.purchaser.Cancel()
		b.accounts.SignOut()
		b.logger.Info("Signed out")
		return "Signed out, coins reset to defaults"
	case ActionHelp:
		return helpText
	default:
		return ""
	}

	switch {
	case errors.Is(err, session.ErrBusy):
		return "Still working on the previous request"
	case errors.Is(err, session.ErrNotActive):
		return "Not available right now: " + statusOf(b.controller)
	}
	return ""
}

func (b *Bridge) buy(ctx context.Context) string {
	outcome, err := b.purchaser.Buy(ctx)
	if errors.Is(err, payment.ErrInProgress) {
		return "A purchase is already in progress, type 'cancel' to abandon it"
	}
	if err != nil {
		return ""
	}
	return "Purchase finished: " + outcome.String()
}

// isLive reports whether a game is on the board and not finished.
func (b *Bridge) isLive() bool {
	snap := b.controller.Snapshot()
	return snap != nil && !snap.GameOver
}

func statusOf(c Controller) string {
	if st, ok := c.(interface{ Status() session.Status }); ok {
		return st.Status().String()
	}
	return "unknown"
}

const helpText = `Commands:
  <board> <cell>        play a cell (also: m <board> <cell>)
  r, reset              reset the game
  u, undo               undo the last move (100 coins)
  s, skip               skip your turn (200 coins)
  c <boards> <size>     change board count and size
  d <level>             change difficulty
  n, new                start a new game
  buy                   buy 100 coins
  cancel                abandon a running purchase
  logout                sign out
  q, quit               leave`

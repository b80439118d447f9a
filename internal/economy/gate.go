// Package economy gates paid actions on the locally cached coin balance and
// keeps that balance current from the server's push channel.
package economy

import (
	"errors"
	"fmt"
)

// Costs of the paid actions in coins. The server re-validates them.
const (
	UndoCost = 100
	SkipCost = 200
)

// ErrInsufficientCoins is returned when the cached balance cannot cover an action.
var ErrInsufficientCoins = errors.New("economy: not enough coins")

// InsufficientCoinsMessage is shown to the player when a paid action is refused.
const InsufficientCoinsMessage = "Not enough coins"

// Action is a coin-gated operation.
type Action string

const (
	ActionUndo Action = "undo"
	ActionSkip Action = "skip"
)

// Cost returns the coin price of an action.
func Cost(a Action) int {
	switch a {
	case ActionUndo:
		return UndoCost
	case ActionSkip:
		return SkipCost
	default:
		panic(fmt.Sprintf("economy: unknown action %q", a))
	}
}

// Check reports whether coins cover the action. Passing here does not
// guarantee the server will accept it.
func Check(coins int, a Action) error {
	if coins < Cost(a) {
		return ErrInsufficientCoins
	}
	return nil
}

// CanAfford is the boolean form of Check.
func CanAfford(coins int, a Action) bool {
	return Check(coins, a) == nil
}

package session

import "github.com/lox/notakto/internal/api"

// Status is the lifecycle state of the controller.
type Status int

const (
	StatusUninitialized Status = iota
	StatusInitializing
	StatusActive
	StatusReconfiguring
	StatusGameOver
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusInitializing:
		return "initializing"
	case StatusActive:
		return "active"
	case StatusReconfiguring:
		return "reconfiguring"
	case StatusGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Session is one game as last confirmed by the server. Every field comes
// from the same response; a Session is replaced, never edited.
type Session struct {
	ID            string
	Config        api.Config
	Boards        []api.Board
	CurrentPlayer int
	History       [][]api.Board
	Winner        string
	GameOver      bool
}

// withState returns a copy of s carrying the state from a server response.
func (s *Session) withState(gs api.GameState, gameOver bool) *Session {
	next := *s
	next.Boards = gs.Boards
	next.CurrentPlayer = gs.CurrentPlayer
	next.History = gs.GameHistory
	next.Winner = gs.Winner
	next.GameOver = gameOver
	return &next
}

// clone deep-copies s so callers can never reach controller-owned slices.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Boards = cloneBoards(s.Boards)
	if s.History != nil {
		out.History = make([][]api.Board, len(s.History))
		for i, snap := range s.History {
			out.History[i] = cloneBoards(snap)
		}
	}
	return &out
}

func cloneBoards(boards []api.Board) []api.Board {
	if boards == nil {
		return nil
	}
	out := make([]api.Board, len(boards))
	for i, b := range boards {
		out[i] = append(api.Board(nil), b...)
	}
	return out
}

package tui

import (
	"bytes"
	"context"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/notakto/internal/api"
	"github.com/lox/notakto/internal/notify"
	"github.com/lox/notakto/internal/session"
	"github.com/lox/notakto/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) (*Model, *fakeController) {
	t.Helper()
	b, ctrl, _ := newTestBridge()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	return NewModel(context.Background(), b, ctrl, store.New(), logger), ctrl
}

func enter(t *testing.T, m *Model, input string) tea.Cmd {
	t.Helper()
	m.actionInput.SetValue(input)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestModelRunsCommandsOffTheLoop(t *testing.T) {
	m, ctrl := newTestModel(t)

	cmd := enter(t, m, "2 5")
	require.NotNil(t, cmd)
	assert.Equal(t, 1, m.pending)
	assert.Empty(t, ctrl.calls, "nothing runs until the command is executed")

	msg := cmd()
	assert.Equal(t, ResultMsg{}, msg)
	assert.Equal(t, []string{"move 2 5"}, ctrl.calls)

	m.Update(msg)
	assert.Equal(t, 0, m.pending)
	assert.Empty(t, m.actionInput.Value())
}

func TestModelHelpAndParseErrors(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(enter(t, m, "help")())
	require.Len(t, m.Log(), 1)
	assert.Contains(t, m.Log()[0], "undo the last move")

	enter(t, m, "fold")
	require.Len(t, m.Log(), 2)
	assert.Contains(t, m.Log()[1], "unknown command")
}

func TestModelShowsNotices(t *testing.T) {
	m, _ := newTestModel(t)

	m.Show(notify.Notice{Level: notify.LevelError, Message: "Not enough coins"})
	msg := m.listen()()
	m.Update(msg)

	require.Len(t, m.Log(), 1)
	assert.Contains(t, m.Log()[0], "Not enough coins")
}

func TestModelQuitsOnNavigation(t *testing.T) {
	m, _ := newTestModel(t)

	m.ToEntry()
	_, cmd := m.Update(m.listen()())
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Equal(t, "Please sign in!", m.ExitReason())
}

func TestModelView(t *testing.T) {
	m, ctrl := newTestModel(t)
	assert.Equal(t, "Loading...", m.View())

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Contains(t, m.View(), "No game yet")

	ctrl.status = session.StatusActive
	ctrl.snap = &session.Session{
		ID:            "s",
		Config:        api.Config{NumberOfBoards: 2, BoardSize: 3, Difficulty: 1},
		Boards:        []api.Board{make(api.Board, 9), {"X", "X", "X", "", "", "", "", "", ""}},
		CurrentPlayer: 1,
	}
	view := m.View()
	assert.Contains(t, view, "Board 0")
	assert.Contains(t, view, "Board 1")
	assert.Contains(t, view, "Your turn")
	assert.Contains(t, view, "Coins: 1000")
}

func TestSidebarLocksUnaffordableActions(t *testing.T) {
	b, ctrl, _ := newTestBridge()
	wallet := store.New()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	m := NewModel(context.Background(), b, ctrl, wallet, logger)

	pane := m.renderSidebarPane()
	assert.Contains(t, pane, "Undo: 100 coins")
	assert.NotContains(t, pane, "(locked)")

	wallet.SetBalance(store.Balance{Coins: 150})
	pane = m.renderSidebarPane()
	assert.NotContains(t, pane, "Undo: 100 coins (locked)")
	assert.Contains(t, pane, "Skip: 200 coins (locked)")

	wallet.SetBalance(store.Balance{Coins: 20})
	pane = m.renderSidebarPane()
	assert.Contains(t, pane, "Undo: 100 coins (locked)")
}

func TestEffects(t *testing.T) {
	var out bytes.Buffer
	fx := NewEffects(&out, false)
	fx.MoveSound()
	fx.WinSound()
	assert.Equal(t, "\a\a\a", out.String())

	out.Reset()
	NewEffects(&out, true).WinSound()
	assert.Empty(t, out.String())
}

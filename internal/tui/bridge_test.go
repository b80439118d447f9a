package tui

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/notakto/internal/api"
	"github.com/lox/notakto/internal/payment"
	"github.com/lox/notakto/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  Command
	}{
		{"", Command{Action: ActionNone}},
		{"0 4", Command{Action: ActionMove, Args: []int{0, 4}}},
		{"m 2 8", Command{Action: ActionMove, Args: []int{2, 8}}},
		{"MOVE 1 1", Command{Action: ActionMove, Args: []int{1, 1}}},
		{"r", Command{Action: ActionReset, Args: []int{}}},
		{"undo", Command{Action: ActionUndo, Args: []int{}}},
		{"s", Command{Action: ActionSkip, Args: []int{}}},
		{"c 4 3", Command{Action: ActionConfig, Args: []int{4, 3}}},
		{"d 5", Command{Action: ActionDifficulty, Args: []int{5}}},
		{"new", Command{Action: ActionNew, Args: []int{}}},
		{"buy", Command{Action: ActionBuy, Args: []int{}}},
		{"cancel", Command{Action: ActionCancelPurchase, Args: []int{}}},
		{"logout", Command{Action: ActionSignOut, Args: []int{}}},
		{"sign-out", Command{Action: ActionSignOut, Args: []int{}}},
		{"?", Command{Action: ActionHelp, Args: []int{}}},
		{"q", Command{Action: ActionQuit, Args: []int{}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, input := range []string{"fold", "m 1", "0", "c 3", "d x", "undo 2", "1 2 3"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseCommand(input)
			assert.Error(t, err)
		})
	}
}

type fakeController struct {
	calls    []string
	err      error
	canReset bool
	snap     *session.Session
	status   session.Status
}

func (f *fakeController) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeController) Initialize(_ context.Context, cfg api.Config) error {
	return f.record("init %d %d %d", cfg.NumberOfBoards, cfg.BoardSize, cfg.Difficulty)
}

func (f *fakeController) SubmitMove(_ context.Context, b, c int) error {
	return f.record("move %d %d", b, c)
}

func (f *fakeController) Reset(context.Context) error { return f.record("reset") }
func (f *fakeController) RequestUndo(context.Context) error { return f.record("undo") }
func (f *fakeController) RequestSkip(context.Context) error { return f.record("skip") }

func (f *fakeController) UpdateConfiguration(_ context.Context, n, size int) error {
	return f.record("config %d %d", n, size)
}

func (f *fakeController) UpdateDifficulty(_ context.Context, level int) error {
	return f.record("difficulty %d", level)
}

func (f *fakeController) CanOfferReset() bool { return f.canReset }
func (f *fakeController) Snapshot() *session.Session { return f.snap }
func (f *fakeController) Status() session.Status { return f.status }

type fakePurchaser struct {
	outcome   payment.Outcome
	err       error
	buys      int
	cancelled int
}

func (f *fakePurchaser) Buy(context.Context) (payment.Outcome, error) {
	f.buys++
	return f.outcome, f.err
}

func (f *fakePurchaser) Cancel() { f.cancelled++ }

type fakeAccounts struct{ signOuts int }

func (f *fakeAccounts) SignOut() { f.signOuts++ }

func newTestBridge() (*Bridge, *fakeController, *fakePurchaser) {
	b, ctrl, buyer, _ := newTestBridgeWithAccounts()
	return b, ctrl, buyer
}

func newTestBridgeWithAccounts() (*Bridge, *fakeController, *fakePurchaser, *fakeAccounts) {
	ctrl := &fakeController{}
	buyer := &fakePurchaser{outcome: payment.OutcomePaid}
	accounts := &fakeAccounts{}
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	b := NewBridge(ctrl, buyer, accounts, api.Config{NumberOfBoards: 3, BoardSize: 3, Difficulty: 1}, logger)
	return b, ctrl, buyer, accounts
}

func TestBridgeDispatch(t *testing.T) {
	b, ctrl, _ := newTestBridge()
	ctx := context.Background()

	for _, input := range []string{"1 4", "u", "s", "c 2 4", "d 3", "new"} {
		cmd, err := ParseCommand(input)
		require.NoError(t, err)
		assert.Empty(t, b.Execute(ctx, cmd), input)
	}

	assert.Equal(t, []string{"move 1 4", "undo", "skip", "config 2 4", "difficulty 3", "init 3 3 1"}, ctrl.calls)
}

func TestBridgeNewGameKeepsCurrentConfig(t *testing.T) {
	b, ctrl, _ := newTestBridge()
	ctrl.snap = &session.Session{Config: api.Config{NumberOfBoards: 5, BoardSize: 4, Difficulty: 2}}

	b.Execute(context.Background(), Command{Action: ActionNew})
	assert.Equal(t, []string{"init 5 4 2"}, ctrl.calls)
}

func TestBridgeResetNeedsAMove(t *testing.T) {
	b, ctrl, _ := newTestBridge()
	ctrl.snap = &session.Session{ID: "s"}

	assert.Equal(t, "Nothing to reset yet", b.Execute(context.Background(), Command{Action: ActionReset}))
	assert.Empty(t, ctrl.calls)

	ctrl.canReset = true
	b.Execute(context.Background(), Command{Action: ActionReset})
	assert.Equal(t, []string{"reset"}, ctrl.calls)

	ctrl.canReset = false
	ctrl.snap.GameOver = true
	b.Execute(context.Background(), Command{Action: ActionReset})
	assert.Equal(t, []string{"reset", "reset"}, ctrl.calls)
}

func TestBridgeReportsGuardAndStatus(t *testing.T) {
	b, ctrl, _ := newTestBridge()

	ctrl.err = session.ErrBusy
	assert.Equal(t, "Still working on the previous request", b.Execute(context.Background(), Command{Action: ActionUndo}))

	ctrl.err = fmt.Errorf("%w (status %s)", session.ErrNotActive, session.StatusReconfiguring)
	ctrl.status = session.StatusReconfiguring
	assert.Equal(t, "Not available right now: reconfiguring",
		b.Execute(context.Background(), Command{Action: ActionMove, Args: []int{0, 0}}))
}

func TestBridgePurchase(t *testing.T) {
	b, _, buyer := newTestBridge()

	assert.Equal(t, "Purchase finished: paid", b.Execute(context.Background(), Command{Action: ActionBuy}))

	buyer.err = payment.ErrInProgress
	assert.Contains(t, b.Execute(context.Background(), Command{Action: ActionBuy}), "already in progress")

	b.Execute(context.Background(), Command{Action: ActionCancelPurchase})
	assert.Equal(t, 1, buyer.cancelled)
	assert.Equal(t, 2, buyer.buys)
}

func TestBridgeSignOut(t *testing.T) {
	b, ctrl, buyer, accounts := newTestBridgeWithAccounts()

	cmd, err := ParseCommand("logout")
	require.NoError(t, err)
	assert.Contains(t, b.Execute(context.Background(), cmd), "Signed out")

	assert.Equal(t, 1, accounts.signOuts)
	assert.Equal(t, 1, buyer.cancelled, "a running purchase is abandoned")
	assert.Empty(t, ctrl.calls)
}

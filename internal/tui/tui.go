package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/notakto/internal/board"
	"github.com/lox/notakto/internal/economy"
	"github.com/lox/notakto/internal/notify"
	"github.com/lox/notakto/internal/session"
	"github.com/lox/notakto/internal/store"
)

// Snapshotter exposes the read side of the session controller.
type Snapshotter interface {
	Snapshot() *session.Session
	Status() session.Status
}

// Wallet exposes the balances shown in the sidebar.
type Wallet interface {
	Balance() store.Balance
	Profile() (store.Profile, bool)
}

// Model is the Bubble Tea model for a game against the computer.
type Model struct {
	ctx    context.Context
	bridge *Bridge
	game   Snapshotter
	wallet Wallet
	logger *log.Logger

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	// State
	gameLog     []string
	events      chan tea.Msg
	quitting    bool
	exitReason  string
	focusedPane int // 0 = log, 1 = input
	pending     int
	startup     []Command

	// Dimensions
	width       int
	height      int
	initialized bool
}

// NoticeMsg delivers a notice that passed the throttle.
type NoticeMsg struct{ Notice notify.Notice }

// ResultMsg carries the log line produced by a finished command.
type ResultMsg struct{ Line string }

// QuitMsg asks the program to exit, with a reason shown after teardown.
type QuitMsg struct{ Reason string }

// NewModel creates the game model. ctx bounds every command it starts.
func NewModel(ctx context.Context, bridge *Bridge, game Snapshotter, wallet Wallet, logger *log.Logger) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "<board> <cell> to play, 'help' for commands"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 64
	ti.PromptStyle = PromptStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	return &Model{
		ctx:         ctx,
		bridge:      bridge,
		game:        game,
		wallet:      wallet,
		logger:      logger.WithPrefix("tui"),
		logViewport: vp,
		actionInput: ti,
		events:      make(chan tea.Msg, 64),
		focusedPane: 1,
	}
}

// Enqueue schedules cmd to run when the program starts.
func (m *Model) Enqueue(cmd Command) {
	m.startup = append(m.startup, cmd)
}

// Init starts the cursor blink, the event listener and queued commands.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.listen()}
	for _, c := range m.startup {
		cmds = append(cmds, m.run(c))
	}
	m.startup = nil
	return tea.Batch(cmds...)
}

// listen returns a command that delivers the next queued event.
func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.ctx.Done():
			return QuitMsg{}
		}
	}
}

// post queues msg for the UI loop without blocking the caller.
func (m *Model) post(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
		m.logger.Warn("Dropping UI event, queue full", "type", fmt.Sprintf("%T", msg))
	}
}

// Show implements notify.Sink.
func (m *Model) Show(n notify.Notice) { m.post(NoticeMsg{Notice: n}) }

// ToEntry implements session.Navigator: the entry screen of this client
// is outside the game, so the program exits.
func (m *Model) ToEntry() { m.post(QuitMsg{Reason: "Please sign in!"}) }

// ExitReason explains why the model quit, if it was not the user's choice.
func (m *Model) ExitReason() string { return m.exitReason }

// Log returns the game log lines.
func (m *Model) Log() []string {
	return append([]string(nil), m.gameLog...)
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case QuitMsg:
		m.quitting = true
		m.exitReason = msg.Reason
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case NoticeMsg:
		m.AddLogEntry(renderNotice(msg.Notice))
		cmds = append(cmds, m.listen())

	case ResultMsg:
		m.pending--
		if msg.Line != "" {
			m.AddLogEntry(msg.Line)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("Updating dimensions", "width", m.width, "height", m.height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.actionInput.Focus()
			} else {
				m.focusedPane = 0
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				input := strings.TrimSpace(m.actionInput.Value())
				m.actionInput.SetValue("")
				if cmd := m.submit(input); cmd != nil {
					return m, cmd
				}
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "home", "g":
			if m.focusedPane == 0 {
				m.logViewport.GotoTop()
			}
		case "end", "G":
			if m.focusedPane == 0 {
				m.logViewport.GotoBottom()
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == 1 {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit parses input and returns a command that executes it off the UI
// loop. The controller's guards decide whether overlapping commands run.
func (m *Model) submit(input string) tea.Cmd {
	cmd, err := ParseCommand(input)
	if err != nil {
		m.AddLogEntry(ErrorStyle.Render(err.Error()))
		return nil
	}

	switch cmd.Action {
	case ActionNone:
		return nil
	case ActionQuit:
		m.quitting = true
		return tea.Sequence(tea.ClearScreen, tea.Quit)
	}

	return m.run(cmd)
}

func (m *Model) run(cmd Command) tea.Cmd {
	m.pending++
	ctx := m.ctx
	return func() tea.Msg {
		return ResultMsg{Line: m.bridge.Execute(ctx, cmd)}
	}
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionPane := paneStyle(m.focusedPane == 1).
		Width(max(m.width-2, 1)).
		Height(max(actionHeight, 1)).
		Render(actionContent)

	sidebarContent := m.renderSidebarPane()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 28)
	topHeight := max(m.height-actionHeight-4, 1)
	sidebarPane := paneStyle(false).
		Width(sidebarWidth).
		Height(topHeight).
		Render(sidebarContent)

	boards := m.renderBoards()
	logWidth := max(m.width-sidebarWidth-4, 1)
	logHeight := max(topHeight-lipgloss.Height(boards)-1, 1)
	m.logViewport.Width = logWidth
	m.logViewport.Height = logHeight
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if !m.initialized && logWidth > 1 && logHeight > 1 {
		m.logViewport.GotoBottom()
		m.initialized = true
	}

	mainPane := paneStyle(m.focusedPane == 0).
		Width(logWidth).
		Height(topHeight).
		Render(lipgloss.JoinVertical(lipgloss.Left, boards, "", m.logViewport.View()))

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, mainPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

// renderBoards draws every board side by side, dead boards dimmed.
func (m *Model) renderBoards() string {
	snap := m.game.Snapshot()
	if snap == nil {
		return InfoStyle.Render("No game yet. Type 'new' to start.")
	}

	size := snap.Config.BoardSize
	rendered := make([]string, 0, len(snap.Boards))
	for i, b := range snap.Boards {
		style := BoardStyle
		if board.IsDead(b, size) {
			style = DeadBoardStyle
		}
		title := fmt.Sprintf("Board %d", i)
		rendered = append(rendered, style.Render(title+"\n"+board.Render(b, size)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// renderSidebarPane shows the player, balances and game settings.
func (m *Model) renderSidebarPane() string {
	var content strings.Builder

	if prof, ok := m.wallet.Profile(); ok && prof.Name != "" {
		content.WriteString(HeaderStyle.Render(" " + prof.Name + " "))
		content.WriteString("\n\n")
	}

	bal := m.wallet.Balance()
	content.WriteString(CoinStyle.Render(fmt.Sprintf("Coins: %d", bal.Coins)))
	content.WriteString("\n")
	content.WriteString(InfoStyle.Render(fmt.Sprintf("XP: %d", bal.XP)))
	content.WriteString("\n")
	content.WriteString(priceTag("Undo", bal.Coins, economy.ActionUndo))
	content.WriteString("\n")
	content.WriteString(priceTag("Skip", bal.Coins, economy.ActionSkip))
	content.WriteString("\n\n")

	status := m.game.Status()
	content.WriteString(StatusStyle.Render("Status: " + status.String()))
	content.WriteString("\n")

	if snap := m.game.Snapshot(); snap != nil {
		content.WriteString(fmt.Sprintf("Boards: %d  Size: %d\n", snap.Config.NumberOfBoards, snap.Config.BoardSize))
		content.WriteString(fmt.Sprintf("Difficulty: %d\n", snap.Config.Difficulty))
		switch {
		case snap.GameOver:
			content.WriteString(WinnerStyle.Render("Winner: " + snap.Winner))
		case snap.CurrentPlayer == 1:
			content.WriteString(SuccessStyle.Render("Your turn"))
		default:
			content.WriteString(InfoStyle.Render("Computer's turn"))
		}
		content.WriteString("\n")
	}
	return content.String()
}

// priceTag labels a paid action, dimmed and marked locked when the cached
// balance cannot cover it.
func priceTag(label string, coins int, a economy.Action) string {
	text := fmt.Sprintf("%s: %d coins", label, economy.Cost(a))
	if !economy.CanAfford(coins, a) {
		return InfoStyle.Render(text + " (locked)")
	}
	return SuccessStyle.Render(text)
}

// renderActionPane renders the input and the help line.
func (m *Model) renderActionPane() string {
	var content strings.Builder

	if m.pending > 0 {
		content.WriteString(InfoStyle.Render("Working..."))
		content.WriteString("\n")
	}
	content.WriteString(m.actionInput.View())
	content.WriteString("\n")

	if m.focusedPane == 0 {
		content.WriteString(InfoStyle.Render("Log focused: ↑↓ scroll, Home/End, Tab to input"))
	} else {
		content.WriteString(InfoStyle.Render("Tab to scroll log • Enter to submit • Ctrl+C to quit"))
	}
	return content.String()
}

// AddLogEntry appends an entry to the game log and scrolls to it.
func (m *Model) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

func renderNotice(n notify.Notice) string {
	switch n.Level {
	case notify.LevelError:
		return ErrorStyle.Render(n.Message)
	case notify.LevelSuccess:
		return SuccessStyle.Render(n.Message)
	default:
		return WarningStyle.Render(n.Message)
	}
}

// Effects rings the terminal bell for moves and wins.
type Effects struct {
	out  io.Writer
	mute bool
}

// NewEffects returns session effects writing to out.
func NewEffects(out io.Writer, mute bool) *Effects {
	return &Effects{out: out, mute: mute}
}

func (e *Effects) MoveSound() { e.ring(1) }

func (e *Effects) WinSound() { e.ring(2) }

func (e *Effects) ring(n int) {
	if e.mute || e.out == nil {
		return
	}
	_, _ = io.WriteString(e.out, strings.Repeat("\a", n))
}

// Run starts the program and blocks until it exits. Cancelling the
// model's context is a normal exit.
func Run(m *Model, output io.Writer) error {
	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(m.ctx)}
	if output != nil {
		opts = append(opts, tea.WithOutput(output))
	}
	_, err := tea.NewProgram(m, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/lox/notakto/internal/account"
	"github.com/lox/notakto/internal/api"
	"github.com/lox/notakto/internal/board"
	"github.com/lox/notakto/internal/economy"
	"github.com/lox/notakto/internal/notify"
	"github.com/lox/notakto/internal/payment"
	"github.com/lox/notakto/internal/session"
	"github.com/lox/notakto/internal/tui"
	"golang.org/x/sync/errgroup"
)

type PlayCmd struct {
	Boards     int  `short:"b" help:"Number of boards (overrides config)"`
	Size       int  `help:"Board size (overrides config)"`
	Difficulty int  `short:"d" help:"Computer difficulty (overrides config)"`
	NoColor    bool `help:"Disable colors"`
	Mute       bool `help:"Disable the terminal bell"`
}

func (c *PlayCmd) Run(g *Globals) error {
	a, err := newApp(g, true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cfg := api.Config{
		NumberOfBoards: pick(c.Boards, a.cfg.Game.Boards),
		BoardSize:      pick(c.Size, a.cfg.Game.BoardSize),
		Difficulty:     pick(c.Difficulty, a.cfg.Game.Difficulty),
	}
	if c.NoColor || a.cfg.UI.NoColor || os.Getenv("NO_COLOR") != "" {
		tui.DisableColor()
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	quiet := notify.NewThrottle(notify.LogSink{Logger: a.logger}, notify.DefaultCooldown, nil)
	accounts := account.NewService(client, a.store, quiet, a.logger)
	if _, err := accounts.SignIn(ctx, id); err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}
	if err := accounts.StartGame(); err != nil {
		return err
	}

	a.logger.Info("Starting notakto", "server", a.cfg.Server.URL, "boards", cfg.NumberOfBoards,
		"size", cfg.BoardSize, "difficulty", cfg.Difficulty)

	// The model is both the notice sink and the navigator, so it is built
	// before the controller and handed the bridge afterwards.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var model *tui.Model
	notifier := notify.NewThrottle(notify.SinkFunc(func(n notify.Notice) { model.Show(n) }), notify.DefaultCooldown, quartz.NewReal())

	controller := session.New(session.Deps{
		Backend:   client,
		State:     a.store,
		Notifier:  notifier,
		Navigator: navigatorFunc(func() { model.ToEntry() }),
		Effects:   tui.NewEffects(os.Stderr, c.Mute || a.cfg.UI.Mute),
		Convert:   board.Convert,
		Logger:    a.logger,
	})

	poller := payment.NewPoller(client, quartz.NewReal(), a.cfg.PollInterval(), a.cfg.MaxWait(), a.logger)
	order := payment.Order{
		Amount:     a.cfg.Payment.Amount,
		Currency:   a.cfg.Payment.Currency,
		CustomerID: id.Subject(),
		Coins:      a.cfg.Payment.Coins,
	}
	purchaser := payment.NewPurchaser(client, payment.BrowserOpener{Logger: a.logger}, poller, a.store, notifier, order, a.logger)

	bridge := tui.NewBridge(controller, purchaser, accounts, cfg, a.logger)
	model = tui.NewModel(ctx, bridge, controller, a.store, a.logger)
	model.AddLogEntry("=== Notakto ===")
	model.AddLogEntry("Make the last move and you lose. Type 'help' for commands.")
	model.Enqueue(tui.Command{Action: tui.ActionNew})

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		defer cancel()
		return tui.Run(model, nil)
	})
	if a.cfg.Server.BalanceURL != "" {
		feed := economy.NewFeed(a.cfg.Server.BalanceURL, a.store, quartz.NewReal(), a.logger)
		grp.Go(func() error {
			if err := feed.Run(gctx, id); err != nil {
				// Balances stay at their last value; the game still works.
				a.logger.Warn("Balance feed stopped", "error", err)
			}
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return err
	}
	if reason := model.ExitReason(); reason != "" {
		fmt.Fprintln(os.Stderr, reason)
	}
	return nil
}

type navigatorFunc func()

func (f navigatorFunc) ToEntry() { f() }

func pick(flag, fallback int) int {
	if flag != 0 {
		return flag
	}
	return fallback
}

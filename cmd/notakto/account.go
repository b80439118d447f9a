package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/notakto/internal/account"
	"github.com/lox/notakto/internal/auth"
	"github.com/lox/notakto/internal/notify"
	"github.com/lox/notakto/internal/payment"
)

var titleStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	Padding(0, 1).
	Bold(true)

type SignInCmd struct{}

func (c *SignInCmd) Run(g *Globals) error {
	a, err := newApp(g, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	client, err := a.client()
	if err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}

	notifier := notify.NewThrottle(notify.LogSink{Logger: a.logger}, notify.DefaultCooldown, nil)
	prof, err := account.NewService(client, a.store, notifier, a.logger).SignIn(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(" " + prof.Name + " "))
	fmt.Println("Email:  ", prof.Email)
	fmt.Println("Subject:", id.Subject())
	if prof.NewAccount {
		fmt.Println("Welcome! This is a new account.")
	}
	if exp, ok := expiry(context.Background(), id); ok {
		fmt.Println("Token expires:", exp.Local().Format(time.RFC1123))
	}
	return nil
}

func expiry(ctx context.Context, id auth.Identity) (time.Time, bool) {
	token, err := id.Token(ctx)
	if err != nil {
		return time.Time{}, false
	}
	return auth.ExpiresAt(token)
}

type BuyCoinsCmd struct {
	PrintURL bool `help:"Print the payment URL instead of opening a browser"`
}

func (c *BuyCoinsCmd) Run(g *Globals) error {
	a, err := newApp(g, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

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

	notifier := notify.NewThrottle(notify.LogSink{Logger: a.logger}, notify.DefaultCooldown, nil)
	if _, err := account.NewService(client, a.store, notifier, a.logger).SignIn(ctx, id); err != nil {
		return err
	}

	var opener payment.Opener = payment.BrowserOpener{Logger: a.logger}
	if c.PrintURL {
		opener = payment.PrintOpener{Print: func(url string) {
			fmt.Println("Complete the payment at:", url)
		}}
	}

	poller := payment.NewPoller(client, nil, a.cfg.PollInterval(), a.cfg.MaxWait(), a.logger)
	order := payment.Order{
		Amount:     a.cfg.Payment.Amount,
		Currency:   a.cfg.Payment.Currency,
		CustomerID: id.Subject(),
		Coins:      a.cfg.Payment.Coins,
	}
	outcome, err := payment.NewPurchaser(client, opener, poller, a.store, notifier, order, a.logger).Buy(ctx)
	if err != nil {
		return err
	}
	if !outcome.Success() {
		return errors.New(outcome.Reason())
	}
	return nil
}

type TokenCmd struct {
	Subject string        `help:"Token subject (overrides config)"`
	TTL     time.Duration `help:"Token lifetime (overrides config)"`
}

func (c *TokenCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return errors.New("auth.secret is not configured")
	}

	subject := cfg.Auth.Subject
	if c.Subject != "" {
		subject = c.Subject
	}
	ttl := cfg.TokenTTL()
	if c.TTL > 0 {
		ttl = c.TTL
	}

	token, err := auth.NewHMACIdentity(subject, []byte(cfg.Auth.Secret), ttl).Token(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

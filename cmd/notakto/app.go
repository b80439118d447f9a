package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/lox/notakto/internal/api"
	"github.com/lox/notakto/internal/auth"
	"github.com/lox/notakto/internal/config"
	"github.com/lox/notakto/internal/store"
)

// app holds what every command shares once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   *store.Store
	closeFn func() error
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(g *Globals) (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if g.Server != "" {
		cfg.Server.URL = g.Server
	}
	if g.LogLevel != "" {
		cfg.UI.LogLevel = g.LogLevel
	}
	if g.LogFile != "" {
		cfg.UI.LogFile = g.LogFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp loads configuration and sets up logging. When toFile is set the
// log goes to the configured file, truncated, so it does not fight the TUI
// for the terminal.
func newApp(g *Globals, toFile bool) (*app, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stderr
	closeFn := func() error { return nil }
	if toFile {
		f, err := os.OpenFile(cfg.UI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closeFn = f, f.Close
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	level, err := log.ParseLevel(cfg.UI.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	return &app{cfg: cfg, logger: logger, store: store.New(), closeFn: closeFn}, nil
}

func (a *app) Close() error { return a.closeFn() }

// client builds the backend client. A missing base URL fails here, before
// any request is attempted.
func (a *app) client() (*api.Client, error) {
	return api.NewClient(a.cfg.Server.URL, &http.Client{Timeout: a.cfg.RequestTimeout()}, a.logger)
}

// identity picks the credential source: a pasted token wins over a shared
// signing secret.
func (a *app) identity() (auth.Identity, error) {
	switch {
	case a.cfg.Auth.Token != "":
		return auth.NewStaticIdentity(a.cfg.Auth.Token, a.cfg.Auth.Subject), nil
	case a.cfg.Auth.Secret != "":
		return auth.NewHMACIdentity(a.cfg.Auth.Subject, []byte(a.cfg.Auth.Secret), a.cfg.TokenTTL()), nil
	default:
		return nil, fmt.Errorf("no credentials configured: set auth.token, auth.secret or %s", config.EnvToken)
	}
}

// Package config loads the client configuration from an HCL file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Environment overrides.
const (
	EnvAPIURL = "NOTAKTO_API_URL"
	EnvToken  = "NOTAKTO_TOKEN"
)

// Config represents the complete client configuration
type Config struct {
	Server  Server  `hcl:"server,block"`
	Auth    Auth    `hcl:"auth,block"`
	Game    Game    `hcl:"game,block"`
	Payment Payment `hcl:"payment,block"`
	UI      UI      `hcl:"ui,block"`
}

// Server contains backend connection settings
type Server struct {
	URL            string `hcl:"url,optional"`
	BalanceURL     string `hcl:"balance_url,optional"`
	RequestTimeout string `hcl:"request_timeout,optional"`
}

// Auth selects how bearer credentials are produced. A token wins over a
// secret.
type Auth struct {
	Token   string `hcl:"token,optional"`
	Secret  string `hcl:"secret,optional"`
	Subject string `hcl:"subject,optional"`
	TTL     string `hcl:"ttl,optional"`
}

// Game holds the configuration a new game starts with
type Game struct {
	Boards     int `hcl:"boards,optional"`
	BoardSize  int `hcl:"board_size,optional"`
	Difficulty int `hcl:"difficulty,optional"`
}

// Payment configures the coin purchase flow
type Payment struct {
	Amount       string `hcl:"amount,optional"`
	Currency     string `hcl:"currency,optional"`
	Coins        int    `hcl:"coins,optional"`
	PollInterval string `hcl:"poll_interval,optional"`
	MaxWait      string `hcl:"max_wait,optional"`
}

// UI contains user interface settings
type UI struct {
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
	NoColor  bool   `hcl:"no_color,optional"`
	Mute     bool   `hcl:"mute,optional"`
}

// Default returns the default configuration. The server URL has no
// default; it must come from the file or the environment.
func Default() *Config {
	return &Config{
		Server: Server{
			RequestTimeout: "15s",
		},
		Auth: Auth{
			Subject: "player",
			TTL:     "1h",
		},
		Game: Game{
			Boards:     3,
			BoardSize:  3,
			Difficulty: 1,
		},
		Payment: Payment{
			Amount:       "1.00",
			Currency:     "INR",
			Coins:        100,
			PollInterval: "3s",
			MaxWait:      "15m",
		},
		UI: UI{
			LogLevel: "info",
			LogFile:  "notakto.log",
		},
	}
}

// Load reads filename, fills unset values from Default and applies
// environment overrides. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			parsed, err := parse(filename)
			if err != nil {
				return nil, err
			}
			cfg = parsed
			cfg.fill(Default())
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func parse(filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	return &cfg, nil
}

func (c *Config) fill(d *Config) {
	setString(&c.Server.RequestTimeout, d.Server.RequestTimeout)
	setString(&c.Auth.Subject, d.Auth.Subject)
	setString(&c.Auth.TTL, d.Auth.TTL)
	setInt(&c.Game.Boards, d.Game.Boards)
	setInt(&c.Game.BoardSize, d.Game.BoardSize)
	setInt(&c.Game.Difficulty, d.Game.Difficulty)
	setString(&c.Payment.Amount, d.Payment.Amount)
	setString(&c.Payment.Currency, d.Payment.Currency)
	setInt(&c.Payment.Coins, d.Payment.Coins)
	setString(&c.Payment.PollInterval, d.Payment.PollInterval)
	setString(&c.Payment.MaxWait, d.Payment.MaxWait)
	setString(&c.UI.LogLevel, d.UI.LogLevel)
	setString(&c.UI.LogFile, d.UI.LogFile)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.Auth.Token = v
	}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Game.Boards < 1 || c.Game.Boards > 5 {
		return fmt.Errorf("boards must be between 1 and 5")
	}
	if c.Game.BoardSize < 2 || c.Game.BoardSize > 5 {
		return fmt.Errorf("board size must be between 2 and 5")
	}
	if c.Game.Difficulty < 1 || c.Game.Difficulty > 5 {
		return fmt.Errorf("difficulty must be between 1 and 5")
	}
	if c.Payment.Coins <= 0 {
		return fmt.Errorf("payment coins must be positive")
	}

	durations := map[string]string{
		"server.request_timeout": c.Server.RequestTimeout,
		"auth.ttl":               c.Auth.TTL,
		"payment.poll_interval":  c.Payment.PollInterval,
		"payment.max_wait":       c.Payment.MaxWait,
	}
	for name, v := range durations {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if c.PollInterval() <= 0 {
		return fmt.Errorf("payment.poll_interval must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.UI.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	}

	return nil
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration { return mustDuration(c.Server.RequestTimeout) }

// TokenTTL returns the lifetime of locally minted credentials.
func (c *Config) TokenTTL() time.Duration { return mustDuration(c.Auth.TTL) }

// PollInterval returns the payment status polling period.
func (c *Config) PollInterval() time.Duration { return mustDuration(c.Payment.PollInterval) }

// MaxWait bounds a purchase; zero means unbounded.
func (c *Config) MaxWait() time.Duration { return mustDuration(c.Payment.MaxWait) }

// mustDuration parses a value Validate has already checked.
func mustDuration(v string) time.Duration {
	d, _ := time.ParseDuration(v)
	return d
}

package economy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/notakto/internal/auth"
	"github.com/lox/notakto/internal/store"
)

// BalanceWriter receives balance pushes.
type BalanceWriter interface {
	SetBalance(store.Balance)
}

// snapshot is one push from the server. A missing document or missing
// fields fall back to the defaults.
type snapshot struct {
	Exists *bool `json:"exists"`
	Coins  *int  `json:"coins"`
	XP     *int  `json:"xp"`
}

func (s snapshot) balance() store.Balance {
	b := store.Balance{Coins: store.DefaultCoins, XP: store.DefaultXP}
	if s.Exists != nil && !*s.Exists {
		return b
	}
	if s.Coins != nil {
		b.Coins = *s.Coins
	}
	if s.XP != nil {
		b.XP = *s.XP
	}
	return b
}

// Redial backoff bounds. The delay doubles after each failed connection and
// starts over once a connection has delivered a push.
const (
	MinRedial = time.Second
	MaxRedial = 30 * time.Second
)

// Feed subscribes to the per-identity balance channel over a websocket and
// redials with backoff when the connection drops.
type Feed struct {
	url    string
	dialer *websocket.Dialer
	sink   BalanceWriter
	clock  quartz.Clock
	logger *log.Logger
}

// NewFeed creates a balance feed writing into sink. A nil clock uses the
// real one.
func NewFeed(feedURL string, sink BalanceWriter, clock quartz.Clock, logger *log.Logger) *Feed {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Feed{
		url:    feedURL,
		dialer: websocket.DefaultDialer,
		sink:   sink,
		clock:  clock,
		logger: logger.WithPrefix("balance"),
	}
}

// Run subscribes for id and applies pushes until ctx is cancelled or the
// server closes the channel normally. Dropped connections are redialled.
// A cancelled context is not an error.
func (f *Feed) Run(ctx context.Context, id auth.Identity) error {
	if id == nil {
		f.logger.Debug("No identity, skipping balance subscription")
		return nil
	}

	target, err := f.target(id)
	if err != nil {
		return err
	}

	backoff := MinRedial
	for {
		received, err := f.listen(ctx, target, id)
		if ctx.Err() != nil || err == nil {
			return nil
		}
		if received {
			backoff = MinRedial
		}

		f.logger.Warn("Balance channel lost, redialling", "error", err, "backoff", backoff)
		timer := f.clock.NewTimer(backoff, "balance", "redial")
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff = min(backoff*2, MaxRedial)
	}
}

func (f *Feed) target(id auth.Identity) (string, error) {
	u, err := url.Parse(f.url)
	if err != nil {
		return "", fmt.Errorf("invalid balance URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("uid", id.Subject())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// listen runs one connection. It returns nil when the server closed the
// channel normally, and reports whether any push arrived.
func (f *Feed) listen(ctx context.Context, target string, id auth.Identity) (bool, error) {
	token, err := id.Token(ctx)
	if err != nil {
		return false, fmt.Errorf("balance credential: %w", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	f.logger.Info("Subscribing to balance updates", "uid", id.Subject())
	conn, _, err := f.dialer.DialContext(ctx, target, header)
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	received := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				f.logger.Info("Balance channel closed by server")
				return received, nil
			}
			return received, fmt.Errorf("balance channel: %w", err)
		}

		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			f.logger.Warn("Ignoring malformed balance push", "error", err)
			continue
		}

		b := snap.balance()
		f.logger.Debug("Balance update", "coins", b.Coins, "xp", b.XP)
		f.sink.SetBalance(b)
		received = true
	}
}

// Package payment drives the coin purchase flow: a charge is created, the
// provider page is opened in a secondary window and a poller watches the
// charge until it reaches a terminal outcome.
package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/notakto/internal/api"
)

const (
	// DefaultInterval is the fixed status polling period.
	DefaultInterval = 3 * time.Second

	// DefaultMaxWait bounds a single purchase attempt.
	DefaultMaxWait = 15 * time.Minute
)

// Outcome is the terminal result of watching a charge.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomePaid
	OutcomeConfirmed
	OutcomeExpired
	OutcomeCanceled
	OutcomeUserCancelled
	OutcomeVerificationFailed
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomePaid:
		return "paid"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeExpired:
		return "expired"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeUserCancelled:
		return "user-cancelled"
	case OutcomeVerificationFailed:
		return "verification-failed"
	case OutcomeTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Success reports whether the charge was settled.
func (o Outcome) Success() bool {
	return o == OutcomePaid || o == OutcomeConfirmed
}

// Reason is the user-facing explanation of a failed outcome.
func (o Outcome) Reason() string {
	switch o {
	case OutcomeUserCancelled:
		return "Payment was manually cancelled."
	case OutcomeExpired, OutcomeCanceled:
		return "Payment expired or failed."
	case OutcomeVerificationFailed:
		return "Unable to verify payment status. Please try again."
	case OutcomeTimedOut:
		return "Payment was not confirmed in time."
	default:
		return ""
	}
}

// Window is the secondary context showing the provider page.
type Window interface {
	Closed() bool
	Close() error
}

// StatusSource fetches the status of a charge.
type StatusSource interface {
	OrderStatus(ctx context.Context, chargeID string) (api.ChargeStatus, error)
}

// errStop ends the ticker once an outcome is reported.
var errStop = errors.New("payment: poll finished")

// Poller watches one charge per Start call.
type Poller struct {
	source   StatusSource
	clock    quartz.Clock
	interval time.Duration
	maxWait  time.Duration
	logger   *log.Logger
}

// NewPoller creates a poller. interval <= 0 uses DefaultInterval; maxWait
// of zero disables the bound.
func NewPoller(source StatusSource, clock quartz.Clock, interval, maxWait time.Duration, logger *log.Logger) *Poller {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		source:   source,
		clock:    clock,
		interval: interval,
		maxWait:  maxWait,
		logger:   logger.WithPrefix("payment"),
	}
}

// Start begins polling chargeID and returns at once. report is called at
// most once, with the terminal outcome; it is not called if ctx ends first.
// The returned waiter yields ctx.Err() in that case.
func (p *Poller) Start(ctx context.Context, chargeID string, win Window, report func(Outcome)) quartz.Waiter {
	started := p.clock.Now()
	var once sync.Once

	finish := func(o Outcome, closeWin bool) error {
		if closeWin {
			if err := win.Close(); err != nil {
				p.logger.Debug("Closing payment window", "charge", chargeID, "error", err)
			}
		}
		once.Do(func() {
			p.logger.Info("Payment finished", "charge", chargeID, "outcome", o)
			report(o)
		})
		return errStop
	}

	return p.clock.TickerFunc(ctx, p.interval, func() error {
		if win.Closed() {
			return finish(OutcomeUserCancelled, false)
		}
		if p.maxWait > 0 && p.clock.Now().Sub(started) >= p.maxWait {
			return finish(OutcomeTimedOut, true)
		}

		status, err := p.source.OrderStatus(ctx, chargeID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("Checking payment status", "charge", chargeID, "error", err)
			return finish(OutcomeVerificationFailed, true)
		}

		switch status {
		case api.StatusPaid:
			return finish(OutcomePaid, true)
		case api.StatusConfirmed:
			return finish(OutcomeConfirmed, true)
		case api.StatusExpired:
			return finish(OutcomeExpired, true)
		case api.StatusCanceled:
			return finish(OutcomeCanceled, true)
		default:
			p.logger.Debug("Payment pending", "charge", chargeID, "status", status)
			return nil
		}
	}, "payment", "poll")
}

// Watch polls chargeID until it reaches a terminal outcome or ctx ends.
func (p *Poller) Watch(ctx context.Context, chargeID string, win Window) (Outcome, error) {
	var out Outcome
	err := p.Start(ctx, chargeID, win, func(o Outcome) { out = o }).Wait()
	if err != nil && !errors.Is(err, errStop) {
		_ = win.Close()
		return OutcomeUnknown, err
	}
	return out, nil
}

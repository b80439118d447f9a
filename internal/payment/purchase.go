package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lox/notakto/internal/api"
	"github.com/lox/notakto/internal/apierr"
	"github.com/lox/notakto/internal/notify"
	"github.com/lox/notakto/internal/store"
	"golang.org/x/sync/semaphore"
)

// ErrInProgress is returned when a purchase is already running.
var ErrInProgress = errors.New("payment: purchase already in progress")

// Backend creates charges and reports their status.
type Backend interface {
	StatusSource
	CreatePayment(ctx context.Context, req api.PaymentRequest) (*api.PaymentResponse, error)
}

// Opener shows the provider page in a secondary window.
type Opener interface {
	Open(ctx context.Context, url string) (Window, error)
}

// Wallet is the part of the state container a purchase touches.
type Wallet interface {
	Profile() (store.Profile, bool)
	Credit(coins int)
}

// Notifier is a notify.Notifier that can also clear a notice's cooldown.
type Notifier interface {
	notify.Notifier
	Dismiss(key string)
}

// Order describes what a purchase buys.
type Order struct {
	Amount     string
	Currency   string
	CustomerID string
	Coins      int
}

// DefaultOrder is one coin pack.
var DefaultOrder = Order{Amount: "1.00", Currency: "INR", CustomerID: "guest", Coins: 100}

// Purchaser runs one coin purchase at a time.
type Purchaser struct {
	backend  Backend
	opener   Opener
	poller   *Poller
	wallet   Wallet
	notifier Notifier
	order    Order
	logger   *log.Logger

	sem    *semaphore.Weighted
	mu     sync.Mutex
	window Window
}

// NewPurchaser wires a purchase flow.
func NewPurchaser(backend Backend, opener Opener, poller *Poller, wallet Wallet, notifier Notifier, order Order, logger *log.Logger) *Purchaser {
	if order.Coins <= 0 {
		order.Coins = DefaultOrder.Coins
	}
	return &Purchaser{
		backend:  backend,
		opener:   opener,
		poller:   poller,
		wallet:   wallet,
		notifier: notifier,
		order:    order,
		logger:   logger.WithPrefix("payment"),
		sem:      semaphore.NewWeighted(1),
	}
}

// Buy creates a charge, opens the provider page and waits for the outcome.
// Failures are reported through the notifier; the returned error only
// signals that no outcome was reached.
func (p *Purchaser) Buy(ctx context.Context) (Outcome, error) {
	if !p.sem.TryAcquire(1) {
		return OutcomeUnknown, ErrInProgress
	}
	defer p.sem.Release(1)

	req := api.PaymentRequest{
		Amount:     p.order.Amount,
		Currency:   p.order.Currency,
		CustomerID: p.order.CustomerID,
		OrderID:    uuid.NewString(),
	}
	if prof, ok := p.wallet.Profile(); ok {
		req.CustomerName = prof.Name
	}

	resp, err := p.backend.CreatePayment(ctx, req)
	if err != nil {
		p.logger.Warn("Creating payment", "order", req.OrderID, "error", err)
		msg := "Payment processing failed: " + apierr.Classify("create-payment", err, "Payment processing failed").Message
		if apierr.Is(err, apierr.KindApplication) {
			msg = "Payment failed: Could not initiate payment"
		}
		p.notify(notify.KeyPaymentFailed, notify.LevelError, msg)
		return OutcomeUnknown, err
	}

	win, err := p.opener.Open(ctx, resp.PaymentURL)
	if err != nil {
		p.logger.Warn("Opening payment page", "url", resp.PaymentURL, "error", err)
		p.notify(notify.KeyPaymentBlock, notify.LevelError, "Popup blocked. Please allow popups and try again.")
		return OutcomeUnknown, err
	}
	p.setWindow(win)
	defer p.setWindow(nil)

	p.logger.Info("Watching payment", "order", req.OrderID, "charge", resp.ChargeID)
	outcome, err := p.poller.Watch(ctx, resp.ChargeID, win)
	if err != nil {
		return OutcomeUnknown, err
	}

	if outcome.Success() {
		p.notifier.Dismiss(notify.KeyPaymentFailed)
		p.notifier.Dismiss(notify.KeyPaymentBlock)
		p.wallet.Credit(p.order.Coins)
		p.notify(notify.KeyPaymentOK, notify.LevelSuccess,
			fmt.Sprintf("✅ Payment successful! %d coins added to your account.", p.order.Coins))
		return outcome, nil
	}

	p.notify(notify.KeyPaymentFailed, notify.LevelError, "❌ "+outcome.Reason())
	return outcome, nil
}

// Cancel closes the window of the running purchase, if any. The poller
// reports user-cancelled on its next tick.
func (p *Purchaser) Cancel() {
	p.mu.Lock()
	win := p.window
	p.mu.Unlock()
	if win != nil {
		_ = win.Close()
	}
}

// Watching reports whether a payment page is open and being polled.
func (p *Purchaser) Watching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.window != nil
}

func (p *Purchaser) setWindow(w Window) {
	p.mu.Lock()
	p.window = w
	p.mu.Unlock()
}

func (p *Purchaser) notify(key string, level notify.Level, msg string) {
	p.notifier.Notify(notify.Notice{Key: key, Level: level, Message: msg})
}

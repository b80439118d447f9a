// Package notify delivers user-visible notices with de-duplication: an
// identical notice repeated inside the cooldown window is suppressed.
package notify

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/time/rate"
)

// DefaultCooldown matches how long a notice stays on screen.
const DefaultCooldown = 4 * time.Second

// maxTracked bounds the limiter map; refilled limiters are pruned past it.
const maxTracked = 256

// Level is the severity of a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is one user-visible message. Key groups notices for
// de-duplication; when empty the message text is used.
type Notice struct {
	Key     string
	Level   Level
	Message string
}

func (n Notice) dedupeKey() string {
	if n.Key != "" {
		return n.Key
	}
	return n.Message
}

// Well-known keys.
const (
	KeySignIn        = "auth/sign-in-error"
	KeyAuthRequired  = "user-auth-required"
	KeyPaymentBlock  = "payment/popup-blocked"
	KeyPaymentOK     = "payment/success"
	KeyPaymentFailed = "payment/failure"
)

// Notifier accepts notices.
type Notifier interface {
	Notify(Notice)
}

// Sink displays notices that passed the throttle.
type Sink interface {
	Show(Notice)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notice)

func (f SinkFunc) Show(n Notice) { f(n) }

// Throttle is a Notifier that drops repeats within a cooldown window.
type Throttle struct {
	sink     Sink
	clock    quartz.Clock
	cooldown time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottle wraps sink. A nil clock uses the real clock.
func NewThrottle(sink Sink, cooldown time.Duration, clock quartz.Clock) *Throttle {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Throttle{
		sink:     sink,
		clock:    clock,
		cooldown: cooldown,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Notify shows n unless an identical notice was shown within the cooldown.
func (t *Throttle) Notify(n Notice) {
	if t.allow(n.dedupeKey()) {
		t.sink.Show(n)
	}
}

// Dismiss ends the cooldown for key early.
func (t *Throttle) Dismiss(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.limiters, key)
}

func (t *Throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	lim, ok := t.limiters[key]
	if !ok {
		if len(t.limiters) >= maxTracked {
			t.prune(now)
		}
		lim = rate.NewLimiter(rate.Every(t.cooldown), 1)
		t.limiters[key] = lim
	}
	return lim.AllowN(now, 1)
}

func (t *Throttle) prune(now time.Time) {
	for key, lim := range t.limiters {
		if lim.TokensAt(now) >= 1 {
			delete(t.limiters, key)
		}
	}
}

// LogSink writes notices to a logger, for non-interactive commands.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Show(n Notice) {
	switch n.Level {
	case LevelError:
		s.Logger.Error(n.Message)
	default:
		s.Logger.Info(n.Message)
	}
}

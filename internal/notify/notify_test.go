package notify

import (
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
)

type collect struct {
	shown []Notice
}

func (c *collect) Show(n Notice) { c.shown = append(c.shown, n) }

func TestThrottleSuppressesRepeats(t *testing.T) {
	clock := quartz.NewMock(t)
	sink := &collect{}
	th := NewThrottle(sink, 4*time.Second, clock)

	th.Notify(Notice{Level: LevelError, Message: "Not enough coins"})
	th.Notify(Notice{Level: LevelError, Message: "Not enough coins"})
	th.Notify(Notice{Level: LevelError, Message: "Failed to undo move"})
	assert.Len(t, sink.shown, 2)

	clock.Set(clock.Now().Add(3 * time.Second))
	th.Notify(Notice{Level: LevelError, Message: "Not enough coins"})
	assert.Len(t, sink.shown, 2, "still inside cooldown")

	clock.Set(clock.Now().Add(2 * time.Second))
	th.Notify(Notice{Level: LevelError, Message: "Not enough coins"})
	assert.Len(t, sink.shown, 3)
}

func TestThrottleKeyGroupsDifferentMessages(t *testing.T) {
	clock := quartz.NewMock(t)
	sink := &collect{}
	th := NewThrottle(sink, time.Second, clock)

	th.Notify(Notice{Key: KeyPaymentFailed, Message: "Payment expired or failed."})
	th.Notify(Notice{Key: KeyPaymentFailed, Message: "Unable to verify payment status. Please try again."})
	assert.Len(t, sink.shown, 1)

	th.Dismiss(KeyPaymentFailed)
	th.Notify(Notice{Key: KeyPaymentFailed, Message: "Payment was manually cancelled."})
	assert.Len(t, sink.shown, 2)
}

func TestThrottlePrunesRefilledLimiters(t *testing.T) {
	clock := quartz.NewMock(t)
	th := NewThrottle(SinkFunc(func(Notice) {}), time.Second, clock)

	for i := 0; i < maxTracked; i++ {
		th.Notify(Notice{Message: time.Duration(i).String()})
	}
	clock.Set(clock.Now().Add(2 * time.Second))
	th.Notify(Notice{Message: "fresh"})

	th.mu.Lock()
	defer th.mu.Unlock()
	assert.Len(t, th.limiters, 1)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "info", Level(42).String())
}

package payment

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// HandleWindow stands in for a browser tab the client cannot observe. It
// counts as closed once Close is called, which the user does by cancelling
// the purchase.
type HandleWindow struct {
	closed atomic.Bool
}

func (w *HandleWindow) Closed() bool { return w.closed.Load() }

func (w *HandleWindow) Close() error {
	w.closed.Store(true)
	return nil
}

// BrowserOpener launches the system browser.
type BrowserOpener struct {
	Logger *log.Logger

	// command overrides the platform launcher in tests.
	command func(ctx context.Context, url string) *exec.Cmd
}

func (b BrowserOpener) Open(ctx context.Context, url string) (Window, error) {
	if url == "" {
		return nil, fmt.Errorf("payment: empty payment url")
	}
	build := b.command
	if build == nil {
		build = launcher
	}
	cmd := build(ctx, url)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("payment: open browser: %w", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil && b.Logger != nil {
			b.Logger.Debug("Browser launcher exited", "error", err)
		}
	}()
	if b.Logger != nil {
		b.Logger.Info("Opened payment page", "url", url)
	}
	return &HandleWindow{}, nil
}

func launcher(ctx context.Context, url string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "open", url)
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return exec.CommandContext(ctx, "xdg-open", url)
	}
}

// PrintOpener shows the URL instead of launching anything, for headless use.
type PrintOpener struct {
	Print func(url string)
}

func (p PrintOpener) Open(_ context.Context, url string) (Window, error) {
	if url == "" {
		return nil, fmt.Errorf("payment: empty payment url")
	}
	p.Print(url)
	return &HandleWindow{}, nil
}

package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Renderer retrieves pages through headless Chrome, for sites that build
// their content with JavaScript. Chrome launches lazily on first use and
// is shared across concurrent renders.
type Renderer struct {
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	timeout time.Duration
	logger  *slog.Logger
}

// NewRenderer creates a Renderer. Chrome is not launched until Render is
// first called.
func NewRenderer(timeout time.Duration, logger *slog.Logger) *Renderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{timeout: timeout, logger: logger}
}

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(true)
	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect chrome: %w", err)
	}

	r.lnch = l
	r.browser = b
	r.logger.Info("renderer: launched headless chrome", "url", wsURL)
	return b, nil
}

// Render navigates to pageURL with stealth applied, waits for load, and
// returns the serialised DOM.
func (r *Renderer) Render(ctx context.Context, pageURL string) ([]byte, error) {
	b, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		r.logger.Warn("renderer: wait load timeout", "url", pageURL, "error", err)
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("serialise dom: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Close shuts down Chrome if it was launched.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			r.logger.Warn("renderer: browser close", "error", err)
		}
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Kill()
		r.lnch = nil
	}
}

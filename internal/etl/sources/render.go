package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Renderer loads a page and returns its HTML once the content is ready.
type Renderer interface {
	Render(ctx context.Context, target string) (string, error)
}

// ── Chrome Renderer ────────────────────────────────────────
// Drives headless Chrome for dashboards that build their tables client-side.

// ChromeRenderer renders pages in a headless browser through chromedp.
type ChromeRenderer struct {
	// WaitSelector must match before the page counts as loaded.
	WaitSelector string
	// ExpandSelector, when set and present, is clicked once to reveal lazy rows.
	ExpandSelector string
	// Scroll scrolls to the bottom of the page before settling.
	Scroll bool
	// Settle is a fixed delay after the wait condition for late rows.
	Settle time.Duration
	// RemoteURL attaches to an existing browser's DevTools websocket instead of
	// launching one.
	RemoteURL string
	// ExecPath overrides the Chrome binary.
	ExecPath string
}

// Render launches (or attaches to) a browser, loads target and returns the
// document's outer HTML. Every context it creates is cancelled before it
// returns, which closes the tab and, for launched browsers, the process.
func (r *ChromeRenderer) Render(ctx context.Context, target string) (string, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if r.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, r.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.NoSandbox,
		)
		if r.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(r.ExecPath))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	}
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var out string
	steps := r.steps(target, &out)
	actions := make([]chromedp.Action, len(steps))
	for i, st := range steps {
		actions[i] = st.action
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return "", fmt.Errorf("render %s: %w", target, err)
	}
	return out, nil
}

// renderStep is one named browser action of a page load.
type renderStep struct {
	name   string
	action chromedp.Action
}

// steps lists the page actions: load, wait for rows, optional scroll and
// expand click, settle, then capture the document into out.
func (r *ChromeRenderer) steps(target string, out *string) []renderStep {
	waitSel := r.WaitSelector
	if waitSel == "" {
		waitSel = DefaultRowSelector
	}

	steps := []renderStep{
		{"navigate", chromedp.Navigate(target)},
		{"wait", chromedp.WaitVisible(waitSel, chromedp.ByQuery)},
	}
	if r.Scroll {
		steps = append(steps, renderStep{"scroll", chromedp.Evaluate(scrollScript, nil)})
	}
	if r.ExpandSelector != "" {
		var clicked bool
		steps = append(steps, renderStep{"expand", chromedp.Evaluate(expandScript(r.ExpandSelector), &clicked)})
	}
	if r.Settle > 0 {
		steps = append(steps, renderStep{"settle", chromedp.Sleep(r.Settle)})
	}
	return append(steps, renderStep{"capture", chromedp.OuterHTML("html", out, chromedp.ByQuery)})
}

const scrollScript = `window.scrollTo(0, document.body.scrollHeight)`

func expandScript(selector string) string {
	return fmt.Sprintf(
		`(function(){var el=document.querySelector(%q);if(!el){return false}el.click();return true})()`,
		selector)
}

// ── Static Renderer ────────────────────────────────────────
// For server-rendered tables and saved pages: a plain GET or a file read.

// StaticRenderer fetches HTML without executing scripts. Targets with a
// file:// scheme or no scheme at all are read from disk.
type StaticRenderer struct {
	Client *http.Client
}

func (r *StaticRenderer) Render(ctx context.Context, target string) (string, error) {
	if path, ok := localPath(target); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(data), nil
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

func localPath(target string) (string, bool) {
	if strings.HasPrefix(target, "file://") {
		return strings.TrimPrefix(target, "file://"), true
	}
	if !strings.Contains(target, "://") {
		return target, true
	}
	return "", false
}

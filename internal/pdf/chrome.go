// Package pdf renders HTML documents to A4 PDFs with headless Chrome.
package pdf

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/metrics"
)

// A4 in inches.
const (
	paperWidth  = 8.27
	paperHeight = 11.69
)

// MaxHTMLBytes bounds a document so its data: URL stays under Chrome's URL length limit.
const MaxHTMLBytes = 1_500_000

// Renderer turns a complete HTML document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// Options configures the Chrome renderer.
type Options struct {
	ChromePath    string        // empty: look up Chrome on PATH
	Timeout       time.Duration // per render, default 60s
	MaxConcurrent int64         // simultaneous browsers, default 2
}

// Chrome launches one browser process per render and caps how many run at once.
type Chrome struct {
	opts    Options
	sem     *semaphore.Weighted
	metrics *metrics.Metrics
}

// NewChrome builds a renderer; zero options take defaults. m may be nil.
func NewChrome(opts Options, m *metrics.Metrics) *Chrome {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	return &Chrome{opts: opts, sem: semaphore.NewWeighted(opts.MaxConcurrent), metrics: m}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Headless,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.opts.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ChromePath))
	}
	return opts
}

// Render loads html, waits for the network to go idle and prints an A4 PDF with backgrounds.
// Every failure, timeout included, wraps errs.ErrRender.
func (c *Chrome) Render(ctx context.Context, html string) (doc []byte, err error) {
	if len(html) > MaxHTMLBytes {
		return nil, fmt.Errorf("%w: document is %d bytes, limit %d", errs.ErrRender, len(html), MaxHTMLBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if err = c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for a browser slot: %v", errs.ErrRender, err)
	}
	defer c.sem.Release(1)

	start := time.Now()
	defer func() { c.metrics.ObserveRender(start, err) }()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	idle := make(chan struct{})
	var (
		armed atomic.Bool
		once  sync.Once
	)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" && armed.Load() {
			once.Do(func() { close(idle) })
		}
	})

	err = chromedp.Run(browserCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(context.Context) error {
			armed.Store(true)
			return nil
		}),
		chromedp.Navigate(dataURL(html)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			select {
			case <-idle:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithPreferCSSPageSize(false).
				Do(ctx)
			doc = buf
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrRender, err)
	}
	return doc, nil
}

func dataURL(html string) string {
	return "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(html))
}

package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	// DefaultActionTimeout bounds one driver call.
	DefaultActionTimeout = 30 * time.Second

	// DefaultSettleTime is how long a click is given to start a navigation.
	DefaultSettleTime = 500 * time.Millisecond

	targetAttr = "data-domaincrawl-target"
)

const anchorsScript = `Array.from(document.querySelectorAll('a[href]')).map(a => ({
	href: a.getAttribute('href') || '',
	text: (a.innerText || a.textContent || '').replace(/\s+/g, ' ').trim(),
	id: a.id || '',
	class: a.getAttribute('class') || ''
}))`

// markScript tags the anchor matching a fingerprint so it can be addressed
// by a CSS selector. It evaluates to false when nothing matches.
const markScript = `(function(fp) {
	document.querySelectorAll('[` + targetAttr + `]').forEach(e => e.removeAttribute('` + targetAttr + `'));
	let seen = 0;
	for (const a of document.querySelectorAll('a[href]')) {
		const text = (a.innerText || a.textContent || '').replace(/\s+/g, ' ').trim();
		if ((a.getAttribute('href') || '') !== fp.href || text !== fp.text) continue;
		if ((a.id || '') !== fp.id || (a.getAttribute('class') || '') !== fp.class) continue;
		if (seen++ === fp.occurrence) {
			a.setAttribute('` + targetAttr + `', '1');
			return true;
		}
	}
	return false;
})(%s)`

const targetSelector = `[` + targetAttr + `="1"]`

// ChromeOptions configures ChromeLauncher.
type ChromeOptions struct {
	// Headless hides the browser window.
	Headless bool

	// UserAgent overrides the browser's user agent when set.
	UserAgent string

	// ActionTimeout bounds each driver call. Zero uses DefaultActionTimeout.
	ActionTimeout time.Duration

	// SettleTime is waited after a click. Zero uses DefaultSettleTime.
	SettleTime time.Duration

	// ExecPath is the Chrome binary. Empty lets chromedp find one.
	ExecPath string
}

// ChromeLauncher starts Chrome through chromedp.
type ChromeLauncher struct {
	opts ChromeOptions
}

// NewChromeLauncher returns a launcher for opts.
func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	if opts.SettleTime <= 0 {
		opts.SettleTime = DefaultSettleTime
	}
	return &ChromeLauncher{opts: opts}
}

// Launch starts a browser. The browser lives until Close is called or ctx
// is canceled.
func (l *ChromeLauncher) Launch(ctx context.Context) (Driver, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.WindowSize(1920, 1080),
	)
	if l.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(l.opts.UserAgent))
	}
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		ctx:     browserCtx,
		timeout: l.opts.ActionTimeout,
		settle:  l.opts.SettleTime,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}

	// Run without actions starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		d.cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: failed to start chrome: %w", ErrSessionLost, err)
	}
	return d, nil
}

// ChromeDriver is a Driver backed by one chromedp browser tab.
type ChromeDriver struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	settle  time.Duration
}

// run executes actions bounded by the action timeout and by ctx.
func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return runError(ctx, d.ctx, chromedp.Run(runCtx, actions...))
}

// runError maps a failed chromedp run to the error the session acts on.
// The browser context derives from the crawl context, so an interrupted
// caller is checked before the browser is declared lost.
func runError(ctx, browserCtx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case browserCtx.Err() != nil || errors.Is(err, chromedp.ErrInvalidContext):
		return fmt.Errorf("%w: %w", ErrSessionLost, err)
	default:
		return err
	}
}

// Navigate implements Driver.
func (d *ChromeDriver) Navigate(ctx context.Context, pageURL string) error {
	return d.run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Location implements Driver.
func (d *ChromeDriver) Location(ctx context.Context) (string, error) {
	var loc string
	err := d.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// HTML implements Driver.
func (d *ChromeDriver) HTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Anchors implements Driver.
func (d *ChromeDriver) Anchors(ctx context.Context) ([]Anchor, error) {
	var anchors []Anchor
	if err := d.run(ctx, chromedp.Evaluate(anchorsScript, &anchors)); err != nil {
		return nil, err
	}
	return anchors, nil
}

// Click implements Driver.
func (d *ChromeDriver) Click(ctx context.Context, fp Fingerprint) error {
	if err := d.mark(ctx, fp); err != nil {
		return err
	}
	return d.run(ctx,
		chromedp.Click(targetSelector, chromedp.ByQuery),
		chromedp.Sleep(d.settle),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// ClickAlternate implements Driver.
func (d *ChromeDriver) ClickAlternate(ctx context.Context, fp Fingerprint) error {
	if err := d.mark(ctx, fp); err != nil {
		return err
	}
	var ok bool
	script := `(function() {
		const el = document.querySelector('` + targetSelector + `');
		if (!el) return false;
		el.scrollIntoView({block: 'center'});
		el.click();
		return true;
	})()`
	if err := d.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return err
	}
	if !ok {
		return ErrElementNotFound
	}
	return d.run(ctx,
		chromedp.Sleep(d.settle),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (d *ChromeDriver) mark(ctx context.Context, fp Fingerprint) error {
	arg, err := json.Marshal(fp)
	if err != nil {
		return err
	}
	var found bool
	if err := d.run(ctx, chromedp.Evaluate(fmt.Sprintf(markScript, arg), &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrElementNotFound, fp.Key())
	}
	return nil
}

// Close implements Driver.
func (d *ChromeDriver) Close() error {
	d.cancel()
	return nil
}

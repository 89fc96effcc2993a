package browser

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/domaincrawl/internal/model"
)

const home = "http://www.example.org/"

type fakePage struct {
	html     string
	anchors  []Anchor
	redirect string
}

// fakeDriver is an in-memory browser. Clicking an anchor either moves to
// the URL in clicks or, for an empty target, swaps in domHTML.
type fakeDriver struct {
	mu sync.Mutex

	pages      map[string]fakePage
	clicks     map[string]string
	nativeFail map[string]bool
	altFail    map[string]bool
	domHTML    string
	loseAt     int

	// onLose runs when the session is lost, before the error is returned.
	onLose func()

	current     string
	domChanged  bool
	navigations []string
	altClicks   []string
	closed      bool
}

func (d *fakeDriver) Navigate(ctx context.Context, pageURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	d.navigations = append(d.navigations, pageURL)
	if d.loseAt > 0 && len(d.navigations) >= d.loseAt {
		if d.onLose != nil {
			d.onLose()
		}
		return ErrSessionLost
	}
	page, ok := d.pages[pageURL]
	if !ok {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	d.current = pageURL
	if page.redirect != "" {
		d.current = page.redirect
	}
	d.domChanged = false
	return nil
}

func (d *fakeDriver) Location(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, nil
}

func (d *fakeDriver) HTML(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.domChanged {
		return d.domHTML, nil
	}
	return d.pages[d.current].html, nil
}

func (d *fakeDriver) Anchors(context.Context) ([]Anchor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pages[d.current].anchors, nil
}

func (d *fakeDriver) Click(_ context.Context, fp Fingerprint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.nativeFail[fp.Href] {
		return errors.New("element not interactable")
	}
	return d.activate(fp)
}

func (d *fakeDriver) ClickAlternate(_ context.Context, fp Fingerprint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.altClicks = append(d.altClicks, fp.Href)
	if d.altFail[fp.Href] {
		return errors.New("click intercepted")
	}
	return d.activate(fp)
}

func (d *fakeDriver) activate(fp Fingerprint) error {
	found := false
	for _, got := range Fingerprints(d.pages[d.current].anchors) {
		if got == fp {
			found = true
			break
		}
	}
	if !found {
		return ErrElementNotFound
	}
	if target := d.clicks[fp.Href]; target != "" {
		d.current = target
		return nil
	}
	d.domChanged = true
	return nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDriver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type collectingSink struct {
	mu      sync.Mutex
	records []*model.PageRecord
}

func (s *collectingSink) Emit(_ context.Context, rec *model.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *collectingSink) urls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.URL)
	}
	return out
}

func schoolSite() *fakeDriver {
	return &fakeDriver{
		pages: map[string]fakePage{
			home: {
				html: `<html><body><p>OUR SCHOOL</p><img src="/logo.png"></body></html>`,
				anchors: []Anchor{
					{Href: "/about", Text: "About"},
					{Href: "brochure.pdf", Text: "Brochure"},
					{Href: "http://other.org/", Text: "Partner"},
					{Href: "javascript:openMenu()", Text: "Menu"},
					{Href: "javascript:void(0)", Text: "Calendar", Class: "toggle"},
					{Href: "javascript:broken()", Text: "Broken"},
				},
			},
			"http://www.example.org/about": {
				html:    `<html><body><p>About us</p></body></html>`,
				anchors: []Anchor{{Href: "/", Text: "Home"}},
			},
			"http://www.example.org/menu": {
				html:    `<html><body><p>Lunch menu</p></body></html>`,
				anchors: []Anchor{{Href: "/about", Text: "About"}},
			},
		},
		clicks: map[string]string{
			"javascript:openMenu()": "http://www.example.org/menu",
		},
		nativeFail: map[string]bool{"javascript:broken()": true},
		altFail:    map[string]bool{"javascript:broken()": true},
		domHTML:    `<html><body><p>Calendar opened</p></body></html>`,
	}
}

func launcherFor(d *fakeDriver) Launcher {
	return LauncherFunc(func(context.Context) (Driver, error) { return d, nil })
}

func newRun(sink model.RecordSink) *model.CrawlRun {
	run := model.NewCrawlRun(model.Seed{EntityID: "370014000000", URL: home, Domain: "example.org"}, sink)
	run.Mode = model.ModeBrowser
	return run
}

func TestFingerprints(t *testing.T) {
	t.Parallel()

	fps := Fingerprints([]Anchor{
		{Href: "javascript:void(0)", Text: "More"},
		{Href: "javascript:void(0)", Text: " More\n"},
		{Href: "javascript:void(0)", Text: "Less"},
		{Href: "javascript:void(0)", Text: "More", Class: "btn"},
	})

	assert.Equal(t, 0, fps[0].Occurrence)
	assert.Equal(t, 1, fps[1].Occurrence, "same attributes after whitespace collapse")
	assert.Equal(t, "More", fps[1].Text)
	assert.Equal(t, 0, fps[2].Occurrence)
	assert.Equal(t, 0, fps[3].Occurrence, "class distinguishes anchors")
	assert.NotEqual(t, fps[0].Key(), fps[1].Key())
}

func TestSessionCrawl(t *testing.T) {
	t.Parallel()

	driver := schoolSite()
	sink := &collectingSink{}
	run := newRun(sink)

	err := NewSession(launcherFor(driver)).Crawl(t.Context(), run)
	require.NoError(t, err)

	assert.Equal(t, []string{
		home,
		"http://www.example.org/menu",
		"http://www.example.org/#script-1",
		"http://www.example.org/about",
	}, sink.urls())

	first := sink.records[0]
	assert.Equal(t, "370014000000", first.EntityID)
	assert.Equal(t, 0, first.Depth)
	assert.Contains(t, first.Text, "OUR SCHOOL")
	assert.Equal(t, []string{"http://www.example.org/logo.png"}, first.ImageURLs)
	assert.Equal(t, []string{"http://www.example.org/brochure.pdf"}, first.FileURLs)
	assert.Equal(t, []string{""}, first.FileTexts)

	assert.Equal(t, 1, sink.records[1].Depth)
	assert.Contains(t, sink.records[2].Text, "Calendar opened")

	d := run.Diagnostics()
	assert.GreaterOrEqual(t, d.ScriptLinksFound, int64(3))
	assert.EqualValues(t, 2, d.ScriptLinksClicked)
	assert.EqualValues(t, 1, d.ScriptClickFailures)
	assert.EqualValues(t, 1, d.HTMLLinksFollowed)
	assert.Positive(t, d.RejectedOutOfScope)

	assert.Equal(t, []string{"javascript:broken()"}, driver.altClicks)
	assert.True(t, driver.isClosed())
	for _, nav := range driver.navigations {
		assert.NotContains(t, nav, "other.org")
	}
}

func TestSessionAlternateClick(t *testing.T) {
	t.Parallel()

	driver := schoolSite()
	driver.altFail = nil
	sink := &collectingSink{}
	run := newRun(sink)

	require.NoError(t, NewSession(launcherFor(driver), WithMaxDepth(1)).Crawl(t.Context(), run))

	d := run.Diagnostics()
	assert.EqualValues(t, 3, d.ScriptLinksClicked)
	assert.Zero(t, d.ScriptClickFailures)
	assert.Equal(t, []string{"javascript:broken()"}, driver.altClicks)
}

func TestSessionDepthZero(t *testing.T) {
	t.Parallel()

	driver := schoolSite()
	sink := &collectingSink{}
	run := newRun(sink)

	require.NoError(t, NewSession(launcherFor(driver), WithMaxDepth(0)).Crawl(t.Context(), run))

	assert.Equal(t, []string{home}, sink.urls())
	assert.Zero(t, run.Diagnostics().ScriptLinksClicked)
}

func TestSessionRedirectOffDomain(t *testing.T) {
	t.Parallel()

	driver := schoolSite()
	driver.pages[home] = fakePage{redirect: "http://www.example.net/"}
	driver.pages["http://www.example.net/"] = fakePage{html: "<p>elsewhere</p>"}
	sink := &collectingSink{}
	run := newRun(sink)

	require.NoError(t, NewSession(launcherFor(driver)).Crawl(t.Context(), run))

	assert.Empty(t, sink.urls())
	assert.EqualValues(t, 1, run.Diagnostics().PagesDropped)
}

func TestSessionPageFailureContinues(t *testing.T) {
	t.Parallel()

	driver := schoolSite()
	delete(driver.pages, "http://www.example.org/about")
	sink := &collectingSink{}
	run := newRun(sink)

	require.NoError(t, NewSession(launcherFor(driver)).Crawl(t.Context(), run))

	assert.NotContains(t, sink.urls(), "http://www.example.org/about")
	assert.EqualValues(t, 1, run.Diagnostics().PagesFailed)
}

func TestSessionLost(t *testing.T) {
	t.Parallel()

	driver := schoolSite()
	driver.loseAt = 2
	sink := &collectingSink{}
	run := newRun(sink)

	err := NewSession(launcherFor(driver)).Crawl(t.Context(), run)
	require.ErrorIs(t, err, ErrSessionLost)
	assert.Equal(t, []string{home}, sink.urls())
	assert.True(t, driver.isClosed(), "browser must be released after a lost session")
}

func TestSessionInterruptIsNotALostSession(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	driver := schoolSite()
	driver.loseAt = 2
	driver.onLose = cancel
	run := newRun(&collectingSink{})

	err := NewSession(launcherFor(driver)).Crawl(ctx, run)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSessionLost)
	assert.Zero(t, run.Diagnostics().PagesFailed)
}

func TestRunError(t *testing.T) {
	t.Parallel()

	live := t.Context()
	gone, cancel := context.WithCancel(t.Context())
	cancel()
	cause := errors.New("websocket closed")

	assert.NoError(t, runError(live, live, nil))
	assert.ErrorIs(t, runError(gone, gone, cause), context.Canceled)
	assert.NotErrorIs(t, runError(gone, gone, cause), ErrSessionLost)
	assert.ErrorIs(t, runError(live, gone, cause), ErrSessionLost)
	assert.ErrorIs(t, runError(live, live, chromedp.ErrInvalidContext), ErrSessionLost)
	assert.Equal(t, cause, runError(live, live, cause))
}

func TestSessionLaunchFailure(t *testing.T) {
	t.Parallel()

	launcher := LauncherFunc(func(context.Context) (Driver, error) {
		return nil, errors.New("chrome not found")
	})
	err := NewSession(launcher).Crawl(t.Context(), newRun(nil))
	require.ErrorIs(t, err, ErrSessionLost)
}

func TestSessionInvalidSeed(t *testing.T) {
	t.Parallel()

	launched := false
	launcher := LauncherFunc(func(context.Context) (Driver, error) {
		launched = true
		return schoolSite(), nil
	})
	run := model.NewCrawlRun(model.Seed{EntityID: "1", URL: "ftp://example.org/", Domain: "example.org"}, nil)

	err := NewSession(launcher).Crawl(t.Context(), run)
	require.Error(t, err)
	assert.False(t, launched)
}

func TestSessionCanceled(t *testing.T) {
	t.Parallel()

	driver := schoolSite()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := NewSession(launcherFor(driver)).Crawl(ctx, newRun(nil))
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, driver.isClosed())
}

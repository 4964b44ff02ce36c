package boundary

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallerydl/pkg/browser"
	"gallerydl/pkg/config"
	errs "gallerydl/pkg/errors"
	"gallerydl/pkg/extract"
	"gallerydl/pkg/fingerprint"
	"gallerydl/pkg/gallerylog"
	"gallerydl/pkg/navigator"
)

type fixture struct {
	driver *browser.FakeDriver
	cfg    *config.Config
	dlog   *gallerylog.Log
	nav    *navigator.Navigator
	policy *fingerprint.Policy
	sc     *Scanner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Scroll.Wait = time.Millisecond
	cfg.Scroll.MaxAttempts = 3

	dlog, err := gallerylog.Open(filepath.Join(t.TempDir(), "downloads.log"), 1, nil)
	require.NoError(t, err)

	f := &fixture{driver: browser.NewFakeDriver(), cfg: cfg, dlog: dlog}
	scroller := navigator.NewScroller(f.driver, &cfg.Scroll, &cfg.Gallery, nil)
	f.nav = navigator.New(f.driver, &cfg.Gallery, scroller, nil)
	f.policy = fingerprint.NewPolicy(config.ModeSkip, nil)
	ex := extract.New(&cfg.Gallery, nil)
	f.sc = NewScanner(f.driver, &cfg.Gallery, scroller, ex, dlog, &cfg.Scroll, nil)
	return f
}

func (f *fixture) galleryItem(href, tsText, prompt string) *browser.FakeElement {
	return &browser.FakeElement{
		Attrs:     map[string]string{"href": href},
		IsVisible: true,
		Children: map[string][]browser.Element{
			f.cfg.Gallery.DetailSelector: {
				&browser.FakeElement{TextValue: "Creation Time " + tsText, IsVisible: true},
			},
			f.cfg.Gallery.PromptSelector: {
				&browser.FakeElement{TextValue: prompt, IsVisible: true},
			},
		},
	}
}

func (f *fixture) logged(t *testing.T, id int, tsText, prompt string) {
	t.Helper()
	ts, err := gallerylog.ParseTimestamp(tsText)
	require.NoError(t, err)
	require.NoError(t, f.dlog.Append(gallerylog.Record{
		ID: id, TimestampText: tsText, Timestamp: ts, Prompt: prompt,
	}))
}

const (
	tsNewest = "Aug 14, 2026 9:00 AM"
	tsMiddle = "Aug 12, 2026 3:14 PM"
	tsOldest = "Aug 10, 2026 9:00 AM"

	promptNewest = "A fox sleeping under a maple tree in autumn light"
	promptMiddle = "A castle on a cliff overlooking a stormy sea"
	promptOldest = "An old lighthouse at dawn with thick fog rolling in"
)

func TestRunFindsBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.logged(t, 2, tsNewest, promptNewest)
	f.logged(t, 1, tsMiddle, promptMiddle)

	downloaded1 := f.galleryItem("/g/1", tsNewest, promptNewest)
	downloaded2 := f.galleryItem("/g/2", tsMiddle, promptMiddle)
	undone := f.galleryItem("/g/3", tsOldest, promptOldest)
	f.driver.Nodes[f.cfg.Gallery.ItemSelector] = []browser.Element{downloaded1, downloaded2, undone}

	res, err := f.sc.Run(ctx, f.nav, f.policy)
	require.NoError(t, err)
	assert.Equal(t, "href:/g/3", res.Position.Identity)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 1, undone.ClickCount)

	// Downloaded items passed on the way are marked visited so the
	// main loop does not re-stop on them.
	p, err := f.nav.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, navigator.NeedsScroll, p.Status)

	// The next duplicate classification is the expected one.
	fp := fingerprint.New(tsNewest, promptNewest)
	f.policy.Seed([]fingerprint.Fingerprint{fp})
	assert.Equal(t, fingerprint.DecisionExpectedDuplicate, f.policy.Classify(fp))
}

func TestRunSkipsPendingItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.logged(t, 1, tsNewest, promptNewest)

	pending := f.galleryItem("/g/pending", tsMiddle, promptMiddle)
	pending.Children[f.cfg.Gallery.StatusPendingSelector] = []browser.Element{
		&browser.FakeElement{IsVisible: true},
	}
	undone := f.galleryItem("/g/2", tsOldest, promptOldest)
	f.driver.Nodes[f.cfg.Gallery.ItemSelector] = []browser.Element{pending, undone}

	res, err := f.sc.Run(ctx, f.nav, f.policy)
	require.NoError(t, err)
	assert.Equal(t, "href:/g/2", res.Position.Identity)
}

func TestRunExitsThroughCloseControl(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	closeBtn := &browser.FakeElement{IsVisible: true}
	f.driver.Nodes[f.cfg.Gallery.CloseSelector] = []browser.Element{closeBtn}
	f.driver.Nodes[f.cfg.Gallery.ItemSelector] = []browser.Element{
		f.galleryItem("/g/1", tsOldest, promptOldest),
	}

	_, err := f.sc.Run(ctx, f.nav, f.policy)
	require.NoError(t, err)
	assert.Equal(t, 1, closeBtn.ClickCount)
	assert.Equal(t, 0, f.driver.BackCount)
}

func TestRunFallsBackToHistoryNavigation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.driver.Nodes[f.cfg.Gallery.ItemSelector] = []browser.Element{
		f.galleryItem("/g/1", tsOldest, promptOldest),
	}

	_, err := f.sc.Run(ctx, f.nav, f.policy)
	require.NoError(t, err)
	assert.Equal(t, 1, f.driver.BackCount)
}

func TestRunScrollsToFindBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.logged(t, 1, tsNewest, promptNewest)

	downloaded := f.galleryItem("/g/1", tsNewest, promptNewest)
	undone := f.galleryItem("/g/2", tsOldest, promptOldest)

	// The undownloaded item mounts once any scroll gesture has run.
	items := []browser.Element{downloaded}
	f.driver.ElementsFn = func(selector string) ([]browser.Element, error) {
		if selector != f.cfg.Gallery.ItemSelector {
			return nil, nil
		}
		scrolled := f.driver.WindowScrolls > 0 || len(f.driver.KeyPresses) > 0 || f.driver.WheelScrolls > 0
		if scrolled && len(items) == 1 {
			items = append(items, undone)
		}
		return items, nil
	}

	res, err := f.sc.Run(ctx, f.nav, f.policy)
	require.NoError(t, err)
	assert.Equal(t, "href:/g/2", res.Position.Identity)
	assert.GreaterOrEqual(t, res.Scrolls, 1)
}

func TestRunExhaustionIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.logged(t, 1, tsNewest, promptNewest)

	// Everything rendered is already downloaded and nothing new ever
	// mounts, so the scan cannot reconcile the log with the feed.
	f.driver.Nodes[f.cfg.Gallery.ItemSelector] = []browser.Element{
		f.galleryItem("/g/1", tsNewest, promptNewest),
	}

	_, err := f.sc.Run(ctx, f.nav, f.policy)
	require.Error(t, err)
	assert.True(t, errs.IsTerminal(err))
}

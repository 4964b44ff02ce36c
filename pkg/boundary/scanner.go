package boundary

import (
	"context"
	"errors"

	"gallerydl/pkg/browser"
	"gallerydl/pkg/config"
	errs "gallerydl/pkg/errors"
	"gallerydl/pkg/extract"
	"gallerydl/pkg/fingerprint"
	"gallerydl/pkg/gallerylog"
	"gallerydl/pkg/logger"
	"gallerydl/pkg/navigator"
)

// Result is a successful boundary hand-off: the first overview item
// with no completed log entry, already activated back into detail
// view.
type Result struct {
	Position    navigator.Position
	Fingerprint fingerprint.Fingerprint
	Scanned     int
	Scrolls     int
}

// Scanner performs the exit-scan-return maneuver: leave the detail
// view, walk the overview comparing rendered items against a freshly
// reloaded log, and re-enter at the first item not yet downloaded.
type Scanner struct {
	driver    browser.Driver
	gallery   *config.GalleryConfig
	scroller  *navigator.Scroller
	extractor *extract.Extractor
	dlog      *gallerylog.Log
	cfg       *config.ScrollConfig
	log       logger.Logger
}

func NewScanner(driver browser.Driver, gallery *config.GalleryConfig, scroller *navigator.Scroller, extractor *extract.Extractor, dlog *gallerylog.Log, cfg *config.ScrollConfig, log logger.Logger) *Scanner {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scanner{
		driver:    driver,
		gallery:   gallery,
		scroller:  scroller,
		extractor: extractor,
		dlog:      dlog,
		cfg:       cfg,
		log:       log,
	}
}

// Run executes the full maneuver. On success the boundary item is
// active in detail view, every already-downloaded identity passed on
// the way is marked visited on nav, and the policy's one-shot resume
// suppression is armed. Failure to locate a boundary is terminal: the
// log cannot be reconciled with the feed.
func (s *Scanner) Run(ctx context.Context, nav *navigator.Navigator, policy *fingerprint.Policy) (*Result, error) {
	if err := s.exitDetailView(ctx); err != nil {
		return nil, errs.Item(errs.PhaseBoundary, "", "exit detail view", err)
	}

	// The log is reloaded fresh, never cached, so downloads appended
	// earlier in this session take part in the comparison.
	records, err := s.dlog.LoadAll()
	if err != nil {
		return nil, errs.Terminal(errs.PhaseBoundary, "", "reload download log", err)
	}
	known := make([]fingerprint.Fingerprint, 0, len(records))
	for i := range records {
		if records[i].Placeholder() {
			continue
		}
		known = append(known, fingerprint.New(records[i].TimestampText, records[i].Prompt))
	}

	examined := make(map[string]bool)
	scanned := 0
	scrolls := 0
	noNew := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, err := s.driver.Elements(ctx, s.gallery.ItemSelector)
		if err != nil {
			return nil, errs.Soft(errs.PhaseBoundary, "", "query overview items", err)
		}

		fresh := 0
		for _, el := range items {
			id := extract.ItemIdentity(ctx, el)
			if id == "" || examined[id] {
				continue
			}
			examined[id] = true
			fresh++

			if s.isPending(ctx, el) {
				continue
			}

			meta, err := s.extractor.Extract(ctx, el, s.driver)
			if err != nil {
				if errors.Is(err, extract.ErrUnknown) {
					s.log.WithField("item", id).Debug("overview item not fingerprintable, skipping")
					continue
				}
				return nil, errs.Soft(errs.PhaseBoundary, id, "extract overview item", err)
			}
			scanned++

			fp := fingerprint.New(meta.TimestampText, meta.Prompt)
			if matchesAny(fp, known) {
				// Already downloaded; the main loop must not stop
				// here again.
				nav.MarkVisited(id)
				continue
			}

			pos := navigator.Position{Status: navigator.Advanced, Item: el, Identity: id}
			if err := s.reenter(ctx, nav, pos); err != nil {
				return nil, err
			}
			nav.MarkVisited(id)
			policy.ArmResumeSuppression()
			s.log.WithFields(map[string]interface{}{
				"item":    id,
				"scanned": scanned,
				"scrolls": scrolls,
			}).Info("boundary found, resuming at first undownloaded item")
			return &Result{Position: pos, Fingerprint: fp, Scanned: scanned, Scrolls: scrolls}, nil
		}

		if fresh == 0 {
			noNew++
		} else {
			noNew = 0
		}

		if scrolls >= s.cfg.MaxAttempts || noNew >= s.cfg.MaxAttempts {
			return nil, errs.Terminal(errs.PhaseBoundary, "",
				"boundary scan exhausted without finding an undownloaded item", nil)
		}

		res, err := s.scroller.Scroll(ctx)
		if err != nil {
			return nil, errs.Soft(errs.PhaseBoundary, "", "scroll overview", err)
		}
		scrolls++
		if res.Revealed == 0 {
			noNew++
		}
	}
}

// exitDetailView closes the detail overlay. When no close control is
// found or clicking it fails, history-back is the fallback.
func (s *Scanner) exitDetailView(ctx context.Context) error {
	if s.gallery.CloseSelector != "" {
		els, err := s.driver.Elements(ctx, s.gallery.CloseSelector)
		if err == nil && len(els) > 0 {
			if _, err := browser.ClickWithFallback(ctx, els[0], "close detail view", s.log); err == nil {
				return nil
			}
			s.log.Debug("close control click failed, falling back to history navigation")
		}
	}
	return s.driver.NavigateBack(ctx)
}

// isPending reports whether the item is still generating or failed,
// meaning it has no completed content to compare.
func (s *Scanner) isPending(ctx context.Context, el browser.Element) bool {
	if s.gallery.StatusPendingSelector == "" {
		return false
	}
	marks, err := el.Elements(ctx, s.gallery.StatusPendingSelector)
	return err == nil && len(marks) > 0
}

func (s *Scanner) reenter(ctx context.Context, nav *navigator.Navigator, pos navigator.Position) error {
	if err := nav.Activate(ctx, pos, 0); err != nil {
		return errs.Item(errs.PhaseBoundary, pos.Identity, "re-enter at boundary", err)
	}
	return nil
}

func matchesAny(fp fingerprint.Fingerprint, known []fingerprint.Fingerprint) bool {
	for _, k := range known {
		if fp.Matches(k) {
			return true
		}
	}
	return false
}

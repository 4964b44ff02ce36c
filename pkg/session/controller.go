package session

import (
	"context"
	"errors"
	"time"

	"gallerydl/pkg/boundary"
	"gallerydl/pkg/browser"
	"gallerydl/pkg/config"
	errs "gallerydl/pkg/errors"
	"gallerydl/pkg/extract"
	"gallerydl/pkg/fingerprint"
	"gallerydl/pkg/gallerylog"
	"gallerydl/pkg/logger"
	"gallerydl/pkg/navigator"
	"gallerydl/pkg/ratelimit"
	"gallerydl/pkg/retry"
	"gallerydl/pkg/storage"
)

// Controller runs the crawl: advance, extract, classify, download,
// append. Everything against the browser is strictly sequential; the
// feed has exactly one active item at a time, so there is no fan-out.
type Controller struct {
	cfg       *config.Config
	driver    browser.Driver
	nav       *navigator.Navigator
	scroller  *navigator.Scroller
	extractor *extract.Extractor
	policy    *fingerprint.Policy
	scanner   *boundary.Scanner
	dlog      *gallerylog.Log
	watcher   *storage.Watcher
	limiter   ratelimit.Limiter
	log       logger.Logger

	result      Result
	consecFails int
	lastNewFp   fingerprint.Fingerprint
	haveLastNew bool
}

// New wires a controller from its collaborators. limiter may be nil to
// disable pacing.
func New(cfg *config.Config, driver browser.Driver, dlog *gallerylog.Log, watcher *storage.Watcher, limiter ratelimit.Limiter, log logger.Logger) *Controller {
	if log == nil {
		log = logger.GetLogger()
	}
	scroller := navigator.NewScroller(driver, &cfg.Scroll, &cfg.Gallery, log)
	nav := navigator.New(driver, &cfg.Gallery, scroller, log)
	extractor := extract.New(&cfg.Gallery, log)
	policy := fingerprint.NewPolicy(cfg.Session.DuplicateMode, log)
	scanner := boundary.NewScanner(driver, &cfg.Gallery, scroller, extractor, dlog, &cfg.Scroll, log)

	return &Controller{
		cfg:       cfg,
		driver:    driver,
		nav:       nav,
		scroller:  scroller,
		extractor: extractor,
		policy:    policy,
		scanner:   scanner,
		dlog:      dlog,
		watcher:   watcher,
		limiter:   limiter,
		log:       log,
	}
}

// Run executes the session until a terminal condition and returns the
// result. The context is the cooperative stop signal, polled once per
// loop iteration.
func (c *Controller) Run(ctx context.Context) *Result {
	c.result = Result{StartTime: time.Now()}
	defer func() {
		c.result.EndTime = time.Now()
		c.result.ScrollsPerformed = c.nav.ScrollsPerformed()
	}()

	if err := c.prepare(ctx); err != nil {
		c.fail(err)
		return &c.result
	}

	for {
		if ctx.Err() != nil {
			c.stop("stop requested")
			return &c.result
		}
		if c.cfg.Session.MaxDownloads > 0 && c.result.DownloadsCompleted >= c.cfg.Session.MaxDownloads {
			c.stop("download budget reached")
			return &c.result
		}

		pos, err := c.nav.AdvanceOrScroll(ctx, c.cfg.Scroll.MaxAttempts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				c.stop("stop requested")
				return &c.result
			}
			if c.recordFailure(err) {
				return &c.result
			}
			continue
		}
		if pos.Status == navigator.EndOfFeed {
			c.stop("end of feed")
			return &c.result
		}

		c.result.ThumbnailsProcessed++
		c.pace(ctx)

		done, err := c.processItem(ctx, pos)
		if done {
			return &c.result
		}
		if err != nil {
			if c.recordFailure(err) {
				return &c.result
			}
			continue
		}
		c.consecFails = 0
	}
}

// prepare navigates to the gallery, seeds the duplicate policy from
// the log, and seeks past items newer than the configured start point.
func (c *Controller) prepare(ctx context.Context) error {
	if c.cfg.Gallery.URL != "" {
		err := retry.Do(func() error {
			return c.driver.Navigate(ctx, c.cfg.Gallery.URL)
		}, &retry.Config{
			MaxAttempts: 3,
			Backoff:     retry.DefaultExponentialBackoff(),
			RetryIf:     retry.DefaultRetryIf,
			Context:     ctx,
			Logger:      c.log,
		})
		if err != nil {
			return errs.Terminal(errs.PhaseAdvance, "", "open gallery", err)
		}
		c.driver.Idle(ctx, c.cfg.Browser.NavigationTimeout)
	}

	records, err := c.dlog.LoadAll()
	if err != nil {
		return errs.Terminal(errs.PhaseLog, "", "load download log", err)
	}
	known := make([]fingerprint.Fingerprint, 0, len(records))
	for i := range records {
		if records[i].Placeholder() {
			continue
		}
		known = append(known, fingerprint.New(records[i].TimestampText, records[i].Prompt))
	}
	c.policy.Seed(known)
	c.log.WithField("known", len(known)).Info("seeded duplicate policy from download log")

	if c.cfg.Session.StartFrom != "" {
		return c.seekStart(ctx)
	}
	return nil
}

// seekStart skips items newer than the configured start timestamp so
// the crawl begins mid-feed instead of at the newest item.
func (c *Controller) seekStart(ctx context.Context) error {
	target, err := gallerylog.ParseTimestamp(c.cfg.Session.StartFrom)
	if err != nil {
		return errs.Terminal(errs.PhaseAdvance, "", "parse start-from timestamp", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pos, err := c.nav.AdvanceOrScroll(ctx, c.cfg.Scroll.MaxAttempts)
		if err != nil {
			return err
		}
		if pos.Status == navigator.EndOfFeed {
			return errs.Terminal(errs.PhaseAdvance, "", "start-from timestamp not found in feed", nil)
		}

		meta, err := c.extractor.Extract(ctx, pos.Item, c.driver)
		if err != nil {
			continue
		}
		if !meta.Timestamp.After(target) {
			// First item at or before the start point: un-visit it so
			// the main loop picks it up as the first item.
			c.nav.Unvisit(pos.Identity)
			c.log.WithFields(map[string]interface{}{
				"item":      pos.Identity,
				"timestamp": meta.TimestampText,
			}).Info("start point reached")
			return nil
		}
	}
}

// processItem opens the item and handles it per classification.
// Returns done=true when the session reached a terminal condition.
func (c *Controller) processItem(ctx context.Context, pos navigator.Position) (bool, error) {
	if err := c.nav.Activate(ctx, pos, c.cfg.Browser.NavigationTimeout); err != nil {
		return false, err
	}
	return c.processActive(ctx, pos.Identity)
}

// processActive handles the item currently open in detail view.
func (c *Controller) processActive(ctx context.Context, itemRef string) (bool, error) {
	meta, err := c.extractor.Extract(ctx, c.driver, c.driver)
	if err != nil {
		if errors.Is(err, extract.ErrUnknown) {
			c.softError(itemRef, "metadata extraction returned unknown")
			c.exitDetail(ctx)
			return false, nil
		}
		c.exitDetail(ctx)
		return false, errs.Item(errs.PhaseExtract, itemRef, "extract metadata", err)
	}

	fp := fingerprint.New(meta.TimestampText, meta.Prompt)
	decision := c.policy.Classify(fp)
	c.log.WithFields(map[string]interface{}{
		"item":      itemRef,
		"timestamp": meta.TimestampText,
		"decision":  decision.String(),
	}).Debug("classified item")

	switch decision {
	case fingerprint.DecisionNew:
		if c.haveLastNew && fp.Matches(c.lastNewFp) {
			c.fail(errs.Terminal(errs.PhaseAdvance, itemRef,
				"same fingerprint classified new twice in a row, cursor is stuck", nil))
			return true, nil
		}
		c.lastNewFp = fp
		c.haveLastNew = true

		if err := c.download(ctx, itemRef, meta, fp); err != nil {
			c.exitDetail(ctx)
			return false, err
		}
		c.exitDetail(ctx)
		return false, nil

	case fingerprint.DecisionExpectedDuplicate:
		c.exitDetail(ctx)
		return false, nil

	case fingerprint.DecisionDuplicate:
		if c.policy.Mode() == config.ModeFinish {
			c.stop("reached previously downloaded content")
			return true, nil
		}
		return c.resyncAtBoundary(ctx)

	default:
		return false, errs.Item(errs.PhaseExtract, itemRef, "unhandled classification", nil)
	}
}

// resyncAtBoundary runs the exit-scan-return maneuver and processes
// the boundary item it hands back.
func (c *Controller) resyncAtBoundary(ctx context.Context) (bool, error) {
	res, err := c.scanner.Run(ctx, c.nav, c.policy)
	if err != nil {
		if errs.IsTerminal(err) || errors.Is(err, context.Canceled) {
			c.fail(err)
			return true, nil
		}
		return false, err
	}
	c.log.WithField("item", res.Position.Identity).Debug("processing boundary item")
	return c.processActive(ctx, res.Position.Identity)
}

// download triggers the item's download control, waits for the file,
// and appends the log record. A completion timeout degrades to a
// placeholder-id record with a warning.
func (c *Controller) download(ctx context.Context, itemRef string, meta extract.Metadata, fp fingerprint.Fingerprint) error {
	before, err := c.watcher.Snapshot()
	if err != nil {
		return errs.Item(errs.PhaseDownload, itemRef, "snapshot downloads folder", err)
	}

	els, err := c.driver.Elements(ctx, c.cfg.Gallery.DownloadSelector)
	if err != nil || len(els) == 0 {
		return errs.Item(errs.PhaseDownload, itemRef, "locate download control", err)
	}
	if _, err := browser.ClickWithFallback(ctx, els[0], "download item", c.log); err != nil {
		return errs.Item(errs.PhaseDownload, itemRef, "click download control", err)
	}

	start := time.Now()
	file, err := c.watcher.WaitForNewFile(ctx, before, c.cfg.Download.Timeout)

	rec := gallerylog.Record{
		TimestampText: meta.TimestampText,
		Timestamp:     meta.Timestamp,
		Prompt:        meta.Prompt,
	}

	switch {
	case err == nil:
		id, idErr := c.dlog.NextID()
		if idErr != nil {
			return errs.Item(errs.PhaseLog, itemRef, "compute next id", idErr)
		}
		rec.ID = id
		if path, rnErr := c.watcher.Rename(file, c.cfg.Download.FileNamePattern, id, meta.Timestamp); rnErr == nil {
			rec.FilePath = path
		} else {
			c.log.WithError(rnErr).Warn("keeping original download name")
			rec.FilePath = file.Path
		}
		rec.OriginalFilename = file.OriginalFilename
		rec.FileSizeBytes = file.SizeBytes
		rec.DownloadDuration = file.Duration

	case errors.Is(err, storage.ErrDownloadTimeout):
		// The file very likely finished after the deadline; record it
		// as present but unconfirmed rather than failing the item.
		c.softError(itemRef, "download completion check timed out, recording placeholder")
		rec.ID = gallerylog.PlaceholderID
		rec.DownloadDuration = time.Since(start)

	case errors.Is(err, context.Canceled):
		return err

	default:
		return errs.Item(errs.PhaseDownload, itemRef, "wait for download", err)
	}

	if err := c.dlog.Append(rec); err != nil {
		return errs.Item(errs.PhaseLog, itemRef, "append log record", err)
	}
	c.policy.Remember(fp)
	c.result.DownloadsCompleted++
	c.log.WithFields(map[string]interface{}{
		"item":      itemRef,
		"id":        rec.ID,
		"file":      rec.FilePath,
		"size":      rec.FileSizeBytes,
		"downloads": c.result.DownloadsCompleted,
	}).Info("downloaded item")
	return nil
}

// exitDetail returns to the overview after processing an item.
func (c *Controller) exitDetail(ctx context.Context) {
	if c.cfg.Gallery.CloseSelector != "" {
		els, err := c.driver.Elements(ctx, c.cfg.Gallery.CloseSelector)
		if err == nil && len(els) > 0 {
			if _, err := browser.ClickWithFallback(ctx, els[0], "close detail view", c.log); err == nil {
				return
			}
		}
	}
	if err := c.driver.NavigateBack(ctx); err != nil {
		c.log.WithError(err).Debug("history-back after detail view failed")
	}
}

func (c *Controller) pace(ctx context.Context) {
	if c.limiter != nil && ctx.Err() == nil {
		c.limiter.Wait()
	}
}

// recordFailure classifies err into the result and consumes budgets.
// Returns true when the session must end.
func (c *Controller) recordFailure(err error) bool {
	var e *errs.Error
	if !errors.As(err, &e) {
		e = errs.Item(errs.PhaseAdvance, "", err.Error(), err)
	}
	c.result.Errors = append(c.result.Errors, ItemError{
		ItemRef: e.ItemRef,
		Kind:    e.Kind,
		Message: e.Error(),
	})

	switch e.Kind {
	case errs.KindTerminal:
		c.result.Success = false
		c.result.Reason = e.Error()
		return true
	case errs.KindItem:
		c.consecFails++
		c.log.WithFields(map[string]interface{}{
			"item":              e.ItemRef,
			"consecutive_fails": c.consecFails,
			"error":             e.Error(),
		}).Warn("item failed, skipping")
		if c.cfg.Session.MaxConsecutiveFailures > 0 && c.consecFails >= c.cfg.Session.MaxConsecutiveFailures {
			c.result.Success = false
			c.result.Reason = "consecutive item-failure budget exceeded"
			return true
		}
	default:
		c.log.WithError(e).Warn("recoverable error")
	}
	return false
}

func (c *Controller) softError(itemRef, message string) {
	c.result.Errors = append(c.result.Errors, ItemError{
		ItemRef: itemRef,
		Kind:    errs.KindSoft,
		Message: message,
	})
	c.log.WithField("item", itemRef).Warn(message)
}

func (c *Controller) stop(reason string) {
	c.result.Success = true
	c.result.Reason = reason
	c.log.WithFields(map[string]interface{}{
		"reason":    reason,
		"downloads": c.result.DownloadsCompleted,
	}).Info("session finished")
}

func (c *Controller) fail(err error) {
	c.result.Success = false
	c.result.Reason = err.Error()
	c.result.Errors = append(c.result.Errors, classify(err))
	c.log.WithError(err).Error("session failed")
}

func classify(err error) ItemError {
	var e *errs.Error
	if errors.As(err, &e) {
		return ItemError{ItemRef: e.ItemRef, Kind: e.Kind, Message: e.Error()}
	}
	return ItemError{Kind: errs.KindTerminal, Message: err.Error()}
}
